package domain

// ChatMessage is the free-form text payload of send-message/receive-message.
// From and Time are stamped by the sender, never by the relay.
type ChatMessage struct {
	RoomID string `json:"roomId"`
	From   string `json:"from"`
	Text   string `json:"text"`
	Time   int64  `json:"time"`
}
