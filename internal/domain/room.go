package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const roomCodeLength = 10

// Room is the durable record-store entry behind a rendezvous code. It exists
// only for bookkeeping; the relay's in-memory registry never consults it.
type Room struct {
	ID           uuid.UUID   `json:"id"`
	Code         string      `json:"roomId"`
	CreatedBy    uuid.UUID   `json:"createdBy"`
	Participants []uuid.UUID `json:"participants"`
	CreatedAt    time.Time   `json:"created_at"`
}

func NewRoom(createdBy uuid.UUID) *Room {
	return &Room{
		ID:           uuid.New(),
		Code:         generateRoomCode(),
		CreatedBy:    createdBy,
		Participants: []uuid.UUID{createdBy},
		CreatedAt:    time.Now().UTC(),
	}
}

// AddParticipant appends the user once; re-joining is a no-op.
func (r *Room) AddParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p == userID {
			return false
		}
	}
	r.Participants = append(r.Participants, userID)
	return true
}

func generateRoomCode() string {
	code := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(code) <= roomCodeLength {
		return code
	}
	return code[:roomCodeLength]
}
