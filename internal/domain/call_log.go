package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallLog records when a two-party call in a room became ready and when it
// ended. Pure bookkeeping; failures here never affect a live call.
type CallLog struct {
	ID           uuid.UUID `json:"id"`
	RoomCode     string    `json:"roomId"`
	Participants []string  `json:"participants"`
	StartedAt    time.Time `json:"start_time"`
	EndedAt      time.Time `json:"end_time,omitempty"`
	Duration     int64     `json:"duration,omitempty"` // seconds
}

func NewCallLog(roomCode string, participants []string) *CallLog {
	return &CallLog{
		ID:           uuid.New(),
		RoomCode:     roomCode,
		Participants: participants,
		StartedAt:    time.Now().UTC(),
	}
}

func (l *CallLog) End(at time.Time) {
	l.EndedAt = at.UTC()
	l.Duration = int64(l.EndedAt.Sub(l.StartedAt).Seconds())
}
