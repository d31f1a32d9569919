package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Code         string        `gorm:"size:64;uniqueIndex;not null"`
	CreatedBy    uuid.UUID     `gorm:"type:uuid;not null"`
	CreatedAt    time.Time     `gorm:"not null"`
	Participants []Participant `gorm:"constraint:OnDelete:CASCADE"`
}

type Participant struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;index;not null"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedAt time.Time
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:255;not null"`
	Email        *string   `gorm:"size:255;uniqueIndex:idx_users_email,where:email IS NOT NULL"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type CallLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomCode     string     `gorm:"size:64;index;not null"`
	Participants string     `gorm:"size:1024"`
	StartedAt    time.Time  `gorm:"not null"`
	EndedAt      *time.Time `gorm:"index"`
	Duration     int64
}
