package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/avelin/quickmeet/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomCodeExists  = errors.New("room code already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserEmailExists = errors.New("user with email already exists")
	ErrCallLogNotFound = errors.New("call log not found")
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByCode(ctx context.Context, code string) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type CallLogRepository interface {
	Create(ctx context.Context, log *domain.CallLog) error
	LatestOpenByRoom(ctx context.Context, roomCode string) (*domain.CallLog, error)
	Update(ctx context.Context, log *domain.CallLog) error
}
