package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/avelin/quickmeet/internal/domain"
)

type RoomInteractor interface {
	CreateRoom(ctx context.Context, creatorID uuid.UUID) (*domain.Room, error)
	JoinRoom(ctx context.Context, code string, userID uuid.UUID) (*domain.Room, error)
}

type AuthInteractor interface {
	Signup(ctx context.Context, name, email, password string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	UserByToken(ctx context.Context, token string) (*domain.User, error)
}
