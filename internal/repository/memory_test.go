package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avelin/quickmeet/internal/domain"
)

func TestInMemoryRoomRepository(t *testing.T) {
	repo := NewInMemoryRoomRepository()
	ctx := context.Background()

	room := domain.NewRoom(uuid.New())
	if err := repo.Create(ctx, room); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := domain.NewRoom(uuid.New())
	dup.Code = room.Code
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrRoomCodeExists) {
		t.Fatalf("expected ErrRoomCodeExists, got %v", err)
	}

	got, err := repo.GetByCode(ctx, room.Code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != room.ID {
		t.Fatalf("got room %s, want %s", got.ID, room.ID)
	}

	if _, err := repo.GetByCode(ctx, "nosuchroom"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	joiner := uuid.New()
	room.AddParticipant(joiner)
	if err := repo.Update(ctx, room); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetByCode(ctx, room.Code)
	if len(got.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(got.Participants))
	}

	ghost := domain.NewRoom(uuid.New())
	if err := repo.Update(ctx, ghost); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound on update, got %v", err)
	}
}

func TestInMemoryUserRepository(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	user := domain.NewUser("alice", "alice@example.com", "hash")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := domain.NewUser("other", "alice@example.com", "hash")
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUserEmailExists) {
		t.Fatalf("expected ErrUserEmailExists, got %v", err)
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil || byID.Name != "alice" {
		t.Fatalf("get by id: %v, %+v", err, byID)
	}

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("get by email: %v, %+v", err, byEmail)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound by email, got %v", err)
	}
}

func TestInMemoryCallLogRepository(t *testing.T) {
	repo := NewInMemoryCallLogRepository()
	ctx := context.Background()

	first := domain.NewCallLog("room-1", []string{"a", "b"})
	second := domain.NewCallLog("room-1", []string{"a", "c"})
	other := domain.NewCallLog("room-2", []string{"x", "y"})
	for _, entry := range []*domain.CallLog{first, second, other} {
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	open, err := repo.LatestOpenByRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("latest open: %v", err)
	}
	if open.ID != second.ID {
		t.Fatalf("expected the most recent open entry, got %s", open.ID)
	}

	open.End(time.Now())
	if err := repo.Update(ctx, open); err != nil {
		t.Fatalf("update: %v", err)
	}

	open, err = repo.LatestOpenByRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("latest open after close: %v", err)
	}
	if open.ID != first.ID {
		t.Fatalf("closed entries must be skipped, got %s", open.ID)
	}

	if _, err := repo.LatestOpenByRoom(ctx, "room-3"); !errors.Is(err, ErrCallLogNotFound) {
		t.Fatalf("expected ErrCallLogNotFound, got %v", err)
	}

	stray := domain.NewCallLog("room-9", nil)
	if err := repo.Update(ctx, stray); !errors.Is(err, ErrCallLogNotFound) {
		t.Fatalf("expected ErrCallLogNotFound on update, got %v", err)
	}
}

func TestInMemoryRepositoriesHonorContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewInMemoryRoomRepository().Create(ctx, domain.NewRoom(uuid.New())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := NewInMemoryUserRepository().GetByEmail(ctx, "a@b.c"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
