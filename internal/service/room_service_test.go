package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/avelin/quickmeet/internal/repository"
)

func newRoomService() (*RoomService, *repository.InMemoryCallLogRepository) {
	logs := repository.NewInMemoryCallLogRepository()
	return NewRoomService(repository.NewInMemoryRoomRepository(), logs, discardLogger()), logs
}

func TestRoomService_CreateAndJoin(t *testing.T) {
	svc, _ := newRoomService()
	ctx := context.Background()

	creator := uuid.New()
	room, err := svc.CreateRoom(ctx, creator)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.Code == "" {
		t.Fatalf("room must carry a rendezvous code")
	}
	if len(room.Participants) != 1 || room.Participants[0] != creator {
		t.Fatalf("creator must be the first participant: %+v", room.Participants)
	}

	joiner := uuid.New()
	joined, err := svc.JoinRoom(ctx, room.Code, joiner)
	if err != nil {
		t.Fatalf("join room: %v", err)
	}
	if len(joined.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(joined.Participants))
	}

	// Re-joining must not duplicate the record.
	joined, err = svc.JoinRoom(ctx, room.Code, joiner)
	if err != nil {
		t.Fatalf("re-join room: %v", err)
	}
	if len(joined.Participants) != 2 {
		t.Fatalf("re-join duplicated participant: %+v", joined.Participants)
	}
}

func TestRoomService_JoinUnknownRoom(t *testing.T) {
	svc, _ := newRoomService()

	_, err := svc.JoinRoom(context.Background(), "nosuchroom", uuid.New())
	if !errors.Is(err, repository.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomService_CreateRoomRetriesOnCodeCollision(t *testing.T) {
	svc, _ := newRoomService()
	ctx := context.Background()

	// Codes come from uuids; collisions are vanishingly rare but the retry
	// loop must keep create usable regardless of how many rooms exist.
	for i := 0; i < 50; i++ {
		if _, err := svc.CreateRoom(ctx, uuid.New()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
}

func TestRoomService_CallLifecycleRecorded(t *testing.T) {
	svc, logs := newRoomService()
	ctx := context.Background()

	svc.CallStarted(ctx, "room-1", []string{"alice", "bob"})

	entry, err := logs.LatestOpenByRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("no open call log: %v", err)
	}
	if len(entry.Participants) != 2 {
		t.Fatalf("participants not recorded: %+v", entry.Participants)
	}

	svc.CallEnded(ctx, "room-1")

	if _, err := logs.LatestOpenByRoom(ctx, "room-1"); !errors.Is(err, repository.ErrCallLogNotFound) {
		t.Fatalf("call log must be closed after the call ends, got %v", err)
	}
}

func TestRoomService_CallEndedWithoutStartIsHarmless(t *testing.T) {
	svc, _ := newRoomService()

	// Must not panic or create entries.
	svc.CallEnded(context.Background(), "never-started")
}
