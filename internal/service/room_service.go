package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/repository"
	"github.com/avelin/quickmeet/lib/logger/sl"
)

const recordTimeout = 3 * time.Second

// RoomService manages durable room records and call logs. The signaling
// relay never reads from here to decide call behavior; this is bookkeeping.
type RoomService struct {
	rooms repository.RoomRepository
	logs  repository.CallLogRepository
	log   *slog.Logger
}

func NewRoomService(rooms repository.RoomRepository, logs repository.CallLogRepository, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{rooms: rooms, logs: logs, log: log}
}

func (s *RoomService) CreateRoom(ctx context.Context, creatorID uuid.UUID) (*domain.Room, error) {
	const op = "service.room.create"

	if creatorID == uuid.Nil {
		return nil, errors.New("creator is required")
	}

	for {
		room := domain.NewRoom(creatorID)
		if err := s.rooms.Create(ctx, room); err != nil {
			if errors.Is(err, repository.ErrRoomCodeExists) {
				continue
			}
			return nil, err
		}

		s.log.Info("room created", "op", op, "room_id", room.Code, "creator", creatorID.String())
		return room, nil
	}
}

func (s *RoomService) JoinRoom(ctx context.Context, code string, userID uuid.UUID) (*domain.Room, error) {
	const op = "service.room.join"
	log := s.log.With("op", op, "room_id", code)

	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.AddParticipant(userID) {
		if err := s.rooms.Update(ctx, room); err != nil {
			log.Error("failed to update room", sl.Err(err))
			return nil, err
		}
	}

	log.Info("user joined room record", "user_id", userID.String(), "participants", len(room.Participants))
	return room, nil
}

// CallStarted opens a call log entry for the room. Fire-and-forget: the live
// call does not depend on the outcome.
func (s *RoomService) CallStarted(ctx context.Context, roomCode string, participants []string) {
	const op = "service.room.callStarted"

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	entry := domain.NewCallLog(roomCode, participants)
	if err := s.logs.Create(ctx, entry); err != nil {
		s.log.Warn("failed to record call start", "op", op, "room_id", roomCode, sl.Err(err))
		return
	}
	s.log.Info("call started", "op", op, "room_id", roomCode)
}

// CallEnded closes the most recent open call log entry for the room.
func (s *RoomService) CallEnded(ctx context.Context, roomCode string) {
	const op = "service.room.callEnded"

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	entry, err := s.logs.LatestOpenByRoom(ctx, roomCode)
	if err != nil {
		if !errors.Is(err, repository.ErrCallLogNotFound) {
			s.log.Warn("failed to load call log", "op", op, "room_id", roomCode, sl.Err(err))
		}
		return
	}

	entry.End(time.Now())
	if err := s.logs.Update(ctx, entry); err != nil {
		s.log.Warn("failed to record call end", "op", op, "room_id", roomCode, sl.Err(err))
		return
	}
	s.log.Info("call ended", "op", op, "room_id", roomCode, "duration_s", entry.Duration)
}
