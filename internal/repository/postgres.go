package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/repository/model"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel := toModelRoom(room)

	if err := r.db.WithContext(ctx).Create(roomModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomCodeExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).Preload("Participants").First(&room, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room), nil
}

func (r *PostgresRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel := toModelRoom(room)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&model.Room{
			ID:        roomModel.ID,
			Code:      roomModel.Code,
			CreatedBy: roomModel.CreatedBy,
			CreatedAt: roomModel.CreatedAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomModel.ID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}
		if len(roomModel.Participants) == 0 {
			return nil
		}
		return tx.Create(&roomModel.Participants).Error
	})
}

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	if err := r.db.WithContext(ctx).Create(userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

type PostgresCallLogRepository struct {
	db *gorm.DB
}

func NewPostgresCallLogRepository(db *gorm.DB) *PostgresCallLogRepository {
	return &PostgresCallLogRepository{db: db}
}

func (r *PostgresCallLogRepository) Create(ctx context.Context, log *domain.CallLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if log == nil {
		return errors.New("call log is nil")
	}

	return r.db.WithContext(ctx).Create(toModelCallLog(log)).Error
}

func (r *PostgresCallLogRepository) LatestOpenByRoom(ctx context.Context, roomCode string) (*domain.CallLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var log model.CallLog
	err := r.db.WithContext(ctx).
		Where("room_code = ? AND ended_at IS NULL", roomCode).
		Order("started_at DESC").
		First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallLogNotFound
		}
		return nil, err
	}

	return toDomainCallLog(&log), nil
}

func (r *PostgresCallLogRepository) Update(ctx context.Context, log *domain.CallLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if log == nil {
		return errors.New("call log is nil")
	}

	return r.db.WithContext(ctx).Save(toModelCallLog(log)).Error
}

func toModelRoom(room *domain.Room) *model.Room {
	participants := make([]model.Participant, 0, len(room.Participants))
	for _, userID := range room.Participants {
		participants = append(participants, model.Participant{
			RoomID: room.ID,
			UserID: userID,
		})
	}
	return &model.Room{
		ID:           room.ID,
		Code:         room.Code,
		CreatedBy:    room.CreatedBy,
		CreatedAt:    room.CreatedAt,
		Participants: participants,
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	participants := make([]uuid.UUID, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, p.UserID)
	}
	return &domain.Room{
		ID:           room.ID,
		Code:         room.Code,
		CreatedBy:    room.CreatedBy,
		Participants: participants,
		CreatedAt:    room.CreatedAt,
	}
}

func toModelUser(user *domain.User) *model.User {
	var email *string
	if user.Email != "" {
		email = &user.Email
	}
	return &model.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toDomainUser(user *model.User) *domain.User {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	return &domain.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toModelCallLog(log *domain.CallLog) *model.CallLog {
	m := &model.CallLog{
		ID:           log.ID,
		RoomCode:     log.RoomCode,
		Participants: strings.Join(log.Participants, ","),
		StartedAt:    log.StartedAt,
		Duration:     log.Duration,
	}
	if !log.EndedAt.IsZero() {
		ended := log.EndedAt
		m.EndedAt = &ended
	}
	return m
}

func toDomainCallLog(log *model.CallLog) *domain.CallLog {
	var participants []string
	if log.Participants != "" {
		participants = strings.Split(log.Participants, ",")
	}
	l := &domain.CallLog{
		ID:           log.ID,
		RoomCode:     log.RoomCode,
		Participants: participants,
		StartedAt:    log.StartedAt,
		Duration:     log.Duration,
	}
	if log.EndedAt != nil {
		l.EndedAt = *log.EndedAt
	}
	return l
}
