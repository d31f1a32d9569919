package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService issues opaque bearer tokens for signed-in users. Tokens live
// in process memory; a restart signs everyone out, which matches the relay's
// own in-memory lifetime.
type AuthService struct {
	users repository.UserRepository
	log   *slog.Logger

	mu     sync.RWMutex
	tokens map[string]uuid.UUID
}

func NewAuthService(users repository.UserRepository, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:  users,
		log:    log,
		tokens: make(map[string]uuid.UUID),
	}
}

func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*domain.User, string, error) {
	const op = "service.auth.signup"

	if name == "" || email == "" || password == "" {
		return nil, "", errors.New("name, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := domain.NewUser(name, email, string(hash))
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token := s.issueToken(user.ID)
	s.log.Info("user signed up", "op", op, "user_id", user.ID.String())
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	const op = "service.auth.login"

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token := s.issueToken(user.ID)
	s.log.Info("user logged in", "op", op, "user_id", user.ID.String())
	return user, token, nil
}

func (s *AuthService) UserByToken(ctx context.Context, token string) (*domain.User, error) {
	s.mu.RLock()
	userID, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidToken
	}

	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) issueToken(userID uuid.UUID) string {
	token := uuid.New().String()

	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()

	return token
}
