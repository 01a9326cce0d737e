package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials indicates login failure. The same error covers
// unknown usernames, wrong passwords and disabled accounts.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Repository provides persistence for accounts and the session registry.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByAPIKeyHash(ctx context.Context, keyHash string) (*User, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, userAgent string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// Service wraps authentication business rules. It validates credentials
// only; permission and visibility decisions belong to the access layer.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// AuthenticateAPIKey resolves an API key to its account. Keys are
// stored hashed; the raw key never touches the database.
func (s *Service) AuthenticateAPIKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.repo.FindByAPIKeyHash(ctx, HashAPIKey(key))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession records session metadata in the Postgres registry.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, userAgent string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, userAgent)
}

// RemoveSession deletes a session record from the registry.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// SweepExpiredSessions removes registry rows whose expiry has passed.
// Called from the background worker.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, time.Now().UTC())
}

// HashAPIKey returns the storage form of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
