package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/repository"
	"github.com/aichukanov/docta-auth/internal/utils"
	"go.uber.org/zap"
)

// sessionService implements SessionService. Sessions are rows in the store;
// a user may hold any number of them concurrently. TTL is a deployment
// parameter: zero disables expiry, otherwise sessions past their TTL are
// treated as anonymous and lazily removed at validation time.
type sessionService struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	ttl      time.Duration
	logger   *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(sessions repository.SessionRepository, users repository.UserRepository, ttl time.Duration, logger *zap.Logger) SessionService {
	return &sessionService{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		logger:   logger,
	}
}

// Create issues a new opaque session identifier for the user
func (s *sessionService) Create(ctx context.Context, userID string) (string, error) {
	id, err := utils.NewOpaqueToken()
	if err != nil {
		return "", err
	}

	session := &domain.Session{
		ID:     id,
		UserID: userID,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return id, nil
}

// Validate resolves a session id to its user, or to anonymous (nil, nil)
func (s *sessionService) Validate(ctx context.Context, sessionID string) (*domain.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	if s.ttl > 0 && time.Since(session.CreatedAt) > s.ttl {
		if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("failed to remove expired session", zap.Error(err))
		}
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Session outlived its user; treat as anonymous.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return user, nil
}

// Destroy removes a session (logout). Destroying an unknown session is not
// an error.
func (s *sessionService) Destroy(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// DestroyAll removes every session of a user (log out all devices)
func (s *sessionService) DestroyAll(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to destroy sessions: %w", err)
	}
	return nil
}
