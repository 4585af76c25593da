package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/repository"
	"github.com/aichukanov/docta-auth/internal/utils"
)

// tokenService implements TokenService over one token repository. The
// password-reset and email-verification instances are wired to different
// tables but share every line of logic.
type tokenService struct {
	repo repository.TokenRepository
	now  func() time.Time
}

// NewTokenService creates a new token lifecycle service
func NewTokenService(repo repository.TokenRepository) TokenService {
	return &tokenService{
		repo: repo,
		now:  time.Now,
	}
}

// Create generates an unguessable token, persists its hash and returns the
// raw value for delivery to the user.
func (s *tokenService) Create(ctx context.Context, userID string, kind domain.TokenKind, targetEmail string, ttl time.Duration) (string, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return "", err
	}

	token := &domain.AuthToken{
		UserID:    userID,
		TokenHash: utils.HashToken(raw),
		Kind:      kind,
		ExpiresAt: s.now().Add(ttl),
	}
	if targetEmail != "" {
		token.TargetEmail = &targetEmail
	}

	if err := s.repo.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to create %s token: %w", kind, err)
	}

	return raw, nil
}

// Validate looks the token up and returns its payload without consuming it.
// Expiry is checked before the consumed flag, so an expired token reads as
// expired regardless of consumption state.
func (s *tokenService) Validate(ctx context.Context, kind domain.TokenKind, token string) (*domain.TokenPayload, error) {
	stored, err := s.lookup(ctx, kind, token)
	if err != nil {
		return nil, err
	}

	if stored.IsExpired(s.now()) {
		return nil, ErrTokenExpired
	}

	if stored.Consumed {
		return nil, ErrTokenAlreadyUsed
	}

	payload := &domain.TokenPayload{UserID: stored.UserID}
	if stored.TargetEmail != nil {
		payload.TargetEmail = *stored.TargetEmail
	}

	return payload, nil
}

// Consume marks the token consumed. The repository expresses this as one
// conditional UPDATE, so of two racing confirmations exactly one returns nil
// here and the other gets ErrTokenAlreadyUsed.
func (s *tokenService) Consume(ctx context.Context, kind domain.TokenKind, token string) error {
	consumed, err := s.repo.Consume(ctx, utils.HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to consume %s token: %w", kind, err)
	}

	if !consumed {
		// Lost the conditional write: either the token never existed or
		// another redemption got there first.
		if _, err := s.lookup(ctx, kind, token); err != nil {
			return err
		}
		return ErrTokenAlreadyUsed
	}

	return nil
}

// PurgeUnconsumed drops every other pending token of the kind for the user
func (s *tokenService) PurgeUnconsumed(ctx context.Context, userID string, kind domain.TokenKind) error {
	return s.repo.DeleteUnconsumed(ctx, userID, kind)
}

func (s *tokenService) lookup(ctx context.Context, kind domain.TokenKind, token string) (*domain.AuthToken, error) {
	stored, err := s.repo.GetByHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to look up %s token: %w", kind, err)
	}

	// Kinds share a table in the email flows; a verification token must not
	// redeem an email change and vice versa.
	if stored.Kind != kind {
		return nil, ErrTokenNotFound
	}

	return stored, nil
}
