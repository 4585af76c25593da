package service

import (
	"context"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
)

// TokenService is the single-use token lifecycle shared by the
// password-reset, email-verification and email-change flows. Create returns
// the raw token (the caller mails it out); Validate returns the payload
// without consuming; Consume is the final step of the confirming action.
type TokenService interface {
	Create(ctx context.Context, userID string, kind domain.TokenKind, targetEmail string, ttl time.Duration) (string, error)
	Validate(ctx context.Context, kind domain.TokenKind, token string) (*domain.TokenPayload, error)
	Consume(ctx context.Context, kind domain.TokenKind, token string) error
	PurgeUnconsumed(ctx context.Context, userID string, kind domain.TokenKind) error
}

// SessionService issues and validates opaque session identifiers
type SessionService interface {
	Create(ctx context.Context, userID string) (string, error)
	// Validate resolves a session id to its user. Unknown, malformed or
	// expired ids are anonymous (nil, nil), never an error the caller must
	// distinguish from infrastructure failure.
	Validate(ctx context.Context, sessionID string) (*domain.User, error)
	Destroy(ctx context.Context, sessionID string) error
	DestroyAll(ctx context.Context, userID string) error
}

// AuditService is the append-only login audit trail
type AuditService interface {
	Record(ctx context.Context, userID, ip, userAgent, method string, success bool, reason string)
	IsSuspicious(ctx context.Context, userID string) (bool, error)
	LastSuccessfulLogin(ctx context.Context, userID string) (*domain.LoginHistoryEntry, error)
	LoginMethodStats(ctx context.Context, userID string) ([]*domain.LoginMethodStat, error)
}

// AccountService covers local registration/login and the token-confirmed
// account flows (password reset, email verification, email change)
type AccountService interface {
	Register(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	RequestEmailVerification(ctx context.Context, userID string) (string, error)
	ConfirmEmailVerification(ctx context.Context, token string) error
	RequestEmailChange(ctx context.Context, userID, newEmail string) (string, error)
	ConfirmEmailChange(ctx context.Context, token string) error
}

// AuthResult is a successful identity resolution: the resolved user plus a
// freshly issued session.
type AuthResult struct {
	User      *domain.User
	SessionID string
}
