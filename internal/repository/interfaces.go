package repository

import (
	"context"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID, displayName, photoURL string) error
	UpdateEmail(ctx context.Context, userID, email string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
	UpdateLastLogin(ctx context.Context, userID string) error
}

// OAuthAccountRepository defines methods for linked provider identities.
// Link is the only write path for new identities; it computes the primary
// flag atomically and refreshes tokens when the pair already exists.
type OAuthAccountRepository interface {
	Link(ctx context.Context, account *domain.OAuthAccount) error
	GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.OAuthAccount, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.OAuthAccount, error)
	SetPrimary(ctx context.Context, userID, accountID string) error
	Delete(ctx context.Context, accountID string) error
}

// TokenRepository defines the single-use token contract shared by the
// password-reset, email-verification and email-change flows.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.AuthToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error)
	// Consume marks the token consumed and reports whether this call was the
	// one that flipped the flag. Expressed as a single conditional UPDATE so
	// two racing redemptions cannot both succeed.
	Consume(ctx context.Context, tokenHash string) (bool, error)
	DeleteUnconsumed(ctx context.Context, userID string, kind domain.TokenKind) error
	DeleteExpired(ctx context.Context) error
}

// SessionRepository defines methods for session storage
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) error
}

// LoginHistoryRepository defines the append-only audit trail
type LoginHistoryRepository interface {
	Create(ctx context.Context, entry *domain.LoginHistoryEntry) error
	CountFailedSince(ctx context.Context, userID string, since time.Time) (int, error)
	LastSuccessful(ctx context.Context, userID string) (*domain.LoginHistoryEntry, error)
	MethodStats(ctx context.Context, userID string) ([]*domain.LoginMethodStat, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.LoginHistoryEntry, error)
}
