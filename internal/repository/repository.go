package repository

import (
	"github.com/aichukanov/docta-auth/pkg/database"
)

// Token tables. Email-change tokens share the verification table; the kind
// column tells the rows apart.
const (
	passwordResetTable     = "password_reset_tokens"
	emailVerificationTable = "email_verification_tokens"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User              UserRepository
	OAuthAccount      OAuthAccountRepository
	PasswordReset     TokenRepository
	EmailVerification TokenRepository
	Session           SessionRepository
	LoginHistory      LoginHistoryRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:              NewUserRepository(db),
		OAuthAccount:      NewOAuthAccountRepository(db),
		PasswordReset:     NewTokenRepository(db, passwordResetTable),
		EmailVerification: NewTokenRepository(db, emailVerificationTable),
		Session:           NewSessionRepository(db),
		LoginHistory:      NewLoginHistoryRepository(db),
	}
}
