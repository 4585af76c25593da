package domain

import "time"

// TokenKind identifies the flow a single-use token belongs to.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindEmailChange       TokenKind = "email_change"
)

// AuthToken is the shared shape of all single-use tokens. The raw token
// value never touches the database; only its SHA-256 hash is stored.
type AuthToken struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	TokenHash   string    `json:"-" db:"token_hash"`
	Kind        TokenKind `json:"kind" db:"kind"`
	TargetEmail *string   `json:"target_email" db:"target_email"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	Consumed    bool      `json:"consumed" db:"consumed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the token is past its TTL at the given instant.
func (t AuthToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenPayload is what a successful validation returns to the calling flow.
type TokenPayload struct {
	UserID      string
	TargetEmail string
}
