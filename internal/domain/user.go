package domain

import "time"

// SentinelUserID is recorded in the login history for failed attempts that
// could not be attributed to a known user (e.g. unknown email).
const SentinelUserID = "00000000-0000-0000-0000-000000000000"

// User represents a user in the system. PasswordHash is empty for
// OAuth-only accounts.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	DisplayName     string     `json:"display_name" db:"display_name"`
	PhotoURL        string     `json:"photo_url" db:"photo_url"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
	IsEmailVerified bool       `json:"is_email_verified" db:"is_email_verified"`
	IsAdmin         bool       `json:"is_admin" db:"is_admin"`
}

// OAuthAccount represents an external provider identity linked to a user.
// At most one account exists per (provider, provider_user_id) pair, and at
// most one account per user is primary.
type OAuthAccount struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	Provider       string     `json:"provider" db:"provider"` // google, facebook
	ProviderUserID string     `json:"provider_user_id" db:"provider_user_id"`
	AccessToken    string     `json:"-" db:"access_token"`
	RefreshToken   *string    `json:"-" db:"refresh_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at" db:"token_expires_at"`
	IsPrimary      bool       `json:"is_primary" db:"is_primary"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Session represents an authenticated browser session. A user may hold any
// number of concurrent sessions; expiry is a deployment parameter checked at
// validation time.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LoginHistoryEntry is one immutable row of the login audit trail.
type LoginHistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Method    string    `json:"method" db:"method"` // "email" or a provider name
	Success   bool      `json:"success" db:"success"`
	Reason    *string   `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LoginMethodStat aggregates login history per method for security pages.
type LoginMethodStat struct {
	Method   string     `json:"method"`
	Count    int        `json:"count"`
	LastUsed *time.Time `json:"last_used"`
}
