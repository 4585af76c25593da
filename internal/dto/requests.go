package dto

import "github.com/aichukanov/docta-auth/internal/domain"

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PasswordResetRequest asks for a reset link
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordResetConfirm redeems a reset token
type PasswordResetConfirm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// TokenConfirm redeems an email verification or email change token
type TokenConfirm struct {
	Token string `json:"token" binding:"required"`
}

// EmailChangeRequest asks for an email-change confirmation link
type EmailChangeRequest struct {
	NewEmail string `json:"new_email" binding:"required,email"`
}

// UserResponse represents the current user
type UserResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	DisplayName     string  `json:"display_name"`
	PhotoURL        string  `json:"photo_url"`
	CreatedAt       string  `json:"created_at"`
	LastLoginAt     *string `json:"last_login_at"`
	IsEmailVerified bool    `json:"is_email_verified"`
}

// SecurityResponse aggregates audit data for a profile security page
type SecurityResponse struct {
	LastSuccessfulLogin *domain.LoginHistoryEntry `json:"last_successful_login"`
	LoginMethods        []*domain.LoginMethodStat `json:"login_methods"`
	SuspiciousActivity  bool                      `json:"suspicious_activity"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
