package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/dto"
	"github.com/aichukanov/docta-auth/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles local authentication and the token-confirmed account
// flows (password reset, email verification, email change).
type AuthHandler struct {
	accountService service.AccountService
	sessionService service.SessionService
	auditService   service.AuditService
	cookies        CookieOptions
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	accountService service.AccountService,
	sessionService service.SessionService,
	auditService service.AuditService,
	cookies CookieOptions,
) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		sessionService: sessionService,
		auditService:   auditService,
		cookies:        cookies,
	}
}

// Register handles local user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.accountService.Register(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}

	setCookie(c, h.cookies, CookieSession, result.SessionID, h.cookies.SessionMaxAge)
	c.JSON(http.StatusCreated, userResponse(result.User))
}

// Login handles local email/password login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.accountService.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}

	setCookie(c, h.cookies, CookieSession, result.SessionID, h.cookies.SessionMaxAge)
	c.JSON(http.StatusOK, userResponse(result.User))
}

// Logout destroys the current session and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID, err := c.Cookie(CookieSession); err == nil && sessionID != "" {
		if err := h.sessionService.Destroy(c.Request.Context(), sessionID); err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "Failed to destroy session",
			})
			return
		}
	}

	deleteCookie(c, h.cookies, CookieSession)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Logged out successfully"})
}

// GetMe returns the current user's profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, userResponse(CurrentUser(c)))
}

// Security returns login audit aggregates for the current user
func (h *AuthHandler) Security(c *gin.Context) {
	user := CurrentUser(c)
	ctx := c.Request.Context()

	resp := dto.SecurityResponse{}

	last, err := h.auditService.LastSuccessfulLogin(ctx, user.ID)
	if err == nil {
		resp.LastSuccessfulLogin = last
	}

	stats, err := h.auditService.LoginMethodStats(ctx, user.ID)
	if err == nil {
		resp.LoginMethods = stats
	}

	suspicious, err := h.auditService.IsSuspicious(ctx, user.ID)
	if err == nil {
		resp.SuspiciousActivity = suspicious
	}

	c.JSON(http.StatusOK, resp)
}

// RequestPasswordReset issues a reset token. The response does not reveal
// whether the email exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	_, err := h.accountService.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, service.ErrUserNotFound) {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "If the email is registered, a reset link has been sent",
	})
}

// ConfirmPasswordReset redeems a reset token and sets the new password
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req dto.PasswordResetConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.accountService.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Password updated"})
}

// RequestEmailVerification issues a verification token for the current user
func (h *AuthHandler) RequestEmailVerification(c *gin.Context) {
	user := CurrentUser(c)

	if _, err := h.accountService.RequestEmailVerification(c.Request.Context(), user.ID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Verification email sent"})
}

// ConfirmEmailVerification redeems a verification token
func (h *AuthHandler) ConfirmEmailVerification(c *gin.Context) {
	var req dto.TokenConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.accountService.ConfirmEmailVerification(c.Request.Context(), req.Token); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Email verified"})
}

// RequestEmailChange issues an email-change token for the current user
func (h *AuthHandler) RequestEmailChange(c *gin.Context) {
	var req dto.EmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := CurrentUser(c)

	if _, err := h.accountService.RequestEmailChange(c.Request.Context(), user.ID, req.NewEmail); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Confirmation email sent"})
}

// ConfirmEmailChange redeems an email-change token
func (h *AuthHandler) ConfirmEmailChange(c *gin.Context) {
	var req dto.TokenConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.accountService.ConfirmEmailChange(c.Request.Context(), req.Token); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Email changed"})
}

// writeError maps the service error taxonomy to HTTP responses. Token and
// credential failures are expected outcomes the page branches on, so each
// gets its own stable error label.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid_credentials", Message: "Invalid email or password"})
	case errors.Is(err, service.ErrEmailAlreadyInUse):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "email_already_in_use", Message: "This email is already in use"})
	case errors.Is(err, service.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "token_not_found", Message: "This link is invalid"})
	case errors.Is(err, service.ErrTokenAlreadyUsed):
		c.JSON(http.StatusGone, dto.ErrorResponse{Error: "token_already_used", Message: "This link has already been used"})
	case errors.Is(err, service.ErrTokenExpired):
		c.JSON(http.StatusGone, dto.ErrorResponse{Error: "token_expired", Message: "This link has expired"})
	case errors.Is(err, service.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_email", Message: "Invalid email format"})
	case errors.Is(err, service.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_password", Message: "Password must be at least 8 characters with uppercase, lowercase and a number"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user_not_found", Message: "User not found"})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error", Message: "Something went wrong"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "validation_failed",
		Message: message,
	})
}

func userResponse(user *domain.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		PhotoURL:        user.PhotoURL,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		IsEmailVerified: user.IsEmailVerified,
	}

	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &lastLogin
	}

	return resp
}
