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

const methodEmail = "email"

// TokenTTLs groups the per-kind lifetimes of single-use tokens
type TokenTTLs struct {
	PasswordReset     time.Duration
	EmailVerification time.Duration
	EmailChange       time.Duration
}

// accountService implements AccountService
type accountService struct {
	users       repository.UserRepository
	resetTokens TokenService
	emailTokens TokenService
	sessions    SessionService
	audit       AuditService
	bcryptCost  int
	ttls        TokenTTLs
	logger      *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	users repository.UserRepository,
	resetTokens TokenService,
	emailTokens TokenService,
	sessions SessionService,
	audit AuditService,
	bcryptCost int,
	ttls TokenTTLs,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		users:       users,
		resetTokens: resetTokens,
		emailTokens: emailTokens,
		sessions:    sessions,
		audit:       audit,
		bcryptCost:  bcryptCost,
		ttls:        ttls,
		logger:      logger,
	}
}

// Register creates a local email/password user and logs them in
func (s *accountService) Register(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error) {
	email = utils.SanitizeEmail(email)

	if !utils.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !utils.ValidatePassword(password) {
		return nil, ErrInvalidPassword
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyInUse
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	passwordHash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issueSession(ctx, user, ip, userAgent)
}

// Login authenticates a local email/password user. Both failure paths are
// audited: unknown emails under the sentinel user id, wrong passwords under
// the real one.
func (s *accountService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error) {
	email = utils.SanitizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, "", ip, userAgent, methodEmail, false, "email_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.PasswordHash == "" || !utils.CheckPasswordHash(password, user.PasswordHash) {
		s.audit.Record(ctx, user.ID, ip, userAgent, methodEmail, false, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user, ip, userAgent)
}

func (s *accountService) issueSession(ctx context.Context, user *domain.User, ip, userAgent string) (*AuthResult, error) {
	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, user.ID, ip, userAgent, methodEmail, true, "")

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return &AuthResult{User: user, SessionID: sessionID}, nil
}

// RequestPasswordReset issues a reset token for the account owning the email
func (s *accountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	return s.resetTokens.Create(ctx, user.ID, domain.TokenKindPasswordReset, "", s.ttls.PasswordReset)
}

// ConfirmPasswordReset applies the new password, then consumes the token and
// purges any other pending reset links for the user. Consuming last means a
// failure while setting the password leaves the link redeemable.
func (s *accountService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	payload, err := s.resetTokens.Validate(ctx, domain.TokenKindPasswordReset, token)
	if err != nil {
		return err
	}

	if !utils.ValidatePassword(newPassword) {
		return ErrInvalidPassword
	}

	passwordHash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, payload.UserID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.resetTokens.Consume(ctx, domain.TokenKindPasswordReset, token); err != nil {
		return err
	}

	if err := s.resetTokens.PurgeUnconsumed(ctx, payload.UserID, domain.TokenKindPasswordReset); err != nil {
		s.logger.Warn("failed to purge pending reset tokens", zap.String("user_id", payload.UserID), zap.Error(err))
	}

	return nil
}

// RequestEmailVerification issues a verification token for the user's
// current email address.
func (s *accountService) RequestEmailVerification(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	return s.emailTokens.Create(ctx, user.ID, domain.TokenKindEmailVerification, user.Email, s.ttls.EmailVerification)
}

// ConfirmEmailVerification marks the user's email verified and consumes the token
func (s *accountService) ConfirmEmailVerification(ctx context.Context, token string) error {
	payload, err := s.emailTokens.Validate(ctx, domain.TokenKindEmailVerification, token)
	if err != nil {
		return err
	}

	if err := s.users.MarkEmailVerified(ctx, payload.UserID); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	return s.emailTokens.Consume(ctx, domain.TokenKindEmailVerification, token)
}

// RequestEmailChange issues an email-change token targeting the new address
func (s *accountService) RequestEmailChange(ctx context.Context, userID, newEmail string) (string, error) {
	newEmail = utils.SanitizeEmail(newEmail)

	if !utils.ValidateEmail(newEmail) {
		return "", ErrInvalidEmail
	}

	if err := s.checkEmailAvailable(ctx, userID, newEmail); err != nil {
		return "", err
	}

	return s.emailTokens.Create(ctx, userID, domain.TokenKindEmailChange, newEmail, s.ttls.EmailChange)
}

// ConfirmEmailChange applies the change the token describes. The target
// address is re-checked at redemption time: another user may have claimed it
// while the token was in flight. In that case the token stays unconsumed and
// nothing changes.
func (s *accountService) ConfirmEmailChange(ctx context.Context, token string) error {
	payload, err := s.emailTokens.Validate(ctx, domain.TokenKindEmailChange, token)
	if err != nil {
		return err
	}

	if err := s.checkEmailAvailable(ctx, payload.UserID, payload.TargetEmail); err != nil {
		return err
	}

	if err := s.users.UpdateEmail(ctx, payload.UserID, payload.TargetEmail); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// The availability check raced with a concurrent claim; the
			// unique index is the authority.
			return ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to update email: %w", err)
	}

	// The user proved ownership of the new address by redeeming the token.
	if err := s.users.MarkEmailVerified(ctx, payload.UserID); err != nil {
		s.logger.Warn("failed to mark changed email verified", zap.String("user_id", payload.UserID), zap.Error(err))
	}

	return s.emailTokens.Consume(ctx, domain.TokenKindEmailChange, token)
}

func (s *accountService) checkEmailAvailable(ctx context.Context, userID, email string) error {
	owner, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check email ownership: %w", err)
	}

	if owner.ID != userID {
		return ErrEmailAlreadyInUse
	}

	return nil
}
