package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/provider"
	"github.com/aichukanov/docta-auth/internal/repository"
	"github.com/aichukanov/docta-auth/internal/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// CallbackInput is everything the callback handler read from the request:
// query parameters, the flow cookies, and the caller's network identity.
type CallbackInput struct {
	Code        string
	State       string
	ProviderErr string
	StateCookie string
	RedirectURI string
	SessionID   string
	IP          string
	UserAgent   string
}

// OAuthService runs the per-provider callback state machine
type OAuthService interface {
	// AuthCodeURL starts a login flow: it issues a signed CSRF state and
	// builds the provider authorize URL bound to redirectURI.
	AuthCodeURL(providerName, redirectURI string) (authURL, state string, err error)
	// Callback drives the state machine for one callback request. On failure
	// the returned error is always a *CallbackError carrying the opaque
	// redirect code; nothing has been persisted unless identity resolution
	// was reached.
	Callback(ctx context.Context, providerName string, in *CallbackInput) (*AuthResult, error)
}

type oauthService struct {
	providers map[string]provider.Provider
	users     repository.UserRepository
	accounts  repository.OAuthAccountRepository
	sessions  SessionService
	audit     AuditService
	state     *utils.StateManager
	logger    *zap.Logger
	callbacks metric.Int64Counter
}

// NewOAuthService creates a new OAuth identity resolver
func NewOAuthService(
	providers map[string]provider.Provider,
	users repository.UserRepository,
	accounts repository.OAuthAccountRepository,
	sessions SessionService,
	audit AuditService,
	state *utils.StateManager,
	logger *zap.Logger,
) OAuthService {
	meter := otel.Meter("docta-auth")
	callbacks, err := meter.Int64Counter("auth_oauth_callbacks_total",
		metric.WithDescription("OAuth callback outcomes by provider"),
	)
	if err != nil {
		logger.Warn("failed to create callback counter", zap.Error(err))
	}

	return &oauthService{
		providers: providers,
		users:     users,
		accounts:  accounts,
		sessions:  sessions,
		audit:     audit,
		state:     state,
		logger:    logger,
		callbacks: callbacks,
	}
}

func (s *oauthService) AuthCodeURL(providerName, redirectURI string) (string, string, error) {
	prov, ok := s.providers[providerName]
	if !ok {
		return "", "", fmt.Errorf("unknown oauth provider %q", providerName)
	}

	state, err := s.state.Issue()
	if err != nil {
		return "", "", err
	}

	return prov.AuthCodeURL(state, redirectURI), state, nil
}

// Callback executes the states in strict order: csrf check, token exchange,
// profile fetch, identity resolution, session issue. Steps before identity
// resolution write nothing, so a failure there leaves no partial state.
func (s *oauthService) Callback(ctx context.Context, providerName string, in *CallbackInput) (*AuthResult, error) {
	prov, ok := s.providers[providerName]
	if !ok {
		return nil, s.fail(ctx, providerName, callbackErr(CodeCallbackFailed, fmt.Errorf("unknown provider %q", providerName)))
	}

	if in.ProviderErr != "" {
		return nil, s.fail(ctx, providerName, callbackErr(CodeProviderDenied, fmt.Errorf("provider returned error %q", in.ProviderErr)))
	}
	if in.Code == "" {
		return nil, s.fail(ctx, providerName, callbackErr(CodeNoCode, nil))
	}

	if err := s.checkState(in); err != nil {
		return nil, s.fail(ctx, providerName, err)
	}

	token, err := prov.Exchange(ctx, in.Code, in.RedirectURI)
	if err != nil {
		return nil, s.fail(ctx, providerName, callbackErr(CodeCallbackFailed, err))
	}

	profile, err := prov.FetchProfile(ctx, token)
	if err != nil {
		return nil, s.fail(ctx, providerName, callbackErr(CodeCallbackFailed, err))
	}
	if profile.Email == "" {
		// Email is the federation key; without it no account can be linked.
		return nil, s.fail(ctx, providerName, callbackErr(CodeEmailNotProvided, nil))
	}

	user, err := s.resolveIdentity(ctx, prov.Name(), profile, token, in.SessionID)
	if err != nil {
		return nil, s.fail(ctx, providerName, callbackErr(CodeCallbackFailed, err))
	}

	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, s.fail(ctx, providerName, callbackErr(CodeCallbackFailed, err))
	}

	s.audit.Record(ctx, user.ID, in.IP, in.UserAgent, prov.Name(), true, "")

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.count(ctx, providerName, "success")
	return &AuthResult{User: user, SessionID: sessionID}, nil
}

// checkState compares the state parameter against the cookie and verifies
// the signature and expiry of the value itself. Any mismatch aborts before
// the first network call to the provider.
func (s *oauthService) checkState(in *CallbackInput) *CallbackError {
	if in.StateCookie == "" {
		return callbackErr(CodeStateMismatch, errors.New("state cookie missing"))
	}
	if in.State == "" || in.State != in.StateCookie {
		return callbackErr(CodeStateMismatch, errors.New("state parameter does not match cookie"))
	}
	if err := s.state.Verify(in.State); err != nil {
		return callbackErr(CodeStateMismatch, err)
	}
	return nil
}

// resolveIdentity maps the provider profile to a local user, in priority
// order: existing linked account, current session, email match, new user.
func (s *oauthService) resolveIdentity(ctx context.Context, providerName string, profile *provider.Profile, token *oauth2.Token, sessionID string) (*domain.User, error) {
	user, err := s.findOwner(ctx, providerName, profile, sessionID)
	if err != nil {
		return nil, err
	}

	account := &domain.OAuthAccount{
		UserID:         user.ID,
		Provider:       providerName,
		ProviderUserID: profile.ProviderUserID,
		AccessToken:    token.AccessToken,
	}
	if token.RefreshToken != "" {
		account.RefreshToken = &token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		account.TokenExpiresAt = &expiry
	}

	if err := s.accounts.Link(ctx, account); err != nil {
		return nil, err
	}

	if err := s.users.UpdateProfile(ctx, user.ID, profile.DisplayName, profile.PhotoURL); err != nil {
		s.logger.Warn("failed to sync profile", zap.String("user_id", user.ID), zap.Error(err))
	}

	return user, nil
}

func (s *oauthService) findOwner(ctx context.Context, providerName string, profile *provider.Profile, sessionID string) (*domain.User, error) {
	// a. The provider identity is already linked.
	account, err := s.accounts.GetByProvider(ctx, providerName, profile.ProviderUserID)
	if err == nil {
		return s.users.GetByID(ctx, account.UserID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// b. The request carries a valid session: the user is adding a login
	// method to their own account.
	if sessionID != "" {
		user, err := s.sessions.Validate(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	// c. A local account already owns the provider's email.
	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// d. First contact: create the user. The provider asserted the email,
	// so it starts out verified.
	user = &domain.User{
		Email:           profile.Email,
		DisplayName:     profile.DisplayName,
		PhotoURL:        profile.PhotoURL,
		IsEmailVerified: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// Lost a creation race for the same email; the winner owns it.
			return s.users.GetByEmail(ctx, profile.Email)
		}
		return nil, err
	}

	return user, nil
}

// fail logs the failure with full context, records a failed-login audit row
// for attributable denials, and bumps the outcome counter. Only the opaque
// code travels back to the browser.
func (s *oauthService) fail(ctx context.Context, providerName string, cbErr *CallbackError) error {
	s.logger.Warn("oauth callback failed",
		zap.String("provider", providerName),
		zap.String("code", string(cbErr.Code)),
		zap.Error(cbErr.Err),
	)
	s.count(ctx, providerName, string(cbErr.Code))
	return cbErr
}

func (s *oauthService) count(ctx context.Context, providerName, outcome string) {
	if s.callbacks == nil {
		return
	}
	s.callbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", providerName),
		attribute.String("outcome", outcome),
	))
}
