package acceptance

import (
	"context"
	"net/http"

	"github.com/aichukanov/docta-auth/internal/provider"
)

// beginFlow starts an OAuth login and returns the flow cookies with the
// state value the provider would round-trip.
func (s *Suite) beginFlow(query string) ([]*http.Cookie, string) {
	s.T().Helper()

	resp := s.getWithCookies("/auth/google"+query, nil)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusFound, resp.StatusCode)

	cookies := resp.Cookies()
	state := findCookie(cookies, "oauth_state")
	s.Require().NotNil(state, "Should have state cookie")
	s.Require().NotEmpty(state.Value)

	return cookies, state.Value
}

func (s *Suite) completeCallback(cookies []*http.Cookie, query string) *http.Response {
	s.T().Helper()
	return s.getWithCookies("/auth/google/callback"+query, cookies)
}

func (s *Suite) TestOAuthBegin() {
	resp := s.getWithCookies("/auth/google", nil)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Contains(resp.Header.Get("Location"), "https://provider.example/authorize")

	cookies := resp.Cookies()
	s.NotNil(findCookie(cookies, "oauth_state"))
	s.NotNil(findCookie(cookies, "oauth_redirect_uri"))
}

func (s *Suite) TestOAuthBegin_UnknownProvider() {
	resp := s.getWithCookies("/auth/github", nil)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?error=oauth_callback_failed", resp.Header.Get("Location"))
}

func (s *Suite) TestOAuthCallback_NewUser() {
	cookies, state := s.beginFlow("")

	resp := s.completeCallback(cookies, "?code=auth-code&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	session := findCookie(resp.Cookies(), "session_id")
	s.Require().NotNil(session, "Should have session cookie")
	s.NotEmpty(session.Value)

	// The session works against the API.
	meResp := s.getWithCookies("/api/v1/auth/me", []*http.Cookie{session})
	defer meResp.Body.Close()
	s.Equal(http.StatusOK, meResp.StatusCode)

	user, err := s.Repos.User.GetByEmail(context.Background(), "oauth-user@example.com")
	s.Require().NoError(err)
	s.True(user.IsEmailVerified, "Provider-asserted email should be verified")
	s.Equal("OAuth User", user.DisplayName)

	account, err := s.Repos.OAuthAccount.GetByProvider(context.Background(), "google", "stub-uid-1")
	s.Require().NoError(err)
	s.Equal(user.ID, account.UserID)
	s.True(account.IsPrimary)
}

func (s *Suite) TestOAuthCallback_DeepLinkRedirect() {
	cookies, state := s.beginFlow("?redirect=/profile/settings")

	resp := s.completeCallback(cookies, "?code=auth-code&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/profile/settings", resp.Header.Get("Location"))
}

func (s *Suite) TestOAuthCallback_RepeatIsIdempotent() {
	cookies, state := s.beginFlow("")
	resp := s.completeCallback(cookies, "?code=auth-code&state="+state)
	resp.Body.Close()

	cookies, state = s.beginFlow("")
	resp = s.completeCallback(cookies, "?code=auth-code&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	accounts, err := s.Repos.OAuthAccount.GetByUserID(context.Background(), s.oauthUserID())
	s.Require().NoError(err)
	s.Len(accounts, 1, "Repeat callback should not duplicate the link")
}

func (s *Suite) TestOAuthCallback_LinksToSessionUser() {
	// A logged-in local user goes through the provider flow.
	local, sessionCookies := s.register("local@example.com", "Password123")

	cookies, state := s.beginFlow("")
	cookies = append(cookies, sessionCookies...)

	resp := s.completeCallback(cookies, "?code=auth-code&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	account, err := s.Repos.OAuthAccount.GetByProvider(context.Background(), "google", "stub-uid-1")
	s.Require().NoError(err)
	s.Equal(local.ID, account.UserID, "The link should attach to the session user")
}

func (s *Suite) TestOAuthCallback_StateMismatch() {
	cookies, _ := s.beginFlow("")

	resp := s.completeCallback(cookies, "?code=auth-code&state=forged-state")
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?error=state_mismatch", resp.Header.Get("Location"))
	s.Nil(findCookie(resp.Cookies(), "session_id"))
}

func (s *Suite) TestOAuthCallback_MissingStateCookie() {
	_, state := s.beginFlow("")

	// Callback without the flow cookies, as a cross-site request would be.
	resp := s.completeCallback(nil, "?code=auth-code&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?error=state_mismatch", resp.Header.Get("Location"))
}

func (s *Suite) TestOAuthCallback_ProviderDenied() {
	cookies, state := s.beginFlow("")

	resp := s.completeCallback(cookies, "?error=access_denied&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?error=oauth_failed", resp.Header.Get("Location"))
}

func (s *Suite) TestOAuthCallback_NoCode() {
	cookies, state := s.beginFlow("")

	resp := s.completeCallback(cookies, "?state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?error=no_code", resp.Header.Get("Location"))
}

func (s *Suite) TestOAuthCallback_EmailNotProvided() {
	s.Provider.setProfile(provider.Profile{
		ProviderUserID: "stub-uid-2",
		DisplayName:    "No Email",
	})

	cookies, state := s.beginFlow("")

	resp := s.completeCallback(cookies, "?code=auth-code&state="+state)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?error=email_not_provided", resp.Header.Get("Location"))
}

func (s *Suite) oauthUserID() string {
	s.T().Helper()

	user, err := s.Repos.User.GetByEmail(context.Background(), "oauth-user@example.com")
	s.Require().NoError(err)
	return user.ID
}
