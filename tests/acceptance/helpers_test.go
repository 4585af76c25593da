package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aichukanov/docta-auth/internal/provider"
	"golang.org/x/oauth2"
)

// stubProvider stands in for a real OAuth provider: it never touches the
// network and hands back a configurable profile.
type stubProvider struct {
	mu      sync.Mutex
	name    string
	profile provider.Profile
}

func newStubProvider(name string) *stubProvider {
	p := &stubProvider{name: name}
	p.reset()
	return p
}

func (p *stubProvider) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.profile = provider.Profile{
		ProviderUserID: "stub-uid-1",
		Email:          "oauth-user@example.com",
		DisplayName:    "OAuth User",
		PhotoURL:       "https://example.com/photo.jpg",
	}
}

func (p *stubProvider) setProfile(profile provider.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.profile = profile
}

func (p *stubProvider) Name() string {
	return p.name
}

func (p *stubProvider) AuthCodeURL(state, redirectURI string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code, redirectURI string) (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken:  "stub-access-" + code,
		RefreshToken: "stub-refresh-" + code,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (p *stubProvider) FetchProfile(_ context.Context, _ *oauth2.Token) (*provider.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile := p.profile
	return &profile, nil
}

// noRedirectClient stops at the first redirect so tests can assert on the
// Location header and Set-Cookie values directly.
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func (s *Suite) postJSON(path string, payload any) *http.Response {
	s.T().Helper()

	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	resp, err := http.Post(s.BaseURL+path, "application/json", bytes.NewBuffer(body))
	s.Require().NoError(err)
	return resp
}

func (s *Suite) postJSONWithCookies(path string, payload any, cookies []*http.Cookie) *http.Response {
	s.T().Helper()

	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	req, err := http.NewRequest("POST", s.BaseURL+path, bytes.NewBuffer(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) getWithCookies(path string, cookies []*http.Cookie) *http.Response {
	s.T().Helper()

	req, err := http.NewRequest("GET", s.BaseURL+path, nil)
	s.Require().NoError(err)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := noRedirectClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) decode(resp *http.Response, out any) {
	s.T().Helper()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
