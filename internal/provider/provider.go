// Package provider wraps the OAuth providers the service can federate with.
// Each provider exposes the same three-step contract: build the authorize
// URL, exchange the callback code for tokens, and fetch the user profile.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Profile is the normalized identity a provider returns from its user-info
// endpoint. ProviderUserID is the stable federation key together with the
// provider name; Email is required by the identity resolver.
type Profile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
	PhotoURL       string
}

// Provider is one configured OAuth provider
type Provider interface {
	Name() string
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// baseProvider carries the oauth2 config shared by all implementations.
// The redirect URI varies per request (it must match the one that started
// the flow), so the stored config has no RedirectURL and every call clones
// it with the caller's value.
type baseProvider struct {
	name        string
	config      oauth2.Config
	userInfoURL string
}

func (p *baseProvider) Name() string {
	return p.name
}

func (p *baseProvider) AuthCodeURL(state, redirectURI string) string {
	cfg := p.config
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *baseProvider) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	cfg := p.config
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code with %s: %w", p.name, err)
	}

	return token, nil
}

func (p *baseProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token, out interface{}) error {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build user info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch user info from %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("user info request to %s returned %d: %s", p.name, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode user info from %s: %w", p.name, err)
	}

	return nil
}
