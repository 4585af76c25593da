package provider

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type googleProvider struct {
	baseProvider
}

// NewGoogle creates a Google OAuth provider
func NewGoogle(clientID, clientSecret string) Provider {
	return &googleProvider{
		baseProvider: baseProvider{
			name: "google",
			config: oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			userInfoURL: googleUserInfoURL,
		},
	}
}

func (p *googleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}

	if err := p.fetchUserInfo(ctx, token, &info); err != nil {
		return nil, err
	}

	return &Profile{
		ProviderUserID: info.ID,
		Email:          info.Email,
		DisplayName:    info.Name,
		PhotoURL:       info.Picture,
	}, nil
}
