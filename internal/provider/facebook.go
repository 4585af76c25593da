package provider

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture.width(256)"

type facebookProvider struct {
	baseProvider
}

// NewFacebook creates a Facebook OAuth provider
func NewFacebook(clientID, clientSecret string) Provider {
	return &facebookProvider{
		baseProvider: baseProvider{
			name: "facebook",
			config: oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
			userInfoURL: facebookUserInfoURL,
		},
	}
}

func (p *facebookProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}

	if err := p.fetchUserInfo(ctx, token, &info); err != nil {
		return nil, err
	}

	return &Profile{
		ProviderUserID: info.ID,
		Email:          info.Email,
		DisplayName:    info.Name,
		PhotoURL:       info.Picture.Data.URL,
	}, nil
}
