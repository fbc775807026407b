package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hugh/agentops/pkg/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// OAuthProvider runs the authorization-code flow for one identity provider.
type OAuthProvider interface {
	Name() Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthProfile, error)
}

// NewOAuthProviders registers every provider that has a client id configured.
func NewOAuthProviders(cfg config.OAuthConfig) map[Provider]OAuthProvider {
	providers := make(map[Provider]OAuthProvider)
	if cfg.Google.ClientID != "" {
		providers[ProviderGoogle] = NewGoogleProvider(cfg.Google)
	}
	if cfg.Facebook.ClientID != "" {
		providers[ProviderFacebook] = NewFacebookProvider(cfg.Facebook)
	}
	return providers
}

type GoogleProvider struct {
	cfg *oauth2.Config
}

func NewGoogleProvider(cfg config.OAuthProviderConfig) *GoogleProvider {
	return &GoogleProvider{cfg: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.CallbackURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "profile", "email"},
	}}
}

func (p *GoogleProvider) Name() Provider {
	return ProviderGoogle
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}

	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(p.cfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("google userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}

	return &OAuthProfile{
		Provider:    ProviderGoogle,
		ProviderID:  info.Id,
		DisplayName: info.Name,
		Email:       info.Email,
	}, nil
}

const facebookProfileURL = "https://graph.facebook.com/me?fields=id,name,email"

type FacebookProvider struct {
	cfg        *oauth2.Config
	profileURL string
}

func NewFacebookProvider(cfg config.OAuthProviderConfig) *FacebookProvider {
	return &FacebookProvider{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email"},
		},
		profileURL: facebookProfileURL,
	}
}

func (p *FacebookProvider) Name() Provider {
	return ProviderFacebook
}

func (p *FacebookProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

func (p *FacebookProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("facebook code exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook profile: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding facebook profile: %w", err)
	}

	return &OAuthProfile{
		Provider:    ProviderFacebook,
		ProviderID:  body.ID,
		DisplayName: body.Name,
		Email:       body.Email,
	}, nil
}
