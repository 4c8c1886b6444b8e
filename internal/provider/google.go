// Package provider holds the OAuth provider integrations. Each provider
// implements service.ProviderExchange over the shared retrying HTTP client.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/service"
	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/httpclient"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// HTTPClient is the outbound client surface a provider needs. Both
// httpclient.Client and httpclient.CircuitBreakerClient satisfy it.
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Post(ctx context.Context, url string, contentType string, body io.Reader) (*http.Response, error)
}

// GoogleConfig carries the OAuth client registration for Google.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Google exchanges Google authorization codes for identities.
type Google struct {
	cfg    GoogleConfig
	client HTTPClient

	// Endpoint overrides for tests.
	tokenURL    string
	userInfoURL string
}

// NewGoogle creates a Google provider with the given client registration.
func NewGoogle(cfg GoogleConfig, client HTTPClient) *Google {
	return &Google{
		cfg:         cfg,
		client:      client,
		tokenURL:    googleTokenURL,
		userInfoURL: googleUserInfoURL,
	}
}

// Name returns the provider identifier.
func (g *Google) Name() string {
	return "google"
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange redeems the authorization code at Google's token endpoint and
// fetches the user's OpenID Connect profile.
func (g *Google) Exchange(ctx context.Context, code string) (*service.ProviderIdentity, error) {
	token, err := g.redeemCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := g.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	// Google only vouches for the email claim when email_verified is set;
	// an unverified email must never reach the account-matching logic.
	if !info.EmailVerified {
		return nil, apperrors.Unauthorized("google account email is not verified")
	}

	identity := &service.ProviderIdentity{
		Provider:          g.Name(),
		ProviderAccountID: info.Sub,
		Email:             info.Email,
		DisplayName:       info.Name,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
	}

	if token.ExpiresIn > 0 {
		expiry := time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
		identity.TokenExpiresAt = &expiry
	}

	return identity, nil
}

func (g *Google) redeemCode(ctx context.Context, code string) (*googleTokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"redirect_uri":  {g.cfg.RedirectURI},
	}

	resp, err := g.client.Post(ctx, g.tokenURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("google token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "google")
	}

	var token googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode google token response: %w", err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("google token response missing access token")
	}

	return &token, nil
}

func (g *Google) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("google userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "google")
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode google userinfo response: %w", err)
	}

	if info.Sub == "" {
		return nil, fmt.Errorf("google userinfo response missing subject")
	}

	return &info, nil
}
