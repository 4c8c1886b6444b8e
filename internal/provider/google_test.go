package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/httpclient"
)

func newTestGoogle(t *testing.T, tokenHandler, userInfoHandler http.HandlerFunc) *Google {
	t.Helper()

	tokenSrv := httptest.NewServer(tokenHandler)
	t.Cleanup(tokenSrv.Close)
	infoSrv := httptest.NewServer(userInfoHandler)
	t.Cleanup(infoSrv.Close)

	g := NewGoogle(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://portal.example.edu/oauth/google/callback",
	}, httpclient.New(httpclient.DefaultConfig()))
	g.tokenURL = tokenSrv.URL
	g.userInfoURL = infoSrv.URL
	return g
}

func TestGoogleExchange_Success(t *testing.T) {
	g := newTestGoogle(t,
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			assert.Equal(t, "code-123", r.PostForm.Get("code"))
			assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "ya29.access",
				"refresh_token": "1//refresh",
				"expires_in":    3600,
				"token_type":    "Bearer",
			})
		},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer ya29.access", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{
				"sub":            "google-sub-1",
				"email":          "maya@example.edu",
				"email_verified": true,
				"name":           "Maya",
			})
		},
	)

	identity, err := g.Exchange(context.Background(), "code-123")

	require.NoError(t, err)
	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "google-sub-1", identity.ProviderAccountID)
	assert.Equal(t, "maya@example.edu", identity.Email)
	assert.Equal(t, "Maya", identity.DisplayName)
	assert.Equal(t, "ya29.access", identity.AccessToken)
	require.NotNil(t, identity.TokenExpiresAt)
}

func TestGoogleExchange_BadCode(t *testing.T) {
	g := newTestGoogle(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		},
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("userinfo must not be called when the code exchange fails")
		},
	)

	_, err := g.Exchange(context.Background(), "bad-code")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGoogleExchange_UnverifiedEmail(t *testing.T) {
	g := newTestGoogle(t,
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "ya29.access"})
		},
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"sub":            "google-sub-1",
				"email":          "maya@example.edu",
				"email_verified": false,
				"name":           "Maya",
			})
		},
	)

	_, err := g.Exchange(context.Background(), "code-123")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.ErrorContains(t, err, "not verified")
}

func TestGoogleExchange_MissingSubject(t *testing.T) {
	g := newTestGoogle(t,
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "ya29.access"})
		},
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"email": "maya@example.edu"})
		},
	)

	_, err := g.Exchange(context.Background(), "code-123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing subject")
}
