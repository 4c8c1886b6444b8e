package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/service"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/httputil"
)

// OAuthHandler handles HTTP requests for provider sign-in and linking.
type OAuthHandler struct {
	oauthService *service.OAuthService
	authService  *service.AuthService
	logger       *slog.Logger
}

// NewOAuthHandler creates a new OAuth HTTP handler.
func NewOAuthHandler(oauthSvc *service.OAuthService, authSvc *service.AuthService, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{oauthService: oauthSvc, authService: authSvc, logger: logger}
}

// CallbackRequest is the JSON request body for completing a provider callback.
type CallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

// Callback handles POST /api/v1/oauth/{provider}/callback
//
// The endpoint is public: signed-out visitors use it to sign in or create an
// account, and signed-in callers attach the provider to their own account by
// sending their usual bearer token.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := service.CallbackInput{
		Provider: chi.URLParam(r, "provider"),
		Code:     req.Code,
	}

	// A bearer token is optional here; a bad one is still rejected.
	if header := r.Header.Get("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		identity, err := h.authService.VerifyToken(token)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		input.AccountID = identity.AccountID
	}

	account, tokens, err := h.oauthService.Callback(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AuthResponse{Account: account, Tokens: tokens},
	})
}

// ListLinks handles GET /api/v1/oauth/links
func (h *OAuthHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	links, err := h.oauthService.ListLinks(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: links})
}

// Unlink handles DELETE /api/v1/oauth/{provider}
func (h *OAuthHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	provider := chi.URLParam(r, "provider")
	if err := h.oauthService.Unlink(r.Context(), accountID, provider); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"provider": provider, "status": "unlinked"},
	})
}
