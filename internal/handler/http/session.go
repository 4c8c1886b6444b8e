package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/service"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/httputil"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/middleware"
)

// SessionHandler handles HTTP requests for session management endpoints.
type SessionHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(svc *service.AuthService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: svc, logger: logger}
}

// List handles GET /api/v1/auth/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	infos, err := h.service.ListSessions(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	count, err := h.service.CountSessions(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]any{
			"sessions": infos,
			"count":    count,
		},
	})
}

// RevokeAll handles DELETE /api/v1/auth/sessions
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	revoked, err := h.service.RevokeAllSessions(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]int{"revoked": revoked},
	})
}

// --- Admin endpoints ---

// AdminHandler handles HTTP requests for admin account management.
type AdminHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// Suspend handles POST /api/v1/admin/accounts/{id}/suspend
func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, true)
}

// Unsuspend handles DELETE /api/v1/admin/accounts/{id}/suspend
func (h *AdminHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, false)
}

func (h *AdminHandler) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool) {
	accountID := chi.URLParam(r, "id")

	if err := h.service.SetAccountSuspended(r.Context(), accountID, suspended); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := "unsuspended"
	if suspended {
		status = "suspended"
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"id": accountID, "status": status},
	})
}

// requireAccount pulls the authenticated account ID from the request context,
// writing a 401 when it is absent.
func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "not authenticated"},
		})
		return "", false
	}
	return accountID, true
}
