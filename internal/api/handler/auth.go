package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/mcoot/cardroom/internal/api/apierr"
	"github.com/mcoot/cardroom/internal/api/middleware"
	"github.com/mcoot/cardroom/internal/api/request"
	"github.com/mcoot/cardroom/internal/api/response"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/auth"
)

// AuthHandler handles login, logout and session endpoints
type AuthHandler struct {
	authService *auth.Service
	trustProxy  bool
	retryAfter  time.Duration
}

// NewAuthHandler creates a new auth handler. retryAfter is advertised to
// throttled callers.
func NewAuthHandler(authService *auth.Service, trustProxy bool, retryAfter time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		trustProxy:  trustProxy,
		retryAfter:  retryAfter,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	provider, err := model.ParseProvider(req.Provider)
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.authService.Login(r.Context(), auth.LoginRequest{
		Provider:    provider,
		IDToken:     req.IDToken,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		ClientKey:   middleware.ClientKey(r, h.trustProxy),
	})
	if errors.Is(err, model.ErrRateLimited) && h.retryAfter > 0 {
		err = apierr.NewRateLimitedError(h.retryAfter)
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	response.SetSessionCookie(w, middleware.SessionCookie, session.Token.Value, session.Token.ExpiresAt, r.TLS != nil)
	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.GetToken(r.Context())); err != nil {
		WriteError(w, err)
		return
	}
	response.ClearSessionCookie(w, middleware.SessionCookie)
	response.NoContent(w)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())
	response.JSON(w, http.StatusOK, response.IdentityFromModel(identity))
}

// ChangePassword handles POST /api/v1/auth/password. Every session of the
// identity, including the caller's, ends.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req request.ChangePasswordRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	if req.NewPassword == "" {
		WriteError(w, NewInvalidRequestError("new_password is required"))
		return
	}

	identity := middleware.MustGetIdentity(r.Context())
	updated, err := h.authService.ChangePassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, model.ErrRateLimited) && h.retryAfter > 0 {
		err = apierr.NewRateLimitedError(h.retryAfter)
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	response.ClearSessionCookie(w, middleware.SessionCookie)
	response.JSON(w, http.StatusOK, response.IdentityFromModel(updated))
}
