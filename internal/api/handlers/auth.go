package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mealweek/internal/core"
	"mealweek/internal/types"
)

// AuthServiceInterface defines the session operations the auth handler needs.
// Matches auth.Service.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (token string, expiresAt time.Time, err error)
	Logout(ctx context.Context, token string) error
}

// loginRequest is the wire shape of POST /v1/auth/login.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// loginResponse carries the opaque session token. The token is returned
// exactly once; only its hash is stored server-side.
type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthHandler maps HTTP requests to the session service.
type AuthHandler struct {
	service   AuthServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the provided dependencies.
func NewAuthHandler(svc AuthServiceInterface, validator *core.Validator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:   svc,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the auth endpoints onto the mux.
// Login is exempt from the auth middleware; logout is not.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
	})
}

// HandleLogin handles POST /v1/auth/login.
// Credential failures all map to auth_invalid_credentials so the response
// does not reveal whether the email exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	token, expiresAt, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}})
}

// HandleLogout handles POST /v1/auth/logout.
// Idempotent: logging out an already-dead session still returns 204.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := core.ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Bearer token is required",
			nil,
		))
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
