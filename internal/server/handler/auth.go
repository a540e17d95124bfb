package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/server/middleware"
)

// AuthService defines what the auth handler needs from the service layer.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (domain.User, string, error)
	Login(ctx context.Context, email, password string) (domain.User, string, error)
	Logout(ctx context.Context, userID string) error
	GoogleAuthURL(state string) (string, error)
	GoogleCallback(ctx context.Context, code string) (domain.User, string, error)
}

// AuthHandler serves registration, login, and the Google OAuth flow.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// Register creates a new account.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: register failed", slog.String("error", err.Error()))
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{User: toUserResponse(user), Token: token})
}

// Login verifies credentials and mints a token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(user), Token: token})
}

// Logout revokes all tokens of the authenticated user.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: logout failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the authenticated user's profile.
// GET /api/user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// GoogleRedirect sends the client to the Google consent screen.
// GET /api/auth/google
func (h *AuthHandler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.GoogleAuthURL(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, http.StatusNotImplemented, "google sign-in is not configured")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback finishes the OAuth flow.
// GET /api/auth/google/callback?code=...
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	user, token, err := h.auth.GoogleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: google callback failed", slog.String("error", err.Error()))
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(user), Token: token})
}
