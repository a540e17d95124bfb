package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mazadapp/mazad/internal/auth"
	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/platform/google"
)

// GoogleExchanger is the part of the Google OAuth client the auth flow needs.
type GoogleExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (google.Profile, error)
}

// AuthService registers accounts, verifies credentials, and mints API
// tokens. Tokens are stored as SHA-256 digests only.
type AuthService struct {
	users  domain.UserStore
	google GoogleExchanger
	clock  clock.Clock
	logger *slog.Logger
}

// NewAuthService creates an AuthService. googleClient may be nil when the
// OAuth flow is not configured.
func NewAuthService(users domain.UserStore, googleClient GoogleExchanger, clk clock.Clock, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		google: googleClient,
		clock:  clk,
		logger: logger,
	}
}

// Register creates a password-backed account and returns it with a fresh
// API token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if name == "" {
		return domain.User{}, "", domain.Validationf("name", "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, "", domain.Validationf("email", "a valid email is required")
	}
	if len(password) < 8 {
		return domain.User{}, "", domain.Validationf("password", "password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("auth_service: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.User{}, "", domain.Validationf("email", "an account with this email already exists")
		}
		return domain.User{}, "", fmt.Errorf("auth_service: create user: %w", err)
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", err
	}

	s.logger.InfoContext(ctx, "auth_service: user registered", slog.String("user_id", user.ID))
	return user, token, nil
}

// Login verifies the email/password pair and mints a new API token.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", fmt.Errorf("auth_service: %w", domain.ErrUnauthorized)
		}
		return domain.User{}, "", fmt.Errorf("auth_service: load user: %w", err)
	}
	if user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, password) {
		return domain.User{}, "", fmt.Errorf("auth_service: %w", domain.ErrUnauthorized)
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Logout revokes all of the user's API tokens.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.DeleteTokensForUser(ctx, userID); err != nil {
		return fmt.Errorf("auth_service: revoke tokens: %w", err)
	}
	return nil
}

// GoogleAuthURL returns the consent URL for the OAuth flow.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", fmt.Errorf("auth_service: google sign-in is not configured")
	}
	return s.google.AuthURL(state), nil
}

// GoogleCallback finishes the OAuth flow: it exchanges the code, upserts the
// account by email, and mints an API token.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (domain.User, string, error) {
	if s.google == nil {
		return domain.User{}, "", fmt.Errorf("auth_service: google sign-in is not configured")
	}
	if code == "" {
		return domain.User{}, "", domain.Validationf("code", "authorization code is required")
	}

	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("auth_service: google exchange: %w", err)
	}

	googleID := profile.Sub
	user, err := s.users.UpsertByEmail(ctx, domain.User{
		ID:        uuid.NewString(),
		Name:      profile.Name,
		Email:     normalizeEmail(profile.Email),
		GoogleID:  &googleID,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, "", fmt.Errorf("auth_service: upsert user: %w", err)
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", err
	}

	s.logger.InfoContext(ctx, "auth_service: google sign-in", slog.String("user_id", user.ID))
	return user, token, nil
}

// UserByToken resolves a plaintext bearer token to its user.
func (s *AuthService) UserByToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	user, err := s.users.GetUserByTokenDigest(ctx, auth.Digest(token))
	if err != nil {
		return domain.User{}, fmt.Errorf("auth_service: resolve token: %w", err)
	}
	return user, nil
}

func (s *AuthService) issueToken(ctx context.Context, userID string) (string, error) {
	plaintext, digest, err := auth.NewToken()
	if err != nil {
		return "", fmt.Errorf("auth_service: %w", err)
	}
	if err := s.users.InsertToken(ctx, userID, digest, s.clock.Now().UTC()); err != nil {
		return "", fmt.Errorf("auth_service: store token: %w", err)
	}
	return plaintext, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
