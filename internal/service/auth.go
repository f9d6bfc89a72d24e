// Package service contains the application services sitting between the
// HTTP handlers and the store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/threadstash/threadstash-server/internal/auth"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// AuthService handles the single-owner account: setup, login, token
// refresh, and access token verification.
type AuthService struct {
	store        store.Store
	tokenService *auth.TokenService
	validator    *validation.Validator
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(st store.Store, tokenService *auth.TokenService, validator *validation.Validator, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:        st,
		tokenService: tokenService,
		validator:    validator,
		logger:       logger,
	}
}

// SetupRequest contains the initial owner account data.
type SetupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// LoginRequest contains the owner's credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest contains the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse contains authentication tokens and the account.
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // access token lifetime in seconds
	SessionID    string       `json:"session_id"`
}

// Setup creates the owner account. It can only be used once; any later
// call fails with an already-exists error.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		CreatedAt:    now,
		LastLoginAt:  now,
	}

	if err := s.store.CreateAccount(ctx, user); err != nil {
		return nil, err
	}

	resp, err := s.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("owner account created", "user_id", userID, "email", user.Email)
	return resp, nil
}

// Login authenticates the owner and creates a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// Don't leak whether the email exists
			return nil, errors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, errors.InvalidCredentials("invalid email or password")
	}

	user.LastLoginAt = time.Now()
	if err := s.store.UpdateAccount(ctx, user); err != nil {
		// Stale last-login is not worth failing the login over
		s.logger.Warn("failed to update last login time", "user_id", user.ID, "error", err)
	}

	resp, err := s.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("owner logged in", "user_id", user.ID)
	return resp, nil
}

// RefreshTokens rotates a refresh token: the presented token's session is
// replaced by a new one with fresh tokens.
func (s *AuthService) RefreshTokens(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.store.GetSessionByRefreshToken(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	if session.IsExpired() {
		// Expired sessions are pruned lazily; drop it now that we've seen it
		if err := s.store.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", "session_id", session.ID, "error", err)
		}
		return nil, errors.TokenExpired("refresh token expired")
	}

	user, err := s.store.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if user.ID != session.UserID {
		return nil, errors.Unauthorized("session does not match the owner account")
	}

	// Rotation: the old session dies with the old token
	if err := s.store.DeleteSession(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("delete rotated session: %w", err)
	}

	return s.createSession(ctx, user)
}

// Logout revokes a session, invalidating its refresh token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	err := s.store.DeleteSession(ctx, sessionID)
	if errors.Is(err, errors.ErrNotFound) {
		// Already gone; logout is idempotent
		return nil
	}
	return err
}

// LogoutAll revokes every session.
func (s *AuthService) LogoutAll(ctx context.Context) error {
	return s.store.DeleteAllSessions(ctx)
}

// VerifyAccessToken validates a token and returns the account it belongs to.
// Used by the authentication middleware.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, errors.Unauthorized("invalid token").WithCause(err)
	}

	user, err := s.store.GetAccount(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil, errors.Unauthorized("account not found")
		}
		return nil, nil, fmt.Errorf("get account: %w", err)
	}
	if user.ID != claims.UserID {
		return nil, nil, errors.Unauthorized("token does not match the owner account")
	}

	return user, claims, nil
}

// PruneExpiredSessions deletes sessions whose refresh tokens have lapsed.
// Called periodically by the server.
func (s *AuthService) PruneExpiredSessions(ctx context.Context) error {
	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("pruned expired sessions", "count", n)
	}
	return nil
}

func (s *AuthService) createSession(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokenService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.tokenService.RefreshTokenDuration()),
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.tokenService.AccessTokenDuration().Seconds()),
		SessionID:    sessionID,
	}, nil
}
