package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/errors"
)

func TestSetupAndLogin(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp := mustSetup(t, env)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "owner@example.com", resp.User.Email)

	// Setup is one-shot
	_, err := env.auth.Setup(ctx, SetupRequest{
		Email:       "second@example.com",
		Password:    "password123",
		DisplayName: "Second",
	})
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	login, err := env.auth.Login(ctx, LoginRequest{
		Email:    "owner@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	mustSetup(t, env)

	_, err := env.auth.Login(ctx, LoginRequest{
		Email:    "owner@example.com",
		Password: "wrong password",
	})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	// Unknown email gets the same error, not a not-found
	_, err = env.auth.Login(ctx, LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestSetupValidation(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.auth.Setup(context.Background(), SetupRequest{
		Email:       "not-an-email",
		Password:    "short",
		DisplayName: "Owner",
	})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRefreshRotatesToken(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp := mustSetup(t, env)

	refreshed, err := env.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)
	assert.NotEqual(t, resp.SessionID, refreshed.SessionID)

	// The old token died with the rotation
	_, err = env.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestVerifyAccessToken(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp := mustSetup(t, env)

	user, claims, err := env.auth.VerifyAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, _, err = env.auth.VerifyAccessToken(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp := mustSetup(t, env)

	require.NoError(t, env.auth.Logout(ctx, resp.SessionID))

	// Idempotent
	require.NoError(t, env.auth.Logout(ctx, resp.SessionID))

	_, err := env.auth.RefreshTokens(ctx, RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}
