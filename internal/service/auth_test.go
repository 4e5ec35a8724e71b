package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwormapp/bookworm/internal/auth"
	domainerrors "github.com/bookwormapp/bookworm/internal/errors"
)

func TestAuthService_Register_Success(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := env.auth.Register(context.Background(), RegisterRequest{
		Username: "  reader  ",
		Email:    "reader@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.Equal(t, "reader", resp.User.Username)
	assert.NotEmpty(t, resp.User.ID)
	assert.NotEqual(t, "secret123", resp.User.PasswordHash)
	assert.Contains(t, resp.User.ProfileImage, "seed=reader")
	assert.NotEmpty(t, resp.Token)

	claims, err := env.tokens.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestAuthService_Register_Validation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     RegisterRequest
		message string
	}{
		{
			name:    "missing fields",
			req:     RegisterRequest{Username: "reader"},
			message: "All fields are required",
		},
		{
			name:    "short username",
			req:     RegisterRequest{Username: "ab", Email: "ab@example.com", Password: "secret123"},
			message: "username must be at least 3 characters",
		},
		{
			name:    "short password",
			req:     RegisterRequest{Username: "reader", Email: "reader@example.com", Password: "abc"},
			message: "password must be at least 6 characters",
		},
		{
			name:    "bad email",
			req:     RegisterRequest{Username: "reader", Email: "nope", Password: "secret123"},
			message: "email must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Equal(t, tt.message, domainErr.Message)
		})
	}
}

func TestAuthService_Register_Duplicates(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "reader")

	_, err := env.auth.Register(ctx, RegisterRequest{
		Username: "someone",
		Email:    "READER@example.com",
		Password: "secret123",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeAlreadyExists, domainErr.Code)
	assert.Equal(t, "Email already exists", domainErr.Message)

	_, err = env.auth.Register(ctx, RegisterRequest{
		Username: "Reader",
		Email:    "other@example.com",
		Password: "secret123",
	})
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Username already exists", domainErr.Message)
}

func TestAuthService_Login(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	registered := env.registerUser(t, "reader")

	resp, err := env.auth.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)
	assert.NotEmpty(t, resp.Token)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "reader")

	for _, req := range []LoginRequest{
		{Email: "reader@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret123"},
	} {
		_, err := env.auth.Login(ctx, req)
		var domainErr *domainerrors.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)
		assert.Equal(t, "Invalid credentials", domainErr.Message)
		assert.Equal(t, 401, domainErr.HTTPStatus())
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	registered := env.registerUser(t, "reader")

	user, err := env.auth.Authenticate(ctx, registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, user.ID)
}

func TestAuthService_Authenticate_Rejects(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Authenticate(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// A token from another key is just as invalid.
	otherKey, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	other, err := auth.NewTokenService(otherKey, time.Hour)
	require.NoError(t, err)

	registered := env.registerUser(t, "reader")
	foreign, err := other.GenerateToken(registered.User)
	require.NoError(t, err)

	_, err = env.auth.Authenticate(ctx, foreign)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}
