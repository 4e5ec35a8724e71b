// Package service contains the BookWorm business logic between the HTTP API
// and the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookwormapp/bookworm/internal/auth"
	"github.com/bookwormapp/bookworm/internal/color"
	"github.com/bookwormapp/bookworm/internal/domain"
	domainerrors "github.com/bookwormapp/bookworm/internal/errors"
	"github.com/bookwormapp/bookworm/internal/id"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/normalize"
	"github.com/bookwormapp/bookworm/internal/store"
	"github.com/bookwormapp/bookworm/internal/validation"
)

// Messages returned to clients; the mobile app displays them verbatim.
const (
	msgAllFieldsRequired  = "All fields are required"
	msgEmailExists        = "Email already exists"
	msgUsernameExists     = "Username already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorized       = "Unauthorized"
	msgInvalidToken       = "Token is not valid"
)

// AuthService handles registration, login and bearer token resolution.
type AuthService struct {
	store     store.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(store store.Store, tokens *auth.TokenService, log *slog.Logger) *AuthService {
	return &AuthService{
		store:     store,
		tokens:    tokens,
		validator: validation.New(validation.WithRequiredMessage(msgAllFieldsRequired)),
		logger:    logger.OrDiscard(log),
	}
}

// RegisterRequest contains the data for a new account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=1024"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is the authenticated user and a fresh bearer token.
type AuthResponse struct {
	User  *domain.User
	Token string
}

// Register creates an account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Username = normalize.DisplayName(req.Username)
	req.Email = strings.TrimSpace(req.Email)

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

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		ProfileImage: color.AvatarURL(req.Username, userID),
	}
	user.ID = userID
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrEmailExists):
			return nil, domainerrors.AlreadyExists(msgEmailExists)
		case errors.Is(err, store.ErrUsernameExists):
			return nil, domainerrors.AlreadyExists(msgUsernameExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)

	return &AuthResponse{User: user, Token: token}, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller, including in timing.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			auth.BurnPasswordCheck(req.Password)
			return nil, domainerrors.InvalidCredentials(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.Debug("login rejected", "user_id", user.ID)
		return nil, domainerrors.InvalidCredentials(msgInvalidCredentials)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)

	return &AuthResponse{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user. Invalid or expired tokens
// and tokens of deleted users are all 401s.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized(msgInvalidToken).WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.Unauthorized(msgUnauthorized)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
