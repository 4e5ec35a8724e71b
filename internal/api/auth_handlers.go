package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/auth/register",
		Summary:       "Register",
		Description:   "Creates an account and returns it with a bearer token",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusTooManyRequests},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/auth/login",
		Summary:     "Log in",
		Description: "Exchanges email and password for a bearer token",
		Tags:        []string{"Authentication"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests},
	}, s.handleLogin)
}

// === DTOs ===

// UserResponse is the public view of an account.
type UserResponse struct {
	ID           string    `json:"id" doc:"User ID"`
	Username     string    `json:"username" doc:"Display name"`
	Email        string    `json:"email" doc:"Email address"`
	ProfileImage string    `json:"profileImage" doc:"Avatar URL"`
	CreatedAt    time.Time `json:"createdAt" doc:"Account creation time"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  UserResponse `json:"user" doc:"Authenticated user"`
	Token string       `json:"token" doc:"Bearer token"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// RegisterRequest is the request body for registration.
// Fields are optional in the schema so missing ones get the service's message.
type RegisterRequest struct {
	Username string `json:"username,omitempty" doc:"Display name, at least 3 characters"`
	Email    string `json:"email,omitempty" doc:"Email address"`
	Password string `json:"password,omitempty" doc:"Password, at least 6 characters"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body RegisterRequest
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email,omitempty" doc:"Email address"`
	Password string `json:"password,omitempty" doc:"Password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Register(ctx, service.RegisterRequest{
		Username: input.Body.Username,
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return newAuthOutput(resp), nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return newAuthOutput(resp), nil
}

func newAuthOutput(resp *service.AuthResponse) *AuthOutput {
	return &AuthOutput{Body: AuthResponse{
		User:  newUserResponse(resp.User),
		Token: resp.Token,
	}}
}
