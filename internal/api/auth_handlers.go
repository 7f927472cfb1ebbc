package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kopa-app/kopa-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Log in",
		Description: "Exchanges email and password for a bearer access token. Rate limited per client address.",
		Tags:        []string{"Auth"},
		Middlewares: huma.Middlewares{rateLimitOperation(s.api, s.loginLimiter, s.logger)},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/me",
		Summary:     "Current user",
		Description: "Returns the authenticated user",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)
}

// LoginBody is the request body for logging in.
type LoginBody struct {
	Email    string `json:"email" required:"false" doc:"Account email"`
	Password string `json:"password" required:"false" doc:"Account password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginBody
}

// AuthOutput wraps the login response for Huma.
type AuthOutput struct {
	Body *service.AuthResponse
}

// UserOutput wraps a user for Huma.
type UserOutput struct {
	Body UserResponse
}

// UserResponse is the authenticated user as shown to themselves.
type UserResponse struct {
	ID                     string `json:"id" doc:"User ID"`
	Email                  string `json:"email" doc:"Email address"`
	DisplayName            string `json:"display_name" doc:"Display name"`
	Role                   string `json:"role" doc:"admin, moderator or member"`
	PendingSuggestionCount int    `json:"pending_suggestion_count" doc:"Suggestions awaiting review"`
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: resp}, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	claims, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, huma.Error401Unauthorized("User not found")
	}

	return &UserOutput{Body: UserResponse{
		ID:                     user.ID,
		Email:                  user.Email,
		DisplayName:            user.DisplayName,
		Role:                   string(user.Role),
		PendingSuggestionCount: user.PendingSuggestionCount,
	}}, nil
}
