package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kopa-app/kopa-server/internal/auth"
	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/id"
	"github.com/kopa-app/kopa-server/internal/store"
	"github.com/kopa-app/kopa-server/internal/validation"
)

// AuthService handles login, token verification and account creation.
type AuthService struct {
	store        store.Store
	tokenService *auth.TokenService
	validator    *validation.Validator
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(s store.Store, tokenService *auth.TokenService, v *validation.Validator, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:        s,
		tokenService: tokenService,
		validator:    v,
		logger:       logger,
	}
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=1024"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Login authenticates a user by email and password and issues an access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't leak whether the email exists.
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, storageErr(err, "failed to look up user")
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	now := time.Now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login time", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = now
	}

	token, expiresAt, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", string(user.Role))

	return &AuthResponse{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// Authenticate verifies an access token and returns its claims with the
// user's current role, so role changes apply without a new login.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, storageErr(err, "failed to load user")
	}

	claims.Role = user.Role
	return claims, nil
}

// CreateUserRequest contains the fields of a new account.
type CreateUserRequest struct {
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string      `json:"display_name" validate:"max=100"`
	Role        domain.Role `json:"role" validate:"omitempty,oneof=admin moderator member"`
}

// CreateUser registers an account. The role defaults to member.
func (s *AuthService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}

	hash, err := auth.HashPassword(req.Password)
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
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Duplicate("email is already registered")
		}
		return nil, storageErr(err, "failed to create user")
	}

	s.logger.Info("user created", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}
