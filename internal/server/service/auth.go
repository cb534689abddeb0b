package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chemflow/internal/server/database"
)

// Sentinel errors for authentication.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidToken       = errors.New("invalid or unknown token")
)

// UserInfo is the public view of an account returned to clients.
type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// AuthService issues and resolves bearer credentials.
type AuthService struct {
	repo *database.Repository
}

// NewAuthService creates a new auth service.
func NewAuthService(repo *database.Repository) *AuthService {
	return &AuthService{repo: repo}
}

// Register creates an account and issues its bearer token.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrUsernameExists) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	key, err := generateTokenKey()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateToken(ctx, key, user.ID); err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)

	return &AuthResult{
		Token: key,
		User:  UserInfo{ID: user.ID, Username: user.Username, Email: user.Email},
	}, nil
}

// Login verifies a username/password pair and returns the account's
// bearer token, issuing one if none exists yet.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	key, err := s.repo.GetTokenByUser(ctx, user.ID)
	if errors.Is(err, database.ErrTokenNotFound) {
		key, err = generateTokenKey()
		if err != nil {
			return nil, err
		}
		if err := s.repo.CreateToken(ctx, key, user.ID); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token: key,
		User:  UserInfo{ID: user.ID, Username: user.Username, Email: user.Email},
	}, nil
}

// Authenticate resolves a bearer token key to its account.
func (s *AuthService) Authenticate(ctx context.Context, key string) (*database.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByToken(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// generateTokenKey produces a 40-character hex bearer token key.
func generateTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand failure: %w", err)
	}
	return hex.EncodeToString(b), nil
}
