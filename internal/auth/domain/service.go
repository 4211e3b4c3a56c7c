package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
	ErrWeakPassword       = errors.New("weak_password")
)

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest authenticates by email and password.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Service exposes account and session operations.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*Session, *User, error)
	Authenticate(ctx context.Context, token string) (*Session, *User, error)
	Logout(ctx context.Context, token string) error
	SetSessionOrg(ctx context.Context, token string, orgID snowflake.ID) error
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
}
