package service

import (
	"context"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
)

// AuthService defines methods for authentication operations.
// Failures the caller can act on are *domain.AuthError values.
type AuthService interface {
	Register(ctx context.Context, fullName, email, password string, meta domain.ClientMeta) (*AuthResult, error)
	Login(ctx context.Context, email, password string, meta domain.ClientMeta) (*AuthResult, error)
	IssueSession(ctx context.Context, user *domain.User, meta domain.ClientMeta) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	ValidateAccessToken(ctx context.Context, token string) (*domain.TokenClaims, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, query domain.ListUsersQuery) (*domain.UserPage, error)
}

// EventPublisher hands lifecycle events to the notification pipeline
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload domain.EventPayload) error
}

// TokenSigner signs and verifies access tokens
type TokenSigner interface {
	GenerateAccessToken(user *domain.User) (string, error)
	ValidateToken(token string) (*domain.TokenClaims, error)
	GetAccessTokenExpiry() int
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string)
}
