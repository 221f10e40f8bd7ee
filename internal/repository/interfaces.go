package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
)

// UserRepository defines methods for user operations.
// Lookups ignore soft-deleted users and report absence as ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	// MarkEmailVerified flips the verified flag and reports whether this call did it
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) (bool, error)
	List(ctx context.Context, query domain.ListUsersQuery) ([]*domain.User, int, error)
}

// TokenRepository defines methods for refresh token operations.
// Revocation methods only touch tokens that are valid at now, so they are safe to race.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	GetValidByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error)
	// Revoke reports whether this call moved the token from valid to revoked
	Revoke(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)
}

// VerificationTokenRepository defines methods for email verification tokens
type VerificationTokenRepository interface {
	Create(ctx context.Context, token *domain.VerificationToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.VerificationToken, error)
	// ConsumeAndVerify spends a usable token and marks its user verified, atomically.
	// consumed is false when the token was unknown, used or expired; verified reports whether this call flipped the flag.
	// On error neither change is kept.
	ConsumeAndVerify(ctx context.Context, tokenHash string, now time.Time) (consumed, verified bool, err error)
}
