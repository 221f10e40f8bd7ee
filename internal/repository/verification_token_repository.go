package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/pkg/database"
)

type verificationTokenRepository struct {
	db *database.Postgres
}

// NewVerificationTokenRepository creates a new verification token repository
func NewVerificationTokenRepository(db *database.Postgres) VerificationTokenRepository {
	return &verificationTokenRepository{db: db}
}

// Create stores a verification token hash
func (r *verificationTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("verification token with hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a verification token by its hash
func (r *verificationTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.VerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM email_verification_tokens
		WHERE token_hash = $1
	`

	token := &domain.VerificationToken{}
	var usedAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&usedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}

	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}

	return token, nil
}

// ConsumeAndVerify spends the token and flips its user's email_verified flag in one transaction
func (r *verificationTokenRepository) ConsumeAndVerify(ctx context.Context, tokenHash string, now time.Time) (bool, bool, error) {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	consumeQuery := `
		UPDATE email_verification_tokens
		SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING user_id
	`

	var userID string
	if err := tx.QueryRowContext(ctx, consumeQuery, tokenHash, now).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to consume verification token: %w", err)
	}

	verifyQuery := `
		UPDATE users
		SET email_verified = true, updated_at = $2
		WHERE id = $1 AND email_verified = false AND deleted_at IS NULL
	`

	result, err := tx.ExecContext(ctx, verifyQuery, userID, now)
	if err != nil {
		return false, false, fmt.Errorf("failed to mark email verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, false, fmt.Errorf("failed to commit verification: %w", err)
	}

	return true, rowsAffected == 1, nil
}
