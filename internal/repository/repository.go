package repository

import (
	"errors"

	"github.com/lib/pq"
	"github.com/prperemyshlev/auth-notification-service/pkg/database"
)

// Sentinel errors shared by every store implementation
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrDuplicateUsername = errors.New("username already in use")
	ErrDuplicateToken    = errors.New("token hash already stored")
)

// Repositories holds all repository interfaces
type Repositories struct {
	User              UserRepository
	Token             TokenRepository
	VerificationToken VerificationTokenRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:              NewUserRepository(db),
		Token:             NewTokenRepository(db),
		VerificationToken: NewVerificationTokenRepository(db),
	}
}

// uniqueViolation returns the violated constraint name, if err is a unique_violation
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return pqErr.Constraint, true
	}
	return "", false
}
