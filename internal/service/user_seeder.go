package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"go.uber.org/zap"
)

// SeedAccount is a privileged account created at startup if its email is free
type SeedAccount struct {
	FullName string
	Email    string
	Password string
	Role     domain.Role
}

// UserSeeder creates bootstrap accounts. Existing emails are left untouched.
type UserSeeder struct {
	users  repository.UserRepository
	hasher PasswordHasher
	logger *zap.Logger
}

func NewUserSeeder(users repository.UserRepository, hasher PasswordHasher, logger *zap.Logger) *UserSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserSeeder{users: users, hasher: hasher, logger: logger}
}

// Seed creates every account whose email is not taken and returns how many it created.
// Accounts with an empty email are skipped.
func (s *UserSeeder) Seed(ctx context.Context, accounts []SeedAccount) (int, error) {
	created := 0

	for _, account := range accounts {
		email := utils.SanitizeEmail(account.Email)
		if email == "" {
			continue
		}

		if !account.Role.Valid() {
			return created, fmt.Errorf("seed account %s has unknown role %q", email, account.Role)
		}
		if fields := utils.ValidateRegistration(account.FullName, email, account.Password); fields != nil {
			return created, fmt.Errorf("seed account %s: %w", email, domain.ValidationError(fields))
		}

		ok, err := s.seedOne(ctx, account, email)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	return created, nil
}

func (s *UserSeeder) seedOne(ctx context.Context, account SeedAccount, email string) (bool, error) {
	log := s.logger.With(zap.String("email", email), zap.String("role", string(account.Role)))

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		log.Info("seed user already exists, skipping")
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("failed to check seed user %s: %w", email, err)
	}

	passwordHash, err := s.hasher.Hash(account.Password)
	if err != nil {
		return false, err
	}

	user := &domain.User{
		FullName:      strings.TrimSpace(account.FullName),
		Email:         &email,
		PasswordHash:  passwordHash,
		EmailVerified: true,
		Role:          account.Role,
		IsActive:      true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// another replica seeded it first
		if errors.Is(err, repository.ErrDuplicateEmail) {
			log.Info("seed user already exists, skipping")
			return false, nil
		}
		return false, fmt.Errorf("failed to create seed user %s: %w", email, err)
	}

	log.Info("seed user created", zap.String("user_id", user.ID))
	return true, nil
}
