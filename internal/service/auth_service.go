package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// authService implements AuthService interface
type authService struct {
	userRepo         repository.UserRepository
	verificationRepo repository.VerificationTokenRepository
	refreshTokens    *RefreshTokenService
	signer           TokenSigner
	hasher           PasswordHasher
	publisher        EventPublisher
	publishTimeout   time.Duration
	logger           *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repository.UserRepository,
	verificationRepo repository.VerificationTokenRepository,
	refreshTokens *RefreshTokenService,
	signer TokenSigner,
	hasher PasswordHasher,
	publisher EventPublisher,
	publishTimeout time.Duration,
	logger *zap.Logger,
) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &authService{
		userRepo:         userRepo,
		verificationRepo: verificationRepo,
		refreshTokens:    refreshTokens,
		signer:           signer,
		hasher:           hasher,
		publisher:        publisher,
		publishTimeout:   publishTimeout,
		logger:           logger,
	}
}

// Register registers a new user and starts a session for them
func (s *authService) Register(ctx context.Context, fullName, email, password string, meta domain.ClientMeta) (*AuthResult, error) {
	email = utils.SanitizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	if fields := utils.ValidateRegistration(fullName, email, password); fields != nil {
		return nil, domain.ValidationError(fields)
	}

	// Hash before the lookup so a taken email costs the same as a free one
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	_, err = s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, domain.ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	user := &domain.User{
		FullName:      fullName,
		Email:         &email,
		PasswordHash:  passwordHash,
		EmailVerified: false,
		Role:          domain.RoleUser,
		IsActive:      true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	s.publish(ctx, domain.EventUserRegistered, user)

	session, err := s.IssueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Session: session}, nil
}

// Login authenticates a user by email and password
func (s *authService) Login(ctx context.Context, email, password string, meta domain.ClientMeta) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			s.logger.Debug("login failed", zap.String("reason", "unknown email"))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Debug("login failed", zap.String("reason", "wrong password"), zap.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug("login failed", zap.String("reason", "inactive"), zap.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	now := s.refreshTokens.clock()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	session, err := s.IssueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Session: session}, nil
}

// Refresh rotates the refresh token and returns a new session
func (s *authService) Refresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (*AuthResult, error) {
	result, err := s.refreshTokens.Rotate(ctx, refreshToken, meta)
	if err != nil {
		if kind, ok := domain.KindOf(err); ok {
			s.logger.Info("refresh refused", zap.String("kind", string(kind)))
		}
		return nil, err
	}

	return &AuthResult{
		User:    result.User,
		Session: s.session(result.AccessToken, result.RefreshToken),
	}, nil
}

// Logout revokes a single refresh token
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.refreshTokens.Revoke(ctx, refreshToken)
}

// LogoutAll revokes every valid refresh token of the user
func (s *authService) LogoutAll(ctx context.Context, userID string) error {
	_, err := s.refreshTokens.RevokeAllForUser(ctx, userID)
	return err
}

// VerifyEmail spends a verification token and marks its user's email verified
func (s *authService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	hash := utils.HashToken(token)
	now := s.refreshTokens.clock()

	record, err := s.verificationRepo.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("verification failed", zap.String("reason", "unknown token"))
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}

	if !record.IsUsable(now) {
		s.logger.Debug("verification failed", zap.String("reason", "expired or used"), zap.String("user_id", record.UserID))
		return nil, domain.ErrInvalidOrExpiredToken
	}

	consumed, verified, err := s.verificationRepo.ConsumeAndVerify(ctx, hash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}
	if !consumed {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	if !verified {
		s.logger.Debug("verification failed", zap.String("reason", "already verified"), zap.String("user_id", record.UserID))
		return nil, domain.ErrInvalidOrExpiredToken
	}

	user, err := s.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	s.logger.Info("email verified", zap.String("user_id", user.ID))
	s.publish(ctx, domain.EventUserEmailVerified, user)

	return user, nil
}

// ValidateAccessToken verifies an access token without touching any store
func (s *authService) ValidateAccessToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	claims, err := s.signer.ValidateToken(token)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidToken, "invalid token", err)
	}
	return claims, nil
}

// GetUser returns a non-deleted user by ID
func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns one page of users
func (s *authService) ListUsers(ctx context.Context, query domain.ListUsersQuery) (*domain.UserPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}
	if !strings.EqualFold(query.SortOrder, "asc") {
		query.SortOrder = "desc"
	}

	users, total, err := s.userRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &domain.UserPage{
		Users: users,
		Total: total,
		Page:  query.Page,
		Limit: query.Limit,
	}, nil
}

// publish hands an event to the publisher. Failures are logged and never reach the caller.
func (s *authService) publish(ctx context.Context, name string, user *domain.User) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	payload := domain.EventPayload{
		UserID:   user.ID,
		Email:    user.EmailAddress(),
		FullName: user.FullName,
	}

	if err := s.publisher.Publish(ctx, name, payload); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event", name),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}
