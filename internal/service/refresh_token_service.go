package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"github.com/prperemyshlev/auth-notification-service/pkg/observability"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// issueAttempts bounds retries when a generated token collides with a stored hash
const issueAttempts = 3

// RotationResult is the outcome of a successful refresh token rotation
type RotationResult struct {
	AccessToken  string
	RefreshToken *domain.RefreshToken
	User         *domain.User
}

// RefreshTokenService owns the refresh token lifecycle: issue, validate, rotate, revoke and sweep
type RefreshTokenService struct {
	tokenRepo          repository.TokenRepository
	userRepo           repository.UserRepository
	signer             TokenSigner
	refreshTokenExpiry time.Duration
	clock              func() time.Time
	logger             *zap.Logger

	issued  otelmetric.Int64Counter
	rotated otelmetric.Int64Counter
	revoked otelmetric.Int64Counter
	swept   otelmetric.Int64Counter
	replays otelmetric.Int64Counter
}

// NewRefreshTokenService creates a new refresh token service
func NewRefreshTokenService(
	tokenRepo repository.TokenRepository,
	userRepo repository.UserRepository,
	signer TokenSigner,
	refreshTokenExpiry time.Duration,
	meter otelmetric.Meter,
	logger *zap.Logger,
) *RefreshTokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = observability.Meter(nil, "auth")
	}

	return &RefreshTokenService{
		tokenRepo:          tokenRepo,
		userRepo:           userRepo,
		signer:             signer,
		refreshTokenExpiry: refreshTokenExpiry,
		clock:              time.Now,
		logger:             logger,
		issued:             observability.Counter(meter, "auth.refresh_tokens.issued", "Refresh tokens issued", logger),
		rotated:            observability.Counter(meter, "auth.refresh_tokens.rotated", "Refresh tokens rotated", logger),
		revoked:            observability.Counter(meter, "auth.refresh_tokens.revoked", "Refresh tokens revoked by logout", logger),
		swept:              observability.Counter(meter, "auth.refresh_tokens.swept", "Expired refresh tokens swept", logger),
		replays:            observability.Counter(meter, "auth.rotation.replays", "Rotations refused for a used or expired token", logger),
	}
}

// WithClock replaces the time source, for tests
func (s *RefreshTokenService) WithClock(clock func() time.Time) *RefreshTokenService {
	s.clock = clock
	return s
}

// RefreshTokenExpiry returns the lifetime of newly issued tokens
func (s *RefreshTokenService) RefreshTokenExpiry() time.Duration {
	return s.refreshTokenExpiry
}

// Issue creates and stores a new refresh token for user. The raw value is only available on the returned record.
func (s *RefreshTokenService) Issue(ctx context.Context, user *domain.User, meta domain.ClientMeta) (*domain.RefreshToken, error) {
	for attempt := 1; ; attempt++ {
		raw, err := utils.GenerateOpaqueToken()
		if err != nil {
			return nil, err
		}

		now := s.clock()
		token := &domain.RefreshToken{
			Token:     raw,
			TokenHash: utils.HashToken(raw),
			UserID:    user.ID,
			ExpiresAt: now.Add(s.refreshTokenExpiry),
			UserAgent: optional(meta.UserAgent),
			IPAddress: optional(meta.IPAddress),
			CreatedAt: now,
		}

		err = s.tokenRepo.Create(ctx, token)
		if err == nil {
			s.issued.Add(ctx, 1)
			return token, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) || attempt >= issueAttempts {
			return nil, fmt.Errorf("failed to save refresh token: %w", err)
		}
		s.logger.Warn("refresh token collision, regenerating", zap.Int("attempt", attempt))
	}
}

// Validate looks the token up and checks it is still usable
func (s *RefreshTokenService) Validate(ctx context.Context, raw string) (*domain.RefreshToken, error) {
	if raw == "" {
		return nil, domain.ErrInvalidToken
	}

	token, err := s.tokenRepo.GetByTokenHash(ctx, utils.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if !token.IsValid(s.clock()) {
		return nil, domain.ErrTokenExpiredOrRevoked
	}

	return token, nil
}

// Rotate spends the presented token and returns a fresh session for its owner.
// The revoke is a compare-and-swap, so of two concurrent rotations only one succeeds.
func (s *RefreshTokenService) Rotate(ctx context.Context, raw string, meta domain.ClientMeta) (*RotationResult, error) {
	current, err := s.Validate(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpiredOrRevoked) {
			s.replays.Add(ctx, 1)
		}
		return nil, err
	}

	won, err := s.tokenRepo.Revoke(ctx, current.TokenHash, s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !won {
		s.replays.Add(ctx, 1)
		s.logger.Warn("refresh token rotated concurrently", zap.String("user_id", current.UserID))
		return nil, domain.ErrTokenExpiredOrRevoked
	}

	user, err := s.userRepo.GetByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.CanAuthenticate() {
		s.logger.Info("refresh refused for inactive user", zap.String("user_id", user.ID))
		return nil, domain.ErrInvalidToken
	}

	next, err := s.Issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.signer.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.rotated.Add(ctx, 1)

	return &RotationResult{
		AccessToken:  accessToken,
		RefreshToken: next,
		User:         user,
	}, nil
}

// Revoke revokes the token if it is currently valid. Unknown or already revoked tokens are not an error.
func (s *RefreshTokenService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	ok, err := s.tokenRepo.Revoke(ctx, utils.HashToken(raw), s.clock())
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if ok {
		s.revoked.Add(ctx, 1)
	}

	return nil
}

// RevokeAllForUser revokes every token of the user that is valid now
func (s *RefreshTokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.tokenRepo.RevokeAllForUser(ctx, userID, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	s.revoked.Add(ctx, n)
	s.logger.Info("revoked all refresh tokens", zap.String("user_id", userID), zap.Int64("count", n))

	return n, nil
}

// SweepExpired flags tokens past their expiry as revoked. Tokens inside their window are never touched.
func (s *RefreshTokenService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.tokenRepo.RevokeExpired(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", err)
	}

	s.swept.Add(ctx, n)

	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled
func (s *RefreshTokenService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("refresh token sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("swept expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
