package service

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
)

// AuthResult is a user together with a freshly issued session
type AuthResult struct {
	User    *domain.User
	Session *domain.Session
}

// IssueSession signs an access token and issues a refresh token for user
func (s *authService) IssueSession(ctx context.Context, user *domain.User, meta domain.ClientMeta) (*domain.Session, error) {
	accessToken, err := s.signer.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.refreshTokens.Issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return s.session(accessToken, refreshToken), nil
}

func (s *authService) session(accessToken string, refreshToken *domain.RefreshToken) *domain.Session {
	return &domain.Session{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  s.signer.GetAccessTokenExpiry(),
		RefreshToken:          refreshToken.Token,
		RefreshTokenExpiresAt: refreshToken.ExpiresAt,
		RefreshTokenExpiresIn: int(s.refreshTokens.RefreshTokenExpiry().Seconds()),
	}
}
