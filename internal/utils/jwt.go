package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
)

// ErrInvalidAccessToken is returned for any access token that fails verification
var ErrInvalidAccessToken = errors.New("invalid access token")

// JWTManager signs and verifies access tokens
type JWTManager struct {
	secret            []byte
	accessTokenExpiry time.Duration
	clock             func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessTokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:            []byte(secret),
		accessTokenExpiry: accessTokenExpiry,
		clock:             time.Now,
	}
}

// WithClock replaces the time source, for tests
func (j *JWTManager) WithClock(clock func() time.Time) *JWTManager {
	j.clock = clock
	return j
}

type accessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an access token for the user
func (j *JWTManager) GenerateAccessToken(user *domain.User) (string, error) {
	now := j.clock()

	claims := accessClaims{
		UserID: user.ID,
		Email:  user.EmailAddress(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies signature and expiry and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*domain.TokenClaims, error) {
	var claims accessClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithTimeFunc(j.clock),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidAccessToken
	}

	tokenClaims := &domain.TokenClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   domain.Role(claims.Role),
		Exp:    claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		tokenClaims.Iat = claims.IssuedAt.Unix()
	}

	return tokenClaims, nil
}

// GetAccessTokenExpiry returns the access token expiry duration in seconds
func (j *JWTManager) GetAccessTokenExpiry() int {
	return int(j.accessTokenExpiry.Seconds())
}
