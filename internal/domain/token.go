package domain

import "time"

// TokenClaims represents JWT access token claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// ClientMeta is optional information about the client a session is issued to
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// RefreshToken represents a refresh token in the system.
// Token holds the raw value and is only populated on issuance; the store keeps TokenHash.
type RefreshToken struct {
	ID        string     `json:"id" db:"id"`
	Token     string     `json:"-" db:"-"`
	TokenHash string     `json:"-" db:"token_hash"`
	UserID    string     `json:"user_id" db:"user_id"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Revoked   bool       `json:"revoked" db:"is_revoked"`
	RevokedAt *time.Time `json:"revoked_at" db:"revoked_at"`
	UserAgent *string    `json:"user_agent" db:"user_agent"`
	IPAddress *string    `json:"ip_address" db:"ip_address"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsValid reports whether the token can still be used at now
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// VerificationToken is a single-use email verification capability
type VerificationToken struct {
	ID        string     `json:"id" db:"id"`
	Token     string     `json:"-" db:"-"`
	TokenHash string     `json:"-" db:"token_hash"`
	UserID    string     `json:"user_id" db:"user_id"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsUsable reports whether the token is unused and unexpired at now
func (t *VerificationToken) IsUsable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// Session is a freshly issued access/refresh token pair
type Session struct {
	AccessToken           string
	AccessTokenExpiresIn  int
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	RefreshTokenExpiresIn int
}
