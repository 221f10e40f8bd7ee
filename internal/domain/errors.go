package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failures the auth engine reports to callers
type ErrorKind string

const (
	KindInvalidCredentials    ErrorKind = "INVALID_CREDENTIALS"
	KindEmailTaken            ErrorKind = "EMAIL_TAKEN"
	KindInvalidToken          ErrorKind = "INVALID_TOKEN"
	KindTokenExpiredOrRevoked ErrorKind = "TOKEN_EXPIRED_OR_REVOKED"
	KindInvalidOrExpiredToken ErrorKind = "INVALID_OR_EXPIRED_TOKEN"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindDeliveryFailed        ErrorKind = "DELIVERY_FAILED"
	KindValidation            ErrorKind = "VALIDATION"
	KindForbidden             ErrorKind = "FORBIDDEN"
)

// AuthError is a structured error carrying a kind, a message and optional field details
type AuthError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind, so errors.Is(err, ErrInvalidToken) works
// regardless of message or cause.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks
var (
	ErrInvalidCredentials    = &AuthError{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrEmailTaken            = &AuthError{Kind: KindEmailTaken, Message: "email is already registered"}
	ErrInvalidToken          = &AuthError{Kind: KindInvalidToken, Message: "invalid token"}
	ErrTokenExpiredOrRevoked = &AuthError{Kind: KindTokenExpiredOrRevoked, Message: "token is expired or revoked"}
	ErrInvalidOrExpiredToken = &AuthError{Kind: KindInvalidOrExpiredToken, Message: "invalid or expired verification token"}
	ErrNotFound              = &AuthError{Kind: KindNotFound, Message: "not found"}
	ErrForbidden             = &AuthError{Kind: KindForbidden, Message: "forbidden"}
)

// WrapError builds an AuthError of the given kind around cause
func WrapError(kind ErrorKind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: cause}
}

// ValidationError builds a validation failure with per-field details
func ValidationError(fields map[string]string) *AuthError {
	return &AuthError{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// KindOf returns the kind of the first AuthError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}
