package utils

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword validates a password
// Minimum 8 characters, at least one uppercase letter, one lowercase letter, one number
func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

// ValidateRegistration returns per-field problems, or nil when the input is acceptable
func ValidateRegistration(fullName, email, password string) map[string]string {
	fields := map[string]string{}

	if strings.TrimSpace(fullName) == "" {
		fields["full_name"] = "full name is required"
	}
	if !ValidateEmail(SanitizeEmail(email)) {
		fields["email"] = "invalid email format"
	}
	if !ValidatePassword(password) {
		fields["password"] = "password must be at least 8 characters long and contain uppercase, lowercase, and number"
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
