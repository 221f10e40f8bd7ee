package dto

import (
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope wraps every API response
type Envelope struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failure
type ErrorBody struct {
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken           string       `json:"access_token"`
	TokenType             string       `json:"token_type"`
	ExpiresIn             int          `json:"expires_in"`
	RefreshToken          string       `json:"refresh_token"`
	RefreshTokenExpiresIn int          `json:"refresh_token_expires_in"`
	User                  UserResponse `json:"user"`
}

// UserResponse represents a user response
type UserResponse struct {
	ID            string     `json:"id"`
	FullName      string     `json:"full_name"`
	Email         *string    `json:"email"`
	Username      *string    `json:"username"`
	EmailVerified bool       `json:"email_verified"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PaginationMeta describes one page of a collection
type PaginationMeta struct {
	TotalItems   int `json:"totalItems"`
	ItemCount    int `json:"itemCount"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
}

// Page is the data of a paginated response
type Page struct {
	Items interface{}    `json:"items"`
	Meta  PaginationMeta `json:"meta"`
}

// NewUserResponse maps a domain user to its public shape
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		FullName:      user.FullName,
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
		Role:          string(user.Role),
		IsActive:      user.IsActive,
		LastLoginAt:   user.LastLoginAt,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// NewAuthResponse builds the response for a newly issued session
func NewAuthResponse(user *domain.User, session *domain.Session) AuthResponse {
	return AuthResponse{
		AccessToken:           session.AccessToken,
		TokenType:             "Bearer",
		ExpiresIn:             session.AccessTokenExpiresIn,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresIn: session.RefreshTokenExpiresIn,
		User:                  NewUserResponse(user),
	}
}

// NewUserPage builds a paginated user list
func NewUserPage(page *domain.UserPage) Page {
	items := make([]UserResponse, 0, len(page.Users))
	for _, u := range page.Users {
		items = append(items, NewUserResponse(u))
	}

	totalPages := 0
	if page.Limit > 0 {
		totalPages = (page.Total + page.Limit - 1) / page.Limit
	}

	return Page{
		Items: items,
		Meta: PaginationMeta{
			TotalItems:   page.Total,
			ItemCount:    len(items),
			ItemsPerPage: page.Limit,
			TotalPages:   totalPages,
			CurrentPage:  page.Page,
		},
	}
}
