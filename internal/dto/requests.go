package dto

// RegisterRequest represents a registration request
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token in the body; the refresh_token cookie is used when it is empty
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// VerifyEmailRequest represents an email verification request
type VerifyEmailRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

// ListUsersRequest is the query string of the list-users endpoint
type ListUsersRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	Limit         int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search        string `form:"search"`
	SortBy        string `form:"sort_by" binding:"omitempty,oneof=created_at updated_at full_name email last_login_at"`
	SortOrder     string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
	EmailVerified *bool  `form:"email_verified"`
	IsActive      *bool  `form:"is_active"`
}
