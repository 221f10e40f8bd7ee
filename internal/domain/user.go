package domain

import "time"

// Role is the closed set of user roles
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID            string     `json:"id" db:"id"`
	FullName      string     `json:"full_name" db:"full_name"`
	Email         *string    `json:"email" db:"email"`
	Username      *string    `json:"username" db:"username"`
	PasswordHash  string     `json:"-" db:"hashed_password"`
	EmailVerified bool       `json:"email_verified" db:"email_verified"`
	Role          Role       `json:"role" db:"role"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time `json:"-" db:"deleted_at"`
}

// EmailAddress returns the email or an empty string
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// IsDeleted reports whether the user has been soft-deleted
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// CanAuthenticate reports whether the user may log in or refresh a session
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsDeleted()
}

// ListUsersQuery describes a page of users to fetch
type ListUsersQuery struct {
	Page          int
	Limit         int
	Search        string
	SortBy        string
	SortOrder     string
	EmailVerified *bool
	IsActive      *bool
}

// UserPage is a single page of users with the total matching count
type UserPage struct {
	Users []*User
	Total int
	Page  int
	Limit int
}
