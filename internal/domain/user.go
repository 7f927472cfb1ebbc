package domain

import "time"

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleAdmin grants full administrative access.
	RoleAdmin Role = "admin"
	// RoleModerator can review tag suggestions and manage tags.
	RoleModerator Role = "moderator"
	// RoleMember grants standard user access.
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleModerator || r == RoleMember
}

// User represents an authenticated user account in the system.
type User struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"-"`
	DisplayName            string    `json:"display_name"`
	Role                   Role      `json:"role"`
	PendingSuggestionCount int       `json:"pending_suggestion_count"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
	LastLoginAt            time.Time `json:"last_login_at,omitzero"`
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanModerate returns true if the user may resolve suggestions and manage tags.
// Admins are implicitly moderators.
func (u *User) CanModerate() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// Name returns the best available name to display for the user.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
