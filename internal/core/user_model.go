package core

import (
	"context"
	"time"
)

// User is an authenticated operator scoped to an organization.
type User struct {
	ID             int       `json:"id"`
	OrganizationID int       `json:"organization_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Roles.
const (
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
)

// ErrInvalidCredentials is returned for an unknown user, an inactive user
// and a wrong password alike.
var ErrInvalidCredentials = &Error{Kind: KindForbidden, Code: "INVALID_CREDENTIALS", Message: "invalid username or password"}

// UserService provides user lookup and password authentication.
type UserService interface {
	// Authenticate checks username and password and returns the active user.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// Register creates a user with a bcrypt-hashed password.
	Register(ctx context.Context, orgID int, username, email, password, role string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)
}
