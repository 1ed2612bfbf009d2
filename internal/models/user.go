package models

import (
	"time"

	"github.com/ukydev/maintenance-tracker/internal/fields"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Role represents portal user roles in the system
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// RoleFor maps the administrator flag to a role
func RoleFor(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// PortalUserModel is the schema of the "portal_user" collection.
var PortalUserModel = orm.NewModel("portal_user", "Portal User",
	fields.Char("name", fields.Label("Full Name"), fields.Required(), fields.Indexed()),
	fields.Char("email", fields.Label("Email"), fields.Required(), fields.Unique()),
	fields.Char("password_hash", fields.Label("Password Hash"), fields.Required()),
	fields.Boolean("active", fields.Label("Active"), fields.Default(true)),
	fields.Boolean("is_admin", fields.Label("Is Administrator"), fields.Default(false)),
	fields.DateTime("last_login", fields.Label("Last Login")),
	fields.Integer("login_attempts", fields.Label("Failed Login Attempts"), fields.Default(0)),
	fields.DateTime("locked_until", fields.Label("Locked Until")),
)

// PortalUser is a typed view over a portal user record
type PortalUser struct {
	*orm.Record
}

func (u PortalUser) Name() string { return u.String("name") }
func (u PortalUser) Email() string { return u.String("email") }
func (u PortalUser) PasswordHash() string { return u.String("password_hash") }
func (u PortalUser) Active() bool { return u.Bool("active") }
func (u PortalUser) IsAdmin() bool { return u.Bool("is_admin") }
func (u PortalUser) LoginAttempts() int64 { return u.Int("login_attempts") }
func (u PortalUser) Role() Role { return RoleFor(u.IsAdmin()) }
func (u PortalUser) LockedUntil() (time.Time, bool) { return u.Time("locked_until") }

// Public returns the user without the password hash
func (u PortalUser) Public() map[string]interface{} {
	out := u.Read()
	delete(out, "password_hash")
	return out
}

// LoginRequest represents a sign-in request
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents a sign-up request
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password with a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is an administrator's edit of a portal user
type UpdateUserRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Active  *bool   `json:"active,omitempty"`
	IsAdmin *bool   `json:"is_admin,omitempty"`
}

// LoginResponse represents a successful sign-in response
type LoginResponse struct {
	Token string                 `json:"token"`
	User  map[string]interface{} `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Exp    int64  `json:"exp"`
}
