package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the core user entity. Verification secrets are stored as SHA-256 hashes; an empty
// hash means no token of that kind is pending.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Phone         string
	Status        UserStatus
	EmailVerified bool
	PhoneVerified bool

	EmailVerificationTokenHash string
	EmailVerificationExpiresAt *time.Time
	PhoneCodeHash              string
	PhoneCodeExpiresAt         *time.Time
	PhoneCodeAttempts          int
	PasswordResetTokenHash     string
	PasswordResetExpiresAt     *time.Time

	Roles       []Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// Role is a named role membership.
type Role struct {
	ID   string
	Name string
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// CanAuthenticate reports whether the user may log in or refresh. Only active users can.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Status == UserStatusActive
}

// RoleNames returns the role names in membership order.
func (u *User) RoleNames() []string {
	if len(u.Roles) == 0 {
		return nil
	}
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = r.Name
	}
	return out
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	switch u.Status {
	case UserStatusActive, UserStatusSuspended, UserStatusDeleted:
	default:
		return errors.New("invalid status")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Expired reports whether an optional expiry is missing or not after now.
func Expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || !expiresAt.After(now)
}
