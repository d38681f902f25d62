package domain

import "time"

// Session represents one authenticated device or browser instance of a user.
// Sessions are never deleted; revocation is one-way.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string // SHA-256 hash of the current refresh token; overwritten on rotation
	Device           string
	UserAgent        string
	IPAddress        string
	Location         string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	LastActiveAt     time.Time
	Revoked          bool
	RevokedAt        *time.Time // nil when not revoked
}

// IsActive reports whether the session is not revoked and not yet expired at now.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && !s.Revoked && s.ExpiresAt.After(now)
}
