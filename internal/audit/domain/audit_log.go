package domain

import (
	"errors"
	"time"
)

// Entry is one recorded auth event. UserID is empty when no user was resolved
// (login_failure for an unknown email, auth_denied).
type Entry struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Validate reports the first missing required field.
func (e *Entry) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("audit: id is required")
	case e.Action == "":
		return errors.New("audit: action is required")
	case e.Resource == "":
		return errors.New("audit: resource is required")
	case e.CreatedAt.IsZero():
		return errors.New("audit: created_at is required")
	}
	return nil
}
