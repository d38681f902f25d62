package repository

import (
	"context"
	"errors"
	"time"

	"vehicle-marketplace/backend/internal/user/domain"
)

// ErrEmailTaken is returned when a write would give two users the same email.
var ErrEmailTaken = errors.New("email already in use")

// Repository defines persistence for users. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIDForUpdate is GetByID with a row lock held until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByPasswordResetTokenHash locks and returns the user holding the reset token hash.
	GetByPasswordResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	// GetByEmailVerificationTokenHash locks and returns the user holding the email token hash.
	GetByEmailVerificationTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	// Create inserts the user and its role memberships. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// SetPassword stores a new password hash and clears any pending reset token.
	SetPassword(ctx context.Context, id, passwordHash string, at time.Time) error
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt, at time.Time) error
	// SetEmail changes the email and marks it unverified. Returns ErrEmailTaken on a duplicate email.
	SetEmail(ctx context.Context, id, email string, at time.Time) error
	SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt, at time.Time) error
	// MarkEmailVerified sets email_verified and clears the email token.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	// SetPhoneCode stores a new phone code hash and resets the attempt counter.
	SetPhoneCode(ctx context.Context, id, codeHash string, expiresAt, at time.Time) error
	// RecordPhoneCodeFailure increments the attempt counter and clears the code once maxAttempts is reached.
	RecordPhoneCodeFailure(ctx context.Context, id string, maxAttempts int, at time.Time) error
	// MarkPhoneVerified sets phone_verified and clears the phone code.
	MarkPhoneVerified(ctx context.Context, id string, at time.Time) error
}
