package repository

import (
	"context"
	"time"

	"vehicle-marketplace/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByRefreshTokenHash returns the session holding the hash and locks its row for the
	// rest of the transaction.
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// ListByUser returns every session of the user, revoked and expired ones included.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Revoke marks the session revoked. Already revoked sessions keep their original revoked_at.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAllByUser revokes every unrevoked session of the user and returns how many changed.
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int, error)
	// Rotate replaces the refresh token hash and extends the session.
	Rotate(ctx context.Context, id, refreshTokenHash string, expiresAt, lastActiveAt time.Time) error
}
