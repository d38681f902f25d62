package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vehicle-marketplace/backend/internal/db"
	"vehicle-marketplace/backend/internal/session/domain"
)

const sessionColumns = `
	id, user_id, refresh_token_hash, device, user_agent, ip_address, location,
	created_at, expires_at, last_active_at, revoked, revoked_at`

// PostgresRepository implements Repository over a *sql.DB or *sql.Tx.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository bound to conn.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// GetByRefreshTokenHash returns the session for the hash with FOR UPDATE, or nil if not found.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1 FOR UPDATE`, tokenHash)
}

// ListByUser returns all sessions of the user ordered by created_at, id.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists a new session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, device, user_agent, ip_address, location,
			created_at, expires_at, last_active_at, revoked, revoked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.ID, s.UserID, s.RefreshTokenHash, s.Device, s.UserAgent, s.IPAddress, s.Location,
		s.CreatedAt, s.ExpiresAt, s.LastActiveAt, s.Revoked, timePtrToNull(s.RevokedAt))
	return err
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked = TRUE, revoked_at = $2
		WHERE id = $1 AND NOT revoked
	`, id, at)
	return err
}

func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked = TRUE, revoked_at = $2
		WHERE user_id = $1 AND NOT revoked
	`, userID, at)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, id, refreshTokenHash string, expiresAt, lastActiveAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token_hash = $2, expires_at = $3, last_active_at = $4
		WHERE id = $1
	`, id, refreshTokenHash, expiresAt, lastActiveAt)
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s                                      domain.Session
		device, userAgent, ipAddress, location sql.NullString
		revokedAt                              sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &device, &userAgent, &ipAddress, &location,
		&s.CreatedAt, &s.ExpiresAt, &s.LastActiveAt, &s.Revoked, &revokedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Device = device.String
	s.UserAgent = userAgent.String
	s.IPAddress = ipAddress.String
	s.Location = location.String
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return &s, nil
}

func timePtrToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
