package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vehicle-marketplace/backend/internal/audit/domain"
	"vehicle-marketplace/backend/internal/db"
)

// PostgresRepository writes to the audit_logs table.
type PostgresRepository struct {
	db db.DBTX
}

func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create inserts e. An empty UserID or Metadata is stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, nullable(e.UserID), e.Action, e.Resource, e.IP, nullable(e.Metadata), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
