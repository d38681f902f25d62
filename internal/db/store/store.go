// Package store groups the user and session repositories behind one handle that owns
// transaction boundaries.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sessionrepo "vehicle-marketplace/backend/internal/session/repository"
	userrepo "vehicle-marketplace/backend/internal/user/repository"
)

// Store is the persistence handle injected into the auth and credential services.
type Store interface {
	Users() userrepo.Repository
	Sessions() sessionrepo.Repository
	// WithinTx runs fn in one transaction. The transaction commits only when fn returns nil
	// and ctx is still live; otherwise every write made through tx is discarded.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Postgres is a Store backed by a *sql.DB. Inside WithinTx the repositories share one *sql.Tx.
type Postgres struct {
	db    *sql.DB
	users userrepo.Repository
	sess  sessionrepo.Repository
	inTx  bool
}

// NewPostgres returns a Store over conn.
func NewPostgres(conn *sql.DB) *Postgres {
	return &Postgres{
		db:    conn,
		users: userrepo.NewPostgresRepository(conn),
		sess:  sessionrepo.NewPostgresRepository(conn),
	}
}

func (s *Postgres) Users() userrepo.Repository       { return s.users }
func (s *Postgres) Sessions() sessionrepo.Repository { return s.sess }

// WithinTx begins a READ COMMITTED transaction. Nested calls join the outer transaction.
func (s *Postgres) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Postgres{
		db:    s.db,
		users: userrepo.NewPostgresRepository(tx),
		sess:  sessionrepo.NewPostgresRepository(tx),
		inTx:  true,
	}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
