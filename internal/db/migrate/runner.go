// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"vehicle-marketplace/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// ErrNoDSN is returned when no database URL is configured.
var ErrNoDSN = errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")

// Direction selects which way Run moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a direction flag value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("direction must be up or down, got %q", s)
	}
}

// Run applies migrations in the given direction. steps > 0 limits the number of migrations
// applied; 0 means all. Returns nil on success and ErrNoChange when already at the target.
func Run(dsn string, direction Direction, steps int) error {
	if dsn == "" {
		return ErrNoDSN
	}
	if _, err := ParseDirection(string(direction)); err != nil {
		return err
	}
	if steps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", steps)
	}

	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case steps > 0 && direction == Up:
		err = m.Steps(steps)
	case steps > 0 && direction == Down:
		err = m.Steps(-steps)
	case direction == Up:
		err = m.Up()
	default:
		err = m.Down()
	}
	return err
}

// Version returns the current schema version and whether the last migration left it dirty.
func Version(dsn string) (uint, bool, error) {
	if dsn == "" {
		return 0, false, ErrNoDSN
	}
	m, err := open(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func open(dsn string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
