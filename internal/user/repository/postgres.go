package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"vehicle-marketplace/backend/internal/db"
	"vehicle-marketplace/backend/internal/user/domain"
)

const userColumns = `
	id, email, password_hash, first_name, last_name, phone, status,
	email_verified, email_verification_token_hash, email_verification_expires_at,
	phone_verified, phone_code_hash, phone_code_expires_at, phone_code_attempts,
	password_reset_token_hash, password_reset_expires_at,
	created_at, updated_at, last_login_at`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository bound to conn, which may be a *sql.DB or a *sql.Tx.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

// GetByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) GetByPasswordResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_token_hash = $1 FOR UPDATE`, tokenHash)
}

func (r *PostgresRepository) GetByEmailVerificationTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email_verification_token_hash = $1 FOR UPDATE`, tokenHash)
}

// Create persists the user and its role memberships. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, phone, status,
			email_verified, phone_verified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Status),
		u.EmailVerified, u.PhoneVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return classifyWriteError(err)
	}
	for _, role := range u.Roles {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, u.ID, role.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET password_hash = $2,
		    password_reset_token_hash = NULL,
		    password_reset_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id, passwordHash, at)
}

func (r *PostgresRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET password_reset_token_hash = $2, password_reset_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, id, tokenHash, expiresAt, at)
}

func (r *PostgresRepository) SetEmail(ctx context.Context, id, email string, at time.Time) error {
	err := r.exec(ctx, `
		UPDATE users
		SET email = $2,
		    email_verified = FALSE,
		    email_verification_token_hash = NULL,
		    email_verification_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id, email, at)
	return classifyWriteError(err)
}

func (r *PostgresRepository) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET email_verification_token_hash = $2, email_verification_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, id, tokenHash, expiresAt, at)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET email_verified = TRUE,
		    email_verification_token_hash = NULL,
		    email_verification_expires_at = NULL,
		    updated_at = $2
		WHERE id = $1
	`, id, at)
}

func (r *PostgresRepository) SetPhoneCode(ctx context.Context, id, codeHash string, expiresAt, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET phone_code_hash = $2, phone_code_expires_at = $3, phone_code_attempts = 0, updated_at = $4
		WHERE id = $1
	`, id, codeHash, expiresAt, at)
}

func (r *PostgresRepository) RecordPhoneCodeFailure(ctx context.Context, id string, maxAttempts int, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET phone_code_attempts = phone_code_attempts + 1,
		    phone_code_hash = CASE WHEN phone_code_attempts + 1 >= $2 THEN NULL ELSE phone_code_hash END,
		    phone_code_expires_at = CASE WHEN phone_code_attempts + 1 >= $2 THEN NULL ELSE phone_code_expires_at END,
		    updated_at = $3
		WHERE id = $1
	`, id, maxAttempts, at)
}

func (r *PostgresRepository) MarkPhoneVerified(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET phone_verified = TRUE,
		    phone_code_hash = NULL,
		    phone_code_expires_at = NULL,
		    phone_code_attempts = 0,
		    updated_at = $2
		WHERE id = $1
	`, id, at)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	roles, err := r.listRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return u, nil
}

func (r *PostgresRepository) listRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                                              domain.User
		status                                         string
		emailTokenHash, phoneCodeHash, resetTokenHash  sql.NullString
		emailTokenExp, phoneCodeExp, resetExp, lastLog sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &status,
		&u.EmailVerified, &emailTokenHash, &emailTokenExp,
		&u.PhoneVerified, &phoneCodeHash, &phoneCodeExp, &u.PhoneCodeAttempts,
		&resetTokenHash, &resetExp,
		&u.CreatedAt, &u.UpdatedAt, &lastLog,
	)
	if err != nil {
		return nil, err
	}
	u.Status = domain.UserStatus(status)
	u.EmailVerificationTokenHash = emailTokenHash.String
	u.EmailVerificationExpiresAt = nullTimeToPtr(emailTokenExp)
	u.PhoneCodeHash = phoneCodeHash.String
	u.PhoneCodeExpiresAt = nullTimeToPtr(phoneCodeExp)
	u.PasswordResetTokenHash = resetTokenHash.String
	u.PasswordResetExpiresAt = nullTimeToPtr(resetExp)
	u.LastLoginAt = nullTimeToPtr(lastLog)
	return &u, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// classifyWriteError maps a unique violation on the email index to ErrEmailTaken.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}
