package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/user"
)

// ErrInvalidResetToken is returned for unknown, used or expired reset tokens.
var ErrInvalidResetToken = errors.New("invalid or expired password reset token")

// Repository persists revoked tokens and password reset tokens
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new auth repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Revoke records jti as signed out until expiresAt. Expired rows are pruned
// on the way.
func (r *Repository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < now()`); err != nil {
		return fmt.Errorf("failed to prune revoked tokens: %w", err)
	}

	query := `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, jti, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was signed out
func (r *Repository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return revoked, nil
}

// CreateReset stores a password reset token for userID
func (r *Repository) CreateReset(ctx context.Context, token, userID string, expiresAt time.Time) error {
	query := `INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, token, userID, expiresAt); err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

// ResetPassword consumes token and stores hash as its user's password in one
// transaction. A token can be used once, before it expires, and stays usable
// if the password cannot be written.
func (r *Repository) ResetPassword(ctx context.Context, token, hash string, now time.Time) (string, error) {
	var userID string
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE password_resets
			SET used = true
			WHERE token = $1 AND NOT used AND expires_at > $2
			RETURNING user_id
		`
		if err := tx.QueryRowContext(ctx, query, token, now).Scan(&userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("failed to consume password reset: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		n, err := database.RowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return user.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}
