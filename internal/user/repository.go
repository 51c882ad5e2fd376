package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/realtime"
)

const userColumns = `id, name, email, password_hash, provider, group_id, groups, role, permissions, created_at`

// Repository handles user data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new user repository with database dependency injected
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Provider,
		&u.GroupID,
		pq.Array(&u.Groups),
		&u.Role,
		&u.Permissions,
		&u.CreatedAt,
	)
	return u, err
}

// Create inserts a new profile. A fresh profile has no group, the user role
// and every permission flag off.
func (r *Repository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, provider, role, permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Provider, u.Role, u.Permissions,
	).Scan(&u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// GetByEmail retrieves a user by their email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return u, nil
}

// ListByGroup returns every profile whose memberships contain groupID
func (r *Repository) ListByGroup(ctx context.Context, groupID string) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE $1 = ANY(groups) ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// UpdateName changes a profile's display name
func (r *Repository) UpdateName(ctx context.Context, id, name string) error {
	return r.update(ctx, id, `UPDATE users SET name = $2 WHERE id = $1 RETURNING groups`, name)
}

// UpdatePermissions replaces a profile's permission flags
func (r *Repository) UpdatePermissions(ctx context.Context, id string, flags permission.Flags) error {
	return r.update(ctx, id, `UPDATE users SET permissions = $2 WHERE id = $1 RETURNING groups`, flags)
}

// UpdateRole changes a profile's role tag
func (r *Repository) UpdateRole(ctx context.Context, id string, role Role) error {
	return r.update(ctx, id, `UPDATE users SET role = $2 WHERE id = $1 RETURNING groups`, role)
}

// update runs a single-row profile update and notifies the profile stream and
// the member list of every group the profile belongs to.
func (r *Repository) update(ctx context.Context, id, query string, value any) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var groups []string
		if err := tx.QueryRowContext(ctx, query, id, value).Scan(pq.Array(&groups)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to update user: %w", err)
		}

		if err := realtime.Notify(ctx, tx, id, realtime.Profile); err != nil {
			return err
		}
		for _, g := range groups {
			if err := realtime.Notify(ctx, tx, g, realtime.Members); err != nil {
				return err
			}
		}
		return nil
	})
}
