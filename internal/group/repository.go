package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/realtime"
)

// ErrGroupIDTaken is returned by Create when the ID already exists.
var ErrGroupIDTaken = errors.New("group ID already exists")

const groupColumns = `id, name, admin_uid, members, items, time_slots, created_at`

// Repository handles group data persistence. Every method that touches both
// a group and its members' profiles runs in one transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner) (*Group, error) {
	g := &Group{}
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.AdminUID,
		pq.Array(&g.Members),
		&g.Items,
		pq.Array(&g.TimeSlots),
		&g.CreatedAt,
	)
	return g, err
}

// Create inserts g and makes its owner an admin member with g as the
// current group.
func (r *Repository) Create(ctx context.Context, g *Group) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO groups (id, name, admin_uid, members, items, time_slots)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`
		err := tx.QueryRowContext(ctx, query,
			g.ID, g.Name, g.AdminUID, pq.Array(g.Members), g.Items, pq.Array(g.TimeSlots),
		).Scan(&g.CreatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return ErrGroupIDTaken
			}
			return fmt.Errorf("failed to create group: %w", err)
		}

		if err := attachProfile(ctx, tx, g.AdminUID, g.ID, "admin"); err != nil {
			return err
		}

		if err := realtime.Notify(ctx, tx, g.ID, realtime.Group, realtime.Members); err != nil {
			return err
		}
		return realtime.Notify(ctx, tx, g.AdminUID, realtime.Profile)
	})
}

// attachProfile points uid's current group at groupID, records the
// membership and sets the role.
func attachProfile(ctx context.Context, tx *sql.Tx, uid, groupID, role string) error {
	query := `
		UPDATE users
		SET group_id = $2,
		    groups = CASE WHEN $2 = ANY(groups) THEN groups ELSE array_append(groups, $2) END,
		    role = $3
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, query, uid, groupID, role)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	n, err := database.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("profile %s not found", uid)
	}
	return nil
}

// detachProfiles removes groupID from the memberships of the given users
// (every holder when uid is empty). Users whose current group was groupID
// fall back to their first remaining group, or none. It returns the IDs of
// the updated profiles.
func detachProfiles(ctx context.Context, tx *sql.Tx, groupID, uid string) ([]string, error) {
	query := `
		UPDATE users
		SET groups = array_remove(groups, $1),
		    group_id = CASE WHEN group_id = $1 THEN (array_remove(groups, $1))[1] ELSE group_id END
		WHERE ($1 = ANY(groups) OR group_id = $1)
		  AND ($2 = '' OR id = $2)
		RETURNING id
	`
	rows, err := tx.QueryContext(ctx, query, groupID, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to detach profiles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// ListByMember returns every group whose member list contains uid
func (r *Repository) ListByMember(ctx context.Context, uid string) ([]*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE $1 = ANY(members) ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddMember adds uid to the group and makes it uid's current group. The
// owner keeps the admin role; everyone else gets the user role.
func (r *Repository) AddMember(ctx context.Context, groupID, uid string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE groups
			SET members = CASE WHEN $2 = ANY(members) THEN members ELSE array_append(members, $2) END
			WHERE id = $1
			RETURNING admin_uid
		`
		var adminUID string
		if err := tx.QueryRowContext(ctx, query, groupID, uid).Scan(&adminUID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to add member: %w", err)
		}

		role := "user"
		if adminUID == uid {
			role = "admin"
		}
		if err := attachProfile(ctx, tx, uid, groupID, role); err != nil {
			return err
		}

		if err := realtime.Notify(ctx, tx, groupID, realtime.Group, realtime.Members); err != nil {
			return err
		}
		return realtime.Notify(ctx, tx, uid, realtime.Profile)
	})
}

// RemoveMember takes uid out of the group and moves uid's current group to
// another membership.
func (r *Repository) RemoveMember(ctx context.Context, groupID, uid string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE groups SET members = array_remove(members, $2) WHERE id = $1`, groupID, uid)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		n, err := database.RowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrGroupNotFound
		}

		if _, err := detachProfiles(ctx, tx, groupID, uid); err != nil {
			return err
		}

		if err := realtime.Notify(ctx, tx, groupID, realtime.Group, realtime.Members); err != nil {
			return err
		}
		return realtime.Notify(ctx, tx, uid, realtime.Profile)
	})
}

// Delete removes the group, its entries and payments, and every profile's
// reference to it, all or nothing.
func (r *Repository) Delete(ctx context.Context, groupID string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("failed to delete entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("failed to delete payments: %w", err)
		}

		affected, err := detachProfiles(ctx, tx, groupID, "")
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		n, err := database.RowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrGroupNotFound
		}

		err = realtime.Notify(ctx, tx, groupID,
			realtime.Entries, realtime.Payments, realtime.Group, realtime.Members)
		if err != nil {
			return err
		}
		for _, uid := range affected {
			if err := realtime.Notify(ctx, tx, uid, realtime.Profile); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetActive points uid's current group at groupID, which must be one of
// uid's memberships.
func (r *Repository) SetActive(ctx context.Context, uid, groupID string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET group_id = $2 WHERE id = $1 AND $2 = ANY(groups)`, uid, groupID)
		if err != nil {
			return fmt.Errorf("failed to switch group: %w", err)
		}
		n, err := database.RowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotMember
		}
		return realtime.Notify(ctx, tx, uid, realtime.Profile)
	})
}

// UpdateSettings locks the group row, applies fn to the menu and time slots
// and saves the result.
func (r *Repository) UpdateSettings(ctx context.Context, groupID string, fn func(g *Group) error) (*Group, error) {
	var updated *Group
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1 FOR UPDATE`
		g, err := scanGroup(tx.QueryRowContext(ctx, query, groupID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to lock group: %w", err)
		}

		if err := fn(g); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE groups SET items = $2, time_slots = $3 WHERE id = $1`,
			groupID, g.Items, pq.Array(g.TimeSlots))
		if err != nil {
			return fmt.Errorf("failed to update group settings: %w", err)
		}

		updated = g
		return realtime.Notify(ctx, tx, groupID, realtime.Group)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
