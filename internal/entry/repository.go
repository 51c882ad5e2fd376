package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/realtime"
)

const entryColumns = `id, group_id, user_uid, user_name, item_id, item_name, size, quantity, price, time_slot, date`

// Repository handles entry persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new entry repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	err := row.Scan(
		&e.ID,
		&e.GroupID,
		&e.UserUID,
		&e.UserName,
		&e.ItemID,
		&e.ItemName,
		&e.Size,
		&e.Quantity,
		&e.Price,
		&e.TimeSlot,
		&e.Date,
	)
	return e, err
}

// Create inserts a new entry
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO entries (` + entryColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			e.ID, e.GroupID, e.UserUID, e.UserName, e.ItemID, e.ItemName,
			e.Size, e.Quantity, e.Price, e.TimeSlot, e.Date,
		)
		if err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}
		return realtime.Notify(ctx, tx, e.GroupID, realtime.Entries)
	})
}

// GetByID retrieves an entry by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// ListByGroup returns the group's entries, newest first
func (r *Repository) ListByGroup(ctx context.Context, groupID string) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE group_id = $1 ORDER BY date DESC, id`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry of groupID
func (r *Repository) Delete(ctx context.Context, groupID, id string) error {
	return r.exec(ctx, groupID, `DELETE FROM entries WHERE id = $1 AND group_id = $2`, id, groupID)
}

// UpdateDate replaces an entry's timestamp
func (r *Repository) UpdateDate(ctx context.Context, groupID, id string, date time.Time) error {
	return r.exec(ctx, groupID, `UPDATE entries SET date = $3 WHERE id = $1 AND group_id = $2`, id, groupID, date)
}

func (r *Repository) exec(ctx context.Context, groupID, query string, args ...any) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
		n, err := database.RowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrEntryNotFound
		}
		return realtime.Notify(ctx, tx, groupID, realtime.Entries)
	})
}
