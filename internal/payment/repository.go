package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/realtime"
)

// Repository handles payment persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new payment repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new payment
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO payments (id, group_id, amount, recorded_by, date)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, query, p.ID, p.GroupID, p.Amount, p.RecordedBy, p.Date); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return realtime.Notify(ctx, tx, p.GroupID, realtime.Payments)
	})
}

// ListByGroup returns the group's payments, newest first
func (r *Repository) ListByGroup(ctx context.Context, groupID string) ([]*Payment, error) {
	query := `
		SELECT id, group_id, amount, recorded_by, date
		FROM payments
		WHERE group_id = $1
		ORDER BY date DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []*Payment{}
	for rows.Next() {
		p := &Payment{}
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Amount, &p.RecordedBy, &p.Date); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
