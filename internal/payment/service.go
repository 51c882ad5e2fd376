// Package payment records repayments against a group's balance.
package payment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/events"
	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/metrics"
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
)

// Common errors
var (
	ErrAmountRequired    = errors.New("amount is required")
	ErrInvalidAmount     = errors.New("amount must be a number below 10,000,000,000 with at most two decimal places")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
)

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	ListByGroup(ctx context.Context, groupID string) ([]*Payment, error)
}

// Groups resolves group documents. *group.Service implements it.
type Groups interface {
	Current(ctx context.Context, actor *user.User) (*group.Group, error)
}

// Service handles payment business logic
type Service struct {
	repo      Store
	groups    Groups
	publisher events.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new payment service
func NewService(repo Store, groups Groups, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		groups:    groups,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrAmountRequired
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountNotPositive
	}
	if !group.FitsMoney(amount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// Record stores a repayment in actor's active group. Requires the
// recordPayments permission.
func (s *Service) Record(ctx context.Context, actor *user.User, amount string) (*Payment, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := permission.Check(actor.ID, actor.Permissions, g.AdminUID, permission.RecordPayments); err != nil {
		return nil, err
	}

	p := &Payment{
		ID:         uuid.NewString(),
		GroupID:    g.ID,
		Amount:     value,
		RecordedBy: actor.Name,
		Date:       s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	metrics.PaymentsRecorded.Inc()

	payload := events.PaymentRecordedPayload{
		PaymentID:  p.ID,
		GroupID:    p.GroupID,
		Amount:     p.Amount.StringFixed(2),
		RecordedBy: p.RecordedBy,
	}
	if err := s.publisher.Publish(ctx, events.PaymentRecorded, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish payment event", "payment_id", p.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "Payment recorded", "payment_id", p.ID, "group_id", p.GroupID, "amount", p.Amount.String())
	return p, nil
}

// List returns the payments of actor's active group, newest first
func (s *Service) List(ctx context.Context, actor *user.User) ([]*Payment, error) {
	groupID, err := actor.ActiveGroup()
	if err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, groupID)
}
