package report

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/payment"
	"github.com/fkhayef/chaikhata/internal/user"
)

// Entries lists a group's entries. *entry.Service implements it.
type Entries interface {
	List(ctx context.Context, actor *user.User) ([]*entry.Entry, error)
}

// Payments lists a group's payments. *payment.Service implements it.
type Payments interface {
	List(ctx context.Context, actor *user.User) ([]*payment.Payment, error)
}

// Groups resolves the actor's active group. *group.Service implements it.
type Groups interface {
	Current(ctx context.Context, actor *user.User) (*group.Group, error)
}

// Service loads a group's collections and reduces them on demand
type Service struct {
	entries  Entries
	payments Payments
	groups   Groups
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a new report service
func NewService(entries Entries, payments Payments, groups Groups, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		entries:  entries,
		payments: payments,
		groups:   groups,
		loc:      loc,
		now:      time.Now,
	}
}

type collections struct {
	group    *group.Group
	entries  []*entry.Entry
	payments []*payment.Payment
}

func (s *Service) load(ctx context.Context, actor *user.User) (*collections, error) {
	var c collections
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.group, err = s.groups.Current(ctx, actor)
		return err
	})
	g.Go(func() (err error) {
		c.entries, err = s.entries.List(ctx, actor)
		return err
	})
	g.Go(func() (err error) {
		c.payments, err = s.payments.List(ctx, actor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Summary computes the totals of actor's active group.
func (s *Service) Summary(ctx context.Context, actor *user.User) (Summary, error) {
	c, err := s.load(ctx, actor)
	if err != nil {
		return Summary{}, err
	}
	return Compute(c.entries, c.payments, s.now(), s.loc), nil
}

// Statement builds the printable statement of actor's active group.
func (s *Service) Statement(ctx context.Context, actor *user.User) (StatementData, error) {
	c, err := s.load(ctx, actor)
	if err != nil {
		return StatementData{}, err
	}
	return BuildStatement(c.group.Name, c.entries, c.payments, s.now(), s.loc), nil
}
