package session

import (
	"context"

	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/payment"
	"github.com/fkhayef/chaikhata/internal/user"
)

// Source runs the queries behind a workspace's subscriptions. A missing
// profile or group is reported as nil with no error.
type Source interface {
	Profile(ctx context.Context, uid string) (*user.User, error)
	Group(ctx context.Context, groupID string) (*group.Group, error)
	Entries(ctx context.Context, groupID string) ([]*entry.Entry, error)
	Payments(ctx context.Context, groupID string) ([]*payment.Payment, error)
	Members(ctx context.Context, groupID string) ([]*user.User, error)
}

type repoSource struct {
	users    *user.Repository
	groups   *group.Repository
	entries  *entry.Repository
	payments *payment.Repository
}

// NewRepositorySource reads workspace snapshots straight from the
// repositories.
func NewRepositorySource(users *user.Repository, groups *group.Repository, entries *entry.Repository, payments *payment.Repository) Source {
	return &repoSource{users: users, groups: groups, entries: entries, payments: payments}
}

func (s *repoSource) Profile(ctx context.Context, uid string) (*user.User, error) {
	return s.users.GetByID(ctx, uid)
}

func (s *repoSource) Group(ctx context.Context, groupID string) (*group.Group, error) {
	return s.groups.GetByID(ctx, groupID)
}

func (s *repoSource) Entries(ctx context.Context, groupID string) ([]*entry.Entry, error) {
	return s.entries.ListByGroup(ctx, groupID)
}

func (s *repoSource) Payments(ctx context.Context, groupID string) ([]*payment.Payment, error) {
	return s.payments.ListByGroup(ctx, groupID)
}

func (s *repoSource) Members(ctx context.Context, groupID string) ([]*user.User, error) {
	return s.users.ListByGroup(ctx, groupID)
}
