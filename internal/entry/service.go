// Package entry records consumption against a group's menu.
package entry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/metrics"
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
)

// Common errors
var (
	ErrEntryNotFound   = errors.New("entry not found")
	ErrItemRequired    = errors.New("a menu item is required")
	ErrItemNotOnMenu   = errors.New("item is not on the group's menu")
	ErrInvalidSize     = errors.New("size must be 'half' or 'full'")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidSlot     = errors.New("time slot is not configured for this group")
	ErrInvalidDate     = errors.New("date must be formatted as YYYY-MM-DD")
)

const dateLayout = "2006-01-02"

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	ListByGroup(ctx context.Context, groupID string) ([]*Entry, error)
	Delete(ctx context.Context, groupID, id string) error
	UpdateDate(ctx context.Context, groupID, id string, date time.Time) error
}

// Groups resolves group documents. *group.Service implements it.
type Groups interface {
	Current(ctx context.Context, actor *user.User) (*group.Group, error)
}

// Service handles entry business logic
type Service struct {
	repo   Store
	groups Groups
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a new entry service. loc is the zone used for time-of-day
// slot defaults and date corrections.
func NewService(repo Store, groups Groups, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		groups: groups,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// Log records a consumption entry in actor's active group. Any member may log.
func (s *Service) Log(ctx context.Context, actor *user.User, req LogEntryRequest) (*Entry, error) {
	g, err := s.groups.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(actor.ID) {
		return nil, group.ErrNotMember
	}

	if strings.TrimSpace(req.ItemID) == "" {
		return nil, ErrItemRequired
	}
	item, ok := g.Items.Find(req.ItemID)
	if !ok {
		return nil, ErrItemNotOnMenu
	}

	size := req.Size
	if size == "" {
		size = SizeFull
	}
	if !size.Valid() {
		return nil, ErrInvalidSize
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	now := s.now()
	slot := strings.TrimSpace(req.Time)
	if slot == "" {
		slot = DefaultSlot(g.TimeSlots, now.In(s.loc))
	} else if !g.HasSlot(slot) {
		return nil, ErrInvalidSlot
	}

	e := &Entry{
		ID:       uuid.NewString(),
		GroupID:  g.ID,
		UserUID:  actor.ID,
		UserName: actor.Name,
		ItemID:   item.ID,
		ItemName: item.Name,
		Size:     size,
		Quantity: quantity,
		Price:    PriceFor(item, size),
		TimeSlot: slot,
		Date:     now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	metrics.EntriesLogged.Inc()
	s.logger.DebugContext(ctx, "Entry logged", "entry_id", e.ID, "group_id", g.ID, "item", e.ItemName)
	return e, nil
}

// gatedEntry loads an entry of actor's active group after checking action.
func (s *Service) gatedEntry(ctx context.Context, actor *user.User, id string, action permission.Action) (*Entry, error) {
	g, err := s.groups.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := permission.Check(actor.ID, actor.Permissions, g.AdminUID, action); err != nil {
		return nil, err
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil || e.GroupID != g.ID {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

// Delete removes an entry. Requires the deleteEntries permission.
func (s *Service) Delete(ctx context.Context, actor *user.User, id string) error {
	e, err := s.gatedEntry(ctx, actor, id, permission.DeleteEntries)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, e.GroupID, e.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Entry deleted", "entry_id", e.ID, "group_id", e.GroupID, "by", actor.ID)
	return nil
}

// CorrectDate moves an entry to another calendar day, keeping its time of
// day. Requires the same permission as deletion.
func (s *Service) CorrectDate(ctx context.Context, actor *user.User, id, date string) (*Entry, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	e, err := s.gatedEntry(ctx, actor, id, permission.DeleteEntries)
	if err != nil {
		return nil, err
	}

	e.Date = WithDate(e.Date, day.Year(), day.Month(), day.Day(), s.loc)
	if err := s.repo.UpdateDate(ctx, e.GroupID, e.ID, e.Date); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the entries of actor's active group, newest first
func (s *Service) List(ctx context.Context, actor *user.User) ([]*Entry, error) {
	groupID, err := actor.ActiveGroup()
	if err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, groupID)
}
