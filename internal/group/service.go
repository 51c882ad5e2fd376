package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/events"
	"github.com/fkhayef/chaikhata/internal/metrics"
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
)

// Common errors
var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrNameRequired      = errors.New("group name is required")
	ErrGroupIDRequired   = errors.New("group ID is required")
	ErrOwnerCannotLeave  = errors.New("the group owner cannot leave; delete the group instead")
	ErrNotOwner          = errors.New("only the group owner can do this")
	ErrNotMember         = errors.New("not a member of this group")
	ErrCannotChangeOwner = errors.New("the owner's role and permissions cannot be changed")
	ErrInvalidFlag       = errors.New("invalid permission flag")
	ErrItemNotFound      = errors.New("menu item not found")
	ErrItemNameRequired  = errors.New("item name is required")
	ErrItemPriceRequired = errors.New("full price is required")
	ErrInvalidPrice      = errors.New("price must be a non-negative number below 10,000,000,000 with at most two decimal places")
	ErrSlotRequired      = errors.New("time slot name is required")
	ErrSlotExists        = errors.New("time slot already exists")
	ErrSlotNotFound      = errors.New("time slot not found")
)

const maxCreateAttempts = 5

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	ListByMember(ctx context.Context, uid string) ([]*Group, error)
	AddMember(ctx context.Context, groupID, uid string) error
	RemoveMember(ctx context.Context, groupID, uid string) error
	Delete(ctx context.Context, groupID string) error
	SetActive(ctx context.Context, uid, groupID string) error
	UpdateSettings(ctx context.Context, groupID string, fn func(g *Group) error) (*Group, error)
}

// Profiles is the profile persistence member management needs.
type Profiles interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	ListByGroup(ctx context.Context, groupID string) ([]*user.User, error)
	UpdatePermissions(ctx context.Context, id string, flags permission.Flags) error
	UpdateRole(ctx context.Context, id string, role user.Role) error
}

// Service handles group lifecycle, settings and member administration
type Service struct {
	repo      Store
	profiles  Profiles
	publisher events.Publisher
	prefix    string
	newID     func(prefix string) (string, error)
	logger    *slog.Logger
}

// NewService creates a new group service
func NewService(repo Store, profiles Profiles, publisher events.Publisher, prefix string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		profiles:  profiles,
		publisher: publisher,
		prefix:    prefix,
		newID:     NewID,
		logger:    logger,
	}
}

// Create makes a new group owned by actor with the default menu and slots,
// and switches actor to it. IDs that collide are regenerated.
func (s *Service) Create(ctx context.Context, actor *user.User, name string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	for attempt := 1; ; attempt++ {
		id, err := s.newID(s.prefix)
		if err != nil {
			return nil, err
		}

		g := &Group{
			ID:        id,
			Name:      name,
			AdminUID:  actor.ID,
			Members:   []string{actor.ID},
			Items:     DefaultMenu(),
			TimeSlots: DefaultTimeSlots(),
		}

		err = s.repo.Create(ctx, g)
		if err == nil {
			metrics.GroupsCreated.Inc()
			s.logger.InfoContext(ctx, "Group created", "group_id", g.ID, "owner", actor.ID)
			return g, nil
		}
		if !errors.Is(err, ErrGroupIDTaken) || attempt >= maxCreateAttempts {
			return nil, err
		}
		s.logger.WarnContext(ctx, "Group ID collision, retrying", "group_id", id, "attempt", attempt)
	}
}

// Get retrieves a group by its ID
func (s *Service) Get(ctx context.Context, id string) (*Group, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Current returns actor's active group.
func (s *Service) Current(ctx context.Context, actor *user.User) (*Group, error) {
	id, err := actor.ActiveGroup()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListMine returns every group actor is a member of
func (s *Service) ListMine(ctx context.Context, actor *user.User) ([]*Group, error) {
	return s.repo.ListByMember(ctx, actor.ID)
}

// Join adds actor to the group with the given code and makes it current.
func (s *Service) Join(ctx context.Context, actor *user.User, id string) (*Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrGroupIDRequired
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.AddMember(ctx, id, actor.ID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Joined group", "group_id", id, "user_id", actor.ID)
	return s.Get(ctx, id)
}

// Leave removes actor from the active group. Owners cannot leave.
func (s *Service) Leave(ctx context.Context, actor *user.User) error {
	g, err := s.Current(ctx, actor)
	if err != nil {
		return err
	}
	if g.IsOwner(actor.ID) {
		return ErrOwnerCannotLeave
	}

	if err := s.repo.RemoveMember(ctx, g.ID, actor.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Left group", "group_id", g.ID, "user_id", actor.ID)
	return nil
}

// Delete removes actor's active group and everything in it. Owner only.
func (s *Service) Delete(ctx context.Context, actor *user.User) error {
	g, err := s.Current(ctx, actor)
	if err != nil {
		return err
	}
	if !g.IsOwner(actor.ID) {
		return ErrNotOwner
	}

	if err := s.repo.Delete(ctx, g.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Group deleted", "group_id", g.ID, "owner", actor.ID)

	payload := events.GroupDeletedPayload{GroupID: g.ID, DeletedBy: actor.ID, Members: g.Members}
	if err := s.publisher.Publish(ctx, events.GroupDeleted, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish group deletion", "group_id", g.ID, "error", err)
	}
	return nil
}

// Switch makes one of actor's other memberships the current group.
func (s *Service) Switch(ctx context.Context, actor *user.User, id string) (*Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrGroupIDRequired
	}
	if !actor.MemberOf(id) {
		return nil, ErrNotMember
	}

	if err := s.repo.SetActive(ctx, actor.ID, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// editSettings checks action against actor's active group and applies fn
// under the group's row lock.
func (s *Service) editSettings(ctx context.Context, actor *user.User, action permission.Action, fn func(g *Group) error) (*Group, error) {
	g, err := s.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := permission.Check(actor.ID, actor.Permissions, g.AdminUID, action); err != nil {
		return nil, err
	}
	return s.repo.UpdateSettings(ctx, g.ID, fn)
}

func parsePrice(raw string, required bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return decimal.Zero, ErrItemPriceRequired
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() || !FitsMoney(d) {
		return decimal.Zero, ErrInvalidPrice
	}
	return d, nil
}

func parseItem(req ItemRequest) (MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return MenuItem{}, ErrItemNameRequired
	}
	full, err := parsePrice(req.PriceFull, true)
	if err != nil {
		return MenuItem{}, err
	}
	half, err := parsePrice(req.PriceHalf, false)
	if err != nil {
		return MenuItem{}, err
	}
	return MenuItem{Name: name, PriceHalf: half, PriceFull: full}, nil
}

// AddItem appends a non-daily item to the menu.
func (s *Service) AddItem(ctx context.Context, actor *user.User, req ItemRequest) (*Group, error) {
	item, err := parseItem(req)
	if err != nil {
		return nil, err
	}
	item.ID = uuid.NewString()

	return s.editSettings(ctx, actor, permission.EditMenu, func(g *Group) error {
		g.Items = append(g.Items, item)
		return nil
	})
}

// UpdateItem changes an item's name and prices. Existing entries keep the
// price they were logged at.
func (s *Service) UpdateItem(ctx context.Context, actor *user.User, itemID string, req ItemRequest) (*Group, error) {
	item, err := parseItem(req)
	if err != nil {
		return nil, err
	}

	return s.editSettings(ctx, actor, permission.EditMenu, func(g *Group) error {
		i := slices.IndexFunc(g.Items, func(m MenuItem) bool { return m.ID == itemID })
		if i < 0 {
			return ErrItemNotFound
		}
		g.Items[i].Name = item.Name
		g.Items[i].PriceHalf = item.PriceHalf
		g.Items[i].PriceFull = item.PriceFull
		return nil
	})
}

// RemoveItem deletes an item from the menu.
func (s *Service) RemoveItem(ctx context.Context, actor *user.User, itemID string) (*Group, error) {
	return s.editSettings(ctx, actor, permission.EditMenu, func(g *Group) error {
		n := len(g.Items)
		g.Items = slices.DeleteFunc(g.Items, func(m MenuItem) bool { return m.ID == itemID })
		if len(g.Items) == n {
			return ErrItemNotFound
		}
		return nil
	})
}

// AddSlot appends a time slot.
func (s *Service) AddSlot(ctx context.Context, actor *user.User, slot string) (*Group, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return nil, ErrSlotRequired
	}

	return s.editSettings(ctx, actor, permission.EditTimeSlots, func(g *Group) error {
		if g.HasSlot(slot) {
			return ErrSlotExists
		}
		g.TimeSlots = append(g.TimeSlots, slot)
		return nil
	})
}

// RemoveSlot deletes a time slot. Entries keep the slot label they were
// logged with.
func (s *Service) RemoveSlot(ctx context.Context, actor *user.User, slot string) (*Group, error) {
	return s.editSettings(ctx, actor, permission.EditTimeSlots, func(g *Group) error {
		n := len(g.TimeSlots)
		g.TimeSlots = slices.DeleteFunc(g.TimeSlots, func(existing string) bool { return existing == slot })
		if len(g.TimeSlots) == n {
			return ErrSlotNotFound
		}
		return nil
	})
}

// memberOfOwnedGroup loads the target profile after checking that actor owns
// the active group and the target belongs to it.
func (s *Service) memberOfOwnedGroup(ctx context.Context, actor *user.User, uid string) (*user.User, error) {
	g, err := s.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !g.IsOwner(actor.ID) {
		return nil, ErrNotOwner
	}
	if g.IsOwner(uid) {
		return nil, ErrCannotChangeOwner
	}
	if !g.HasMember(uid) {
		return nil, ErrNotMember
	}

	target, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, user.ErrUserNotFound
	}
	return target, nil
}

// Members returns the profiles of actor's active group
func (s *Service) Members(ctx context.Context, actor *user.User) ([]*user.User, error) {
	g, err := s.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.profiles.ListByGroup(ctx, g.ID)
}

// SetMemberPermission sets one permission flag on a member. Owner only.
func (s *Service) SetMemberPermission(ctx context.Context, actor *user.User, uid, flag string, value bool) (*user.User, error) {
	target, err := s.memberOfOwnedGroup(ctx, actor, uid)
	if err != nil {
		return nil, err
	}

	flags, err := target.Permissions.Set(flag, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlag, err)
	}
	if err := s.profiles.UpdatePermissions(ctx, uid, flags); err != nil {
		return nil, err
	}

	target.Permissions = flags
	s.logger.InfoContext(ctx, "Member permission changed", "user_id", uid, "flag", flag, "value", value)
	return target, nil
}

// ToggleMemberRole flips a member between admin and user. Owner only.
func (s *Service) ToggleMemberRole(ctx context.Context, actor *user.User, uid string) (*user.User, error) {
	target, err := s.memberOfOwnedGroup(ctx, actor, uid)
	if err != nil {
		return nil, err
	}

	role := user.RoleAdmin
	if target.Role == user.RoleAdmin {
		role = user.RoleUser
	}
	if err := s.profiles.UpdateRole(ctx, uid, role); err != nil {
		return nil, err
	}

	target.Role = role
	s.logger.InfoContext(ctx, "Member role changed", "user_id", uid, "role", role)
	return target, nil
}
