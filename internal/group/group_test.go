package group

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
)

// world is an in-memory Store and Profiles sharing one set of users.
type world struct {
	groups map[string]*Group
	users  map[string]*user.User
	taken  map[string]bool
}

func newWorld(users ...*user.User) *world {
	w := &world{groups: map[string]*Group{}, users: map[string]*user.User{}, taken: map[string]bool{}}
	for _, u := range users {
		w.users[u.ID] = u
	}
	return w
}

func (w *world) Create(_ context.Context, g *Group) error {
	if w.taken[g.ID] || w.groups[g.ID] != nil {
		return ErrGroupIDTaken
	}
	w.groups[g.ID] = g
	w.attach(g.AdminUID, g.ID, user.RoleAdmin)
	return nil
}

func (w *world) attach(uid, groupID string, role user.Role) {
	u := w.users[uid]
	id := groupID
	u.GroupID = &id
	if !slices.Contains(u.Groups, groupID) {
		u.Groups = append(u.Groups, groupID)
	}
	u.Role = role
}

func (w *world) detach(uid, groupID string) {
	u := w.users[uid]
	u.Groups = slices.DeleteFunc(u.Groups, func(g string) bool { return g == groupID })
	if u.GroupID != nil && *u.GroupID == groupID {
		u.GroupID = nil
		if len(u.Groups) > 0 {
			next := u.Groups[0]
			u.GroupID = &next
		}
	}
}

func (w *world) GetByID(_ context.Context, id string) (*Group, error) {
	g := w.groups[id]
	if g == nil {
		return nil, nil
	}
	cp := *g
	cp.Items = slices.Clone(g.Items)
	cp.TimeSlots = slices.Clone(g.TimeSlots)
	cp.Members = slices.Clone(g.Members)
	return &cp, nil
}

func (w *world) ListByMember(_ context.Context, uid string) ([]*Group, error) {
	var out []*Group
	for _, g := range w.groups {
		if g.HasMember(uid) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (w *world) AddMember(_ context.Context, groupID, uid string) error {
	g := w.groups[groupID]
	if g == nil {
		return ErrGroupNotFound
	}
	if !g.HasMember(uid) {
		g.Members = append(g.Members, uid)
	}
	role := user.RoleUser
	if g.IsOwner(uid) {
		role = user.RoleAdmin
	}
	w.attach(uid, groupID, role)
	return nil
}

func (w *world) RemoveMember(_ context.Context, groupID, uid string) error {
	g := w.groups[groupID]
	if g == nil {
		return ErrGroupNotFound
	}
	g.Members = slices.DeleteFunc(g.Members, func(m string) bool { return m == uid })
	w.detach(uid, groupID)
	return nil
}

func (w *world) Delete(_ context.Context, groupID string) error {
	if w.groups[groupID] == nil {
		return ErrGroupNotFound
	}
	for uid, u := range w.users {
		if u.MemberOf(groupID) {
			w.detach(uid, groupID)
		}
	}
	delete(w.groups, groupID)
	return nil
}

func (w *world) SetActive(_ context.Context, uid, groupID string) error {
	u := w.users[uid]
	if !u.MemberOf(groupID) {
		return ErrNotMember
	}
	u.GroupID = &groupID
	return nil
}

func (w *world) UpdateSettings(ctx context.Context, groupID string, fn func(g *Group) error) (*Group, error) {
	g, _ := w.GetByID(ctx, groupID)
	if g == nil {
		return nil, ErrGroupNotFound
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	w.groups[groupID] = g
	return g, nil
}

func (w *world) ListByGroup(_ context.Context, groupID string) ([]*user.User, error) {
	var out []*user.User
	for _, u := range w.users {
		if u.MemberOf(groupID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (w *world) UpdatePermissions(_ context.Context, id string, flags permission.Flags) error {
	w.users[id].Permissions = flags
	return nil
}

func (w *world) UpdateRole(_ context.Context, id string, role user.Role) error {
	w.users[id].Role = role
	return nil
}

func (w *world) profile(id string) *user.User {
	return w.users[id]
}

// GetByID on Profiles collides with Store's, so profiles are served by a view.
type profiles struct{ *world }

func (p profiles) GetByID(_ context.Context, id string) (*user.User, error) {
	u := p.users[id]
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type nopPublisher struct{ types []string }

func (p *nopPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.types = append(p.types, eventType)
	return nil
}

func (p *nopPublisher) Close() error { return nil }

func newTestService(w *world) (*Service, *nopPublisher) {
	pub := &nopPublisher{}
	return NewService(w, profiles{w}, pub, "CK-", nil), pub
}

func people() (*user.User, *user.User, *user.User) {
	return &user.User{ID: "owner", Name: "Owner"},
		&user.User{ID: "member", Name: "Member"},
		&user.User{ID: "other", Name: "Other"}
}

func TestNewID(t *testing.T) {
	pattern := regexp.MustCompile(`^CK-[0-9A-Z]{6}$`)
	seen := map[string]bool{}
	for range 50 {
		id, err := NewID("CK-")
		if err != nil {
			t.Fatal(err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("bad id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Errorf("ids not random enough: %d unique of 50", len(seen))
	}
}

func TestCreateSeedsDefaults(t *testing.T) {
	owner, _, _ := people()
	w := newWorld(owner)
	svc, _ := newTestService(w)

	g, err := svc.Create(context.Background(), owner, "  Third Floor  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if g.Name != "Third Floor" || g.AdminUID != "owner" || !slices.Equal(g.Members, []string{"owner"}) {
		t.Errorf("group: %+v", g)
	}
	if len(g.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(g.Items))
	}
	chai, coffee := g.Items[0], g.Items[1]
	if chai.Name != "Chai" || !chai.PriceHalf.Equal(decimal.NewFromInt(10)) || !chai.PriceFull.Equal(decimal.NewFromInt(15)) {
		t.Errorf("chai: %+v", chai)
	}
	if coffee.Name != "Coffee" || !coffee.PriceHalf.Equal(decimal.NewFromInt(15)) || !coffee.PriceFull.Equal(decimal.NewFromInt(25)) {
		t.Errorf("coffee: %+v", coffee)
	}
	if !slices.Equal(g.TimeSlots, []string{"Morning", "Afternoon", "Evening"}) {
		t.Errorf("slots: %v", g.TimeSlots)
	}

	p := w.profile("owner")
	if p.GroupID == nil || *p.GroupID != g.ID || p.Role != user.RoleAdmin || !p.MemberOf(g.ID) {
		t.Errorf("owner profile: %+v", p)
	}

	if _, err := svc.Create(context.Background(), owner, "   "); !errors.Is(err, ErrNameRequired) {
		t.Errorf("blank name: got %v", err)
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	owner, _, _ := people()
	w := newWorld(owner)
	w.taken["CK-AAAAAA"] = true
	svc, _ := newTestService(w)

	ids := []string{"CK-AAAAAA", "CK-AAAAAA", "CK-BBBBBB"}
	svc.newID = func(string) (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	g, err := svc.Create(context.Background(), owner, "Office")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.ID != "CK-BBBBBB" {
		t.Errorf("id: got %q", g.ID)
	}

	svc.newID = func(string) (string, error) { return "CK-AAAAAA", nil }
	if _, err := svc.Create(context.Background(), owner, "Office"); !errors.Is(err, ErrGroupIDTaken) {
		t.Errorf("exhausted retries: got %v", err)
	}
}

func TestOwnerRejoinKeepsAdminRole(t *testing.T) {
	owner, member, _ := people()
	w := newWorld(owner, member)
	svc, _ := newTestService(w)
	ctx := context.Background()

	g, _ := svc.Create(ctx, owner, "Office")
	if _, err := svc.Join(ctx, w.profile("owner"), g.ID); err != nil {
		t.Fatalf("owner rejoin: %v", err)
	}
	if role := w.profile("owner").Role; role != user.RoleAdmin {
		t.Errorf("owner role after rejoin: got %q, want admin", role)
	}

	if _, err := svc.Join(ctx, member, g.ID); err != nil {
		t.Fatalf("member join: %v", err)
	}
	if role := w.profile("member").Role; role != user.RoleUser {
		t.Errorf("member role: got %q, want user", role)
	}
}

func TestJoinLeave(t *testing.T) {
	owner, member, _ := people()
	w := newWorld(owner, member)
	svc, _ := newTestService(w)
	ctx := context.Background()

	first, _ := svc.Create(ctx, owner, "First")
	second, _ := svc.Create(ctx, owner, "Second")

	if _, err := svc.Join(ctx, member, "  "); !errors.Is(err, ErrGroupIDRequired) {
		t.Errorf("blank id: got %v", err)
	}
	if _, err := svc.Join(ctx, member, "CK-NOPE00"); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("missing group: got %v", err)
	}

	if _, err := svc.Join(ctx, member, " "+first.ID+" "); err != nil {
		t.Fatalf("Join first: %v", err)
	}
	if _, err := svc.Join(ctx, member, second.ID); err != nil {
		t.Fatalf("Join second: %v", err)
	}
	m := w.profile("member")
	if *m.GroupID != second.ID || m.Role != user.RoleUser {
		t.Fatalf("after join: %+v", m)
	}

	// Joining twice does not duplicate the member.
	if _, err := svc.Join(ctx, member, second.ID); err != nil {
		t.Fatal(err)
	}
	if n := len(w.groups[second.ID].Members); n != 2 {
		t.Errorf("members after rejoin: %d", n)
	}

	if err := svc.Leave(ctx, w.profile("member")); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	m = w.profile("member")
	if m.GroupID == nil || *m.GroupID != first.ID || m.MemberOf(second.ID) {
		t.Errorf("after leave, current group should fall back to %s: %+v", first.ID, m)
	}
	if w.groups[second.ID].HasMember("member") {
		t.Error("member still listed in left group")
	}

	if err := svc.Leave(ctx, w.profile("member")); err != nil {
		t.Fatal(err)
	}
	if m := w.profile("member"); m.GroupID != nil {
		t.Errorf("leaving last group should clear current group: %v", *m.GroupID)
	}

	if err := svc.Leave(ctx, w.profile("owner")); !errors.Is(err, ErrOwnerCannotLeave) {
		t.Errorf("owner leave: got %v", err)
	}
}

func TestDelete(t *testing.T) {
	owner, member, _ := people()
	w := newWorld(owner, member)
	svc, pub := newTestService(w)
	ctx := context.Background()

	g, _ := svc.Create(ctx, owner, "Office")
	svc.Join(ctx, member, g.ID)

	if err := svc.Delete(ctx, w.profile("member")); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner delete: got %v", err)
	}
	if w.groups[g.ID] == nil {
		t.Fatal("group must survive a rejected delete")
	}

	if err := svc.Delete(ctx, w.profile("owner")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if w.groups[g.ID] != nil {
		t.Error("group not deleted")
	}
	for _, id := range []string{"owner", "member"} {
		p := w.profile(id)
		if p.MemberOf(g.ID) || p.GroupID != nil {
			t.Errorf("%s still references deleted group: %+v", id, p)
		}
	}
	if !slices.Equal(pub.types, []string{"group_deleted"}) {
		t.Errorf("events: %v", pub.types)
	}
}

func TestSwitch(t *testing.T) {
	owner, member, _ := people()
	w := newWorld(owner, member)
	svc, _ := newTestService(w)
	ctx := context.Background()

	first, _ := svc.Create(ctx, owner, "First")
	svc.Create(ctx, owner, "Second")

	if _, err := svc.Switch(ctx, w.profile("owner"), first.ID); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if *w.profile("owner").GroupID != first.ID {
		t.Error("current group not switched")
	}
	if _, err := svc.Switch(ctx, w.profile("member"), first.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("non-member switch: got %v", err)
	}
}

func TestSettingsArePermissionGated(t *testing.T) {
	owner, member, _ := people()
	w := newWorld(owner, member)
	svc, _ := newTestService(w)
	ctx := context.Background()

	g, _ := svc.Create(ctx, owner, "Office")
	svc.Join(ctx, member, g.ID)

	item := ItemRequest{Name: "Green Tea", PriceFull: "20"}

	if _, err := svc.AddItem(ctx, w.profile("member"), item); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("member without canMenu: got %v", err)
	}
	if _, err := svc.AddSlot(ctx, w.profile("member"), "Night"); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("member without canSlots: got %v", err)
	}

	// The owner needs no flags.
	updated, err := svc.AddItem(ctx, w.profile("owner"), item)
	if err != nil {
		t.Fatalf("owner AddItem: %v", err)
	}
	added := updated.Items[2]
	if added.IsDaily || added.ID == "" || !added.PriceHalf.IsZero() || !added.PriceFull.Equal(decimal.NewFromInt(20)) {
		t.Errorf("added item: %+v", added)
	}

	w.users["member"].Permissions = permission.Flags{CanMenu: true, CanSlots: true}
	m := w.profile("member")

	if _, err := svc.UpdateItem(ctx, m, added.ID, ItemRequest{Name: "Green Tea", PriceHalf: "12", PriceFull: "22"}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, m, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("remove missing item: got %v", err)
	}
	if _, err := svc.RemoveItem(ctx, m, "1"); err != nil {
		t.Errorf("RemoveItem: %v", err)
	}

	if _, err := svc.AddSlot(ctx, m, "Night"); err != nil {
		t.Fatalf("AddSlot: %v", err)
	}
	if _, err := svc.AddSlot(ctx, m, "Night"); !errors.Is(err, ErrSlotExists) {
		t.Errorf("duplicate slot: got %v", err)
	}
	if _, err := svc.AddSlot(ctx, m, "  "); !errors.Is(err, ErrSlotRequired) {
		t.Errorf("blank slot: got %v", err)
	}
	g2, err := svc.RemoveSlot(ctx, m, "Morning")
	if err != nil {
		t.Fatalf("RemoveSlot: %v", err)
	}
	if !slices.Equal(g2.TimeSlots, []string{"Afternoon", "Evening", "Night"}) {
		t.Errorf("slots: %v", g2.TimeSlots)
	}
}

func TestItemValidation(t *testing.T) {
	cases := []struct {
		name string
		req  ItemRequest
		want error
	}{
		{"missing name", ItemRequest{PriceFull: "10"}, ErrItemNameRequired},
		{"missing full price", ItemRequest{Name: "Tea"}, ErrItemPriceRequired},
		{"non-numeric", ItemRequest{Name: "Tea", PriceFull: "ten"}, ErrInvalidPrice},
		{"negative half", ItemRequest{Name: "Tea", PriceFull: "10", PriceHalf: "-1"}, ErrInvalidPrice},
		{"three decimals", ItemRequest{Name: "Tea", PriceFull: "10.555"}, ErrInvalidPrice},
		{"half too large", ItemRequest{Name: "Tea", PriceFull: "10", PriceHalf: "1e13"}, ErrInvalidPrice},
		{"full at column limit", ItemRequest{Name: "Tea", PriceFull: "10000000000"}, ErrInvalidPrice},
		{"valid", ItemRequest{Name: "Tea", PriceFull: "9999999999.99", PriceHalf: "7.50"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseItem(tc.req); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFitsMoney(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"20.5", true},
		{"20.50", true},
		{"20.005", false},
		{"9999999999.99", true},
		{"10000000000", false},
		{"1e15", false},
		{"-9999999999.99", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := FitsMoney(decimal.RequireFromString(tc.in)); got != tc.want {
				t.Errorf("FitsMoney(%s) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestMemberAdministration(t *testing.T) {
	owner, member, other := people()
	w := newWorld(owner, member, other)
	svc, _ := newTestService(w)
	ctx := context.Background()

	g, _ := svc.Create(ctx, owner, "Office")
	svc.Join(ctx, member, g.ID)

	if _, err := svc.SetMemberPermission(ctx, w.profile("member"), "member", "canDelete", true); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner: got %v", err)
	}
	if _, err := svc.SetMemberPermission(ctx, w.profile("owner"), "other", "canDelete", true); !errors.Is(err, ErrNotMember) {
		t.Errorf("non-member target: got %v", err)
	}
	if _, err := svc.SetMemberPermission(ctx, w.profile("owner"), "owner", "canDelete", false); !errors.Is(err, ErrCannotChangeOwner) {
		t.Errorf("owner target: got %v", err)
	}
	if _, err := svc.SetMemberPermission(ctx, w.profile("owner"), "member", "canFly", true); !errors.Is(err, ErrInvalidFlag) {
		t.Errorf("unknown flag: got %v", err)
	}

	got, err := svc.SetMemberPermission(ctx, w.profile("owner"), "member", "canPayments", true)
	if err != nil {
		t.Fatalf("SetMemberPermission: %v", err)
	}
	if !got.Permissions.CanPayments || !w.profile("member").Permissions.CanPayments {
		t.Error("flag not stored")
	}

	got, err = svc.ToggleMemberRole(ctx, w.profile("owner"), "member")
	if err != nil || got.Role != user.RoleAdmin {
		t.Fatalf("toggle to admin: %+v, %v", got, err)
	}
	got, _ = svc.ToggleMemberRole(ctx, w.profile("owner"), "member")
	if got.Role != user.RoleUser {
		t.Errorf("toggle back: %s", got.Role)
	}
}

func TestHandlerErrors(t *testing.T) {
	owner, member, _ := people()
	w := newWorld(owner, member)
	svc, _ := newTestService(w)
	g, _ := svc.Create(context.Background(), owner, "Office")
	svc.Join(context.Background(), member, g.ID)

	router := NewHandler(svc).Routes()

	cases := []struct {
		name   string
		as     string
		method string
		path   string
		body   string
		status int
	}{
		{"current", "member", http.MethodGet, "/current", "", http.StatusOK},
		{"join missing", "member", http.MethodPost, "/join", `{"groupId":"CK-NOPE00"}`, http.StatusNotFound},
		{"create blank", "member", http.MethodPost, "/", `{"name":" "}`, http.StatusBadRequest},
		{"menu denied", "member", http.MethodPost, "/current/items", `{"name":"Tea","priceFull":"10"}`, http.StatusForbidden},
		{"owner leave", "owner", http.MethodPost, "/leave", "", http.StatusConflict},
		{"delete denied", "member", http.MethodDelete, "/current", "", http.StatusForbidden},
		{"remove slot with space", "owner", http.MethodDelete, "/current/slots/Late%20Night", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req = req.WithContext(user.WithUser(req.Context(), w.profile(tc.as)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
		})
	}
}
