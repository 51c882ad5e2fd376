package entry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
)

type memStore struct {
	entries map[string]*Entry
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]*Entry{}}
}

func (m *memStore) Create(_ context.Context, e *Entry) error {
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListByGroup(_ context.Context, groupID string) ([]*Entry, error) {
	var out []*Entry
	for _, e := range m.entries {
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memStore) Delete(_ context.Context, groupID, id string) error {
	e, ok := m.entries[id]
	if !ok || e.GroupID != groupID {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) UpdateDate(_ context.Context, groupID, id string, date time.Time) error {
	e, ok := m.entries[id]
	if !ok || e.GroupID != groupID {
		return ErrEntryNotFound
	}
	e.Date = date
	return nil
}

type fixedGroups struct {
	g *group.Group
}

func (f fixedGroups) Current(_ context.Context, actor *user.User) (*group.Group, error) {
	id, err := actor.ActiveGroup()
	if err != nil {
		return nil, err
	}
	if f.g == nil || f.g.ID != id {
		return nil, group.ErrGroupNotFound
	}
	return f.g, nil
}

func testGroup() *group.Group {
	return &group.Group{
		ID:        "CK-TEST01",
		Name:      "Office",
		AdminUID:  "owner",
		Members:   []string{"owner", "member"},
		Items:     group.DefaultMenu(),
		TimeSlots: group.DefaultTimeSlots(),
	}
}

func member(id string, flags permission.Flags) *user.User {
	gid := "CK-TEST01"
	return &user.User{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], GroupID: &gid, Groups: []string{gid}, Permissions: flags}
}

func newTestService(at time.Time) (*Service, *memStore) {
	store := newMemStore()
	svc := NewService(store, fixedGroups{testGroup()}, time.UTC, nil)
	svc.now = func() time.Time { return at }
	return svc, store
}

func intPtr(n int) *int { return &n }

func TestDefaultSlot(t *testing.T) {
	slots := []string{"Early", "Lunch", "Late"}
	day := func(h int) time.Time { return time.Date(2026, 3, 10, h, 30, 0, 0, time.UTC) }

	cases := []struct {
		name  string
		slots []string
		at    time.Time
		want  string
	}{
		{"morning", slots, day(9), "Early"},
		{"noon is afternoon", slots, day(12), "Lunch"},
		{"16:30 still afternoon", slots, day(16), "Lunch"},
		{"evening", slots, day(17), "Late"},
		{"missing third slot falls back", []string{"A", "B"}, day(20), "Evening"},
		{"no slots", nil, day(8), "Morning"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultSlot(tc.slots, tc.at); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWithDateKeepsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	original := time.Date(2026, 3, 10, 23, 45, 12, 500, loc)

	got := WithDate(original.UTC(), 2026, time.February, 28, loc)
	want := time.Date(2026, 2, 28, 23, 45, 12, 500, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLog(t *testing.T) {
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc, store := newTestService(at)
	ctx := context.Background()
	m := member("member", permission.Flags{})

	e, err := svc.Log(ctx, m, LogEntryRequest{ItemID: "1"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if e.Size != SizeFull || e.Quantity != 1 || e.TimeSlot != "Afternoon" {
		t.Errorf("defaults: %+v", e)
	}
	if !e.Price.Equal(decimal.NewFromInt(15)) || e.ItemName != "Chai" || e.UserName != "Member" {
		t.Errorf("snapshot: %+v", e)
	}
	if !e.Date.Equal(at) || len(store.entries) != 1 {
		t.Errorf("stored: %+v", store.entries)
	}

	half, err := svc.Log(ctx, m, LogEntryRequest{ItemID: "2", Size: SizeHalf, Quantity: intPtr(3), Time: "Morning"})
	if err != nil {
		t.Fatalf("Log half: %v", err)
	}
	if !half.Price.Equal(decimal.NewFromInt(15)) || !half.Contribution().Equal(decimal.NewFromInt(45)) {
		t.Errorf("half coffee x3: price %s contribution %s", half.Price, half.Contribution())
	}

	cases := []struct {
		name string
		req  LogEntryRequest
		want error
	}{
		{"no item", LogEntryRequest{}, ErrItemRequired},
		{"unknown item", LogEntryRequest{ItemID: "99"}, ErrItemNotOnMenu},
		{"bad size", LogEntryRequest{ItemID: "1", Size: "large"}, ErrInvalidSize},
		{"zero quantity", LogEntryRequest{ItemID: "1", Quantity: intPtr(0)}, ErrInvalidQuantity},
		{"unknown slot", LogEntryRequest{ItemID: "1", Time: "Midnight"}, ErrInvalidSlot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Log(ctx, m, tc.req); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	outsider := &user.User{ID: "stranger", GroupID: m.GroupID}
	if _, err := svc.Log(ctx, outsider, LogEntryRequest{ItemID: "1"}); !errors.Is(err, group.ErrNotMember) {
		t.Errorf("non-member: got %v", err)
	}
}

func TestPriceIsSnapshotted(t *testing.T) {
	svc, store := newTestService(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	e, _ := svc.Log(ctx, member("member", permission.Flags{}), LogEntryRequest{ItemID: "1"})

	// A later menu price change must not touch the logged entry.
	svc.groups.(fixedGroups).g.Items[0].PriceFull = decimal.NewFromInt(99)

	stored, _ := store.GetByID(ctx, e.ID)
	if !stored.Price.Equal(decimal.NewFromInt(15)) {
		t.Errorf("price changed retroactively: %s", stored.Price)
	}
}

func TestDeleteIsGated(t *testing.T) {
	svc, store := newTestService(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	e, _ := svc.Log(ctx, member("member", permission.Flags{}), LogEntryRequest{ItemID: "1"})

	if err := svc.Delete(ctx, member("member", permission.Flags{}), e.ID); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("member without canDelete: got %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatal("entry must survive a denied delete")
	}

	if err := svc.Delete(ctx, member("owner", permission.Flags{}), "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing entry: got %v", err)
	}
	if err := svc.Delete(ctx, member("member", permission.Flags{CanDelete: true}), e.ID); err != nil {
		t.Fatalf("permitted delete: %v", err)
	}
	if len(store.entries) != 0 {
		t.Error("entry not deleted")
	}
}

func TestCorrectDate(t *testing.T) {
	svc, store := newTestService(time.Date(2026, 3, 10, 16, 20, 5, 0, time.UTC))
	ctx := context.Background()

	e, _ := svc.Log(ctx, member("member", permission.Flags{}), LogEntryRequest{ItemID: "1"})

	if _, err := svc.CorrectDate(ctx, member("member", permission.Flags{}), e.ID, "2026-03-01"); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Errorf("member: got %v", err)
	}
	if _, err := svc.CorrectDate(ctx, member("owner", permission.Flags{}), e.ID, "01/03/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("bad date: got %v", err)
	}

	got, err := svc.CorrectDate(ctx, member("owner", permission.Flags{}), e.ID, "2026-03-01")
	if err != nil {
		t.Fatalf("CorrectDate: %v", err)
	}
	want := time.Date(2026, 3, 1, 16, 20, 5, 0, time.UTC)
	if !got.Date.Equal(want) || !store.entries[e.ID].Date.Equal(want) {
		t.Errorf("date: got %v, want %v", got.Date, want)
	}
}

func TestHandlerDeleteRequiresConfirm(t *testing.T) {
	svc, _ := newTestService(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	owner := member("owner", permission.Flags{})
	e, _ := svc.Log(context.Background(), owner, LogEntryRequest{ItemID: "1"})

	router := NewHandler(svc).Routes()
	do := func(path string) int {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		req = req.WithContext(user.WithUser(req.Context(), owner))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("/" + e.ID); code != http.StatusBadRequest {
		t.Errorf("without confirm: got %d", code)
	}
	if code := do("/" + e.ID + "?confirm=true"); code != http.StatusOK {
		t.Errorf("with confirm: got %d", code)
	}
	if code := do("/" + e.ID + "?confirm=true"); code != http.StatusNotFound {
		t.Errorf("already deleted: got %d", code)
	}
}
