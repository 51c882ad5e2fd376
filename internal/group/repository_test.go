package group

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/user"
)

// openTestDB connects to DATABASE_URL and applies migrations. Tests that need
// it are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := database.NewPostgresConnection(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db    *sql.DB
	repo  *Repository
	users *user.Repository
	tag   string
}

func newFixture(t *testing.T) *fixture {
	db := openTestDB(t)
	f := &fixture{
		db:    db,
		repo:  NewRepository(db),
		users: user.NewRepository(db),
		tag:   strings.ReplaceAll(uuid.NewString(), "-", "")[:10],
	}
	t.Cleanup(func() {
		ctx := context.Background()
		like := "%" + f.tag
		db.ExecContext(ctx, `DELETE FROM entries WHERE group_id LIKE $1`, like)
		db.ExecContext(ctx, `DELETE FROM payments WHERE group_id LIKE $1`, like)
		db.ExecContext(ctx, `DELETE FROM groups WHERE id LIKE $1`, like)
		db.ExecContext(ctx, `DELETE FROM users WHERE id LIKE $1`, like)
	})
	return f
}

func (f *fixture) id(name string) string {
	return name + "-" + f.tag
}

func (f *fixture) addUser(t *testing.T, name string) string {
	t.Helper()
	u := &user.User{ID: f.id(name), Name: name, Email: f.id(name) + "@example.com", Provider: user.ProviderPassword, Role: user.RoleUser}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

func (f *fixture) addGroup(t *testing.T, name, owner string) string {
	t.Helper()
	g := &Group{ID: f.id(name), Name: name, AdminUID: owner, Members: []string{owner}, Items: DefaultMenu(), TimeSlots: DefaultTimeSlots()}
	if err := f.repo.Create(context.Background(), g); err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return g.ID
}

func (f *fixture) addActivity(t *testing.T, groupID, uid string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO entries (id, group_id, user_uid, user_name, item_id, item_name, size, quantity, price, time_slot, date)
		VALUES ($1, $2, $3, 'Someone', '1', 'Chai', 'full', 1, 15, 'Morning', now())
	`, uuid.NewString(), groupID, uid)
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	_, err = f.db.ExecContext(ctx, `
		INSERT INTO payments (id, group_id, amount, recorded_by) VALUES ($1, $2, 10, 'Someone')
	`, uuid.NewString(), groupID)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func (f *fixture) count(t *testing.T, table, groupID string) int {
	t.Helper()
	var n int
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE group_id = $1`, pq.QuoteIdentifier(table))
	if err := f.db.QueryRowContext(context.Background(), query, groupID).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func (f *fixture) profile(t *testing.T, uid string) *user.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), uid)
	if err != nil || u == nil {
		t.Fatalf("load profile %s: %v", uid, err)
	}
	return u
}

// blockDelete installs a trigger that aborts deleting groupID, so a Delete
// fails after the entries, payments and profiles have already been touched
// inside its transaction.
func (f *fixture) blockDelete(t *testing.T, groupID string) func() {
	t.Helper()
	ctx := context.Background()
	fn := "block_group_delete_" + f.tag
	trigger := "block_group_delete_" + f.tag

	_, err := f.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE FUNCTION %s() RETURNS trigger AS $$
		BEGIN
			IF OLD.id = %s THEN
				RAISE EXCEPTION 'group delete blocked';
			END IF;
			RETURN OLD;
		END
		$$ LANGUAGE plpgsql`, pq.QuoteIdentifier(fn), pq.QuoteLiteral(groupID)))
	if err != nil {
		t.Fatalf("create trigger function: %v", err)
	}
	_, err = f.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TRIGGER %s BEFORE DELETE ON groups FOR EACH ROW EXECUTE FUNCTION %s()`,
		pq.QuoteIdentifier(trigger), pq.QuoteIdentifier(fn)))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	var once bool
	remove := func() {
		if once {
			return
		}
		once = true
		f.db.ExecContext(ctx, fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON groups`, pq.QuoteIdentifier(trigger)))
		f.db.ExecContext(ctx, fmt.Sprintf(`DROP FUNCTION IF EXISTS %s()`, pq.QuoteIdentifier(fn)))
	}
	t.Cleanup(remove)
	return remove
}

func TestRepositoryDeleteCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.addUser(t, "owner")
	member := f.addUser(t, "member")
	bystander := f.addUser(t, "bystander")

	keep := f.addGroup(t, "keep", owner)
	doomed := f.addGroup(t, "doomed", owner)

	// member is currently in doomed, bystander currently in keep; both belong to both.
	for _, step := range []struct{ group, uid string }{
		{keep, member}, {doomed, member},
		{doomed, bystander}, {keep, bystander},
	} {
		if err := f.repo.AddMember(ctx, step.group, step.uid); err != nil {
			t.Fatalf("AddMember(%s, %s): %v", step.group, step.uid, err)
		}
	}
	f.addActivity(t, keep, member)
	f.addActivity(t, doomed, member)

	assertUntouched := func(t *testing.T) {
		t.Helper()
		if n := f.count(t, "entries", doomed); n != 1 {
			t.Errorf("entries of doomed group: got %d, want 1", n)
		}
		if n := f.count(t, "payments", doomed); n != 1 {
			t.Errorf("payments of doomed group: got %d, want 1", n)
		}
		if g, err := f.repo.GetByID(ctx, doomed); err != nil || g == nil {
			t.Errorf("doomed group should still exist: %v", err)
		}
		m := f.profile(t, member)
		if m.GroupID == nil || *m.GroupID != doomed || !m.MemberOf(doomed) {
			t.Errorf("member profile changed: %+v", m)
		}
	}

	t.Run("failure inside the transaction rolls everything back", func(t *testing.T) {
		unblock := f.blockDelete(t, doomed)
		defer unblock()

		if err := f.repo.Delete(ctx, doomed); err == nil {
			t.Fatal("expected Delete to fail")
		}
		assertUntouched(t)
	})

	t.Run("cancelled context changes nothing", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := f.repo.Delete(cancelled, doomed); err == nil {
			t.Fatal("expected Delete to fail")
		}
		assertUntouched(t)
	})

	t.Run("delete removes the group and every reference", func(t *testing.T) {
		if err := f.repo.Delete(ctx, doomed); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		if n := f.count(t, "entries", doomed) + f.count(t, "payments", doomed); n != 0 {
			t.Errorf("entries and payments left for deleted group: %d", n)
		}
		if n := f.count(t, "entries", keep) + f.count(t, "payments", keep); n != 2 {
			t.Errorf("other group's activity must survive, got %d rows", n)
		}
		if g, err := f.repo.GetByID(ctx, doomed); err != nil || g != nil {
			t.Errorf("group still present: %+v, %v", g, err)
		}

		for _, uid := range []string{owner, member, bystander} {
			p := f.profile(t, uid)
			if p.GroupID == nil || *p.GroupID != keep {
				t.Errorf("%s current group: got %v, want %s", uid, p.GroupID, keep)
			}
			if !slices.Equal(p.Groups, []string{keep}) {
				t.Errorf("%s memberships: got %v", uid, p.Groups)
			}
		}

		if err := f.repo.Delete(ctx, doomed); err != ErrGroupNotFound {
			t.Errorf("second delete: got %v, want ErrGroupNotFound", err)
		}
	})
}

func TestRepositoryDeleteLastGroupClearsCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.addUser(t, "solo")
	only := f.addGroup(t, "only", owner)

	if err := f.repo.Delete(ctx, only); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	p := f.profile(t, owner)
	if p.GroupID != nil || len(p.Groups) != 0 {
		t.Errorf("profile should have no group: %+v", p)
	}
}

func TestRepositoryAddMemberKeepsOwnerAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.addUser(t, "owner")
	member := f.addUser(t, "member")
	g := f.addGroup(t, "office", owner)

	if err := f.repo.AddMember(ctx, g, owner); err != nil {
		t.Fatalf("owner rejoin: %v", err)
	}
	if err := f.repo.AddMember(ctx, g, member); err != nil {
		t.Fatalf("member join: %v", err)
	}

	if role := f.profile(t, owner).Role; role != user.RoleAdmin {
		t.Errorf("owner role: got %q", role)
	}
	if role := f.profile(t, member).Role; role != user.RoleUser {
		t.Errorf("member role: got %q", role)
	}
	if err := f.repo.AddMember(ctx, f.id("missing"), member); err != ErrGroupNotFound {
		t.Errorf("missing group: got %v", err)
	}
}
