package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/user"
)

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

func passwordHash(t *testing.T, db *sql.DB, uid string) string {
	t.Helper()
	var hash string
	if err := db.QueryRow(`SELECT password_hash FROM users WHERE id = $1`, uid).Scan(&hash); err != nil {
		t.Fatalf("read password: %v", err)
	}
	return hash
}

func TestRepositoryResetPassword(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	now := time.Now()

	u := &user.User{ID: uuid.NewString(), Name: "Asha", PasswordHash: "old", Provider: user.ProviderPassword}
	u.Email = u.ID + "@example.com"
	if err := user.NewRepository(db).Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM users WHERE id = $1`, u.ID) })

	token := uuid.NewString()
	if err := repo.CreateReset(ctx, token, u.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateReset: %v", err)
	}
	expired := uuid.NewString()
	if err := repo.CreateReset(ctx, expired, u.ID, now.Add(-time.Minute)); err != nil {
		t.Fatalf("CreateReset: %v", err)
	}

	t.Run("failed password write keeps the token", func(t *testing.T) {
		name := "block_password_" + uuid.NewString()[:8]
		_, err := db.Exec(fmt.Sprintf(`
			CREATE FUNCTION %s() RETURNS trigger AS $$
			BEGIN
				IF NEW.id = %s THEN
					RAISE EXCEPTION 'password write blocked';
				END IF;
				RETURN NEW;
			END
			$$ LANGUAGE plpgsql`, pq.QuoteIdentifier(name), pq.QuoteLiteral(u.ID)))
		if err != nil {
			t.Fatalf("create trigger function: %v", err)
		}
		_, err = db.Exec(fmt.Sprintf(`CREATE TRIGGER %s BEFORE UPDATE ON users FOR EACH ROW EXECUTE FUNCTION %s()`,
			pq.QuoteIdentifier(name), pq.QuoteIdentifier(name)))
		if err != nil {
			t.Fatalf("create trigger: %v", err)
		}
		defer func() {
			db.Exec(fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON users`, pq.QuoteIdentifier(name)))
			db.Exec(fmt.Sprintf(`DROP FUNCTION IF EXISTS %s()`, pq.QuoteIdentifier(name)))
		}()

		if _, err := repo.ResetPassword(ctx, token, "new", now); err == nil {
			t.Fatal("expected the write to fail")
		}
		var used bool
		if err := db.QueryRow(`SELECT used FROM password_resets WHERE token = $1`, token).Scan(&used); err != nil {
			t.Fatal(err)
		}
		if used {
			t.Error("token marked used after a failed reset")
		}
		if got := passwordHash(t, db, u.ID); got != "old" {
			t.Errorf("password changed: %q", got)
		}
	})

	t.Run("reset once", func(t *testing.T) {
		uid, err := repo.ResetPassword(ctx, token, "new", now)
		if err != nil || uid != u.ID {
			t.Fatalf("ResetPassword: %q, %v", uid, err)
		}
		if got := passwordHash(t, db, u.ID); got != "new" {
			t.Errorf("password: got %q", got)
		}
		if _, err := repo.ResetPassword(ctx, token, "again", now); !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("reused token: got %v", err)
		}
		if _, err := repo.ResetPassword(ctx, expired, "again", now); !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("expired token: got %v", err)
		}
		if got := passwordHash(t, db, u.ID); got != "new" {
			t.Errorf("password after rejected resets: got %q", got)
		}
	})
}
