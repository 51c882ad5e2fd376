// Package realtime turns Postgres change notifications into per-query
// snapshot streams.
//
// Writers call Notify inside the same transaction as their write; the
// notification is delivered on commit. A Hub listening on Channel wakes every
// Subscription watching that change, and each subscription re-runs its query
// and emits a full snapshot.
package realtime

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Channel is the Postgres NOTIFY channel carrying change payloads.
const Channel = "chaikhata_changes"

// Collection names a snapshot query scope.
type Collection string

const (
	Entries  Collection = "entries"
	Payments Collection = "payments"
	Group    Collection = "group"
	Members  Collection = "members"
	Profile  Collection = "profile"
)

// Change identifies a collection that changed for a key. The key is a group
// ID for group-scoped collections and a user ID for Profile.
type Change struct {
	Key        string
	Collection Collection
}

func (c Change) String() string {
	return c.Key + "|" + string(c.Collection)
}

// ParseChange decodes a notification payload produced by Change.String.
func ParseChange(payload string) (Change, error) {
	key, coll, ok := strings.Cut(payload, "|")
	if !ok || key == "" || coll == "" {
		return Change{}, fmt.Errorf("malformed change payload %q", payload)
	}
	switch c := Collection(coll); c {
	case Entries, Payments, Group, Members, Profile:
		return Change{Key: key, Collection: c}, nil
	default:
		return Change{}, fmt.Errorf("unknown collection %q", coll)
	}
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Notify queues a change notification for each collection under key.
func Notify(ctx context.Context, ex Execer, key string, collections ...Collection) error {
	for _, c := range collections {
		payload := Change{Key: key, Collection: c}.String()
		if _, err := ex.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, payload); err != nil {
			return fmt.Errorf("failed to notify %s: %w", payload, err)
		}
	}
	return nil
}
