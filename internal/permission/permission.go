// Package permission decides whether an identity may perform a gated action
// in a group. Every gated write goes through Allowed or Check.
package permission

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned by Check when an action is not allowed.
var ErrPermissionDenied = errors.New("permission denied")

// Action is one of the gated actions.
type Action string

const (
	DeleteEntries  Action = "deleteEntries"
	RecordPayments Action = "recordPayments"
	EditMenu       Action = "editMenu"
	EditTimeSlots  Action = "editTimeSlots"
)

// Actions lists every gated action.
var Actions = []Action{DeleteEntries, RecordPayments, EditMenu, EditTimeSlots}

// Flags are the per-identity permission flags stored on the user profile.
type Flags struct {
	CanDelete   bool `json:"canDelete"`
	CanPayments bool `json:"canPayments"`
	CanMenu     bool `json:"canMenu"`
	CanSlots    bool `json:"canSlots"`
}

// Has reports whether the flag for action is set.
func (f Flags) Has(action Action) bool {
	switch action {
	case DeleteEntries:
		return f.CanDelete
	case RecordPayments:
		return f.CanPayments
	case EditMenu:
		return f.CanMenu
	case EditTimeSlots:
		return f.CanSlots
	}
	return false
}

// Set returns a copy of f with the named flag set to value.
func (f Flags) Set(flag string, value bool) (Flags, error) {
	switch flag {
	case "canDelete":
		f.CanDelete = value
	case "canPayments":
		f.CanPayments = value
	case "canMenu":
		f.CanMenu = value
	case "canSlots":
		f.CanSlots = value
	default:
		return f, fmt.Errorf("unknown permission flag %q", flag)
	}
	return f, nil
}

// Value implements driver.Valuer for the JSONB column.
func (f Flags) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for the JSONB column.
func (f *Flags) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = Flags{}
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("cannot scan %T into permission.Flags", src)
	}
}

// Allowed reports whether the identity uid, holding flags, may perform action
// in a group owned by ownerUID. The owner is always allowed.
func Allowed(uid string, flags Flags, ownerUID string, action Action) bool {
	if uid != "" && uid == ownerUID {
		return true
	}
	return flags.Has(action)
}

// Check is Allowed as an error: it wraps ErrPermissionDenied with the action.
func Check(uid string, flags Flags, ownerUID string, action Action) error {
	if !Allowed(uid, flags, ownerUID, action) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, action)
	}
	return nil
}
