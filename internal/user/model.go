package user

import (
	"errors"
	"slices"
	"time"

	"github.com/fkhayef/chaikhata/internal/permission"
)

// ErrNoActiveGroup is returned when an operation needs the caller's current
// group and the caller has none.
var ErrNoActiveGroup = errors.New("no active group")

// Role is the role tag stored on a profile.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Sign-in providers
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// User represents an identity profile
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Provider     string
	GroupID      *string
	Groups       []string
	Role         Role
	Permissions  permission.Flags
	CreatedAt    time.Time
}

// ActiveGroup returns the current group reference.
func (u *User) ActiveGroup() (string, error) {
	if u.GroupID == nil || *u.GroupID == "" {
		return "", ErrNoActiveGroup
	}
	return *u.GroupID, nil
}

// MemberOf reports whether groupID is among the user's memberships.
func (u *User) MemberOf(groupID string) bool {
	return slices.Contains(u.Groups, groupID)
}
