package user

import (
	"context"
	"errors"
	"strings"
)

// Common errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrNameRequired      = errors.New("name is required")
)

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	ListByGroup(ctx context.Context, groupID string) ([]*User, error)
	UpdateName(ctx context.Context, id, name string) error
}

// Service handles profile business logic
type Service struct {
	repo Store
}

// NewService creates a new user service with repository dependency injected
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// GetByID retrieves a user by their ID
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// UpdateProfile sets the caller's display name. Entries and payments keep
// the name they were written with.
func (s *Service) UpdateProfile(ctx context.Context, id, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	if err := s.repo.UpdateName(ctx, id, name); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ListByGroup returns the members of groupID
func (s *Service) ListByGroup(ctx context.Context, groupID string) ([]*User, error) {
	return s.repo.ListByGroup(ctx, groupID)
}
