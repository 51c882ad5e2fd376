package user

import "github.com/fkhayef/chaikhata/internal/permission"

// UpdateProfileRequest represents the request body for editing the caller's profile
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

// UserResponse represents the response for a single profile
type UserResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	GroupID     *string          `json:"groupId"`
	Groups      []string         `json:"groups"`
	Role        Role             `json:"role"`
	Permissions permission.Flags `json:"permissions"`
	CreatedAt   string           `json:"createdAt"`
}

// ToResponse converts a User model to a UserResponse DTO
func (u *User) ToResponse() *UserResponse {
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	return &UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		GroupID:     u.GroupID,
		Groups:      groups,
		Role:        u.Role,
		Permissions: u.Permissions,
		CreatedAt:   u.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponses converts a slice of users
func ToResponses(users []*User) []*UserResponse {
	out := make([]*UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return out
}
