package group

import (
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
)

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// GroupIDRequest carries a group code for join and switch
type GroupIDRequest struct {
	GroupID string `json:"groupId"`
}

// ItemRequest adds or edits a menu item. Prices are decimal strings.
type ItemRequest struct {
	Name      string `json:"name"`
	PriceHalf string `json:"priceHalf"`
	PriceFull string `json:"priceFull"`
}

// SlotRequest adds a time slot
type SlotRequest struct {
	Slot string `json:"slot"`
}

// PermissionRequest sets one permission flag on a member
type PermissionRequest struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AdminUID  string   `json:"adminUid"`
	Members   []string `json:"members"`
	Items     Menu     `json:"items"`
	TimeSlots []string `json:"timeSlots"`
	CreatedAt string   `json:"createdAt"`
}

// MemberResponse is a member as seen by the owner's settings screen
type MemberResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Role        user.Role        `json:"role"`
	Permissions permission.Flags `json:"permissions"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	resp := &GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		AdminUID:  g.AdminUID,
		Members:   g.Members,
		Items:     g.Items,
		TimeSlots: g.TimeSlots,
		CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if resp.Members == nil {
		resp.Members = []string{}
	}
	if resp.Items == nil {
		resp.Items = Menu{}
	}
	if resp.TimeSlots == nil {
		resp.TimeSlots = []string{}
	}
	return resp
}

func toMemberResponse(u *user.User) *MemberResponse {
	return &MemberResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions,
	}
}
