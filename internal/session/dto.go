package session

import (
	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/payment"
	"github.com/fkhayef/chaikhata/internal/report"
	"github.com/fkhayef/chaikhata/internal/user"
)

// StateResponse is one server-sent workspace event
type StateResponse struct {
	Version  uint64                     `json:"version"`
	Profile  *user.UserResponse         `json:"profile,omitempty"`
	GroupID  *string                    `json:"groupId"`
	Group    *group.GroupResponse       `json:"group"`
	Entries  []*entry.EntryResponse     `json:"entries"`
	Payments []*payment.PaymentResponse `json:"payments"`
	Members  []*user.UserResponse       `json:"members"`
	Summary  report.Summary             `json:"summary"`
}

// ToResponse converts a State to a StateResponse DTO
func (s State) ToResponse() *StateResponse {
	resp := &StateResponse{
		Version:  s.Version,
		Entries:  entry.ToResponses(s.Entries),
		Payments: payment.ToResponses(s.Payments),
		Members:  user.ToResponses(s.Members),
		Summary:  s.Summary,
	}
	if s.Profile != nil {
		resp.Profile = s.Profile.ToResponse()
	}
	if s.GroupID != "" {
		id := s.GroupID
		resp.GroupID = &id
	}
	if s.Group != nil {
		resp.Group = s.Group.ToResponse()
	}
	return resp
}
