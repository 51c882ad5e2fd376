package entry

import (
	"time"

	"github.com/shopspring/decimal"
)

// LogEntryRequest represents the request to log a consumption entry. Size
// defaults to full, quantity to 1 and time to the slot for the current hour.
type LogEntryRequest struct {
	ItemID   string `json:"itemId"`
	Size     Size   `json:"size,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
	Time     string `json:"time,omitempty"`
}

// CorrectDateRequest moves an entry to another calendar day
type CorrectDateRequest struct {
	Date string `json:"date" example:"2026-01-31"`
}

// EntryResponse represents an entry in responses
type EntryResponse struct {
	ID       string          `json:"id"`
	GroupID  string          `json:"groupId"`
	UserUID  string          `json:"userUid"`
	UserName string          `json:"userName"`
	ItemID   string          `json:"itemId"`
	ItemName string          `json:"itemName"`
	Size     Size            `json:"size"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Time     string          `json:"time"`
	Date     string          `json:"date"`
}

// ToResponse converts an Entry model to an EntryResponse DTO
func (e *Entry) ToResponse() *EntryResponse {
	return &EntryResponse{
		ID:       e.ID,
		GroupID:  e.GroupID,
		UserUID:  e.UserUID,
		UserName: e.UserName,
		ItemID:   e.ItemID,
		ItemName: e.ItemName,
		Size:     e.Size,
		Quantity: e.Quantity,
		Price:    e.Price,
		Time:     e.TimeSlot,
		Date:     e.Date.UTC().Format(time.RFC3339Nano),
	}
}

// ToResponses converts a slice of entries
func ToResponses(entries []*Entry) []*EntryResponse {
	out := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = e.ToResponse()
	}
	return out
}
