package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordPaymentRequest represents the request to record a payment
type RecordPaymentRequest struct {
	Amount string `json:"amount" example:"250.00"`
}

// PaymentResponse represents a payment in responses
type PaymentResponse struct {
	ID         string          `json:"id"`
	GroupID    string          `json:"groupId"`
	Amount     decimal.Decimal `json:"amount"`
	RecordedBy string          `json:"recordedBy"`
	Date       string          `json:"date"`
}

// ToResponse converts a Payment model to a PaymentResponse DTO
func (p *Payment) ToResponse() *PaymentResponse {
	return &PaymentResponse{
		ID:         p.ID,
		GroupID:    p.GroupID,
		Amount:     p.Amount,
		RecordedBy: p.RecordedBy,
		Date:       p.Date.UTC().Format(time.RFC3339Nano),
	}
}

// ToResponses converts a list of payments
func ToResponses(payments []*Payment) []*PaymentResponse {
	out := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = p.ToResponse()
	}
	return out
}
