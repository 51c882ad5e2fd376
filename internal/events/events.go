// Package events publishes domain events for out-of-process consumers such
// as mailers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	PasswordResetRequested = "password_reset_requested"
	GroupDeleted           = "group_deleted"
	PaymentRecorded        = "payment_recorded"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh ID.
func NewEvent(eventType string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends events. Publish failures never roll back the write that
// produced the event.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Close() error
}

// PasswordResetPayload is sent for PasswordResetRequested.
type PasswordResetPayload struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GroupDeletedPayload is sent for GroupDeleted.
type GroupDeletedPayload struct {
	GroupID   string   `json:"groupId"`
	DeletedBy string   `json:"deletedBy"`
	Members   []string `json:"members"`
}

// PaymentRecordedPayload is sent for PaymentRecorded.
type PaymentRecordedPayload struct {
	PaymentID  string `json:"paymentId"`
	GroupID    string `json:"groupId"`
	Amount     string `json:"amount"`
	RecordedBy string `json:"recordedBy"`
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs events at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	ev := NewEvent(eventType, payload)
	p.logger.InfoContext(ctx, "Event", "id", ev.ID, "type", ev.Type, "payload", ev.Payload)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
