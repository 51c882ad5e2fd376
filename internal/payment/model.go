package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a repayment reducing the group's outstanding balance. The
// recorder's name is captured at write time. Payments are never edited.
type Payment struct {
	ID         string
	GroupID    string
	Amount     decimal.Decimal
	RecordedBy string
	Date       time.Time
}
