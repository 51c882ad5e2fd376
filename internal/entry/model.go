package entry

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/group"
)

// Size is the cup size of an entry
type Size string

const (
	SizeHalf Size = "half"
	SizeFull Size = "full"
)

// Valid reports whether s is a known size.
func (s Size) Valid() bool {
	return s == SizeHalf || s == SizeFull
}

// Entry is one consumption record. Price, item name and user name are
// captured when the entry is logged and never recomputed.
type Entry struct {
	ID       string
	GroupID  string
	UserUID  string
	UserName string
	ItemID   string
	ItemName string
	Size     Size
	Quantity int
	Price    decimal.Decimal
	TimeSlot string
	Date     time.Time
}

// Contribution is the entry's share of the group's spend.
func (e *Entry) Contribution() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// PriceFor returns the unit price of item in the given size.
func PriceFor(item group.MenuItem, size Size) decimal.Decimal {
	if size == SizeHalf {
		return item.PriceHalf
	}
	return item.PriceFull
}

var fallbackSlots = [3]string{"Morning", "Afternoon", "Evening"}

// DefaultSlot picks the slot for an entry logged at t without an explicit
// choice: before noon the first slot, before 17:00 the second, else the third.
func DefaultSlot(slots []string, t time.Time) string {
	i := 2
	switch h := t.Hour(); {
	case h < 12:
		i = 0
	case h < 17:
		i = 1
	}
	if i < len(slots) && slots[i] != "" {
		return slots[i]
	}
	return fallbackSlots[i]
}

// WithDate moves ts to the calendar day of date, keeping ts's time of day in
// loc.
func WithDate(ts time.Time, year int, month time.Month, day int, loc *time.Location) time.Time {
	local := ts.In(loc)
	return time.Date(year, month, day,
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
}
