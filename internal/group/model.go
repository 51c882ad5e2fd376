package group

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is one entry on a group's menu
type MenuItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	PriceHalf decimal.Decimal `json:"priceHalf"`
	PriceFull decimal.Decimal `json:"priceFull"`
	IsDaily   bool            `json:"isDaily"`
}

// Menu is the ordered item list, stored as a JSONB array.
type Menu []MenuItem

// Find returns the item with the given ID.
func (m Menu) Find(id string) (MenuItem, bool) {
	i := slices.IndexFunc(m, func(item MenuItem) bool { return item.ID == id })
	if i < 0 {
		return MenuItem{}, false
	}
	return m[i], true
}

// Value implements driver.Valuer for the JSONB column.
func (m Menu) Value() (driver.Value, error) {
	if m == nil {
		m = Menu{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for the JSONB column.
func (m *Menu) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Menu{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into group.Menu", src)
	}
}

// Group represents an office sharing a menu, slots and a ledger
type Group struct {
	ID        string
	Name      string
	AdminUID  string
	Members   []string
	Items     Menu
	TimeSlots []string
	CreatedAt time.Time
}

// IsOwner reports whether uid created the group.
func (g *Group) IsOwner(uid string) bool {
	return uid != "" && g.AdminUID == uid
}

// HasMember reports whether uid is in the member list.
func (g *Group) HasMember(uid string) bool {
	return slices.Contains(g.Members, uid)
}

// HasSlot reports whether slot is one of the configured time slots.
func (g *Group) HasSlot(slot string) bool {
	return slices.Contains(g.TimeSlots, slot)
}

// maxMoney bounds the NUMERIC(12,2) money columns.
var maxMoney = decimal.New(1, 10)

// FitsMoney reports whether d can be stored in a money column without
// rounding or overflow: at most two decimal places and below 10^10 in
// magnitude.
func FitsMoney(d decimal.Decimal) bool {
	return d.Round(2).Equal(d) && d.Abs().LessThan(maxMoney)
}

// DefaultMenu is the menu every new group starts with.
func DefaultMenu() Menu {
	return Menu{
		{ID: "1", Name: "Chai", PriceHalf: decimal.NewFromInt(10), PriceFull: decimal.NewFromInt(15), IsDaily: true},
		{ID: "2", Name: "Coffee", PriceHalf: decimal.NewFromInt(15), PriceFull: decimal.NewFromInt(25), IsDaily: true},
	}
}

// DefaultTimeSlots are the slots every new group starts with.
func DefaultTimeSlots() []string {
	return []string{"Morning", "Afternoon", "Evening"}
}
