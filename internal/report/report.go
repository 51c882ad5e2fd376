// Package report derives balances and spending statistics from a group's
// entries and payments.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/payment"
)

// NoTopItem is reported when a group has no entries.
const NoTopItem = "None"

// DayPoint is one calendar day of the current month.
type DayPoint struct {
	Day   int             `json:"day"`
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// ItemShare is an item's summed contribution across all entries.
type ItemShare struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Summary holds the derived totals for one group.
type Summary struct {
	TotalSpent       decimal.Decimal `json:"totalSpent"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	Balance          decimal.Decimal `json:"balance"`
	MonthlyTotal     decimal.Decimal `json:"monthlyTotal"`
	DailyTrend       []DayPoint      `json:"dailyTrend"`
	ActiveDays       int             `json:"activeDays"`
	AvgSpend         decimal.Decimal `json:"avgSpend"`
	ItemDistribution []ItemShare     `json:"itemDistribution"`
	TopItem          string          `json:"topItem"`
}

// MonthBounds returns the first instant of now's month in loc and the first
// instant of the following month.
func MonthBounds(now time.Time, loc *time.Location) (start, end time.Time) {
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func inMonth(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// Compute reduces entries and payments to a Summary. It has no side effects.
// Calendar calculations use loc; now selects the current month.
//
// Items with equal contributions keep the order in which they first appear
// in entries.
func Compute(entries []*entry.Entry, payments []*payment.Payment, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	start, end := MonthBounds(now, loc)
	days := end.AddDate(0, 0, -1).Day()

	trend := make([]DayPoint, days)
	for i := range trend {
		day := start.AddDate(0, 0, i)
		trend[i] = DayPoint{Day: i + 1, Date: day.Format("2006-01-02"), Total: decimal.Zero}
	}

	s := Summary{
		TotalSpent:   decimal.Zero,
		TotalPaid:    decimal.Zero,
		MonthlyTotal: decimal.Zero,
		AvgSpend:     decimal.Zero,
		TopItem:      NoTopItem,
	}

	byItem := map[string]int{}
	for _, e := range entries {
		c := e.Contribution()
		s.TotalSpent = s.TotalSpent.Add(c)

		i, seen := byItem[e.ItemName]
		if !seen {
			i = len(s.ItemDistribution)
			byItem[e.ItemName] = i
			s.ItemDistribution = append(s.ItemDistribution, ItemShare{Name: e.ItemName, Value: decimal.Zero})
		}
		s.ItemDistribution[i].Value = s.ItemDistribution[i].Value.Add(c)

		if inMonth(e.Date, start, end) {
			s.MonthlyTotal = s.MonthlyTotal.Add(c)
			d := e.Date.In(loc).Day() - 1
			trend[d].Total = trend[d].Total.Add(c)
		}
	}

	for _, p := range payments {
		s.TotalPaid = s.TotalPaid.Add(p.Amount)
	}

	s.Balance = decimal.Max(decimal.Zero, s.TotalSpent.Sub(s.TotalPaid))

	for _, p := range trend {
		if p.Total.IsPositive() {
			s.ActiveDays++
		}
	}
	if s.ActiveDays > 0 {
		s.AvgSpend = s.TotalSpent.Div(decimal.NewFromInt(int64(s.ActiveDays))).Round(0)
	}
	s.DailyTrend = trend

	sort.SliceStable(s.ItemDistribution, func(i, j int) bool {
		return s.ItemDistribution[i].Value.GreaterThan(s.ItemDistribution[j].Value)
	})
	if len(s.ItemDistribution) > 0 {
		s.TopItem = s.ItemDistribution[0].Name
	} else {
		s.ItemDistribution = []ItemShare{}
	}

	return s
}
