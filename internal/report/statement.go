package report

import (
	"embed"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/payment"
)

//go:embed templates/statement.html
var templateFS embed.FS

var statementTemplate = template.Must(template.ParseFS(templateFS, "templates/statement.html"))

// StatementLine is one row of the printable statement.
type StatementLine struct {
	Item   string
	Date   string
	Slot   string
	Amount decimal.Decimal
}

// StatementData is everything the statement template renders.
type StatementData struct {
	GroupName    string
	Period       string
	GeneratedOn  string
	Lines        []StatementLine
	MonthlyTotal decimal.Decimal
	TotalPaid    decimal.Decimal
	Balance      decimal.Decimal
}

// BuildStatement lists the current month's entries newest first with the
// group's monthly and lifetime totals.
func BuildStatement(groupName string, entries []*entry.Entry, payments []*payment.Payment, now time.Time, loc *time.Location) StatementData {
	if loc == nil {
		loc = time.Local
	}
	start, end := MonthBounds(now, loc)
	summary := Compute(entries, payments, now, loc)

	var month []*entry.Entry
	for _, e := range entries {
		if inMonth(e.Date, start, end) {
			month = append(month, e)
		}
	}
	sort.SliceStable(month, func(i, j int) bool { return month[i].Date.After(month[j].Date) })

	lines := make([]StatementLine, 0, len(month))
	for _, e := range month {
		item := e.ItemName
		if e.Size == entry.SizeHalf {
			item += " (Half)"
		}
		slot := e.TimeSlot
		if slot == "" {
			slot = "N/A"
		}
		lines = append(lines, StatementLine{
			Item:   item,
			Date:   e.Date.In(loc).Format("02/01/2006"),
			Slot:   slot,
			Amount: e.Contribution(),
		})
	}

	return StatementData{
		GroupName:    groupName,
		Period:       now.In(loc).Format("January 2006"),
		GeneratedOn:  now.In(loc).Format("02 Jan, 2006"),
		Lines:        lines,
		MonthlyTotal: summary.MonthlyTotal,
		TotalPaid:    summary.TotalPaid,
		Balance:      summary.Balance,
	}
}

// Render writes the statement as a print-formatted HTML page.
func (d StatementData) Render(w io.Writer) error {
	return statementTemplate.Execute(w, d)
}
