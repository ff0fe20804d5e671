package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"finwiz/internal/core"
)

// SpendingSummary is the lifetime reduction of a statement list. Min and Max
// point into the caller's slice and are nil when it is empty.
type SpendingSummary struct {
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"`
	Min     *core.Statement `json:"min"`
	Max     *core.Statement `json:"max"`
}

// Summarize computes count, total, average and the min/max statements by
// amount. Ties keep the first statement encountered.
func Summarize(statements []core.Statement) SpendingSummary {
	summary := SpendingSummary{Total: decimal.Zero, Average: decimal.Zero}
	if len(statements) == 0 {
		return summary
	}

	for i := range statements {
		s := &statements[i]
		summary.Total = summary.Total.Add(s.Amount)
		if summary.Min == nil || s.Amount.LessThan(summary.Min.Amount) {
			summary.Min = s
		}
		if summary.Max == nil || s.Amount.GreaterThan(summary.Max.Amount) {
			summary.Max = s
		}
	}
	summary.Count = len(statements)
	summary.Average = summary.Total.Div(decimal.NewFromInt(int64(summary.Count)))
	return summary
}

// Velocity averages the amounts of the window most recent statements by
// statementEnd. Fewer statements than window average what is there; an
// empty list yields zero.
func Velocity(statements []core.Statement, window int) (decimal.Decimal, error) {
	if window <= 0 {
		return decimal.Zero, fmt.Errorf("%w: velocity window %d must be positive", ErrInvalidArgument, window)
	}
	if len(statements) == 0 {
		return decimal.Zero, nil
	}

	recent := make([]core.Statement, len(statements))
	copy(recent, statements)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].StatementEnd.After(recent[j].StatementEnd)
	})
	if len(recent) > window {
		recent = recent[:window]
	}

	total := decimal.Zero
	for _, s := range recent {
		total = total.Add(s.Amount)
	}
	return total.Div(decimal.NewFromInt(int64(len(recent)))), nil
}
