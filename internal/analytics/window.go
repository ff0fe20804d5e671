package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Window selects a subset of month labels. Filtering only drops labels; the
// totals of the labels it keeps are never recomputed.
type Window struct {
	from, to MonthKey
	bounded  bool
}

// AllTime keeps every label.
var AllTime = Window{}

// LastMonths keeps the n months ending with ref's month, inclusive.
func LastMonths(n int, ref time.Time) (Window, error) {
	if n <= 0 {
		return Window{}, fmt.Errorf("%w: month count %d must be positive", ErrInvalidArgument, n)
	}
	to := KeyOf(ref)
	return Window{from: to.AddMonths(-(n - 1)), to: to, bounded: true}, nil
}

// Year keeps the twelve months of year y.
func Year(y int) Window {
	return Window{
		from:    MonthKey{Year: y, Month: time.January},
		to:      MonthKey{Year: y, Month: time.December},
		bounded: true,
	}
}

// ParseWindow maps the range query values used by the API ("6m", "12m",
// "all", or empty) and an optional year to a Window. A year wins over a
// range.
func ParseWindow(rangeParam, yearParam string, ref time.Time) (Window, error) {
	if yearParam = strings.TrimSpace(yearParam); yearParam != "" {
		y, err := strconv.Atoi(yearParam)
		if err != nil || y < 1 || y > 9999 {
			return Window{}, fmt.Errorf("%w: year %q", ErrInvalidArgument, yearParam)
		}
		return Year(y), nil
	}

	switch r := strings.ToLower(strings.TrimSpace(rangeParam)); r {
	case "", "all":
		return AllTime, nil
	default:
		n, err := strconv.Atoi(strings.TrimSuffix(r, "m"))
		if err != nil || !strings.HasSuffix(r, "m") {
			return Window{}, fmt.Errorf("%w: range %q", ErrInvalidArgument, rangeParam)
		}
		return LastMonths(n, ref)
	}
}

// Contains reports whether k falls inside the window.
func (w Window) Contains(k MonthKey) bool {
	if !w.bounded {
		return true
	}
	return !k.Before(w.from) && !w.to.Before(k)
}

// FilterBuckets returns the buckets inside the window, order preserved.
func (w Window) FilterBuckets(buckets []MonthBucket) []MonthBucket {
	out := make([]MonthBucket, 0, len(buckets))
	for _, b := range buckets {
		if w.Contains(b.Key) {
			out = append(out, b)
		}
	}
	return out
}

// FilterSeries returns a copy of s restricted to labels inside the window.
func (w Window) FilterSeries(s Series) Series {
	keep := make([]int, 0, len(s.Labels))
	for i, k := range s.Labels {
		if w.Contains(k) {
			keep = append(keep, i)
		}
	}

	out := Series{
		Labels:     make([]MonthKey, 0, len(keep)),
		Total:      make([]decimal.Decimal, 0, len(keep)),
		PerAccount: make(map[uuid.UUID][]decimal.Decimal, len(s.PerAccount)),
	}
	for _, i := range keep {
		out.Labels = append(out.Labels, s.Labels[i])
		out.Total = append(out.Total, s.Total[i])
	}
	for id, values := range s.PerAccount {
		filtered := make([]decimal.Decimal, 0, len(keep))
		for _, i := range keep {
			filtered = append(filtered, values[i])
		}
		out.PerAccount[id] = filtered
	}
	return out
}
