package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finwiz/internal/core"
)

// MonthKey identifies a calendar month. Keys order structurally, so they
// never need re-parsing from a display label.
type MonthKey struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// KeyOf returns the month key of t in its own location.
func KeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// Before reports whether k sorts strictly before other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// AddMonths shifts k by n months, n may be negative.
func (k MonthKey) AddMonths(n int) MonthKey {
	idx := k.Year*12 + int(k.Month-1) + n
	return MonthKey{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// String renders the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

type MonthBucket struct {
	Key   MonthKey        `json:"key"`
	Total decimal.Decimal `json:"total"`
}

// MonthlyBuckets groups statements by the month of statementEnd and sums
// each group, ascending by month.
func MonthlyBuckets(statements []core.Statement) []MonthBucket {
	totals := make(map[MonthKey]decimal.Decimal)
	for _, s := range statements {
		k := KeyOf(s.StatementEnd)
		totals[k] = totals[k].Add(s.Amount)
	}

	keys := sortedKeys(totals)
	buckets := make([]MonthBucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, MonthBucket{Key: k, Total: totals[k]})
	}
	return buckets
}

func sortedKeys(m map[MonthKey]decimal.Decimal) []MonthKey {
	keys := make([]MonthKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// AccountStatements is one account's snapshot with its statements.
type AccountStatements struct {
	AccountID  uuid.UUID
	Statements []core.Statement
}

// Series is a combined monthly series plus one series per account, all
// aligned on Labels. Months where an account had no statement hold zero.
type Series struct {
	Labels     []MonthKey                      `json:"labels"`
	Total      []decimal.Decimal               `json:"total"`
	PerAccount map[uuid.UUID][]decimal.Decimal `json:"perAccount"`
}

// MultiAccountSeries builds the combined and per-account monthly series over
// the union of every month any account has a statement in.
func MultiAccountSeries(accounts []AccountStatements) Series {
	combined := make(map[MonthKey]decimal.Decimal)
	perAccount := make(map[uuid.UUID]map[MonthKey]decimal.Decimal, len(accounts))

	for _, acc := range accounts {
		months, ok := perAccount[acc.AccountID]
		if !ok {
			months = make(map[MonthKey]decimal.Decimal)
			perAccount[acc.AccountID] = months
		}
		for _, s := range acc.Statements {
			k := KeyOf(s.StatementEnd)
			combined[k] = combined[k].Add(s.Amount)
			months[k] = months[k].Add(s.Amount)
		}
	}

	labels := sortedKeys(combined)
	series := Series{
		Labels:     labels,
		Total:      make([]decimal.Decimal, len(labels)),
		PerAccount: make(map[uuid.UUID][]decimal.Decimal, len(perAccount)),
	}
	for i, k := range labels {
		series.Total[i] = combined[k]
	}
	for id, months := range perAccount {
		values := make([]decimal.Decimal, len(labels))
		for i, k := range labels {
			// Missing map entries are the zero Decimal, which is 0.
			values[i] = months[k]
		}
		series.PerAccount[id] = values
	}
	return series
}
