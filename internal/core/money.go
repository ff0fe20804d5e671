package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount parses a non-negative decimal amount. Both dot (12.34) and
// comma (12,34) separators are accepted; the value is kept exact.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil
//	ParseAmount("-1") -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders d with two decimals for sheets and log lines.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Amount is a decimal that decodes from a JSON number or from a string in
// any form ParseAmount accepts.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	d, err := ParseAmount(string(bytes.Trim(b, `"`)))
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}
