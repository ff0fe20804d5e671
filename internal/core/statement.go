package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Statement struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      uuid.UUID       `json:"accountId"`
	Amount         decimal.Decimal `json:"amount"`
	StatementStart time.Time       `json:"statementStart"`
	StatementEnd   time.Time       `json:"statementEnd"`
	PaymentDate    time.Time       `json:"paymentDate"`
	DueDate        *time.Time      `json:"dueDate"`
	IsPaid         bool            `json:"isPaid"`

	// Version counts writes; stores set it, clients never do.
	Version int64 `json:"version"`
}

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrDateRange     = errors.New("statement end before statement start")
)

func (s Statement) Validate() error {
	if s.AccountID == uuid.Nil {
		return errors.New("missing account id")
	}
	if s.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if s.StatementStart.IsZero() {
		return fmt.Errorf("%w: statement start is required", ErrInvalidDate)
	}
	if s.StatementEnd.IsZero() {
		return fmt.Errorf("%w: statement end is required", ErrInvalidDate)
	}
	if s.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment date is required", ErrInvalidDate)
	}
	if s.StatementEnd.Before(s.StatementStart) {
		return ErrDateRange
	}
	return nil
}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or date-time. Values without a zone are
// read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Date is a time.Time that decodes from any layout ParseDate accepts.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
