package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finwiz/internal/analytics"
	"finwiz/internal/core"
	"finwiz/internal/services"
	"finwiz/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON value from the body into dst. Malformed input is
// reported as invalid input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", services.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", services.ErrInvalidInput)
	}
	return nil
}

// pathUUID parses the named chi URL parameter. An id that is not a UUID
// cannot exist, so it reads as not found.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", name, raw, store.ErrNotFound)
	}
	return id, nil
}

// queryInt returns the named query value as an int, or def when absent.
func queryInt(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", analytics.ErrInvalidArgument, name, v)
	}
	return n, nil
}

// queryDate parses an optional date query value, returning def when absent.
func queryDate(q url.Values, name string, def time.Time) (time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	t, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", analytics.ErrInvalidArgument, name, err)
	}
	return t, nil
}

// wantsStatements reports whether ?include= lists statements.
func wantsStatements(q url.Values) bool {
	for _, part := range strings.Split(q.Get("include"), ",") {
		if strings.EqualFold(strings.TrimSpace(part), "statements") {
			return true
		}
	}
	return false
}

// accountRequest is the body of account create and update calls.
type accountRequest struct {
	Name         string           `json:"name"`
	Provider     string           `json:"provider"`
	Type         core.AccountType `json:"type"`
	CreditLimit  *decimal.Decimal `json:"creditLimit"`
	AnnualFee    *decimal.Decimal `json:"annualFee"`
	APY          *decimal.Decimal `json:"apy"`
	StatementDay *int             `json:"statementDay"`
	PaymentDay   *int             `json:"paymentDay"`
	DueDay       *int             `json:"dueDay"`
	FeeMonth     *int             `json:"feeMonth"`
	FeeDay       *int             `json:"feeDay"`
	IsAutopayOn  bool             `json:"isAutopayOn"`
	ImagePath    *string          `json:"imagePath"`
	Notes        *string          `json:"notes"`
	ColorHex     *string          `json:"colorHex"`
}

func (req accountRequest) toAccount() core.Account {
	return core.Account{
		Name:         sanitizeInput(req.Name),
		Provider:     sanitizeInput(req.Provider),
		Type:         req.Type,
		CreditLimit:  req.CreditLimit,
		AnnualFee:    req.AnnualFee,
		APY:          req.APY,
		StatementDay: req.StatementDay,
		PaymentDay:   req.PaymentDay,
		DueDay:       req.DueDay,
		FeeMonth:     req.FeeMonth,
		FeeDay:       req.FeeDay,
		IsAutopayOn:  req.IsAutopayOn,
		ImagePath:    sanitizeOptional(req.ImagePath),
		Notes:        sanitizeOptional(req.Notes),
		ColorHex:     sanitizeOptional(req.ColorHex),
	}
}

// statementRequest accepts dates as RFC 3339 or YYYY-MM-DD, and the amount
// as a number or a string with either decimal separator.
type statementRequest struct {
	AccountID      *uuid.UUID  `json:"accountId"`
	Amount         core.Amount `json:"amount"`
	StatementStart core.Date   `json:"statementStart"`
	StatementEnd   core.Date   `json:"statementEnd"`
	PaymentDate    core.Date   `json:"paymentDate"`
	DueDate        *core.Date  `json:"dueDate"`
	IsPaid         bool        `json:"isPaid"`
}

func (req statementRequest) toStatement() core.Statement {
	st := core.Statement{
		Amount:         req.Amount.Decimal,
		StatementStart: req.StatementStart.Time,
		StatementEnd:   req.StatementEnd.Time,
		PaymentDate:    req.PaymentDate.Time,
		IsPaid:         req.IsPaid,
	}
	if req.AccountID != nil {
		st.AccountID = *req.AccountID
	}
	if req.DueDate != nil {
		due := req.DueDate.Time
		st.DueDate = &due
	}
	return st
}

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
