package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Credit AccountType = iota
	Savings
)

type (
	AccountType int

	Account struct {
		ID          uuid.UUID        `json:"id"`
		Name        string           `json:"name"`
		Provider    string           `json:"provider"`
		Type        AccountType      `json:"type"`
		CreditLimit *decimal.Decimal `json:"creditLimit"`
		AnnualFee   *decimal.Decimal `json:"annualFee"`
		APY         *decimal.Decimal `json:"apy"`

		// Recurring day-of-month fields, 1-31 when set.
		StatementDay *int `json:"statementDay"`
		PaymentDay   *int `json:"paymentDay"`
		DueDay       *int `json:"dueDay"`

		// Annual fee assessment date.
		FeeMonth *int `json:"feeMonth"`
		FeeDay   *int `json:"feeDay"`

		IsAutopayOn bool    `json:"isAutopayOn"`
		ImagePath   *string `json:"imagePath"`
		Notes       *string `json:"notes"`
		ColorHex    *string `json:"colorHex"`

		Statements []Statement `json:"statements,omitempty"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyProvider      = errors.New("empty provider")
	ErrInvalidColor       = errors.New("invalid color")
)

var colorHexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (t AccountType) String() string {
	switch t {
	case Credit:
		return "credit"
	case Savings:
		return "savings"
	default:
		return fmt.Sprintf("AccountType(%d)", int(t))
	}
}

// IsValid reports whether t is one of the known account types.
func (t AccountType) IsValid() bool {
	return t == Credit || t == Savings
}

// ParseAccountType accepts the lowercase name, any casing of it, or the
// legacy numeric form ("0", "1").
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "0":
		return Credit, nil
	case "savings", "1":
		return Savings, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
}

func (t AccountType) MarshalJSON() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountType, int(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts both the string form and the numeric enum the
// original clients send.
func (t *AccountType) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if !AccountType(n).IsValid() {
			return fmt.Errorf("%w: %d", ErrInvalidAccountType, n)
		}
		*t = AccountType(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAccountType, string(b))
	}
	parsed, err := ParseAccountType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func validDay(d *int) error {
	if d != nil && (*d < 1 || *d > 31) {
		return fmt.Errorf("%w: %d", ErrInvalidDay, *d)
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if strings.TrimSpace(a.Provider) == "" {
		return ErrEmptyProvider
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	for _, d := range []*int{a.StatementDay, a.PaymentDay, a.DueDay, a.FeeDay} {
		if err := validDay(d); err != nil {
			return err
		}
	}
	if a.FeeMonth != nil && (*a.FeeMonth < 1 || *a.FeeMonth > 12) {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, *a.FeeMonth)
	}
	for _, v := range []*decimal.Decimal{a.CreditLimit, a.AnnualFee, a.APY} {
		if v != nil && v.IsNegative() {
			return ErrInvalidAmount
		}
	}
	if a.ColorHex != nil && *a.ColorHex != "" && !colorHexPattern.MatchString(*a.ColorHex) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, *a.ColorHex)
	}
	if a.Notes != nil && len(*a.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}

// HasAnnualFee reports whether the account carries a fully specified
// annual fee date.
func (a Account) HasAnnualFee() bool {
	return a.Type == Credit && a.FeeMonth != nil && a.FeeDay != nil
}

// Label is the display name used by reminders and the sheet mirror.
func (a Account) Label() string {
	return strings.TrimSpace(a.Provider + " " + a.Name)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// DecimalPtr returns a pointer to v.
func DecimalPtr(v decimal.Decimal) *decimal.Decimal { return &v }
