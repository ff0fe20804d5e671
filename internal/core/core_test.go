package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0", "0", true},
		{"1.005", "1.005", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`123.45`, "123.45", true},
		{`"123.45"`, "123.45", true},
		{`"1234,56"`, "1234.56", true},
		{`null`, "0", true},
		{`-5`, "", false},
		{`"abc"`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.in), &a)
			if !tt.ok {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("error = %v, want ErrInvalidAmount", err)
				}
				return
			}
			if err != nil || !a.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("got %s (err=%v), want %s", a.Decimal, err, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("12.5")); got != "12.50" {
		t.Errorf("FormatAmount() = %q, want 12.50", got)
	}
}

func TestAccountType_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want AccountType
		ok   bool
	}{
		{`"credit"`, Credit, true},
		{`"Savings"`, Savings, true},
		{`0`, Credit, true},
		{`1`, Savings, true},
		{`2`, 0, false},
		{`"checking"`, 0, false},
		{`true`, 0, false},
	}
	for _, tt := range tests {
		var got AccountType
		err := json.Unmarshal([]byte(tt.in), &got)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("Unmarshal(%s) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidAccountType) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidAccountType", tt.in, err)
		}
	}

	b, err := json.Marshal(Savings)
	if err != nil || string(b) != `"savings"` {
		t.Errorf("Marshal(Savings) = %s, %v", b, err)
	}
}

func validAccount() Account {
	return Account{
		Name:         "Freedom",
		Provider:     "Chase",
		Type:         Credit,
		CreditLimit:  DecimalPtr(decimal.NewFromInt(5000)),
		StatementDay: IntPtr(3),
		DueDay:       IntPtr(28),
		ColorHex:     StringPtr("#1A2b3C"),
	}
}

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Account)
		wantErr error
	}{
		{"valid", func(*Account) {}, nil},
		{"empty name", func(a *Account) { a.Name = "  " }, ErrEmptyName},
		{"empty provider", func(a *Account) { a.Provider = "" }, ErrEmptyProvider},
		{"bad type", func(a *Account) { a.Type = AccountType(7) }, ErrInvalidAccountType},
		{"day zero", func(a *Account) { a.StatementDay = IntPtr(0) }, ErrInvalidDay},
		{"day 32", func(a *Account) { a.DueDay = IntPtr(32) }, ErrInvalidDay},
		{"day 31 is fine", func(a *Account) { a.PaymentDay = IntPtr(31) }, nil},
		{"fee month 13", func(a *Account) { a.FeeMonth = IntPtr(13) }, ErrInvalidMonth},
		{"negative limit", func(a *Account) { a.CreditLimit = DecimalPtr(decimal.NewFromInt(-1)) }, ErrInvalidAmount},
		{"bad color", func(a *Account) { a.ColorHex = StringPtr("blue") }, ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAccount()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccount_HasAnnualFee(t *testing.T) {
	a := validAccount()
	if a.HasAnnualFee() {
		t.Error("account without fee date reports an annual fee")
	}
	a.FeeMonth, a.FeeDay = IntPtr(6), IntPtr(1)
	if !a.HasAnnualFee() {
		t.Error("credit account with fee date reports no annual fee")
	}
	a.Type = Savings
	if a.HasAnnualFee() {
		t.Error("savings account reports an annual fee")
	}
}

func TestStatement_Validate(t *testing.T) {
	base := Statement{
		AccountID:      uuid.New(),
		Amount:         decimal.RequireFromString("120.40"),
		StatementStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		StatementEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		PaymentDate:    time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	negative := base
	negative.Amount = decimal.NewFromInt(-5)
	if err := negative.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount error = %v", err)
	}

	reversed := base
	reversed.StatementEnd = base.StatementStart.AddDate(0, 0, -1)
	if err := reversed.Validate(); !errors.Is(err, ErrDateRange) {
		t.Errorf("reversed range error = %v", err)
	}

	missing := base
	missing.PaymentDate = time.Time{}
	if err := missing.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("missing payment date error = %v", err)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-15", "2024-03-15T00:00:00", "2024-03-15T00:00:00Z"} {
		got, err := ParseDate(in)
		if err != nil || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "15/03/2024", "2024-13-01"} {
		if _, err := ParseDate(in); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) error = %v, want ErrInvalidDate", in, err)
		}
	}
}

func TestStatement_JSONAmountIsNumber(t *testing.T) {
	s := Statement{Amount: decimal.RequireFromString("42.5")}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(b), `"amount":42.5`) {
		t.Errorf("amount not encoded as number: %s", b)
	}
}
