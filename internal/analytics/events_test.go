package analytics

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"finwiz/internal/core"
)

func creditCard() core.Account {
	return core.Account{
		ID:           uuid.MustParse("0a0a0a0a-0000-0000-0000-00000000000a"),
		Name:         "Sapphire",
		Provider:     "Chase",
		Type:         core.Credit,
		StatementDay: core.IntPtr(5),
		PaymentDay:   core.IntPtr(20),
		DueDay:       core.IntPtr(25),
		FeeMonth:     core.IntPtr(3),
		FeeDay:       core.IntPtr(1),
	}
}

func TestUpcomingEvents(t *testing.T) {
	events, err := UpcomingEvents(creditCard(), date(2024, 1, 10))
	if err != nil {
		t.Fatalf("UpcomingEvents() error = %v", err)
	}

	want := []struct {
		kind EventKind
		days int
	}{
		{KindPayment, 10},
		{KindDue, 15},
		{KindStatement, 26},
		{KindAnnualFee, 51},
	}
	if len(events) != len(want) {
		t.Fatalf("UpcomingEvents() returned %d events, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Kind != w.kind || events[i].DaysUntil != w.days {
			t.Errorf("event %d = %s in %d days, want %s in %d days", i, events[i].Kind, events[i].DaysUntil, w.kind, w.days)
		}
		if events[i].AccountName != "Chase Sapphire" {
			t.Errorf("event %d account name = %q", i, events[i].AccountName)
		}
	}
}

func TestUpcomingEvents_SameDayOrderedByKind(t *testing.T) {
	acc := creditCard()
	acc.StatementDay = core.IntPtr(25)
	acc.PaymentDay = core.IntPtr(25)
	acc.FeeMonth = nil

	events, err := UpcomingEvents(acc, date(2024, 1, 10))
	if err != nil {
		t.Fatalf("UpcomingEvents() error = %v", err)
	}
	kinds := []EventKind{KindStatement, KindPayment, KindDue}
	if len(events) != len(kinds) {
		t.Fatalf("got %d events, want %d", len(events), len(kinds))
	}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Errorf("event %d kind = %s, want %s", i, events[i].Kind, k)
		}
	}
}

func TestUpcomingEvents_SavingsHasNoAnnualFee(t *testing.T) {
	acc := creditCard()
	acc.Type = core.Savings

	events, err := UpcomingEvents(acc, date(2024, 1, 10))
	if err != nil {
		t.Fatalf("UpcomingEvents() error = %v", err)
	}
	for _, e := range events {
		if e.Kind == KindAnnualFee {
			t.Errorf("savings account produced an annual fee event")
		}
	}
}

func TestUpcomingEvents_InvalidStoredDay(t *testing.T) {
	acc := creditCard()
	acc.DueDay = core.IntPtr(40)

	if _, err := UpcomingEvents(acc, date(2024, 1, 10)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("UpcomingEvents() error = %v, want ErrInvalidArgument", err)
	}
}

func TestEventsWithin(t *testing.T) {
	other := core.Account{
		ID:       uuid.MustParse("0b0b0b0b-0000-0000-0000-00000000000b"),
		Name:     "High Yield",
		Provider: "Ally",
		Type:     core.Savings,
		DueDay:   core.IntPtr(12),
	}

	events, err := EventsWithin([]core.Account{creditCard(), other}, date(2024, 1, 10), 14)
	if err != nil {
		t.Fatalf("EventsWithin() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("EventsWithin() returned %d events, want 2: %+v", len(events), events)
	}
	if events[0].AccountID != other.ID || events[0].DaysUntil != 2 {
		t.Errorf("first event = %+v, want savings due in 2 days", events[0])
	}
	if events[1].Kind != KindPayment {
		t.Errorf("second event kind = %s, want payment", events[1].Kind)
	}

	if _, err := EventsWithin(nil, date(2024, 1, 10), -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("EventsWithin(-1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestUpcomingEvents_SelectedKinds(t *testing.T) {
	kinds, err := ParseEventKinds(" Due, annual_fee ,")
	if err != nil {
		t.Fatalf("ParseEventKinds() error = %v", err)
	}
	events, err := UpcomingEvents(creditCard(), date(2024, 1, 10), kinds...)
	if err != nil {
		t.Fatalf("UpcomingEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Kind != KindDue || events[1].Kind != KindAnnualFee {
		t.Errorf("UpcomingEvents(due, annual_fee) = %+v", events)
	}

	within, err := EventsWithin([]core.Account{creditCard()}, date(2024, 1, 10), 20, KindDue)
	if err != nil {
		t.Fatalf("EventsWithin() error = %v", err)
	}
	if len(within) != 1 || within[0].DaysUntil != 15 {
		t.Errorf("EventsWithin(due) = %+v", within)
	}

	if kinds, err := ParseEventKinds(""); err != nil || kinds != nil {
		t.Errorf("ParseEventKinds(\"\") = %v, %v, want all kinds", kinds, err)
	}
	if _, err := ParseEventKinds("due,weekly"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseEventKinds(weekly) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := UpcomingEvents(creditCard(), date(2024, 1, 10), "weekly"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("UpcomingEvents(weekly) error = %v, want ErrInvalidArgument", err)
	}
}

func TestGetEventResolver(t *testing.T) {
	for _, kind := range AllEventKinds {
		if _, err := GetEventResolver(kind); err != nil {
			t.Errorf("GetEventResolver(%s) error = %v", kind, err)
		}
	}
	if _, err := GetEventResolver("weekly"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("GetEventResolver(weekly) error = %v, want ErrInvalidArgument", err)
	}
}
