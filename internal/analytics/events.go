package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"finwiz/internal/core"
)

// EventKind names a recurring account date.
type EventKind string

const (
	KindStatement EventKind = "statement"
	KindPayment   EventKind = "payment"
	KindDue       EventKind = "due"
	KindAnnualFee EventKind = "annual_fee"
)

// AllEventKinds lists every kind in tie-break order.
var AllEventKinds = []EventKind{KindStatement, KindPayment, KindDue, KindAnnualFee}

// kindOrder breaks ties between events on the same date.
var kindOrder = map[EventKind]int{
	KindStatement: 0,
	KindPayment:   1,
	KindDue:       2,
	KindAnnualFee: 3,
}

// Event is the next concrete occurrence of one account date.
type Event struct {
	AccountID   uuid.UUID `json:"accountId"`
	AccountName string    `json:"accountName"`
	Kind        EventKind `json:"kind"`
	Date        time.Time `json:"date"`
	DaysUntil   int       `json:"daysUntil"`
}

// EventResolver computes the next occurrence of one kind of date for an
// account. ok is false when the account does not carry that date.
type EventResolver interface {
	Next(account core.Account, ref time.Time) (date time.Time, ok bool, err error)
}

// DayOfMonthResolver resolves a monthly day field selected by Field.
type DayOfMonthResolver struct {
	Field func(core.Account) *int
}

func (r DayOfMonthResolver) Next(account core.Account, ref time.Time) (time.Time, bool, error) {
	day := r.Field(account)
	if day == nil {
		return time.Time{}, false, nil
	}
	d, err := NextDayOfMonth(*day, ref)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

// AnnualFeeResolver resolves the fee month/day of credit accounts.
type AnnualFeeResolver struct{}

func (AnnualFeeResolver) Next(account core.Account, ref time.Time) (time.Time, bool, error) {
	if !account.HasAnnualFee() {
		return time.Time{}, false, nil
	}
	d, err := NextMonthDay(*account.FeeMonth, *account.FeeDay, ref)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

var eventResolvers = map[EventKind]EventResolver{
	KindStatement: DayOfMonthResolver{Field: func(a core.Account) *int { return a.StatementDay }},
	KindPayment:   DayOfMonthResolver{Field: func(a core.Account) *int { return a.PaymentDay }},
	KindDue:       DayOfMonthResolver{Field: func(a core.Account) *int { return a.DueDay }},
	KindAnnualFee: AnnualFeeResolver{},
}

// GetEventResolver returns the resolver registered for kind.
func GetEventResolver(kind EventKind) (EventResolver, error) {
	r, ok := eventResolvers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event kind %q", ErrInvalidArgument, kind)
	}
	return r, nil
}

// ParseEventKinds reads a comma-separated kind list such as "due,payment".
// An empty list selects every kind.
func ParseEventKinds(s string) ([]EventKind, error) {
	var kinds []EventKind
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		kind := EventKind(part)
		if _, err := GetEventResolver(kind); err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// UpcomingEvents resolves the dates of the given kinds (all kinds when
// none are given) relative to ref, sorted by date and then by kind.
func UpcomingEvents(account core.Account, ref time.Time, kinds ...EventKind) ([]Event, error) {
	if len(kinds) == 0 {
		kinds = AllEventKinds
	}
	events := make([]Event, 0, len(kinds))
	for _, kind := range kinds {
		resolver, err := GetEventResolver(kind)
		if err != nil {
			return nil, err
		}
		date, ok, err := resolver.Next(account, ref)
		if err != nil {
			return nil, fmt.Errorf("account %s %s: %w", account.ID, kind, err)
		}
		if !ok {
			continue
		}
		events = append(events, Event{
			AccountID:   account.ID,
			AccountName: account.Label(),
			Kind:        kind,
			Date:        date,
			DaysUntil:   DaysUntil(date, ref),
		})
	}
	sortEvents(events)
	return events, nil
}

// EventsWithin collects the upcoming events of all accounts that fall at
// most horizonDays days after ref.
func EventsWithin(accounts []core.Account, ref time.Time, horizonDays int, kinds ...EventKind) ([]Event, error) {
	if horizonDays < 0 {
		return nil, fmt.Errorf("%w: horizon %d must not be negative", ErrInvalidArgument, horizonDays)
	}
	var out []Event
	for _, acc := range accounts {
		events, err := UpcomingEvents(acc, ref, kinds...)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if e.DaysUntil <= horizonDays {
				out = append(out, e)
			}
		}
	}
	sortEvents(out)
	return out, nil
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		if events[i].Kind != events[j].Kind {
			return kindOrder[events[i].Kind] < kindOrder[events[j].Kind]
		}
		if events[i].AccountName != events[j].AccountName {
			return events[i].AccountName < events[j].AccountName
		}
		return events[i].AccountID.String() < events[j].AccountID.String()
	})
}
