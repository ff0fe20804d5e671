package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finwiz/internal/analytics"
)

const (
	defaultVelocityWindow = 3
	defaultHorizonDays    = 30
)

type summaryResponse struct {
	AccountID      uuid.UUID                 `json:"accountId"`
	Summary        analytics.SpendingSummary `json:"summary"`
	Velocity       decimal.Decimal           `json:"velocity"`
	VelocityWindow int                       `json:"velocityWindow"`
}

type bucketsResponse struct {
	AccountID uuid.UUID               `json:"accountId"`
	Buckets   []analytics.MonthBucket `json:"buckets"`
}

type upcomingResponse struct {
	Reference time.Time         `json:"reference"`
	Events    []analytics.Event `json:"events"`
}

type recurrenceResponse struct {
	Date      time.Time `json:"date"`
	DaysUntil int       `json:"daysUntil"`
}

func (s *Server) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func (s *Server) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	window, err := queryInt(r.URL.Query(), "velocity", defaultVelocityWindow)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := fmt.Sprintf("%ssummary:%d", accountCachePrefix(id), window)
	s.serveCached(w, r, key, func() (any, error) {
		statements, err := s.statements.List(r.Context(), id)
		if err != nil {
			return nil, err
		}
		velocity, err := analytics.Velocity(statements, window)
		if err != nil {
			return nil, err
		}
		return summaryResponse{
			AccountID:      id,
			Summary:        analytics.Summarize(statements),
			Velocity:       velocity,
			VelocityWindow: window,
		}, nil
	})
}

func (s *Server) handleAccountBuckets(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	ref := s.today()
	window, err := analytics.ParseWindow(q.Get("range"), q.Get("year"), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := fmt.Sprintf("%sbuckets:%s:%s:%s", accountCachePrefix(id),
		strings.ToLower(strings.TrimSpace(q.Get("range"))), strings.TrimSpace(q.Get("year")), analytics.KeyOf(ref))
	s.serveCached(w, r, key, func() (any, error) {
		statements, err := s.statements.List(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return bucketsResponse{
			AccountID: id,
			Buckets:   window.FilterBuckets(analytics.MonthlyBuckets(statements)),
		}, nil
	})
}

func (s *Server) handleAccountUpcoming(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	kinds, err := analytics.ParseEventKinds(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := s.today()

	key := fmt.Sprintf("%supcoming:%s:%s", accountCachePrefix(id), dayKey(ref), kindsKey(kinds))
	s.serveCached(w, r, key, func() (any, error) {
		account, err := s.accounts.Get(r.Context(), id, false)
		if err != nil {
			return nil, err
		}
		events, err := analytics.UpcomingEvents(account, ref, kinds...)
		if err != nil {
			return nil, err
		}
		return upcomingResponse{Reference: ref, Events: nonNilEvents(events)}, nil
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := s.today()
	window, err := analytics.ParseWindow(q.Get("range"), q.Get("year"), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := fmt.Sprintf("%sseries:%s:%s:%s", globalCachePrefix,
		strings.ToLower(strings.TrimSpace(q.Get("range"))), strings.TrimSpace(q.Get("year")), analytics.KeyOf(ref))
	s.serveCached(w, r, key, func() (any, error) {
		accounts, err := s.accounts.List(r.Context(), true)
		if err != nil {
			return nil, err
		}
		input := make([]analytics.AccountStatements, 0, len(accounts))
		for _, a := range accounts {
			input = append(input, analytics.AccountStatements{AccountID: a.ID, Statements: a.Statements})
		}
		return window.FilterSeries(analytics.MultiAccountSeries(input)), nil
	})
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := queryInt(q, "days", defaultHorizonDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kinds, err := analytics.ParseEventKinds(q.Get("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := s.today()

	key := fmt.Sprintf("%supcoming:%s:%d:%s", globalCachePrefix, dayKey(ref), days, kindsKey(kinds))
	s.serveCached(w, r, key, func() (any, error) {
		accounts, err := s.accounts.List(r.Context(), false)
		if err != nil {
			return nil, err
		}
		events, err := analytics.EventsWithin(accounts, ref, days, kinds...)
		if err != nil {
			return nil, err
		}
		return upcomingResponse{Reference: ref, Events: nonNilEvents(events)}, nil
	})
}

// kindsKey is the cache key part for a kind filter; empty means all kinds.
func kindsKey(kinds []analytics.EventKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// handleRecurrenceNext resolves the next day-of-month, or the next
// month/day when month is given, on or after ref (default today).
func (s *Server) handleRecurrenceNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("day")) == "" {
		writeError(w, r, fmt.Errorf("%w: day is required", analytics.ErrInvalidArgument))
		return
	}
	day, err := queryInt(q, "day", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryInt(q, "month", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := queryDate(q, "ref", s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var next time.Time
	if q.Has("month") {
		next, err = analytics.NextMonthDay(month, day, ref)
	} else {
		next, err = analytics.NextDayOfMonth(day, ref)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(recurrenceResponse{Date: next, DaysUntil: analytics.DaysUntil(next, ref)}).Write(w)
}

func nonNilEvents(events []analytics.Event) []analytics.Event {
	if events == nil {
		return []analytics.Event{}
	}
	return events
}
