package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finwiz/internal/core"
	applog "finwiz/internal/log"
	"finwiz/internal/services"
	"finwiz/internal/store/memory"
)

var fixedNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	st := memory.New()
	logger := applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.CORSAllowedOrigins == nil {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	s := NewServer(cfg, services.NewAccountService(st, nil), services.NewStatementService(st, nil), st, logger)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.10:5000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	if body := decode[errorBody](t, rec); body.Code != code {
		t.Errorf("error code = %q, want %q", body.Code, code)
	}
}

func createAccount(t *testing.T, s *Server, body string) core.Account {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/accounts", body)
	expectStatus(t, rec, http.StatusCreated)
	return decode[core.Account](t, rec)
}

func createStatement(t *testing.T, s *Server, account core.Account, amount, end string) core.Statement {
	t.Helper()
	body := `{"amount":` + amount + `,"statementStart":"` + end + `","statementEnd":"` + end +
		`","paymentDate":"` + end + `"}`
	rec := do(t, s, http.MethodPost, "/api/accounts/"+account.ID.String()+"/statements", body)
	expectStatus(t, rec, http.StatusCreated)
	return decode[core.Statement](t, rec)
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/accounts", `{"name":" Sapphire ","provider":"Chase","type":"credit","statementDay":15}`)
	expectStatus(t, rec, http.StatusCreated)
	created := decode[core.Account](t, rec)
	if created.Name != "Sapphire" {
		t.Errorf("name = %q, want sanitized %q", created.Name, "Sapphire")
	}
	if loc := rec.Header().Get("Location"); loc != "/api/accounts/"+created.ID.String() {
		t.Errorf("Location = %q", loc)
	}

	path := "/api/accounts/" + created.ID.String()
	rec = do(t, s, http.MethodGet, path, "")
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, s, http.MethodPut, path, `{"name":"Reserve","provider":"Chase","type":0}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.Account](t, rec); got.Name != "Reserve" || got.StatementDay != nil {
		t.Errorf("updated account = %+v", got)
	}

	rec = do(t, s, http.MethodGet, "/api/accounts", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]core.Account](t, rec); len(list) != 1 {
		t.Errorf("list length = %d, want 1", len(list))
	}

	expectStatus(t, do(t, s, http.MethodDelete, path, ""), http.StatusNoContent)
	expectErrorCode(t, do(t, s, http.MethodGet, path, ""), http.StatusNotFound, CodeNotFound)
	expectErrorCode(t, do(t, s, http.MethodDelete, path, ""), http.StatusNotFound, CodeNotFound)
}

func TestListAccounts_Empty(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/api/accounts", "")
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestCreateAccount_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","provider":"Chase","type":"credit"}`},
		{"bad type", `{"name":"A","provider":"Chase","type":"gold"}`},
		{"day out of range", `{"name":"A","provider":"Chase","type":"credit","dueDay":32}`},
		{"malformed json", `{"name":`},
		{"empty body", ``},
	}

	s := newTestServer(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/accounts", tt.body)
			expectErrorCode(t, rec, http.StatusUnprocessableEntity, CodeInvalidInput)
		})
	}
}

func TestGetAccount_BadID(t *testing.T) {
	s := newTestServer(t, Config{})
	expectErrorCode(t, do(t, s, http.MethodGet, "/api/accounts/not-a-uuid", ""), http.StatusNotFound, CodeNotFound)
}

func TestStatements(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)
	base := "/api/accounts/" + account.ID.String()

	rec := do(t, s, http.MethodPost, base+"/statements",
		`{"amount":123.45,"statementStart":"2024-01-01","statementEnd":"2024-01-31","paymentDate":"2024-02-20","dueDate":"2024-02-25"}`)
	expectStatus(t, rec, http.StatusCreated)
	st := decode[core.Statement](t, rec)
	if !st.Amount.Equal(decimal.RequireFromString("123.45")) || st.AccountID != account.ID {
		t.Errorf("created statement = %+v", st)
	}
	if st.DueDate == nil || !st.DueDate.Equal(time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("due date = %v", st.DueDate)
	}

	rec = do(t, s, http.MethodGet, base+"/statements", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]core.Statement](t, rec); len(list) != 1 {
		t.Fatalf("list length = %d", len(list))
	}

	stPath := "/api/statements/" + st.ID.String()
	rec = do(t, s, http.MethodPut, stPath,
		`{"amount":99,"statementStart":"2024-01-01","statementEnd":"2024-01-31","paymentDate":"2024-02-20","isPaid":true}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.Statement](t, rec); !got.IsPaid || got.AccountID != account.ID || got.DueDate != nil {
		t.Errorf("updated statement = %+v", got)
	}

	rec = do(t, s, http.MethodPut, stPath,
		`{"amount":"1234,56","statementStart":"2024-01-01","statementEnd":"2024-01-31","paymentDate":"2024-02-20"}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.Statement](t, rec); !got.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("comma amount = %s, want 1234.56", got.Amount)
	}

	expectStatus(t, do(t, s, http.MethodGet, stPath, ""), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodDelete, stPath, ""), http.StatusNoContent)
	expectErrorCode(t, do(t, s, http.MethodGet, stPath, ""), http.StatusNotFound, CodeNotFound)
}

func TestStatements_Errors(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown account", http.MethodPost, "/api/accounts/00000000-0000-0000-0000-000000000001/statements",
			`{"amount":1,"statementStart":"2024-01-01","statementEnd":"2024-01-31","paymentDate":"2024-02-01"}`,
			http.StatusNotFound, CodeNotFound},
		{"end before start", http.MethodPost, "/api/accounts/" + account.ID.String() + "/statements",
			`{"amount":1,"statementStart":"2024-02-01","statementEnd":"2024-01-31","paymentDate":"2024-02-01"}`,
			http.StatusUnprocessableEntity, CodeInvalidInput},
		{"negative amount", http.MethodPost, "/api/accounts/" + account.ID.String() + "/statements",
			`{"amount":-5,"statementStart":"2024-01-01","statementEnd":"2024-01-31","paymentDate":"2024-02-01"}`,
			http.StatusUnprocessableEntity, CodeInvalidInput},
		{"malformed amount string", http.MethodPost, "/api/accounts/" + account.ID.String() + "/statements",
			`{"amount":"12.3.4","statementStart":"2024-01-01","statementEnd":"2024-01-31","paymentDate":"2024-02-01"}`,
			http.StatusUnprocessableEntity, CodeInvalidInput},
		{"bad date", http.MethodPost, "/api/accounts/" + account.ID.String() + "/statements",
			`{"amount":1,"statementStart":"01/02/2024","statementEnd":"2024-01-31","paymentDate":"2024-02-01"}`,
			http.StatusUnprocessableEntity, CodeInvalidInput},
		{"list unknown account", http.MethodGet, "/api/accounts/00000000-0000-0000-0000-000000000001/statements", "",
			http.StatusNotFound, CodeNotFound},
		{"bad statement id", http.MethodGet, "/api/statements/xyz", "",
			http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectErrorCode(t, do(t, s, tt.method, tt.path, tt.body), tt.status, tt.code)
		})
	}
}

type summaryBody struct {
	Summary struct {
		Count   int             `json:"count"`
		Total   decimal.Decimal `json:"total"`
		Average decimal.Decimal `json:"average"`
	} `json:"summary"`
	Velocity       decimal.Decimal `json:"velocity"`
	VelocityWindow int             `json:"velocityWindow"`
}

func TestAccountSummary_CacheInvalidation(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)
	createStatement(t, s, account, "100", "2024-01-31")
	createStatement(t, s, account, "200", "2024-02-29")
	createStatement(t, s, account, "300", "2024-03-31")

	path := "/api/accounts/" + account.ID.String() + "/summary?velocity=2"
	rec := do(t, s, http.MethodGet, path, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("first read X-Cache = %q", rec.Header().Get("X-Cache"))
	}
	got := decode[summaryBody](t, rec)
	if got.Summary.Count != 3 || !got.Summary.Total.Equal(decimal.NewFromInt(600)) || !got.Summary.Average.Equal(decimal.NewFromInt(200)) {
		t.Errorf("summary = %+v", got.Summary)
	}
	if !got.Velocity.Equal(decimal.NewFromInt(250)) || got.VelocityWindow != 2 {
		t.Errorf("velocity = %s over %d", got.Velocity, got.VelocityWindow)
	}

	rec = do(t, s, http.MethodGet, path, "")
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second read X-Cache = %q", rec.Header().Get("X-Cache"))
	}

	createStatement(t, s, account, "400", "2024-04-30")
	rec = do(t, s, http.MethodGet, path, "")
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("read after write X-Cache = %q", rec.Header().Get("X-Cache"))
	}
	if got := decode[summaryBody](t, rec); got.Summary.Count != 4 || !got.Velocity.Equal(decimal.NewFromInt(350)) {
		t.Errorf("summary after write = %+v velocity %s", got.Summary, got.Velocity)
	}
}

func TestServeCached_WriteDuringCompute(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)
	key := accountCachePrefix(account.ID) + "summary:test"

	serve := func(compute func() (any, error)) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.serveCached(rec, httptest.NewRequest(http.MethodGet, "/", nil), key, compute)
		return rec
	}

	// A statement lands while the stale body is being built.
	rec := serve(func() (any, error) {
		createStatement(t, s, account, "50", "2024-01-31")
		return map[string]int{"count": 0}, nil
	})
	expectStatus(t, rec, http.StatusOK)
	if _, ok := s.analyticsCache.Get(key); ok {
		t.Fatal("body computed across an invalidation was cached")
	}

	rec = serve(func() (any, error) { return map[string]int{"count": 1}, nil })
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", rec.Header().Get("X-Cache"))
	}
	if body, ok := s.analyticsCache.Get(key); !ok || string(body) != `{"count":1}` {
		t.Errorf("cached body = %q, %v", body, ok)
	}
}

func TestAccountSummary_InvalidVelocity(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)
	base := "/api/accounts/" + account.ID.String() + "/summary"

	expectErrorCode(t, do(t, s, http.MethodGet, base+"?velocity=0", ""), http.StatusBadRequest, CodeInvalidArgument)
	expectErrorCode(t, do(t, s, http.MethodGet, base+"?velocity=abc", ""), http.StatusBadRequest, CodeInvalidArgument)
}

func TestAccountSummary_Empty(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)

	rec := do(t, s, http.MethodGet, "/api/accounts/"+account.ID.String()+"/summary", "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[summaryBody](t, rec)
	if got.Summary.Count != 0 || !got.Velocity.IsZero() || got.VelocityWindow != defaultVelocityWindow {
		t.Errorf("empty summary = %+v", got)
	}
}

func TestAccountBuckets(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit"}`)
	createStatement(t, s, account, "50", "2023-06-30")
	createStatement(t, s, account, "100", "2024-01-15")
	createStatement(t, s, account, "25", "2024-01-31")
	createStatement(t, s, account, "200", "2024-02-29")

	base := "/api/accounts/" + account.ID.String() + "/buckets"
	tests := []struct {
		query  string
		labels []string
	}{
		{"", []string{"2023-06", "2024-01", "2024-02"}},
		{"?range=all", []string{"2023-06", "2024-01", "2024-02"}},
		{"?range=6m", []string{"2024-01", "2024-02"}},
		{"?year=2023", []string{"2023-06"}},
		{"?range=6m&year=2023", []string{"2023-06"}},
	}

	type bucket struct {
		Key struct {
			Year  int `json:"year"`
			Month int `json:"month"`
		} `json:"key"`
		Total decimal.Decimal `json:"total"`
	}
	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, base+tt.query, "")
			expectStatus(t, rec, http.StatusOK)
			body := decode[struct {
				Buckets []bucket `json:"buckets"`
			}](t, rec)
			if len(body.Buckets) != len(tt.labels) {
				t.Fatalf("got %d buckets, want %d", len(body.Buckets), len(tt.labels))
			}
			for i, b := range body.Buckets {
				label := time.Date(b.Key.Year, time.Month(b.Key.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
				if label != tt.labels[i] {
					t.Errorf("bucket %d = %s, want %s", i, label, tt.labels[i])
				}
			}
		})
	}

	rec := do(t, s, http.MethodGet, base, "")
	body := decode[struct {
		Buckets []bucket `json:"buckets"`
	}](t, rec)
	if !body.Buckets[1].Total.Equal(decimal.NewFromInt(125)) {
		t.Errorf("January total = %s, want 125", body.Buckets[1].Total)
	}

	expectErrorCode(t, do(t, s, http.MethodGet, base+"?range=weekly", ""), http.StatusBadRequest, CodeInvalidArgument)
	expectErrorCode(t, do(t, s, http.MethodGet, base+"?year=abc", ""), http.StatusBadRequest, CodeInvalidArgument)
}

type eventBody struct {
	Kind      string    `json:"kind"`
	Date      time.Time `json:"date"`
	DaysUntil int       `json:"daysUntil"`
}

func TestAccountUpcoming(t *testing.T) {
	s := newTestServer(t, Config{})
	account := createAccount(t, s, `{"name":"Sapphire","provider":"Chase","type":"credit","statementDay":15,"dueDay":5,"feeMonth":3,"feeDay":10}`)

	rec := do(t, s, http.MethodGet, "/api/accounts/"+account.ID.String()+"/upcoming", "")
	expectStatus(t, rec, http.StatusOK)
	body := decode[struct {
		Events []eventBody `json:"events"`
	}](t, rec)

	want := []eventBody{
		{Kind: "annual_fee", Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), DaysUntil: 0},
		{Kind: "statement", Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), DaysUntil: 5},
		{Kind: "due", Date: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), DaysUntil: 26},
	}
	if len(body.Events) != len(want) {
		t.Fatalf("events = %+v", body.Events)
	}
	for i, e := range body.Events {
		if e.Kind != want[i].Kind || !e.Date.Equal(want[i].Date) || e.DaysUntil != want[i].DaysUntil {
			t.Errorf("event %d = %+v, want %+v", i, e, want[i])
		}
	}

	rec = do(t, s, http.MethodGet, "/api/accounts/"+account.ID.String()+"/upcoming?kind=due", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[struct {
		Events []eventBody `json:"events"`
	}](t, rec); len(got.Events) != 1 || got.Events[0].Kind != "due" {
		t.Errorf("kind=due events = %+v", got.Events)
	}
	expectErrorCode(t, do(t, s, http.MethodGet, "/api/accounts/"+account.ID.String()+"/upcoming?kind=weekly", ""),
		http.StatusBadRequest, CodeInvalidArgument)

	expectErrorCode(t, do(t, s, http.MethodGet, "/api/accounts/00000000-0000-0000-0000-000000000001/upcoming", ""),
		http.StatusNotFound, CodeNotFound)
}

func TestAnalyticsUpcoming(t *testing.T) {
	s := newTestServer(t, Config{})
	createAccount(t, s, `{"name":"A","provider":"Bank","type":"credit","paymentDay":12}`)
	createAccount(t, s, `{"name":"B","provider":"Bank","type":"savings","statementDay":1}`)

	rec := do(t, s, http.MethodGet, "/api/analytics/upcoming?days=7", "")
	expectStatus(t, rec, http.StatusOK)
	body := decode[struct {
		Events []eventBody `json:"events"`
	}](t, rec)
	if len(body.Events) != 1 || body.Events[0].Kind != "payment" || body.Events[0].DaysUntil != 2 {
		t.Errorf("events = %+v", body.Events)
	}

	rec = do(t, s, http.MethodGet, "/api/analytics/upcoming", "")
	expectStatus(t, rec, http.StatusOK)
	if body := decode[struct {
		Events []eventBody `json:"events"`
	}](t, rec); len(body.Events) != 2 {
		t.Errorf("default horizon events = %+v", body.Events)
	}

	rec = do(t, s, http.MethodGet, "/api/analytics/upcoming?kind=statement", "")
	expectStatus(t, rec, http.StatusOK)
	if body := decode[struct {
		Events []eventBody `json:"events"`
	}](t, rec); len(body.Events) != 1 || body.Events[0].Kind != "statement" {
		t.Errorf("kind=statement events = %+v", body.Events)
	}

	expectErrorCode(t, do(t, s, http.MethodGet, "/api/analytics/upcoming?days=-1", ""), http.StatusBadRequest, CodeInvalidArgument)
	expectErrorCode(t, do(t, s, http.MethodGet, "/api/analytics/upcoming?kind=weekly", ""), http.StatusBadRequest, CodeInvalidArgument)
}

func TestAnalyticsSeries(t *testing.T) {
	s := newTestServer(t, Config{})
	a := createAccount(t, s, `{"name":"A","provider":"Bank","type":"credit"}`)
	b := createAccount(t, s, `{"name":"B","provider":"Bank","type":"credit"}`)
	createStatement(t, s, a, "10", "2024-01-31")
	createStatement(t, s, b, "5", "2024-02-29")

	rec := do(t, s, http.MethodGet, "/api/analytics/series", "")
	expectStatus(t, rec, http.StatusOK)
	body := decode[struct {
		Labels     []json.RawMessage            `json:"labels"`
		Total      []decimal.Decimal            `json:"total"`
		PerAccount map[string][]decimal.Decimal `json:"perAccount"`
	}](t, rec)

	if len(body.Labels) != 2 || len(body.Total) != 2 {
		t.Fatalf("series = %s", rec.Body.String())
	}
	if got := body.PerAccount[a.ID.String()]; len(got) != 2 || !got[0].Equal(decimal.NewFromInt(10)) || !got[1].IsZero() {
		t.Errorf("account A series = %v", got)
	}

	// A new statement must show up despite the cached series.
	createStatement(t, s, b, "1", "2024-03-31")
	rec = do(t, s, http.MethodGet, "/api/analytics/series", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q", rec.Header().Get("X-Cache"))
	}
}

func TestRecurrenceNext(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantDate  time.Time
		wantDays  int
		wantError bool
	}{
		{"clamps to leap february", "?day=31&ref=2024-02-10", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 19, false},
		{"rolls to next month", "?day=5&ref=2024-01-10", time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), 26, false},
		{"same day counts", "?day=10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 0, false},
		{"annual rolls to next year", "?month=2&day=30&ref=2023-03-01", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 365, false},
		{"missing day", "?month=2", time.Time{}, 0, true},
		{"day out of range", "?day=32", time.Time{}, 0, true},
		{"month out of range", "?day=1&month=13", time.Time{}, 0, true},
		{"bad ref", "?day=1&ref=yesterday", time.Time{}, 0, true},
	}

	s := newTestServer(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/recurrence/next"+tt.query, "")
			if tt.wantError {
				expectErrorCode(t, rec, http.StatusBadRequest, CodeInvalidArgument)
				return
			}
			expectStatus(t, rec, http.StatusOK)
			got := decode[recurrenceResponse](t, rec)
			if !got.Date.Equal(tt.wantDate) || got.DaysUntil != tt.wantDays {
				t.Errorf("got %s (%d days), want %s (%d days)", got.Date, got.DaysUntil, tt.wantDate, tt.wantDays)
			}
		})
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, Config{})
	expectStatus(t, do(t, s, http.MethodGet, "/healthz", ""), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodGet, "/readyz", ""), http.StatusOK)

	s.pinger = failingPinger{}
	expectErrorCode(t, do(t, s, http.MethodGet, "/readyz", ""), http.StatusServiceUnavailable, CodeUnavailable)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, Config{RateLimitPerMinute: 10})
	do(t, s, http.MethodGet, "/api/accounts", "")
	do(t, s, http.MethodGet, "/.env", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{
		"finwiz_http_requests_total 2",
		"finwiz_http_client_errors_total 1",
		"finwiz_suspicious_requests_total 1",
		"finwiz_analytics_cache_entries 0",
		"finwiz_ratelimit_clients 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestRouting_Errors(t *testing.T) {
	s := newTestServer(t, Config{})
	expectErrorCode(t, do(t, s, http.MethodGet, "/nope", ""), http.StatusNotFound, CodeNotFound)
	expectErrorCode(t, do(t, s, http.MethodPost, "/healthz", ""), http.StatusMethodNotAllowed, CodeMethodNotAllowed)
}

func TestRateLimit_Writes(t *testing.T) {
	s := newTestServer(t, Config{RateLimitPerMinute: 1})
	body := `{"name":"A","provider":"Bank","type":"credit"}`

	expectStatus(t, do(t, s, http.MethodPost, "/api/accounts", body), http.StatusCreated)
	rec := do(t, s, http.MethodPost, "/api/accounts", body)
	expectErrorCode(t, rec, http.StatusTooManyRequests, CodeRateLimited)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		expectStatus(t, do(t, s, http.MethodGet, "/api/accounts", ""), http.StatusOK)
	}
}

func TestRateLimit_PerClientBehindTrustedProxy(t *testing.T) {
	s := newTestServer(t, Config{RateLimitPerMinute: 1, TrustedProxies: []string{"203.0.113.0/24"}})
	body := `{"name":"A","provider":"Bank","type":"credit"}`

	post := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:44321"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, post("198.51.100.1"), http.StatusCreated)
	expectStatus(t, post("198.51.100.2"), http.StatusCreated)
	expectErrorCode(t, post("198.51.100.1"), http.StatusTooManyRequests, CodeRateLimited)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/api/accounts", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}
