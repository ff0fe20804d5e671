package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finwiz/internal/core"
	"finwiz/internal/sheets"
)

const defaultSheetName = "Statements"

// Header is written to row 1 of an empty sheet. Columns A..I.
var Header = []interface{}{"ID", "Account ID", "Account", "Start", "End", "Amount", "Payment Date", "Due Date", "Paid"}

// Options selects the spreadsheet and credentials. Service account
// credentials win over OAuth when both are set.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// Row index cache: statement id to 1-based row number.
	mu                 sync.Mutex
	rowIndex           map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ sheets.StatementMirror = (*Client)(nil)

// jsonUnmarshal is swapped in tests.
var jsonUnmarshal = json.Unmarshal

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: 5 * time.Minute,
	}, nil
}

func readInlineOrFile(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if f := strings.TrimSpace(file); f != "" {
		return os.ReadFile(f)
	}
	return nil, nil
}

// newSheetsService authenticates with a service account when one is
// configured and otherwise with an OAuth client plus a stored token, as
// produced by cmd/oauth-init.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccount, err := readInlineOrFile(opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if len(serviceAccount) > 0 {
		slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(serviceAccount))
		svc, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(serviceAccount),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		)
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	clientJSON, err := readInlineOrFile(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := readInlineOrFile(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	if len(tokenJSON) == 0 {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var token oauth2.Token
	if err := jsonUnmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// The oauth2 transport wraps this pooled client for token refreshes and
	// API calls alike.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created with OAuth token")
	return svc, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// UpsertStatement implements sheets.StatementMirror.
func (c *Client) UpsertStatement(ctx context.Context, account core.Account, s core.Statement) (string, error) {
	if s.ID == uuid.Nil {
		return "", errors.New("statement without id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row, total, err := c.locateRow(ctx, s.ID.String())
	if err != nil {
		return "", err
	}
	if total == 0 {
		if err := c.writeRow(ctx, 1, Header); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		total = 1
	}
	if row == 0 {
		row = total + 1
	}

	if err := c.writeRow(ctx, row, StatementValues(account, s)); err != nil {
		c.invalidateRows()
		return "", err
	}

	c.mu.Lock()
	if c.rowIndex != nil {
		c.rowIndex[s.ID.String()] = row
		if row > c.cachedRowCount {
			c.cachedRowCount = row
		}
	}
	c.mu.Unlock()

	return rowRange(c.sheetName, row), nil
}

// DeleteStatement implements sheets.StatementMirror.
func (c *Client) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, _, err := c.locateRow(ctx, id.String())
	if err != nil {
		return err
	}
	if row == 0 {
		slog.InfoContext(ctx, "Statement row not found in sheet, nothing to delete", "id", id)
		return nil
	}

	rng := rowRange(c.sheetName, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		c.invalidateRows()
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	c.mu.Lock()
	delete(c.rowIndex, id.String())
	c.mu.Unlock()
	return nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []interface{}) error {
	rng := rowRange(c.sheetName, row)
	vr := &gsheet.ValueRange{Values: [][]interface{}{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// locateRow returns the row holding id (0 when absent) and the number of
// rows in use, refreshing the cached index when it expired.
func (c *Client) locateRow(ctx context.Context, id string) (row, total int, err error) {
	c.mu.Lock()
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		row, total = c.rowIndex[id], c.cachedRowCount
		c.mu.Unlock()
		return row, total, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	index := indexRows(resp.Values)

	c.mu.Lock()
	c.rowIndex = index
	c.cachedRowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	return index[id], len(resp.Values), nil
}

func (c *Client) invalidateRows() {
	c.mu.Lock()
	c.rowIndex = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// indexRows maps the ids found in column A to their 1-based row numbers.
// Empty cells and the header are skipped; the first occurrence wins.
func indexRows(values [][]interface{}) map[string]int {
	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		if _, seen := index[id]; !seen {
			index[id] = i + 1
		}
	}
	return index
}

// StatementValues renders a statement as the A..I cells of its row.
func StatementValues(account core.Account, s core.Statement) []interface{} {
	due := ""
	if s.DueDate != nil {
		due = s.DueDate.Format(time.DateOnly)
	}
	return []interface{}{
		s.ID.String(),
		s.AccountID.String(),
		account.Label(),
		s.StatementStart.Format(time.DateOnly),
		s.StatementEnd.Format(time.DateOnly),
		core.FormatAmount(s.Amount),
		s.PaymentDate.Format(time.DateOnly),
		due,
		s.IsPaid,
	}
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:I%d", sheet, row, row)
}
