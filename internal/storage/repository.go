package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finwiz/internal/core"
	"finwiz/internal/store"

	_ "modernc.org/sqlite"
)

// dateLayout is how statement dates are stored. The offset is kept so a
// date reads back in the same calendar month it was written in; rows are
// therefore re-sorted after loading.
const dateLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ store.Store = (*SQLiteRepository)(nil)

// dsn enables foreign keys on every pooled connection.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func notFound(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := accountFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error) {
	row, err := r.queries.GetAccount(ctx, id.String())
	if err != nil {
		return core.Account{}, notFound("account", id, err)
	}
	return accountFromRow(row)
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Statements = nil
	if err := r.queries.InsertAccount(ctx, accountToRow(a)); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite", "id", a.ID, "name", a.Name, "type", a.Type.String())
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Statements = nil
	n, err := r.queries.UpdateAccount(ctx, accountToRow(a))
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if n == 0 {
		return core.Account{}, fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	return a, nil
}

// DeleteAccount removes the account and its statements in one transaction.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete account: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteStatementsByAccount(ctx, id.String()); err != nil {
		return fmt.Errorf("delete statements of account %s: %w", id, err)
	}
	n, err := q.DeleteAccount(ctx, id.String())
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete account: %w", err)
	}
	slog.InfoContext(ctx, "Account deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) ListStatements(ctx context.Context, accountID uuid.UUID) ([]core.Statement, error) {
	if _, err := r.queries.GetAccount(ctx, accountID.String()); err != nil {
		return nil, notFound("account", accountID, err)
	}
	rows, err := r.queries.ListStatementsByAccount(ctx, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list statements of account %s: %w", accountID, err)
	}
	return statementsFromRows(rows)
}

func (r *SQLiteRepository) ListAllStatements(ctx context.Context) ([]core.Statement, error) {
	rows, err := r.queries.ListAllStatements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	return statementsFromRows(rows)
}

func (r *SQLiteRepository) GetStatement(ctx context.Context, id uuid.UUID) (core.Statement, error) {
	row, err := r.queries.GetStatement(ctx, id.String())
	if err != nil {
		return core.Statement{}, notFound("statement", id, err)
	}
	return statementFromRow(row)
}

func (r *SQLiteRepository) CreateStatement(ctx context.Context, s core.Statement) (core.Statement, error) {
	if _, err := r.queries.GetAccount(ctx, s.AccountID.String()); err != nil {
		return core.Statement{}, notFound("account", s.AccountID, err)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	version, err := r.queries.InsertStatement(ctx, statementToRow(s))
	if err != nil {
		return core.Statement{}, fmt.Errorf("create statement: %w", err)
	}
	s.Version = version

	slog.InfoContext(ctx, "Statement saved to SQLite",
		"id", s.ID,
		"account_id", s.AccountID,
		"amount", core.FormatAmount(s.Amount),
		"statement_end", s.StatementEnd.Format(time.DateOnly))
	return s, nil
}

func (r *SQLiteRepository) UpdateStatement(ctx context.Context, s core.Statement) (core.Statement, error) {
	if _, err := r.queries.GetAccount(ctx, s.AccountID.String()); err != nil {
		return core.Statement{}, notFound("account", s.AccountID, err)
	}
	version, err := r.queries.UpdateStatement(ctx, statementToRow(s))
	if err != nil {
		return core.Statement{}, notFound("statement", s.ID, err)
	}
	s.Version = version
	return s, nil
}

func (r *SQLiteRepository) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	n, err := r.queries.DeleteStatement(ctx, id.String())
	if err != nil {
		return fmt.Errorf("delete statement %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("statement %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// GetPendingSyncStatements returns statements not yet mirrored to Google
// Sheets, oldest write first.
func (r *SQLiteRepository) GetPendingSyncStatements(ctx context.Context, limit int) ([]PendingSyncStatement, error) {
	items, err := r.queries.GetPendingSyncStatements(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync statements: %w", err)
	}
	return items, nil
}

// MarkSynced marks the statement as mirrored if it still has the given
// version. A newer write keeps it pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id uuid.UUID, version int64) error {
	n, err := r.queries.MarkStatementSynced(ctx, id.String(), version, time.Now())
	if err != nil {
		return fmt.Errorf("mark statement synced: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Statement changed since sync started, keeping pending", "id", id, "version", version)
		return nil
	}
	slog.InfoContext(ctx, "Statement marked as synced", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkStatementSyncError(ctx, id.String()); err != nil {
		return fmt.Errorf("mark statement sync error: %w", err)
	}
	slog.WarnContext(ctx, "Statement marked with sync error", "id", id)
	return nil
}

// ClaimReminder records that a reminder for the account event is being
// sent. It returns false when the same reminder was already claimed.
func (r *SQLiteRepository) ClaimReminder(ctx context.Context, accountID uuid.UUID, kind string, date time.Time) (bool, error) {
	n, err := r.queries.InsertReminderDelivery(ctx, accountID.String(), kind, date.Format(time.DateOnly), time.Now())
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return n > 0, nil
}

// ReleaseReminder forgets a claim so the reminder is retried next run.
func (r *SQLiteRepository) ReleaseReminder(ctx context.Context, accountID uuid.UUID, kind string, date time.Time) error {
	if err := r.queries.DeleteReminderDelivery(ctx, accountID.String(), kind, date.Format(time.DateOnly)); err != nil {
		return fmt.Errorf("release reminder: %w", err)
	}
	return nil
}

// PruneReminders drops delivery records for events before the given date.
func (r *SQLiteRepository) PruneReminders(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.queries.PruneReminderDeliveries(ctx, before.Format(time.DateOnly))
	if err != nil {
		return 0, fmt.Errorf("prune reminders: %w", err)
	}
	return n, nil
}

func accountToRow(a core.Account) AccountRow {
	return AccountRow{
		ID:           a.ID.String(),
		Name:         a.Name,
		Provider:     a.Provider,
		Type:         int64(a.Type),
		CreditLimit:  nullDecimal(a.CreditLimit),
		AnnualFee:    nullDecimal(a.AnnualFee),
		Apy:          nullDecimal(a.APY),
		StatementDay: nullInt(a.StatementDay),
		PaymentDay:   nullInt(a.PaymentDay),
		DueDay:       nullInt(a.DueDay),
		FeeMonth:     nullInt(a.FeeMonth),
		FeeDay:       nullInt(a.FeeDay),
		IsAutopayOn:  a.IsAutopayOn,
		ImagePath:    nullString(a.ImagePath),
		Notes:        nullString(a.Notes),
		ColorHex:     nullString(a.ColorHex),
	}
}

func accountFromRow(row AccountRow) (core.Account, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse account id %q: %w", row.ID, err)
	}
	a := core.Account{
		ID:           id,
		Name:         row.Name,
		Provider:     row.Provider,
		Type:         core.AccountType(row.Type),
		StatementDay: intPtr(row.StatementDay),
		PaymentDay:   intPtr(row.PaymentDay),
		DueDay:       intPtr(row.DueDay),
		FeeMonth:     intPtr(row.FeeMonth),
		FeeDay:       intPtr(row.FeeDay),
		IsAutopayOn:  row.IsAutopayOn,
		ImagePath:    stringPtr(row.ImagePath),
		Notes:        stringPtr(row.Notes),
		ColorHex:     stringPtr(row.ColorHex),
	}
	if a.CreditLimit, err = decimalPtr(row.CreditLimit); err != nil {
		return core.Account{}, fmt.Errorf("account %s credit limit: %w", row.ID, err)
	}
	if a.AnnualFee, err = decimalPtr(row.AnnualFee); err != nil {
		return core.Account{}, fmt.Errorf("account %s annual fee: %w", row.ID, err)
	}
	if a.APY, err = decimalPtr(row.Apy); err != nil {
		return core.Account{}, fmt.Errorf("account %s apy: %w", row.ID, err)
	}
	return a, nil
}

func statementToRow(s core.Statement) StatementRow {
	row := StatementRow{
		ID:             s.ID.String(),
		AccountID:      s.AccountID.String(),
		Amount:         s.Amount.String(),
		StatementStart: s.StatementStart.Format(dateLayout),
		StatementEnd:   s.StatementEnd.Format(dateLayout),
		PaymentDate:    s.PaymentDate.Format(dateLayout),
		IsPaid:         s.IsPaid,
	}
	if s.DueDate != nil {
		row.DueDate = sql.NullString{String: s.DueDate.Format(dateLayout), Valid: true}
	}
	return row
}

func statementFromRow(row StatementRow) (core.Statement, error) {
	var (
		s   core.Statement
		err error
	)
	if s.ID, err = uuid.Parse(row.ID); err != nil {
		return s, fmt.Errorf("parse statement id %q: %w", row.ID, err)
	}
	if s.AccountID, err = uuid.Parse(row.AccountID); err != nil {
		return s, fmt.Errorf("statement %s account id: %w", row.ID, err)
	}
	if s.Amount, err = decimal.NewFromString(row.Amount); err != nil {
		return s, fmt.Errorf("statement %s amount: %w", row.ID, err)
	}
	if s.StatementStart, err = time.Parse(dateLayout, row.StatementStart); err != nil {
		return s, fmt.Errorf("statement %s start: %w", row.ID, err)
	}
	if s.StatementEnd, err = time.Parse(dateLayout, row.StatementEnd); err != nil {
		return s, fmt.Errorf("statement %s end: %w", row.ID, err)
	}
	if s.PaymentDate, err = time.Parse(dateLayout, row.PaymentDate); err != nil {
		return s, fmt.Errorf("statement %s payment date: %w", row.ID, err)
	}
	if row.DueDate.Valid {
		due, err := time.Parse(dateLayout, row.DueDate.String)
		if err != nil {
			return s, fmt.Errorf("statement %s due date: %w", row.ID, err)
		}
		s.DueDate = &due
	}
	s.IsPaid = row.IsPaid
	s.Version = row.Version
	return s, nil
}

func statementsFromRows(rows []StatementRow) ([]core.Statement, error) {
	out := make([]core.Statement, 0, len(rows))
	for _, row := range rows {
		s, err := statementFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	store.SortStatements(out)
	return out, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func decimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
