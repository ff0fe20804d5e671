package storage

import (
	"context"
	"database/sql"
	"time"
)

const accountColumns = `id, name, provider, type, credit_limit, annual_fee, apy,
	statement_day, payment_day, due_day, fee_month, fee_day,
	is_autopay_on, image_path, notes, color_hex`

const statementColumns = `id, account_id, amount, statement_start, statement_end,
	payment_date, due_date, is_paid, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (AccountRow, error) {
	var a AccountRow
	err := row.Scan(
		&a.ID, &a.Name, &a.Provider, &a.Type, &a.CreditLimit, &a.AnnualFee, &a.Apy,
		&a.StatementDay, &a.PaymentDay, &a.DueDay, &a.FeeMonth, &a.FeeDay,
		&a.IsAutopayOn, &a.ImagePath, &a.Notes, &a.ColorHex,
	)
	return a, err
}

func scanStatement(row rowScanner) (StatementRow, error) {
	var s StatementRow
	err := row.Scan(
		&s.ID, &s.AccountID, &s.Amount, &s.StatementStart, &s.StatementEnd,
		&s.PaymentDate, &s.DueDate, &s.IsPaid, &s.Version,
	)
	return s, err
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY provider, name, id`

func (q *Queries) ListAccounts(ctx context.Context) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (AccountRow, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const insertAccount = `INSERT INTO accounts (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertAccount(ctx context.Context, a AccountRow) error {
	_, err := q.db.ExecContext(ctx, insertAccount,
		a.ID, a.Name, a.Provider, a.Type, a.CreditLimit, a.AnnualFee, a.Apy,
		a.StatementDay, a.PaymentDay, a.DueDay, a.FeeMonth, a.FeeDay,
		a.IsAutopayOn, a.ImagePath, a.Notes, a.ColorHex,
	)
	return err
}

const updateAccount = `UPDATE accounts SET
	name = ?, provider = ?, type = ?, credit_limit = ?, annual_fee = ?, apy = ?,
	statement_day = ?, payment_day = ?, due_day = ?, fee_month = ?, fee_day = ?,
	is_autopay_on = ?, image_path = ?, notes = ?, color_hex = ?,
	updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateAccount(ctx context.Context, a AccountRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAccount,
		a.Name, a.Provider, a.Type, a.CreditLimit, a.AnnualFee, a.Apy,
		a.StatementDay, a.PaymentDay, a.DueDay, a.FeeMonth, a.FeeDay,
		a.IsAutopayOn, a.ImagePath, a.Notes, a.ColorHex,
		a.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteStatementsByAccount = `DELETE FROM statements WHERE account_id = ?`

func (q *Queries) DeleteStatementsByAccount(ctx context.Context, accountID string) error {
	_, err := q.db.ExecContext(ctx, deleteStatementsByAccount, accountID)
	return err
}

const listStatementsByAccount = `SELECT ` + statementColumns + `
FROM statements WHERE account_id = ? ORDER BY statement_end, id`

func (q *Queries) ListStatementsByAccount(ctx context.Context, accountID string) ([]StatementRow, error) {
	return q.queryStatements(ctx, listStatementsByAccount, accountID)
}

const listAllStatements = `SELECT ` + statementColumns + ` FROM statements ORDER BY statement_end, id`

func (q *Queries) ListAllStatements(ctx context.Context) ([]StatementRow, error) {
	return q.queryStatements(ctx, listAllStatements)
}

func (q *Queries) queryStatements(ctx context.Context, query string, args ...interface{}) ([]StatementRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatementRow
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getStatement = `SELECT ` + statementColumns + ` FROM statements WHERE id = ?`

func (q *Queries) GetStatement(ctx context.Context, id string) (StatementRow, error) {
	return scanStatement(q.db.QueryRowContext(ctx, getStatement, id))
}

const insertStatement = `INSERT INTO statements (
	id, account_id, amount, statement_start, statement_end, payment_date, due_date, is_paid
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING version`

func (q *Queries) InsertStatement(ctx context.Context, s StatementRow) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, insertStatement,
		s.ID, s.AccountID, s.Amount, s.StatementStart, s.StatementEnd,
		s.PaymentDate, s.DueDate, s.IsPaid,
	).Scan(&version)
	return version, err
}

const updateStatement = `UPDATE statements SET
	account_id = ?, amount = ?, statement_start = ?, statement_end = ?,
	payment_date = ?, due_date = ?, is_paid = ?,
	version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING version`

func (q *Queries) UpdateStatement(ctx context.Context, s StatementRow) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, updateStatement,
		s.AccountID, s.Amount, s.StatementStart, s.StatementEnd,
		s.PaymentDate, s.DueDate, s.IsPaid,
		s.ID,
	).Scan(&version)
	return version, err
}

const deleteStatement = `DELETE FROM statements WHERE id = ?`

func (q *Queries) DeleteStatement(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteStatement, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getPendingSyncStatements = `SELECT id, version, updated_at
FROM statements
WHERE sync_status IN ('pending', 'error')
ORDER BY updated_at, id
LIMIT ?`

func (q *Queries) GetPendingSyncStatements(ctx context.Context, limit int64) ([]PendingSyncStatement, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncStatements, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncStatement
	for rows.Next() {
		var p PendingSyncStatement
		var updated sql.NullTime
		if err := rows.Scan(&p.ID, &p.Version, &updated); err != nil {
			return nil, err
		}
		p.UpdatedAt = updated.Time
		items = append(items, p)
	}
	return items, rows.Err()
}

const markStatementSynced = `UPDATE statements
SET sync_status = 'synced', synced_at = ?
WHERE id = ? AND version = ?`

func (q *Queries) MarkStatementSynced(ctx context.Context, id string, version int64, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markStatementSynced, at.UTC(), id, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markStatementSyncError = `UPDATE statements SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkStatementSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markStatementSyncError, id)
	return err
}

const insertReminderDelivery = `INSERT OR IGNORE INTO reminder_deliveries (account_id, kind, event_date, sent_at)
VALUES (?, ?, ?, ?)`

func (q *Queries) InsertReminderDelivery(ctx context.Context, accountID, kind, eventDate string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertReminderDelivery, accountID, kind, eventDate, at.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteReminderDelivery = `DELETE FROM reminder_deliveries WHERE account_id = ? AND kind = ? AND event_date = ?`

func (q *Queries) DeleteReminderDelivery(ctx context.Context, accountID, kind, eventDate string) error {
	_, err := q.db.ExecContext(ctx, deleteReminderDelivery, accountID, kind, eventDate)
	return err
}

const pruneReminderDeliveries = `DELETE FROM reminder_deliveries WHERE event_date < ?`

func (q *Queries) PruneReminderDeliveries(ctx context.Context, before string) (int64, error) {
	res, err := q.db.ExecContext(ctx, pruneReminderDeliveries, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
