package storage

import (
	"database/sql"
	"time"
)

type AccountRow struct {
	ID           string
	Name         string
	Provider     string
	Type         int64
	CreditLimit  sql.NullString
	AnnualFee    sql.NullString
	Apy          sql.NullString
	StatementDay sql.NullInt64
	PaymentDay   sql.NullInt64
	DueDay       sql.NullInt64
	FeeMonth     sql.NullInt64
	FeeDay       sql.NullInt64
	IsAutopayOn  bool
	ImagePath    sql.NullString
	Notes        sql.NullString
	ColorHex     sql.NullString
}

type StatementRow struct {
	ID             string
	AccountID      string
	Amount         string
	StatementStart string
	StatementEnd   string
	PaymentDate    string
	DueDate        sql.NullString
	IsPaid         bool
	Version        int64
}

// PendingSyncStatement is the minimal data a sync retry needs.
type PendingSyncStatement struct {
	ID        string
	Version   int64
	UpdatedAt time.Time
}
