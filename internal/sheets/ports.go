// Package sheets defines the outbound port for mirroring statements to a
// spreadsheet. The Google implementation lives in sheets/google.
package sheets

import (
	"context"

	"github.com/google/uuid"

	"finwiz/internal/core"
)

// StatementMirror keeps one spreadsheet row per statement.
type StatementMirror interface {
	// UpsertStatement writes the statement row, replacing an existing row
	// with the same id. It returns an A1 reference to the written row.
	UpsertStatement(ctx context.Context, account core.Account, s core.Statement) (rowRef string, err error)
	// DeleteStatement clears the statement row. Missing rows are not an error.
	DeleteStatement(ctx context.Context, id uuid.UUID) error
}
