// Package store defines the persistence ports the HTTP layer, services and
// workers depend on. Implementations live in store/memory and storage.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"finwiz/internal/core"
)

// ErrNotFound is returned when an account or statement does not exist.
var ErrNotFound = errors.New("not found")

type (
	AccountStore interface {
		// ListAccounts returns every account ordered by provider then name.
		ListAccounts(ctx context.Context) ([]core.Account, error)
		GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error)
		// CreateAccount stores a and assigns an id when a.ID is nil.
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		UpdateAccount(ctx context.Context, a core.Account) (core.Account, error)
		// DeleteAccount removes the account together with its statements.
		DeleteAccount(ctx context.Context, id uuid.UUID) error
	}

	StatementStore interface {
		// ListStatements returns the account's statements ordered by
		// statementEnd. It fails with ErrNotFound for an unknown account.
		ListStatements(ctx context.Context, accountID uuid.UUID) ([]core.Statement, error)
		ListAllStatements(ctx context.Context) ([]core.Statement, error)
		GetStatement(ctx context.Context, id uuid.UUID) (core.Statement, error)
		CreateStatement(ctx context.Context, s core.Statement) (core.Statement, error)
		UpdateStatement(ctx context.Context, s core.Statement) (core.Statement, error)
		DeleteStatement(ctx context.Context, id uuid.UUID) error
	}

	// Store is the full persistence surface of a backend.
	Store interface {
		AccountStore
		StatementStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// GroupByAccount splits statements by account id, preserving order.
func GroupByAccount(statements []core.Statement) map[uuid.UUID][]core.Statement {
	out := make(map[uuid.UUID][]core.Statement)
	for _, s := range statements {
		out[s.AccountID] = append(out[s.AccountID], s)
	}
	return out
}

// SortStatements orders statements by statementEnd as an instant, then by id.
func SortStatements(list []core.Statement) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StatementEnd.Equal(list[j].StatementEnd) {
			return list[i].StatementEnd.Before(list[j].StatementEnd)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}
