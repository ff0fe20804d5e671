// Package services orchestrates writes across the store and the AMQP
// publisher, and hosts the periodic processors the workers run.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"finwiz/internal/core"
	"finwiz/internal/store"
)

// ErrInvalidInput wraps domain validation failures.
var ErrInvalidInput = errors.New("invalid input")

// Publisher announces statement changes to the sync worker.
type Publisher interface {
	PublishStatementSync(ctx context.Context, id uuid.UUID, version int64) error
	PublishStatementDelete(ctx context.Context, id, accountID uuid.UUID) error
}

// AccountService saves accounts and keeps the statement mirror informed
// when an account delete cascades to its statements.
type AccountService struct {
	store     store.Store
	publisher Publisher
}

// NewAccountService accepts a nil publisher when AMQP is not configured.
func NewAccountService(st store.Store, publisher Publisher) *AccountService {
	return &AccountService{store: st, publisher: publisher}
}

// List returns every account, optionally with its statements embedded.
func (s *AccountService) List(ctx context.Context, withStatements bool) ([]core.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if !withStatements {
		return accounts, nil
	}

	all, err := s.store.ListAllStatements(ctx)
	if err != nil {
		return nil, err
	}
	byAccount := store.GroupByAccount(all)
	for i := range accounts {
		accounts[i].Statements = byAccount[accounts[i].ID]
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID, withStatements bool) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if withStatements {
		if a.Statements, err = s.store.ListStatements(ctx, id); err != nil {
			return core.Account{}, err
		}
	}
	return a, nil
}

func (s *AccountService) Create(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	a.ID = uuid.Nil
	a.Statements = nil
	created, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	slog.InfoContext(ctx, "Account created", "id", created.ID, "provider", created.Provider, "name", created.Name)
	return created, nil
}

// Update replaces every field of the account with id.
func (s *AccountService) Update(ctx context.Context, id uuid.UUID, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	a.ID = id
	a.Statements = nil
	updated, err := s.store.UpdateAccount(ctx, a)
	if err != nil {
		return core.Account{}, err
	}

	// Statement rows in the sheet carry the account label.
	if statements, err := s.store.ListStatements(ctx, id); err == nil {
		for _, st := range statements {
			publishSync(ctx, s.publisher, st)
		}
	}
	return updated, nil
}

// Delete removes the account and its statements, then asks the mirror to
// drop each statement row.
func (s *AccountService) Delete(ctx context.Context, id uuid.UUID) error {
	statements, err := s.store.ListStatements(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	for _, st := range statements {
		publishDelete(ctx, s.publisher, st)
	}
	slog.InfoContext(ctx, "Account deleted", "id", id, "statements", len(statements))
	return nil
}

// publishSync never fails the caller: the row is already saved and the
// worker's pending scan picks it up.
func publishSync(ctx context.Context, p Publisher, st core.Statement) {
	if p == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message", "id", st.ID)
		return
	}
	if err := p.PublishStatementSync(ctx, st.ID, st.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", st.ID, "version", st.Version, "error", err)
	}
}

func publishDelete(ctx context.Context, p Publisher, st core.Statement) {
	if p == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message", "id", st.ID)
		return
	}
	if err := p.PublishStatementDelete(ctx, st.ID, st.AccountID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", st.ID, "error", err)
	}
}
