package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"finwiz/internal/core"
	"finwiz/internal/store"
)

// StatementService saves statements locally first and then publishes a
// sync or delete message for the Sheets mirror.
type StatementService struct {
	store     store.Store
	publisher Publisher
}

func NewStatementService(st store.Store, publisher Publisher) *StatementService {
	return &StatementService{store: st, publisher: publisher}
}

func (s *StatementService) List(ctx context.Context, accountID uuid.UUID) ([]core.Statement, error) {
	return s.store.ListStatements(ctx, accountID)
}

func (s *StatementService) Get(ctx context.Context, id uuid.UUID) (core.Statement, error) {
	return s.store.GetStatement(ctx, id)
}

// Create stores a statement for accountID.
func (s *StatementService) Create(ctx context.Context, accountID uuid.UUID, st core.Statement) (core.Statement, error) {
	st.ID = uuid.Nil
	st.AccountID = accountID
	if err := st.Validate(); err != nil {
		return core.Statement{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	created, err := s.store.CreateStatement(ctx, st)
	if err != nil {
		return core.Statement{}, fmt.Errorf("save statement: %w", err)
	}
	publishSync(ctx, s.publisher, created)
	return created, nil
}

// Update replaces the statement with id. A nil account id keeps the
// statement on its current account.
func (s *StatementService) Update(ctx context.Context, id uuid.UUID, st core.Statement) (core.Statement, error) {
	current, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return core.Statement{}, err
	}
	st.ID = id
	if st.AccountID == uuid.Nil {
		st.AccountID = current.AccountID
	}
	if err := st.Validate(); err != nil {
		return core.Statement{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	updated, err := s.store.UpdateStatement(ctx, st)
	if err != nil {
		return core.Statement{}, err
	}
	publishSync(ctx, s.publisher, updated)
	return updated, nil
}

// Delete returns the removed statement so callers can tell which account
// changed.
func (s *StatementService) Delete(ctx context.Context, id uuid.UUID) (core.Statement, error) {
	current, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return core.Statement{}, err
	}
	if err := s.store.DeleteStatement(ctx, id); err != nil {
		return core.Statement{}, err
	}
	publishDelete(ctx, s.publisher, current)
	slog.InfoContext(ctx, "Statement deleted", "id", id, "account_id", current.AccountID)
	return current, nil
}
