package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"

	"finwiz/internal/core"
	"finwiz/internal/store"
)

// Store keeps accounts and statements in process memory.
type Store struct {
	mu         sync.RWMutex
	accounts   map[uuid.UUID]core.Account
	statements map[uuid.UUID]core.Statement
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:   make(map[uuid.UUID]core.Account),
		statements: make(map[uuid.UUID]core.Statement),
	}
}

// NewFromFile seeds the store from a JSON array of accounts with embedded
// statements. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed []core.Account
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	ctx := context.Background()
	for _, a := range seed {
		statements := a.Statements
		a.Statements = nil
		created, err := s.CreateAccount(ctx, a)
		if err != nil {
			return nil, err
		}
		for _, st := range statements {
			st.AccountID = created.ID
			if _, err := s.CreateStatement(ctx, st); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, exists := s.accounts[a.ID]; exists {
		return core.Account{}, fmt.Errorf("account %s already exists", a.ID)
	}
	a.Statements = nil
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	a.Statements = nil
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	delete(s.accounts, id)
	for sid, st := range s.statements {
		if st.AccountID == id {
			delete(s.statements, sid)
		}
	}
	return nil
}

func (s *Store) ListStatements(_ context.Context, accountID uuid.UUID) ([]core.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	out := make([]core.Statement, 0)
	for _, st := range s.statements {
		if st.AccountID == accountID {
			out = append(out, st)
		}
	}
	store.SortStatements(out)
	return out, nil
}

func (s *Store) ListAllStatements(_ context.Context) ([]core.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Statement, 0, len(s.statements))
	for _, st := range s.statements {
		out = append(out, st)
	}
	store.SortStatements(out)
	return out, nil
}

func (s *Store) GetStatement(_ context.Context, id uuid.UUID) (core.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statements[id]
	if !ok {
		return core.Statement{}, fmt.Errorf("statement %s: %w", id, store.ErrNotFound)
	}
	return st, nil
}

func (s *Store) CreateStatement(_ context.Context, st core.Statement) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[st.AccountID]; !ok {
		return core.Statement{}, fmt.Errorf("account %s: %w", st.AccountID, store.ErrNotFound)
	}
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if _, exists := s.statements[st.ID]; exists {
		return core.Statement{}, fmt.Errorf("statement %s already exists", st.ID)
	}
	st.Version = 1
	s.statements[st.ID] = st
	return st, nil
}

func (s *Store) UpdateStatement(_ context.Context, st core.Statement) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.statements[st.ID]
	if !ok {
		return core.Statement{}, fmt.Errorf("statement %s: %w", st.ID, store.ErrNotFound)
	}
	if _, ok := s.accounts[st.AccountID]; !ok {
		return core.Statement{}, fmt.Errorf("account %s: %w", st.AccountID, store.ErrNotFound)
	}
	st.Version = old.Version + 1
	s.statements[st.ID] = st
	return st, nil
}

func (s *Store) DeleteStatement(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[id]; !ok {
		return fmt.Errorf("statement %s: %w", id, store.ErrNotFound)
	}
	delete(s.statements, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
