package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finwiz/internal/amqp"
	"finwiz/internal/core"
	"finwiz/internal/storage"
	"finwiz/internal/store"
)

type fakeRepo struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]core.Account
	statements map[uuid.UUID]core.Statement
	pending    []storage.PendingSyncStatement
	synced     map[uuid.UUID]int64
	syncErrors map[uuid.UUID]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:   make(map[uuid.UUID]core.Account),
		statements: make(map[uuid.UUID]core.Statement),
		synced:     make(map[uuid.UUID]int64),
		syncErrors: make(map[uuid.UUID]int),
	}
}

func (r *fakeRepo) GetAccount(_ context.Context, id uuid.UUID) (core.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return core.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) GetStatement(_ context.Context, id uuid.UUID) (core.Statement, error) {
	s, ok := r.statements[id]
	if !ok {
		return core.Statement{}, store.ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) GetPendingSyncStatements(_ context.Context, limit int) ([]storage.PendingSyncStatement, error) {
	if limit < len(r.pending) {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeRepo) MarkSynced(_ context.Context, id uuid.UUID, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced[id] = version
	return nil
}

func (r *fakeRepo) MarkSyncError(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncErrors[id]++
	return nil
}

type fakeMirror struct {
	upserts map[uuid.UUID]string
	deletes []uuid.UUID
	err     error
}

func (m *fakeMirror) UpsertStatement(_ context.Context, account core.Account, s core.Statement) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.upserts == nil {
		m.upserts = make(map[uuid.UUID]string)
	}
	m.upserts[s.ID] = account.Label()
	return "Statements!A2:I2", nil
}

func (m *fakeMirror) DeleteStatement(_ context.Context, id uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deletes = append(m.deletes, id)
	return nil
}

func seed(r *fakeRepo) core.Statement {
	acc := core.Account{ID: uuid.New(), Name: "Gold", Provider: "Amex"}
	s := core.Statement{
		ID:             uuid.New(),
		AccountID:      acc.ID,
		Amount:         decimal.NewFromInt(120),
		StatementStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		StatementEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		PaymentDate:    time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		Version:        3,
	}
	r.accounts[acc.ID] = acc
	r.statements[s.ID] = s
	return s
}

func TestHandleSyncMessage(t *testing.T) {
	repo := newFakeRepo()
	s := seed(repo)
	mirror := &fakeMirror{}
	w := NewSyncWorker(repo, mirror, 10)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewStatementSyncMessage(s.ID, 2)); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	if got := mirror.upserts[s.ID]; got != "Amex Gold" {
		t.Errorf("upserted account label = %q", got)
	}
	// The stored version is what was written, not the one in the message.
	if v, ok := repo.synced[s.ID]; !ok || v != 3 {
		t.Errorf("MarkSynced version = %d (called %v), want 3", v, ok)
	}
}

func TestHandleSyncMessage_DeletedStatement(t *testing.T) {
	repo := newFakeRepo()
	mirror := &fakeMirror{}
	w := NewSyncWorker(repo, mirror, 10)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewStatementSyncMessage(uuid.New(), 1)); err != nil {
		t.Fatalf("missing statement should be acknowledged, got %v", err)
	}
	if len(mirror.upserts) != 0 {
		t.Error("nothing should be written to the sheet")
	}
}

func TestHandleSyncMessage_MirrorError(t *testing.T) {
	repo := newFakeRepo()
	s := seed(repo)
	w := NewSyncWorker(repo, &fakeMirror{err: errors.New("quota exceeded")}, 10)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewStatementSyncMessage(s.ID, 3)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if repo.syncErrors[s.ID] != 1 {
		t.Errorf("sync errors = %d, want 1", repo.syncErrors[s.ID])
	}
	if _, ok := repo.synced[s.ID]; ok {
		t.Error("statement must not be marked synced")
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewSyncWorker(newFakeRepo(), mirror, 10)
	id := uuid.New()

	if err := w.HandleDeleteMessage(context.Background(), amqp.NewStatementDeleteMessage(id, uuid.New())); err != nil {
		t.Fatalf("HandleDeleteMessage: %v", err)
	}
	if len(mirror.deletes) != 1 || mirror.deletes[0] != id {
		t.Errorf("deletes = %v", mirror.deletes)
	}

	w = NewSyncWorker(newFakeRepo(), &fakeMirror{err: errors.New("down")}, 10)
	if err := w.HandleDeleteMessage(context.Background(), amqp.NewStatementDeleteMessage(id, uuid.New())); err == nil {
		t.Error("expected mirror error to propagate")
	}
}

func TestProcessPendingStatements(t *testing.T) {
	repo := newFakeRepo()
	a := seed(repo)
	b := seed(repo)
	repo.pending = []storage.PendingSyncStatement{
		{ID: a.ID.String(), Version: a.Version},
		{ID: "garbage"},
		{ID: uuid.NewString()},
		{ID: b.ID.String(), Version: b.Version},
	}
	mirror := &fakeMirror{}
	w := NewSyncWorker(repo, mirror, 10)

	if err := w.ProcessPendingStatements(context.Background()); err != nil {
		t.Fatalf("ProcessPendingStatements: %v", err)
	}
	if len(mirror.upserts) != 2 {
		t.Errorf("upserts = %d, want 2", len(mirror.upserts))
	}
	if len(repo.synced) != 2 {
		t.Errorf("synced = %d, want 2", len(repo.synced))
	}
}

func TestProcessPending_BatchSize(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 12; i++ {
		s := seed(repo)
		repo.pending = append(repo.pending, storage.PendingSyncStatement{ID: s.ID.String(), Version: s.Version})
	}
	mirror := &fakeMirror{}
	w := NewSyncWorker(repo, mirror, 2)

	if err := w.ProcessPendingStatements(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(mirror.upserts) != 2 {
		t.Errorf("regular scan synced %d, want batch of 2", len(mirror.upserts))
	}

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(mirror.upserts) != 10 {
		t.Errorf("startup check synced %d, want 10", len(mirror.upserts))
	}
}
