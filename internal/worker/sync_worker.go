package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"finwiz/internal/amqp"
	"finwiz/internal/core"
	"finwiz/internal/sheets"
	"finwiz/internal/storage"
	"finwiz/internal/store"
)

// Repository is the part of the SQLite repository the worker needs.
type Repository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error)
	GetStatement(ctx context.Context, id uuid.UUID) (core.Statement, error)
	GetPendingSyncStatements(ctx context.Context, limit int) ([]storage.PendingSyncStatement, error)
	MarkSynced(ctx context.Context, id uuid.UUID, version int64) error
	MarkSyncError(ctx context.Context, id uuid.UUID) error
}

// SyncWorker mirrors statements from SQLite to Google Sheets.
type SyncWorker struct {
	repo      Repository
	mirror    sheets.StatementMirror
	batchSize int
}

func NewSyncWorker(repo Repository, mirror sheets.StatementMirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		repo:      repo,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// Handlers wires the worker into amqp.Client.ConsumeStatements.
func (w *SyncWorker) Handlers() amqp.StatementHandlers {
	return amqp.StatementHandlers{
		OnSync:   w.HandleSyncMessage,
		OnDelete: w.HandleDeleteMessage,
	}
}

// HandleSyncMessage processes a single statement sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.StatementSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	if err := w.syncStatement(ctx, msg.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted before we got to it; the delete message handles the sheet.
			slog.InfoContext(ctx, "Statement no longer exists, skipping sync", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("sync statement: %w", err)
	}
	return nil
}

// HandleDeleteMessage removes the statement row from the sheet.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.StatementDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message",
		"id", msg.ID,
		"account_id", msg.AccountID)

	if err := w.mirror.DeleteStatement(ctx, msg.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to delete statement from Google Sheets",
			"id", msg.ID,
			"error", err,
			"timestamp", msg.Timestamp)
		return fmt.Errorf("delete statement from sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully deleted statement from Google Sheets",
		"id", msg.ID,
		"timestamp", msg.Timestamp)
	return nil
}

// ProcessPendingStatements retries statements that were never mirrored.
// It covers lost AMQP messages and publish failures in the API.
func (w *SyncWorker) ProcessPendingStatements(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if synced+failed > 0 {
		slog.InfoContext(ctx, "Processed pending statements", "synced", synced, "errors", failed)
	}
	return nil
}

// StartupSyncCheck drains a larger batch of pending statements when the
// worker starts, to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending statements found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.repo.GetPendingSyncStatements(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending statements: %w", err)
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		id, err := uuid.Parse(p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping pending statement with invalid id", "id", p.ID, "error", err)
			failed++
			continue
		}
		if err := w.syncStatement(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending statement", "id", id, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncStatement(ctx context.Context, id uuid.UUID) error {
	s, err := w.repo.GetStatement(ctx, id)
	if err != nil {
		return fmt.Errorf("get statement: %w", err)
	}
	account, err := w.repo.GetAccount(ctx, s.AccountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	ref, err := w.mirror.UpsertStatement(ctx, account, s)
	if err != nil {
		if markErr := w.repo.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert to sheets: %w", err)
	}

	// The sync worked even if this fails; the next pending scan rewrites
	// the same row.
	if err := w.repo.MarkSynced(ctx, id, s.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced statement",
		"id", id,
		"version", s.Version,
		"sheets_ref", ref,
		"amount", core.FormatAmount(s.Amount))
	return nil
}
