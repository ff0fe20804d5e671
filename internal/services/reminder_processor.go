package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finwiz/internal/amqp"
	"finwiz/internal/analytics"
	"finwiz/internal/core"
)

type (
	AccountLister interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	// ReminderLedger remembers which reminders were already sent.
	ReminderLedger interface {
		ClaimReminder(ctx context.Context, accountID uuid.UUID, kind string, date time.Time) (bool, error)
		ReleaseReminder(ctx context.Context, accountID uuid.UUID, kind string, date time.Time) error
		PruneReminders(ctx context.Context, before time.Time) (int64, error)
	}

	ReminderPublisher interface {
		PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
	}
)

// ReminderProcessor publishes one reminder per upcoming account date
// within the horizon. Each (account, kind, date) is announced once.
type ReminderProcessor struct {
	accounts    AccountLister
	ledger      ReminderLedger
	publisher   ReminderPublisher
	horizonDays int
}

func NewReminderProcessor(accounts AccountLister, ledger ReminderLedger, publisher ReminderPublisher, horizonDays int) *ReminderProcessor {
	return &ReminderProcessor{
		accounts:    accounts,
		ledger:      ledger,
		publisher:   publisher,
		horizonDays: horizonDays,
	}
}

// ProcessDueReminders returns the number of reminders published.
func (p *ReminderProcessor) ProcessDueReminders(ctx context.Context, now time.Time) (int, error) {
	if p.accounts == nil || p.ledger == nil || p.publisher == nil {
		return 0, errors.New("processor not properly initialized")
	}

	accounts, err := p.accounts.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	events, err := analytics.EventsWithin(accounts, now, p.horizonDays)
	if err != nil {
		return 0, fmt.Errorf("resolve upcoming events: %w", err)
	}

	slog.InfoContext(ctx, "Processing reminders",
		"accounts", len(accounts),
		"events", len(events),
		"horizon_days", p.horizonDays,
		"processing_date", now.Format(time.DateOnly))

	published := 0
	for _, ev := range events {
		kind := string(ev.Kind)
		claimed, err := p.ledger.ClaimReminder(ctx, ev.AccountID, kind, ev.Date)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to claim reminder",
				"account_id", ev.AccountID, "kind", kind, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		msg := &amqp.ReminderMessage{
			AccountID:   ev.AccountID,
			AccountName: ev.AccountName,
			Kind:        kind,
			Date:        ev.Date.Format(time.DateOnly),
			DaysUntil:   ev.DaysUntil,
			Timestamp:   now,
		}
		if err := p.publisher.PublishReminder(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"account_id", ev.AccountID, "kind", kind, "date", msg.Date, "error", err)
			if err := p.ledger.ReleaseReminder(ctx, ev.AccountID, kind, ev.Date); err != nil {
				slog.ErrorContext(ctx, "Failed to release reminder claim",
					"account_id", ev.AccountID, "kind", kind, "error", err)
			}
			continue
		}

		published++
		slog.InfoContext(ctx, "Reminder published",
			"account_id", ev.AccountID,
			"account", ev.AccountName,
			"kind", kind,
			"date", msg.Date,
			"days_until", ev.DaysUntil)
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"published", published,
		"total_checked", len(events))
	return published, nil
}

// PruneDelivered forgets deliveries for dates before today; those events
// can no longer come back into the horizon.
func (p *ReminderProcessor) PruneDelivered(ctx context.Context, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := p.ledger.PruneReminders(ctx, today)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pruned reminder deliveries", "count", n)
	}
	return nil
}
