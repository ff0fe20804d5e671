package main

import (
	"context"
	"os"
	"time"

	"finwiz/internal/amqp"
	"finwiz/internal/cli"
	"finwiz/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("reminder-worker")
	logger.Info("Starting reminder-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for reminder-worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewReminderProcessor(repo, repo, amqpClient, cfg.ReminderHorizonDays)

	poll := func(ctx context.Context) error {
		count, err := processor.ProcessDueReminders(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info("Reminder processing complete",
			"reminders_published", count,
			"next_check", time.Now().Add(cfg.ReminderInterval).Format("15:04:05"))
		return nil
	}
	prune := func(ctx context.Context) error {
		return processor.PruneDelivered(ctx, time.Now())
	}

	poller := services.NewPoller("reminders", services.PollerConfig{
		PollInterval:    cfg.ReminderInterval,
		CleanupInterval: 24 * time.Hour,
	}, poll, prune)

	logger.Info("Reminder processor configured",
		"interval", cfg.ReminderInterval,
		"horizon_days", cfg.ReminderHorizonDays,
		"queue", cfg.AMQPReminderQueue,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := cli.Run(ctx, poller.Run); err != nil {
		logger.Error("Reminder worker stopped with error", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("Reminder-worker shutdown complete")
}
