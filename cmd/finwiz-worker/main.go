package main

import (
	"context"
	"os"

	"finwiz/internal/amqp"
	"finwiz/internal/cli"
	gsheet "finwiz/internal/sheets/google"
	"finwiz/internal/services"
	"finwiz/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("finwiz-worker")
	logger.Info("Starting finwiz-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateSheetsMirror(); err != nil {
		logger.Error("Sheets mirror configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mirror, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize)

	// Catch up on anything saved while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	poller := services.NewPoller("statement-sync", services.PollerConfig{
		PollInterval: cfg.SyncInterval,
	}, syncWorker.ProcessPendingStatements, nil)

	logger.Info("Sync worker running",
		"queue", cfg.AMQPQueue,
		"interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize)

	err = cli.Run(ctx,
		func(ctx context.Context) error { return amqpClient.ConsumeStatements(ctx, syncWorker.Handlers()) },
		poller.Run,
	)
	if err != nil {
		logger.Error("Worker stopped with error", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
