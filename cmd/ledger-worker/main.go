package main

import (
	"context"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	applog "ledger/internal/log"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(applog.ComponentWorker)

	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateMirror)

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Invalid timezone", err, "timezone", cfg.Timezone)
	}

	// The worker only reads, but opening the store applies pending
	// migrations, so it may start before the API.
	store := storage.NewLazySQLite(cfg.SQLiteDBPath)
	defer store.Close()

	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		cli.Fatal(logger, "Failed to load Google credentials", err)
	}
	mirror, err := gsheet.NewMirror(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets mirror", err)
	}
	logger.Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	w := worker.NewMirrorWorker(store, mirror, core.NewCalendar(loc), cfg.MirrorInterval)

	runDone := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		select {
		case <-runDone:
		case <-shutdownCtx.Done():
		}
	})

	go func() {
		defer close(runDone)
		if err := w.Run(ctx, amqpClient); err != nil {
			cli.Fatal(logger, "Mirror worker stopped", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
