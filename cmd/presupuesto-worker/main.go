package main

import (
	"context"
	"errors"
	"os"
	"time"

	"presupuesto/internal/cli"
	"presupuesto/internal/log"
	"presupuesto/internal/sheets/google"
	"presupuesto/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.Setup(log.DefaultConfig().Level, log.ComponentWorker).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting presupuesto-worker")

	if !cfg.ExportEnabled() {
		logger.Error("Export disabled - set GOOGLE_SPREADSHEET_ID to run the worker")
		os.Exit(1)
	}

	// No result cache: writes happen in the API process.
	app, err := cli.Bootstrap(context.Background(), cfg, logger, cli.AppOptions{})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	sheetsClient, err := google.NewFromConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"report_sheet", cfg.GoogleReportSheet)

	exporter := worker.NewExportWorker(app.Service, sheetsClient, app.Catalog.BrandNames(), nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if app.Backend.Publisher != nil {
		go func() {
			err := app.Backend.Publisher.Consume(ctx, exporter.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP not configured - relying on periodic exports only",
			"interval", cfg.ExportInterval)
	}

	go exporter.Run(ctx, cfg.ExportInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
