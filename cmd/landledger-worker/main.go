package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"landledger/internal/amqp"
	"landledger/internal/cli"
	"landledger/internal/config"
	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/sheets"
	gsheet "landledger/internal/sheets/google"
	sheetsmem "landledger/internal/sheets/memory"
	"landledger/internal/worker"
)

const prefetch = 4

func main() {
	cfg := cli.LoadConfig((*config.Config).Validate, (*config.Config).ValidateWorker)
	logger := cli.SetupLogger(applog.ComponentWorker, cfg)
	logger.Info("Starting landledger-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var mirror sheets.Mirror
	if cfg.SheetsConfigured() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets mirror initialized", applog.FieldSheetsRef, cfg.GoogleSpreadsheetID)
		mirror = client
	} else {
		logger.Info("Google Sheets not configured, mirroring in memory")
		mirror = sheetsmem.New()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror, core.NewCalculator(), cfg.SyncBatchSize)
	processor := worker.NewProcessor(syncWorker, worker.ProcessorConfig{PollInterval: cfg.SyncInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Processor stop error", "error", err)
		}
	})

	logger.Info("Performing startup sync check")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeAgreementSync(gctx, prefetch, syncWorker.HandleSyncMessage)
	})
	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
