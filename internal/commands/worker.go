package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cashboxes/internal/amqp"
	"cashboxes/internal/cli"
	"cashboxes/internal/export/sheets"
	applog "cashboxes/internal/log"
	"cashboxes/internal/worker"
)

func newWorkerCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Export submitted invoices to the ledger spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "export pending invoices once and exit")
	return cmd
}

func runWorker(parent context.Context, once bool) error {
	a, err := openApp(parent, applog.ComponentWorker, true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()

	writer, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	exporter := worker.NewExportWorker(a.store, writer, cfg.ExportBatchSize)

	if once {
		n, err := exporter.ProcessPending(ctx)
		logger.Info("Exported pending invoices", "count", n)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return exporter.Run(gctx, cfg.ExportInterval) })

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on periodic export", applog.FieldError, err)
		} else {
			defer client.Close()
			g.Go(func() error {
				err := client.ConsumeInvoiceSubmitted(gctx, exporter.HandleInvoiceSubmitted)
				if gctx.Err() != nil {
					return nil
				}
				return err
			})
		}
	}

	logger.Info("Export worker started",
		"interval", cfg.ExportInterval,
		"batch_size", cfg.ExportBatchSize,
		"amqp_enabled", cfg.AMQPURL != "")

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Export worker stopped")
	return nil
}
