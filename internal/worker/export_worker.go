package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashboxes/internal/amqp"
	"cashboxes/internal/core"
	"cashboxes/internal/export"
	"cashboxes/internal/ports"
)

// Store is what the export worker reads invoices and their context from.
type Store interface {
	ports.CashBoxStore
	ports.TransactionStore
	ports.ExportTracker
	ports.UserDirectory
}

// ExportWorker copies submitted invoices to the external ledger sheet.
type ExportWorker struct {
	store     Store
	writer    export.InvoiceWriter
	batchSize int
	now       func() time.Time
}

func NewExportWorker(store Store, writer export.InvoiceWriter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleInvoiceSubmitted exports the invoice named by msg. Invoices already
// exported are acknowledged without writing a second row. A failed export is
// logged and acknowledged too; the row stays pending for ProcessPending.
func (w *ExportWorker) HandleInvoiceSubmitted(ctx context.Context, msg *amqp.InvoiceSubmittedMessage) error {
	tx, err := w.store.GetTransaction(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Invoice from message no longer exists", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get invoice %d: %w", msg.ID, err)
	}
	if !tx.IsInvoice() || !tx.ExportedAt.IsZero() {
		return nil
	}
	if err := w.exportOne(ctx, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to export invoice, leaving it for the pending run",
			"id", tx.ID, "error", err)
	}
	return nil
}

// ProcessPending exports invoices that were never exported, covering lost
// messages and submissions made while the broker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.ListUnexported(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unexported invoices: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending invoices", "count", len(pending))

	done := 0
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := w.exportOne(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export invoice", "id", tx.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// Run calls ProcessPending immediately and then every interval until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Pending export failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *ExportWorker) exportOne(ctx context.Context, tx core.Transaction) error {
	row, err := w.buildRow(ctx, tx)
	if err != nil {
		return err
	}

	ref, err := w.writer.AppendInvoice(ctx, row)
	if err != nil {
		return fmt.Errorf("append invoice %d: %w", tx.ID, err)
	}

	if err := w.store.MarkExported(ctx, tx.ID, w.now()); err != nil {
		return fmt.Errorf("mark invoice %d exported: %w", tx.ID, err)
	}

	slog.InfoContext(ctx, "Exported invoice", "id", tx.ID, "row_ref", ref)
	return nil
}

func (w *ExportWorker) buildRow(ctx context.Context, tx core.Transaction) (export.InvoiceRow, error) {
	box, err := w.store.GetCashBox(ctx, tx.CashBoxID)
	if err != nil {
		return export.InvoiceRow{}, fmt.Errorf("cash box of invoice %d: %w", tx.ID, err)
	}
	user, err := w.store.GetUser(ctx, tx.UserID)
	if err != nil {
		return export.InvoiceRow{}, fmt.Errorf("user of invoice %d: %w", tx.ID, err)
	}
	return export.InvoiceRow{
		ID:          tx.ID,
		Date:        tx.Date,
		CashBox:     box.Name,
		User:        user.DisplayName(),
		Description: tx.Description,
		Amount:      tx.Amount,
		File:        tx.File,
	}, nil
}
