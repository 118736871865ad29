package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashboxes/internal/amqp"
	"cashboxes/internal/core"
	"cashboxes/internal/export"
	"cashboxes/internal/storage/memory"
)

type fakeWriter struct {
	rows []export.InvoiceRow
	err  error
}

func (f *fakeWriter) AppendInvoice(_ context.Context, row export.InvoiceRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, row)
	return "Invoices!A1:G1", nil
}

func seedInvoice(t *testing.T, store *memory.Store) core.Transaction {
	t.Helper()
	ctx := context.Background()
	box, err := store.CreateCashBox(ctx, core.CashBox{Name: "Kitchen"})
	require.NoError(t, err)
	user, err := store.CreateUser(ctx, core.User{Username: "alice", FullName: "Alice Rossi", Active: true})
	require.NoError(t, err)
	tx, err := store.CreateTransaction(ctx, core.Transaction{
		Kind: core.KindInvoice, UserID: user.ID, CashBoxID: box.ID,
		Date: core.NewDate(2024, 1, 5), Amount: -1250, Description: "Coffee",
		File: "invoice-2024-01-05-1.pdf",
	})
	require.NoError(t, err)
	return tx
}

func TestHandleInvoiceSubmitted(t *testing.T) {
	store := memory.New()
	tx := seedInvoice(t, store)
	writer := &fakeWriter{}
	w := NewExportWorker(store, writer, 0)

	require.NoError(t, w.HandleInvoiceSubmitted(context.Background(), amqp.NewInvoiceSubmittedMessage(tx.ID)))
	require.Len(t, writer.rows, 1)
	assert.Equal(t, "Kitchen", writer.rows[0].CashBox)
	assert.Equal(t, "Alice Rossi", writer.rows[0].User)
	assert.Equal(t, core.Euro(-1250), writer.rows[0].Amount)

	// A redelivered message does not duplicate the row.
	require.NoError(t, w.HandleInvoiceSubmitted(context.Background(), amqp.NewInvoiceSubmittedMessage(tx.ID)))
	assert.Len(t, writer.rows, 1)

	// Unknown ids are acknowledged.
	assert.NoError(t, w.HandleInvoiceSubmitted(context.Background(), amqp.NewInvoiceSubmittedMessage(999)))
}

func TestHandleInvoiceSubmittedWriterError(t *testing.T) {
	store := memory.New()
	tx := seedInvoice(t, store)
	writer := &fakeWriter{err: errors.New("quota exceeded")}
	w := NewExportWorker(store, writer, 10)

	err := w.HandleInvoiceSubmitted(context.Background(), amqp.NewInvoiceSubmittedMessage(tx.ID))
	require.NoError(t, err, "a failed export is acknowledged, not requeued")

	pending, err := store.ListUnexported(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed export must stay pending")

	writer.err = nil
	n, err := w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the pending run picks the invoice up")
}

func TestProcessPending(t *testing.T) {
	store := memory.New()
	seedInvoice(t, store)
	writer := &fakeWriter{}
	w := NewExportWorker(store, writer, 10)
	w.now = func() time.Time { return time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC) }

	n, err := w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, writer.rows, 1)
}
