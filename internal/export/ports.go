// Package export copies submitted invoices to an external ledger.
package export

import (
	"context"

	"cashboxes/internal/core"
)

// InvoiceRow is one exported invoice, denormalized for spreadsheet readers.
type InvoiceRow struct {
	ID          int64
	Date        core.Date
	CashBox     string
	User        string
	Description string
	Amount      core.Euro
	File        string
}

// InvoiceWriter appends invoices to the external ledger and returns a
// reference to the written row.
type InvoiceWriter interface {
	AppendInvoice(ctx context.Context, row InvoiceRow) (rowRef string, err error)
}
