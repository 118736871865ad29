package ports

import (
	"context"
	"time"

	"cashboxes/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
// Search restricts the result to invoices whose description contains the
// term, ignoring case.
type TransactionFilter struct {
	CashBoxID int64
	UserID    int64
	Until     *core.Date
	Kind      core.TransactionKind
	Search    string
}

// Ports for the persisted entity store and the identity provider.
type (
	CashBoxStore interface {
		CreateCashBox(ctx context.Context, box core.CashBox) (core.CashBox, error)
		GetCashBox(ctx context.Context, id int64) (core.CashBox, error)
		// GetCashBoxByName returns core.ErrNotFound for unknown names.
		GetCashBoxByName(ctx context.Context, name string) (core.CashBox, error)
		// ListCashBoxes returns boxes whose name contains search, ignoring case.
		ListCashBoxes(ctx context.Context, search string) ([]core.CashBox, error)
	}

	TransactionStore interface {
		// CreateTransaction stores a transaction of any kind. Invoices get
		// their specialization row in the same database transaction.
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// ListTransactions returns matches ordered by date, then id.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	// ExportTracker keeps track of invoices copied to the external ledger sheet.
	ExportTracker interface {
		ListUnexported(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkExported(ctx context.Context, id int64, at time.Time) error
	}

	UserDirectory interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	Store interface {
		CashBoxStore
		TransactionStore
		ExportTracker
		UserDirectory
		Ping(ctx context.Context) error
		Close() error
	}
)
