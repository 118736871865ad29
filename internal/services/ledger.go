package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"cashboxes/internal/cache"
	"cashboxes/internal/core"
	"cashboxes/internal/ports"
)

// LedgerStore is the storage surface the ledger reads from.
type LedgerStore interface {
	ports.CashBoxStore
	ports.TransactionStore
	ports.UserDirectory
}

type (
	// BoxBalance pairs a cash box with one of its balances.
	BoxBalance struct {
		Box     core.CashBox
		Balance core.Euro
	}

	// UserOverview lists a user's balance in every cash box.
	UserOverview struct {
		User     core.User
		Boxes    []BoxBalance
		Total    core.Euro
		Absolute core.Euro
	}

	InvoiceList struct {
		Box      core.CashBox
		Balance  core.Euro
		Search   string
		Invoices []core.DescribedTransaction
	}

	UserTransactions struct {
		Box          core.CashBox
		User         core.User
		Balance      core.Euro
		Absolute     core.Euro
		Search       string
		Transactions []core.DescribedTransaction
	}

	MatrixRow struct {
		User     core.User
		Balances []core.Euro
		Total    core.Euro
	}

	// BalanceMatrix holds the balance of every active user in every cash box.
	BalanceMatrix struct {
		Boxes []core.CashBox
		Rows  []MatrixRow
	}
)

// Ledger computes balances and listings on top of the entity store.
type Ledger struct {
	store    LedgerStore
	balances cache.Cache[core.Euro]
}

// NewLedger creates a ledger. balances may be nil to disable caching of
// cash box balances.
func NewLedger(store LedgerStore, balances cache.Cache[core.Euro]) *Ledger {
	return &Ledger{store: store, balances: balances}
}

// CashBoxBalance returns the balance of the named box as of asOf (nil for all time).
func (l *Ledger) CashBoxBalance(ctx context.Context, name string, asOf *core.Date) (core.Euro, error) {
	box, err := l.store.GetCashBoxByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return l.boxBalance(ctx, box, asOf)
}

func (l *Ledger) boxBalance(ctx context.Context, box core.CashBox, asOf *core.Date) (core.Euro, error) {
	key := balanceKey(box.ID, asOf)
	if l.balances != nil {
		if v, ok := l.balances.Get(key); ok {
			return v, nil
		}
	}

	txs, err := l.store.ListTransactions(ctx, ports.TransactionFilter{
		CashBoxID: box.ID,
		Kind:      core.KindInvoice,
		Until:     asOf,
	})
	if err != nil {
		return 0, fmt.Errorf("cash box %q balance: %w", box.Name, err)
	}
	balance := core.CashBoxBalance(box, txs, asOf)

	if l.balances != nil {
		l.balances.Set(key, balance)
	}
	return balance, nil
}

// Invalidate drops cached balances of the cash box.
func (l *Ledger) Invalidate(boxID int64) {
	if l.balances == nil {
		return
	}
	l.balances.DeletePrefix(balanceKeyPrefix(boxID))
}

// UserBalance returns the user's balance in the named box.
func (l *Ledger) UserBalance(ctx context.Context, name string, userID int64, asOf *core.Date) (core.Euro, error) {
	box, err := l.store.GetCashBoxByName(ctx, name)
	if err != nil {
		return 0, err
	}
	txs, err := l.store.ListTransactions(ctx, ports.TransactionFilter{
		CashBoxID: box.ID,
		UserID:    userID,
		Until:     asOf,
	})
	if err != nil {
		return 0, fmt.Errorf("user balance in %q: %w", name, err)
	}
	return core.UserBalance(txs, userID, asOf), nil
}

// TotalUserBalance sums the user's balances over every cash box.
func (l *Ledger) TotalUserBalance(ctx context.Context, userID int64, asOf *core.Date) (core.Euro, error) {
	overview, err := l.perBox(ctx, userID, asOf)
	if err != nil {
		return 0, err
	}
	balances := make([]core.Euro, 0, len(overview))
	for _, b := range overview {
		balances = append(balances, b.Balance)
	}
	return core.TotalUserBalance(balances...), nil
}

// Overview returns the user's balance in every cash box and the total.
func (l *Ledger) Overview(ctx context.Context, user core.User) (UserOverview, error) {
	boxes, err := l.perBox(ctx, user.ID, nil)
	if err != nil {
		return UserOverview{}, err
	}
	out := UserOverview{User: user, Boxes: boxes}
	for _, b := range boxes {
		out.Total += b.Balance
	}
	out.Absolute = out.Total.Abs()
	return out, nil
}

func (l *Ledger) perBox(ctx context.Context, userID int64, asOf *core.Date) ([]BoxBalance, error) {
	boxes, err := l.store.ListCashBoxes(ctx, "")
	if err != nil {
		return nil, err
	}
	txs, err := l.store.ListTransactions(ctx, ports.TransactionFilter{UserID: userID, Until: asOf})
	if err != nil {
		return nil, fmt.Errorf("user %d transactions: %w", userID, err)
	}
	byBox := groupByBox(txs)

	out := make([]BoxBalance, 0, len(boxes))
	for _, box := range boxes {
		out = append(out, BoxBalance{
			Box:     box,
			Balance: core.UserBalance(byBox[box.ID], userID, asOf),
		})
	}
	return out, nil
}

// CashBoxes lists boxes whose name contains search with their current balance.
func (l *Ledger) CashBoxes(ctx context.Context, search string) ([]BoxBalance, error) {
	boxes, err := l.store.ListCashBoxes(ctx, search)
	if err != nil {
		return nil, err
	}
	out := make([]BoxBalance, 0, len(boxes))
	for _, box := range boxes {
		balance, err := l.boxBalance(ctx, box, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, BoxBalance{Box: box, Balance: balance})
	}
	return out, nil
}

// ListInvoices returns the invoices of the named box whose description contains search.
func (l *Ledger) ListInvoices(ctx context.Context, name, search string) (InvoiceList, error) {
	box, err := l.store.GetCashBoxByName(ctx, name)
	if err != nil {
		return InvoiceList{}, err
	}
	balance, err := l.boxBalance(ctx, box, nil)
	if err != nil {
		return InvoiceList{}, err
	}
	txs, err := l.store.ListTransactions(ctx, ports.TransactionFilter{
		CashBoxID: box.ID,
		Kind:      core.KindInvoice,
		Search:    search,
	})
	if err != nil {
		return InvoiceList{}, fmt.Errorf("list invoices of %q: %w", name, err)
	}
	return InvoiceList{
		Box:      box,
		Balance:  balance,
		Search:   search,
		Invoices: core.DescribeAll(txs),
	}, nil
}

// ListUserTransactions returns every transaction of user in the named box,
// filtered by search over descriptions and the cash-flow label.
func (l *Ledger) ListUserTransactions(ctx context.Context, name string, user core.User, search string) (UserTransactions, error) {
	box, err := l.store.GetCashBoxByName(ctx, name)
	if err != nil {
		return UserTransactions{}, err
	}
	txs, err := l.store.ListTransactions(ctx, ports.TransactionFilter{CashBoxID: box.ID, UserID: user.ID})
	if err != nil {
		return UserTransactions{}, fmt.Errorf("list transactions of %q: %w", name, err)
	}
	balance := core.UserBalance(txs, user.ID, nil)
	return UserTransactions{
		Box:          box,
		User:         user,
		Balance:      balance,
		Absolute:     balance.Abs(),
		Search:       search,
		Transactions: core.FilterDescribed(core.DescribeAll(txs), search),
	}, nil
}

// Matrix returns the balance of every active user in every cash box.
func (l *Ledger) Matrix(ctx context.Context) (BalanceMatrix, error) {
	boxes, err := l.store.ListCashBoxes(ctx, "")
	if err != nil {
		return BalanceMatrix{}, err
	}
	users, err := l.store.ListUsers(ctx)
	if err != nil {
		return BalanceMatrix{}, err
	}
	txs, err := l.store.ListTransactions(ctx, ports.TransactionFilter{})
	if err != nil {
		return BalanceMatrix{}, fmt.Errorf("list transactions: %w", err)
	}
	byBox := groupByBox(txs)

	m := BalanceMatrix{Boxes: boxes}
	for _, u := range users {
		if !u.Active {
			continue
		}
		row := MatrixRow{User: u, Balances: make([]core.Euro, 0, len(boxes))}
		for _, box := range boxes {
			b := core.UserBalance(byBox[box.ID], u.ID, nil)
			row.Balances = append(row.Balances, b)
		}
		row.Total = core.TotalUserBalance(row.Balances...)
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// CreateCashBox registers a new cash box.
func (l *Ledger) CreateCashBox(ctx context.Context, name string, initial core.Euro) (core.CashBox, error) {
	box, err := l.store.CreateCashBox(ctx, core.CashBox{Name: name, InitialAmount: initial})
	if err != nil {
		return core.CashBox{}, err
	}
	slog.InfoContext(ctx, "Cash box created", "cash_box", box.Name, "initial_amount", box.InitialAmount.String())
	return box, nil
}

// RecordCashFlow stores a generic transaction of user in the named box. Amounts
// follow the invoice sign: negative is money the user paid in, positive is
// money the user took out.
func (l *Ledger) RecordCashFlow(ctx context.Context, name string, user core.User, amount core.Euro, date core.Date) (core.Transaction, error) {
	box, err := l.store.GetCashBoxByName(ctx, name)
	if err != nil {
		return core.Transaction{}, err
	}
	if !user.Active {
		return core.Transaction{}, core.ErrInactiveUser
	}
	tx, err := l.store.CreateTransaction(ctx, core.Transaction{
		Kind:      core.KindCashFlow,
		UserID:    user.ID,
		CashBoxID: box.ID,
		Date:      date,
		Amount:    amount,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record cash flow: %w", err)
	}
	slog.InfoContext(ctx, "Cash flow recorded",
		"cash_box", box.Name,
		"user", user.Username,
		"amount", amount.String(),
		"date", date.String())
	return tx, nil
}

func groupByBox(txs []core.Transaction) map[int64][]core.Transaction {
	out := make(map[int64][]core.Transaction)
	for _, tx := range txs {
		out[tx.CashBoxID] = append(out[tx.CashBoxID], tx)
	}
	return out
}

func balanceKeyPrefix(boxID int64) string {
	return "box:" + strconv.FormatInt(boxID, 10) + ":"
}

func balanceKey(boxID int64, asOf *core.Date) string {
	if asOf == nil {
		return balanceKeyPrefix(boxID) + "all"
	}
	return balanceKeyPrefix(boxID) + asOf.String()
}
