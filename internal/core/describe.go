package core

import "strings"

// CashFlowLabel describes transactions that carry no description of their own.
const CashFlowLabel = "Cash flow"

// DescribedTransaction is the uniform listing view of any transaction kind.
type DescribedTransaction struct {
	ID          int64
	Kind        TransactionKind
	Date        Date
	Amount      Euro
	UserID      int64
	Description string
	File        string
}

// Describe builds the listing view of tx. Invoices keep their description,
// cash-flow entries get CashFlowLabel.
func Describe(tx Transaction) DescribedTransaction {
	d := DescribedTransaction{
		ID:     tx.ID,
		Kind:   tx.Kind,
		Date:   tx.Date,
		Amount: tx.Amount,
		UserID: tx.UserID,
	}
	if tx.Kind == KindInvoice {
		d.Description = tx.Description
		d.File = tx.File
	} else {
		d.Description = CashFlowLabel
	}
	return d
}

// DescribeAll describes every transaction, keeping order.
func DescribeAll(txs []Transaction) []DescribedTransaction {
	out := make([]DescribedTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Describe(tx))
	}
	return out
}

// Matches reports whether the description contains search, ignoring case.
// An empty search matches everything.
func (d DescribedTransaction) Matches(search string) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Description), strings.ToLower(search))
}

// FilterDescribed keeps the entries matching search.
func FilterDescribed(items []DescribedTransaction, search string) []DescribedTransaction {
	if strings.TrimSpace(search) == "" {
		return items
	}
	out := make([]DescribedTransaction, 0, len(items))
	for _, it := range items {
		if it.Matches(search) {
			out = append(out, it)
		}
	}
	return out
}
