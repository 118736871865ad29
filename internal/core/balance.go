package core

// CashBoxBalance returns the money that should be in the cash box once every
// claim is paid: the initial amount plus every invoice dated on or before asOf. Cash-flow
// transactions move money between users and the box and leave the total
// unchanged. A nil asOf includes every transaction.
func CashBoxBalance(box CashBox, txs []Transaction, asOf *Date) Euro {
	cash := box.InitialAmount
	for _, tx := range txs {
		if !tx.Date.OnOrBefore(asOf) {
			continue
		}
		switch tx.Kind {
		case KindInvoice:
			cash += tx.Amount
		case KindCashFlow:
		}
	}
	return cash
}

// UserBalance returns the negated sum of the user's transactions in the box.
// An invoice (stored negative) raises it: a positive balance is money the
// cash box still owes the user, a negative one is money the user owes the box.
// Every transaction kind counts.
func UserBalance(txs []Transaction, userID int64, asOf *Date) Euro {
	var cash Euro
	for _, tx := range txs {
		if tx.UserID != userID || !tx.Date.OnOrBefore(asOf) {
			continue
		}
		cash -= tx.Amount
	}
	return cash
}

// TotalUserBalance sums a user's balances across cash boxes.
func TotalUserBalance(balances ...Euro) Euro {
	var total Euro
	for _, b := range balances {
		total += b
	}
	return total
}
