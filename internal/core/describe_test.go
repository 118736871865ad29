package core

import "testing"

func TestDescribe(t *testing.T) {
	inv := Describe(Transaction{ID: 7, Kind: KindInvoice, Description: "Coffee", File: "invoice-2024-01-05-1.pdf", Amount: -1250})
	if inv.Description != "Coffee" || inv.File == "" {
		t.Fatalf("unexpected invoice view: %+v", inv)
	}
	flow := Describe(Transaction{ID: 8, Kind: KindCashFlow, Description: "ignored", Amount: 500})
	if flow.Description != CashFlowLabel || flow.File != "" {
		t.Fatalf("unexpected cash flow view: %+v", flow)
	}
}

func TestFilterDescribed(t *testing.T) {
	items := DescribeAll([]Transaction{
		{ID: 1, Kind: KindInvoice, Description: "Coffee beans"},
		{ID: 2, Kind: KindInvoice, Description: "Milk"},
		{ID: 3, Kind: KindCashFlow},
	})

	if got := FilterDescribed(items, ""); len(got) != 3 {
		t.Fatalf("empty search should keep all, got %d", len(got))
	}
	got := FilterDescribed(items, "COFFEE")
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected match: %+v", got)
	}
	got = FilterDescribed(items, "cash")
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("label search should match cash flow: %+v", got)
	}
}

func TestDescriptionDoesNotAffectBalance(t *testing.T) {
	box := CashBox{ID: 1}
	// A cash flow whose description happens to be set still does not count.
	txs := []Transaction{{Kind: KindCashFlow, UserID: 1, Date: NewDate(2024, 1, 1), Amount: -500, Description: "Coffee"}}
	if got := CashBoxBalance(box, txs, nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
