package parser

import (
	"errors"
	"testing"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

func strPtr(s string) *string { return &s }

func TestAggregate(t *testing.T) {
	txns := []models.Transaction{
		{Date: "2024-01-09", Description: "Refund from Amazon", MoneyIn: strPtr("15.99"), Balance: "1,015.99"},
		{Date: "2024-01-03", Description: "Card Payment to Tesco", MoneyOut: strPtr("23.45"), Balance: "976.55"},
		{Date: "2024-01-09", Description: "Direct Debit to Gas", MoneyOut: strPtr("1,060.00"), Balance: "-44.01"},
		{Date: "2024-01-05", Description: "Salary", MoneyIn: strPtr("2,500.00"), Balance: "3,476.55"},
	}

	data, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"Card Payment to Tesco", "Salary", "Refund from Amazon", "Direct Debit to Gas"}
	for i, want := range wantOrder {
		if got := data.Transactions[i].Description; got != want {
			t.Errorf("[%d] got %q, want %q", i, got, want)
		}
	}
	if data.Metadata.TotalCredits != "2,515.99" {
		t.Errorf("total credits: got %q, want %q", data.Metadata.TotalCredits, "2,515.99")
	}
	if data.Metadata.TotalDebits != "1,083.45" {
		t.Errorf("total debits: got %q, want %q", data.Metadata.TotalDebits, "1,083.45")
	}

	// input order untouched
	if txns[0].Date != "2024-01-09" {
		t.Error("Aggregate reordered its input")
	}
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	if !errors.Is(err, ErrNoTransactionsFound) {
		t.Errorf("got %v, want ErrNoTransactionsFound", err)
	}
}
