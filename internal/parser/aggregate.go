package parser

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Aggregate orders the ledger by date and computes the credit and debit totals.
func Aggregate(txns []models.Transaction) (*models.ExtractedData, error) {
	if len(txns) == 0 {
		return nil, ErrNoTransactionsFound
	}

	ledger := make([]models.Transaction, len(txns))
	copy(ledger, txns)
	sort.SliceStable(ledger, func(i, j int) bool {
		return ledger[i].Date < ledger[j].Date
	})

	credits, debits := decimal.Zero, decimal.Zero
	for _, txn := range ledger {
		if txn.MoneyIn != nil {
			credits = credits.Add(mustAmount(*txn.MoneyIn))
		}
		if txn.MoneyOut != nil {
			debits = debits.Add(mustAmount(*txn.MoneyOut))
		}
	}

	return &models.ExtractedData{
		Transactions: ledger,
		Metadata: models.StatementSummary{
			TotalCredits: formatMoney(credits),
			TotalDebits:  formatMoney(debits),
		},
	}, nil
}

// mustAmount parses an amount the pipeline formatted itself.
func mustAmount(s string) decimal.Decimal {
	d, err := parseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
