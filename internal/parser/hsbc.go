package parser

import (
	"regexp"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// hsbcRules extends the generic rules for HSBC statements.
//
// HSBC statements typically have this layout:
//
//	Date | Payment type and details | Paid out | Paid in | Balance
//
// Date format: DD Mon YY (e.g., 15 Jan 24) or DD Mon YYYY. Several postings
// on one day share a single printed date, and the details column opens with
// a short payment-type code (VIS, DD, CR, ...).
func hsbcRules() *RuleSet {
	base := *DefaultRules()
	for code, name := range map[string]string{
		"VIS": "Card Payment",
		"DDR": "Direct Debit",
		"OBP": "Online Bill Payment",
		"TFR": "Transfer",
		"ATM": "ATM Withdrawal",
	} {
		base.TypeAbbreviations[code] = name
	}

	rs := base.With(string(models.BankHSBC),
		[]*regexp.Regexp{
			phrasePattern("hsbc uk bank", "hsbc.co.uk", "your statement", "account summary"),
		},
		keywordRules(DirectionIn, `^cr\b`),
		keywordRules(DirectionOut, `^(?:vis|ddr|obp)\b`),
	)
	rs.NumericDates = true
	rs.SplitCompletedCandidates = true
	return rs
}
