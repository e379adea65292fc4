package parser

import (
	"regexp"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// barclaysRules extends the generic rules for Barclays statements.
//
// Barclays statements come in two main layouts:
//
// Standard: Date | Description | Money out | Money in | Balance
//
//	Date format: DD/MM/YYYY or DD Mon YYYY
//	Example: "15/01/2024  CARD PAYMENT TO TESCO STORES 2602  25.99  1,234.56"
//
// Business: uses → as column separator and short dates "D Mon"
//
//	Example: "5 Dec → Direct Debit to Stripe → 58.80 → 9,397.88"
//
// Foreign currency postings are followed by detail lines such as
// "19.49 On 08 Dec at VISA Exchange Rate 1.33" which carry a date and an
// amount but are not separate transactions.
func barclaysRules() *RuleSet {
	footer := phrasePattern(
		"barclays bank", "please check", "if you find",
		"at a glance", "your deposit is eligible", "compensation scheme",
		"your business current account", "issued on", "swiftbic",
		"iban gb", "anything wrong",
	)
	fxDetail := phrasePattern(
		"exchange rate",
		"non-sterling transaction fee",
		"final gbp amount",
	)
	rs := DefaultRules().With(string(models.BankBarclays),
		[]*regexp.Regexp{footer, fxDetail},
		keywordRules(DirectionIn,
			`direct credit`, `credit from`, `\bbacs\b`, `interest paid`,
		),
		nil,
	)
	rs.OpeningBalance = regexp.MustCompile(`(?i)\b(?:start balance|opening balance|brought forward)\b`)
	rs.NumericDates = true
	rs.SplitCompletedCandidates = true
	return rs
}
