package parser

import (
	"regexp"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// metroRules extends the generic rules for Metro Bank statements.
//
// Metro Bank transaction lines look like:
//
//	DATE  DESCRIPTION  [PAID_OUT]  [PAID_IN]  BALANCE
//
// with DD/MM/YYYY dates. An "Opening balance" line precedes the table.
func metroRules() *RuleSet {
	rs := DefaultRules().With(string(models.BankMetro),
		[]*regexp.Regexp{
			phrasePattern("metro bank plc", "metrobankonline", "statement period", "account statement"),
		},
		keywordRules(DirectionIn, `bank credit`, `\binward payment\b`),
		keywordRules(DirectionOut, `\bpos\b`, `\boutward payment\b`),
	)
	rs.NumericDates = true
	rs.SplitCompletedCandidates = true
	return rs
}
