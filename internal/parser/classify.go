package parser

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// VerdictKind is what the classifier decided to do with a candidate.
type VerdictKind int

const (
	// VerdictDiscard means the candidate carried no amount.
	VerdictDiscard VerdictKind = iota
	// VerdictBalance means the candidate only restated the balance.
	VerdictBalance
	// VerdictTransaction means the candidate is a ledger row.
	VerdictTransaction
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictBalance:
		return "balance"
	case VerdictTransaction:
		return "transaction"
	default:
		return "discard"
	}
}

// Verdict is the classifier's decision for one candidate.
type Verdict struct {
	Kind      VerdictKind
	Direction Direction
	Rule      string // name of the direction rule that fired
	Amount    decimal.Decimal
	Balance   decimal.Decimal
}

// Transaction builds the ledger row for a VerdictTransaction.
func (v Verdict) Transaction(date, description string) models.Transaction {
	amount := formatMoney(v.Amount)
	txn := models.Transaction{
		Date:        date,
		Description: description,
		Balance:     formatMoney(v.Balance),
	}
	if v.Direction == DirectionIn {
		txn.MoneyIn = &amount
	} else {
		txn.MoneyOut = &amount
	}
	return txn
}

// RunningState is carried from candidate to candidate within one statement.
type RunningState struct {
	LastDate string
	Balance  decimal.Decimal
}

// Classifier decides the direction of each candidate against the running
// balance. One Classifier serves exactly one statement.
type Classifier struct {
	rules *RuleSet
	state RunningState
}

// NewClassifier starts a classifier at the given opening balance.
func NewClassifier(rules *RuleSet, opening decimal.Decimal) *Classifier {
	return &Classifier{rules: rules, state: RunningState{Balance: opening}}
}

// State returns the current running state.
func (c *Classifier) State() RunningState {
	return c.state
}

// Classify consumes one candidate's fields and updates the running balance.
func (c *Classifier) Classify(f Fields) Verdict {
	c.state.LastDate = f.DateText

	switch n := len(f.Amounts); {
	case n == 0:
		return Verdict{Kind: VerdictDiscard}
	case n == 1:
		c.state.Balance = f.Amounts[0]
		return Verdict{Kind: VerdictBalance, Balance: f.Amounts[0]}
	default:
		v := Verdict{
			Kind:    VerdictTransaction,
			Amount:  f.Amounts[n-2],
			Balance: f.Amounts[n-1],
		}
		v.Direction, v.Rule = c.direction(f.Subject, v.Balance)
		c.state.Balance = v.Balance
		return v
	}
}

func (c *Classifier) direction(text string, next decimal.Decimal) (Direction, string) {
	for _, rule := range c.rules.DirectionRules {
		if rule.applies(text, c.state.Balance, next) {
			return rule.Verdict, rule.Name
		}
	}
	return DirectionOut, "default"
}
