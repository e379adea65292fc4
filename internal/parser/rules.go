package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction of a ledger amount relative to the account.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
)

func (d Direction) String() string {
	if d == DirectionIn {
		return "in"
	}
	return "out"
}

// RuleKind selects how a DirectionRule decides whether it applies.
type RuleKind int

const (
	// RuleKeyword applies when Pattern matches the candidate text.
	RuleKeyword RuleKind = iota
	// RuleBalanceIncrease applies when the new balance is strictly greater
	// than the running balance.
	RuleBalanceIncrease
	// RuleDefault always applies.
	RuleDefault
)

// DirectionRule is one row of the ordered classification table.
type DirectionRule struct {
	Name    string
	Kind    RuleKind
	Pattern *regexp.Regexp
	Verdict Direction
}

func (r DirectionRule) applies(text string, prev, next decimal.Decimal) bool {
	switch r.Kind {
	case RuleKeyword:
		return r.Pattern != nil && r.Pattern.MatchString(text)
	case RuleBalanceIncrease:
		return next.GreaterThan(prev)
	default:
		return true
	}
}

// RuleSet holds every pattern table the pipeline consults. Build one with
// DefaultRules or RulesFor (or fill the fields and call Build); a built rule
// set is never modified again and may be shared between goroutines.
type RuleSet struct {
	Name string

	SkipPatterns        []*regexp.Regexp
	PageMarkers         []*regexp.Regexp
	TransactionKeywords []string
	TypePhrases         []string
	TypeAbbreviations   map[string]string
	NoiseWords          []string
	DirectionRules      []DirectionRule
	// OpeningBalance marks a line that seeds the running balance when it
	// appears before the first dated line.
	OpeningBalance *regexp.Regexp

	// NumericDates also accepts DD/MM/YYYY as a date token.
	NumericDates bool
	// SplitCompletedCandidates starts a new candidate, anchored on the last
	// date, when an amount line reaches a buffer that already holds an
	// amount and a balance.
	SplitCompletedCandidates bool

	typePhrase *regexp.Regexp
	abbrev     *regexp.Regexp
	noise      map[string]bool
	keywords   []string
}

// Build returns a compiled copy of r. Slices are copied so later changes to
// r do not leak into the returned rule set.
func (r RuleSet) Build() *RuleSet {
	out := r
	out.SkipPatterns = append([]*regexp.Regexp(nil), r.SkipPatterns...)
	out.PageMarkers = append([]*regexp.Regexp(nil), r.PageMarkers...)
	out.TransactionKeywords = append([]string(nil), r.TransactionKeywords...)
	out.TypePhrases = append([]string(nil), r.TypePhrases...)
	out.NoiseWords = append([]string(nil), r.NoiseWords...)
	out.DirectionRules = append([]DirectionRule(nil), r.DirectionRules...)
	out.TypeAbbreviations = make(map[string]string, len(r.TypeAbbreviations))
	for k, v := range r.TypeAbbreviations {
		out.TypeAbbreviations[strings.ToUpper(k)] = v
	}

	out.keywords = make([]string, len(r.TransactionKeywords))
	for i, kw := range r.TransactionKeywords {
		out.keywords[i] = strings.ToLower(kw)
	}

	out.noise = make(map[string]bool, len(r.NoiseWords))
	for _, w := range r.NoiseWords {
		out.noise[strings.ToLower(w)] = true
	}

	if len(r.TypePhrases) > 0 {
		// Longest phrase first so "Card Payment" wins over "Payment".
		phrases := append([]string(nil), r.TypePhrases...)
		sort.SliceStable(phrases, func(i, j int) bool { return len(phrases[i]) > len(phrases[j]) })
		out.typePhrase = regexp.MustCompile(`(?i)^(` + quoteAll(phrases) + `)\b(?:\s+(to|from)\b)?\s*`)
	}
	if len(out.TypeAbbreviations) > 0 {
		keys := make([]string, 0, len(out.TypeAbbreviations))
		for k := range out.TypeAbbreviations {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if len(keys[i]) != len(keys[j]) {
				return len(keys[i]) > len(keys[j])
			}
			return keys[i] < keys[j]
		})
		out.abbrev = regexp.MustCompile(`^(` + quoteAll(keys) + `)\b`)
	}
	return &out
}

// shouldSkip reports whether a line is boilerplate.
func (r *RuleSet) shouldSkip(line string) bool {
	for _, p := range r.SkipPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// hasKeyword reports whether a line names a known transaction type.
func (r *RuleSet) hasKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (r *RuleSet) isNoise(word string) bool {
	return r.noise[strings.ToLower(word)]
}

// With returns a built copy of r with extra skip patterns and keyword rules
// appended. Money-in rules are inserted ahead of the balance-increase rule,
// money-out rules ahead of the default.
func (r *RuleSet) With(name string, skip []*regexp.Regexp, in, out []DirectionRule) *RuleSet {
	next := *r
	next.Name = name
	next.SkipPatterns = append(append([]*regexp.Regexp(nil), r.SkipPatterns...), skip...)

	var rules []DirectionRule
	for i, rule := range r.DirectionRules {
		switch rule.Kind {
		case RuleBalanceIncrease:
			rules = append(rules, in...)
			in = nil
		case RuleDefault:
			rules = append(rules, out...)
			out = nil
		}
		rules = append(rules, r.DirectionRules[i])
	}
	rules = append(rules, in...)
	next.DirectionRules = append(rules, out...)
	return next.Build()
}

func quoteAll(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// phrasePattern compiles a case-insensitive "contains any of" pattern.
func phrasePattern(phrases ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + quoteAll(phrases) + `)`)
}

func keywordRules(verdict Direction, patterns ...string) []DirectionRule {
	rules := make([]DirectionRule, len(patterns))
	for i, p := range patterns {
		rules[i] = DirectionRule{
			Name:    p,
			Kind:    RuleKeyword,
			Pattern: regexp.MustCompile(`(?i)` + p),
			Verdict: verdict,
		}
	}
	return rules
}

var moneyInPatterns = []string{
	`(?:refund|credit|deposit|reversal|cashback|repayment)\s+(?:from|by|rcvd|received)`,
	`(?:transfer|payment|bgc|receipt|faster payment)\s+(?:from|by|rcvd|received)`,
	`(?:salary|wages|pension)\s+payment`,
	`(?:tax|vat|hmrc)\s+refund`,
	`(?:credit|payment)\s+received`,
	`^refund`,
	`^credit`,
	`^deposit`,
	`^salary`,
	`^pension`,
	`^reversal`,
	`^receipt`,
	`^bgc`,
	`^fpi`,
	`\bcredit\b`,
	`\brefund\b`,
	`\bdeposit\b`,
}

var moneyOutPatterns = []string{
	`^(?:card\s+(?:payment|purchase)|direct\s+debit|standing\s+order|withdrawal|purchase|bill\s+payment|atm)`,
	`(?:transfer|payment)\s+(?:to|for|at)`,
	`(?:debit|bill|fee|charge)`,
	`(?:card|purchase|payment)\s+(?:to|at|for)`,
	`(?:direct\s+debit|dd)\s+(?:to|for)`,
	`^commission`,
	`^fpo`,
	`^chaps`,
	`\bwithdrawal\b`,
	`\bpurchase\b`,
}

// defaultDirectionRules is money-in keywords, then the balance heuristic,
// then money-out keywords, then money-out.
func defaultDirectionRules() []DirectionRule {
	rules := keywordRules(DirectionIn, moneyInPatterns...)
	rules = append(rules, DirectionRule{Name: "balance-increase", Kind: RuleBalanceIncrease, Verdict: DirectionIn})
	rules = append(rules, keywordRules(DirectionOut, moneyOutPatterns...)...)
	return append(rules, DirectionRule{Name: "default", Kind: RuleDefault, Verdict: DirectionOut})
}

// DefaultRules returns the generic rule set used when the bank is unknown.
func DefaultRules() *RuleSet {
	return RuleSet{
		Name: "generic",
		SkipPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)page\s+\d+\s+of\s+\d+`),
			regexp.MustCompile(`(?i)balance brought forward from previous page`),
			regexp.MustCompile(`(?i)continued`),
			regexp.MustCompile(`(?i)sort code`),
			regexp.MustCompile(`(?i)^date\b.*\b(?:balance|money|paid|amount)\b`),
			phrasePattern(
				"authorised by", "regulated by", "financial conduct",
				"prudential regulation", "register no", "registered in",
				"important information", "terms and conditions",
				"total paid in", "total paid out", "total payments", "total receipts",
			),
			regexp.MustCompile(`^\s*$`),
			regexp.MustCompile(`^[-=_ ]+$`),
		},
		PageMarkers: []*regexp.Regexp{
			regexp.MustCompile(`(?i)page\s+\d+\s+of\s+\d+`),
			regexp.MustCompile(`(?i)continued\s+page`),
			regexp.MustCompile(`(?i)balance\s+brought\s+forward`),
		},
		TransactionKeywords: []string{
			"Card Payment", "Card Purchase", "Direct Debit", "Direct Credit",
			"Internet Banking", "On-Line Banking", "Commission", "Balance",
			"ASD Deposit", "Refund",
		},
		TypePhrases: []string{
			"Direct Debit", "Card Payment", "Card Purchase", "On-line Bill Payment",
			"On-line Bill", "Standing Order", "Faster Payment", "Refund", "Transfer", "Payment",
		},
		TypeAbbreviations: map[string]string{
			"DD": "Direct Debit", "SO": "Standing Order", "BP": "Bill Payment",
			"FP": "Faster Payment", "TFR": "Transfer", "CR": "Credit",
			"DR": "Debit", "INT": "Interest", "FEE": "Fee", "CHG": "Charge",
			"REF": "Refund", "SAL": "Salary", "PEN": "Pension", "DIV": "Dividend",
			"ATM": "ATM Withdrawal", "CSH": "Cash", "CHQ": "Cheque",
			"BGC": "Bank Giro Credit", "FPI": "Faster Payment In",
			"FPO": "Faster Payment Out", "CHP": "CHAPS Payment",
		},
		NoiseWords: []string{
			"on", "at", "to", "from", "via", "by", "ref", "reference", "banking",
			"bill", "transfer", "payment", "card", "purchase", "direct", "debit",
			"standing", "order", "faster", "online", "internet", "mobile",
			"contactless", "account", "transaction", "charges", "fee", "period",
			"statement", "balance", "forward", "brought", "carried", "issued",
		},
		DirectionRules: defaultDirectionRules(),
		OpeningBalance: regexp.MustCompile(`(?i)\b(?:opening balance|brought forward)\b`),
	}.Build()
}
