package parser

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// RulesFor returns the rule preset for a bank. An empty bank type selects
// the generic rules.
func RulesFor(bankType models.BankType) (*RuleSet, error) {
	switch bankType {
	case models.BankGeneric, "":
		return DefaultRules(), nil
	case models.BankMetro:
		return metroRules(), nil
	case models.BankHSBC:
		return hsbcRules(), nil
	case models.BankBarclays:
		return barclaysRules(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBank, bankType)
	}
}

// ParseBank maps a user-supplied bank name to a preset. Empty input means
// auto-detect and returns "".
func ParseBank(name string) (models.BankType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return "", nil
	case "metro", "metrobank":
		return models.BankMetro, nil
	case "hsbc":
		return models.BankHSBC, nil
	case "barclays":
		return models.BankBarclays, nil
	case "generic":
		return models.BankGeneric, nil
	default:
		return "", fmt.Errorf("%w: %q (use metro, hsbc, barclays or generic)", ErrUnsupportedBank, name)
	}
}

// BankName returns the human-readable bank name.
func BankName(bankType models.BankType) string {
	switch bankType {
	case models.BankMetro:
		return "Metro Bank"
	case models.BankHSBC:
		return "HSBC"
	case models.BankBarclays:
		return "Barclays"
	default:
		return "Generic"
	}
}

// AutoDetect tries to identify the bank from the statement text. Statements
// from banks without a preset use the generic rules.
func AutoDetect(text string) models.BankType {
	switch {
	case containsAny(text, "Metro Bank", "metrobankonline"):
		return models.BankMetro
	case containsAny(text, "HSBC", "hsbc.co.uk"):
		return models.BankHSBC
	case containsAny(text, "Barclays", "barclays.co.uk"):
		return models.BankBarclays
	default:
		return models.BankGeneric
	}
}

func containsAny(text string, needles ...string) bool {
	lower := strings.ToLower(text)
	for _, needle := range needles {
		if strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-candidate and summary logging.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithClock sets the clock that supplies the year for dates printed without one.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithDebug records what happened to every line in StatementInfo.DebugLines.
func WithDebug(debug bool) Option {
	return func(p *Pipeline) { p.debug = debug }
}

// Pipeline turns statement text into a ledger. It holds no per-statement
// state, so one Pipeline may parse many statements concurrently.
type Pipeline struct {
	bank  models.BankType
	rules *RuleSet
	log   zerolog.Logger
	now   func() time.Time
	debug bool
}

// New returns a pipeline using the preset for bankType.
func New(bankType models.BankType, opts ...Option) (*Pipeline, error) {
	rules, err := RulesFor(bankType)
	if err != nil {
		return nil, err
	}
	if bankType == "" {
		bankType = models.BankGeneric
	}
	p := NewWithRules(rules, opts...)
	p.bank = bankType
	return p, nil
}

// NewWithRules returns a pipeline using a caller-supplied rule set.
func NewWithRules(rules *RuleSet, opts ...Option) *Pipeline {
	p := &Pipeline{
		bank:  models.BankType(rules.Name),
		rules: rules.Build(),
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rules returns the pipeline's rule set.
func (p *Pipeline) Rules() *RuleSet {
	return p.rules
}

// BankName returns the human-readable name of the pipeline's bank preset.
func (p *Pipeline) BankName() string {
	return BankName(p.bank)
}

// Parse runs the whole pipeline over one statement's text.
func (p *Pipeline) Parse(text string) (*models.StatementInfo, error) {
	if !hasAlnum(text) {
		return nil, ErrEmptyText
	}

	doc := Normalize(text, p.rules)
	if doc.Len() == 0 {
		return nil, ErrEmptyText
	}

	info := &models.StatementInfo{Bank: p.bank}
	info.Stats.Lines = doc.Len()

	observe := LineObserver(nil)
	if p.debug {
		observe = func(page, lineNum int, line string, result LineResult) {
			info.DebugLines = append(info.DebugLines, p.debugLine(page, lineNum, line, result))
		}
	}
	candidates := Segment(doc, p.rules, observe)
	info.Stats.Candidates = len(candidates)

	now := p.now()
	classifier := NewClassifier(p.rules, openingBalance(doc, p.rules))
	var txns []models.Transaction

	for _, c := range candidates {
		f, ok := ExtractFields(c.Text, p.rules, now)
		if !ok {
			info.Stats.Dropped++
			p.log.Debug().Int("page", c.Page).Str("candidate", c.Text).Msg("dropped candidate without date")
			continue
		}

		v := classifier.Classify(f)
		p.noteMethod(info, c, v)

		switch v.Kind {
		case VerdictDiscard:
			info.Stats.Dropped++
			p.log.Debug().Int("page", c.Page).Str("candidate", c.Text).Msg("dropped candidate without amounts")
		case VerdictBalance:
			info.Stats.BalanceUpdates++
			p.log.Debug().Str("balance", v.Balance.StringFixed(2)).Msg("running balance updated")
		case VerdictTransaction:
			txn := v.Transaction(f.Date, CleanDescription(f.Leftover, p.rules))
			txns = append(txns, txn)
			p.log.Debug().
				Str("date", txn.Date).
				Str("description", txn.Description).
				Str("direction", v.Direction.String()).
				Str("rule", v.Rule).
				Str("amount", v.Amount.StringFixed(2)).
				Str("balance", txn.Balance).
				Msg("transaction")
		}
	}

	data, err := Aggregate(txns)
	if err != nil {
		p.log.Info().Str("bank", string(p.bank)).Int("lines", info.Stats.Lines).
			Int("candidates", info.Stats.Candidates).Msg("no transactions found")
		return nil, err
	}
	data.Metadata.AccountNumber = findAccountNumber(text)
	data.Metadata.SortCode = findSortCode(text)
	data.Metadata.StatementPeriod = extractPeriod(text)

	info.Data = *data
	info.Stats.Transactions = len(data.Transactions)
	p.log.Info().
		Str("bank", string(p.bank)).
		Int("transactions", info.Stats.Transactions).
		Int("balance_updates", info.Stats.BalanceUpdates).
		Int("dropped", info.Stats.Dropped).
		Str("total_credits", data.Metadata.TotalCredits).
		Str("total_debits", data.Metadata.TotalDebits).
		Msg("statement parsed")
	return info, nil
}

func (p *Pipeline) debugLine(page, lineNum int, line string, result LineResult) models.DebugLine {
	dl := models.DebugLine{
		LineNum:    lineNum,
		Page:       page,
		HasDate:    hasDate(line, p.rules.NumericDates),
		HasAmount:  amountPattern.MatchString(line),
		HasKeyword: p.rules.hasKeyword(line),
		Result:     string(result),
	}
	// Truncate long lines for debug display
	if len(line) > 120 {
		dl.Text = line[:120] + "..."
	} else {
		dl.Text = line
	}
	return dl
}

// noteMethod records the classifier's decision on the line that opened the candidate.
func (p *Pipeline) noteMethod(info *models.StatementInfo, c Candidate, v Verdict) {
	if !p.debug || c.Line < 1 || c.Line > len(info.DebugLines) {
		return
	}
	method := v.Kind.String()
	if v.Kind == VerdictTransaction {
		method += ":" + v.Direction.String() + ":" + v.Rule
	}
	info.DebugLines[c.Line-1].Method = method
}

// openingBalance finds an opening balance printed ahead of the first dated
// line. Without one the running balance starts at zero.
func openingBalance(doc Document, rules *RuleSet) decimal.Decimal {
	if rules.OpeningBalance == nil {
		return decimal.Zero
	}
	for _, line := range doc.Lines() {
		if hasDate(line, rules.NumericDates) {
			break
		}
		if !rules.OpeningBalance.MatchString(line) {
			continue
		}
		if amounts := findAmounts(line); len(amounts) == 1 {
			if d, err := parseAmount(amounts[0]); err == nil {
				return d
			}
		}
	}
	return decimal.Zero
}

func hasAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
