package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fields are the raw values pulled out of one candidate.
type Fields struct {
	Date     string // ISO YYYY-MM-DD
	DateText string
	Amounts  []decimal.Decimal
	// Subject is the candidate text without its date token. Direction
	// keyword rules are matched against it.
	Subject string
	// Leftover is what remains for the description cleaner.
	Leftover string
}

var (
	refLabelPattern = regexp.MustCompile(`(?i)\bref(?:erence)?(?:\s*[:.#]\s*|\s+)[A-Za-z0-9/-]+`)
	refCodePattern  = regexp.MustCompile(`\b[A-Z0-9]{6,}\b`)
	currencyPattern = regexp.MustCompile(`£|\bGBP\b`)
)

// ExtractFields pulls the date token, amount tokens and leftover text out of
// a candidate. ok is false when the candidate has no date token.
func ExtractFields(text string, rules *RuleSet, now time.Time) (Fields, bool) {
	tok, ok := findDate(text, rules.NumericDates)
	if !ok {
		return Fields{}, false
	}

	f := Fields{
		Date:     tok.ISO(now.Year()),
		DateText: tok.Text,
		Subject:  collapse(text[:tok.Start] + " " + text[tok.End:]),
	}

	for _, a := range findAmounts(f.Subject) {
		d, err := parseAmount(a)
		if err != nil {
			continue
		}
		f.Amounts = append(f.Amounts, d)
	}

	leftover := amountPattern.ReplaceAllString(f.Subject, " ")
	leftover = refLabelPattern.ReplaceAllString(leftover, " ")
	leftover = stripRefCodes(leftover)
	leftover = currencyPattern.ReplaceAllString(leftover, " ")
	f.Leftover = collapse(leftover)
	return f, true
}

// stripRefCodes removes long upper-case tokens that carry at least one digit.
func stripRefCodes(s string) string {
	return refCodePattern.ReplaceAllStringFunc(s, func(tok string) string {
		if strings.ContainsAny(tok, "0123456789") {
			return " "
		}
		return tok
	})
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
