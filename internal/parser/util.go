package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Date and amount patterns found in UK bank statements.
var (
	// D Mon [YY|YYYY], D-Mon-YYYY, DMon. The month word is validated in code.
	datePatternText = regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]*(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)([a-z]*)\.?(?:[\s-]+(\d{4}|\d{2}))?`)
	// DD/MM/YYYY or DD/MM/YY, only honoured when the rule set enables numeric dates.
	datePatternSlash = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	// 1,234.56 / 25.00 / 1.234,56, always with exactly two fractional digits.
	amountPattern = regexp.MustCompile(`\b(?:\d{1,3}(?:[,.]\d{3})+|\d+)[.,]\d{2}\b`)
)

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// dateToken is a date found in a line, with its byte offsets.
type dateToken struct {
	Text       string
	Start, End int
	Day        int
	Month      int
	Year       int // 0 when the statement omitted it
}

// ISO renders the token as YYYY-MM-DD, using defaultYear when no year was printed.
func (d dateToken) ISO(defaultYear int) string {
	year := d.Year
	if year == 0 {
		year = defaultYear
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, d.Month, d.Day)
}

// findDate returns the first date token in s.
func findDate(s string, numeric bool) (dateToken, bool) {
	tok, ok := findTextDate(s)
	if !numeric {
		return tok, ok
	}
	slash, sok := findSlashDate(s)
	switch {
	case ok && sok:
		if slash.Start < tok.Start {
			return slash, true
		}
		return tok, true
	case sok:
		return slash, true
	}
	return tok, ok
}

func findTextDate(s string) (dateToken, bool) {
	for _, m := range datePatternText.FindAllStringSubmatchIndex(s, -1) {
		day, _ := strconv.Atoi(s[m[2]:m[3]])
		if day < 1 || day > 31 {
			continue
		}
		word := strings.ToLower(s[m[4]:m[7]])
		month := monthFromWord(word)
		if month == 0 {
			continue
		}

		tok := dateToken{Start: m[0], End: m[1], Day: day, Month: month}
		if m[8] >= 0 {
			next := m[9]
			// "12 Jan 25.00": the digits belong to an amount, not a year.
			if next < len(s) && (isDigit(s[next]) ||
				((s[next] == '.' || s[next] == ',') && next+1 < len(s) && isDigit(s[next+1]))) {
				tok.End = m[7]
				if tok.End < len(s) && s[tok.End] == '.' {
					tok.End++
				}
			} else {
				tok.Year = expandYear(s[m[8]:m[9]])
			}
		}
		tok.Text = s[tok.Start:tok.End]
		return tok, true
	}
	return dateToken{}, false
}

func findSlashDate(s string) (dateToken, bool) {
	for _, m := range datePatternSlash.FindAllStringSubmatchIndex(s, -1) {
		day, _ := strconv.Atoi(s[m[2]:m[3]])
		month, _ := strconv.Atoi(s[m[4]:m[5]])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			continue
		}
		return dateToken{
			Text:  s[m[0]:m[1]],
			Start: m[0],
			End:   m[1],
			Day:   day,
			Month: month,
			Year:  expandYear(s[m[6]:m[7]]),
		}, true
	}
	return dateToken{}, false
}

// monthFromWord accepts "jan", "janu", "january" but not "janet".
func monthFromWord(word string) int {
	if len(word) < 3 {
		return 0
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, word) {
			return i + 1
		}
	}
	return 0
}

func expandYear(s string) int {
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if len(s) == 2 {
		return 2000 + y
	}
	return y
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// hasDate checks if a line contains a date token anywhere.
func hasDate(line string, numeric bool) bool {
	_, ok := findDate(line, numeric)
	return ok
}

// startsWithDate checks if a line begins with a date pattern. A couple of
// stray leading characters (PDF artifacts such as "A 30 Dec") are tolerated.
func startsWithDate(line string, numeric bool) bool {
	tok, ok := findDate(strings.TrimSpace(line), numeric)
	return ok && tok.Start < 3
}

// findAmounts returns all amount tokens in order of appearance.
func findAmounts(s string) []string {
	return amountPattern.FindAllString(s, -1)
}

// parseAmount converts a string like "1,234.56", "1.234,56" or "-£1,234.56" to a decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	// Remove currency symbols and whitespace (including Unicode variants)
	for _, sym := range []string{"£", "$", "€", " ", " "} {
		s = strings.ReplaceAll(s, sym, "")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return decimal.Zero, nil
	}

	// The last separator followed by exactly two digits is the decimal point;
	// every other separator is grouping.
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 == 2 {
		s = strings.NewReplacer(",", "", ".", "").Replace(s[:i]) + "." + s[i+1:]
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// formatMoney renders the magnitude of d with two decimals and comma grouping.
func formatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}

// extractAccountNumber finds typical UK bank account numbers (8 digits).
var accountNumberPattern = regexp.MustCompile(`\b(\d{8})\b`)

// extractSortCode finds typical UK sort codes (XX-XX-XX).
var sortCodePattern = regexp.MustCompile(`\b(\d{2}-\d{2}-\d{2})\b`)

func findAccountNumber(text string) string {
	return accountNumberPattern.FindString(text)
}

func findSortCode(text string) string {
	return sortCodePattern.FindString(text)
}

// extractPeriod looks for "Statement period 1 Jan 2024 to 31 Jan 2024" style lines.
func extractPeriod(text string) string {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "period") && !strings.Contains(lower, "statement from") {
			continue
		}
		if dates := datePatternSlash.FindAllString(line, 2); len(dates) == 2 {
			return dates[0] + " to " + dates[1]
		}
		if dates := datePatternText.FindAllString(line, 2); len(dates) == 2 {
			return strings.TrimSpace(dates[0]) + " to " + strings.TrimSpace(dates[1])
		}
	}
	return ""
}
