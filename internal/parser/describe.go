package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownDescription replaces descriptions that cannot be made readable.
const UnknownDescription = "Unknown Transaction"

var (
	legalSuffixPattern = regexp.MustCompile(`(?i)\b(?:limited|ltd|plc|inc|llp|llc)\b\.?`)
	decorationPattern  = regexp.MustCompile(`[*#~|•_=<>\[\]{}()"]+`)
	separatorPattern   = regexp.MustCompile(`(?i),|\b(?:on|at|for|from|via|by|ref)\b`)
	numericPattern     = regexp.MustCompile(`^[\d\s.,/:-]+$`)
	twoLettersPattern  = regexp.MustCompile(`[A-Za-z]{2}`)
)

// CleanDescription reduces leftover candidate text to a short readable label,
// or UnknownDescription.
func CleanDescription(raw string, rules *RuleSet) string {
	text := collapse(raw)
	text = expandAbbreviation(text, rules)

	var prefix string
	if rules.typePhrase != nil {
		if m := rules.typePhrase.FindStringSubmatch(text); m != nil {
			prefix = canonicalPhrase(m[1], rules)
			if m[2] != "" {
				prefix += " " + strings.ToLower(m[2])
			}
			text = text[len(m[0]):]
		}
	}

	text = stripFragments(text, rules)
	label := selectSegment(text, rules)
	if label != "" {
		// cases.Caser is stateful, so one per call.
		label = cases.Title(language.English).String(label)
	}

	var out string
	switch {
	case prefix != "" && label != "":
		out = prefix + " " + label
	case prefix != "":
		out = strings.TrimSuffix(strings.TrimSuffix(prefix, " to"), " from")
	default:
		out = label
	}
	return validDescription(out)
}

// expandAbbreviation turns a leading "DD", "SO", "BGC" ... into its full form.
func expandAbbreviation(text string, rules *RuleSet) string {
	if rules.abbrev == nil {
		return text
	}
	m := rules.abbrev.FindString(text)
	if m == "" {
		return text
	}
	full := rules.TypeAbbreviations[m]
	// "ATM WITHDRAWAL" already spells it out.
	if strings.HasPrefix(strings.ToLower(text), strings.ToLower(full)) {
		return text
	}
	return full + text[len(m):]
}

func canonicalPhrase(found string, rules *RuleSet) string {
	for _, p := range rules.TypePhrases {
		if strings.EqualFold(p, found) {
			return p
		}
	}
	return found
}

// stripFragments removes date and amount debris, reference codes, legal
// suffixes and decorative punctuation.
func stripFragments(text string, rules *RuleSet) string {
	text = datePatternText.ReplaceAllString(text, " ")
	if rules.NumericDates {
		text = datePatternSlash.ReplaceAllString(text, " ")
	}
	text = amountPattern.ReplaceAllString(text, " ")
	text = refLabelPattern.ReplaceAllString(text, " ")
	text = stripRefCodes(text)
	text = legalSuffixPattern.ReplaceAllString(text, " ")
	text = decorationPattern.ReplaceAllString(text, " ")
	return strings.Trim(collapse(text), " -:;.,/")
}

// selectSegment splits on separator words and picks the first segment that
// reads like a name.
func selectSegment(text string, rules *RuleSet) string {
	var fallback string
	for _, seg := range separatorPattern.Split(text, -1) {
		seg = strings.Trim(collapse(seg), " -:;.,/&")
		if seg == "" || numericPattern.MatchString(seg) || !strings.ContainsFunc(seg, isASCIILetter) {
			continue
		}
		if fallback == "" {
			fallback = seg
		}
		if !allNoise(seg, rules) {
			return seg
		}
	}
	return fallback
}

func allNoise(seg string, rules *RuleSet) bool {
	for _, w := range strings.Fields(seg) {
		if !rules.isNoise(w) {
			return false
		}
	}
	return true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func validDescription(s string) string {
	s = collapse(s)
	if len(s) < 3 || !twoLettersPattern.MatchString(s) {
		return UnknownDescription
	}
	return s
}
