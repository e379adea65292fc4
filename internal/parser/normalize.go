package parser

import (
	"sort"
	"strings"
)

// Page is one page chunk of normalized lines.
type Page struct {
	Number int
	Lines  []string
}

// Document is normalized statement text, split into page chunks.
type Document struct {
	Pages []Page
}

// Lines flattens the document into a single line sequence.
func (d Document) Lines() []string {
	var lines []string
	for _, p := range d.Pages {
		lines = append(lines, p.Lines...)
	}
	return lines
}

// Len returns the total number of lines.
func (d Document) Len() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Lines)
	}
	return n
}

// String joins lines with "\n" and pages with a form feed, so that
// normalizing the result reproduces d.
func (d Document) String() string {
	pages := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		pages[i] = strings.Join(p.Lines, "\n")
	}
	return strings.Join(pages, "\f")
}

// maxNormalizePasses bounds the fixed-point loop in Normalize. Every pass
// only drops or merges lines, so it settles quickly.
const maxNormalizePasses = 8

// Normalize cleans raw extracted text into page chunks of trimmed,
// non-empty lines. It never fails; empty input yields an empty Document.
func Normalize(text string, rules *RuleSet) Document {
	doc := normalizePass(text, rules)
	for i := 0; i < maxNormalizePasses; i++ {
		s := doc.String()
		next := normalizePass(s, rules)
		if next.String() == s {
			return next
		}
		doc = next
	}
	return doc
}

var lineCleaner = strings.NewReplacer(
	"\u00a0", " ",
	"\u200b", "",
	"\ufeff", "",
	"\t", " ",
	"\u2192", " ",
)

func normalizePass(text string, rules *RuleSet) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		doc   Document
		chunk []string
	)
	flush := func() {
		if len(chunk) > 0 {
			doc.Pages = append(doc.Pages, Page{Number: len(doc.Pages) + 1, Lines: chunk})
		}
		chunk = nil
	}

	for _, rawPage := range strings.Split(text, "\f") {
		for _, raw := range strings.Split(rawPage, "\n") {
			line := strings.Join(strings.Fields(lineCleaner.Replace(raw)), " ")
			for i, part := range splitAtMarkers(line, rules) {
				if i > 0 || (len(chunk) > 0 && isMarkerStart(part, rules)) {
					flush()
				}
				if part == "" || rules.shouldSkip(part) {
					continue
				}
				chunk = appendLine(chunk, part, rules)
			}
		}
		flush()
	}
	return doc
}

// appendLine adds line to the chunk, rejoining it onto the previous line when
// it is a soft-wrapped continuation.
func appendLine(chunk []string, line string, rules *RuleSet) []string {
	if n := len(chunk); n > 0 && !startsWithDate(line, rules.NumericDates) && !isTerminated(chunk[n-1]) {
		chunk[n-1] += " " + line
		return chunk
	}
	return append(chunk, line)
}

// isTerminated reports whether a line already ends with a complete
// amount/balance pair.
func isTerminated(line string) bool {
	amounts := findAmounts(line)
	if len(amounts) < 2 {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(line, " £"), amounts[len(amounts)-1])
}

func isMarkerStart(line string, rules *RuleSet) bool {
	for _, m := range rules.PageMarkers {
		if loc := m.FindStringIndex(line); loc != nil && loc[0] == 0 {
			return true
		}
	}
	return false
}

// splitAtMarkers cuts a line in front of every page marker it contains. The
// marker text stays at the start of its piece.
func splitAtMarkers(line string, rules *RuleSet) []string {
	var cuts []int
	for _, m := range rules.PageMarkers {
		for _, loc := range m.FindAllStringIndex(line, -1) {
			if loc[0] > 0 {
				cuts = append(cuts, loc[0])
			}
		}
	}
	if len(cuts) == 0 {
		return []string{line}
	}
	sort.Ints(cuts)

	var parts []string
	prev := 0
	for _, c := range cuts {
		if c <= prev {
			continue
		}
		if p := strings.TrimSpace(line[prev:c]); p != "" {
			parts = append(parts, p)
		}
		prev = c
	}
	if p := strings.TrimSpace(line[prev:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}
