package parser

import (
	"strings"
	"unicode"
)

// Mode of the segmenter state machine.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAccumulating
)

// LineResult says what the segmenter did with a line.
type LineResult string

const (
	ResultSkipped      LineResult = "skipped"
	ResultStarted      LineResult = "started"
	ResultAnchored     LineResult = "anchored"
	ResultContinuation LineResult = "continuation"
	ResultDiscarded    LineResult = "discarded"
)

// Candidate is a group of lines believed to describe one transaction.
type Candidate struct {
	Text   string
	Anchor string // date token the candidate is anchored on
	Page   int
	Line   int // line number that opened the candidate
}

// SegmenterState is the full state of the segmenter between two lines.
// LastDate outlives page chunks; Buffer and Anchor do not.
type SegmenterState struct {
	Mode     Mode
	Buffer   string
	Anchor   string
	LastDate string
	Page     int
	Line     int
}

// Step feeds one line to the segmenter. It returns the next state, a
// completed candidate when the line closed one, and what happened to the line.
func Step(s SegmenterState, line string, rules *RuleSet) (SegmenterState, *Candidate, LineResult) {
	if rules.shouldSkip(line) {
		return s, nil, ResultSkipped
	}

	if tok, ok := findDate(line, rules.NumericDates); ok {
		flushed := s.candidate()
		s.Mode = ModeAccumulating
		s.Buffer = line
		s.Anchor = tok.Text
		s.LastDate = tok.Text
		return s, flushed, ResultStarted
	}

	hasAmount := amountPattern.MatchString(line)
	if (hasAmount || rules.hasKeyword(line)) && s.LastDate != "" {
		if s.Mode == ModeIdle {
			s.Mode = ModeAccumulating
			s.Buffer = s.LastDate + " " + line
			s.Anchor = s.LastDate
			return s, nil, ResultAnchored
		}
		if rules.SplitCompletedCandidates && hasAmount && isComplete(s.Buffer) {
			flushed := s.candidate()
			s.Buffer = s.LastDate + " " + line
			s.Anchor = s.LastDate
			return s, flushed, ResultAnchored
		}
		s.Buffer += " " + line
		return s, nil, ResultContinuation
	}

	if s.Mode == ModeAccumulating && looksLikeText(line) {
		s.Buffer += " " + line
		return s, nil, ResultContinuation
	}
	return s, nil, ResultDiscarded
}

// Flush closes the open buffer, if any, and returns to Idle.
func Flush(s SegmenterState) (SegmenterState, *Candidate) {
	c := s.candidate()
	s.Mode = ModeIdle
	s.Buffer = ""
	s.Anchor = ""
	return s, c
}

func (s SegmenterState) candidate() *Candidate {
	if s.Mode != ModeAccumulating {
		return nil
	}
	return &Candidate{Text: s.Buffer, Anchor: s.Anchor, Page: s.Page, Line: s.Line}
}

// isComplete reports whether a buffer already carries an amount and a balance.
func isComplete(buffer string) bool {
	return len(findAmounts(buffer)) >= 2
}

// looksLikeText is the free-text continuation test.
func looksLikeText(line string) bool {
	if len(line) <= 3 {
		return false
	}
	return strings.IndexFunc(line, unicode.IsLetter) >= 0
}

// LineObserver is told about every line the segmenter sees.
type LineObserver func(page, lineNum int, line string, result LineResult)

// Segment runs Step over every page chunk of doc and returns the candidates
// in order. The buffer is flushed at the end of each chunk.
func Segment(doc Document, rules *RuleSet, observe LineObserver) []Candidate {
	var (
		out   []Candidate
		state SegmenterState
		n     int
	)
	for _, page := range doc.Pages {
		state.Page = page.Number
		for _, line := range page.Lines {
			n++
			next, c, result := Step(state, line, rules)
			if c != nil {
				out = append(out, *c)
			}
			if result == ResultStarted || result == ResultAnchored {
				next.Line = n
			}
			state = next
			if observe != nil {
				observe(page.Number, n, line, result)
			}
		}
		var c *Candidate
		state, c = Flush(state)
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}
