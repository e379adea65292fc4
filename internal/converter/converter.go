package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/metrics"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
	"github.com/insightdelivered/statement-ledger/internal/storage"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

// ErrNoInput means a request carried neither PDF bytes nor text.
var ErrNoInput = errors.New("no PDF or text supplied")

// TextExtractor turns PDF bytes into statement text.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte) (string, error)
}

// Request is one statement to convert.
type Request struct {
	Filename string
	PDF      []byte
	// Text, when set, is used instead of extracting text from PDF.
	Text string
	// Format selects the artifact; empty means parse only.
	Format writer.Format
	Layout writer.Layout
	// Bank selects a rule preset; empty means auto-detect.
	Bank  models.BankType
	Debug bool
}

// Result is a converted statement.
type Result struct {
	Info     *models.StatementInfo
	BankName string
	// Text is the statement text the ledger was parsed from.
	Text string
	// Artifact is the stored file name, empty for parse-only requests.
	Artifact    string
	ContentType string
	Duration    time.Duration
}

// Option configures a Converter.
type Option func(*Converter)

// WithStore sets where artifacts are saved.
func WithStore(s storage.Store) Option {
	return func(c *Converter) { c.store = s }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithLogger sets the logger passed down to the parser.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Converter) { c.log = log }
}

// WithClock sets the clock used for artifact names and year-less dates.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// Converter runs extraction, parsing, rendering and storage for one
// statement at a time. It is safe for concurrent use.
type Converter struct {
	extractor TextExtractor
	store     storage.Store
	metrics   metrics.Recorder
	log       zerolog.Logger
	now       func() time.Time
}

// New returns a Converter. Without WithStore, requests that ask for an
// artifact fail.
func New(ext TextExtractor, opts ...Option) *Converter {
	c := &Converter{
		extractor: ext,
		metrics:   metrics.Nop{},
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert processes one request. On failure nothing is stored.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := c.log.With().Str("file", req.Filename).Logger()

	text, err := c.text(ctx, req)
	if err != nil {
		c.metrics.RecordStatement(bankLabel(req.Bank), outcome(err), time.Since(start))
		return nil, err
	}

	bank := req.Bank
	if bank == "" {
		bank = parser.AutoDetect(text)
		log.Debug().Str("bank", string(bank)).Msg("auto-detected bank")
	}

	p, err := parser.New(bank,
		parser.WithLogger(log.With().Str("bank", string(bank)).Logger()),
		parser.WithClock(c.now),
		parser.WithDebug(req.Debug),
	)
	if err != nil {
		return nil, err
	}

	info, err := p.Parse(text)
	if err != nil {
		c.metrics.RecordStatement(string(bank), outcome(err), time.Since(start))
		return nil, fmt.Errorf("parse %s: %w", displayName(req), err)
	}

	res := &Result{Info: info, BankName: p.BankName(), Text: text}
	if req.Format != "" {
		if err := c.saveArtifact(ctx, req, res); err != nil {
			c.metrics.RecordStatement(string(bank), metrics.OutcomeError, time.Since(start))
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	in, out := info.CountDirections()
	c.metrics.RecordTransactions(string(bank), in, out)
	c.metrics.RecordStatement(string(bank), metrics.OutcomeOK, res.Duration)
	log.Info().
		Str("bank", string(bank)).
		Int("transactions", len(info.Data.Transactions)).
		Str("artifact", res.Artifact).
		Dur("duration", res.Duration).
		Msg("statement converted")
	return res, nil
}

func (c *Converter) text(ctx context.Context, req Request) (string, error) {
	if req.Text != "" {
		return req.Text, nil
	}
	if len(req.PDF) == 0 {
		return "", ErrNoInput
	}
	if c.extractor == nil {
		return "", fmt.Errorf("no text extractor configured")
	}
	text, err := c.extractor.Extract(ctx, req.PDF)
	if errors.Is(err, extractor.ErrNoText) {
		return "", fmt.Errorf("%w: %w", parser.ErrEmptyText, err)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", displayName(req), err)
	}
	return text, nil
}

func (c *Converter) saveArtifact(ctx context.Context, req Request, res *Result) error {
	if c.store == nil {
		return fmt.Errorf("no artifact store configured")
	}
	w, err := writer.New(req.Format, req.Layout)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := w.Write(&buf, res.Info); err != nil {
		return fmt.Errorf("render %s: %w", req.Format, err)
	}
	size := buf.Len()

	name := storage.NewArtifactName(c.now(), w.Ext())
	if err := c.store.Save(ctx, name, &buf); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	c.metrics.RecordArtifact(w.Ext(), size)

	res.Artifact = name
	res.ContentType = w.ContentType()
	return nil
}

// Outcome is the result of one request in a batch.
type Outcome struct {
	Request Request
	Result  *Result
	Err     error
}

// ConvertAll converts reqs with at most limit running at once. One failed
// statement does not stop the others; each outcome carries its own error.
func (c *Converter) ConvertAll(ctx context.Context, reqs []Request, limit int) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			res, err := c.Convert(ctx, req)
			outcomes[i] = Outcome{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func outcome(err error) string {
	switch {
	case errors.Is(err, parser.ErrEmptyText):
		return metrics.OutcomeEmptyText
	case errors.Is(err, parser.ErrNoTransactionsFound):
		return metrics.OutcomeNoTransactions
	default:
		return metrics.OutcomeError
	}
}

func bankLabel(b models.BankType) string {
	if b == "" {
		return "auto"
	}
	return string(b)
}

func displayName(req Request) string {
	if req.Filename != "" {
		return req.Filename
	}
	return "statement"
}
