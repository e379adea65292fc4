package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/metrics"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
	"github.com/insightdelivered/statement-ledger/internal/storage"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

const hsbcText = `HSBC UK Bank plc
Account number: 87654321
BALANCE BROUGHT FORWARD 1,260.55
15 Jan 24 CARD PAYMENT TO TESCO STORES 25.99 1,234.56
17 Jan 24 CREDIT SALARY EMPLOYER 2,500.00 3,734.56`

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	return f.text, f.err
}

type recorder struct {
	mu         sync.Mutex
	statements []string
	in, out    int
	artifacts  []string
}

func (r *recorder) RecordStatement(bank, outcome string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, bank+":"+outcome)
}

func (r *recorder) RecordTransactions(bank string, in, out int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.in += in
	r.out += out
}

func (r *recorder) RecordArtifact(format string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, format)
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestConverter(t *testing.T, ext TextExtractor) (*Converter, *storage.LocalStore, *recorder) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	c := New(ext, WithStore(store), WithMetrics(rec), WithClock(fixedClock))
	return c, store, rec
}

func TestConvertPDF(t *testing.T) {
	c, store, rec := newTestConverter(t, fakeExtractor{text: hsbcText})

	res, err := c.Convert(context.Background(), Request{
		Filename: "jan.pdf",
		PDF:      []byte("%PDF-1.4"),
		Format:   writer.FormatCSV,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if res.Info.Bank != models.BankHSBC {
		t.Errorf("bank: got %q, want %q", res.Info.Bank, models.BankHSBC)
	}
	if res.BankName != "HSBC" {
		t.Errorf("bank name: got %q", res.BankName)
	}
	if len(res.Info.Data.Transactions) != 2 {
		t.Fatalf("transactions: got %d, want 2", len(res.Info.Data.Transactions))
	}
	if !strings.HasPrefix(res.Artifact, "bank_statement_2024-06-01-") || !strings.HasSuffix(res.Artifact, ".csv") {
		t.Errorf("artifact name: got %q", res.Artifact)
	}
	if !strings.HasPrefix(res.ContentType, "text/csv") {
		t.Errorf("content type: got %q", res.ContentType)
	}

	rc, err := store.Open(context.Background(), res.Artifact)
	if err != nil {
		t.Fatalf("stored artifact: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !strings.Contains(string(data), `2024-01-17,"Credit Salary Employer",,"2,500.00","3,734.56"`) {
		t.Errorf("artifact content:\n%s", data)
	}

	if rec.in != 1 || rec.out != 1 {
		t.Errorf("direction metrics: got in=%d out=%d", rec.in, rec.out)
	}
	if len(rec.statements) != 1 || rec.statements[0] != "hsbc:"+metrics.OutcomeOK {
		t.Errorf("statement metrics: got %v", rec.statements)
	}
	if len(rec.artifacts) != 1 || rec.artifacts[0] != "csv" {
		t.Errorf("artifact metrics: got %v", rec.artifacts)
	}
}

func TestConvertTextParseOnly(t *testing.T) {
	c, store, _ := newTestConverter(t, nil)

	res, err := c.Convert(context.Background(), Request{Text: hsbcText, Bank: models.BankGeneric, Debug: true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Artifact != "" {
		t.Errorf("parse-only request stored %q", res.Artifact)
	}
	if res.Info.Bank != models.BankGeneric {
		t.Errorf("bank: got %q, want generic", res.Info.Bank)
	}
	if len(res.Info.DebugLines) == 0 {
		t.Error("expected debug lines")
	}
	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("store not empty: %v", entries)
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name    string
		ext     TextExtractor
		req     Request
		want    error
		outcome string
	}{
		{
			name:    "no input",
			req:     Request{Format: writer.FormatCSV},
			want:    ErrNoInput,
			outcome: metrics.OutcomeError,
		},
		{
			name:    "unreadable pdf",
			ext:     fakeExtractor{err: extractor.ErrNoText},
			req:     Request{PDF: []byte("x"), Format: writer.FormatCSV},
			want:    parser.ErrEmptyText,
			outcome: metrics.OutcomeEmptyText,
		},
		{
			name:    "no transactions",
			req:     Request{Text: "Metro Bank\nWelcome to your statement", Format: writer.FormatXLSX},
			want:    parser.ErrNoTransactionsFound,
			outcome: metrics.OutcomeNoTransactions,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, rec := newTestConverter(t, tt.ext)
			_, err := c.Convert(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if len(rec.statements) != 1 || !strings.HasSuffix(rec.statements[0], ":"+tt.outcome) {
				t.Errorf("statement metrics: got %v, want outcome %q", rec.statements, tt.outcome)
			}
			if entries, _ := os.ReadDir(store.Dir()); len(entries) != 0 {
				t.Errorf("failed conversion left %d files", len(entries))
			}
		})
	}
}

func TestConvertUnknownBank(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)
	if _, err := c.Convert(context.Background(), Request{Text: hsbcText, Bank: "monzo"}); err == nil {
		t.Error("expected error for unknown bank")
	}
}

func TestConvertAll(t *testing.T) {
	c, _, rec := newTestConverter(t, nil)

	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{Filename: fmt.Sprintf("s%d.pdf", i), Text: hsbcText, Format: writer.FormatXLSX}
	}
	reqs[3].Text = "nothing to see"

	outcomes := c.ConvertAll(context.Background(), reqs, 2)
	if len(outcomes) != len(reqs) {
		t.Fatalf("outcomes: got %d, want %d", len(outcomes), len(reqs))
	}
	names := map[string]bool{}
	for i, o := range outcomes {
		if o.Request.Filename != reqs[i].Filename {
			t.Errorf("[%d] outcome out of order: %q", i, o.Request.Filename)
		}
		if i == 3 {
			if !errors.Is(o.Err, parser.ErrNoTransactionsFound) {
				t.Errorf("[3] got %v, want ErrNoTransactionsFound", o.Err)
			}
			continue
		}
		if o.Err != nil {
			t.Errorf("[%d] unexpected error: %v", i, o.Err)
			continue
		}
		if names[o.Result.Artifact] {
			t.Errorf("[%d] duplicate artifact %q", i, o.Result.Artifact)
		}
		names[o.Result.Artifact] = true
	}
	if rec.in != 5 || rec.out != 5 {
		t.Errorf("direction metrics: got in=%d out=%d, want 5/5", rec.in, rec.out)
	}
}
