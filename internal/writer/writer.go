package writer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx" or "csv" in any case. An empty string selects fallback.
func ParseFormat(s string, fallback Format) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use xlsx or csv)", s)
	}
}

// Layout selects the column order.
type Layout string

const (
	// LayoutStandard is Date, Description, Money Out, Money In, Balance.
	LayoutStandard Layout = "standard"
	// LayoutBalanceBeforeIn is Date, Description, Money Out, Balance, Money In.
	LayoutBalanceBeforeIn Layout = "balance-before-in"
)

// ParseLayout accepts a layout name. An empty string selects LayoutStandard.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutStandard:
		return LayoutStandard, nil
	case LayoutBalanceBeforeIn:
		return LayoutBalanceBeforeIn, nil
	default:
		return "", fmt.Errorf("unsupported column layout %q", s)
	}
}

// Header returns the column titles for the layout.
func (l Layout) Header() []string {
	if l == LayoutBalanceBeforeIn {
		return []string{"Date", "Description", "Money Out", "Balance", "Money In"}
	}
	return []string{"Date", "Description", "Money Out (£)", "Money In (£)", "Balance (£)"}
}

// Row returns one transaction's cells in layout order. Absent amounts are
// empty cells.
func (l Layout) Row(txn models.Transaction) []string {
	out, in := deref(txn.MoneyOut), deref(txn.MoneyIn)
	if l == LayoutBalanceBeforeIn {
		return []string{txn.Date, txn.Description, out, txn.Balance, in}
	}
	return []string{txn.Date, txn.Description, out, in, txn.Balance}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Writer renders a parsed statement into one output format.
type Writer interface {
	Write(out io.Writer, info *models.StatementInfo) error
	Ext() string
	ContentType() string
}

// New returns the writer for format.
func New(format Format, layout Layout) (Writer, error) {
	switch format {
	case FormatXLSX:
		return &XLSXWriter{Layout: layout}, nil
	case FormatCSV:
		return &CSVWriter{Layout: layout}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteToFile writes info to path with w.
func WriteToFile(w Writer, path string, info *models.StatementInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, info); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
