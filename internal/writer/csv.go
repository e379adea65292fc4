package writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// CSVWriter writes transactions to CSV format.
//
// The description column is always quoted. Other fields are quoted only
// when they contain a comma, quote or line break, so "1,234.56" stays one cell.
type CSVWriter struct {
	Layout Layout
	// IncludeHeader adds "# Account Number" style metadata rows.
	IncludeHeader bool
}

func (w *CSVWriter) Ext() string { return "csv" }

func (w *CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

// Write writes transactions in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, info *models.StatementInfo) error {
	bw := bufio.NewWriter(out)

	if w.IncludeHeader {
		meta := info.Data.Metadata
		for _, kv := range [][2]string{
			{"# Bank", string(info.Bank)},
			{"# Account Number", meta.AccountNumber},
			{"# Sort Code", meta.SortCode},
			{"# Statement Period", meta.StatementPeriod},
			{"# Total Credits", meta.TotalCredits},
			{"# Total Debits", meta.TotalDebits},
		} {
			if kv[1] != "" {
				writeRecord(bw, []string{kv[0], kv[1]}, -1)
			}
		}
	}

	writeRecord(bw, w.Layout.Header(), -1)
	for _, txn := range info.Data.Transactions {
		writeRecord(bw, w.Layout.Row(txn), 1)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// writeRecord writes one line; the field at index alwaysQuote is quoted
// unconditionally. Errors surface on Flush.
func writeRecord(bw *bufio.Writer, fields []string, alwaysQuote int) {
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString(quoteField(f, i == alwaysQuote))
	}
	bw.WriteByte('\n')
}

func quoteField(f string, force bool) string {
	if !force && !strings.ContainsAny(f, ",\"\r\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}
