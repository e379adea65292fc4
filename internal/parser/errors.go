package parser

import "errors"

var (
	// ErrEmptyText means the input has no letters or digits at all, which is
	// what an image-only or encrypted PDF yields.
	ErrEmptyText = errors.New("statement text is empty")
	// ErrNoTransactionsFound means the whole pipeline ran but produced no
	// ledger rows.
	ErrNoTransactionsFound = errors.New("no transactions found")
	// ErrUnsupportedBank is returned for a bank name with no rule preset.
	ErrUnsupportedBank = errors.New("unsupported bank type")
)

// UserMessage returns the message shown to end users for a parse failure.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyText):
		return "PDF appears to be encrypted or contains no extractable text. Please ensure the PDF is not password protected."
	case errors.Is(err, ErrNoTransactionsFound):
		return "No transactions found in the PDF. Please check if this is a valid bank statement."
	default:
		return "Failed to process the bank statement."
	}
}
