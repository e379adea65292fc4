package models

// Transaction is one ledger row. At most one of MoneyIn/MoneyOut is set;
// amounts are two-decimal magnitude strings with thousands grouping.
type Transaction struct {
	Date        string  `json:"date"` // ISO-8601 (YYYY-MM-DD)
	Description string  `json:"description"`
	MoneyIn     *string `json:"moneyIn"`
	MoneyOut    *string `json:"moneyOut"`
	Balance     string  `json:"balance"`
}

// BankType represents supported bank statement rule presets.
type BankType string

const (
	BankGeneric  BankType = "generic"
	BankMetro    BankType = "metro"
	BankHSBC     BankType = "hsbc"
	BankBarclays BankType = "barclays"
)

// StatementSummary is derived from the final ledger. The account fields are
// read from the statement header when present.
type StatementSummary struct {
	TotalCredits    string `json:"totalCredits"`
	TotalDebits     string `json:"totalDebits"`
	AccountNumber   string `json:"accountNumber,omitempty"`
	SortCode        string `json:"sortCode,omitempty"`
	StatementPeriod string `json:"statementPeriod,omitempty"`
}

// ExtractedData is the output boundary of the extraction core.
type ExtractedData struct {
	Transactions []Transaction    `json:"transactions"`
	Metadata     StatementSummary `json:"metadata"`
}

// DebugLine captures what the parser did with each normalized line.
type DebugLine struct {
	LineNum    int    `json:"lineNum"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
	HasDate    bool   `json:"hasDate"`
	HasAmount  bool   `json:"hasAmount"`
	HasKeyword bool   `json:"hasKeyword"`
	Result     string `json:"result"` // "skipped", "started", "continuation", "discarded"
	Method     string `json:"method,omitempty"`
}

// ParseStats counts what happened to the statement's lines and candidates.
type ParseStats struct {
	Lines          int `json:"lines"`
	Candidates     int `json:"candidates"`
	Transactions   int `json:"transactions"`
	BalanceUpdates int `json:"balanceUpdates"`
	Dropped        int `json:"dropped"`
}

// StatementInfo holds everything the parser produced for one statement.
type StatementInfo struct {
	Bank       BankType
	Data       ExtractedData
	Stats      ParseStats
	DebugLines []DebugLine
}

// CountDirections returns how many ledger rows are money-in and money-out.
func (s *StatementInfo) CountDirections() (in, out int) {
	for _, txn := range s.Data.Transactions {
		if txn.MoneyIn != nil {
			in++
		} else if txn.MoneyOut != nil {
			out++
		}
	}
	return in, out
}
