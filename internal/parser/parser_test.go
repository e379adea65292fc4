package parser

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

const sampleStatement = "ACME BANK PLC\n" +
	"Your account statement\n" +
	"Sort code 12-34-56 Account number 12345678\n" +
	"Statement period 1 Jan 2024 to 31 Jan 2024\n" +
	"Date Description Money out Money in Balance\n" +
	"Balance brought forward 1,000.00\n" +
	"3 Jan 2024 Card Payment to Tesco Stores 23.45 976.55\n" +
	"5 Jan 2024 Salary payment from ACME Corp\n" +
	"Ref: SAL0124 2,500.00 3,476.55\n" +
	"\fPage 2 of 2\n" +
	"9 Jan 2024 Direct Debit to British Gas 60.00 3,416.55\n" +
	"9 Jan 2024 Refund from Amazon 15.99 3,432.54\n"

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func mustParse(t *testing.T, bank models.BankType, text string, opts ...Option) *models.StatementInfo {
	t.Helper()
	p, err := New(bank, append([]Option{WithClock(fixedClock)}, opts...)...)
	if err != nil {
		t.Fatalf("New(%q): %v", bank, err)
	}
	info, err := p.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return info
}

func direction(txn models.Transaction) string {
	switch {
	case txn.MoneyIn != nil:
		return "in"
	case txn.MoneyOut != nil:
		return "out"
	}
	return "none"
}

func amount(txn models.Transaction) string {
	if txn.MoneyIn != nil {
		return *txn.MoneyIn
	}
	if txn.MoneyOut != nil {
		return *txn.MoneyOut
	}
	return ""
}

type wantTxn struct {
	date        string
	description string
	direction   string
	amount      string
	balance     string
}

func checkLedger(t *testing.T, got []models.Transaction, want []wantTxn) {
	t.Helper()
	if len(got) != len(want) {
		for i, txn := range got {
			t.Logf("  [%d] %s | %s | %s | %s | %s", i, txn.Date, txn.Description, direction(txn), amount(txn), txn.Balance)
		}
		t.Fatalf("transactions: got %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		txn := got[i]
		if txn.Date != w.date {
			t.Errorf("txn[%d].Date: got %q, want %q", i, txn.Date, w.date)
		}
		if w.description != "" && txn.Description != w.description {
			t.Errorf("txn[%d].Description: got %q, want %q", i, txn.Description, w.description)
		}
		if direction(txn) != w.direction {
			t.Errorf("txn[%d] direction: got %q, want %q", i, direction(txn), w.direction)
		}
		if amount(txn) != w.amount {
			t.Errorf("txn[%d] amount: got %q, want %q", i, amount(txn), w.amount)
		}
		if txn.Balance != w.balance {
			t.Errorf("txn[%d].Balance: got %q, want %q", i, txn.Balance, w.balance)
		}
	}
}

func TestAutoDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected models.BankType
	}{
		{"detects Metro Bank", "Metro Bank\nAccount Statement\n15/01/2024", models.BankMetro},
		{"detects HSBC", "HSBC UK Bank plc\nYour Statement\n15 Jan 2024", models.BankHSBC},
		{"detects Barclays", "Barclays Bank UK PLC\nStatement\n15/01/2024", models.BankBarclays},
		{"detects Barclays lower case", "visit barclays.co.uk", models.BankBarclays},
		{"unknown bank falls back to generic", "Some Unknown Bank\nStatement", models.BankGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AutoDetect(tt.text); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		bankType models.BankType
		wantName string
		wantErr  bool
	}{
		{models.BankMetro, "Metro Bank", false},
		{models.BankHSBC, "HSBC", false},
		{models.BankBarclays, "Barclays", false},
		{models.BankGeneric, "Generic", false},
		{"", "Generic", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.bankType), func(t *testing.T) {
			p, err := New(tt.bankType)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.BankName() != tt.wantName {
				t.Errorf("got %q, want %q", p.BankName(), tt.wantName)
			}
		})
	}
}

func TestParseSampleStatement(t *testing.T) {
	info := mustParse(t, models.BankGeneric, sampleStatement)

	checkLedger(t, info.Data.Transactions, []wantTxn{
		{"2024-01-03", "Card Payment to Tesco Stores", "out", "23.45", "976.55"},
		{"2024-01-05", "Salary Payment", "in", "2,500.00", "3,476.55"},
		{"2024-01-09", "Direct Debit to British Gas", "out", "60.00", "3,416.55"},
		{"2024-01-09", "Refund from Amazon", "in", "15.99", "3,432.54"},
	})

	meta := info.Data.Metadata
	if meta.TotalCredits != "2,515.99" {
		t.Errorf("total credits: got %q, want %q", meta.TotalCredits, "2,515.99")
	}
	if meta.TotalDebits != "83.45" {
		t.Errorf("total debits: got %q, want %q", meta.TotalDebits, "83.45")
	}
	if meta.AccountNumber != "12345678" {
		t.Errorf("account number: got %q, want %q", meta.AccountNumber, "12345678")
	}
	if meta.SortCode != "12-34-56" {
		t.Errorf("sort code: got %q, want %q", meta.SortCode, "12-34-56")
	}
	if meta.StatementPeriod != "1 Jan 2024 to 31 Jan 2024" {
		t.Errorf("statement period: got %q", meta.StatementPeriod)
	}

	if info.Stats.Transactions != 4 || info.Stats.BalanceUpdates != 1 {
		t.Errorf("stats: got %+v", info.Stats)
	}
	if in, out := info.CountDirections(); in != 2 || out != 2 {
		t.Errorf("directions: got %d in, %d out", in, out)
	}
}

func TestParseScenarioDirectDebit(t *testing.T) {
	text := "Opening balance 1,000.00\n12 Jan Direct Debit to Acme Ltd 25.00 975.00"
	info := mustParse(t, models.BankGeneric, text)

	checkLedger(t, info.Data.Transactions, []wantTxn{
		{"2024-01-12", "Direct Debit to Acme", "out", "25.00", "975.00"},
	})
}

func TestParseBalanceOnlyLineIsAbsorbed(t *testing.T) {
	text := "12 Jan Balance brought forward 500.00\n13 Jan Card Payment to Tesco 20.00 480.00"
	info := mustParse(t, models.BankGeneric, text)

	// Without the 500.00 update the rise from zero to 480.00 would read as money in.
	checkLedger(t, info.Data.Transactions, []wantTxn{
		{"2024-01-13", "Card Payment to Tesco", "out", "20.00", "480.00"},
	})
	if info.Stats.BalanceUpdates != 1 {
		t.Errorf("balance updates: got %d, want 1", info.Stats.BalanceUpdates)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrEmptyText},
		{"whitespace and punctuation", "  \n\f --- \t ...", ErrEmptyText},
		{"boilerplate only", "Page 1 of 2\n-----", ErrEmptyText},
		{"no dates", "Welcome to your statement\nThank you for banking with us 10.00", ErrNoTransactionsFound},
		{"balance lines only", "12 Jan Opening balance 100.00\n31 Jan Closing balance 100.00", ErrNoTransactionsFound},
	}

	p, err := New(models.BankGeneric)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := p.Parse(tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if info != nil {
				t.Error("partial result returned with error")
			}
			if UserMessage(err) == "" {
				t.Error("empty user message")
			}
		})
	}
}

func TestParseProperties(t *testing.T) {
	inputs := map[string]string{
		"sample": sampleStatement,
		"unsorted": "Opening balance 100.00\n" +
			"20 Mar Card Payment to Shop 10.00 90.00\n" +
			"2 Mar Refund from Shop 5.00 95.00\n" +
			"15 Feb Direct Debit to Gym 30.00 65.00\n" +
			"15 Feb Balance 65.00\n",
		"wrapped": "1 Apr Card Payment\nto Costa\n3.20 96.80\n2 Apr Standing Order to\nLandlord 50.00\n46.80\n",
	}

	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			info := mustParse(t, models.BankGeneric, text)
			ledger := info.Data.Transactions

			credits, debits := decimal.Zero, decimal.Zero
			for i, txn := range ledger {
				if i > 0 && ledger[i-1].Date > txn.Date {
					t.Errorf("ledger out of order at %d: %s after %s", i, txn.Date, ledger[i-1].Date)
				}
				if txn.MoneyIn != nil && txn.MoneyOut != nil {
					t.Errorf("txn[%d] has both money in and money out", i)
				}
				if txn.MoneyIn == nil && txn.MoneyOut == nil {
					t.Errorf("txn[%d] has neither money in nor money out", i)
				}
				if txn.MoneyIn != nil {
					credits = credits.Add(mustAmount(*txn.MoneyIn))
				}
				if txn.MoneyOut != nil {
					debits = debits.Add(mustAmount(*txn.MoneyOut))
				}
				if txn.Description != UnknownDescription && len(txn.Description) < 3 {
					t.Errorf("txn[%d] description %q fails the validity check", i, txn.Description)
				}
			}
			if got := formatMoney(credits); got != info.Data.Metadata.TotalCredits {
				t.Errorf("credits: sum %s, metadata %s", got, info.Data.Metadata.TotalCredits)
			}
			if got := formatMoney(debits); got != info.Data.Metadata.TotalDebits {
				t.Errorf("debits: sum %s, metadata %s", got, info.Data.Metadata.TotalDebits)
			}
		})
	}
}

func TestParseUnsortedLedgerIsOrdered(t *testing.T) {
	text := "Opening balance 100.00\n" +
		"20 Mar Card Payment to Shop 10.00 90.00\n" +
		"2 Mar Refund from Shop 5.00 95.00\n" +
		"15 Feb Direct Debit to Gym 30.00 65.00\n"
	info := mustParse(t, models.BankGeneric, text)

	checkLedger(t, info.Data.Transactions, []wantTxn{
		{"2024-02-15", "Direct Debit to Gym", "out", "30.00", "65.00"},
		{"2024-03-02", "Refund from Shop", "in", "5.00", "95.00"},
		{"2024-03-20", "Card Payment to Shop", "out", "10.00", "90.00"},
	})
}

func TestParseWrappedLines(t *testing.T) {
	text := "Opening balance 100.00\n1 Apr Card Payment\nto Costa\n3.20 96.80\n2 Apr Standing Order to\nLandlord 50.00\n46.80\n"
	info := mustParse(t, models.BankGeneric, text)

	checkLedger(t, info.Data.Transactions, []wantTxn{
		{"2024-04-01", "Card Payment to Costa", "out", "3.20", "96.80"},
		{"2024-04-02", "Standing Order to Landlord", "out", "50.00", "46.80"},
	})
}

func TestParseDebugLines(t *testing.T) {
	info := mustParse(t, models.BankGeneric, sampleStatement, WithDebug(true))

	if len(info.DebugLines) != info.Stats.Lines {
		t.Fatalf("debug lines: got %d, want %d", len(info.DebugLines), info.Stats.Lines)
	}
	var transactions int
	for _, dl := range info.DebugLines {
		if dl.Result == "" {
			t.Errorf("line %d has no result", dl.LineNum)
		}
		if len(dl.Method) > len("transaction") && dl.Method[:len("transaction")] == "transaction" {
			transactions++
		}
	}
	if transactions != 4 {
		t.Errorf("lines marked as transactions: got %d, want 4", transactions)
	}

	quiet := mustParse(t, models.BankGeneric, sampleStatement)
	if len(quiet.DebugLines) != 0 {
		t.Errorf("debug lines recorded without WithDebug: %d", len(quiet.DebugLines))
	}
}

func TestParseConcurrentStatementsShareNothing(t *testing.T) {
	p, err := New(models.BankGeneric, WithClock(fixedClock))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opening := 1000 + i
			text := fmt.Sprintf("Opening balance %d.00\n12 Jan Direct Debit to Acme 25.00 %d.00", opening, opening-25)
			info, err := p.Parse(text)
			if err != nil {
				errs <- err
				return
			}
			txn := info.Data.Transactions[0]
			if txn.MoneyOut == nil || *txn.MoneyOut != "25.00" {
				errs <- fmt.Errorf("statement %d: got %+v", i, txn)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNewWithRulesCopiesRuleSet(t *testing.T) {
	base := *DefaultRules()
	base.Name = "custom"
	p := NewWithRules(&base)

	base.SkipPatterns = nil
	if len(p.Rules().SkipPatterns) == 0 {
		t.Error("pipeline rules changed after construction")
	}
	if p.Rules().Name != "custom" {
		t.Errorf("name: got %q", p.Rules().Name)
	}
}

func TestParseBank(t *testing.T) {
	tests := []struct {
		in      string
		want    models.BankType
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"MetroBank", models.BankMetro, false},
		{" hsbc ", models.BankHSBC, false},
		{"barclays", models.BankBarclays, false},
		{"generic", models.BankGeneric, false},
		{"monzo", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBank(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedBank) {
					t.Errorf("got %v, want ErrUnsupportedBank", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}
