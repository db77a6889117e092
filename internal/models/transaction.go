package models

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// SourceType identifies the statement encoding a transaction came from.
type SourceType string

const (
	SourceBankCSV SourceType = "bank_csv"
	SourceCardMD  SourceType = "cc_md"
)

// Kind is the short form used inside transaction ids.
func (s SourceType) Kind() string {
	if s == SourceBankCSV {
		return "bank"
	}
	return "cc"
}

// AccountOwner separates corporate books from personal accounts.
type AccountOwner string

const (
	OwnerCorporate AccountOwner = "corporate"
	OwnerPersonal  AccountOwner = "personal"
)

// ReceiptStatus is the outcome of evidence linking.
type ReceiptStatus string

const (
	ReceiptFound         ReceiptStatus = "found"
	ReceiptMissing       ReceiptStatus = "missing"
	ReceiptAmbiguous     ReceiptStatus = "ambiguous"
	ReceiptNotApplicable ReceiptStatus = "not_applicable"
)

// Transaction represents a single normalized statement row.
type Transaction struct {
	ID                string              `json:"transaction_id"`
	FiscalYear        int                 `json:"fiscal_year"`
	Date              civil.Date          `json:"txn_date"`
	SourceType        SourceType          `json:"source_type"`
	SourceFile        string              `json:"source_file"`
	SourceLocator     string              `json:"source_locator"`
	AccountOwner      AccountOwner        `json:"account_owner"`
	AccountName       string              `json:"account_name"`
	PaymentMethod     string              `json:"payment_method"`
	CardLast4         string              `json:"card_last4,omitempty"`
	Counterparty      string              `json:"counterparty"`
	Description       string              `json:"description"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	CADAmount         decimal.Decimal     `json:"cad_amount"`
	FXRate            decimal.NullDecimal `json:"fx_rate_to_cad"`
	LinkedDocumentIDs []string            `json:"linked_document_ids"`
	ReceiptStatus     ReceiptStatus       `json:"receipt_status"`
	Notes             Notes               `json:"notes"`
}

// IsOutflow reports whether money left the account.
func (t *Transaction) IsOutflow() bool {
	return t.CADAmount.IsNegative()
}

// Diagnostic records a row that looked like a transaction but could not be parsed.
type Diagnostic struct {
	Locator string `json:"locator"`
	Text    string `json:"text"`
	Reason  string `json:"reason"`
}

// Period is an inclusive statement period used for year inference.
type Period struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// Statement holds everything parsed out of one statement source.
type Statement struct {
	SourceFile   string         `json:"source_file"`
	Periods      []Period       `json:"periods,omitempty"`
	Transactions []*Transaction `json:"transactions"`
	Diagnostics  []Diagnostic   `json:"diagnostics,omitempty"`
	// Outside counts rows dropped by the fiscal window.
	Outside int `json:"outside_window"`
}

// Polarity says how printed statement amounts map to signed CAD amounts.
type Polarity string

const (
	// PolarityDebitCredit reads separate debit and credit columns.
	PolarityDebitCredit Polarity = "debit_credit"
	// PolarityChargesPositive is the card convention: purchases print positive.
	PolarityChargesPositive Polarity = "charges_positive"
	// PolaritySigned keeps the printed sign.
	PolaritySigned Polarity = "signed"
)

// Account describes the statement source a transaction was read from.
type Account struct {
	Owner         AccountOwner `json:"account_owner" yaml:"account_owner"`
	Name          string       `json:"account_name" yaml:"account_name"`
	PaymentMethod string       `json:"payment_method" yaml:"payment_method"`
	CardLast4     string       `json:"card_last4" yaml:"card_last4"`
	Polarity      Polarity     `json:"polarity" yaml:"polarity"`
}
