// Package parser reads bank and card statement exports into normalized
// transactions.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/extractor"
	"github.com/KitsFC/kefelan-year-end/internal/ident"
	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
)

// NotePersonalCandidate marks personal-account rows that only reach the
// ledger when linked to evidence.
const NotePersonalCandidate = "AUTO: personal statement txn (candidate; included only if linked to evidence)"

// Encoding is the physical row layout of a statement.
type Encoding string

const (
	EncodingCSV   Encoding = "csv"
	EncodingTable Encoding = "table"
	EncodingLines Encoding = "lines"
)

// Source is one statement export to parse.
type Source struct {
	// Path is recorded as source_file on every transaction.
	Path string
	Data []byte
	// Format is "csv", "markdown" or "auto"/"" to detect from the content.
	Format     string
	Account    models.Account
	FiscalYear int
	Start      civil.Date
	End        civil.Date
	// Domestic is the currency of printed amounts.
	Domestic string
}

// Parser turns statement sources into transactions.
type Parser struct {
	rules *rules.Rules
}

// New returns a Parser using r for counterparty aliases and boilerplate.
func New(r *rules.Rules) *Parser {
	return &Parser{rules: r}
}

// Detect picks the row encoding for src.
func Detect(src Source) Encoding {
	switch strings.ToLower(src.Format) {
	case "csv":
		return EncodingCSV
	case "", "auto":
		if strings.EqualFold(filepath.Ext(src.Path), ".csv") {
			return EncodingCSV
		}
	}
	if extractor.HasTableRows(string(src.Data)) {
		return EncodingTable
	}
	return EncodingLines
}

// Parse reads every transaction in src that falls inside the fiscal window.
// Rows that look like transactions but cannot be read are returned as
// diagnostics rather than errors.
func (p *Parser) Parse(src Source) (*models.Statement, error) {
	if src.End.Before(src.Start) {
		return nil, fmt.Errorf("parser: %s: empty fiscal window %s to %s", src.Path, src.Start, src.End)
	}
	if src.Domestic == "" {
		src.Domestic = "CAD"
	}

	enc := Detect(src)
	b := &builder{
		rules: p.rules,
		src:   src,
		st:    &models.Statement{SourceFile: src.Path},
		stype: models.SourceCardMD,
	}
	if enc == EncodingCSV {
		b.stype = models.SourceBankCSV
	}

	switch enc {
	case EncodingCSV:
		if err := b.parseCSV(src.Data); err != nil {
			return nil, fmt.Errorf("parser: %s: %w", src.Path, err)
		}
	case EncodingTable:
		b.parseTable(extractor.TableRows(extractor.NormalizeText(src.Data)))
	default:
		b.parseLines(extractor.StripHTML(extractor.NormalizeText(src.Data)))
	}
	return b.st, nil
}

// row is a fully read statement row waiting to become a transaction.
type row struct {
	locator     string
	date        civil.Date
	description string
	cad         decimal.Decimal
	notes       []string
}

// builder accumulates the transactions of one source.
type builder struct {
	rules *rules.Rules
	src   Source
	st    *models.Statement
	stype models.SourceType
	fx    fxState
	per   period
}

// signed applies the account's polarity to a printed amount. credit marks a
// row the statement flags as a payment or refund.
func (b *builder) signed(printed decimal.Decimal, credit bool) decimal.Decimal {
	if credit {
		return printed.Abs()
	}
	if b.src.Account.Polarity == models.PolarityChargesPositive {
		return printed.Neg()
	}
	return printed
}

func (b *builder) diagnose(locator, text, reason string) {
	text = normWS(text)
	if len(text) > 160 {
		text = text[:160]
	}
	b.st.Diagnostics = append(b.st.Diagnostics, models.Diagnostic{Locator: locator, Text: text, Reason: reason})
}

func (b *builder) setPeriod(pr models.Period) {
	b.per = period{Period: pr, set: true}
	b.st.Periods = append(b.st.Periods, pr)
	b.fx.reset()
}

// emit turns r into a transaction. Rows outside the fiscal window are counted
// and dropped; the FX state still moves to pending so a following annotation
// is consumed.
func (b *builder) emit(r row) *models.Transaction {
	if !models.InWindow(r.date, b.src.Start, b.src.End) {
		b.st.Outside++
		b.fx.emitted(nil)
		return nil
	}

	acct := b.src.Account
	tx := &models.Transaction{
		FiscalYear:    b.src.FiscalYear,
		Date:          r.date,
		SourceType:    b.stype,
		SourceFile:    b.src.Path,
		SourceLocator: r.locator,
		AccountOwner:  acct.Owner,
		AccountName:   acct.Name,
		PaymentMethod: acct.PaymentMethod,
		CardLast4:     acct.CardLast4,
		Counterparty:  b.counterparty(r.description),
		Description:   r.description,
		Amount:        r.cad,
		Currency:      b.src.Domestic,
		CADAmount:     r.cad,
		ReceiptStatus: models.ReceiptMissing,
	}
	if acct.Owner == models.OwnerPersonal {
		tx.Notes.Add(NotePersonalCandidate)
	}
	for _, n := range r.notes {
		tx.Notes.Add(n)
	}
	tx.ID = ident.Transaction(ident.TransactionInput{
		FiscalYear:  tx.FiscalYear,
		SourceType:  string(tx.SourceType),
		Kind:        tx.SourceType.Kind(),
		SourceFile:  tx.SourceFile,
		Locator:     tx.SourceLocator,
		Date:        tx.Date,
		Description: tx.Description,
		CADAmount:   tx.CADAmount,
	})

	b.st.Transactions = append(b.st.Transactions, tx)
	b.fx.emitted(tx)
	return tx
}

func (b *builder) counterparty(desc string) string {
	if name := b.rules.Counterparty(desc); name != "" {
		return name
	}
	if b.stype == models.SourceBankCSV && b.src.Account.Name != "" {
		return b.src.Account.Name
	}
	return firstWord(desc)
}
