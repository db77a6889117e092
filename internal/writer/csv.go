package writer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
	"github.com/KitsFC/kefelan-year-end/internal/reconciler"
)

// Output file names, relative to the output root.
const (
	DocumentsFile      = "documents.csv"
	TransactionsFile   = "transactions.csv"
	AllocationsFile    = "allocations.csv"
	AssetsFile         = "assets.csv"
	OwedCandidatesFile = "owed_candidates.csv"
	ReportFile         = "reports/owed_candidates_report.md"
)

// listSep joins ordered id lists inside a single cell.
const listSep = ";"

// Table is a header plus rows, ready to be written as CSV.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// CSVWriter writes tables in CSV format with LF line endings.
type CSVWriter struct {
	IncludeHeader bool
}

// Write writes a table in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, t Table) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		if err := writer.Write(t.Header); err != nil {
			return fmt.Errorf("failed to write %s header: %w", t.Name, err)
		}
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write %s row: %w", t.Name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Bytes renders a table with its header.
func Bytes(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: true}
	if err := w.Write(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Documents builds the documents table.
func Documents(docs []models.Document) Table {
	t := Table{
		Name: DocumentsFile,
		Header: []string{
			"document_id", "document_type", "document_date", "vendor",
			"amount", "currency", "gst", "pst",
			"source_file", "original_format", "notes",
		},
	}
	for _, d := range docs {
		t.Rows = append(t.Rows, []string{
			d.ID,
			string(d.Type),
			formatDate(d.Date),
			d.Vendor,
			money.FormatNull(d.Amount),
			d.Currency,
			money.FormatNull(d.GST),
			money.FormatNull(d.PST),
			d.SourceFile,
			d.OriginalFormat,
			d.Notes.String(),
		})
	}
	return t
}

// Transactions builds the transactions table.
func Transactions(txs []*models.Transaction) Table {
	t := Table{
		Name: TransactionsFile,
		Header: []string{
			"transaction_id", "fiscal_year", "txn_date", "source_type",
			"source_file", "source_locator", "account_owner", "account_name",
			"payment_method", "card_last4", "counterparty", "description",
			"amount", "currency", "cad_amount", "fx_rate_to_cad",
			"linked_document_ids", "receipt_status", "notes",
		},
	}
	for _, tx := range txs {
		t.Rows = append(t.Rows, []string{
			tx.ID,
			strconv.Itoa(tx.FiscalYear),
			formatDate(tx.Date),
			string(tx.SourceType),
			tx.SourceFile,
			tx.SourceLocator,
			string(tx.AccountOwner),
			tx.AccountName,
			tx.PaymentMethod,
			tx.CardLast4,
			tx.Counterparty,
			tx.Description,
			money.Format(tx.Amount),
			tx.Currency,
			money.Format(tx.CADAmount),
			money.FormatRate(tx.FXRate),
			strings.Join(tx.LinkedDocumentIDs, listSep),
			string(tx.ReceiptStatus),
			tx.Notes.String(),
		})
	}
	return t
}

// Allocations builds the allocations table.
func Allocations(allocs []models.Allocation) Table {
	t := Table{
		Name: AllocationsFile,
		Header: []string{
			"allocation_id", "transaction_id", "allocation_type", "applies_to",
			"allocated_amount", "allocated_gst", "allocated_pst",
			"reporting_category", "tax_code", "deductible_percentage",
			"deductible_amount", "itc_eligible_amount", "tax_treatment", "notes",
		},
	}
	for _, a := range allocs {
		t.Rows = append(t.Rows, []string{
			a.ID,
			a.TransactionID,
			a.Type,
			string(a.AppliesTo),
			money.Format(a.Amount),
			money.Format(a.GST),
			money.Format(a.PST),
			a.Category,
			a.TaxCode,
			strconv.Itoa(a.DeductiblePercentage),
			money.Format(a.DeductibleAmount),
			money.Format(a.ITCEligibleAmount),
			string(a.Treatment),
			a.Notes.String(),
		})
	}
	return t
}

// Assets builds the capital asset candidates table. CCA columns are left
// blank for manual completion.
func Assets(assets []models.Asset) Table {
	t := Table{
		Name: AssetsFile,
		Header: []string{
			"asset_id", "description", "acquisition_date", "cost", "currency",
			"vendor", "cca_class", "linked_transaction_id", "linked_document_ids", "notes",
		},
	}
	for _, a := range assets {
		t.Rows = append(t.Rows, []string{
			a.ID,
			a.Description,
			formatDate(a.AcquisitionDate),
			money.Format(a.Cost),
			a.Currency,
			a.Vendor,
			"",
			a.LinkedTransactionID,
			strings.Join(a.LinkedDocumentIDs, listSep),
			a.Notes.String(),
		})
	}
	return t
}

// OwedCandidates builds the owed-candidate table from a reconciliation.
func OwedCandidates(rep reconciler.Report) Table {
	t := Table{
		Name: OwedCandidatesFile,
		Header: []string{
			"document_id", "counterparty", "issue_date", "total_amount", "currency",
			"source_file", "linked_transaction_ids", "linked_sum", "split_settlement",
			"nearest_amount_hints",
		},
	}
	for _, c := range rep.Candidates {
		var hints []string
		for _, h := range c.NearestAmountHints {
			hints = append(hints, h.TransactionID+"@"+money.Format(h.Delta))
		}
		t.Rows = append(t.Rows, []string{
			c.DocumentID,
			c.Counterparty,
			formatDate(c.IssueDate),
			money.Format(c.TotalAmount),
			c.Currency,
			c.SourceFile,
			strings.Join(c.LinkedTransactionIDs, listSep),
			money.Format(c.LinkedSum),
			strconv.FormatBool(c.SplitSettlement),
			strings.Join(hints, listSep),
		})
	}
	return t
}

func formatDate(d civil.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}
