package writer

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
	"github.com/KitsFC/kefelan-year-end/internal/reconciler"
)

// maxLinkedRows caps the linked-transaction table per candidate.
const maxLinkedRows = 10

// OwedReportMarkdown renders the conservative owed-candidate report.
func OwedReportMarkdown(rep reconciler.Report) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("FY%d owed-candidate report (conservative)", rep.FiscalYear))
	doc.PlainText(fmt.Sprintf(
		"This report lists invoice evidence documents whose %s totals do not match any single "+
			"statement transaction exactly (by absolute %s amount).", rep.Domestic, rep.Domestic))
	doc.BulletList(
		"This is a review aid only; it is "+md.Bold("not")+" proof that an invoice is unpaid.",
		"The matching set includes personal-account transactions that were not written to the ledger.",
		"Nearest amounts are hints and may include personal transactions; check the account column.",
	)

	doc.H2("Summary")
	doc.BulletList(
		fmt.Sprintf("Invoices scanned: %d", rep.Scanned),
		fmt.Sprintf("%s invoices with no exact 1:1 statement amount match: %d", rep.Domestic, len(rep.Candidates)),
		fmt.Sprintf("%s invoices without an amount (not evaluated): %d", rep.Domestic, rep.Unevaluated),
		fmt.Sprintf("Non-%s invoices (not evaluated for 1:1): %d", rep.Domestic, len(rep.Foreign)),
	)

	doc.H2(fmt.Sprintf("%s invoice candidates (no exact 1:1 match)", rep.Domestic))
	if len(rep.Candidates) == 0 {
		doc.PlainText("(none)")
	}
	for _, c := range rep.Candidates {
		candidateSection(doc, c)
	}

	doc.H2(fmt.Sprintf("Non-%s invoices (manual review)", rep.Domestic))
	if len(rep.Foreign) == 0 {
		doc.PlainText("(none)")
	} else {
		var items []string
		for _, d := range rep.Foreign {
			items = append(items, strings.Join([]string{
				d.ID,
				formatDate(d.Date),
				d.Vendor,
				displayAmount(d),
				d.SourceFile,
			}, " | "))
		}
		doc.BulletList(items...)
	}

	return lf(doc.String())
}

func candidateSection(doc *md.Markdown, c reconciler.Candidate) {
	d := c.Document
	doc.H3(d.ID)

	facts := []string{
		"document_date: " + code(formatDate(d.Date)),
		"vendor: " + code(d.Vendor),
		"amount: " + code(displayAmount(d)),
		"source_file: " + code(d.SourceFile),
	}
	if len(d.Notes) > 0 {
		facts = append(facts, "doc_notes: "+d.Notes.String())
	}
	if len(c.Linked) == 0 {
		facts = append(facts, "linked_transactions: 0")
	} else {
		facts = append(facts, fmt.Sprintf("linked_transactions: %d (sum cad_amount = %s)",
			len(c.Linked), code(money.Format(c.LinkedSum))))
	}
	if c.SplitSettlement {
		facts = append(facts, "note: linked transactions sum to the invoice total (possible installment/split settlement)")
	}
	doc.BulletList(facts...)

	if len(c.Linked) > 0 {
		linked := c.Linked
		if len(linked) > maxLinkedRows {
			linked = linked[:maxLinkedRows]
		}
		rows := make([][]string, 0, len(linked))
		for _, tx := range linked {
			rows = append(rows, txRow("", tx))
		}
		doc.Table(md.TableSet{Header: txHeader(false), Rows: rows})
		if n := len(c.Linked) - maxLinkedRows; n > 0 {
			doc.PlainText(fmt.Sprintf("... (%d more)", n))
		}
	}

	if len(c.Hints) > 0 {
		doc.PlainText("Nearest statement amounts (by absolute amount delta):")
		rows := make([][]string, 0, len(c.Hints))
		for i, tx := range c.Hints {
			rows = append(rows, txRow(money.Format(c.NearestAmountHints[i].Delta), tx))
		}
		doc.Table(md.TableSet{Header: txHeader(true), Rows: rows})
	}
}

func txHeader(withDelta bool) []string {
	h := []string{"transaction_id", "txn_date", "cad_amount", "account", "description"}
	if withDelta {
		h = append([]string{"delta"}, h...)
	}
	return h
}

func txRow(delta string, tx *models.Transaction) []string {
	desc := tx.Description
	if len(desc) > 120 {
		desc = desc[:120]
	}
	row := []string{
		tx.ID,
		formatDate(tx.Date),
		money.Format(tx.CADAmount),
		string(tx.AccountOwner) + "/" + tx.AccountName,
		strings.ReplaceAll(desc, "|", "/"),
	}
	if delta != "" {
		row = append([]string{delta}, row...)
	}
	return row
}

// displayAmount renders a document total with its currency symbol and code,
// e.g. "$1,234.56 CAD". A missing total leaves only the code.
func displayAmount(d models.Document) string {
	if !d.Amount.Valid {
		return d.Currency
	}
	return money.Display(d.Amount.Decimal, d.Currency) + " " + d.Currency
}

func code(s string) string {
	return "`" + s + "`"
}

// lf normalizes line endings so output is identical on every platform.
func lf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
