// Package reconciler lists invoices that no single statement transaction
// settles exactly. It never claims an invoice is unpaid.
package reconciler

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/models"
)

// NearestHints is how many neighbouring amounts are reported per candidate.
const NearestHints = 3

// Report is the result of one reconciliation pass.
type Report struct {
	FiscalYear int
	Domestic   string
	// Scanned counts every invoice-type document.
	Scanned int
	// Candidates are domestic invoices without an exact amount match.
	Candidates []Candidate
	// Foreign invoices are listed for manual review without amount matching.
	Foreign []models.Document
	// Unevaluated counts domestic invoices that have no amount.
	Unevaluated int
}

// Candidate pairs an owed candidate with its source document and linked
// transactions, which the report renders in full.
type Candidate struct {
	models.OwedCandidate
	Document models.Document
	Linked   []*models.Transaction
	Hints    []*models.Transaction
}

// Reconciler holds the matching set for one run.
type Reconciler struct {
	domestic string
	txs      []*models.Transaction
	linked   map[string][]*models.Transaction
}

// New indexes txs, which should be the full matching set: every parsed
// transaction, including personal ones left out of the ledger.
func New(domestic string, txs []*models.Transaction) *Reconciler {
	r := &Reconciler{
		domestic: domestic,
		txs:      txs,
		linked:   make(map[string][]*models.Transaction),
	}
	for _, tx := range txs {
		for _, id := range tx.LinkedDocumentIDs {
			r.linked[id] = append(r.linked[id], tx)
		}
	}
	for id := range r.linked {
		sortTransactions(r.linked[id])
	}
	return r
}

// Reconcile evaluates every invoice in docs.
func (r *Reconciler) Reconcile(fiscalYear int, docs []models.Document) Report {
	rep := Report{FiscalYear: fiscalYear, Domestic: r.domestic}
	for _, d := range docs {
		if d.Type != models.DocInvoice {
			continue
		}
		rep.Scanned++
		if !strings.EqualFold(d.Currency, r.domestic) {
			rep.Foreign = append(rep.Foreign, d)
			continue
		}
		if !d.Amount.Valid || d.Amount.Decimal.IsZero() {
			rep.Unevaluated++
			continue
		}
		total := d.Amount.Decimal.Abs()
		if r.exactMatch(total) {
			continue
		}
		rep.Candidates = append(rep.Candidates, r.candidate(d, total))
	}

	sort.SliceStable(rep.Candidates, func(i, j int) bool {
		a, b := rep.Candidates[i].Document, rep.Candidates[j].Document
		if a.HasDate() != b.HasDate() {
			return a.HasDate()
		}
		if c := models.Compare(a.Date, b.Date); c != 0 {
			return c < 0
		}
		if va, vb := strings.ToUpper(a.Vendor), strings.ToUpper(b.Vendor); va != vb {
			return va < vb
		}
		return a.ID < b.ID
	})
	sort.SliceStable(rep.Foreign, func(i, j int) bool {
		a, b := rep.Foreign[i], rep.Foreign[j]
		if c := models.Compare(a.Date, b.Date); c != 0 {
			return c < 0
		}
		if va, vb := strings.ToUpper(a.Vendor), strings.ToUpper(b.Vendor); va != vb {
			return va < vb
		}
		return a.ID < b.ID
	})
	return rep
}

// Reconcile is a convenience wrapper for a single pass.
func Reconcile(fiscalYear int, domestic string, docs []models.Document, txs []*models.Transaction) Report {
	return New(domestic, txs).Reconcile(fiscalYear, docs)
}

// exactMatch reports whether any transaction anywhere has |cad| == total.
// Dates are not compared.
func (r *Reconciler) exactMatch(total decimal.Decimal) bool {
	for _, tx := range r.txs {
		if tx.CADAmount.Abs().Equal(total) {
			return true
		}
	}
	return false
}

func (r *Reconciler) candidate(d models.Document, total decimal.Decimal) Candidate {
	c := Candidate{
		OwedCandidate: models.OwedCandidate{
			DocumentID:   d.ID,
			Counterparty: d.Vendor,
			IssueDate:    d.Date,
			TotalAmount:  total,
			Currency:     d.Currency,
			SourceFile:   d.SourceFile,
			LinkedSum:    decimal.Zero,
		},
		Document: d,
		Linked:   r.linked[d.ID],
	}
	for _, tx := range c.Linked {
		c.LinkedTransactionIDs = append(c.LinkedTransactionIDs, tx.ID)
		c.LinkedSum = c.LinkedSum.Add(tx.CADAmount)
	}
	c.SplitSettlement = len(c.Linked) > 1 && c.LinkedSum.Abs().Equal(total)

	for _, n := range r.nearest(total) {
		c.Hints = append(c.Hints, n.tx)
		c.NearestAmountHints = append(c.NearestAmountHints, models.AmountHint{
			TransactionID: n.tx.ID,
			Date:          n.tx.Date,
			CADAmount:     n.tx.CADAmount,
			Delta:         n.delta,
			AccountOwner:  n.tx.AccountOwner,
			AccountName:   n.tx.AccountName,
			Description:   n.tx.Description,
		})
	}
	return c
}

type neighbour struct {
	delta decimal.Decimal
	tx    *models.Transaction
}

// nearest returns the transactions closest to total by |delta|, ties broken
// by date then id. Exact matches are skipped.
func (r *Reconciler) nearest(total decimal.Decimal) []neighbour {
	var all []neighbour
	for _, tx := range r.txs {
		delta := tx.CADAmount.Abs().Sub(total).Abs()
		if delta.IsZero() {
			continue
		}
		all = append(all, neighbour{delta: delta, tx: tx})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if c := all[i].delta.Cmp(all[j].delta); c != 0 {
			return c < 0
		}
		if c := models.Compare(all[i].tx.Date, all[j].tx.Date); c != 0 {
			return c < 0
		}
		return all[i].tx.ID < all[j].tx.ID
	})
	if len(all) > NearestHints {
		all = all[:NearestHints]
	}
	return all
}

func sortTransactions(txs []*models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if c := models.Compare(txs[i].Date, txs[j].Date); c != 0 {
			return c < 0
		}
		return txs[i].ID < txs[j].ID
	})
}
