// Package classifier assigns provisional tax categories to transactions.
package classifier

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/ident"
	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
)

// Rule names that do not come from the rule tables.
const (
	RuleIncome         = "income"
	RuleDefaultExpense = "default_expense"
	RuleVendorHint     = "vendor_hint"
	RuleCapital        = "capital_asset"
)

const (
	NoteCapital  = "AUTO: capital asset candidate; confirm asset vs expense and assign CCA class manually"
	NoteFallback = "low-confidence fallback"
)

var hundred = decimal.NewFromInt(100)

// Rule is one (predicate, result) pair. Rules are evaluated in order and the
// first match wins.
type Rule struct {
	Name   string
	Match  func(tx *models.Transaction) bool
	Result rules.Outcome
}

// Result is the classification of one transaction.
type Result struct {
	rules.Outcome
	Rule  string
	Notes models.Notes
}

// Classifier evaluates the ordered rule list plus the capital override and
// vendor hints.
type Classifier struct {
	rules    []Rule
	fallback rules.Outcome
	capital  rules.CapitalRule
	hints    *rules.VendorHints
	domestic string
	// balance is the number of leading balance-sheet rules.
	balance int
}

// New builds the rule list from r. hints may be nil.
func New(r *rules.Rules, hints *rules.VendorHints, domestic string) *Classifier {
	c := &Classifier{
		fallback: r.DefaultExpense,
		capital:  r.Capital,
		hints:    hints,
		domestic: domestic,
		balance:  len(r.BalanceSheet),
	}
	for i := range r.BalanceSheet {
		br := &r.BalanceSheet[i]
		c.rules = append(c.rules, Rule{
			Name:   br.Name,
			Match:  func(tx *models.Transaction) bool { return br.Match(tx.Description) },
			Result: br.Outcome,
		})
	}
	c.rules = append(c.rules, Rule{
		Name:   RuleIncome,
		Match:  func(tx *models.Transaction) bool { return !tx.IsOutflow() },
		Result: r.Income,
	})
	for i := range r.Expenses {
		er := &r.Expenses[i]
		c.rules = append(c.rules, Rule{
			Name:   er.Name,
			Match:  func(tx *models.Transaction) bool { return er.Match(tx.Description) },
			Result: er.Outcome,
		})
	}
	return c
}

// Rules returns the ordered rule list.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify is a pure function of tx and the loaded tables.
func (c *Classifier) Classify(tx *models.Transaction) Result {
	res := Result{Outcome: c.fallback, Rule: RuleDefaultExpense}
	balanceSheet := false
	for i, r := range c.rules {
		if r.Match(tx) {
			res = Result{Outcome: r.Result, Rule: r.Name}
			balanceSheet = i < c.balance
			break
		}
	}

	if res.Rule == RuleDefaultExpense {
		if h, ok := c.hints.Lookup(tx.Counterparty, tx.Description); ok {
			res.Outcome = h.Outcome()
			res.Rule = RuleVendorHint
			res.Notes.Add(fmt.Sprintf("%s: prior-period vendor hint %q (%d votes)", NoteFallback, h.Vendor, h.Votes))
		}
	}

	if !balanceSheet && c.isCapital(tx) {
		res.Outcome = c.capital.Outcome
		res.Rule = RuleCapital
		res.Notes.Add(NoteCapital)
	}
	return res
}

func (c *Classifier) isCapital(tx *models.Transaction) bool {
	if !tx.IsOutflow() {
		return false
	}
	floor := decimal.NewFromFloat(c.capital.MinAmount)
	return tx.CADAmount.Abs().GreaterThanOrEqual(floor) && c.capital.Match(tx.Description)
}

// Allocate classifies tx and fills in the amounts. docs resolves linked
// document ids for sales-tax amounts.
func (c *Classifier) Allocate(tx *models.Transaction, docs map[string]*models.Document) models.Allocation {
	res := c.Classify(tx)

	appliesTo := models.OwnerCorporate
	if res.Treatment == models.TreatmentShareholder {
		appliesTo = models.OwnerPersonal
	}

	gst, pst := c.salesTax(tx, docs)
	pct := decimal.NewFromInt(int64(res.DeductiblePct))

	a := models.Allocation{
		ID:                   ident.Allocation(tx.ID),
		TransactionID:        tx.ID,
		Type:                 "full",
		AppliesTo:            appliesTo,
		Amount:               tx.CADAmount,
		GST:                  gst,
		PST:                  pst,
		Category:             res.Category,
		TaxCode:              res.TaxCode,
		DeductiblePercentage: res.DeductiblePct,
		DeductibleAmount:     money.Round2(tx.CADAmount.Mul(pct).Div(hundred)),
		ITCEligibleAmount:    decimal.Zero,
		Treatment:            res.Treatment,
		Rule:                 res.Rule,
	}
	if tx.IsOutflow() && appliesTo == models.OwnerCorporate && res.DeductiblePct > 0 {
		itc := gst.Abs()
		if res.Treatment == models.TreatmentMeals50 {
			itc = itc.Div(decimal.NewFromInt(2))
		}
		a.ITCEligibleAmount = money.Round2(itc)
	}

	a.Notes.Add(fmt.Sprintf("AUTO: provisional allocation (rule: %s); review GST/PST and category.", res.Rule))
	for _, n := range res.Notes {
		a.Notes.Add(n)
	}
	return a
}

// salesTax sums GST and PST of linked domestic-currency documents, signed
// like the transaction.
func (c *Classifier) salesTax(tx *models.Transaction, docs map[string]*models.Document) (gst, pst decimal.Decimal) {
	gst, pst = decimal.Zero, decimal.Zero
	for _, id := range tx.LinkedDocumentIDs {
		d := docs[id]
		if d == nil || d.Currency != c.domestic {
			continue
		}
		if d.GST.Valid {
			gst = gst.Add(d.GST.Decimal.Abs())
		}
		if d.PST.Valid {
			pst = pst.Add(d.PST.Decimal.Abs())
		}
	}
	if tx.IsOutflow() {
		gst, pst = gst.Neg(), pst.Neg()
	}
	return gst, pst
}

// Asset returns the capital asset candidate for an allocation, if any.
func (c *Classifier) Asset(tx *models.Transaction, a models.Allocation) (models.Asset, bool) {
	if a.Treatment != models.TreatmentCapitalAsset || tx.CADAmount.IsZero() {
		return models.Asset{}, false
	}
	desc := tx.Description
	if len(desc) > 80 {
		desc = desc[:80]
	}
	asset := models.Asset{
		ID:                  ident.Asset(tx.Date, tx.Counterparty, tx.ID),
		Description:         fmt.Sprintf("Capital asset candidate from %s: %s", tx.Counterparty, desc),
		AcquisitionDate:     tx.Date,
		Cost:                tx.CADAmount.Abs(),
		Currency:            c.domestic,
		Vendor:              tx.Counterparty,
		LinkedTransactionID: tx.ID,
		LinkedDocumentIDs:   tx.LinkedDocumentIDs,
	}
	asset.Notes.Add("AUTO: flagged as capital asset candidate (no depreciation calculated). Confirm asset vs expense and assign CCA class.")
	return asset, true
}
