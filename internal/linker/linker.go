// Package linker associates statement transactions with evidence documents.
package linker

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
)

// FuzzyDays is how far a document date may sit from the transaction date in
// the fuzzy tier.
const FuzzyDays = 3

var (
	// Stems often contain underscores, so no word boundaries here.
	stemCode = regexp.MustCompile(`[A-Z]{2}[0-9]{3}`)
	descCode = regexp.MustCompile(`\b([A-Z]{2}[0-9]{3})\b`)
)

type key struct {
	date     string
	amount   string
	currency string
}

// Stats counts transactions by final receipt status.
type Stats map[models.ReceiptStatus]int

// Linker holds document indexes for one run.
type Linker struct {
	rules    *rules.Rules
	domestic string
	docs     []models.Document
	byID     map[string]*models.Document
	byCode   map[string][]string
	byKey    map[key][]string
	vendors  map[string][]string
}

// New indexes docs. Documents are considered in the order given, which
// should be the deterministic output order.
func New(r *rules.Rules, domestic string, docs []models.Document) *Linker {
	l := &Linker{
		rules:    r,
		domestic: domestic,
		docs:     docs,
		byID:     make(map[string]*models.Document, len(docs)),
		byCode:   make(map[string][]string),
		byKey:    make(map[key][]string),
		vendors:  make(map[string][]string, len(docs)),
	}
	for i := range docs {
		d := &docs[i]
		l.byID[d.ID] = d
		stem := strings.TrimSuffix(path.Base(d.SourceFile), path.Ext(d.SourceFile))
		if code := stemCode.FindString(stem); code != "" {
			l.byCode[code] = append(l.byCode[code], d.ID)
		}
		if d.HasDate() && d.Amount.Valid && d.Currency != "" {
			k := key{d.Date.String(), money.Format(d.Amount.Decimal.Abs()), d.Currency}
			l.byKey[k] = append(l.byKey[k], d.ID)
		}
		l.vendors[d.ID] = r.Tokens(d.Vendor)
	}
	return l
}

// LinkAll links every transaction and returns status counts.
func (l *Linker) LinkAll(txs []*models.Transaction) Stats {
	stats := Stats{}
	for _, tx := range txs {
		l.Link(tx)
		stats[tx.ReceiptStatus]++
	}
	return stats
}

// Link sets the linked documents and receipt status of tx. The first tier
// that produces a result wins: confirmation code, exact key, fuzzy vendor.
func (l *Linker) Link(tx *models.Transaction) {
	tx.LinkedDocumentIDs = nil

	ids, ambiguous := l.byConfirmationCode(tx)
	if ids == nil && !ambiguous {
		ids, ambiguous = l.byExactKey(tx)
	}
	if ids == nil && !ambiguous {
		ids, ambiguous = l.byVendor(tx)
	}

	switch {
	case ambiguous:
		tx.ReceiptStatus = models.ReceiptAmbiguous
	case len(ids) == 1:
		tx.LinkedDocumentIDs = ids
		tx.ReceiptStatus = models.ReceiptFound
		l.noteVendor(tx, ids[0])
	case l.rules.NotApplicable.Match(tx.Description):
		tx.ReceiptStatus = models.ReceiptNotApplicable
	default:
		tx.ReceiptStatus = models.ReceiptMissing
	}
}

func (l *Linker) byConfirmationCode(tx *models.Transaction) ([]string, bool) {
	m := descCode.FindStringSubmatch(strings.ToUpper(tx.Description))
	if m == nil {
		return nil, false
	}
	if ids := l.byCode[m[1]]; len(ids) == 1 {
		return ids, false
	}
	return nil, false
}

func (l *Linker) byExactKey(tx *models.Transaction) ([]string, bool) {
	keys := []key{{tx.Date.String(), money.Format(tx.CADAmount.Abs()), l.domestic}}
	if tx.Currency != "" && tx.Currency != l.domestic {
		keys = append(keys, key{tx.Date.String(), money.Format(tx.Amount.Abs()), tx.Currency})
	}

	var found []string
	for _, k := range keys {
		found = appendUnique(found, l.byKey[k]...)
	}
	return l.resolve(tx, found)
}

func (l *Linker) byVendor(tx *models.Transaction) ([]string, bool) {
	amount := money.Format(tx.CADAmount.Abs())
	descTokens := l.rules.Tokens(tx.Description)
	if len(descTokens) == 0 {
		return nil, false
	}

	var found []string
	for i := range l.docs {
		d := &l.docs[i]
		if !d.HasDate() || !d.Amount.Valid || d.Currency != l.domestic {
			continue
		}
		if money.Format(d.Amount.Decimal.Abs()) != amount {
			continue
		}
		if days := dayDiff(d, tx); days > FuzzyDays {
			continue
		}
		if rules.Overlap(l.vendors[d.ID], descTokens) > 0 {
			found = append(found, d.ID)
		}
	}
	return l.resolve(tx, found)
}

// resolve turns a candidate list into a link, an ambiguity or nothing.
func (l *Linker) resolve(tx *models.Transaction, found []string) ([]string, bool) {
	switch len(found) {
	case 0:
		return nil, false
	case 1:
		return found, false
	}
	sorted := append([]string(nil), found...)
	sort.Strings(sorted)
	tx.Notes.Add("Multiple doc candidates: " + strings.Join(sorted, ", "))
	return nil, true
}

func (l *Linker) noteVendor(tx *models.Transaction, docID string) {
	d := l.byID[docID]
	if d == nil || d.Vendor == "" {
		return
	}
	if strings.EqualFold(d.Vendor, tx.Counterparty) || l.rules.Vendors.IsQuiet(d.Vendor) {
		return
	}
	tx.Notes.Add(fmt.Sprintf("Linked evidence vendor: %s", d.Vendor))
}

func dayDiff(d *models.Document, tx *models.Transaction) int {
	n := d.Date.DaysSince(tx.Date)
	if n < 0 {
		n = -n
	}
	return n
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		dup := false
		for _, have := range dst {
			if have == id {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, id)
		}
	}
	return dst
}
