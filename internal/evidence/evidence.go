// Package evidence turns free-form receipts, invoices and confirmations into
// normalized Document records.
package evidence

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/extractor"
	"github.com/KitsFC/kefelan-year-end/internal/ident"
	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
)

// Notes written on documents.
const (
	NoteDateMissing   = "document_date missing"
	NoteAmountMissing = "amount missing"
	NoteAmountInfer   = "amount inferred (no explicit Total/Amount Due marker nearby)"
	NoteVendorMissing = "vendor missing"
)

// Extractor builds documents using the configured rule tables.
type Extractor struct {
	rules    *rules.Rules
	domestic string
	log      zerolog.Logger
}

// New creates an Extractor. domestic is the currency assumed when the text
// names no other.
func New(r *rules.Rules, domestic string, log zerolog.Logger) *Extractor {
	return &Extractor{rules: r, domestic: domestic, log: log}
}

// ExtractFile reads fsPath and extracts a document recorded under sourcePath.
// Read failures produce a degraded document rather than an error.
func (e *Extractor) ExtractFile(fsPath, sourcePath string) models.Document {
	text, err := extractor.ReadText(fsPath)
	if err != nil {
		e.log.Warn().Err(err).Str("source", sourcePath).Msg("evidence unreadable")
		doc := e.Extract("", sourcePath)
		doc.Notes.Add("unreadable source: " + err.Error())
		return doc
	}
	return e.Extract(text, sourcePath)
}

// Extract never fails: missing fields are left empty and noted.
func (e *Extractor) Extract(text, sourcePath string) models.Document {
	name := path.Base(sourcePath)
	doc := models.Document{
		Type:           e.documentType(name, text),
		Currency:       e.domestic,
		SourceFile:     sourcePath,
		OriginalFormat: extractor.Format(sourcePath),
	}

	if d, ok := dateFromFilename(name); ok {
		doc.Date = d
	} else if d, ok := dateFromText(text); ok {
		doc.Date = d
	}

	doc.Vendor = e.vendor(name, text)

	amount, explicit, found := bestAmount(text)
	if found {
		doc.Amount = decimal.NewNullDecimal(amount)
	}
	doc.Currency = e.currency(text)
	doc.GST, doc.PST = salesTax(text)

	if !doc.HasDate() {
		doc.Notes.Add(NoteDateMissing)
	}
	if !found {
		doc.Notes.Add(NoteAmountMissing)
	} else if !explicit {
		doc.Notes.Add(NoteAmountInfer)
	}
	if doc.Vendor == "" {
		doc.Notes.Add(NoteVendorMissing)
	}

	doc.ID = ident.Document(doc.Date, doc.Vendor, doc.Amount, doc.Currency, sourcePath)
	return doc
}

func (e *Extractor) documentType(name, text string) models.DocumentType {
	lname := strings.ToLower(name)
	ltext := strings.ToLower(text)
	switch {
	case hasAnyPrefix(lname, e.rules.DocumentTypes.InvoicePrefixes),
		strings.Contains(lname, "invoice"), strings.Contains(ltext, "invoice"):
		return models.DocInvoice
	case strings.Contains(lname, "receipt"), strings.Contains(ltext, "receipt"), strings.Contains(lname, "paid"):
		return models.DocReceipt
	case hasAnyPrefix(lname, e.rules.DocumentTypes.ConfirmationPrefixes),
		strings.Contains(ltext, "completed successfully"), strings.Contains(ltext, "confirmation"):
		return models.DocConfirmation
	}
	return models.DocOther
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

var (
	fnISODate     = regexp.MustCompile(`(20[0-9]{2})-([0-9]{2})-([0-9]{2})`)
	fnCompactDate = regexp.MustCompile(`(?:^|[_\-. ])(20[0-9]{2})([0-9]{2})([0-9]{2})(?:[_\-. ]|$)`)

	monthAlt = `(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

	// Text date patterns in priority order.
	txtISODate  = regexp.MustCompile(`\b(20[0-9]{2})-([0-9]{2})-([0-9]{2})\b`)
	txtDayMonth = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s+` + monthAlt + `\.?,?\s+(20[0-9]{2})\b`)
	txtMonthDay = regexp.MustCompile(`(?i)\b` + monthAlt + `\.?\s+([0-9]{1,2}),?\s+(20[0-9]{2})\b`)
	txtNumeric  = regexp.MustCompile(`\b([0-9]{1,2})/([0-9]{1,2})/((?:20)?[0-9]{2})\b`)
	txtDayMonYY = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s+` + monthAlt + `'([0-9]{2})\b`)
)

func makeDate(y, m, d int) (civil.Date, bool) {
	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	return date, date.IsValid()
}

func dateFromFilename(name string) (civil.Date, bool) {
	for _, re := range []*regexp.Regexp{fnISODate, fnCompactDate} {
		for _, m := range re.FindAllStringSubmatch(name, -1) {
			if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
				return d, true
			}
		}
	}
	return civil.Date{}, false
}

// dateFromText tries each pattern in priority order; the first pattern that
// yields a valid calendar date wins.
func dateFromText(text string) (civil.Date, bool) {
	for _, m := range txtISODate.FindAllStringSubmatch(text, -1) {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d, true
		}
	}
	for _, m := range txtDayMonth.FindAllStringSubmatch(text, -1) {
		if mon, ok := models.MonthFromName(m[2]); ok {
			if d, ok := makeDate(atoi(m[3]), int(mon), atoi(m[1])); ok {
				return d, true
			}
		}
	}
	for _, m := range txtMonthDay.FindAllStringSubmatch(text, -1) {
		if mon, ok := models.MonthFromName(m[1]); ok {
			if d, ok := makeDate(atoi(m[3]), int(mon), atoi(m[2])); ok {
				return d, true
			}
		}
	}
	for _, m := range txtNumeric.FindAllStringSubmatch(text, -1) {
		if d, ok := makeDate(fullYear(m[3]), atoi(m[1]), atoi(m[2])); ok {
			return d, true
		}
	}
	for _, m := range txtDayMonYY.FindAllStringSubmatch(text, -1) {
		if mon, ok := models.MonthFromName(m[2]); ok {
			if d, ok := makeDate(2000+atoi(m[3]), int(mon), atoi(m[1])); ok {
				return d, true
			}
		}
	}
	return civil.Date{}, false
}

func fullYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var (
	amountToken   = regexp.MustCompile(`\$\s*(-?[0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2})`)
	totalKeywords = []string{"total due", "amount due", "grand total", "total", "amount:"}
	subtotalWords = []string{"subtotal", "sub-total", "sub total"}
)

type amountCandidate struct {
	score int
	value decimal.Decimal
	pos   int
}

// bestAmount scores every "$" amount by its own label. explicit is false
// when the winner had no total keyword.
func bestAmount(text string) (value decimal.Decimal, explicit, found bool) {
	var cands []amountCandidate
	for _, loc := range amountToken.FindAllStringSubmatchIndex(text, -1) {
		v, err := money.Parse(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		cands = append(cands, amountCandidate{score: amountScore(text, loc[0], loc[1]), value: v, pos: loc[0]})
	}
	if len(cands) == 0 {
		return decimal.Zero, false, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		ai, aj := cands[i].value.Abs(), cands[j].value.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return cands[i].pos < cands[j].pos
	})
	best := cands[0]
	return best.value, best.score >= 3, true
}

// amountScore is 3 for a total label, 0 for a subtotal label, else 1. The
// label is the last keyword in the 60 chars before the token, on its line or
// the nearest non-blank line above, with no other amount in between. Without
// one, a keyword later on the same line counts.
func amountScore(text string, start, end int) int {
	from := start - 60
	if from < 0 {
		from = 0
	}
	lines := strings.Split(strings.ToLower(text[from:start]), "\n")
	keep := len(lines) - 1
	for i := keep - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			keep = i
			break
		}
	}
	before := strings.Join(lines[keep:], "\n")
	if score, at, ok := lastLabel(before); ok && !amountToken.MatchString(before[at:]) {
		return score
	}

	to := end + 40
	if to > len(text) {
		to = len(text)
	}
	after := strings.ToLower(text[end:to])
	if i := strings.IndexByte(after, '\n'); i >= 0 {
		after = after[:i]
	}
	if score, _, ok := lastLabel(after); ok {
		return score
	}
	return 1
}

// lastLabel finds the keyword ending latest in s. Total keywords inside a
// subtotal word do not count.
func lastLabel(s string) (score, end int, ok bool) {
	end = -1
	masked := s
	for _, k := range subtotalWords {
		if i := strings.LastIndex(s, k); i >= 0 && i+len(k) > end {
			score, end = 0, i+len(k)
		}
		masked = strings.ReplaceAll(masked, k, strings.Repeat(" ", len(k)))
	}
	for _, k := range totalKeywords {
		if i := strings.LastIndex(masked, k); i >= 0 && i+len(k) > end {
			score, end = 3, i+len(k)
		}
	}
	return score, end, end >= 0
}

var currencyCode = regexp.MustCompile(`\b[A-Z]{3}\b`)

// currency returns the earliest recognized foreign code in text, or the
// domestic currency.
func (e *Extractor) currency(text string) string {
	foreign := make(map[string]bool, len(e.rules.ForeignCurrencies))
	for _, c := range e.rules.ForeignCurrencies {
		if c != e.domestic && money.ValidCurrency(c) {
			foreign[c] = true
		}
	}
	usd := strings.Index(text, "US$")
	for _, loc := range currencyCode.FindAllStringIndex(text, -1) {
		if usd >= 0 && usd < loc[0] && foreign["USD"] {
			return "USD"
		}
		if code := text[loc[0]:loc[1]]; foreign[code] {
			return code
		}
	}
	if usd >= 0 && foreign["USD"] {
		return "USD"
	}
	return e.domestic
}

var (
	gstLine = regexp.MustCompile(`(?i)\b(?:GST|HST)\b[^0-9\n]*([0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2})`)
	pstLine = regexp.MustCompile(`(?i)\bPST\b[^0-9\n]*([0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2})`)
)

func salesTax(text string) (gst, pst decimal.NullDecimal) {
	grab := func(re *regexp.Regexp) decimal.NullDecimal {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return decimal.NullDecimal{}
		}
		v, err := money.Parse(m[1])
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(v)
	}
	return grab(gstLine), grab(pstLine)
}
