package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/money"
)

// record accumulates a transaction printed over four lines:
//
//	<txn date>
//	<post date>
//	<description>
//	<amount>
//
// A complete record is flushed as a transaction. A date line arriving after
// both dates are known, or any single-line row, supersedes the record and it
// is discarded.
type record struct {
	dates int
	txn   monthDay
	post  monthDay
	desc  string
	start int
}

func (r *record) reset() { *r = record{} }

// addDate takes a date-only line.
func (r *record) addDate(md monthDay, line int) {
	switch r.dates {
	case 0:
		r.txn, r.start, r.dates = md, line, 1
	case 1:
		r.post, r.dates = md, 2
	default:
		r.reset()
		r.txn, r.start, r.dates = md, line, 1
	}
}

func (r *record) wantsDescription() bool { return r.dates == 2 && r.desc == "" }
func (r *record) wantsAmount() bool      { return r.dates == 2 && r.desc != "" }

// parseLines reads plain text statements line by line.
func (b *builder) parseLines(text string) {
	var acc record
	for i, raw := range strings.Split(text, "\n") {
		n := i + 1
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := normWS(raw)
		locator := fmt.Sprintf("line=%d", n)

		if pr, ok := matchPeriod(line); ok {
			b.setPeriod(pr)
			acc.reset()
			continue
		}
		if b.tabRow(raw, locator) || b.txLine(line, locator) {
			acc.reset()
			continue
		}

		if md, ok := parseDateOnly(line); ok {
			if !b.per.set {
				continue
			}
			acc.addDate(md, n)
			continue
		}
		if b.fx.apply(line) {
			continue
		}
		if acc.wantsDescription() && !amountOnlyPattern.MatchString(line) {
			acc.desc = line
			continue
		}
		if acc.wantsAmount() {
			amount, credit, ok := parseAmountCell(line)
			if !ok {
				continue
			}
			b.flush(acc, n, amount, credit)
			acc.reset()
		}
	}
}

func (b *builder) flush(acc record, end int, amount decimal.Decimal, credit bool) {
	locator := fmt.Sprintf("lines=%d-%d", acc.start, end)
	date, okP := b.per.date(acc.post)
	_, okT := b.per.date(acc.txn)
	if !okP || !okT {
		b.diagnose(locator, acc.desc, "invalid calendar date")
		return
	}
	desc := cutFX(acc.desc)
	b.emit(row{
		locator:     locator,
		date:        date,
		description: desc,
		cad:         b.signed(amount, credit || isPaymentReceived(desc)),
	})
}

// tabRow reads "Mon. D Mon. D<TAB>description<TAB>amount [CR]" lines.
func (b *builder) tabRow(raw, locator string) bool {
	var parts []string
	for _, p := range strings.Split(raw, "\t") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 3 {
		return false
	}
	txn, post, ok := parseDatePair(parts[0])
	if !ok {
		return false
	}
	if !b.per.set {
		b.diagnose(locator, raw, "no statement period before row")
		return true
	}
	amount, credit, ok := parseAmountCell(parts[2])
	if !ok {
		b.diagnose(locator, raw, "amount not parsed")
		return true
	}
	date, okP := b.per.date(post)
	_, okT := b.per.date(txn)
	if !okP || !okT {
		b.diagnose(locator, raw, "invalid calendar date")
		return true
	}
	desc := cutFX(normWS(parts[1]))
	if desc == "" {
		b.diagnose(locator, raw, "empty description")
		return true
	}
	b.emit(row{
		locator:     locator,
		date:        date,
		description: desc,
		cad:         b.signed(amount, credit || isPaymentReceived(desc)),
	})
	b.fx.apply(raw)
	return true
}

// txLine reads a single-line "MON D MON D description amount" transaction.
func (b *builder) txLine(line, locator string) bool {
	m := txLinePattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if !b.per.set {
		b.diagnose(locator, line, "no statement period before row")
		return true
	}
	txn, okT := parseMonthDay(m[1], m[2])
	post, okP := parseMonthDay(m[3], m[4])
	amount, err := money.Parse(m[6])
	if !okT || !okP || err != nil {
		b.diagnose(locator, line, "amount not parsed")
		return true
	}
	date, okP := b.per.date(post)
	_, okT = b.per.date(txn)
	if !okP || !okT {
		b.diagnose(locator, line, "invalid calendar date")
		return true
	}
	desc := cutFX(m[5])
	if desc == "" {
		b.diagnose(locator, line, "empty description")
		return true
	}
	b.emit(row{
		locator:     locator,
		date:        date,
		description: desc,
		cad:         b.signed(amount, m[7] != "" || isPaymentReceived(desc)),
	})
	b.fx.apply(line)
	return true
}
