package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/extractor"
)

// parseTable walks HTML table rows. A row is read as the four-cell layout
// (txn | post | description | amount), else the three-cell date-pair layout
// (txn post | description | amount), else line by line for rows that render
// a whole transaction inside one cell.
func (b *builder) parseTable(rows []extractor.Row) {
	for i, tr := range rows {
		text := tr.Text()
		if pr, ok := matchPeriod(normWS(text)); ok {
			b.setPeriod(pr)
			continue
		}

		var next *extractor.Row
		if i+1 < len(rows) {
			next = &rows[i+1]
		}
		if b.tableCells(tr, next) {
			continue
		}
		b.tableLines(tr)
	}
}

// tableCells handles cell-based layouts. It reports whether the row was
// recognized as a transaction row, emitted or diagnosed.
func (b *builder) tableCells(tr extractor.Row, next *extractor.Row) bool {
	cells := tr.Cells
	locator := fmt.Sprintf("tr=%d", tr.Index)

	if len(cells) >= 4 {
		txn, okT := parseDateOnly(cells[0])
		post, okP := parseDateOnly(cells[1])
		if okT && okP {
			amount, credit, okA := parseAmountCell(cells[3])
			if !okA {
				b.diagnose(locator, strings.Join(cells[:4], " "), "amount not parsed")
				return true
			}
			b.tableRow(tr, locator, txn, post, cells[2], amount, credit, next)
			return true
		}
	}

	if len(cells) >= 3 {
		if txn, post, ok := parseDatePair(cells[0]); ok {
			amount, credit, okA := parseAmountCell(cells[2])
			if !okA {
				b.diagnose(locator, strings.Join(cells[:3], " "), "amount not parsed")
				return true
			}
			b.tableRow(tr, locator, txn, post, cells[1], amount, credit, next)
			return true
		}
	}
	return false
}

func (b *builder) tableRow(tr extractor.Row, locator string, txn, post monthDay, descCell string, amount decimal.Decimal, credit bool, next *extractor.Row) {
	if !b.per.set {
		b.diagnose(locator, tr.Text(), "no statement period before row")
		return
	}
	date, okP := b.per.date(post)
	_, okT := b.per.date(txn)
	if !okP || !okT {
		b.diagnose(locator, tr.Text(), "invalid calendar date")
		return
	}

	var notes []string
	desc := normWS(descCell)
	if desc == "" && next != nil {
		if recovered := b.recoverDescription(*next); recovered != "" {
			desc = recovered
			notes = append(notes, fmt.Sprintf("AUTO: DESC_FROM_TR=%d", next.Index))
		}
	}
	desc = cutFX(desc)
	if desc == "" {
		b.diagnose(locator, tr.Text(), "empty description")
		return
	}

	b.emit(row{
		locator:     locator,
		date:        date,
		description: desc,
		cad:         b.signed(amount, credit || isPaymentReceived(desc)),
		notes:       notes,
	})
	b.fx.apply(tr.Text())
}

// recoverDescription finds the first cell of the following row that is not
// a date, an amount or a section label. Some PDF conversions split a
// transaction's description onto its own row.
func (b *builder) recoverDescription(next extractor.Row) string {
	for _, c := range next.Cells {
		cand := normWS(c)
		if cand == "" {
			continue
		}
		if dateOnlyPattern.MatchString(cand) || amountOnlyPattern.MatchString(cand) {
			continue
		}
		if b.rules.IsBoilerplate(cand) {
			continue
		}
		return cand
	}
	return ""
}

// tableLines reads single-line transactions and FX annotations inside a row.
func (b *builder) tableLines(tr extractor.Row) {
	for n, ln := range strings.Split(tr.Text(), "\n") {
		line := normWS(ln)
		if line == "" {
			continue
		}
		locator := fmt.Sprintf("tr=%d;line=%d", tr.Index, n+1)
		if b.txLine(line, locator) {
			continue
		}
		b.fx.apply(line)
	}
}

func isPaymentReceived(desc string) bool {
	return strings.Contains(strings.ToUpper(desc), "PAYMENT RECEIVED")
}
