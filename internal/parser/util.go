package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
)

const monthNames = `JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC`

// Common row patterns found in card statements.
var (
	// MON D MON D description amount [CR] on one line.
	txLinePattern = regexp.MustCompile(`(?i)^(` + monthNames + `)[a-z]*\.?\s+([0-9]{1,2})\s+(` + monthNames + `)[a-z]*\.?\s+([0-9]{1,2})\s+(.+?)\s+(-?\$?-?[0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2})(\s*CR)?$`)
	// A lone "MON D", used by multi-line records and table cells.
	dateOnlyPattern = regexp.MustCompile(`(?i)^(` + monthNames + `)[A-Z]*\.?\s+([0-9]{1,2})$`)
	// "Mon. D Mon. D" in a single cell.
	datePairPattern = regexp.MustCompile(`(?i)^(` + monthNames + `)[a-z]*\.?\s*([0-9]{1,2})\s+(` + monthNames + `)[a-z]*\.?\s*([0-9]{1,2})$`)
	// An amount on its own, optionally marked CR.
	amountOnlyPattern = regexp.MustCompile(`(?i)^(-?\$?-?[0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2})(\s*CR)?$`)

	fxCut = regexp.MustCompile(`(?i)FOREIGN\s+CURRENCY`)
	ws    = regexp.MustCompile(`\s+`)
)

type monthDay struct {
	month time.Month
	day   int
}

func parseMonthDay(mon, day string) (monthDay, bool) {
	m, ok := models.MonthFromName(mon)
	if !ok {
		return monthDay{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return monthDay{}, false
	}
	return monthDay{month: m, day: d}, true
}

// parseDateOnly reads a "MON D" cell or line.
func parseDateOnly(s string) (monthDay, bool) {
	m := dateOnlyPattern.FindStringSubmatch(normWS(s))
	if m == nil {
		return monthDay{}, false
	}
	return parseMonthDay(m[1], m[2])
}

// parseDatePair reads a "Mon. D Mon. D" cell.
func parseDatePair(s string) (txn, post monthDay, ok bool) {
	m := datePairPattern.FindStringSubmatch(normWS(s))
	if m == nil {
		return monthDay{}, monthDay{}, false
	}
	txn, ok1 := parseMonthDay(m[1], m[2])
	post, ok2 := parseMonthDay(m[3], m[4])
	return txn, post, ok1 && ok2
}

// parseAmountCell reads a printed amount with an optional CR suffix.
func parseAmountCell(s string) (amount decimal.Decimal, credit, ok bool) {
	m := amountOnlyPattern.FindStringSubmatch(normWS(s))
	if m == nil {
		return decimal.Zero, false, false
	}
	d, err := money.Parse(m[1])
	if err != nil {
		return decimal.Zero, false, false
	}
	return d, m[2] != "", true
}

// cutFX drops FX annotation text that leaked into a description.
func cutFX(desc string) string {
	if loc := fxCut.FindStringIndex(desc); loc != nil {
		desc = desc[:loc[0]]
	}
	return strings.TrimSpace(desc)
}

func normWS(s string) string {
	return strings.TrimSpace(ws.ReplaceAllString(s, " "))
}

func firstWord(desc string) string {
	f := strings.Fields(desc)
	if len(f) == 0 {
		return ""
	}
	w := f[0]
	if len(w) > 80 {
		w = w[:80]
	}
	return w
}
