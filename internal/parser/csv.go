package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/extractor"
	"github.com/KitsFC/kefelan-year-end/internal/money"
)

// csvColumns maps logical fields to column indexes; -1 means absent.
type csvColumns struct {
	date, description, debit, credit, amount int
}

// positional is the headerless bank export: date, description, debit, credit[, balance].
var positional = csvColumns{date: 0, description: 1, debit: 2, credit: 3, amount: -1}

var headerNames = map[string]string{
	"date":             "date",
	"transaction date": "date",
	"posted date":      "date",
	"description":      "description",
	"details":          "description",
	"memo":             "description",
	"debit":            "debit",
	"withdrawal":       "debit",
	"withdrawals":      "debit",
	"credit":           "credit",
	"deposit":          "credit",
	"deposits":         "credit",
	"amount":           "amount",
}

// headerColumns reports the column layout when record is a header row.
func headerColumns(record []string) (csvColumns, bool) {
	cols := csvColumns{date: -1, description: -1, debit: -1, credit: -1, amount: -1}
	found := false
	for i, cell := range record {
		field, ok := headerNames[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		found = true
		switch field {
		case "date":
			cols.date = i
		case "description":
			cols.description = i
		case "debit":
			cols.debit = i
		case "credit":
			cols.credit = i
		case "amount":
			cols.amount = i
		}
	}
	if !found || cols.date < 0 || cols.description < 0 {
		return csvColumns{}, false
	}
	if cols.amount < 0 && cols.debit < 0 && cols.credit < 0 {
		return csvColumns{}, false
	}
	return cols, true
}

func (c csvColumns) width() int {
	w := 0
	for _, i := range []int{c.date, c.description, c.debit, c.credit, c.amount} {
		if i+1 > w {
			w = i + 1
		}
	}
	return w
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseCSVDate accepts MM/DD/YYYY and ISO dates.
func parseCSVDate(s string) (civil.Date, bool) {
	if d, err := civil.ParseDate(s); err == nil {
		return d, true
	}
	t, err := time.Parse("1/2/2006", s)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

func (b *builder) parseCSV(data []byte) error {
	r := csv.NewReader(strings.NewReader(extractor.NormalizeText(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	cols := positional
	for idx := 1; ; idx++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		if idx == 1 {
			if h, ok := headerColumns(record); ok {
				cols = h
				continue
			}
		}
		if len(record) < cols.width() && cols.amount < 0 {
			continue
		}

		date, ok := parseCSVDate(cell(record, cols.date))
		if !ok {
			continue
		}
		locator := fmt.Sprintf("line=%d", idx)
		text := strings.Join(record, ",")

		desc := cell(record, cols.description)
		if desc == "" {
			b.diagnose(locator, text, "empty description")
			continue
		}
		amount, err := csvAmount(record, cols)
		if err != nil {
			b.diagnose(locator, text, err.Error())
			continue
		}

		b.emit(row{
			locator:     locator,
			date:        date,
			description: desc,
			cad:         b.signed(amount, false),
		})
	}
}

// csvAmount is the signed amount column when present, else credit minus debit.
func csvAmount(record []string, cols csvColumns) (decimal.Decimal, error) {
	if cols.amount >= 0 {
		return money.Parse(cell(record, cols.amount))
	}
	debit, err := money.ParseOptional(cell(record, cols.debit))
	if err != nil {
		return decimal.Zero, err
	}
	credit, err := money.ParseOptional(cell(record, cols.credit))
	if err != nil {
		return decimal.Zero, err
	}
	return credit.Sub(debit), nil
}
