// Package money parses and formats monetary amounts as fixed-point decimals.
package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Parse converts strings like "1,234.56", "-$1,234.56", "$-12.00" or
// "(45.00)" to a decimal. An empty string or lone "-" is an error.
func Parse(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "CA$", "")
	for _, sym := range []string{"$", "£", "€", ",", " ", "\u00a0"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	if s == "" || s == "-" || s == "+" {
		return decimal.Zero, fmt.Errorf("money: no amount in %q", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseOptional treats blank input as zero, for debit/credit columns.
func ParseOptional(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return Parse(s)
}

// Format renders an amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatNull renders an optional amount, blank when absent.
func FormatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return Format(d.Decimal)
}

// FormatRate renders an exchange rate without trailing zeros.
func FormatRate(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidCurrency reports whether code is a known ISO 4217 currency.
func ValidCurrency(code string) bool {
	if len(code) != 3 || strings.ToUpper(code) != code {
		return false
	}
	return gomoney.GetCurrency(code) != nil
}

// Display renders an amount with its currency's symbol and grouping,
// e.g. "$1,500.00" for CAD.
func Display(d decimal.Decimal, code string) string {
	cur := gomoney.GetCurrency(code)
	if cur == nil {
		return Format(d) + " " + code
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
