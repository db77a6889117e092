package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
)

var foreignPattern = regexp.MustCompile(`(?i)FOREIGN\s+CURRENCY\s+([0-9][0-9,]*(?:\.[0-9]{1,4})?)\s+([A-Z]{3})\s+@\s+EXCHANGE\s+RATE\s+([0-9]+\.[0-9]{2,6})`)

// fxState tracks whether a foreign-exchange annotation may still attach to
// the most recently emitted transaction.
//
//	idle    --emit-->  pending
//	pending --fx-->    idle
//	any     --period-> idle
//
// Every other line leaves the state alone. A pending target may be nil when
// the emitted row fell outside the fiscal window; the annotation is then
// consumed without effect.
type fxState struct {
	pending bool
	target  *models.Transaction
}

func (s *fxState) emitted(tx *models.Transaction) {
	s.pending = true
	s.target = tx
}

func (s *fxState) reset() {
	s.pending = false
	s.target = nil
}

// apply retrofits an FX annotation found in text onto the pending
// transaction. It reports whether text held an annotation that was consumed.
func (s *fxState) apply(text string) bool {
	m := foreignPattern.FindStringSubmatch(text)
	if m == nil || !s.pending {
		return false
	}
	code := strings.ToUpper(m[2])
	if !money.ValidCurrency(code) {
		return false
	}
	foreign, err := money.Parse(m[1])
	if err != nil {
		return false
	}
	rate, err := decimal.NewFromString(m[3])
	if err != nil {
		return false
	}

	if tx := s.target; tx != nil {
		if tx.CADAmount.IsNegative() {
			foreign = foreign.Neg()
		}
		tx.Currency = code
		tx.Amount = foreign
		tx.FXRate = decimal.NewNullDecimal(rate)
		tx.Notes.Add(fmt.Sprintf("FX: %s %s @ %s", m[1], code, m[3]))
	}
	s.reset()
	return true
}
