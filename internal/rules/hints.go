package rules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/KitsFC/kefelan-year-end/internal/models"
)

var (
	lookupPattern = regexp.MustCompile(`\[([0-9]{4})\]\s*(.+?)\s*$`)
	codeToken     = regexp.MustCompile(`^[a-z]{2}[0-9]{3}$`)
)

// Tokens splits text into lower-case words useful for vendor matching:
// stopwords, numbers, short fragments and evidence codes are dropped.
func (r *Rules) Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	var out []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) < 2 || seen[f] || r.IsStopword(f) || codeToken.MatchString(f) || isDigits(f) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Overlap counts the tokens shared by a and b.
func Overlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	n := 0
	for _, t := range b {
		if set[t] {
			n++
		}
	}
	return n
}

func isDigits(s string) bool {
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// Hint is a prior-period classification for a vendor.
type Hint struct {
	Vendor   string
	TaxCode  string
	Label    string
	Category string
	Votes    int
}

// Outcome converts the hint to a classification outcome.
func (h Hint) Outcome() Outcome {
	o := Outcome{
		Category:      h.Category,
		TaxCode:       h.TaxCode,
		DeductiblePct: 100,
		Treatment:     models.TreatmentStandard,
	}
	if h.TaxCode == "8523" {
		o.DeductiblePct = 50
		o.Treatment = models.TreatmentMeals50
	}
	return o
}

// VendorHints maps normalized vendors to their majority prior-period category.
type VendorHints struct {
	rules  *Rules
	hints  map[string]Hint
	tokens map[string][]string
	order  []string
}

// LoadVendorHints reads a prior-period allocation CSV with "Description" and
// "Lookup" columns, where Lookup holds text like "56950 | [8810] Office expenses".
func (r *Rules) LoadVendorHints(in io.Reader) (*VendorHints, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return r.NewVendorHints(nil), nil
		}
		return nil, fmt.Errorf("vendor hints: header: %w", err)
	}
	descCol, lookupCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "description":
			descCol = i
		case "lookup":
			lookupCol = i
		}
	}
	if descCol < 0 || lookupCol < 0 {
		return nil, fmt.Errorf("vendor hints: missing Description or Lookup column")
	}

	votes := make(map[string]map[Hint]int)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vendor hints: %w", err)
		}
		if descCol >= len(row) || lookupCol >= len(row) {
			continue
		}
		m := lookupPattern.FindStringSubmatch(row[lookupCol])
		if m == nil {
			continue
		}
		vendor := r.vendorKey(row[descCol])
		if vendor == "" {
			continue
		}
		h := Hint{Vendor: vendor, TaxCode: m[1], Label: m[2], Category: categorySlug(m[2])}
		if votes[vendor] == nil {
			votes[vendor] = make(map[Hint]int)
		}
		votes[vendor][h]++
	}

	var hints []Hint
	for _, byHint := range votes {
		var best Hint
		for h, n := range byHint {
			h.Votes = n
			if h.Votes > best.Votes || (h.Votes == best.Votes && (h.TaxCode < best.TaxCode || (h.TaxCode == best.TaxCode && h.Label < best.Label))) {
				best = h
			}
		}
		hints = append(hints, best)
	}
	return r.NewVendorHints(hints), nil
}

// NewVendorHints builds a hint table from already-decided hints.
func (r *Rules) NewVendorHints(hints []Hint) *VendorHints {
	vh := &VendorHints{
		rules:  r,
		hints:  make(map[string]Hint, len(hints)),
		tokens: make(map[string][]string, len(hints)),
	}
	for _, h := range hints {
		vh.hints[h.Vendor] = h
		vh.tokens[h.Vendor] = r.Tokens(h.Vendor)
		vh.order = append(vh.order, h.Vendor)
	}
	sort.Strings(vh.order)
	return vh
}

// Len returns the number of vendors with a hint.
func (vh *VendorHints) Len() int {
	if vh == nil {
		return 0
	}
	return len(vh.hints)
}

// Lookup finds the hint for a transaction: an exact counterparty match
// first, then the vendor with the largest token overlap.
func (vh *VendorHints) Lookup(counterparty, description string) (Hint, bool) {
	if vh == nil || len(vh.hints) == 0 {
		return Hint{}, false
	}
	if h, ok := vh.hints[strings.ToLower(strings.TrimSpace(counterparty))]; ok {
		return h, true
	}
	want := vh.rules.Tokens(counterparty + " " + description)
	var (
		best     Hint
		bestOver int
	)
	for _, vendor := range vh.order {
		if n := Overlap(vh.tokens[vendor], want); n > bestOver {
			best, bestOver = vh.hints[vendor], n
		}
	}
	return best, bestOver > 0
}

func (r *Rules) vendorKey(description string) string {
	if alias := r.Counterparty(description); alias != "" {
		return strings.ToLower(alias)
	}
	tokens := r.Tokens(description)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return strings.Join(tokens, " ")
}

func categorySlug(label string) string {
	var b strings.Builder
	underscore := false
	for _, c := range strings.ToLower(label) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
