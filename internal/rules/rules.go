// Package rules loads the keyword tables that drive counterparty naming,
// vendor detection, linking exemptions and classification.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KitsFC/kefelan-year-end/internal/models"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Matcher matches upper-cased text by substring or regular expression.
type Matcher struct {
	Contains []string `yaml:"contains"`
	Patterns []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

func (m *Matcher) compile() error {
	m.compiled = m.compiled[:0]
	for i, c := range m.Contains {
		m.Contains[i] = strings.ToUpper(c)
	}
	for _, p := range m.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", p, err)
		}
		m.compiled = append(m.compiled, re)
	}
	return nil
}

// Match reports whether any substring or pattern matches text.
func (m *Matcher) Match(text string) bool {
	u := strings.ToUpper(text)
	for _, c := range m.Contains {
		if c != "" && strings.Contains(u, c) {
			return true
		}
	}
	for _, re := range m.compiled {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// Outcome is what a classification rule assigns.
type Outcome struct {
	Category      string           `yaml:"category"`
	TaxCode       string           `yaml:"tax_code"`
	DeductiblePct int              `yaml:"deductible_pct"`
	Treatment     models.Treatment `yaml:"treatment"`
}

// ClassRule pairs a matcher with an outcome.
type ClassRule struct {
	Name    string `yaml:"name"`
	Matcher `yaml:",inline"`
	Outcome `yaml:",inline"`
}

// CapitalRule flags large equipment purchases.
type CapitalRule struct {
	MinAmount float64 `yaml:"min_amount"`
	Matcher   `yaml:",inline"`
	Outcome   `yaml:",inline"`
}

// Alias names a counterparty.
type Alias struct {
	Name    string `yaml:"name"`
	Matcher `yaml:",inline"`
}

// VendorOverride fixes the vendor for files with a given name prefix.
type VendorOverride struct {
	Prefix string `yaml:"prefix"`
	Vendor string `yaml:"vendor"`
}

// VendorRules drive vendor detection on evidence documents.
type VendorRules struct {
	Overrides []VendorOverride `yaml:"overrides"`
	Denylist  []string         `yaml:"denylist"`
	Generic   []string         `yaml:"generic"`
	Quiet     []string         `yaml:"quiet"`

	denylist []*regexp.Regexp
	generic  map[string]bool
}

// Denied reports whether a filename-derived vendor candidate is unusable.
func (v *VendorRules) Denied(candidate string) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	for _, re := range v.denylist {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}

// IsGeneric reports whether a content line is boilerplate rather than a vendor.
func (v *VendorRules) IsGeneric(line string) bool {
	return v.generic[strings.ToLower(strings.TrimSpace(line))]
}

// IsQuiet reports whether a linked vendor should not be noted.
func (v *VendorRules) IsQuiet(vendor string) bool {
	for _, q := range v.Quiet {
		if strings.EqualFold(q, vendor) {
			return true
		}
	}
	return false
}

// DocumentTypeRules hold filename prefixes that decide the document type.
type DocumentTypeRules struct {
	InvoicePrefixes      []string `yaml:"invoice_prefixes"`
	ConfirmationPrefixes []string `yaml:"confirmation_prefixes"`
}

// Rules is the full set of tables.
type Rules struct {
	Version                int               `yaml:"version"`
	BalanceSheet           []ClassRule       `yaml:"balance_sheet"`
	Income                 Outcome           `yaml:"income"`
	Expenses               []ClassRule       `yaml:"expenses"`
	DefaultExpense         Outcome           `yaml:"default_expense"`
	Capital                CapitalRule       `yaml:"capital"`
	NotApplicable          Matcher           `yaml:"not_applicable"`
	Counterparties         []Alias           `yaml:"counterparties"`
	Vendors                VendorRules       `yaml:"vendors"`
	DocumentTypes          DocumentTypeRules `yaml:"document_types"`
	DescriptionBoilerplate []string          `yaml:"description_boilerplate"`
	Stopwords              []string          `yaml:"stopwords"`
	ForeignCurrencies      []string          `yaml:"foreign_currencies"`

	stopwords map[string]bool
}

// Default returns the embedded rule tables.
func Default() *Rules {
	r, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded defaults: %v", err))
	}
	return r
}

// Load reads rule tables from a YAML file. An empty path yields the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and compiles rule tables.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Version != 1 {
		return nil, fmt.Errorf("unsupported rules version %d", r.Version)
	}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) compile() error {
	for i := range r.BalanceSheet {
		if err := r.BalanceSheet[i].compile(); err != nil {
			return fmt.Errorf("balance_sheet %s: %w", r.BalanceSheet[i].Name, err)
		}
	}
	for i := range r.Expenses {
		if err := r.Expenses[i].compile(); err != nil {
			return fmt.Errorf("expenses %s: %w", r.Expenses[i].Name, err)
		}
	}
	for i := range r.Counterparties {
		if err := r.Counterparties[i].compile(); err != nil {
			return fmt.Errorf("counterparty %s: %w", r.Counterparties[i].Name, err)
		}
	}
	if err := r.Capital.compile(); err != nil {
		return fmt.Errorf("capital: %w", err)
	}
	if err := r.NotApplicable.compile(); err != nil {
		return fmt.Errorf("not_applicable: %w", err)
	}

	r.Vendors.denylist = nil
	for _, p := range r.Vendors.Denylist {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("vendors denylist %q: %w", p, err)
		}
		r.Vendors.denylist = append(r.Vendors.denylist, re)
	}
	r.Vendors.generic = make(map[string]bool, len(r.Vendors.Generic))
	for _, g := range r.Vendors.Generic {
		r.Vendors.generic[strings.ToLower(g)] = true
	}

	for i, b := range r.DescriptionBoilerplate {
		r.DescriptionBoilerplate[i] = strings.ToUpper(b)
	}
	r.stopwords = make(map[string]bool, len(r.Stopwords))
	for _, w := range r.Stopwords {
		r.stopwords[strings.ToLower(w)] = true
	}
	return nil
}

// Counterparty returns the alias name for a description, or "" when no
// alias applies.
func (r *Rules) Counterparty(description string) string {
	for i := range r.Counterparties {
		if r.Counterparties[i].Match(description) {
			return r.Counterparties[i].Name
		}
	}
	return ""
}

// IsBoilerplate reports whether statement text is a section label rather
// than a transaction description.
func (r *Rules) IsBoilerplate(text string) bool {
	u := strings.ToUpper(text)
	for _, b := range r.DescriptionBoilerplate {
		if strings.Contains(u, b) {
			return true
		}
	}
	return false
}

// IsStopword reports whether a lower-case token carries no vendor signal.
func (r *Rules) IsStopword(token string) bool {
	return r.stopwords[token]
}
