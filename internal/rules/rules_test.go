package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRulesCompile(t *testing.T) {
	r := Default()
	if r.Version != 1 {
		t.Fatalf("Version = %d, want 1", r.Version)
	}
	if len(r.BalanceSheet) == 0 || len(r.Expenses) == 0 {
		t.Fatal("expected balance sheet and expense rules")
	}
	if r.Capital.MinAmount != 500 {
		t.Errorf("capital min_amount = %v, want 500", r.Capital.MinAmount)
	}
}

func TestMatcher(t *testing.T) {
	r := Default()
	tests := []struct {
		rule string
		desc string
		want bool
	}{
		{"bank_fee", "MONTHLY PLAN FEE", true},
		{"tax_remittance", "TX INSTALMENT", true},
		{"tax_remittance", "TAXI STAND", false},
		{"tax_remittance", "TAX PAYMENT 2024", true},
		{"tax_remittance", "GOV CRA TAX INSTALMENT", true},
		{"tax_remittance", "TXBAL 0425", true},
		{"tax_remittance", "AIR CANADA TAX", false},
		{"shareholder_transfer", "TFR-TO 6084079", true},
		{"shareholder_transfer", "TFR-TO C/C", false},
	}
	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.desc, func(t *testing.T) {
			var got bool
			found := false
			for i := range r.BalanceSheet {
				if r.BalanceSheet[i].Name == tt.rule {
					got = r.BalanceSheet[i].Match(tt.desc)
					found = true
				}
			}
			if !found {
				t.Fatalf("rule %q not found", tt.rule)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.desc, got, tt.want)
			}
		})
	}
}

func TestCounterparty(t *testing.T) {
	r := Default()
	tests := map[string]string{
		"LENOVO CANADA ONLINE":   "Lenovo",
		"PP*SOMESHOP":            "PayPal",
		"AMZN MKTP CA":           "Amazon",
		"SEND E-TRANSFER":        "Interac e-Transfer",
		"MONTHLY PLAN FEE":       "Bank fee",
		"STARBUCKS #1234 VANCOU": "",
	}
	for desc, want := range tests {
		if got := r.Counterparty(desc); got != want {
			t.Errorf("Counterparty(%q) = %q, want %q", desc, got, want)
		}
	}
}

func TestVendorRules(t *testing.T) {
	r := Default()
	if !r.Vendors.Denied("FY2025 notes") {
		t.Error("expected fy prefix to be denied")
	}
	if !r.Vendors.Denied("invoice") {
		t.Error("expected bare invoice to be denied")
	}
	if r.Vendors.Denied("Guardian Storage") {
		t.Error("Guardian Storage should be allowed")
	}
	if !r.Vendors.IsGeneric("  Tax Invoice ") {
		t.Error("expected tax invoice to be generic")
	}
	if !r.Vendors.IsQuiet("td canada trust") {
		t.Error("expected TD Canada Trust to be quiet")
	}
}

func TestTokens(t *testing.T) {
	r := Default()
	got := strings.Join(r.Tokens("DIGITALOCEAN.COM NY 10001 HW293 the Cloud"), ",")
	if got != "digitalocean,ny,cloud" {
		t.Errorf("Tokens = %q", got)
	}
}

func TestLoadVendorHintsMajority(t *testing.T) {
	r := Default()
	csv := "Description,Amount,Lookup\n" +
		"DIGITALOCEAN.COM,12.00,56950 | [8810] Office expenses\n" +
		"DIGITALOCEAN.COM,12.00,56950 | [8810] Office expenses\n" +
		"DIGITALOCEAN.COM,12.00,58260 | [8523] Meals and entertainment\n" +
		"THE KEG STEAKHOUSE,88.00,58260 | [8523] Meals and entertainment\n" +
		"BROKEN ROW,1.00,no code here\n"

	hints, err := r.LoadVendorHints(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadVendorHints: %v", err)
	}
	if hints.Len() != 2 {
		t.Fatalf("Len = %d, want 2", hints.Len())
	}

	h, ok := hints.Lookup("DIGITALOCEAN.COM", "DIGITALOCEAN.COM NY")
	if !ok {
		t.Fatal("expected a hint for digitalocean")
	}
	if h.TaxCode != "8810" || h.Category != "office_expenses" || h.Votes != 2 {
		t.Errorf("hint = %+v", h)
	}

	h, ok = hints.Lookup("THE", "THE KEG #44")
	if !ok || h.Outcome().DeductiblePct != 50 {
		t.Errorf("keg hint = %+v, ok=%v", h, ok)
	}

	if _, ok := hints.Lookup("ACME", "ACME WIDGETS"); ok {
		t.Error("expected no hint for unknown vendor")
	}
}

func TestLoadVendorHintsRequiresColumns(t *testing.T) {
	_, err := Default().LoadVendorHints(strings.NewReader("Date,Amount\n2024-01-01,1.00\n"))
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "version: 1\nexpenses:\n  - name: books\n    contains: [\"INDIGO\"]\n    category: office_expenses\n    tax_code: \"8810\"\n    deductible_pct: 100\n    treatment: standard\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Expenses) != 1 || !r.Expenses[0].Match("indigo books") {
		t.Errorf("unexpected expenses: %+v", r.Expenses)
	}

	if _, err := Parse([]byte("version: 2\n")); err == nil {
		t.Error("expected version error")
	}
}
