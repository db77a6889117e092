package ident

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Guardian Storage Ltd.": "guardian-storage-ltd",
		"  ":                    "unknown",
		"Café & Bar":            "caf-bar",
		"AMZN*Mktp/CA":          "amzn-mktp-ca",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slug(strings.Repeat("a", 60)); len(got) != 40 {
		t.Errorf("Slug should cap at 40 chars, got %d", len(got))
	}
}

func TestShortHash(t *testing.T) {
	// sha1("abc") = a9993e364706816aba3e25717850c26c9cd0d89d
	if got := ShortHash("abc"); got != "a9993e3647" {
		t.Errorf("ShortHash = %q", got)
	}
}

func TestDocument(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 3, Day: 9}
	got := Document(d, "Rogers", decimal.NewNullDecimal(decimal.RequireFromString("85.5")), "CAD", "FY2025/receipts/rogers.md")
	want := "doc-20250309-rogers-85.50CAD-" + ShortHash("FY2025/receipts/rogers.md")
	if got != want {
		t.Errorf("Document = %q, want %q", got, want)
	}

	got = Document(civil.Date{}, "", decimal.NullDecimal{}, "CAD", "x.md")
	if !strings.HasPrefix(got, "doc-unknown-unknown-naCAD-") {
		t.Errorf("Document without fields = %q", got)
	}
}

func TestTransactionStableAndLocatorSensitive(t *testing.T) {
	in := TransactionInput{
		FiscalYear:  2025,
		SourceType:  "bank_csv",
		Kind:        "bank",
		SourceFile:  "FY2025/bank.csv",
		Locator:     "line=4",
		Date:        civil.Date{Year: 2025, Month: 1, Day: 2},
		Description: "MONTHLY PLAN FEE",
		CADAmount:   decimal.RequireFromString("-19"),
	}
	a := Transaction(in)
	if a != Transaction(in) {
		t.Fatal("Transaction id is not stable")
	}
	if !strings.HasPrefix(a, "tx-2025-bank-20250102-") {
		t.Errorf("unexpected prefix: %s", a)
	}
	in.Locator = "line=5"
	if Transaction(in) == a {
		t.Error("identical rows at different locators must differ")
	}
}

func TestAllocationDeterministic(t *testing.T) {
	a := Allocation("tx-2025-bank-20250102-abc")
	if a != Allocation("tx-2025-bank-20250102-abc") {
		t.Fatal("Allocation id is not stable")
	}
	if a == Allocation("tx-2025-bank-20250102-abd") {
		t.Error("different transactions must get different allocation ids")
	}
	if !strings.HasPrefix(a, "alloc-") || len(a) != len("alloc-")+36 {
		t.Errorf("unexpected allocation id %q", a)
	}
}
