package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
)

func newExtractor() *Extractor {
	return New(rules.Default(), "CAD", zerolog.Nop())
}

func TestExtractInvoice(t *testing.T) {
	text := `# Guardian Storage Ltd.

Invoice #4411
Date: March 9, 2025

Unit rental        $80.00
Subtotal           $80.00
GST                 4.00
Total due          $84.00
`
	doc := newExtractor().Extract(text, "FY2025/evidence/guardian_2025-03-09.md")

	if doc.Type != models.DocInvoice {
		t.Errorf("Type = %s, want invoice", doc.Type)
	}
	if want := (civil.Date{Year: 2025, Month: 3, Day: 9}); doc.Date != want {
		t.Errorf("Date = %s, want %s", doc.Date, want)
	}
	if doc.Vendor != "guardian" {
		t.Errorf("Vendor = %q", doc.Vendor)
	}
	if !doc.Amount.Valid || !doc.Amount.Decimal.Equal(decimal.RequireFromString("84")) {
		t.Errorf("Amount = %v, want 84.00", doc.Amount)
	}
	if !doc.GST.Valid || !doc.GST.Decimal.Equal(decimal.RequireFromString("4")) {
		t.Errorf("GST = %v, want 4.00", doc.GST)
	}
	if doc.Currency != "CAD" {
		t.Errorf("Currency = %s", doc.Currency)
	}
	if len(doc.Notes) != 0 {
		t.Errorf("unexpected notes: %v", doc.Notes)
	}
	if !strings.HasPrefix(doc.ID, "doc-20250309-guardian-84.00CAD-") {
		t.Errorf("ID = %s", doc.ID)
	}
}

func TestExtractVendorFromContentWhenFilenameDenied(t *testing.T) {
	text := "<div>\n\n**Rogers Communications**\n\nThank you for your payment\nAmount: $85.50\n"
	doc := newExtractor().Extract(text, "receipts/fy2025_receipt_2025-02-01.md")
	if doc.Vendor != "Rogers Communications" {
		t.Errorf("Vendor = %q", doc.Vendor)
	}
	if doc.Type != models.DocReceipt {
		t.Errorf("Type = %s, want receipt", doc.Type)
	}
}

func TestExtractVendorOverride(t *testing.T) {
	doc := newExtractor().Extract("Your transfer was completed successfully. $500.00", "tdct_transfer_20250110.md")
	if doc.Vendor != "TD Canada Trust" {
		t.Errorf("Vendor = %q", doc.Vendor)
	}
	if doc.Type != models.DocConfirmation {
		t.Errorf("Type = %s, want confirmation", doc.Type)
	}
	if want := (civil.Date{Year: 2025, Month: 1, Day: 10}); doc.Date != want {
		t.Errorf("Date = %s", doc.Date)
	}
}

func TestAmountScoring(t *testing.T) {
	pad := strings.Repeat(".\n", 50)
	tests := []struct {
		name     string
		text     string
		want     string
		explicit bool
	}{
		{"total beats larger line item", "Laptop $1,200.00" + pad + "Discount $-300.00" + pad + "Total: $900.00", "900", true},
		{"subtotal alone loses", "Subtotal $100.00" + pad + "Charged $105.00", "105", false},
		{"largest when unmarked", "Item $5.00\nItem $12.50", "12.5", false},
		{"sub-total next to total", "Sub-total $40.00\nTotal $42.00", "42", true},
		{"subtotal before a discount", "Acme Tools\nSubtotal: $100.00\nDiscount: -$10.00\nTotal: $90.00\n", "90", true},
		{"label on the line above", "Total due\n\n$42.00\nItem $60.00", "42", true},
		{"label owns only the next amount", "Total: $10.00 $99.00", "10", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, explicit, found := bestAmount(tt.text)
			if !found {
				t.Fatal("no amount found")
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("amount = %s, want %s", got, tt.want)
			}
			if explicit != tt.explicit {
				t.Errorf("explicit = %v, want %v", explicit, tt.explicit)
			}
		})
	}
}

func hasNote(doc models.Document, note string) bool {
	for _, n := range doc.Notes {
		if n == note {
			return true
		}
	}
	return false
}

func TestMissingFieldsAreNoted(t *testing.T) {
	e := newExtractor()

	doc := e.Extract("", "scans/_20250101.md")
	if !hasNote(doc, NoteAmountMissing) || !hasNote(doc, NoteVendorMissing) {
		t.Errorf("notes = %v", doc.Notes)
	}
	if hasNote(doc, NoteDateMissing) {
		t.Error("date should come from the filename")
	}
	if !strings.HasPrefix(doc.ID, "doc-20250101-unknown-naCAD-") {
		t.Errorf("ID = %s", doc.ID)
	}

	// A denied filename candidate is still the last resort.
	doc = e.Extract("", "scans/receipt.md")
	if doc.Vendor != "receipt" {
		t.Errorf("Vendor = %q", doc.Vendor)
	}
	if !hasNote(doc, NoteDateMissing) {
		t.Errorf("notes = %v", doc.Notes)
	}
}

func TestDateFromText(t *testing.T) {
	tests := []struct {
		text string
		want civil.Date
	}{
		{"Paid on 2025-04-30 via card", civil.Date{Year: 2025, Month: 4, Day: 30}},
		{"Issued 14 February 2025", civil.Date{Year: 2025, Month: 2, Day: 14}},
		{"Order placed Sept. 3, 2024", civil.Date{Year: 2024, Month: 9, Day: 3}},
		{"Date 06/15/25", civil.Date{Year: 2025, Month: 6, Day: 15}},
		{"Flight 7 Jun'25", civil.Date{Year: 2025, Month: 6, Day: 7}},
		{"Bad 2025-02-30 then 2025-03-01", civil.Date{Year: 2025, Month: 3, Day: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := dateFromText(tt.text)
			if !ok || got != tt.want {
				t.Errorf("dateFromText = %s (%v), want %s", got, ok, tt.want)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	e := newExtractor()
	tests := map[string]string{
		"Total $20.00":                "CAD",
		"Amount charged US$ 15.00":    "USD",
		"Price 10.00 EUR, approx USD": "EUR",
		"usd lowercase ignored":       "CAD",
	}
	for text, want := range tests {
		if got := e.currency(text); got != want {
			t.Errorf("currency(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestExtractFileUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := newExtractor().ExtractFile(path, "evidence/broken.pdf")
	if doc.OriginalFormat != "pdf" {
		t.Errorf("OriginalFormat = %s", doc.OriginalFormat)
	}
	if !strings.Contains(doc.Notes.String(), "unreadable source") {
		t.Errorf("notes = %v", doc.Notes)
	}
}

func TestExtractFilePDF(t *testing.T) {
	doc := newExtractor().ExtractFile(filepath.Join("testdata", "guardian_2025-01-15.pdf"), "evidence/guardian_2025-01-15.pdf")

	if doc.OriginalFormat != "pdf" || doc.Type != models.DocInvoice {
		t.Errorf("format = %s, type = %s", doc.OriginalFormat, doc.Type)
	}
	if doc.Vendor != "guardian" {
		t.Errorf("Vendor = %q", doc.Vendor)
	}
	if !doc.Amount.Valid || !doc.Amount.Decimal.Equal(decimal.RequireFromString("84")) {
		t.Errorf("Amount = %v, want 84.00", doc.Amount)
	}
	if !doc.GST.Valid || !doc.GST.Decimal.Equal(decimal.RequireFromString("4")) {
		t.Errorf("GST = %v, want 4.00", doc.GST)
	}
	if len(doc.Notes) != 0 {
		t.Errorf("unexpected notes: %v", doc.Notes)
	}
}
