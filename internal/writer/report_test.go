package writer

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/reconciler"
)

func TestOwedReportMarkdown(t *testing.T) {
	d := civil.Date{Year: 2025, Month: 2, Day: 1}
	docs := []models.Document{
		{
			ID:         "doc-open",
			Type:       models.DocInvoice,
			Date:       d,
			Vendor:     "Capiche",
			Amount:     decimal.NewNullDecimal(decimal.RequireFromString("1234.56")),
			Currency:   "CAD",
			SourceFile: "FY2025/evidence/Kefelan_Invoice_KS2025020101_Capiche.md",
		},
		{
			ID:       "doc-usd",
			Type:     models.DocInvoice,
			Date:     d,
			Vendor:   "GitHub",
			Amount:   decimal.NewNullDecimal(decimal.RequireFromString("10")),
			Currency: "USD",
		},
	}
	txs := []*models.Transaction{
		{ID: "tx-near", Date: d, CADAmount: decimal.RequireFromString("1200"), AccountOwner: models.OwnerCorporate, AccountName: "Chequing", Description: "E-TRANSFER CAPICHE"},
	}
	out := OwedReportMarkdown(reconciler.Reconcile(2025, "CAD", docs, txs))

	for _, want := range []string{
		"# FY2025 owed-candidate report (conservative)",
		"## Summary",
		"Invoices scanned: 2",
		"## CAD invoice candidates (no exact 1:1 match)",
		"### doc-open",
		"linked_transactions: 0",
		"tx-near",
		"34.56",
		"## Non-CAD invoices (manual review)",
		"amount: `$1,234.56 CAD`",
		"doc-usd | 2025-02-01 | GitHub | $10.00 USD",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\r") {
		t.Error("report must use LF line endings")
	}
	if strings.Index(out, "## Summary") > strings.Index(out, "## Non-CAD invoices") {
		t.Error("sections out of order")
	}
}

func TestOwedReportEmpty(t *testing.T) {
	out := OwedReportMarkdown(reconciler.Report{FiscalYear: 2025, Domestic: "CAD"})
	if strings.Count(out, "(none)") != 2 {
		t.Errorf("expected two empty sections:\n%s", out)
	}
}
