package models

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DocumentType is the coarse kind of an evidence file.
type DocumentType string

const (
	DocInvoice      DocumentType = "invoice"
	DocReceipt      DocumentType = "receipt"
	DocConfirmation DocumentType = "confirmation"
	DocOther        DocumentType = "other"
)

// Document is a normalized evidence record.
type Document struct {
	ID             string              `json:"document_id"`
	Type           DocumentType        `json:"document_type"`
	Date           civil.Date          `json:"document_date"`
	Vendor         string              `json:"vendor"`
	Amount         decimal.NullDecimal `json:"amount"`
	Currency       string              `json:"currency"`
	GST            decimal.NullDecimal `json:"gst"`
	PST            decimal.NullDecimal `json:"pst"`
	SourceFile     string              `json:"source_file"`
	OriginalFormat string              `json:"original_format"`
	Notes          Notes               `json:"notes"`
}

// HasDate reports whether a document date was found.
func (d *Document) HasDate() bool {
	return d.Date.IsValid()
}

// Notes is an ordered list of free-text annotations joined with "; " on output.
type Notes []string

// Add appends a note unless it is empty or already present.
func (n *Notes) Add(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	for _, existing := range *n {
		if existing == note {
			return
		}
	}
	*n = append(*n, note)
}

func (n Notes) String() string {
	return strings.Join(n, "; ")
}
