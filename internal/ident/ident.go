// Package ident derives stable identifiers from record content so reruns
// over unchanged inputs produce the same ids.
package ident

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/money"
)

// allocationSpace namespaces allocation UUIDs.
var allocationSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/KitsFC/kefelan-year-end/allocation"))

// ShortHash returns the first ten hex digits of the SHA-1 of s.
func ShortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}

// Slug lower-cases s and collapses runs of other characters to single
// hyphens, capped at 40 characters. Empty input gives "unknown".
func Slug(s string) string {
	var b strings.Builder
	hyphen := false
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		if c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)) {
			b.WriteRune(c)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 40 {
		out = strings.Trim(out[:40], "-")
	}
	if out == "" {
		return "unknown"
	}
	return out
}

func compactDate(d civil.Date) string {
	if !d.IsValid() {
		return "unknown"
	}
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// Document builds a document id from its date, vendor, amount, currency and
// source path.
func Document(date civil.Date, vendor string, amount decimal.NullDecimal, currency, sourceFile string) string {
	amt := "na"
	if amount.Valid {
		amt = money.Format(amount.Decimal)
	}
	return fmt.Sprintf("doc-%s-%s-%s%s-%s", compactDate(date), Slug(vendor), amt, currency, ShortHash(sourceFile))
}

// TransactionInput is the content a transaction id is derived from.
type TransactionInput struct {
	FiscalYear  int
	SourceType  string
	Kind        string
	SourceFile  string
	Locator     string
	Date        civil.Date
	Description string
	CADAmount   decimal.Decimal
}

// Transaction builds a transaction id. The locator keeps identical rows at
// different positions distinct.
func Transaction(in TransactionInput) string {
	base := strings.Join([]string{
		fmt.Sprint(in.FiscalYear),
		in.SourceType,
		in.SourceFile,
		in.Locator,
		in.Date.String(),
		in.Description,
		money.Format(in.CADAmount),
	}, "|")
	return fmt.Sprintf("tx-%d-%s-%s-%s", in.FiscalYear, in.Kind, compactDate(in.Date), ShortHash(base))
}

// Allocation derives a name-based UUID from the transaction id.
func Allocation(transactionID string) string {
	return "alloc-" + uuid.NewSHA1(allocationSpace, []byte(transactionID)).String()
}

// Asset builds a capital asset candidate id.
func Asset(date civil.Date, vendor, transactionID string) string {
	return fmt.Sprintf("asset-%s-%s-%s", compactDate(date), Slug(vendor), ShortHash(transactionID))
}
