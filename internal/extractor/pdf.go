package extractor

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ErrNoTextLayer is returned for PDFs whose pages carry no decodable text,
// such as scans.
var ErrNoTextLayer = errors.New("pdf has no readable text layer")

// ExtractPDFText reads the text layer of a PDF, page by page, joined with
// blank lines.
func ExtractPDFText(filePath string) (string, error) {
	pages, err := readPages(filePath)
	if err != nil {
		return "", fmt.Errorf("extractor: %s: %w", filePath, err)
	}
	if !isReadableText(pages) {
		return "", fmt.Errorf("extractor: %s: %w", filePath, ErrNoTextLayer)
	}
	return strings.Join(pages, "\n\n"), nil
}

// readPages decodes each page with the fonts it declares. Blank lines and
// trailing spaces are dropped so receipts read one label per line.
func readPages(filePath string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return nil, errors.New("pdf has no pages")
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		var lines []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimRightFunc(line, unicode.IsSpace); strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}

// textQuality is the share of ASCII letters, digits, whitespace and receipt
// punctuation in pages. Accented letters count as unreadable: identity-encoded
// fonts without a ToUnicode map decode to them.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"$€£%&@#!?+=*|_", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear on almost every receipt or invoice.
var commonWords = []string{
	"total", "amount", "invoice", "receipt", "date", "paid", "payment",
	"order", "tax", "gst", "hst", "subtotal", "balance", "due", "qty",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires >20 chars, >60% readable ASCII characters and at
// least one common word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 20 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
