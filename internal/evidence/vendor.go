package evidence

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/KitsFC/kefelan-year-end/internal/extractor"
)

const (
	vendorScanLines = 60
	vendorLineMax   = 80
)

var (
	stemDateSuffix = regexp.MustCompile(`[_-](20[0-9]{2}-?[0-9]{2}-?[0-9]{2}).*$`)
	amountOnlyLine = regexp.MustCompile(`(?i)^[0-9$][0-9, .]*(usd|cad)?$`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// vendor picks the vendor name: filename prefix overrides, then a usable
// filename stem, then the first plausible content line.
func (e *Extractor) vendor(name, text string) string {
	lname := strings.ToLower(name)
	for _, o := range e.rules.Vendors.Overrides {
		if o.Prefix != "" && strings.HasPrefix(lname, strings.ToLower(o.Prefix)) {
			return o.Vendor
		}
	}

	candidate := filenameVendor(name)
	if candidate != "" && !e.rules.Vendors.Denied(candidate) {
		return candidate
	}

	if v := e.contentVendor(text); v != "" {
		return v
	}
	return candidate
}

func filenameVendor(name string) string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	stem = stemDateSuffix.ReplaceAllString(stem, "")
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return strings.TrimSpace(spaceRun.ReplaceAllString(stem, " "))
}

func (e *Extractor) contentVendor(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > vendorScanLines {
		lines = lines[:vendorScanLines]
	}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "|") || strings.HasPrefix(line, "<") {
			continue
		}
		line = cleanLine(line)
		if line == "" || e.rules.Vendors.IsGeneric(line) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "http") || amountOnlyLine.MatchString(line) {
			continue
		}
		if len(line) > vendorLineMax || !strings.ContainsFunc(line, unicode.IsLetter) {
			continue
		}
		return line
	}
	return ""
}

// cleanLine drops markup and markdown decoration from a content line.
func cleanLine(line string) string {
	line = extractor.InlineText(extractor.StripHTML(line))
	line = strings.Map(func(r rune) rune {
		switch r {
		case '*', '>', '#', '`':
			return -1
		}
		return r
	}, line)
	return strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
}
