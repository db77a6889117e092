package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Row is one <tr> of an HTML table embedded in Markdown.
type Row struct {
	// Index is 1-based across the whole document.
	Index int
	Cells []string
}

// Text joins the row's cells with tabs, keeping line breaks inside cells.
func (r Row) Text() string {
	return strings.Join(r.Cells, "\t")
}

var trOpen = regexp.MustCompile(`(?i)<\s*tr\b`)

// HasTableRows reports whether raw contains HTML table rows.
func HasTableRows(raw string) bool {
	return trOpen.MatchString(raw)
}

// TableRows tokenizes raw Markdown-with-HTML and returns every table row with
// its cell texts. Tags inside cells are dropped, <br> becomes a newline and
// entities are decoded. Text outside rows is ignored.
func TableRows(raw string) []Row {
	z := html.NewTokenizer(strings.NewReader(raw))

	var (
		rows   []Row
		cur    *Row
		cell   strings.Builder
		inCell bool
		index  int
	)
	closeCell := func() {
		if !inCell || cur == nil {
			return
		}
		cur.Cells = append(cur.Cells, cleanCell(cell.String()))
		cell.Reset()
		inCell = false
	}
	closeRow := func() {
		closeCell()
		if cur != nil {
			rows = append(rows, *cur)
			cur = nil
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			closeRow()
			return rows
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "tr":
				closeRow()
				index++
				cur = &Row{Index: index}
			case "td", "th":
				closeCell()
				if cur == nil {
					index++
					cur = &Row{Index: index}
				}
				inCell = true
			case "br":
				if inCell {
					cell.WriteByte('\n')
				}
			case "p", "div", "li":
				if inCell && cell.Len() > 0 {
					cell.WriteByte('\n')
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "td", "th":
				closeCell()
			case "tr":
				closeRow()
			case "table":
				closeRow()
			}
		case html.TextToken:
			if inCell {
				cell.Write(z.Text())
			}
		}
	}
}

// cleanCell trims each line of a cell and drops empty lines.
func cleanCell(s string) string {
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(strings.Join(strings.Fields(ln), " "))
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return strings.Join(lines, "\n")
}

// StripHTML converts Markdown with embedded HTML to plain text lines. Row,
// paragraph and break tags end a line and cell ends become tabs, so table
// rows keep their column boundaries.
func StripHTML(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p", "tr", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte('\n')
			case "td", "th":
				b.WriteByte('\t')
			}
		}
	}
}
