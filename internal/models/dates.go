package models

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var monthsByPrefix = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// MonthFromName maps "Dec", "DEC.", "December" and similar to a month.
func MonthFromName(name string) (time.Month, bool) {
	name = strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if len(name) < 3 {
		return 0, false
	}
	m, ok := monthsByPrefix[name[:3]]
	return m, ok
}

// InWindow reports whether d lies in the inclusive window [start, end].
func InWindow(d, start, end civil.Date) bool {
	return !d.Before(start) && !d.After(end)
}

// Compare orders two dates, treating invalid (missing) dates as earliest.
func Compare(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
