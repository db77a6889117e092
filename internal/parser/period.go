package parser

import (
	"regexp"
	"strconv"

	"cloud.google.com/go/civil"

	"github.com/KitsFC/kefelan-year-end/internal/models"
)

var (
	periodPattern = regexp.MustCompile(`(?i)STATEMENT\s+PERIOD\s*[:|]?\s*([A-Za-z]+\.?\s*[0-9]{1,2},\s*20[0-9]{2})\s*(?:to|-|–|—)\s*([A-Za-z]+\.?\s*[0-9]{1,2},\s*20[0-9]{2})`)
	periodDate    = regexp.MustCompile(`^([A-Za-z]+)\.?\s*([0-9]{1,2}),\s*(20[0-9]{2})$`)
)

// period is the statement period currently in force while scanning.
type period struct {
	models.Period
	set bool
}

// matchPeriod finds a statement period header in line.
func matchPeriod(line string) (models.Period, bool) {
	m := periodPattern.FindStringSubmatch(line)
	if m == nil {
		return models.Period{}, false
	}
	start, ok1 := parsePeriodDate(m[1])
	end, ok2 := parsePeriodDate(m[2])
	if !ok1 || !ok2 || end.Before(start) {
		return models.Period{}, false
	}
	return models.Period{Start: start, End: end}, true
}

func parsePeriodDate(s string) (civil.Date, bool) {
	m := periodDate.FindStringSubmatch(normWS(s))
	if m == nil {
		return civil.Date{}, false
	}
	mon, ok := models.MonthFromName(m[1])
	if !ok {
		return civil.Date{}, false
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	d := civil.Date{Year: year, Month: mon, Day: day}
	return d, d.IsValid()
}

// date resolves a month/day inside the period. A period that spans a year
// boundary assigns months at or after its start month to the start year and
// the rest to the end year.
func (p period) date(md monthDay) (civil.Date, bool) {
	year := p.End.Year
	if p.Start.Year != p.End.Year && md.month >= p.Start.Month {
		year = p.Start.Year
	}
	d := civil.Date{Year: year, Month: md.month, Day: md.day}
	return d, d.IsValid()
}
