package calc

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	hasYear      = regexp.MustCompile(`\d{4}`)
)

// dateParser accepts the layouts a spreadsheet export typically produces on
// top of the ISO and RFC forms jinzhu/now already knows. TimeFormats
// replaces the package defaults, so they are copied in first.
var dateParser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats: append(append([]string{}, now.TimeFormats...),
		"1/2/2006 15:4",
		"2006/1/2",
		"2006/1/2 15:4:5",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"Mon Jan 2 2006",
	),
}

// ParseDate parses s with the generic date layouts. Blank or unparseable
// input reports false. Values without a four-digit year are rejected so a
// bare time of day is never read as today's date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !hasYear.MatchString(s) {
		return time.Time{}, false
	}
	t, err := dateParser.Parse(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CalculateRatio divides two raw quantities. Each side is read like a
// spreadsheet would: the leading number wins and anything non-numeric is 0.
// A zero denominator yields NotAvailable, otherwise the quotient is fixed to
// two decimals.
func CalculateRatio(numerator, denominator string) string {
	num := parseLeadingFloat(numerator)
	den := parseLeadingFloat(denominator)
	if den.IsZero() {
		return NotAvailable
	}
	return num.Div(den).StringFixed(2)
}

func parseLeadingFloat(s string) decimal.Decimal {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return decimal.Zero
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// out of range
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
