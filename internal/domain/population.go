package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// ParsePopulation coerces a scraped population string to an integer by
// discarding every non-digit character. Bracketed footnote markers are removed
// first so "3,000,000[2]" yields 3000000 rather than 30000002. The second
// return value is false when no digits remain or the value overflows int64.
func ParsePopulation(raw string) (int64, bool) {
	raw = bracketRe.ReplaceAllString(raw, "")
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseCoordinate parses a scraped latitude or longitude. Degree signs and
// surrounding whitespace are tolerated.
func ParseCoordinate(s string) (float64, bool) {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '°'
	})
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
