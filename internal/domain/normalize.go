package domain

import (
	"regexp"
	"strings"
)

// bracketRe matches a single bracketed annotation such as a footnote marker,
// e.g. "Mumbai[1]" -> "[1]". Non-greedy so text between two annotations survives.
var bracketRe = regexp.MustCompile(`\[[^\]]*\]`)

// NormalizeCityName produces the cross-source join key for a city name:
// bracketed annotations are removed, "City, Region" labels are cut to the
// city part, and surrounding whitespace is trimmed. It is idempotent.
func NormalizeCityName(s string) string {
	s = bracketRe.ReplaceAllString(s, "")
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
