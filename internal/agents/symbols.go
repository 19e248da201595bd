package agents

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dollarTickerRE = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)
	bareTickerRE   = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	dayCountRE     = regexp.MustCompile(`(\d+)\s*-?\s*day`)
)

// commonWords excludes bare-uppercase false positives ("I", "A", "OK")
// that would otherwise be mistaken for tickers.
var commonWords = map[string]bool{
	"I": true, "A": true, "OK": true, "THE": true, "IS": true, "AND": true,
	"OR": true, "TO": true, "IN": true, "ON": true, "FOR": true, "VS": true,
	"US": true, "CEO": true, "CFO": true, "IPO": true, "ETF": true, "GDP": true,
}

// ExtractTickers finds explicit $TICKER mentions first (most confident
// signal), then falls back to bare all-caps tokens of 1-5 letters,
// excluding a short stoplist of common all-caps words. Order is
// preserved and duplicates removed, matching the "first symbol seen"
// resolution rule used across specialists (spec §4.7).
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, m := range dollarTickerRE.FindAllStringSubmatch(text, -1) {
		t := strings.ToUpper(m[1])
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, m := range bareTickerRE.FindAllString(text, -1) {
		if commonWords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// ParseDayCount extracts an explicit day count ("30-day", "90 day") from
// text, falling back to named-horizon phrases, and finally a default.
func ParseDayCount(text string, fallback int) int {
	lower := strings.ToLower(text)
	if m := dayCountRE.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	switch {
	case strings.Contains(lower, "past week") || strings.Contains(lower, "last week"):
		return 7
	case strings.Contains(lower, "past month") || strings.Contains(lower, "last month"):
		return 30
	case strings.Contains(lower, "past year") || strings.Contains(lower, "last year"):
		return 365
	}
	return fallback
}

// ResolveHorizonDays implements the advisor's horizon-resolution rule
// exactly (spec §4.7): "past week"/"last week" → 7, "past month"/"last
// month" → 30, else 7.
func ResolveHorizonDays(text string) int {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "past week") || strings.Contains(lower, "last week"):
		return 7
	case strings.Contains(lower, "past month") || strings.Contains(lower, "last month"):
		return 30
	default:
		return 7
	}
}
