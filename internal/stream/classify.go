package stream

import (
	"regexp"
	"strings"
)

// Kind is the classification outcome for the latest turn (spec §4.13).
type Kind string

const (
	KindReportFollowUp Kind = "report_follow_up"
	KindReportRequest  Kind = "report_request"
	KindChat           Kind = "chat"
)

// ReportFollowUp is the explicit follow-up payload the chat endpoint
// accepts alongside messages (spec §6: "report_followup?:
// {report_type, thread_id, refresh_data?}").
type ReportFollowUp struct {
	ReportType  string
	ThreadID    string
	RefreshData bool
}

// Decision is the result of classifying one chat turn.
type Decision struct {
	Kind Kind

	// Populated for KindReportFollowUp.
	FollowUp ReportFollowUp

	// Populated for KindReportRequest.
	ReportType string
	Ticker     string
	Sector     string
}

// reportPattern is one bank/institution-specific detector, checked in
// order (spec §4.13: "bank/institution-specific first, then generic").
type reportPattern struct {
	reportType string
	re         *regexp.Regexp
}

// reportPatterns is ordered most-specific-institution-name first; the
// last two entries are the generic "screener"/"report" catch-alls so a
// message naming no institution still resolves to a report type when it
// clearly asks for one.
var reportPatterns = []reportPattern{
	{"citadel_technical", regexp.MustCompile(`(?i)\bcitadel\b.*\btechnical\b`)},
	{"goldman_screener", regexp.MustCompile(`(?i)\bgoldman\b.*\bscreen`)},
	{"blackrock_portfolio_review", regexp.MustCompile(`(?i)\bblackrock\b.*\bportfolio\b`)},
	{"morgan_stanley_wealth", regexp.MustCompile(`(?i)\bmorgan\s*stanley\b.*\bwealth\b`)},
	{"jpmorgan_earnings_preview", regexp.MustCompile(`(?i)\bj\.?p\.?\s*morgan\b.*\bearnings\b`)},
	{"bridgewater_macro", regexp.MustCompile(`(?i)\bbridgewater\b.*\bmacro\b`)},
	{"renaissance_quant_signals", regexp.MustCompile(`(?i)\brenaissance\b.*\b(quant|signal)`)},
	{"two_sigma_risk", regexp.MustCompile(`(?i)\btwo\s*sigma\b.*\brisk\b`)},
	{"vanguard_dividend_safety", regexp.MustCompile(`(?i)\bvanguard\b.*\bdividend\b`)},
	{"ark_innovation_thematic", regexp.MustCompile(`(?i)\bark\b.*\b(innovation|thematic)\b`)},
	{"citadel_technical", regexp.MustCompile(`(?i)\btechnical\b.*\breport\b`)},
	{"goldman_screener", regexp.MustCompile(`(?i)\bscreener?\b`)},
}

var bracketTickerRE = regexp.MustCompile(`\[([A-Z]{1,5})\]`)
var analyzeTickerRE = regexp.MustCompile(`(?i)\banalyze\s*:\s*([A-Za-z]{1,5})\b`)
var uppercaseTokenRE = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// sectorKeywords maps a lowercase phrase found in the message to the
// sector name reports that accept a sector payload expect.
var sectorKeywords = map[string]string{
	"technology":  "Technology",
	"tech sector": "Technology",
	"healthcare":  "Healthcare",
	"financials":  "Financials",
	"financial":   "Financials",
	"energy":      "Energy",
	"industrials": "Industrials",
	"utilities":   "Utilities",
	"real estate": "Real Estate",
	"materials":   "Materials",
	"consumer":    "Consumer",
}

// Classify implements spec §4.13's three-way split. followUp is the
// explicit payload carried alongside the request, if any; it always wins
// when present. messages is the turn history; only the latest message's
// content is pattern-matched.
func Classify(followUp *ReportFollowUp, messages []string) Decision {
	if followUp != nil && followUp.ReportType != "" && followUp.ThreadID != "" {
		return Decision{Kind: KindReportFollowUp, FollowUp: *followUp}
	}

	if len(messages) == 0 {
		return Decision{Kind: KindChat}
	}
	latest := messages[len(messages)-1]

	for _, p := range reportPatterns {
		if p.re.MatchString(latest) {
			return Decision{
				Kind:       KindReportRequest,
				ReportType: p.reportType,
				Ticker:     extractTicker(latest),
				Sector:     extractSector(latest),
			}
		}
	}

	return Decision{Kind: KindChat}
}

// extractTicker tries, in order: a bracketed token ([PLTR]), an
// "analyze: TICKER" phrase, then the last bare 2-5 char uppercase token
// in the message (spec §4.13).
func extractTicker(text string) string {
	if m := bracketTickerRE.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := analyzeTickerRE.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	matches := uppercaseTokenRE.FindAllString(text, -1)
	if len(matches) > 0 {
		return matches[len(matches)-1]
	}
	return ""
}

// extractSector returns the canonical sector name for a sector keyword
// found in text, case-insensitively. Keywords are tried in map order, so
// when text names several sectors which one is returned is not defined.
func extractSector(text string) string {
	lower := strings.ToLower(text)
	for keyword, sector := range sectorKeywords {
		if strings.Contains(lower, keyword) {
			return sector
		}
	}
	return ""
}
