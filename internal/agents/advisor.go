package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

var (
	motionRE  = regexp.MustCompile(`(?i)\b(up|down|rose|fell|drop|drops|dropped|surged|plunged|rallied|dipped|gained|lost|tanked|soared)\b`)
	intentRE  = regexp.MustCompile(`(?i)\b(why|what happened|explain|reason)\b`)
	horizonRE = regexp.MustCompile(`(?i)\b(week|month|today|yesterday|day|days)\b`)

	upWordRE   = regexp.MustCompile(`(?i)\b(up|rose|surged|rallied|gained|soared)\b`)
	downWordRE = regexp.MustCompile(`(?i)\b(down|fell|dropped|plunged|dipped|lost|tanked)\b`)
)

// companyAliases maps a handful of common company-name mentions to
// tickers, supplementing ExtractTickers' $TICKER/bare-ticker detection
// (spec §4.7's symbol-resolution order: explicit $TICKER, bare ticker,
// alias table, else first peer-result symbol).
var companyAliases = map[string]string{
	"apple":     "AAPL",
	"tesla":     "TSLA",
	"microsoft": "MSFT",
	"google":    "GOOGL",
	"alphabet":  "GOOGL",
	"amazon":    "AMZN",
	"nvidia":    "NVDA",
	"meta":      "META",
}

// isPriceMoveQuery implements the "motion+intent or motion+horizon"
// trigger pattern for the deterministic price-move explainer.
func isPriceMoveQuery(query string) bool {
	if !motionRE.MatchString(query) {
		return false
	}
	return intentRE.MatchString(query) || horizonRE.MatchString(query)
}

// AdvisorAgent is the advisor specialist (spec §4.7): a synthesis pass
// over peer results, with one deterministic subpath — the price-move
// explainer — for "why did $TICKER move" style queries.
type AdvisorAgent struct {
	MD  *marketdata.Service
	LLM llm.Client
}

func NewAdvisorAgent(md *marketdata.Service, client llm.Client) *AdvisorAgent {
	return &AdvisorAgent{MD: md, LLM: client}
}

func (a *AdvisorAgent) Name() orchestrator.AgentName { return orchestrator.AgentAdvisor }

func (a *AdvisorAgent) Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	query := compositeQuery(tasks)

	var result orchestrator.AgentResult
	if isPriceMoveQuery(query) {
		result = a.explainPriceMove(ctx, query, state)
	} else {
		result = a.synthesize(ctx, query, state)
	}

	if result.Error != "" {
		markTerminal(state, tasks, orchestrator.TaskFailed)
	} else {
		markTerminal(state, tasks, orchestrator.TaskCompleted)
	}
	state.AgentResults[orchestrator.AgentAdvisor] = result
	return result
}

// resolveSymbol implements spec §4.7's order: explicit $TICKER, bare
// ticker, alias table, else the first symbol seen in peer agent results.
func (a *AdvisorAgent) resolveSymbol(query string, state *orchestrator.ConversationState) string {
	if tickers := ExtractTickers(query); len(tickers) > 0 {
		return tickers[0]
	}
	lower := strings.ToLower(query)
	for name, ticker := range companyAliases {
		if strings.Contains(lower, name) {
			return ticker
		}
	}
	for _, agent := range []orchestrator.AgentName{
		orchestrator.AgentMarketData, orchestrator.AgentFundamentals,
		orchestrator.AgentTechnicalAnalysis, orchestrator.AgentSentiment, orchestrator.AgentMacro,
	} {
		if r, ok := state.AgentResults[agent]; ok && len(r.Symbols) > 0 {
			return r.Symbols[0]
		}
	}
	return ""
}

// reversalSnapshot is start→peak→end over the resolved horizon.
type reversalSnapshot struct {
	StartDate, PeakDate, EndDate    string
	StartClose, PeakClose, EndClose float64
	NetChangePct                   float64
}

func computeReversal(history []marketdata.HistoryRow) (reversalSnapshot, bool) {
	if len(history) < 2 {
		return reversalSnapshot{}, false
	}
	start := history[0]
	end := history[len(history)-1]
	peak := history[0]
	for _, row := range history {
		if row.Close > peak.Close {
			peak = row
		}
	}
	netPct := 0.0
	if start.Close != 0 {
		netPct = (end.Close - start.Close) / start.Close * 100
	}
	return reversalSnapshot{
		StartDate: start.Date, PeakDate: peak.Date, EndDate: end.Date,
		StartClose: start.Close, PeakClose: peak.Close, EndClose: end.Close,
		NetChangePct: netPct,
	}, true
}

// classifySubIntent flags a mismatch between the query's directional
// wording and the actual net move, e.g. "up but then dropped" when the
// user said "up" but the computed net change is negative.
func classifySubIntent(query string, snap reversalSnapshot) string {
	saidUp := upWordRE.MatchString(query)
	saidDown := downWordRE.MatchString(query)
	switch {
	case saidUp && snap.NetChangePct < 0:
		return "up but then dropped"
	case saidDown && snap.NetChangePct > 0:
		return "down but then recovered"
	default:
		return "consistent"
	}
}

func (a *AdvisorAgent) historyFor(ctx context.Context, symbol string, days int, state *orchestrator.ConversationState) []marketdata.HistoryRow {
	if prior, ok := state.AgentResults[orchestrator.AgentMarketData]; ok {
		if payload, ok := prior.Data.(Payload); ok && payload.History != nil {
			if rows, ok := payload.History[symbol]; ok && len(rows) >= 2 {
				return rows
			}
		}
	}
	return a.MD.History(ctx, symbol, days)
}

func (a *AdvisorAgent) explainPriceMove(ctx context.Context, query string, state *orchestrator.ConversationState) orchestrator.AgentResult {
	symbol := a.resolveSymbol(query, state)
	if symbol == "" {
		return orchestrator.AgentResult{Agent: orchestrator.AgentAdvisor, Error: "advisor: could not resolve a symbol for price-move question"}
	}

	horizon := ResolveHorizonDays(query)
	history := a.historyFor(ctx, symbol, horizon, state)
	snap, ok := computeReversal(history)
	if !ok {
		return orchestrator.AgentResult{Agent: orchestrator.AgentAdvisor, Symbols: []string{symbol},
			Error: fmt.Sprintf("advisor: insufficient price history for %s over %d days", symbol, horizon)}
	}

	subIntent := classifySubIntent(query, snap)

	var drivers []string
	if sentiment, ok := state.AgentResults[orchestrator.AgentSentiment]; ok && sentiment.Content != "" {
		drivers = append(drivers, sentiment.Content)
	}
	if fundamentals, ok := state.AgentResults[orchestrator.AgentFundamentals]; ok && fundamentals.Content != "" {
		drivers = append(drivers, fundamentals.Content)
	}

	confidence := "low"
	switch {
	case len(drivers) >= 2:
		confidence = "high"
	case len(drivers) == 1:
		confidence = "medium"
	}

	var md strings.Builder
	fmt.Fprintf(&md, "## Direct answer\n%s moved %+.2f%% over the last %d days (%s).\n\n", symbol, snap.NetChangePct, horizon, subIntent)
	fmt.Fprintf(&md, "## Price Action\n| Point | Date | Close |\n|---|---|---|\n| Start | %s | $%.2f |\n| Peak | %s | $%.2f |\n| End | %s | $%.2f |\n\n",
		snap.StartDate, snap.StartClose, snap.PeakDate, snap.PeakClose, snap.EndDate, snap.EndClose)
	md.WriteString("## Likely Drivers & Risk/Confidence\n")
	if len(drivers) == 0 {
		md.WriteString("No corroborating news or sentiment signal was available this turn.\n")
	} else {
		for _, d := range drivers {
			fmt.Fprintf(&md, "- %s\n", d)
		}
	}
	fmt.Fprintf(&md, "\nConfidence: %s\n", confidence)

	return orchestrator.AgentResult{
		Agent:   orchestrator.AgentAdvisor,
		Content: md.String(),
		Symbols: []string{symbol},
		Data:    snap,
	}
}

// synthesize is the non-explainer advisor path: an LLM synthesis over
// every peer specialist's content so far.
func (a *AdvisorAgent) synthesize(ctx context.Context, query string, state *orchestrator.ConversationState) orchestrator.AgentResult {
	var sections strings.Builder
	var symbols []string
	for _, agent := range []orchestrator.AgentName{
		orchestrator.AgentMarketData, orchestrator.AgentFundamentals,
		orchestrator.AgentTechnicalAnalysis, orchestrator.AgentSentiment, orchestrator.AgentMacro,
	} {
		r, ok := state.AgentResults[agent]
		if !ok || r.Content == "" {
			continue
		}
		fmt.Fprintf(&sections, "### %s\n%s\n\n", agent, r.Content)
		symbols = append(symbols, r.Symbols...)
	}

	system := "You are a financial advisory specialist synthesizing peer research into one recommendation. Be concise and evidence-based."
	prompt := fmt.Sprintf("Peer research:\n%s\nQuestion: %s", sections.String(), query)

	content, err := a.LLM.Complete(ctx, system, prompt)
	if err != nil {
		return orchestrator.AgentResult{Agent: orchestrator.AgentAdvisor, Symbols: symbols, Error: err.Error()}
	}

	return orchestrator.AgentResult{Agent: orchestrator.AgentAdvisor, Content: content, Symbols: symbols}
}
