package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

var compareKeywords = []string{"compare", "vs", "versus", "against"}

func mentionsCompare(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range compareKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Payload is market_data's AgentResult.Data shape: the per-symbol price
// history it fetched this turn, which technical_analysis reads directly
// rather than re-fetching (spec §4.7: "reads the projected price history
// from the prior result").
type Payload struct {
	History map[string][]marketdata.HistoryRow
	Deltas  any
}

// MarketDataAgent is the market_data specialist (spec §4.7): a
// deterministic path handles multi-symbol history comparisons directly;
// everything else is narrated by the LLM over fetched quote/history data.
type MarketDataAgent struct {
	MD  *marketdata.Service
	LLM llm.Client
}

func NewMarketDataAgent(md *marketdata.Service, client llm.Client) *MarketDataAgent {
	return &MarketDataAgent{MD: md, LLM: client}
}

func (a *MarketDataAgent) Name() orchestrator.AgentName { return orchestrator.AgentMarketData }

func (a *MarketDataAgent) Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	query := compositeQuery(tasks)
	tickers := ExtractTickers(query)

	var result orchestrator.AgentResult
	if len(tickers) >= 2 && mentionsCompare(query) {
		result = a.runComparison(ctx, tickers, query)
	} else {
		result = a.runNarrated(ctx, tickers, query)
	}

	if result.Error != "" {
		markTerminal(state, tasks, orchestrator.TaskFailed)
	} else {
		markTerminal(state, tasks, orchestrator.TaskCompleted)
	}
	state.AgentResults[orchestrator.AgentMarketData] = result
	return result
}

// runComparison builds a merged markdown table and per-symbol deltas
// without an LLM call, per spec §4.7's deterministic multi-symbol path.
func (a *MarketDataAgent) runComparison(ctx context.Context, tickers []string, query string) orchestrator.AgentResult {
	days := ParseDayCount(query, 30)

	type delta struct {
		Symbol    string
		StartDate string
		EndDate   string
		StartLast float64
		EndLast   float64
		ChangePct float64
	}

	var deltas []delta
	var rows []string
	rows = append(rows, "| Symbol | Start | End | Change |", "|---|---|---|---|")
	histories := make(map[string][]marketdata.HistoryRow, len(tickers))

	for _, symbol := range tickers {
		history := a.MD.History(ctx, symbol, days)
		histories[symbol] = history
		if len(history) < 2 {
			rows = append(rows, fmt.Sprintf("| %s | n/a | n/a | n/a |", symbol))
			continue
		}
		start := history[0]
		end := history[len(history)-1]
		changePct := 0.0
		if start.Close != 0 {
			changePct = (end.Close - start.Close) / start.Close * 100
		}
		deltas = append(deltas, delta{
			Symbol: symbol, StartDate: start.Date, EndDate: end.Date,
			StartLast: start.Close, EndLast: end.Close, ChangePct: changePct,
		})
		rows = append(rows, fmt.Sprintf("| %s | $%.2f (%s) | $%.2f (%s) | %+.2f%% |",
			symbol, start.Close, start.Date, end.Close, end.Date, changePct))
	}

	return orchestrator.AgentResult{
		Agent:   orchestrator.AgentMarketData,
		Content: strings.Join(rows, "\n"),
		Symbols: tickers,
		Data:    Payload{History: histories, Deltas: deltas},
	}
}

// runNarrated fetches quote and history data for every ticker (if any)
// and asks the LLM to answer the user's query grounded in it.
func (a *MarketDataAgent) runNarrated(ctx context.Context, tickers []string, query string) orchestrator.AgentResult {
	var dataCtx strings.Builder
	histories := make(map[string][]marketdata.HistoryRow, len(tickers))
	for _, symbol := range tickers {
		quote, ok := a.MD.Quote(ctx, symbol)
		if ok {
			fmt.Fprintf(&dataCtx, "%s quote: last=%.2f change=%.2f%%\n", symbol, quote.Price, quote.PercentChange)
		}
		history := a.MD.History(ctx, symbol, 200)
		histories[symbol] = history
		if len(history) > 0 {
			fmt.Fprintf(&dataCtx, "%s last %dd: %d bars, most recent close %.2f on %s\n",
				symbol, 200, len(history), history[len(history)-1].Close, history[len(history)-1].Date)
		}
	}

	system := "You are a market-data specialist. Answer using only the provided data; be concise."
	prompt := fmt.Sprintf("Data:\n%s\nQuestion: %s", dataCtx.String(), query)

	content, err := a.LLM.Complete(ctx, system, prompt)
	if err != nil {
		return orchestrator.AgentResult{Agent: orchestrator.AgentMarketData, Symbols: tickers, Data: Payload{History: histories}, Error: err.Error()}
	}

	return orchestrator.AgentResult{Agent: orchestrator.AgentMarketData, Content: content, Symbols: tickers, Data: Payload{History: histories}}
}
