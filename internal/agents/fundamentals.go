package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/providers"
)

// FundamentalsAgent is the fundamentals specialist (spec §4.7): the LLM
// selects which mentioned tickers to pull a company_overview for, and a
// deterministic back-fill step fetches company_overview for any ticker
// the user mentioned that the LLM's selection missed, so a user-named
// symbol is never silently dropped from the research.
type FundamentalsAgent struct {
	Finviz *providers.FinvizClient
	LLM    llm.Client
}

func NewFundamentalsAgent(finviz *providers.FinvizClient, client llm.Client) *FundamentalsAgent {
	return &FundamentalsAgent{Finviz: finviz, LLM: client}
}

func (a *FundamentalsAgent) Name() orchestrator.AgentName { return orchestrator.AgentFundamentals }

func (a *FundamentalsAgent) Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	query := compositeQuery(tasks)
	mentioned := ExtractTickers(query)

	selected := a.selectTickers(ctx, query, mentioned)
	fetchSet := backfillMissing(selected, mentioned)

	overviews := make(map[string]map[string]string, len(fetchSet))
	for _, symbol := range fetchSet {
		data, err := a.Finviz.Overview(ctx, symbol)
		if err != nil {
			continue // a single symbol's scrape failure degrades, not fatal
		}
		overviews[symbol] = data
	}

	if len(overviews) == 0 && len(mentioned) > 0 {
		result := errorResult(state, orchestrator.AgentFundamentals, tasks, fmt.Errorf("fundamentals: no overview data available for %v", mentioned))
		state.AgentResults[orchestrator.AgentFundamentals] = result
		return result
	}

	content, err := a.narrate(ctx, query, overviews)
	if err != nil {
		result := errorResult(state, orchestrator.AgentFundamentals, tasks, err)
		state.AgentResults[orchestrator.AgentFundamentals] = result
		return result
	}

	markTerminal(state, tasks, orchestrator.TaskCompleted)
	result := orchestrator.AgentResult{
		Agent:   orchestrator.AgentFundamentals,
		Content: content,
		Symbols: fetchSet,
		Data:    overviews,
	}
	state.AgentResults[orchestrator.AgentFundamentals] = result
	return result
}

// selectTickers asks the LLM which mentioned tickers merit a fundamentals
// pull; a parse failure or empty response degrades to "select none",
// which the caller's back-fill step corrects for every mentioned ticker.
func (a *FundamentalsAgent) selectTickers(ctx context.Context, query string, mentioned []string) []string {
	if len(mentioned) == 0 {
		return nil
	}
	system := "Reply with a comma-separated list of tickers (from the candidates given) worth pulling fundamentals for. Reply with nothing if none apply."
	prompt := fmt.Sprintf("Candidates: %s\nQuestion: %s", strings.Join(mentioned, ", "), query)

	resp, err := a.LLM.Complete(ctx, system, prompt)
	if err != nil {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(resp, ",") {
		t := strings.ToUpper(strings.TrimSpace(tok))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// backfillMissing returns selected plus any mentioned ticker not already
// present in selected, preserving selected's order first.
func backfillMissing(selected, mentioned []string) []string {
	present := make(map[string]bool, len(selected))
	out := append([]string{}, selected...)
	for _, s := range selected {
		present[s] = true
	}
	for _, m := range mentioned {
		if !present[m] {
			present[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (a *FundamentalsAgent) narrate(ctx context.Context, query string, overviews map[string]map[string]string) (string, error) {
	if len(overviews) == 0 {
		return a.LLM.Complete(ctx, "You are a fundamentals research specialist.", query)
	}
	var data strings.Builder
	for symbol, fields := range overviews {
		fmt.Fprintf(&data, "%s:\n", symbol)
		for k, v := range fields {
			fmt.Fprintf(&data, "  %s: %s\n", k, v)
		}
	}
	system := "You are a fundamentals research specialist. Answer using only the provided data; be concise."
	return a.LLM.Complete(ctx, system, fmt.Sprintf("Data:\n%s\nQuestion: %s", data.String(), query))
}
