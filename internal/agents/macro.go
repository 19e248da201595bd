package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/providers"
)

// wellKnownSeries maps common macro-indicator phrases to FRED series IDs,
// so "cpi"/"inflation"/"unemployment"/"gdp" questions resolve without
// requiring the user to name a series.
var wellKnownSeries = map[string]string{
	"cpi":          "CPIAUCSL",
	"inflation":    "CPIAUCSL",
	"unemployment": "UNRATE",
	"jobless":      "UNRATE",
	"gdp":          "GDP",
	"fed funds":    "FEDFUNDS",
	"interest rate": "FEDFUNDS",
}

// MacroAgent is the macro specialist (spec §4.7): tool-using LLM with FRED
// series access for macro summaries, a specific named series, or a
// keyword search.
type MacroAgent struct {
	FRED *providers.FREDClient
	LLM  llm.Client
}

func NewMacroAgent(fred *providers.FREDClient, client llm.Client) *MacroAgent {
	return &MacroAgent{FRED: fred, LLM: client}
}

func (a *MacroAgent) Name() orchestrator.AgentName { return orchestrator.AgentMacro }

func (a *MacroAgent) Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	query := compositeQuery(tasks)

	seriesID, matched := resolveSeries(query)

	var data strings.Builder
	var seriesUsed []string

	if matched {
		series, err := a.FRED.Series(ctx, seriesID)
		if err == nil {
			seriesUsed = append(seriesUsed, series.SeriesID)
			fmt.Fprintf(&data, "%s (%s): %d observations, latest %.2f\n",
				series.Title, series.SeriesID, len(series.Observations), latestValue(series.Observations))
		}
	} else {
		results, err := a.FRED.Search(ctx, query)
		if err == nil {
			for _, s := range results {
				seriesUsed = append(seriesUsed, s.SeriesID)
				fmt.Fprintf(&data, "%s (%s): %s, %s\n", s.Title, s.SeriesID, s.Units, s.Frequency)
			}
		}
	}

	system := "You are a macroeconomic research specialist. Summarize using only the provided series data; be concise."
	prompt := fmt.Sprintf("Data:\n%s\nQuestion: %s", data.String(), query)

	content, err := a.LLM.Complete(ctx, system, prompt)
	if err != nil {
		result := errorResult(state, orchestrator.AgentMacro, tasks, err)
		state.AgentResults[orchestrator.AgentMacro] = result
		return result
	}

	markTerminal(state, tasks, orchestrator.TaskCompleted)
	result := orchestrator.AgentResult{
		Agent:   orchestrator.AgentMacro,
		Content: content,
		Data:    seriesUsed,
	}
	state.AgentResults[orchestrator.AgentMacro] = result
	return result
}

func resolveSeries(query string) (string, bool) {
	lower := strings.ToLower(query)
	for phrase, seriesID := range wellKnownSeries {
		if strings.Contains(lower, phrase) {
			return seriesID, true
		}
	}
	return "", false
}

func latestValue(points []providers.SeriesPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Value
}
