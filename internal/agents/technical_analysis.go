package agents

import (
	"context"
	"fmt"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/ta"
)

// TechnicalAnalysisAgent is the technical_analysis specialist (spec
// §4.7): it depends on market_data and reads the projected price history
// from that prior result rather than re-fetching. If that payload is
// empty or malformed, exactly one re-invocation — fetching history
// directly — is allowed before the task is reported failed.
type TechnicalAnalysisAgent struct {
	MD *marketdata.Service
}

func NewTechnicalAnalysisAgent(md *marketdata.Service) *TechnicalAnalysisAgent {
	return &TechnicalAnalysisAgent{MD: md}
}

func (a *TechnicalAnalysisAgent) Name() orchestrator.AgentName {
	return orchestrator.AgentTechnicalAnalysis
}

func (a *TechnicalAnalysisAgent) Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	query := compositeQuery(tasks)
	tickers := ExtractTickers(query)

	symbol := ""
	if len(tickers) > 0 {
		symbol = tickers[0]
	} else if prior, ok := state.AgentResults[orchestrator.AgentMarketData]; ok && len(prior.Symbols) > 0 {
		symbol = prior.Symbols[0]
	}
	if symbol == "" {
		result := errorResult(state, orchestrator.AgentTechnicalAnalysis, tasks, fmt.Errorf("technical_analysis: no symbol to analyze"))
		state.AgentResults[orchestrator.AgentTechnicalAnalysis] = result
		return result
	}

	closes := a.closesFromPriorResult(state, symbol)
	if len(closes) < 200 {
		// Single allowed re-invocation: fetch directly rather than relying
		// on market_data's projection.
		closes = closesOf(a.MD.History(ctx, symbol, 200))
	}
	if len(closes) < 200 {
		result := errorResult(state, orchestrator.AgentTechnicalAnalysis, tasks,
			fmt.Errorf("technical_analysis: insufficient price history for %s (got %d closes, need 200)", symbol, len(closes)))
		state.AgentResults[orchestrator.AgentTechnicalAnalysis] = result
		return result
	}

	snap, err := ta.ComputeSnapshot(closes)
	if err != nil {
		result := errorResult(state, orchestrator.AgentTechnicalAnalysis, tasks, fmt.Errorf("technical_analysis: %w", err))
		state.AgentResults[orchestrator.AgentTechnicalAnalysis] = result
		return result
	}

	content := fmt.Sprintf(
		"%s technical snapshot: trend=%s, RSI14=%.1f, SMA20=%.2f, SMA50=%.2f, SMA200=%.2f, support=%.2f, resistance=%.2f, MACD histogram=%.3f",
		symbol, snap.Trend, snap.RSI14, snap.SMA20, snap.SMA50, snap.SMA200, snap.Support, snap.Resistance,
		snap.MACD.Histogram[len(snap.MACD.Histogram)-1],
	)

	markTerminal(state, tasks, orchestrator.TaskCompleted)
	result := orchestrator.AgentResult{
		Agent:   orchestrator.AgentTechnicalAnalysis,
		Content: content,
		Symbols: []string{symbol},
		Data:    snap,
	}
	state.AgentResults[orchestrator.AgentTechnicalAnalysis] = result
	return result
}

func (a *TechnicalAnalysisAgent) closesFromPriorResult(state *orchestrator.ConversationState, symbol string) []float64 {
	prior, ok := state.AgentResults[orchestrator.AgentMarketData]
	if !ok {
		return nil
	}
	payload, ok := prior.Data.(Payload)
	if !ok || payload.History == nil {
		return nil
	}
	return closesOf(payload.History[symbol])
}

func closesOf(rows []marketdata.HistoryRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}
