// Package aggregator implements spec §4.10: once the scheduler has
// driven a turn to completion, compose the final response (advisor
// result preferred, else a fixed-order multi-agent summary) and persist
// the exchange to memory, never letting a persistence failure fail the
// turn.
package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/memory"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

// summaryOrder is the fixed section order for the multi-agent fallback
// summary (spec §4.10). advisor is listed last to keep that order; since
// compose returns a non-empty advisor result outright, the advisor
// section is never rendered in the summary itself.
var summaryOrder = []orchestrator.AgentName{
	orchestrator.AgentMarketData,
	orchestrator.AgentFundamentals,
	orchestrator.AgentTechnicalAnalysis,
	orchestrator.AgentSentiment,
	orchestrator.AgentMacro,
	orchestrator.AgentAdvisor,
}

var sectionLabels = map[orchestrator.AgentName]string{
	orchestrator.AgentMarketData:        "Market Data",
	orchestrator.AgentFundamentals:      "Fundamentals",
	orchestrator.AgentTechnicalAnalysis: "Technical Analysis",
	orchestrator.AgentSentiment:         "Sentiment",
	orchestrator.AgentMacro:             "Macro",
	orchestrator.AgentAdvisor:           "Advisor",
}

// Aggregator composes the final turn response and persists it to memory.
type Aggregator struct {
	Memory *memory.Manager
	Log    zerolog.Logger
}

func New(mem *memory.Manager, log zerolog.Logger) *Aggregator {
	return &Aggregator{Memory: mem, Log: log}
}

// Run composes state.FinalResponse and persists the turn. It never
// returns an error: a memory persistence failure is logged as a warning
// and swallowed, per spec §4.10.
func (a *Aggregator) Run(ctx context.Context, userMessage string, state *orchestrator.ConversationState) {
	state.FinalResponse = compose(state.AgentResults)

	if a.Memory == nil {
		return
	}
	meta := memory.Metadata{TenantID: state.TenantID, UserID: state.UserID, ConversationID: state.ConversationID}
	if err := a.Memory.Save(ctx, userMessage, state.FinalResponse, meta); err != nil {
		a.Log.Warn().Err(err).Str("conversation_id", state.ConversationID).Msg("aggregator: persisting turn to memory failed")
	}
}

// compose implements spec §4.10's algorithm: prefer a non-empty advisor
// result outright; otherwise render every non-empty section in
// summaryOrder.
func compose(results map[orchestrator.AgentName]orchestrator.AgentResult) string {
	if advisor, ok := results[orchestrator.AgentAdvisor]; ok && strings.TrimSpace(advisor.Content) != "" {
		return advisor.Content
	}

	var sections strings.Builder
	for _, agent := range summaryOrder {
		result, ok := results[agent]
		if !ok || strings.TrimSpace(result.Content) == "" {
			continue
		}
		if sections.Len() > 0 {
			sections.WriteString("\n\n")
		}
		fmt.Fprintf(&sections, "### %s\n%s", sectionLabels[agent], result.Content)
	}

	if sections.Len() == 0 {
		return "No research results were available for this request."
	}
	return sections.String()
}
