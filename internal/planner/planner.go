// Package planner implements spec §4.8: turning the latest user turn into
// a normalized ExecutionPlan, including follow-up resolution, a memory
// snippet fetch, defensive JSON parsing of the LLM's plan, DAG
// normalization, and a deterministic fallback plan on any failure.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/memory"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

var (
	affirmativeRE = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|yup|sure|ok|okay|please do|go ahead|do it)[.!]?\s*$`)
	ambiguousRE   = regexp.MustCompile(`(?i)\b(that|this|same|continue|more on that)\b`)

	fundamentalsLexicon = []string{"pe ratio", "p/e", "earnings", "revenue", "balance sheet", "valuation", "fundamentals", "dividend", "cash flow"}
	advisoryLexicon     = []string{"why", "explain", "compare", "recommend", "risk", "valuation", "dcf", "should i", "buy or sell"}
)

const (
	catalystPhrase    = "catalyst probability breakdown"
	tradePlanPhrase   = "trade plan"
	maxMemorySnippets = 4
)

// Planner turns a conversation's message history into a normalized
// ExecutionPlan.
type Planner struct {
	LLM    llm.Client
	Memory *memory.Manager
}

func New(client llm.Client, mem *memory.Manager) *Planner {
	return &Planner{LLM: client, Memory: mem}
}

// Plan implements the full algorithm of spec §4.8.
func (p *Planner) Plan(ctx context.Context, messages []orchestrator.Message, tenantID, userID, conversationID string) orchestrator.ConversationState {
	state := orchestrator.ConversationState{
		Messages: messages, UserID: userID, TenantID: tenantID, ConversationID: conversationID,
	}

	if len(messages) == 0 {
		state.Plan = fallbackPlan("")
		state.TaskStatus = initialTaskStatus(state.Plan)
		return state
	}

	latest := messages[len(messages)-1].Content
	resolved := resolveFollowUp(latest, messages)

	if p.Memory != nil {
		filter := memory.Filter{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
		docs, err := p.Memory.GetRelevantContext(ctx, resolved, maxMemorySnippets, filter)
		if err == nil {
			for _, d := range docs {
				state.MemoryContext = append(state.MemoryContext, d.PageContent)
			}
		}
	}

	plan, err := p.askLLMForPlan(ctx, resolved, state.MemoryContext)
	if err != nil {
		plan = fallbackPlan(resolved)
	} else {
		plan = normalize(plan, resolved)
	}

	state.Plan = plan
	state.TaskStatus = initialTaskStatus(plan)
	state.PendingAgents = pendingAgents(plan)
	return state
}

// resolveFollowUp implements spec §4.8 step 1: affirmative turns following
// a catalyst+trade-plan offer expand into that request; ambiguous short
// turns get rewritten to carry a symbol hint forward.
func resolveFollowUp(latest string, messages []orchestrator.Message) string {
	trimmed := strings.TrimSpace(latest)

	if affirmativeRE.MatchString(trimmed) {
		if prior := lastAssistantMessage(messages); prior != "" {
			lower := strings.ToLower(prior)
			if strings.Contains(lower, catalystPhrase) && strings.Contains(lower, tradePlanPhrase) {
				symbol := lastSymbolMentioned(messages)
				return fmt.Sprintf("Generate a catalyst probability breakdown and trade plan for %s", symbol)
			}
		}
	}

	if isAmbiguous(trimmed) {
		symbol := lastSymbolMentioned(messages)
		if symbol != "" {
			return fmt.Sprintf("continue prior request about %s", symbol)
		}
		return "continue prior request"
	}

	return trimmed
}

func isAmbiguous(msg string) bool {
	if msg == "" {
		return true
	}
	words := strings.Fields(msg)
	if len(words) <= 3 {
		return true
	}
	return ambiguousRE.MatchString(msg)
}

func lastAssistantMessage(messages []orchestrator.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return messages[i].Content
		}
	}
	return ""
}

var tickerInTextRE = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)

func lastSymbolMentioned(messages []orchestrator.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if m := tickerInTextRE.FindStringSubmatch(messages[i].Content); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// rawPlan is the LLM's JSON shape before normalization: agent names and
// depends_on entries may be aliases, missing task ids, or agent names
// instead of task ids.
type rawPlan struct {
	Reasoning      string     `json:"reasoning"`
	Steps          []rawStep  `json:"steps"`
	ParallelGroups [][]string `json:"parallel_groups"`
}

type rawStep struct {
	TaskID    string   `json:"task_id"`
	Agent     string   `json:"agent"`
	Query     string   `json:"query"`
	DependsOn []string `json:"depends_on"`
}

func (p *Planner) askLLMForPlan(ctx context.Context, query string, memoryContext []string) (orchestrator.ExecutionPlan, error) {
	system := `You are a financial-research planner. Reply with exactly one JSON object matching:
{"reasoning": string, "steps": [{"task_id": string, "agent": string, "query": string, "depends_on": [string]}], "parallel_groups": [[string]]}
Valid agents: market_data, fundamentals, sentiment, macro, technical_analysis, advisor.`

	prompt := query
	if len(memoryContext) > 0 {
		prompt = fmt.Sprintf("Relevant prior context:\n%s\n\nRequest: %s", strings.Join(memoryContext, "\n---\n"), query)
	}

	raw, err := p.LLM.Complete(ctx, system, prompt)
	if err != nil {
		return orchestrator.ExecutionPlan{}, fmt.Errorf("planner: llm call failed: %w", err)
	}

	parsed, err := parsePlanJSON(raw)
	if err != nil {
		return orchestrator.ExecutionPlan{}, err
	}
	return rawToExecutionPlan(parsed), nil
}

var (
	codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	outerJSONRE = regexp.MustCompile(`(?s)\{.*\}`)
)

// parsePlanJSON defensively extracts a JSON object from LLM output that
// may be wrapped in markdown code fences or preceded/followed by prose
// (spec §4.8 step 3).
func parsePlanJSON(raw string) (rawPlan, error) {
	candidate := raw
	if m := codeFenceRE.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}
	if m := outerJSONRE.FindString(candidate); m != "" {
		candidate = m
	}

	var plan rawPlan
	if err := json.Unmarshal([]byte(candidate), &plan); err != nil {
		return rawPlan{}, fmt.Errorf("planner: parsing plan JSON: %w", err)
	}
	return plan, nil
}

func rawToExecutionPlan(raw rawPlan) orchestrator.ExecutionPlan {
	steps := make([]orchestrator.AgentTask, len(raw.Steps))
	for i, s := range raw.Steps {
		steps[i] = orchestrator.AgentTask{TaskID: s.TaskID, Agent: orchestrator.AgentName(s.Agent), Query: s.Query, DependsOn: s.DependsOn}
	}
	var groups [][]orchestrator.AgentName
	for _, g := range raw.ParallelGroups {
		var names []orchestrator.AgentName
		for _, a := range g {
			names = append(names, orchestrator.AgentName(a))
		}
		groups = append(groups, names)
	}
	return orchestrator.ExecutionPlan{Reasoning: raw.Reasoning, Steps: steps, ParallelGroups: groups}
}

func initialTaskStatus(plan orchestrator.ExecutionPlan) map[string]orchestrator.TaskStatus {
	out := make(map[string]orchestrator.TaskStatus, len(plan.Steps))
	for _, s := range plan.Steps {
		out[s.TaskID] = orchestrator.TaskPending
	}
	return out
}

func pendingAgents(plan orchestrator.ExecutionPlan) []orchestrator.AgentName {
	seen := make(map[orchestrator.AgentName]bool)
	var out []orchestrator.AgentName
	for _, s := range plan.Steps {
		if !seen[s.Agent] {
			seen[s.Agent] = true
			out = append(out, s.Agent)
		}
	}
	return out
}

// fallbackPlan synthesizes the deterministic plan of spec §4.8 step 5: a
// market_data task, optionally fundamentals if the message matches that
// lexicon, and a trailing advisor step if the advisory lexicon matches.
func fallbackPlan(query string) orchestrator.ExecutionPlan {
	lower := strings.ToLower(query)
	var steps []orchestrator.AgentTask
	var allIDs []string

	marketID := "t1_market_data"
	steps = append(steps, orchestrator.AgentTask{TaskID: marketID, Agent: orchestrator.AgentMarketData, Query: query})
	allIDs = append(allIDs, marketID)

	if matchesLexicon(lower, fundamentalsLexicon) {
		id := fmt.Sprintf("t%d_fundamentals", len(steps)+1)
		steps = append(steps, orchestrator.AgentTask{TaskID: id, Agent: orchestrator.AgentFundamentals, Query: query})
		allIDs = append(allIDs, id)
	}

	if matchesLexicon(lower, advisoryLexicon) {
		id := fmt.Sprintf("t%d_advisor", len(steps)+1)
		steps = append(steps, orchestrator.AgentTask{TaskID: id, Agent: orchestrator.AgentAdvisor, Query: query, DependsOn: append([]string{}, allIDs...)})
	}

	return orchestrator.ExecutionPlan{Reasoning: "fallback plan (planner failure)", Steps: steps}
}

func matchesLexicon(lower string, lexicon []string) bool {
	for _, kw := range lexicon {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
