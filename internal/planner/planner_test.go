package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/orchestrator"
)

// fakeLLM is a scripted llm.Client double returning a canned response or
// error, recording the last prompt it was given.
type fakeLLM struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem, f.lastUser = system, user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func msg(role, content string) orchestrator.Message {
	return orchestrator.Message{Role: role, Content: content}
}

func TestResolveFollowUp_AffirmativeAfterCatalystOfferExpands(t *testing.T) {
	history := []orchestrator.Message{
		msg("user", "tell me about $AAPL"),
		msg("assistant", "Here's a summary. Want a catalyst probability breakdown and trade plan for AAPL?"),
		msg("user", "yes"),
	}
	resolved := resolveFollowUp("yes", history)
	assert.Contains(t, resolved, "catalyst probability breakdown")
	assert.Contains(t, resolved, "AAPL")
}

func TestResolveFollowUp_AmbiguousShortTurnCarriesSymbolForward(t *testing.T) {
	history := []orchestrator.Message{
		msg("user", "what's going on with $TSLA"),
		msg("assistant", "TSLA is up 3% today on delivery numbers."),
		msg("user", "tell me more about that"),
	}
	resolved := resolveFollowUp("tell me more about that", history)
	assert.Contains(t, resolved, "TSLA")
	assert.Contains(t, resolved, "continue prior request")
}

func TestResolveFollowUp_OrdinaryMessagePassesThroughUnchanged(t *testing.T) {
	history := []orchestrator.Message{msg("user", "what is the PE ratio for Microsoft right now")}
	resolved := resolveFollowUp(history[0].Content, history)
	assert.Equal(t, "what is the PE ratio for Microsoft right now", resolved)
}

func TestParsePlanJSON_StripsCodeFenceAndProse(t *testing.T) {
	raw := "Sure, here is the plan:\n```json\n" +
		`{"reasoning": "r", "steps": [{"task_id": "t1_market_data", "agent": "market_data", "query": "q"}], "parallel_groups": []}` +
		"\n```\nLet me know if you need anything else."
	plan, err := parsePlanJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "r", plan.Reasoning)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "market_data", plan.Steps[0].Agent)
}

func TestParsePlanJSON_RejectsGarbage(t *testing.T) {
	_, err := parsePlanJSON("not json at all")
	assert.Error(t, err)
}

func TestNormalize_CanonicalizesAgentAliases(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1", Agent: "technicals", Query: "q"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 1)
	assert.Equal(t, orchestrator.AgentTechnicalAnalysis, out.Steps[0].Agent)
}

func TestNormalize_DropsStepsWithUnrecognizedAgent(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1", Agent: "market_data", Query: "q"},
		{TaskID: "t2", Agent: "not_a_real_agent", Query: "q"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 1)
	assert.Equal(t, orchestrator.AgentMarketData, out.Steps[0].Agent)
}

func TestNormalize_AssignsStableTaskIDsAndDedupes(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{Agent: orchestrator.AgentMarketData, Query: "q1"},
		{Agent: orchestrator.AgentFundamentals, Query: "q2"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "t1_market_data", out.Steps[0].TaskID)
	assert.Equal(t, "t2_fundamentals", out.Steps[1].TaskID)
}

func TestNormalize_DedupesCollidingExplicitTaskIDs(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1"},
		{TaskID: "t1_market_data", Agent: orchestrator.AgentFundamentals, Query: "q2"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "t1_market_data", out.Steps[0].TaskID)
	assert.Equal(t, "t1_market_data_2", out.Steps[1].TaskID)
}

func TestNormalize_RewritesAgentNamedDependsOnToTaskID(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1"},
		{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, Query: "q2", DependsOn: []string{"market_data"}},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 2)
	assert.Equal(t, []string{"t1_market_data"}, out.Steps[1].DependsOn)
}

func TestNormalize_DropsSelfDependency(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1", DependsOn: []string{"t1_market_data"}},
	}}
	out := normalize(plan, "q")
	assert.Empty(t, out.Steps[0].DependsOn)
}

func TestNormalize_AdvisorWithNoDepsDependsOnAllEarlierTasks(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1"},
		{TaskID: "t2_fundamentals", Agent: orchestrator.AgentFundamentals, Query: "q2"},
		{TaskID: "t3_advisor", Agent: orchestrator.AgentAdvisor, Query: "q3"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 3)
	assert.ElementsMatch(t, []string{"t1_market_data", "t2_fundamentals"}, out.Steps[2].DependsOn)
}

func TestNormalize_TechnicalAnalysisWithNoDepsDependsOnPriorMarketDataOnly(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1"},
		{TaskID: "t2_fundamentals", Agent: orchestrator.AgentFundamentals, Query: "q2"},
		{TaskID: "t3_ta", Agent: orchestrator.AgentTechnicalAnalysis, Query: "q3"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 3)
	assert.Equal(t, []string{"t1_market_data"}, out.Steps[2].DependsOn)
}

func TestNormalize_CollapsesRepeatedAdvisorStepsToTrailingOne(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_advisor", Agent: orchestrator.AgentAdvisor, Query: "q1"},
		{TaskID: "t2_market_data", Agent: orchestrator.AgentMarketData, Query: "q2"},
		{TaskID: "t3_advisor", Agent: orchestrator.AgentAdvisor, Query: "q3"},
	}}
	out := normalize(plan, "q")
	require.Len(t, out.Steps, 2)
	assert.Equal(t, orchestrator.AgentMarketData, out.Steps[0].Agent)
	assert.Equal(t, "t3_advisor", out.Steps[1].TaskID)
}

func TestNormalize_IntentUpgradeAppendsAdvisorWhenLexiconMatchesAndNoneExists(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1"},
	}}
	out := normalize(plan, "should I buy AAPL or sell it")
	require.Len(t, out.Steps, 2)
	assert.Equal(t, orchestrator.AgentAdvisor, out.Steps[1].Agent)
	assert.Equal(t, []string{"t1_market_data"}, out.Steps[1].DependsOn)
}

func TestNormalize_IntentUpgradeSkippedWhenAdvisorAlreadyPresent(t *testing.T) {
	plan := orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
		{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: "q1"},
		{TaskID: "t2_advisor", Agent: orchestrator.AgentAdvisor, Query: "q2"},
	}}
	out := normalize(plan, "should I buy AAPL or sell it")
	assert.Len(t, out.Steps, 2)
}

func TestPlan_FallsBackOnLLMError(t *testing.T) {
	client := &fakeLLM{err: errors.New("provider unavailable")}
	p := New(client, nil)

	state := p.Plan(context.Background(), []orchestrator.Message{msg("user", "what's the PE ratio of $AAPL")}, "tenant1", "user1", "conv1")

	require.NotEmpty(t, state.Plan.Steps)
	assert.Equal(t, orchestrator.AgentMarketData, state.Plan.Steps[0].Agent)
	assert.Contains(t, state.Plan.Reasoning, "fallback")
}

func TestPlan_FallbackIncludesFundamentalsWhenLexiconMatches(t *testing.T) {
	client := &fakeLLM{err: errors.New("down")}
	p := New(client, nil)

	state := p.Plan(context.Background(), []orchestrator.Message{msg("user", "what is the PE ratio and earnings for $AAPL")}, "t", "u", "c")

	var sawFundamentals bool
	for _, s := range state.Plan.Steps {
		if s.Agent == orchestrator.AgentFundamentals {
			sawFundamentals = true
		}
	}
	assert.True(t, sawFundamentals)
}

func TestPlan_EmptyMessagesProducesFallbackPlan(t *testing.T) {
	p := New(&fakeLLM{}, nil)
	state := p.Plan(context.Background(), nil, "t", "u", "c")
	require.NotEmpty(t, state.Plan.Steps)
	assert.Equal(t, orchestrator.TaskPending, state.TaskStatus[state.Plan.Steps[0].TaskID])
}

func TestPlan_SuccessfulLLMPlanIsNormalized(t *testing.T) {
	client := &fakeLLM{response: `{"reasoning": "r", "steps": [{"agent": "technicals", "query": "q"}], "parallel_groups": []}`}
	p := New(client, nil)

	state := p.Plan(context.Background(), []orchestrator.Message{msg("user", "technical view on $AAPL")}, "t", "u", "c")

	require.Len(t, state.Plan.Steps, 1)
	assert.Equal(t, orchestrator.AgentTechnicalAnalysis, state.Plan.Steps[0].Agent)
	assert.Equal(t, "t1_technical_analysis", state.Plan.Steps[0].TaskID)
	assert.Contains(t, state.PendingAgents, orchestrator.AgentTechnicalAnalysis)
}
