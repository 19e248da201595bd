package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/agents"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

// fakeSpecialist is a scripted agents.Specialist double: it completes
// every task it's given the given status, optionally recording the
// order it was invoked in via a shared log.
type fakeSpecialist struct {
	name   orchestrator.AgentName
	status orchestrator.TaskStatus
	log    *[]orchestrator.AgentName

	// misbehave, if set, leaves owned tasks pending instead of marking
	// them terminal, to exercise the dispatch-contract guard.
	misbehave bool
}

func (f *fakeSpecialist) Name() orchestrator.AgentName { return f.name }

func (f *fakeSpecialist) Run(_ context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	if f.log != nil {
		*f.log = append(*f.log, f.name)
	}
	if !f.misbehave {
		for _, t := range tasks {
			state.TaskStatus[t.TaskID] = f.status
		}
	}
	result := orchestrator.AgentResult{Agent: f.name, Content: string(f.name) + " done"}
	state.AgentResults[f.name] = result
	return result
}

func newSpecialist(name orchestrator.AgentName, status orchestrator.TaskStatus, log *[]orchestrator.AgentName) *fakeSpecialist {
	return &fakeSpecialist{name: name, status: status, log: log}
}

func TestScheduler_RunsResearchBeforeSynthesis(t *testing.T) {
	var log []orchestrator.AgentName
	specialists := []agents.Specialist{
		newSpecialist(orchestrator.AgentMarketData, orchestrator.TaskCompleted, &log),
		newSpecialist(orchestrator.AgentTechnicalAnalysis, orchestrator.TaskCompleted, &log),
	}
	sched := New(specialists, 10)

	state := &orchestrator.ConversationState{
		Plan: orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
			{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData},
			{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, DependsOn: []string{"t1_market_data"}},
		}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t1_market_data": orchestrator.TaskPending, "t2_ta": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	err := sched.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.TaskCompleted, state.TaskStatus["t1_market_data"])
	assert.Equal(t, orchestrator.TaskCompleted, state.TaskStatus["t2_ta"])
	require.Len(t, log, 2)
	assert.Equal(t, orchestrator.AgentMarketData, log[0])
	assert.Equal(t, orchestrator.AgentTechnicalAnalysis, log[1])
}

func TestScheduler_FailedResearchSkipsDependentSynthesis(t *testing.T) {
	specialists := []agents.Specialist{
		newSpecialist(orchestrator.AgentMarketData, orchestrator.TaskFailed, nil),
		newSpecialist(orchestrator.AgentTechnicalAnalysis, orchestrator.TaskCompleted, nil),
	}
	sched := New(specialists, 10)

	state := &orchestrator.ConversationState{
		Plan: orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
			{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData},
			{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, DependsOn: []string{"t1_market_data"}},
		}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t1_market_data": orchestrator.TaskPending, "t2_ta": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	err := sched.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.TaskFailed, state.TaskStatus["t1_market_data"])
	assert.Equal(t, orchestrator.TaskSkipped, state.TaskStatus["t2_ta"])
	// technical_analysis is never dispatched, so it never appears in AgentResults.
	_, ran := state.AgentResults[orchestrator.AgentTechnicalAnalysis]
	assert.False(t, ran)
}

func TestScheduler_TransitiveSkipAcrossTwoHops(t *testing.T) {
	specialists := []agents.Specialist{
		newSpecialist(orchestrator.AgentMarketData, orchestrator.TaskFailed, nil),
		newSpecialist(orchestrator.AgentTechnicalAnalysis, orchestrator.TaskCompleted, nil),
		newSpecialist(orchestrator.AgentAdvisor, orchestrator.TaskCompleted, nil),
	}
	sched := New(specialists, 10)

	state := &orchestrator.ConversationState{
		Plan: orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
			{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData},
			{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, DependsOn: []string{"t1_market_data"}},
			{TaskID: "t3_advisor", Agent: orchestrator.AgentAdvisor, DependsOn: []string{"t2_ta"}},
		}},
		TaskStatus: map[string]orchestrator.TaskStatus{
			"t1_market_data": orchestrator.TaskPending, "t2_ta": orchestrator.TaskPending, "t3_advisor": orchestrator.TaskPending,
		},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	err := sched.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.TaskFailed, state.TaskStatus["t1_market_data"])
	assert.Equal(t, orchestrator.TaskSkipped, state.TaskStatus["t2_ta"])
	assert.Equal(t, orchestrator.TaskSkipped, state.TaskStatus["t3_advisor"])
}

func TestScheduler_MisbehavingSpecialistIsForcedFailedByDispatchContract(t *testing.T) {
	bad := &fakeSpecialist{name: orchestrator.AgentMarketData, misbehave: true}
	sched := New([]agents.Specialist{bad}, 10)

	state := &orchestrator.ConversationState{
		Plan:         orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData}}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t1_market_data": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	err := sched.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.TaskFailed, state.TaskStatus["t1_market_data"])
}

func TestScheduler_RecursionCapReturnsError(t *testing.T) {
	// A limit of 1 against a two-hop plan: the single step dispatches the
	// research hop only, so the synthesis task is still pending when the
	// cap is reached and Run returns an error.
	specialists := []agents.Specialist{
		newSpecialist(orchestrator.AgentMarketData, orchestrator.TaskCompleted, nil),
		newSpecialist(orchestrator.AgentTechnicalAnalysis, orchestrator.TaskCompleted, nil),
	}
	sched := New(specialists, 1)

	state := &orchestrator.ConversationState{
		Plan: orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{
			{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData},
			{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, DependsOn: []string{"t1_market_data"}},
		}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t1_market_data": orchestrator.TaskPending, "t2_ta": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	err := sched.Run(context.Background(), state)
	assert.Error(t, err)
}

func TestScheduler_UnroutableAgentIsFailedNotInfiniteLooped(t *testing.T) {
	sched := New(nil, 10)

	state := &orchestrator.ConversationState{
		Plan:         orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{{TaskID: "t1_unknown", Agent: orchestrator.AgentName("unknown")}}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t1_unknown": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	err := sched.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.TaskFailed, state.TaskStatus["t1_unknown"])
}
