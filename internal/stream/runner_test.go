package stream

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/aggregator"
	"github.com/finresearch/orchestrator/internal/agents"
	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/planner"
	"github.com/finresearch/orchestrator/internal/scheduler"
)

// fakeMarketData is a minimal agents.Specialist completing every task it
// owns with fixed content, enough to drive a chat turn end to end without
// a real LLM or provider client.
type fakeMarketData struct{}

func (fakeMarketData) Name() orchestrator.AgentName { return orchestrator.AgentMarketData }
func (fakeMarketData) Run(_ context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	for _, t := range tasks {
		state.TaskStatus[t.TaskID] = orchestrator.TaskCompleted
	}
	result := orchestrator.AgentResult{Agent: orchestrator.AgentMarketData, Content: "market data ok"}
	state.AgentResults[orchestrator.AgentMarketData] = result
	return result
}

func newTestRunner() *Runner {
	return &Runner{
		Planner:    planner.New(nil, nil),
		Scheduler:  scheduler.New([]agents.Specialist{fakeMarketData{}}, 10),
		Aggregator: aggregator.New(nil, zerolog.Nop()),
	}
}

// collectEvents drains every event the runner emits, in order.
func collectEvents(f func(emit Sink)) []Event {
	var events []Event
	f(func(ev Event) { events = append(events, ev) })
	return events
}

func TestRunChat_EmitsDecisionThenAgentLifecycleThenFinal(t *testing.T) {
	runner := newTestRunner()

	events := collectEvents(func(emit Sink) {
		runner.RunChat(context.Background(), nil, "tenant-1", "user-1", "conv-1", emit)
	})

	require.NotEmpty(t, events)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, EventDecision)
	assert.Contains(t, types, EventAgentStart)
	assert.Contains(t, types, EventAgentEnd)
	assert.Contains(t, types, EventTaskUpdate)
	assert.Contains(t, types, EventFinal)

	startIdx, endIdx := -1, -1
	for i, ev := range events {
		if ev.Type == EventAgentStart && startIdx == -1 {
			startIdx = i
		}
		if ev.Type == EventAgentEnd {
			endIdx = i
		}
	}
	require.NotEqual(t, -1, startIdx)
	require.NotEqual(t, -1, endIdx)
	assert.Less(t, startIdx, endIdx, "agent_start must precede agent_end")

	last := events[len(events)-1]
	assert.Equal(t, EventFinal, last.Type)
}

func TestRunChat_FinalContentComesFromAggregatedMarketDataResult(t *testing.T) {
	runner := newTestRunner()

	events := collectEvents(func(emit Sink) {
		runner.RunChat(context.Background(), nil, "tenant-1", "user-1", "conv-1", emit)
	})

	var final Event
	for _, ev := range events {
		if ev.Type == EventFinal {
			final = ev
		}
	}
	assert.Contains(t, final.Content, "market data ok")
}

func TestRunChat_EmitsExactlyOneDecisionEvent(t *testing.T) {
	runner := newTestRunner()

	events := collectEvents(func(emit Sink) {
		runner.RunChat(context.Background(), nil, "tenant-1", "user-1", "conv-1", emit)
	})

	count := 0
	for _, ev := range events {
		if ev.Type == EventDecision {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
