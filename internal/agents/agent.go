// Package agents implements the six specialists of spec §4.7. Each
// specialist collects its ready tasks off the shared ConversationState,
// merges their queries into one composite prompt, invokes its tools
// through the Tool Contracts layer, and writes back a result plus task
// status for every task it owned this turn — mirroring the
// scorer-per-concern layout of the teacher's
// internal/modules/scoring/scorers package (one exported type per
// specialist, a constructor, one entry-point method).
package agents

import (
	"context"
	"strings"

	"github.com/finresearch/orchestrator/internal/orchestrator"
)

// Specialist is the general contract every agent in the closed set
// satisfies (spec §4.7).
type Specialist interface {
	Name() orchestrator.AgentName
	Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult
}

// compositeQuery merges the queries of every ready task into one prompt,
// the "merges their queries into one composite prompt" step common to
// every specialist.
func compositeQuery(tasks []orchestrator.AgentTask) string {
	parts := make([]string, 0, len(tasks))
	for _, t := range tasks {
		q := strings.TrimSpace(t.Query)
		if q != "" {
			parts = append(parts, q)
		}
	}
	return strings.Join(parts, "\n")
}

// markTerminal applies a terminal TaskStatus to every task this turn's
// invocation owned, satisfying the scheduler's dispatch contract (spec
// §4.9: "a specialist that returns without updating status ... is a
// bug").
func markTerminal(state *orchestrator.ConversationState, tasks []orchestrator.AgentTask, status orchestrator.TaskStatus) {
	for _, t := range tasks {
		state.TaskStatus[t.TaskID] = status
	}
}

// errorResult builds the AgentResult for a failed specialist invocation
// and marks every owned task failed.
func errorResult(state *orchestrator.ConversationState, name orchestrator.AgentName, tasks []orchestrator.AgentTask, err error) orchestrator.AgentResult {
	markTerminal(state, tasks, orchestrator.TaskFailed)
	return orchestrator.AgentResult{Agent: name, Error: err.Error()}
}
