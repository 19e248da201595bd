// Package scheduler implements spec §4.9's two-tier DAG executor: a
// Router node that propagates transitive skips, a route-next decision
// that fans research-tier specialists out before gating synthesis-tier
// ones behind them, and a recursion cap that guarantees termination
// regardless of plan shape.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/finresearch/orchestrator/internal/agents"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

const defaultRecursionLimit = 25

// EventHook receives scheduler lifecycle notifications so a streaming
// layer can forward agent_start/agent_end/task_update events in the
// order spec §4.13 requires, without this package depending on any wire
// format.
type EventHook interface {
	AgentStart(agent orchestrator.AgentName)
	AgentEnd(agent orchestrator.AgentName)
	TaskUpdate(taskID string, status orchestrator.TaskStatus)
}

// Scheduler drives one turn's ConversationState to completion by
// repeatedly routing ready tasks to their owning Specialist. A Scheduler
// is shared across concurrent turns, so per-turn state (including any
// EventHook) is threaded through Run's arguments rather than stored on
// the struct.
type Scheduler struct {
	specialists    map[orchestrator.AgentName]agents.Specialist
	recursionLimit int
}

// New wires a Scheduler over the closed set of specialists. recursionLimit
// <= 0 defaults to 25 (spec §4.9).
func New(specialists []agents.Specialist, recursionLimit int) *Scheduler {
	if recursionLimit <= 0 {
		recursionLimit = defaultRecursionLimit
	}
	byName := make(map[orchestrator.AgentName]agents.Specialist, len(specialists))
	for _, s := range specialists {
		byName[s.Name()] = s
	}
	return &Scheduler{specialists: byName, recursionLimit: recursionLimit}
}

// Run drives state through Router/Route-next/Research Gate/
// Route-after-research until every step is terminal, the plan is empty,
// or the recursion cap is hit. hook is optional (pass nothing, or nil,
// for a silent run); when given, it must tolerate concurrent calls from
// different goroutines within the same dispatch round.
func (s *Scheduler) Run(ctx context.Context, state *orchestrator.ConversationState, hook ...EventHook) error {
	var h EventHook
	if len(hook) > 0 {
		h = hook[0]
	}

	researchGateReached := false

	for step := 0; step < s.recursionLimit; step++ {
		s.routeSkips(state, h)

		if s.allTerminal(state) {
			return nil
		}

		if !researchGateReached {
			ready := s.readyAgents(state, orchestrator.ResearchTier)
			if len(ready) > 0 {
				s.dispatch(ctx, state, ready, h)
				continue
			}
			researchGateReached = true
			continue
		}

		ready := s.readyAgents(state, orchestrator.SynthesisTier)
		if len(ready) > 0 {
			s.dispatch(ctx, state, ready, h)
			continue
		}

		// No research or synthesis tasks remain pending; whatever is left
		// must already be terminal, or the plan names an agent this
		// scheduler has no specialist for.
		s.failUnroutable(state)
		return nil
	}

	return fmt.Errorf("scheduler: recursion limit (%d) exceeded", s.recursionLimit)
}

// routeSkips implements the Router node: any pending task with a
// failed or skipped dependency is itself marked skipped, transitively.
// Repeats until a pass makes no further changes, so multi-hop chains
// (A fails -> B skipped -> C depends on B) resolve within one Router
// visit.
func (s *Scheduler) routeSkips(state *orchestrator.ConversationState, hook EventHook) {
	for {
		changed := false
		for _, task := range state.Plan.Steps {
			if state.TaskStatus[task.TaskID] != orchestrator.TaskPending {
				continue
			}
			for _, dep := range task.DependsOn {
				depStatus := state.TaskStatus[dep]
				if depStatus == orchestrator.TaskFailed || depStatus == orchestrator.TaskSkipped {
					state.TaskStatus[task.TaskID] = orchestrator.TaskSkipped
					changed = true
					notifyTaskUpdates(hook, state, []orchestrator.AgentTask{task})
					break
				}
			}
		}
		if !changed {
			return
		}
	}
}

func (s *Scheduler) allTerminal(state *orchestrator.ConversationState) bool {
	for _, task := range state.Plan.Steps {
		if !state.TaskStatus[task.TaskID].Terminal() {
			return false
		}
	}
	return true
}

// readyAgents returns, among the given tier, the agents that currently
// have at least one ready task.
func (s *Scheduler) readyAgents(state *orchestrator.ConversationState, tier []orchestrator.AgentName) []orchestrator.AgentName {
	var out []orchestrator.AgentName
	for _, agent := range tier {
		if len(state.ReadyTasks(agent)) > 0 {
			out = append(out, agent)
		}
	}
	return out
}

// dispatch fans the given agents out over goroutines (research-tier
// agents are mutually independent by construction; synthesis-tier
// dispatch is typically a singleton slice since advisor collapses to one
// step and technical_analysis usually has one ready task at a time, but
// the same fan-out handles either case uniformly).
//
// Specialist.Run writes directly into state.TaskStatus/AgentResults
// rather than returning a value for the caller to merge, so each Run
// call is serialized under stateMu: the goroutines still overlap on
// their own tool/LLM I/O, but never touch the shared maps at the same
// time.
func (s *Scheduler) dispatch(ctx context.Context, state *orchestrator.ConversationState, readyAgents []orchestrator.AgentName, hook EventHook) {
	var wg sync.WaitGroup
	var stateMu sync.Mutex

	for _, name := range readyAgents {
		specialist, ok := s.specialists[name]
		if !ok {
			continue
		}
		tasks := state.ReadyTasks(name)

		wg.Add(1)
		go func(specialist agents.Specialist, tasks []orchestrator.AgentTask) {
			defer wg.Done()

			if hook != nil {
				hook.AgentStart(specialist.Name())
			}

			stateMu.Lock()
			defer stateMu.Unlock()
			specialist.Run(ctx, tasks, state)
			s.enforceDispatchContract(state, tasks)
			notifyTaskUpdates(hook, state, tasks)
			if hook != nil {
				hook.AgentEnd(specialist.Name())
			}
		}(specialist, tasks)
	}

	wg.Wait()
}

func notifyTaskUpdates(hook EventHook, state *orchestrator.ConversationState, tasks []orchestrator.AgentTask) {
	if hook == nil {
		return
	}
	for _, t := range tasks {
		hook.TaskUpdate(t.TaskID, state.TaskStatus[t.TaskID])
	}
}

// enforceDispatchContract guards against the "bug" case spec §4.9
// names explicitly: a specialist returning without updating status for
// a task it owned this turn. Any task still pending after Run is forced
// to failed so the scheduler can still make progress and terminate.
func (s *Scheduler) enforceDispatchContract(state *orchestrator.ConversationState, tasks []orchestrator.AgentTask) {
	for _, t := range tasks {
		if state.TaskStatus[t.TaskID] == orchestrator.TaskPending {
			state.TaskStatus[t.TaskID] = orchestrator.TaskFailed
		}
	}
}

// failUnroutable marks any remaining pending task failed when neither
// tier has a ready agent for it, most commonly a plan step naming an
// agent this Scheduler was not constructed with.
func (s *Scheduler) failUnroutable(state *orchestrator.ConversationState) {
	for _, task := range state.Plan.Steps {
		if state.TaskStatus[task.TaskID] == orchestrator.TaskPending {
			state.TaskStatus[task.TaskID] = orchestrator.TaskFailed
		}
	}
}
