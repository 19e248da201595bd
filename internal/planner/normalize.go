package planner

import (
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/orchestrator"
)

// normalize implements spec §4.8 step 4's six sub-steps in order:
// canonicalize agent names, assign stable task ids, rewrite depends_on,
// apply default dependencies for advisor/technical_analysis, collapse
// repeated advisor steps, then the intent-upgrade lexicon check.
func normalize(plan orchestrator.ExecutionPlan, query string) orchestrator.ExecutionPlan {
	steps := canonicalizeAgents(plan.Steps)
	steps = assignTaskIDs(steps)
	steps = rewriteDependsOn(steps)
	steps = applyDefaultDependencies(steps)
	steps = collapseAdvisorSteps(steps)
	steps = intentUpgrade(steps, query)

	plan.Steps = steps
	return plan
}

func canonicalizeAgents(steps []orchestrator.AgentTask) []orchestrator.AgentTask {
	out := make([]orchestrator.AgentTask, 0, len(steps))
	for _, s := range steps {
		if canonical, ok := orchestrator.CanonicalAgent(string(s.Agent)); ok {
			s.Agent = canonical
			out = append(out, s)
		}
		// Steps naming an unrecognized agent are dropped rather than
		// carried forward as an un-runnable task.
	}
	return out
}

// assignTaskIDs fills in missing task_ids as "t{n}_{agent}" and
// deduplicates any id collisions (including against ids the LLM already
// supplied).
func assignTaskIDs(steps []orchestrator.AgentTask) []orchestrator.AgentTask {
	used := make(map[string]bool)
	out := make([]orchestrator.AgentTask, len(steps))
	for i, s := range steps {
		id := s.TaskID
		if id == "" {
			id = fmt.Sprintf("t%d_%s", i+1, s.Agent)
		}
		base := id
		suffix := 2
		for used[id] {
			id = fmt.Sprintf("%s_%d", base, suffix)
			suffix++
		}
		used[id] = true
		s.TaskID = id
		out[i] = s
	}
	return out
}

// rewriteDependsOn rewrites any depends_on entry that names an agent
// (rather than a task id) to the latest task id seen for that agent
// earlier in the plan, and drops self-dependencies.
func rewriteDependsOn(steps []orchestrator.AgentTask) []orchestrator.AgentTask {
	latestTaskForAgent := make(map[orchestrator.AgentName]string)
	validTaskIDs := make(map[string]bool, len(steps))
	for _, s := range steps {
		validTaskIDs[s.TaskID] = true
	}

	out := make([]orchestrator.AgentTask, len(steps))
	for i, s := range steps {
		var rewritten []string
		for _, dep := range s.DependsOn {
			resolved := dep
			if !validTaskIDs[dep] {
				if canonical, ok := orchestrator.CanonicalAgent(dep); ok {
					if taskID, ok := latestTaskForAgent[canonical]; ok {
						resolved = taskID
					} else {
						continue // unresolvable dependency, drop it
					}
				} else {
					continue
				}
			}
			if resolved == s.TaskID {
				continue // drop self-dep
			}
			rewritten = append(rewritten, resolved)
		}
		s.DependsOn = rewritten
		out[i] = s
		latestTaskForAgent[s.Agent] = s.TaskID
	}
	return out
}

// applyDefaultDependencies implements spec §4.8: an advisor step with no
// deps depends on every earlier task; a technical_analysis step with no
// deps depends on every earlier market_data task.
func applyDefaultDependencies(steps []orchestrator.AgentTask) []orchestrator.AgentTask {
	out := make([]orchestrator.AgentTask, len(steps))
	var allPriorIDs []string
	var priorMarketDataIDs []string

	for i, s := range steps {
		if len(s.DependsOn) == 0 {
			switch s.Agent {
			case orchestrator.AgentAdvisor:
				s.DependsOn = append([]string{}, allPriorIDs...)
			case orchestrator.AgentTechnicalAnalysis:
				s.DependsOn = append([]string{}, priorMarketDataIDs...)
			}
		}
		out[i] = s
		allPriorIDs = append(allPriorIDs, s.TaskID)
		if s.Agent == orchestrator.AgentMarketData {
			priorMarketDataIDs = append(priorMarketDataIDs, s.TaskID)
		}
	}
	return out
}

// collapseAdvisorSteps keeps only the last advisor step when the plan
// names more than one, per spec §4.8.
func collapseAdvisorSteps(steps []orchestrator.AgentTask) []orchestrator.AgentTask {
	var lastAdvisorIdx = -1
	for i, s := range steps {
		if s.Agent == orchestrator.AgentAdvisor {
			lastAdvisorIdx = i
		}
	}
	if lastAdvisorIdx == -1 {
		return steps
	}

	out := make([]orchestrator.AgentTask, 0, len(steps))
	for i, s := range steps {
		if s.Agent == orchestrator.AgentAdvisor && i != lastAdvisorIdx {
			continue
		}
		out = append(out, s)
	}
	return out
}

// intentUpgrade appends a trailing advisor step depending on every prior
// task if the query matches the advisory-trigger lexicon and no advisor
// step already exists.
func intentUpgrade(steps []orchestrator.AgentTask, query string) []orchestrator.AgentTask {
	for _, s := range steps {
		if s.Agent == orchestrator.AgentAdvisor {
			return steps
		}
	}
	if !matchesLexicon(strings.ToLower(query), advisoryLexicon) {
		return steps
	}

	allIDs := make([]string, len(steps))
	for i, s := range steps {
		allIDs[i] = s.TaskID
	}
	id := fmt.Sprintf("t%d_advisor", len(steps)+1)
	return append(steps, orchestrator.AgentTask{TaskID: id, Agent: orchestrator.AgentAdvisor, Query: query, DependsOn: allIDs})
}
