// Package orchestrator holds the data model shared by the planner,
// scheduler, specialist agents, and aggregator (spec §3): the task DAG,
// per-turn conversation state, and the agent name enum every other
// orchestration package depends on without importing each other.
package orchestrator

import "time"

// AgentName is one of the closed set of specialists (spec §4.7).
type AgentName string

const (
	AgentMarketData        AgentName = "market_data"
	AgentFundamentals      AgentName = "fundamentals"
	AgentSentiment         AgentName = "sentiment"
	AgentMacro             AgentName = "macro"
	AgentTechnicalAnalysis AgentName = "technical_analysis"
	AgentAdvisor           AgentName = "advisor"
)

// ResearchTier is the set of independent data-producing specialists;
// SynthesisTier is the set of consumers that depend on research results
// (spec §4.9).
var (
	ResearchTier  = []AgentName{AgentMarketData, AgentFundamentals, AgentSentiment, AgentMacro}
	SynthesisTier = []AgentName{AgentTechnicalAnalysis, AgentAdvisor}
)

// AgentAliases maps user/LLM-facing synonyms onto canonical agent names
// (spec §4.7: "technicals → technical_analysis", "portfolio → advisor").
var AgentAliases = map[string]AgentName{
	"technicals": AgentTechnicalAnalysis,
	"portfolio":  AgentAdvisor,
}

// CanonicalAgent resolves an agent name string through the alias table,
// returning ("", false) if it is neither a canonical name nor a known
// alias.
func CanonicalAgent(name string) (AgentName, bool) {
	if alias, ok := AgentAliases[name]; ok {
		return alias, true
	}
	candidate := AgentName(name)
	for _, a := range append(append([]AgentName{}, ResearchTier...), SynthesisTier...) {
		if a == candidate {
			return candidate, true
		}
	}
	return "", false
}

// TaskStatus is one of the four terminal/non-terminal states a task can be
// in (spec §3). Terminal states never transition.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// AgentTask is one node of the plan DAG (spec §3).
type AgentTask struct {
	TaskID    string    `json:"task_id"`
	Agent     AgentName `json:"agent"`
	Query     string    `json:"query"`
	DependsOn []string  `json:"depends_on"`
}

// ExecutionPlan is the Planner's immutable output (spec §3).
type ExecutionPlan struct {
	Reasoning      string        `json:"reasoning"`
	Steps          []AgentTask   `json:"steps"`
	ParallelGroups [][]AgentName `json:"parallel_groups"`
}

// AgentResult is one specialist's output for the turn (spec §3).
type AgentResult struct {
	Agent   AgentName `json:"agent"`
	Content string    `json:"content"`
	Symbols []string  `json:"symbols"`
	Data    any       `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Message is one turn of conversation history fed to the planner and
// retained on ConversationState.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is owned exclusively by one Scheduler invocation for
// the duration of a single turn and destroyed after aggregation (spec
// §3).
type ConversationState struct {
	Messages       []Message
	UserID         string
	TenantID       string
	ConversationID string

	Plan          ExecutionPlan
	TaskStatus    map[string]TaskStatus
	PendingAgents []AgentName
	AgentResults  map[AgentName]AgentResult
	MemoryContext []string

	FinalResponse string
}

// ReadyTasks returns the tasks owned by agent that are pending and whose
// dependencies are all completed (spec §4.7's "ready task" definition).
func (c *ConversationState) ReadyTasks(agent AgentName) []AgentTask {
	var out []AgentTask
	for _, task := range c.Plan.Steps {
		if task.Agent != agent {
			continue
		}
		if c.TaskStatus[task.TaskID] != TaskPending {
			continue
		}
		if !c.depsCompleted(task) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func (c *ConversationState) depsCompleted(task AgentTask) bool {
	for _, dep := range task.DependsOn {
		if c.TaskStatus[dep] != TaskCompleted {
			return false
		}
	}
	return true
}

// TaskByID looks up a plan step by id.
func (c *ConversationState) TaskByID(id string) (AgentTask, bool) {
	for _, t := range c.Plan.Steps {
		if t.TaskID == id {
			return t, true
		}
	}
	return AgentTask{}, false
}
