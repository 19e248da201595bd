package stream

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/finresearch/orchestrator/internal/aggregator"
	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/planner"
	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/scheduler"
)

var tracer = otel.Tracer("stream")

// Runner drives one chat turn end to end and forwards every event on
// Sink (spec §4.13). It owns no state across turns; every field is a
// shared, already-constructed collaborator.
type Runner struct {
	Planner    *planner.Planner
	Scheduler  *scheduler.Scheduler
	Aggregator *aggregator.Aggregator
	Reports    *reports.Orchestrator

	// TraceLinkURL builds an exporter-specific UI link for a trace id,
	// emitted as trace_link{url} when non-nil (SPEC_FULL §4.12a). Left
	// nil, no trace_link event is sent.
	TraceLinkURL func(traceID string) string
}

// hookAdapter bridges scheduler.EventHook to this package's Sink without
// the scheduler package depending on the stream wire format.
type hookAdapter struct{ emit Sink }

func (h hookAdapter) AgentStart(agent orchestrator.AgentName) { h.emit(agentStart(string(agent))) }
func (h hookAdapter) AgentEnd(agent orchestrator.AgentName)   { h.emit(agentEnd(string(agent))) }
func (h hookAdapter) TaskUpdate(taskID string, status orchestrator.TaskStatus) {
	h.emit(taskUpdate(taskID, string(status)))
}

func (r *Runner) emitTrace(ctx context.Context, emit Sink) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	traceID := sc.TraceID().String()
	emit(traceRun("otel", traceID))
	if r.TraceLinkURL != nil {
		if url := r.TraceLinkURL(traceID); url != "" {
			emit(traceLink(url))
		}
	}
}

// RunChat implements spec §4.13 path 3: plan the turn, emit at most one
// decision event, drive the scheduler with agent_start/agent_end/
// task_update forwarded as they happen, aggregate, and emit exactly one
// final event (or an error plus a short fallback final).
func (r *Runner) RunChat(ctx context.Context, messages []orchestrator.Message, tenantID, userID, conversationID string, emit Sink) {
	ctx, span := tracer.Start(ctx, "stream.chat")
	defer span.End()
	r.emitTrace(ctx, emit)

	state := r.Planner.Plan(ctx, messages, tenantID, userID, conversationID)

	steps := make([]DecisionStep, 0, len(state.Plan.Steps))
	for _, t := range state.Plan.Steps {
		steps = append(steps, DecisionStep{TaskID: t.TaskID, Agent: string(t.Agent), Query: t.Query, DependsOn: t.DependsOn})
	}
	if len(steps) > 0 {
		emit(decisionEvent(state.Plan.Reasoning, steps))
	}

	if err := r.Scheduler.Run(ctx, &state, hookAdapter{emit: emit}); err != nil {
		emit(errorEvent(err.Error()))
		emit(finalEvent("Something went wrong completing this request. Please try again."))
		return
	}

	userMessage := ""
	if len(messages) > 0 {
		userMessage = messages[len(messages)-1].Content
	}
	r.Aggregator.Run(ctx, userMessage, &state)

	emit(tokenEvent(state.FinalResponse))
	emit(finalEvent(state.FinalResponse))
}

// RunReport implements spec §4.13 path 2 (and the non-follow-up half of
// path 1): stream the report orchestrator's run. Per the documented
// Open Question of spec.md's design notes, this path emits final with
// the report markdown and an agent_end{agent:"report_generator"} with no
// matching agent_start for any sub-agent; that behavior is intentional
// and preserved here, not a bug to fix.
func (r *Runner) RunReport(ctx context.Context, req reports.RunRequest, emit Sink) {
	ctx, span := tracer.Start(ctx, "stream.report")
	defer span.End()
	r.emitTrace(ctx, emit)

	result, err := r.Reports.Orchestrate(ctx, req)
	if err != nil {
		emit(errorEvent(err.Error()))
		emit(finalEvent(fmt.Sprintf("Could not generate the %s report. Please try again.", req.ReportType)))
		return
	}

	emit(finalEvent(result.Report.Markdown))
	emit(agentEnd("report_generator"))
}

// RunReportFollowUp implements spec §4.13 path 1 (explicit report
// follow-up): stream the orchestrator follow-up, preserving the same
// final+agent_end quirk as RunReport.
func (r *Runner) RunReportFollowUp(ctx context.Context, reportType, ownerKey, threadID, question string, refreshData bool, emit Sink) {
	ctx, span := tracer.Start(ctx, "stream.report_followup")
	defer span.End()
	r.emitTrace(ctx, emit)

	result, err := r.Reports.OrchestrateFollowUp(ctx, reportType, ownerKey, threadID, question, refreshData)
	if err != nil {
		emit(errorEvent(err.Error()))
		emit(finalEvent(fmt.Sprintf("Could not process this follow-up for %s. Please try again.", reportType)))
		return
	}

	emit(finalEvent(result.Report.Markdown))
	emit(agentEnd("report_generator"))
}
