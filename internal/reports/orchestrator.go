package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finresearch/orchestrator/internal/store"
)

var tracer = otel.Tracer("orchestrator/reports")

// Registry resolves a report_type string to its Plugin (spec §4.11a's
// ten named types).
type Registry map[string]Plugin

// Orchestrator drives one report run end to end (spec §4.12): effective
// prompt resolution, build, synthesis, quality gate + repair, thread
// lifecycle, trace emission.
type Orchestrator struct {
	Plugins   Registry
	Threads   store.ThreadStore
	Overrides store.PromptOverrideStore
	Runs      store.ReportStore
}

func NewOrchestrator(plugins Registry, threads store.ThreadStore, overrides store.PromptOverrideStore, runs store.ReportStore) *Orchestrator {
	return &Orchestrator{Plugins: plugins, Threads: threads, Overrides: overrides, Runs: runs}
}

// RunRequest is the inbound POST /reports/{type} body (spec §6).
type RunRequest struct {
	ReportType       string
	Payload          Payload
	OwnerKey         string
	PromptOverride   string // inline_override, highest precedence
	ThreadID         string
	FollowUpQuestion string
	RefreshData      bool
}

// RunResult is the full outbound report object plus its thread id.
type RunResult struct {
	Report   Report
	Quality  QualityResult
	ThreadID string
}

// Orchestrate implements spec §4.12 steps 1-7 for a fresh (non-follow-up)
// run.
func (o *Orchestrator) Orchestrate(ctx context.Context, req RunRequest) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "report.orchestrate")
	defer span.End()
	span.SetAttributes(attribute.String("report_type", req.ReportType), attribute.String("owner_key", req.OwnerKey))

	plugin, ok := o.Plugins[req.ReportType]
	if !ok {
		return RunResult{}, fmt.Errorf("reports: unknown report type %q", req.ReportType)
	}

	effectivePrompt, err := o.resolveEffectivePrompt(ctx, req)
	if err != nil {
		return RunResult{}, err
	}

	builder := New(plugin)
	report, err := builder.Build(ctx, req.Payload)
	if err != nil {
		return RunResult{}, err
	}

	report = Synthesize(report, "")
	result := Score(report, req.Payload)
	if !result.Passed {
		report = Repair(report, result)
		result = Score(report, req.Payload)
	}
	span.SetAttributes(attribute.Float64("quality_score", result.Score))

	threadID, err := o.reconcileThread(ctx, req, effectivePrompt, report)
	if err != nil {
		return RunResult{}, err
	}
	span.SetAttributes(attribute.String("thread_id", threadID))

	if o.Runs != nil {
		reportJSON, _ := json.Marshal(report)
		payloadJSON, _ := json.Marshal(req.Payload)
		_ = o.Runs.SaveReportRun(ctx, store.ReportRun{
			ID: uuid.NewString(), ReportType: report.ReportType,
			PayloadJSON: payloadJSON, ReportJSON: reportJSON, GeneratedAt: report.GeneratedAt,
		})
	}

	return RunResult{Report: report, Quality: result, ThreadID: threadID}, nil
}

// resolveEffectivePrompt implements spec §4.12 step 1's precedence:
// inline_override > per-owner saved override > system default.
func (o *Orchestrator) resolveEffectivePrompt(ctx context.Context, req RunRequest) (string, error) {
	if req.PromptOverride != "" {
		return req.PromptOverride, nil
	}
	if o.Overrides != nil && req.OwnerKey != "" {
		override, found, err := o.Overrides.GetOverride(ctx, req.OwnerKey, req.ReportType)
		if err != nil {
			return "", fmt.Errorf("reports: resolving prompt override: %w", err)
		}
		if found {
			return override.PromptText, nil
		}
	}
	return "system default: " + req.ReportType, nil
}

// reconcileThread implements spec §4.12 step 6: reuse an existing thread
// for thread_id+owner_key, else create one seeded with
// {base_payload, effective_prompt, latest_report}; append the assistant
// message either way.
func (o *Orchestrator) reconcileThread(ctx context.Context, req RunRequest, effectivePrompt string, report Report) (string, error) {
	if o.Threads == nil {
		return req.ThreadID, nil
	}

	now := time.Now()
	reportJSON, _ := json.Marshal(report)

	if req.ThreadID != "" {
		existing, found, err := o.Threads.GetThread(ctx, req.ThreadID, req.OwnerKey)
		if err != nil {
			return "", fmt.Errorf("reports: looking up thread: %w", err)
		}
		if found {
			if existing.ReportType != req.ReportType {
				return "", fmt.Errorf("reports: thread %s is type %s, not %s", req.ThreadID, existing.ReportType, req.ReportType)
			}
			if err := o.Threads.UpdateLatestReport(ctx, req.ThreadID, reportJSON, now); err != nil {
				return "", fmt.Errorf("reports: updating thread: %w", err)
			}
			if err := o.appendAssistantMessage(ctx, req.ThreadID, report); err != nil {
				return "", err
			}
			return req.ThreadID, nil
		}
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	payloadJSON, _ := json.Marshal(req.Payload)
	thread := store.ReportThread{
		ThreadID: threadID, OwnerKey: req.OwnerKey, ReportType: req.ReportType,
		BasePayloadJSON: payloadJSON, EffectivePrompt: effectivePrompt, LatestReportJSON: reportJSON,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := o.Threads.CreateThread(ctx, thread); err != nil {
		return "", fmt.Errorf("reports: creating thread: %w", err)
	}
	if err := o.appendAssistantMessage(ctx, threadID, report); err != nil {
		return "", err
	}
	return threadID, nil
}

func (o *Orchestrator) appendAssistantMessage(ctx context.Context, threadID string, report Report) error {
	return o.Threads.AppendMessage(ctx, store.ThreadMessage{
		ThreadID: threadID, Role: "assistant", Content: report.Markdown, CreatedAt: time.Now(),
	})
}

// OrchestrateFollowUp implements spec §4.12's follow-up path
// (orchestrate_followup): validate owner/thread/type match, optionally
// refresh the builder's data, re-synthesize under a "Follow-up" label,
// re-score, repair, update the thread's latest_report, and append exactly
// two messages (the question, then the reply). The question text and
// earlier thread messages are not fed into the synthesis.
func (o *Orchestrator) OrchestrateFollowUp(ctx context.Context, reportType, ownerKey, threadID, question string, refreshData bool) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "report.orchestrate_followup", trace.WithAttributes(
		attribute.String("report_type", reportType), attribute.String("thread_id", threadID)))
	defer span.End()

	if o.Threads == nil {
		return RunResult{}, fmt.Errorf("reports: follow-up requires a thread store")
	}

	thread, found, err := o.Threads.GetThread(ctx, threadID, ownerKey)
	if err != nil {
		return RunResult{}, fmt.Errorf("reports: looking up thread: %w", err)
	}
	if !found {
		return RunResult{}, fmt.Errorf("reports: thread %s not found for owner %s", threadID, ownerKey)
	}
	if thread.ReportType != reportType {
		return RunResult{}, fmt.Errorf("reports: thread %s is type %s, not %s", threadID, thread.ReportType, reportType)
	}
	if question == "" {
		return RunResult{}, fmt.Errorf("reports: follow-up question must not be empty")
	}

	var report Report
	if refreshData {
		plugin, ok := o.Plugins[reportType]
		if !ok {
			return RunResult{}, fmt.Errorf("reports: unknown report type %q", reportType)
		}
		var payload Payload
		_ = json.Unmarshal(thread.BasePayloadJSON, &payload)
		builder := New(plugin)
		report, err = builder.Build(ctx, payload)
		if err != nil {
			return RunResult{}, err
		}
	} else {
		_ = json.Unmarshal(thread.LatestReportJSON, &report)
	}

	now := time.Now()
	if err := o.Threads.AppendMessage(ctx, store.ThreadMessage{ThreadID: threadID, Role: "user", Content: question, CreatedAt: now}); err != nil {
		return RunResult{}, fmt.Errorf("reports: appending follow-up question: %w", err)
	}

	var payload Payload
	_ = json.Unmarshal(thread.BasePayloadJSON, &payload)
	report = Synthesize(report, "Follow-up")
	result := Score(report, payload)
	if !result.Passed {
		report = Repair(report, result)
		result = Score(report, payload)
	}
	span.SetAttributes(attribute.Float64("quality_score", result.Score))

	reportJSON, _ := json.Marshal(report)
	if err := o.Threads.UpdateLatestReport(ctx, threadID, reportJSON, now.Add(time.Millisecond)); err != nil {
		return RunResult{}, fmt.Errorf("reports: updating thread: %w", err)
	}
	if err := o.Threads.AppendMessage(ctx, store.ThreadMessage{ThreadID: threadID, Role: "assistant", Content: report.Markdown, CreatedAt: now.Add(2 * time.Millisecond)}); err != nil {
		return RunResult{}, fmt.Errorf("reports: appending follow-up reply: %w", err)
	}

	return RunResult{Report: report, Quality: result, ThreadID: threadID}, nil
}
