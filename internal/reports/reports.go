// Package reports implements spec §4.11/§4.11a: ten institutional-style
// report types sharing one harness. Each type supplies a Plugin
// (Validate/Collectors/Compute/Render); the harness owns the
// fan-out/timeout/degrade-to-empty machinery once, the way the teacher's
// internal/modules/scoring/scorers package keeps every scorer to its own
// Calculate while sharing nothing but the shape.
package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// FanoutTimeout is the overall budget for a report's sub-agent fan-out
// (spec §4.11 step 2: "~25s").
const FanoutTimeout = 25 * time.Second

// Payload is the caller-supplied report request: a single ticker, a
// sector/universe, a holdings list, and a result-size limit. Plugins use
// whichever fields their report type needs and Validate the rest away.
type Payload struct {
	Ticker   string
	Sector   string
	Holdings []string
	Limit    int
}

// CollectorResult is one collector's output, or its degrade-to-empty
// zero value if it failed or timed out (spec §4.11 step 2: "failures
// degrade to empty, never fatal").
type CollectorResult struct {
	Name string
	Data any
	Err  error
}

// Collector fetches one piece of raw evidence for a report (fundamentals,
// quote, history, analyst ratings, company news, insider trades, web
// sentiment, web news, or macro context).
type Collector struct {
	Name string
	Fn   func(ctx context.Context) (any, error)
}

// Report is the final emitted shape (spec §4.11 step 4).
type Report struct {
	ReportType  string
	Title       string
	GeneratedAt time.Time
	Data        any
	Markdown    string
	Assumptions []string
	Limitations []string
	SourcesUsed []string
	ToolPlan    []string
}

// Plugin is one report type's Validate/Collectors/Compute/Render
// implementation, slotted into the shared harness (spec §4.11a).
type Plugin interface {
	ReportType() string
	Title(payload Payload) string
	Validate(payload Payload) error
	Collectors(payload Payload) []Collector
	Compute(payload Payload, collected map[string]CollectorResult) (any, error)
	Render(payload Payload, data any) (markdown string, assumptions, limitations, sourcesUsed, toolPlan []string)
}

// Builder runs a Plugin end to end: validate, fan out its collectors
// under one timeout (degrading individual failures to empty rather than
// failing the whole report), compute, then render.
type Builder struct {
	Plugin Plugin
}

func New(plugin Plugin) *Builder {
	return &Builder{Plugin: plugin}
}

// Build implements spec §4.11 steps 1-4.
func (b *Builder) Build(ctx context.Context, payload Payload) (Report, error) {
	if err := b.Plugin.Validate(payload); err != nil {
		return Report{}, fmt.Errorf("reports: %s: invalid payload: %w", b.Plugin.ReportType(), err)
	}

	collected := b.runCollectors(ctx, payload)

	data, err := b.Plugin.Compute(payload, collected)
	if err != nil {
		return Report{}, fmt.Errorf("reports: %s: computing: %w", b.Plugin.ReportType(), err)
	}

	markdown, assumptions, limitations, sourcesUsed, toolPlan := b.Plugin.Render(payload, data)

	return Report{
		ReportType:  b.Plugin.ReportType(),
		Title:       b.Plugin.Title(payload),
		GeneratedAt: time.Now(),
		Data:        data,
		Markdown:    markdown,
		Assumptions: assumptions,
		Limitations: limitations,
		SourcesUsed: sourcesUsed,
		ToolPlan:    toolPlan,
	}, nil
}

// runCollectors fans every collector out concurrently under one overall
// timeout; any collector that errors or doesn't return in time degrades
// to an empty CollectorResult instead of failing the report.
func (b *Builder) runCollectors(ctx context.Context, payload Payload) map[string]CollectorResult {
	collectors := b.Plugin.Collectors(payload)
	out := make(map[string]CollectorResult, len(collectors))
	if len(collectors) == 0 {
		return out
	}

	fanoutCtx, cancel := context.WithTimeout(ctx, FanoutTimeout)
	defer cancel()

	results := make(chan CollectorResult, len(collectors))
	group, gctx := errgroup.WithContext(fanoutCtx)
	for _, c := range collectors {
		c := c
		group.Go(func() error {
			data, err := c.Fn(gctx)
			results <- CollectorResult{Name: c.Name, Data: data, Err: err}
			return nil // a collector error degrades, it never fails the group
		})
	}
	_ = group.Wait()
	close(results)

	for r := range results {
		out[r.Name] = r
	}
	// Wait returns only once every collector has returned, so each one
	// has an entry in out; a collector cut off by the timeout carries
	// its context error like any other failed collector.
	return out
}
