package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/store"
	"github.com/finresearch/orchestrator/internal/store/sqlitestore"
)

// fakePlugin is a minimal Plugin whose behavior each test configures
// directly, in the style of this repo's other fakeX test doubles.
type fakePlugin struct {
	reportType  string
	validateErr error
	collectors  []Collector
	computeErr  error
	computeData any
	markdown    string
	assumptions []string
	limitations []string
	sourcesUsed []string
	toolPlan    []string
}

func (p *fakePlugin) ReportType() string            { return p.reportType }
func (p *fakePlugin) Title(Payload) string           { return "Fake Report" }
func (p *fakePlugin) Validate(Payload) error         { return p.validateErr }
func (p *fakePlugin) Collectors(Payload) []Collector { return p.collectors }
func (p *fakePlugin) Compute(_ Payload, _ map[string]CollectorResult) (any, error) {
	return p.computeData, p.computeErr
}
func (p *fakePlugin) Render(Payload, any) (string, []string, []string, []string, []string) {
	return p.markdown, p.assumptions, p.limitations, p.sourcesUsed, p.toolPlan
}

func TestBuild_RejectsInvalidPayload(t *testing.T) {
	plugin := &fakePlugin{reportType: "t", validateErr: errors.New("missing ticker")}
	_, err := New(plugin).Build(context.Background(), Payload{})
	require.Error(t, err)
}

func TestBuild_CollectorErrorDegradesToEmptyRatherThanFailingReport(t *testing.T) {
	plugin := &fakePlugin{
		reportType: "t",
		collectors: []Collector{
			{Name: "quote", Fn: func(context.Context) (any, error) { return 42, nil }},
			{Name: "news", Fn: func(context.Context) (any, error) { return nil, errors.New("boom") }},
		},
		markdown: "body",
	}
	report, err := New(plugin).Build(context.Background(), Payload{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "body", report.Markdown)
}

func TestBuild_CollectorTimeoutDegradesToEmpty(t *testing.T) {
	plugin := &fakePlugin{
		reportType: "t",
		collectors: []Collector{
			{Name: "slow", Fn: func(ctx context.Context) (any, error) {
				select {
				case <-time.After(50 * time.Millisecond):
					return "late", nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}},
		},
		markdown: "body",
	}

	builder := New(plugin)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	report, err := builder.Build(ctx, Payload{})
	require.NoError(t, err)
	assert.Equal(t, "body", report.Markdown)
}

func TestBuild_ComputeErrorFailsTheReport(t *testing.T) {
	plugin := &fakePlugin{reportType: "t", computeErr: errors.New("bad math")}
	_, err := New(plugin).Build(context.Background(), Payload{})
	require.Error(t, err)
}

func TestScore_AllChecksPassingMeetsThreshold(t *testing.T) {
	report := Report{
		ReportType:  "citadel_technical",
		Markdown:    "## Citadel Technical\n\nAAPL is trending up.",
		Assumptions: []string{"market is open"},
		Limitations: []string{"delayed quotes"},
		SourcesUsed: []string{"unified_market_data"},
		ToolPlan:    []string{"quote"},
	}
	result := Score(report, Payload{Ticker: "AAPL"})
	assert.True(t, result.Passed)
	assert.InDelta(t, 1.0, result.Score, 0.001)
}

func TestScore_BareMarkdownFailsHasMarkdownCheck(t *testing.T) {
	result := Score(Report{Markdown: "   "}, Payload{})
	assert.False(t, result.Checks["has_markdown"])
}

func TestScore_MissingTickerMentionFails(t *testing.T) {
	result := Score(Report{Markdown: "## Report\n\nSomething else entirely."}, Payload{Ticker: "AAPL"})
	assert.False(t, result.Checks["mentions_ticker"])
}

func TestScore_EmptyTickerPayloadSkipsTickerCheck(t *testing.T) {
	result := Score(Report{Markdown: "## Report\n\nBody."}, Payload{})
	assert.True(t, result.Checks["mentions_ticker"])
}

func TestRepair_FillsEveryFailingCheckSoASecondScorePasses(t *testing.T) {
	report := Report{ReportType: "citadel_technical", Title: "Citadel Technical", Markdown: ""}
	first := Score(report, Payload{})
	require.False(t, first.Passed)

	repaired := Repair(report, first)
	second := Score(repaired, Payload{})
	assert.True(t, second.Passed)
}

func TestSynthesize_StripsObjectObjectArtifacts(t *testing.T) {
	report := Report{Markdown: "Summary: [object Object] looks strong."}
	out := Synthesize(report, "")
	assert.NotContains(t, out.Markdown, "[object Object]")
}

func TestSynthesize_CollapsesBlankLineRuns(t *testing.T) {
	report := Report{Markdown: "Line one.\n\n\n\n\nLine two."}
	out := Synthesize(report, "")
	assert.NotContains(t, out.Markdown, "\n\n\n")
}

func TestSynthesize_PrependsFollowUpLabel(t *testing.T) {
	report := Report{Markdown: "Body."}
	out := Synthesize(report, "Follow-up")
	assert.Contains(t, out.Markdown, "**Follow-up**")
}

func TestSynthesize_AppendsAtMostOneCriticalNote(t *testing.T) {
	report := Report{
		Markdown:    "Body.",
		Limitations: []string{"stale data", "thin coverage"},
		Assumptions: []string{"market open"},
	}
	out := Synthesize(report, "")
	assert.Contains(t, out.Markdown, "stale data")
	assert.NotContains(t, out.Markdown, "thin coverage")
	assert.NotContains(t, out.Markdown, "market open")
}

func TestSynthesize_FallsBackToAssumptionWhenNoLimitations(t *testing.T) {
	report := Report{Markdown: "Body.", Assumptions: []string{"market open"}}
	out := Synthesize(report, "")
	assert.Contains(t, out.Markdown, "market open")
}

func openOrchestratorStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOrchestrate_CreatesThreadAndPassesQualityGate(t *testing.T) {
	s := openOrchestratorStore(t)
	plugin := &fakePlugin{
		reportType:  "citadel_technical",
		markdown:    "## Citadel Technical\n\nAAPL momentum looks constructive.",
		assumptions: []string{"market is open"},
		limitations: []string{"delayed quotes"},
		sourcesUsed: []string{"unified_market_data"},
		toolPlan:    []string{"quote"},
	}
	orch := NewOrchestrator(Registry{"citadel_technical": plugin}, s, s, s)

	result, err := orch.Orchestrate(context.Background(), RunRequest{
		ReportType: "citadel_technical",
		Payload:    Payload{Ticker: "AAPL"},
		OwnerKey:   "owner-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Quality.Passed)
	assert.NotEmpty(t, result.ThreadID)

	thread, found, err := s.GetThread(context.Background(), result.ThreadID, "owner-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "citadel_technical", thread.ReportType)
}

func TestOrchestrate_UnknownReportTypeErrors(t *testing.T) {
	s := openOrchestratorStore(t)
	orch := NewOrchestrator(Registry{}, s, s, s)
	_, err := orch.Orchestrate(context.Background(), RunRequest{ReportType: "nonexistent"})
	require.Error(t, err)
}

func TestOrchestrate_InlinePromptOverrideTakesPrecedenceOverSaved(t *testing.T) {
	s := openOrchestratorStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertOverride(ctx, store.PromptOverride{
		OwnerKey: "owner-1", ReportType: "citadel_technical", PromptText: "saved override",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	plugin := &fakePlugin{reportType: "citadel_technical", markdown: "## Citadel Technical\n\nbody AAPL"}
	orch := NewOrchestrator(Registry{"citadel_technical": plugin}, s, s, s)

	prompt, err := orch.resolveEffectivePrompt(ctx, RunRequest{
		ReportType: "citadel_technical", OwnerKey: "owner-1", PromptOverride: "inline override",
	})
	require.NoError(t, err)
	assert.Equal(t, "inline override", prompt)
}

func TestOrchestrate_SavedOverrideUsedWhenNoInlineOverride(t *testing.T) {
	s := openOrchestratorStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertOverride(ctx, store.PromptOverride{
		OwnerKey: "owner-1", ReportType: "citadel_technical", PromptText: "saved override",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	orch := NewOrchestrator(Registry{}, s, s, s)
	prompt, err := orch.resolveEffectivePrompt(ctx, RunRequest{ReportType: "citadel_technical", OwnerKey: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, "saved override", prompt)
}

func TestOrchestrateFollowUp_AppendsExactlyTwoMessages(t *testing.T) {
	s := openOrchestratorStore(t)
	ctx := context.Background()
	plugin := &fakePlugin{
		reportType: "citadel_technical",
		markdown:   "## Citadel Technical\n\nAAPL momentum looks constructive.",
	}
	orch := NewOrchestrator(Registry{"citadel_technical": plugin}, s, s, s)

	first, err := orch.Orchestrate(ctx, RunRequest{
		ReportType: "citadel_technical", Payload: Payload{Ticker: "AAPL"}, OwnerKey: "owner-1",
	})
	require.NoError(t, err)

	before, err := s.RecentMessages(ctx, first.ThreadID, 0)
	require.NoError(t, err)

	_, err = orch.OrchestrateFollowUp(ctx, "citadel_technical", "owner-1", first.ThreadID, "what about next week?", false)
	require.NoError(t, err)

	after, err := s.RecentMessages(ctx, first.ThreadID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+2)
}

func TestOrchestrateFollowUp_MismatchedReportTypeErrors(t *testing.T) {
	s := openOrchestratorStore(t)
	ctx := context.Background()
	plugin := &fakePlugin{reportType: "citadel_technical", markdown: "## Citadel Technical\n\nbody AAPL"}
	orch := NewOrchestrator(Registry{"citadel_technical": plugin}, s, s, s)

	first, err := orch.Orchestrate(ctx, RunRequest{
		ReportType: "citadel_technical", Payload: Payload{Ticker: "AAPL"}, OwnerKey: "owner-1",
	})
	require.NoError(t, err)

	_, err = orch.OrchestrateFollowUp(ctx, "goldman_screener", "owner-1", first.ThreadID, "question", false)
	require.Error(t, err)
}

func TestOrchestrateFollowUp_EmptyQuestionErrors(t *testing.T) {
	s := openOrchestratorStore(t)
	ctx := context.Background()
	plugin := &fakePlugin{reportType: "citadel_technical", markdown: "## Citadel Technical\n\nbody AAPL"}
	orch := NewOrchestrator(Registry{"citadel_technical": plugin}, s, s, s)

	first, err := orch.Orchestrate(ctx, RunRequest{
		ReportType: "citadel_technical", Payload: Payload{Ticker: "AAPL"}, OwnerKey: "owner-1",
	})
	require.NoError(t, err)

	_, err = orch.OrchestrateFollowUp(ctx, "citadel_technical", "owner-1", first.ThreadID, "", false)
	require.Error(t, err)
}
