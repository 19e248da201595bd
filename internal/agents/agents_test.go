package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/providers"
)

// fakeSource is a marketdata.Source test double returning canned rows.
type fakeSource struct {
	name    string
	history map[string][]providers.RawHistoryRow
	quotes  map[string]providers.RawQuote
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Quote(_ context.Context, symbol string) (providers.RawQuote, error) {
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return providers.RawQuote{}, assertErr{}
}
func (f *fakeSource) History(_ context.Context, symbol string, _ int) ([]providers.RawHistoryRow, error) {
	return f.history[symbol], nil
}
func (f *fakeSource) Movers(_ context.Context, _, _ string) ([]providers.RawMover, error) {
	return nil, nil
}
func (f *fakeSource) MarketHours(_ context.Context) ([]providers.RawMarketHours, error) {
	return nil, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "not found" }

func newState(query string) *orchestrator.ConversationState {
	task := orchestrator.AgentTask{TaskID: "t1_market_data", Agent: orchestrator.AgentMarketData, Query: query}
	return &orchestrator.ConversationState{
		Plan:         orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{task}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t1_market_data": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}
}

func rowsRisingFrom(base float64, n int) []providers.RawHistoryRow {
	start := time.Now().AddDate(0, 0, -n)
	out := make([]providers.RawHistoryRow, n)
	for i := 0; i < n; i++ {
		out[i] = providers.RawHistoryRow{
			Symbol: "AAPL", DateISO: start.AddDate(0, 0, i).Format("2006-01-02"),
			Open: base + float64(i), High: base + float64(i) + 1, Low: base + float64(i) - 1,
			Close: base + float64(i), Volume: 1000,
		}
	}
	return out
}

func TestMarketDataAgent_ComparisonPathBuildsMergedTable(t *testing.T) {
	src := &fakeSource{
		name: "fake",
		history: map[string][]providers.RawHistoryRow{
			"AAPL": rowsRisingFrom(100, 5),
			"MSFT": rowsRisingFrom(200, 5),
		},
	}
	md := marketdata.NewService([]marketdata.Source{src})
	agent := NewMarketDataAgent(md, nil)

	state := newState("compare $AAPL vs $MSFT over 5 days")
	tasks := state.ReadyTasks(orchestrator.AgentMarketData)
	require.Len(t, tasks, 1)

	result := agent.Run(context.Background(), tasks, state)
	assert.Contains(t, result.Content, "AAPL")
	assert.Contains(t, result.Content, "MSFT")
	assert.Equal(t, orchestrator.TaskCompleted, state.TaskStatus["t1_market_data"])
}

func TestTechnicalAnalysisAgent_InsufficientHistoryFails(t *testing.T) {
	src := &fakeSource{name: "fake", history: map[string][]providers.RawHistoryRow{
		"AAPL": rowsRisingFrom(100, 10),
	}}
	md := marketdata.NewService([]marketdata.Source{src})
	agent := NewTechnicalAnalysisAgent(md)

	task := orchestrator.AgentTask{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, Query: "technical view on $AAPL", DependsOn: []string{"t1_market_data"}}
	state := &orchestrator.ConversationState{
		Plan:         orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{task}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t2_ta": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	result := agent.Run(context.Background(), []orchestrator.AgentTask{task}, state)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, orchestrator.TaskFailed, state.TaskStatus["t2_ta"])
}

func TestTechnicalAnalysisAgent_ReadsPriorMarketDataPayload(t *testing.T) {
	history := rowsRisingFrom(100, 210)
	md := marketdata.NewService(nil) // unused: prior payload satisfies the read, no re-fetch needed
	agent := NewTechnicalAnalysisAgent(md)

	normalized := make([]marketdata.HistoryRow, len(history))
	for i, r := range history {
		normalized[i] = marketdata.HistoryRow{Symbol: r.Symbol, Date: r.DateISO, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	}

	task := orchestrator.AgentTask{TaskID: "t2_ta", Agent: orchestrator.AgentTechnicalAnalysis, Query: "technical view on $AAPL"}
	state := &orchestrator.ConversationState{
		Plan:       orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{task}},
		TaskStatus: map[string]orchestrator.TaskStatus{"t2_ta": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{
			orchestrator.AgentMarketData: {Agent: orchestrator.AgentMarketData, Symbols: []string{"AAPL"}, Data: Payload{History: map[string][]marketdata.HistoryRow{"AAPL": normalized}}},
		},
	}

	result := agent.Run(context.Background(), []orchestrator.AgentTask{task}, state)
	require.Empty(t, result.Error)
	assert.Equal(t, orchestrator.TaskCompleted, state.TaskStatus["t2_ta"])
}

func TestIsPriceMoveQuery_MotionPlusIntent(t *testing.T) {
	assert.True(t, isPriceMoveQuery("why did $AAPL drop today"))
	assert.True(t, isPriceMoveQuery("AAPL went up last week"))
	assert.False(t, isPriceMoveQuery("what is AAPL's PE ratio"))
}

func TestClassifySubIntent_FlagsMismatch(t *testing.T) {
	snap := reversalSnapshot{NetChangePct: -5}
	assert.Equal(t, "up but then dropped", classifySubIntent("AAPL is up this week", snap))

	snap2 := reversalSnapshot{NetChangePct: 5}
	assert.Equal(t, "consistent", classifySubIntent("AAPL is up this week", snap2))
}

func TestAdvisorAgent_PriceMoveExplainerBuildsThreePartMarkdown(t *testing.T) {
	src := &fakeSource{name: "fake", history: map[string][]providers.RawHistoryRow{
		"AAPL": rowsRisingFrom(100, 7),
	}}
	md := marketdata.NewService([]marketdata.Source{src})
	agent := NewAdvisorAgent(md, nil)

	task := orchestrator.AgentTask{TaskID: "t3_advisor", Agent: orchestrator.AgentAdvisor, Query: "why did $AAPL go up last week"}
	state := &orchestrator.ConversationState{
		Plan:         orchestrator.ExecutionPlan{Steps: []orchestrator.AgentTask{task}},
		TaskStatus:   map[string]orchestrator.TaskStatus{"t3_advisor": orchestrator.TaskPending},
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{},
	}

	result := agent.Run(context.Background(), []orchestrator.AgentTask{task}, state)
	require.Empty(t, result.Error)
	assert.Contains(t, result.Content, "## Direct answer")
	assert.Contains(t, result.Content, "## Price Action")
	assert.Contains(t, result.Content, "## Likely Drivers")
	assert.Equal(t, orchestrator.TaskCompleted, state.TaskStatus["t3_advisor"])
}

func TestBackfillMissing_AddsUnselectedMentionedTickers(t *testing.T) {
	out := backfillMissing([]string{"AAPL"}, []string{"AAPL", "MSFT", "TSLA"})
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, out)
}

func TestExtractTickers_PrefersDollarPrefixedOverBare(t *testing.T) {
	out := ExtractTickers("compare $AAPL to IBM")
	assert.Equal(t, []string{"AAPL", "IBM"}, out)
}

func TestExtractTickers_ExcludesCommonWords(t *testing.T) {
	out := ExtractTickers("I think OK the CEO said GDP is fine")
	assert.Empty(t, out)
}
