package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/memory"
	"github.com/finresearch/orchestrator/internal/orchestrator"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return []float32{1, 0}, nil }

type recordingStore struct {
	savedContent string
	saveErr      error
}

func (s *recordingStore) Upsert(_ context.Context, _ []float32, doc memory.Document) error {
	s.savedContent = doc.PageContent
	return s.saveErr
}
func (s *recordingStore) Search(_ context.Context, _ []float32, _ int, _ memory.Filter) ([]memory.Document, error) {
	return nil, nil
}

func TestCompose_PrefersNonEmptyAdvisorResult(t *testing.T) {
	results := map[orchestrator.AgentName]orchestrator.AgentResult{
		orchestrator.AgentMarketData: {Agent: orchestrator.AgentMarketData, Content: "AAPL is up 2%"},
		orchestrator.AgentAdvisor:    {Agent: orchestrator.AgentAdvisor, Content: "Buy AAPL on the dip."},
	}
	out := compose(results)
	assert.Equal(t, "Buy AAPL on the dip.", out)
}

func TestCompose_FallsBackToFixedOrderSummaryWhenAdvisorEmpty(t *testing.T) {
	results := map[orchestrator.AgentName]orchestrator.AgentResult{
		orchestrator.AgentSentiment: {Agent: orchestrator.AgentSentiment, Content: "Reddit is bullish."},
		orchestrator.AgentMarketData: {Agent: orchestrator.AgentMarketData, Content: "AAPL closed at $200."},
	}
	out := compose(results)
	marketIdx := indexOf(out, "### Market Data")
	sentimentIdx := indexOf(out, "### Sentiment")
	require.GreaterOrEqual(t, marketIdx, 0)
	require.GreaterOrEqual(t, sentimentIdx, 0)
	assert.Less(t, marketIdx, sentimentIdx, "market_data section must precede sentiment per the fixed order")
}

func TestCompose_SkipsEmptySections(t *testing.T) {
	results := map[orchestrator.AgentName]orchestrator.AgentResult{
		orchestrator.AgentMarketData: {Agent: orchestrator.AgentMarketData, Content: ""},
		orchestrator.AgentMacro:      {Agent: orchestrator.AgentMacro, Content: "CPI rose 0.2%."},
	}
	out := compose(results)
	assert.NotContains(t, out, "### Market Data")
	assert.Contains(t, out, "### Macro")
}

func TestCompose_NoResultsProducesApologeticDefault(t *testing.T) {
	out := compose(map[orchestrator.AgentName]orchestrator.AgentResult{})
	assert.Contains(t, out, "No research results")
}

func TestRun_PersistsComposedResponseToMemory(t *testing.T) {
	store := &recordingStore{}
	mgr := memory.NewManager(stubEmbedder{}, store)
	agg := New(mgr, zerolog.Nop())

	state := &orchestrator.ConversationState{
		TenantID: "t1", UserID: "u1", ConversationID: "c1",
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{
			orchestrator.AgentAdvisor: {Agent: orchestrator.AgentAdvisor, Content: "Hold your position."},
		},
	}

	agg.Run(context.Background(), "should I sell AAPL", state)

	assert.Equal(t, "Hold your position.", state.FinalResponse)
	assert.Contains(t, store.savedContent, "Hold your position.")
	assert.Contains(t, store.savedContent, "should I sell AAPL")
}

func TestRun_SwallowsMemoryPersistenceFailure(t *testing.T) {
	store := &recordingStore{saveErr: errors.New("store unavailable")}
	mgr := memory.NewManager(stubEmbedder{}, store)
	agg := New(mgr, zerolog.Nop())

	state := &orchestrator.ConversationState{
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{
			orchestrator.AgentAdvisor: {Agent: orchestrator.AgentAdvisor, Content: "Advice."},
		},
	}

	assert.NotPanics(t, func() {
		agg.Run(context.Background(), "question", state)
	})
	assert.Equal(t, "Advice.", state.FinalResponse)
}

func TestRun_NilMemoryManagerSkipsPersistence(t *testing.T) {
	agg := New(nil, zerolog.Nop())
	state := &orchestrator.ConversationState{
		AgentResults: map[orchestrator.AgentName]orchestrator.AgentResult{
			orchestrator.AgentAdvisor: {Agent: orchestrator.AgentAdvisor, Content: "Advice."},
		},
	}
	assert.NotPanics(t, func() {
		agg.Run(context.Background(), "question", state)
	})
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
