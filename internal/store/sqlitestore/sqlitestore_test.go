package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReportRun_SaveAndGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := store.ReportRun{
		ID: "run-1", ReportType: "citadel_technical",
		PayloadJSON: []byte(`{"ticker":"AAPL"}`), ReportJSON: []byte(`{"markdown":"..."}`),
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveReportRun(ctx, run))

	got, err := s.GetReportRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ReportType, got.ReportType)
	assert.Equal(t, run.PayloadJSON, got.PayloadJSON)
}

func TestGetReportRun_MissingIDErrors(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetReportRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestThreadLifecycle_CreateAppendAndFetch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	thread := store.ReportThread{
		ThreadID: "thread-1", OwnerKey: "owner-1", ReportType: "goldman_screener",
		BasePayloadJSON: []byte(`{}`), EffectivePrompt: "default", LatestReportJSON: []byte(`{}`),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateThread(ctx, thread))

	require.NoError(t, s.AppendMessage(ctx, store.ThreadMessage{ThreadID: "thread-1", Role: "user", Content: "refresh this", CreatedAt: now}))
	require.NoError(t, s.AppendMessage(ctx, store.ThreadMessage{ThreadID: "thread-1", Role: "assistant", Content: "done", CreatedAt: now.Add(time.Second)}))

	got, found, err := s.GetThread(ctx, "thread-1", "owner-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
}

func TestGetThread_WrongOwnerKeyMisses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateThread(ctx, store.ReportThread{
		ThreadID: "thread-1", OwnerKey: "owner-1", ReportType: "goldman_screener",
		BasePayloadJSON: []byte(`{}`), LatestReportJSON: []byte(`{}`), CreatedAt: now, UpdatedAt: now,
	}))

	_, found, err := s.GetThread(ctx, "thread-1", "someone-else")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateLatestReport_PersistsNewPayload(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateThread(ctx, store.ReportThread{
		ThreadID: "thread-1", OwnerKey: "owner-1", ReportType: "bridgewater_macro",
		BasePayloadJSON: []byte(`{}`), LatestReportJSON: []byte(`{"v":1}`), CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, s.UpdateLatestReport(ctx, "thread-1", []byte(`{"v":2}`), now.Add(time.Minute)))

	got, found, err := s.GetThread(ctx, "thread-1", "owner-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"v":2}`, string(got.LatestReportJSON))
}

func TestPromptOverride_UpsertOverwritesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertOverride(ctx, store.PromptOverride{OwnerKey: "o1", ReportType: "vanguard_dividend_safety", PromptText: "v1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.UpsertOverride(ctx, store.PromptOverride{OwnerKey: "o1", ReportType: "vanguard_dividend_safety", PromptText: "v2", CreatedAt: now, UpdatedAt: now.Add(time.Minute)}))

	got, found, err := s.GetOverride(ctx, "o1", "vanguard_dividend_safety")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", got.PromptText)
}

func TestPromptOverride_DeleteRemovesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertOverride(ctx, store.PromptOverride{OwnerKey: "o1", ReportType: "ark_innovation_thematic", PromptText: "v1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.DeleteOverride(ctx, "o1", "ark_innovation_thematic"))

	_, found, err := s.GetOverride(ctx, "o1", "ark_innovation_thematic")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBrokerAndTradeAudit_SaveDoesNotError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveBrokerEvent(ctx, store.BrokerAuditRecord{Timestamp: now, App: "market", Provider: "schwab", Endpoint: "/quote", Status: 200, Success: true, RequestID: "r1"}))
	require.NoError(t, s.SaveTradeAudit(ctx, store.TradeAuditRecord{Timestamp: now, Symbol: "AAPL", Side: "buy", Quantity: 10, OrderType: "market", TicketID: "t1", Approved: true, Actor: "user-1"}))
}
