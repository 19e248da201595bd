package tradecontrols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/store"
)

type recordingAuditStore struct {
	records []store.TradeAuditRecord
}

func (s *recordingAuditStore) SaveTradeAudit(_ context.Context, rec store.TradeAuditRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func completeApproval() Approval {
	return Approval{Approved: true, Reviewer: "jdoe", TicketID: "t-1", Reason: "confirmed over phone"}
}

func TestSubmit_RejectedWhenLiveTradingDisabled(t *testing.T) {
	audit := &recordingAuditStore{}
	gate := New(audit, false, "")

	err := gate.Submit(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 1, OrderType: "market", Approval: completeApproval()}, "", "user-1")
	assert.Error(t, err)
	require.Len(t, audit.records, 1, "the attempt is always audited even when rejected")
	assert.False(t, audit.records[0].Approved)
}

func TestSubmit_RejectedWhenApprovalIncomplete(t *testing.T) {
	audit := &recordingAuditStore{}
	gate := New(audit, true, "")

	err := gate.Submit(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 1, OrderType: "market", Approval: Approval{Approved: true}}, "", "user-1")
	assert.Error(t, err)
}

func TestSubmit_RejectedOnSharedSecretMismatch(t *testing.T) {
	audit := &recordingAuditStore{}
	gate := New(audit, true, "correct-secret")

	err := gate.Submit(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 1, OrderType: "market", Approval: completeApproval()}, "wrong-secret", "user-1")
	assert.Error(t, err)
}

func TestSubmit_SucceedsWhenAllThreeGatesPass(t *testing.T) {
	audit := &recordingAuditStore{}
	gate := New(audit, true, "correct-secret")

	err := gate.Submit(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 1, OrderType: "market", Approval: completeApproval()}, "correct-secret", "user-1")
	require.NoError(t, err)
	require.Len(t, audit.records, 2, "one audit for the attempt, one for the success")
	assert.True(t, audit.records[1].Approved)
}

func TestSubmit_EmptySharedSecretConfigDisablesHeaderCheck(t *testing.T) {
	audit := &recordingAuditStore{}
	gate := New(audit, true, "")

	err := gate.Submit(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 1, OrderType: "market", Approval: completeApproval()}, "anything", "user-1")
	assert.NoError(t, err)
}

func TestSubmit_NilAuditStoreNeverPanics(t *testing.T) {
	gate := New(nil, true, "")
	assert.NotPanics(t, func() {
		_ = gate.Submit(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 1, OrderType: "market", Approval: completeApproval()}, "", "user-1")
	})
}
