// Package tradecontrols implements spec §4.14's guarded stub: a
// trade-submission surface that is a policy gate and an audit trail, not
// a real broker-order path (live trading execution is an explicit
// Non-goal). Every request is audited regardless of outcome, grounded on
// the teacher's audit-before-and-after-attempt convention in its
// Tradernet client's request-queue logging.
package tradecontrols

import (
	"context"
	"fmt"
	"time"

	"github.com/finresearch/orchestrator/internal/store"
)

// Approval is the HITL sign-off attached to a submission (spec §4.14:
// "all fields non-empty when HITL is required").
type Approval struct {
	Approved bool
	Reviewer string
	TicketID string
	Reason   string
}

func (a Approval) complete() bool {
	return a.Approved && a.Reviewer != "" && a.TicketID != "" && a.Reason != ""
}

// OrderRequest is the redacted allow-list of order fields spec §4.14
// names: symbol, side, quantity, order_type, ticket_id. Any other field
// a caller might attach never reaches Gate, let alone the audit store.
type OrderRequest struct {
	Symbol    string
	Side      string
	Quantity  float64
	OrderType string
	Approval  Approval
}

// Gate is the guarded stub: it enforces policy and audits every attempt,
// but never places a real order (Non-goal, spec §1).
type Gate struct {
	Audit             store.TradeAuditStore
	EnableLiveTrading bool
	SharedSecret      string // empty disables the header check
}

func New(audit store.TradeAuditStore, enableLiveTrading bool, sharedSecret string) *Gate {
	return &Gate{Audit: audit, EnableLiveTrading: enableLiveTrading, SharedSecret: sharedSecret}
}

// Submit implements spec §4.14's three-part permission check, auditing
// every request, and auditing the outcome only when all three checks pass.
func (g *Gate) Submit(ctx context.Context, req OrderRequest, inboundSecret, actor string) error {
	g.audit(ctx, req, actor, false)

	if !g.EnableLiveTrading {
		return fmt.Errorf("tradecontrols: live trading is disabled")
	}
	if !req.Approval.complete() {
		return fmt.Errorf("tradecontrols: HITL approval incomplete")
	}
	if g.SharedSecret != "" && inboundSecret != g.SharedSecret {
		return fmt.Errorf("tradecontrols: shared-secret header mismatch")
	}

	g.audit(ctx, req, actor, true)
	return nil
}

func (g *Gate) audit(ctx context.Context, req OrderRequest, actor string, approved bool) {
	if g.Audit == nil {
		return
	}
	rec := store.TradeAuditRecord{
		Timestamp: time.Now(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		OrderType: req.OrderType,
		TicketID:  req.Approval.TicketID,
		Approved:  approved,
		Actor:     actor,
	}
	// Audit persistence is best-effort: a broken audit sink must never
	// block or fail a trade-control decision it is merely recording.
	_ = g.Audit.SaveTradeAudit(ctx, rec)
}
