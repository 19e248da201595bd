package server

import (
	"net/http"

	"github.com/finresearch/orchestrator/internal/tradecontrols"
)

// tradeSubmitRequestBody is POST /trade/submit's body (spec §4.14/§6).
type tradeSubmitRequestBody struct {
	Symbol    string                     `json:"symbol"`
	Side      string                     `json:"side"`
	Quantity  float64                    `json:"quantity"`
	OrderType string                     `json:"order_type"`
	Actor     string                     `json:"actor"`
	Approval  tradeSubmitApprovalPayload `json:"approval"`
}

type tradeSubmitApprovalPayload struct {
	Approved bool   `json:"approved"`
	Reviewer string `json:"reviewer"`
	TicketID string `json:"ticket_id"`
	Reason   string `json:"reason"`
}

// handleTradeSubmit implements POST /trade/submit: the guarded stub of
// spec §4.14, gated on the X-Trade-Shared-Secret header the teacher's
// broker-webhook handlers use the same way for inbound authenticity.
func (s *Server) handleTradeSubmit(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TradeGate == nil {
		writeError(w, http.StatusServiceUnavailable, "trade controls are not configured")
		return
	}

	var body tradeSubmitRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := tradecontrols.OrderRequest{
		Symbol:    body.Symbol,
		Side:      body.Side,
		Quantity:  body.Quantity,
		OrderType: body.OrderType,
		Approval: tradecontrols.Approval{
			Approved: body.Approval.Approved,
			Reviewer: body.Approval.Reviewer,
			TicketID: body.Approval.TicketID,
			Reason:   body.Approval.Reason,
		},
	}

	inboundSecret := r.Header.Get("X-Trade-Shared-Secret")
	if err := s.cfg.TradeGate.Submit(r.Context(), req, inboundSecret, body.Actor); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
