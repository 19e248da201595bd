package server

import (
	"context"
	"net/http"

	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/stream"
)

// chatMessage mirrors spec §6's wire shape for one turn of history.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatReportFollowUp mirrors spec §6's explicit follow-up payload.
type chatReportFollowUp struct {
	ReportType  string `json:"report_type"`
	ThreadID    string `json:"thread_id"`
	RefreshData bool   `json:"refresh_data,omitempty"`
}

// chatRequest is POST /api/chat's body (spec §6).
type chatRequest struct {
	Messages       []chatMessage       `json:"messages"`
	UserID         string              `json:"user_id,omitempty"`
	TenantID       string              `json:"tenant_id,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	ReportFollowUp *chatReportFollowUp `json:"report_followup,omitempty"`
}

// handleChat implements spec §4.13/§6: classify the latest turn, then
// stream whichever path the classification picked over SSE.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	texts := make([]string, 0, len(req.Messages))
	messages := make([]orchestrator.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		texts = append(texts, m.Content)
		messages = append(messages, orchestrator.Message{Role: m.Role, Content: m.Content})
	}

	var followUp *stream.ReportFollowUp
	if req.ReportFollowUp != nil {
		followUp = &stream.ReportFollowUp{
			ReportType:  req.ReportFollowUp.ReportType,
			ThreadID:    req.ReportFollowUp.ThreadID,
			RefreshData: req.ReportFollowUp.RefreshData,
		}
	}
	decision := stream.Classify(followUp, texts)

	ownerKey := req.UserID
	if ownerKey == "" {
		ownerKey = req.TenantID
	}

	latestQuestion := ""
	if len(texts) > 0 {
		latestQuestion = texts[len(texts)-1]
	}

	stream.ServeSSE(w, r, s.log, func(ctx context.Context, emit stream.Sink) {
		switch decision.Kind {
		case stream.KindReportFollowUp:
			s.cfg.Runner.RunReportFollowUp(ctx, decision.FollowUp.ReportType, ownerKey,
				decision.FollowUp.ThreadID, latestQuestion, decision.FollowUp.RefreshData, emit)

		case stream.KindReportRequest:
			s.cfg.Runner.RunReport(ctx, reports.RunRequest{
				ReportType: decision.ReportType,
				Payload:    reports.Payload{Ticker: decision.Ticker, Sector: decision.Sector},
				OwnerKey:   ownerKey,
			}, emit)

		default:
			s.cfg.Runner.RunChat(ctx, messages, req.TenantID, req.UserID, req.ConversationID, emit)
		}
	})
}
