package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/store"
)

// handleReportTypes implements GET /reports/types (spec §6).
func (s *Server) handleReportTypes(w http.ResponseWriter, r *http.Request) {
	types := make([]string, 0, len(s.cfg.Plugins))
	for reportType := range s.cfg.Plugins {
		types = append(types, reportType)
	}
	sort.Strings(types)
	writeJSON(w, http.StatusOK, types)
}

// reportRunRequestBody is POST /reports/{type}'s body (spec §6).
type reportRunRequestBody struct {
	Payload          reports.Payload `json:"payload"`
	OwnerKey         string          `json:"owner_key,omitempty"`
	PromptOverride   string          `json:"prompt_override,omitempty"`
	ThreadID         string          `json:"thread_id,omitempty"`
	FollowUpQuestion string          `json:"follow_up_question,omitempty"`
	RefreshData      bool            `json:"refresh_data,omitempty"`
}

// handleReportRun implements POST /reports/{type} (spec §6).
func (s *Server) handleReportRun(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")
	if _, ok := s.cfg.Plugins[reportType]; !ok {
		writeError(w, http.StatusNotFound, "unknown report type")
		return
	}

	var body reportRunRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.cfg.Reports.Orchestrate(r.Context(), reports.RunRequest{
		ReportType:       reportType,
		Payload:          body.Payload,
		OwnerKey:         body.OwnerKey,
		PromptOverride:   body.PromptOverride,
		ThreadID:         body.ThreadID,
		FollowUpQuestion: body.FollowUpQuestion,
		RefreshData:      body.RefreshData,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// reportFollowUpRequestBody is POST /reports/{type}/followup's body.
type reportFollowUpRequestBody struct {
	OwnerKey    string `json:"owner_key"`
	ThreadID    string `json:"thread_id"`
	Question    string `json:"question"`
	RefreshData bool   `json:"refresh_data,omitempty"`
}

// handleReportFollowUp implements POST /reports/{type}/followup.
func (s *Server) handleReportFollowUp(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")

	var body reportFollowUpRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.cfg.Reports.OrchestrateFollowUp(r.Context(), reportType, body.OwnerKey, body.ThreadID, body.Question, body.RefreshData)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleReportPrompt implements GET /reports/{type}/prompt: the system
// default prompt text for a report type with no override applied.
func (s *Server) handleReportPrompt(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")
	if _, ok := s.cfg.Plugins[reportType]; !ok {
		writeError(w, http.StatusNotFound, "unknown report type")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": "system default: " + reportType})
}

// handleTemplatesList implements GET /reports/templates (spec §6): every
// report type's system-default prompt, since templates has no
// owner_key-scoped listing primitive in store.PromptOverrideStore.
func (s *Server) handleTemplatesList(w http.ResponseWriter, r *http.Request) {
	types := make([]string, 0, len(s.cfg.Plugins))
	for reportType := range s.cfg.Plugins {
		types = append(types, reportType)
	}
	sort.Strings(types)

	templates := make(map[string]string, len(types))
	for _, reportType := range types {
		templates[reportType] = "system default: " + reportType
	}
	writeJSON(w, http.StatusOK, templates)
}

// handleTemplateGet implements GET /reports/templates/{type}?owner_key=.
func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")
	ownerKey := r.URL.Query().Get("owner_key")

	if s.cfg.Overrides == nil || ownerKey == "" {
		writeJSON(w, http.StatusOK, map[string]string{"prompt": "system default: " + reportType})
		return
	}
	override, found, err := s.cfg.Overrides.GetOverride(r.Context(), ownerKey, reportType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]string{"prompt": "system default: " + reportType})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": override.PromptText})
}

// templatePutRequestBody is PUT /reports/templates/{type}'s body.
type templatePutRequestBody struct {
	OwnerKey   string `json:"owner_key"`
	PromptText string `json:"prompt_text"`
}

// handleTemplatePut implements PUT /reports/templates/{type}: upsert a
// per-owner prompt override (spec §4.12 step 1's "per-owner saved
// override" precedence tier).
func (s *Server) handleTemplatePut(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")
	if s.cfg.Overrides == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt overrides are not configured")
		return
	}

	var body templatePutRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.OwnerKey == "" || body.PromptText == "" {
		writeError(w, http.StatusBadRequest, "owner_key and prompt_text are required")
		return
	}

	now := time.Now()
	if err := s.cfg.Overrides.UpsertOverride(r.Context(), store.PromptOverride{
		OwnerKey: body.OwnerKey, ReportType: reportType, PromptText: body.PromptText,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTemplateDelete implements DELETE /reports/templates/{type}?owner_key=.
func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")
	ownerKey := r.URL.Query().Get("owner_key")
	if s.cfg.Overrides == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt overrides are not configured")
		return
	}
	if ownerKey == "" {
		writeError(w, http.StatusBadRequest, "owner_key is required")
		return
	}
	if err := s.cfg.Overrides.DeleteOverride(r.Context(), ownerKey, reportType); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
