package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/metrics"
)

type HealthResponse struct {
	Status         string `json:"status"`
	CampaignsCount int    `json:"campaigns_count"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.engine.Campaigns(r.Context())
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		CampaignsCount: len(campaigns),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
	})
}

type AssignRequest struct {
	CampaignID        string `json:"campaign_id"`
	SubjectID         string `json:"subject_id"`
	DefaultTemplateID string `json:"default_template_id"`
}

type AssignResponse struct {
	TemplateID string `json:"template_id"`
	Error      string `json:"error,omitempty"`
}

// handleAssign always answers with a template id so the caller can send
// something. Store failures still report 500.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CampaignID == "" || req.SubjectID == "" {
		writeJSONError(w, http.StatusBadRequest, "campaign_id and subject_id are required")
		return
	}

	templateID, err := s.engine.AssignSubject(r.Context(), req.CampaignID, req.SubjectID, req.DefaultTemplateID)
	if err != nil {
		s.logger.Error("assignment failed",
			zap.String("campaign_id", req.CampaignID),
			zap.String("subject_id", req.SubjectID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, AssignResponse{TemplateID: templateID, Error: "assignment failed"})
		return
	}

	writeJSON(w, http.StatusOK, AssignResponse{TemplateID: templateID})
}

type EventRequest struct {
	AssignmentID string     `json:"assignment_id"`
	DeliveryID   string     `json:"delivery_id"`
	Event        string     `json:"event"`
	Timestamp    *time.Time `json:"timestamp"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AssignmentID == "" && req.DeliveryID == "" {
		writeJSONError(w, http.StatusBadRequest, "assignment_id or delivery_id is required")
		return
	}
	kind, err := metrics.ParseKind(req.Event)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	s.engine.RecordEvent(r.Context(), engine.AssignmentRef{
		AssignmentID: req.AssignmentID,
		DeliveryID:   req.DeliveryID,
	}, kind, at)

	w.WriteHeader(http.StatusNoContent)
}

type ConversionRequest struct {
	SubjectID       string   `json:"subject_id"`
	ConversionType  string   `json:"conversion_type"`
	ConversionValue *float64 `json:"conversion_value"`
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	var req ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SubjectID == "" {
		writeJSONError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	s.engine.RecordConversion(r.Context(), req.SubjectID, req.ConversionType, req.ConversionValue)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
