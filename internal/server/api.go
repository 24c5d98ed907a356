package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/store"
)

type CampaignResponse struct {
	ID                         string             `json:"id"`
	Name                       string             `json:"name"`
	Description                string             `json:"description,omitempty"`
	Status                     string             `json:"status"`
	TrafficSplitPercentage     float64            `json:"traffic_split_percentage"`
	VariantSplit               map[string]float64 `json:"variant_split"`
	ControlVariant             string             `json:"control_variant"`
	ConfidenceLevel            float64            `json:"confidence_level"`
	MinimumSampleSize          int                `json:"minimum_sample_size"`
	MaxDurationDays            int                `json:"max_duration_days"`
	AutoPromoteWinner          bool               `json:"auto_promote_winner"`
	AutoCompleteOnSignificance bool               `json:"auto_complete_on_significance"`
	StartDate                  time.Time          `json:"start_date"`
	EndDate                    *time.Time         `json:"end_date,omitempty"`
	ActualStartDate            *time.Time         `json:"actual_start_date,omitempty"`
	ActualEndDate              *time.Time         `json:"actual_end_date,omitempty"`
	WinnerVariant              string             `json:"winner_variant,omitempty"`
	WinnerDeterminedAt         *time.Time         `json:"winner_determined_at,omitempty"`
	StatisticalSignificance    bool               `json:"statistical_significance"`
	SignificanceLevel          *float64           `json:"significance_level,omitempty"`
	CreatedAt                  time.Time          `json:"created_at"`
}

type VariantResponse struct {
	ID                   string  `json:"id"`
	Label                string  `json:"label"`
	TemplateID           string  `json:"template_id"`
	IsControl            bool    `json:"is_control"`
	TrafficPercentage    float64 `json:"traffic_percentage"`
	ParticipantsAssigned int64   `json:"participants_assigned"`
	EmailsSent           int64   `json:"emails_sent"`
	EmailsDelivered      int64   `json:"emails_delivered"`
	EmailsOpened         int64   `json:"emails_opened"`
	EmailsClicked        int64   `json:"emails_clicked"`
	Conversions          int64   `json:"conversions"`
	OpenRate             float64 `json:"open_rate"`
	ClickRate            float64 `json:"click_rate"`
	ConversionRate       float64 `json:"conversion_rate"`
}

type ResultResponse struct {
	ID                      string    `json:"id"`
	TotalParticipants       int64     `json:"total_participants"`
	TotalConversions        int64     `json:"total_conversions"`
	TestDurationDays        int       `json:"test_duration_days"`
	PrimaryMetric           string    `json:"primary_metric"`
	ControlVariant          string    `json:"control_variant"`
	TestVariant             string    `json:"test_variant"`
	ControlRate             float64   `json:"control_rate"`
	TestRate                float64   `json:"test_rate"`
	LiftPercentage          float64   `json:"lift_percentage"`
	ZScore                  float64   `json:"z_score"`
	PValue                  float64   `json:"p_value"`
	ConfidenceIntervalLower float64   `json:"confidence_interval_lower"`
	ConfidenceIntervalUpper float64   `json:"confidence_interval_upper"`
	IsSignificant           bool      `json:"is_significant"`
	ConfidenceLevel         float64   `json:"confidence_level"`
	RecommendedAction       string    `json:"recommended_action"`
	RecommendedWinner       string    `json:"recommended_winner,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

type ResultsResponse struct {
	Campaign CampaignResponse  `json:"campaign"`
	Variants []VariantResponse `json:"variants"`
	Results  []ResultResponse  `json:"results"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type WinnerRequest struct {
	Variant string `json:"variant"`
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	var statuses []store.CampaignStatus
	for _, st := range r.URL.Query()["status"] {
		statuses = append(statuses, store.CampaignStatus(st))
	}

	campaigns, err := s.engine.Campaigns(r.Context(), statuses...)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := make([]CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		resp = append(resp, toCampaignResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var spec engine.CampaignSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, _, err := s.engine.CreateCampaign(r.Context(), spec)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCampaignResponse(c))
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := s.engine.TransitionStatus(r.Context(), r.PathValue("id"), store.CampaignStatus(req.Status))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Analyze(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(result))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	c, err := s.engine.Campaign(ctx, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	variants, err := s.engine.CampaignVariants(ctx, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	results, err := s.engine.ResultHistory(ctx, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := ResultsResponse{
		Campaign: toCampaignResponse(c),
		Variants: make([]VariantResponse, 0, len(variants)),
		Results:  make([]ResultResponse, 0, len(results)),
	}
	for _, v := range variants {
		resp.Variants = append(resp.Variants, toVariantResponse(v))
	}
	for _, res := range results {
		resp.Results = append(resp.Results, toResultResponse(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	var req WinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Variant == "" {
		writeJSONError(w, http.StatusBadRequest, "variant is required")
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.engine.PromoteWinner(ctx, id, req.Variant); err != nil {
		s.writeEngineError(w, err)
		return
	}

	c, err := s.engine.Campaign(ctx, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

// writeEngineError maps engine and store errors to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "campaign not found")
	case engine.IsInsufficientData(err):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case engine.IsAlreadyTerminal(err), engine.IsInvalidTransition(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case engine.IsConfigurationError(err), engine.IsUnknownVariant(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toCampaignResponse(c *store.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                         c.ID,
		Name:                       c.Name,
		Description:                c.Description,
		Status:                     string(c.Status),
		TrafficSplitPercentage:     c.TrafficSplitPercentage,
		VariantSplit:               c.VariantSplit,
		ControlVariant:             c.ControlVariant,
		ConfidenceLevel:            c.ConfidenceLevel,
		MinimumSampleSize:          c.MinimumSampleSize,
		MaxDurationDays:            c.MaxDurationDays,
		AutoPromoteWinner:          c.AutoPromoteWinner,
		AutoCompleteOnSignificance: c.AutoCompleteOnSignificance,
		StartDate:                  c.StartDate,
		EndDate:                    c.EndDate,
		ActualStartDate:            c.ActualStartDate,
		ActualEndDate:              c.ActualEndDate,
		WinnerVariant:              c.WinnerVariant,
		WinnerDeterminedAt:         c.WinnerDeterminedAt,
		StatisticalSignificance:    c.StatisticalSignificance,
		SignificanceLevel:          c.SignificanceLevel,
		CreatedAt:                  c.CreatedAt,
	}
}

func toVariantResponse(v *store.Variant) VariantResponse {
	return VariantResponse{
		ID:                   v.ID,
		Label:                v.Label,
		TemplateID:           v.TemplateID,
		IsControl:            v.IsControl,
		TrafficPercentage:    v.TrafficPercentage,
		ParticipantsAssigned: v.ParticipantsAssigned,
		EmailsSent:           v.EmailsSent,
		EmailsDelivered:      v.EmailsDelivered,
		EmailsOpened:         v.EmailsOpened,
		EmailsClicked:        v.EmailsClicked,
		Conversions:          v.Conversions,
		OpenRate:             v.OpenRate(),
		ClickRate:            v.ClickRate(),
		ConversionRate:       v.ConversionRate(),
	}
}

func toResultResponse(r *store.StatisticalResult) ResultResponse {
	return ResultResponse{
		ID:                      r.ID,
		TotalParticipants:       r.TotalParticipants,
		TotalConversions:        r.TotalConversions,
		TestDurationDays:        r.TestDurationDays,
		PrimaryMetric:           r.PrimaryMetric,
		ControlVariant:          r.ControlVariant,
		TestVariant:             r.TestVariant,
		ControlRate:             r.ControlRate,
		TestRate:                r.TestRate,
		LiftPercentage:          r.LiftPercentage,
		ZScore:                  r.ZScore,
		PValue:                  r.PValue,
		ConfidenceIntervalLower: r.ConfidenceIntervalLower,
		ConfidenceIntervalUpper: r.ConfidenceIntervalUpper,
		IsSignificant:           r.IsSignificant,
		ConfidenceLevel:         r.ConfidenceLevel,
		RecommendedAction:       string(r.RecommendedAction),
		RecommendedWinner:       r.RecommendedWinner,
		CreatedAt:               r.CreatedAt,
	}
}
