package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/logger"
	"github.com/govstack-ph/be-sglgb-assessments/internal/service"
)

// HTTPHandler handles HTTP requests for the assessment review workflow.
type HTTPHandler struct {
	service  *service.AssessmentService
	validate *validator.Validate
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(service *service.AssessmentService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// ── Request DTOs ──────────────────────────────────────────────────────────────

// OpenAssessmentRequest opens a new assessment cycle.
type OpenAssessmentRequest struct {
	BarangayID string `json:"barangay_id" validate:"required"`
	CycleYear  int    `json:"cycle_year" validate:"required,min=2000"`
}

// SubmitAreaRequest submits a governance area for review.
type SubmitAreaRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
	AreaID       int    `json:"area_id" validate:"required,min=1,max=6"`
	SubmittedBy  string `json:"submitted_by" validate:"required"`
}

// ClaimAreaRequest records an assessor claiming a submitted area.
type ClaimAreaRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
	AreaID       int    `json:"area_id" validate:"required,min=1,max=6"`
	AssessorID   string `json:"assessor_id" validate:"required"`
}

// ReviewAreaRequest applies an assessor decision to an area.
type ReviewAreaRequest struct {
	AssessmentID string  `json:"assessment_id" validate:"required"`
	AreaID       int     `json:"area_id" validate:"required,min=1,max=6"`
	Decision     string  `json:"decision" validate:"required,oneof=approve request_rework"`
	AssessorID   string  `json:"assessor_id" validate:"required"`
	Comments     *string `json:"comments,omitempty"`
}

// ValidatorDecisionRequest applies the system-wide validator decision.
type ValidatorDecisionRequest struct {
	AssessmentID string   `json:"assessment_id" validate:"required"`
	Decision     string   `json:"decision" validate:"required,oneof=approve request_calibration"`
	ValidatorID  string   `json:"validator_id" validate:"required"`
	IndicatorIDs []string `json:"indicator_ids,omitempty"`
	Comments     *string  `json:"comments,omitempty"`
}

// FinalDecisionRequest applies the final approver's decision.
type FinalDecisionRequest struct {
	AssessmentID string   `json:"assessment_id" validate:"required"`
	Decision     string   `json:"decision" validate:"required,oneof=approve request_recalibration"`
	ApprovedBy   string   `json:"approved_by" validate:"required"`
	IndicatorIDs []string `json:"indicator_ids,omitempty"`
	Comments     *string  `json:"comments,omitempty"`
}

// RevertReworkRequest administratively reverts rework rounds.
type RevertReworkRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
	AreaIDs      []int  `json:"area_ids" validate:"required,min=1,dive,min=1,max=6"`
	PerformedBy  string `json:"performed_by" validate:"required"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type areaResponse struct {
	AreaID            int        `json:"area_id"`
	Status            string     `json:"status"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	ReworkRequestedAt *time.Time `json:"rework_requested_at,omitempty"`
	ReworkUsed        bool       `json:"rework_used"`
	AssessorID        *string    `json:"assessor_id,omitempty"`
}

type assessmentResponse struct {
	ID                      string         `json:"id"`
	BarangayID              string         `json:"barangay_id"`
	CycleYear               int            `json:"cycle_year"`
	Status                  string         `json:"status"`
	Areas                   []areaResponse `json:"areas"`
	CalibrationUsed         bool           `json:"calibration_used"`
	CalibrationRequestedAt  *time.Time     `json:"calibration_requested_at,omitempty"`
	CalibrationIndicatorIDs []string       `json:"calibration_indicator_ids,omitempty"`
	RecalibrationUsed       bool           `json:"recalibration_used"`
	IsMLGOORecalibration    bool           `json:"is_mlgoo_recalibration"`
	RecalRequestedAt        *time.Time     `json:"mlgoo_recalibration_requested_at,omitempty"`
	RecalIndicatorIDs       []string       `json:"mlgoo_recalibration_indicator_ids,omitempty"`
	ValidatorApprovedAt     *time.Time     `json:"validator_approved_at,omitempty"`
	CompletedAt             *time.Time     `json:"completed_at,omitempty"`
}

func toAreaResponse(s *domain.AreaState) areaResponse {
	return areaResponse{
		AreaID:            s.AreaID,
		Status:            string(s.Status),
		SubmittedAt:       s.SubmittedAt,
		ReworkRequestedAt: s.ReworkRequestedAt,
		ReworkUsed:        s.ReworkUsed,
		AssessorID:        s.AssessorID,
	}
}

func toAssessmentResponse(a *domain.Assessment) assessmentResponse {
	areas := make([]areaResponse, 0, len(a.Areas))
	for _, s := range a.Areas {
		areas = append(areas, toAreaResponse(s))
	}
	return assessmentResponse{
		ID:                      a.ID,
		BarangayID:              a.BarangayID,
		CycleYear:               a.CycleYear,
		Status:                  string(a.Status()),
		Areas:                   areas,
		CalibrationUsed:         a.CalibrationUsed,
		CalibrationRequestedAt:  a.CalibrationRequestedAt,
		CalibrationIndicatorIDs: a.CalibrationIndicatorIDs,
		RecalibrationUsed:       a.RecalibrationUsed,
		IsMLGOORecalibration:    a.IsMLGOORecalibration,
		RecalRequestedAt:        a.MLGOORecalibrationRequestedAt,
		RecalIndicatorIDs:       a.MLGOORecalibrationIndicatorIDs,
		ValidatorApprovedAt:     a.ValidatorApprovedAt,
		CompletedAt:             a.CompletedAt,
	}
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// OpenAssessment handles POST /api/v1/assessments.
func (h *HTTPHandler) OpenAssessment(w http.ResponseWriter, r *http.Request) {
	var req OpenAssessmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.service.OpenAssessment(r.Context(), req.BarangayID, req.CycleYear)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toAssessmentResponse(a))
}

// GetAssessment handles GET /api/v1/assessments/get?id=...
func (h *HTTPHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, errors.InvalidInput("id", "assessment id is required"))
		return
	}

	a, err := h.service.GetAssessment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAssessmentResponse(a))
}

// ListAssessments handles GET /api/v1/assessments.
func (h *HTTPHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	var statusPtr *string
	if status := r.URL.Query().Get("status"); status != "" {
		statusPtr = &status
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	assessments, total, err := h.service.ListAssessments(r.Context(), statusPtr, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]assessmentResponse, 0, len(assessments))
	for _, a := range assessments {
		items = append(items, toAssessmentResponse(a))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": items,
		"total":       total,
		"page":        page,
		"pageSize":    pageSize,
	})
}

// GetHistory handles GET /api/v1/assessments/history?id=...
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, errors.InvalidInput("id", "assessment id is required"))
		return
	}

	entries, err := h.service.GetHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// SubmitArea handles POST /api/v1/areas/submit.
func (h *HTTPHandler) SubmitArea(w http.ResponseWriter, r *http.Request) {
	var req SubmitAreaRequest
	if !h.decode(w, r, &req) {
		return
	}

	area, err := h.service.SubmitArea(r.Context(), req.AssessmentID, req.AreaID, req.SubmittedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAreaResponse(area))
}

// ClaimArea handles POST /api/v1/areas/claim.
func (h *HTTPHandler) ClaimArea(w http.ResponseWriter, r *http.Request) {
	var req ClaimAreaRequest
	if !h.decode(w, r, &req) {
		return
	}

	area, err := h.service.ClaimArea(r.Context(), req.AssessmentID, req.AreaID, req.AssessorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAreaResponse(area))
}

// ReviewArea handles POST /api/v1/areas/review.
func (h *HTTPHandler) ReviewArea(w http.ResponseWriter, r *http.Request) {
	var req ReviewAreaRequest
	if !h.decode(w, r, &req) {
		return
	}

	area, err := h.service.ReviewArea(r.Context(), req.AssessmentID, req.AreaID, req.Decision, req.AssessorID, req.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAreaResponse(area))
}

// ValidatorDecision handles POST /api/v1/assessments/validate.
func (h *HTTPHandler) ValidatorDecision(w http.ResponseWriter, r *http.Request) {
	var req ValidatorDecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.service.ValidatorDecision(r.Context(), req.AssessmentID, req.Decision, req.ValidatorID, req.IndicatorIDs, req.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAssessmentResponse(a))
}

// FinalDecision handles POST /api/v1/assessments/finalize.
func (h *HTTPHandler) FinalDecision(w http.ResponseWriter, r *http.Request) {
	var req FinalDecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.service.FinalDecision(r.Context(), req.AssessmentID, req.Decision, req.ApprovedBy, req.IndicatorIDs, req.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAssessmentResponse(a))
}

// RevertRework handles POST /api/v1/assessments/revert-rework.
func (h *HTTPHandler) RevertRework(w http.ResponseWriter, r *http.Request) {
	var req RevertReworkRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.service.RevertRework(r.Context(), req.AssessmentID, req.AreaIDs, req.PerformedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAssessmentResponse(a))
}

// EvaluateCompletion handles GET /api/v1/indicators/completion.
func (h *HTTPHandler) EvaluateCompletion(w http.ResponseWriter, r *http.Request) {
	assessmentID := r.URL.Query().Get("assessment_id")
	indicatorID := r.URL.Query().Get("indicator_id")
	if assessmentID == "" || indicatorID == "" {
		h.writeError(w, errors.InvalidInput("query", "assessment_id and indicator_id are required"))
		return
	}

	complete, err := h.service.EvaluateCompletion(r.Context(), assessmentID, indicatorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"indicator_id": indicatorID,
		"complete":     complete,
	})
}

// ── Encoding and error mapping ────────────────────────────────────────────────

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, errors.InvalidInput("body", err.Error()))
		return false
	}
	return true
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeError maps domain and platform errors to HTTP responses. Every
// domain error is actionable at the UI: latch losers see why the round
// is unavailable, submission failures carry the offending ids.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var (
		roundErr      *domain.RoundExhaustedError
		areasErr      *domain.NotAllAreasApprovedError
		indicatorsErr *domain.NotAllIndicatorsCompleteError
		transitionErr *domain.InvalidTransitionError
		configErr     *domain.ConfigurationError
	)

	var status int
	var body errorBody

	switch {
	case stderrors.As(err, &roundErr):
		status = http.StatusConflict
		body = errorBody{Code: "ROUND_EXHAUSTED", Message: roundErr.Error(), Details: map[string]interface{}{
			"round":   roundErr.Round,
			"area_id": roundErr.AreaID,
		}}
	case stderrors.As(err, &areasErr):
		status = http.StatusUnprocessableEntity
		body = errorBody{Code: "NOT_ALL_AREAS_APPROVED", Message: areasErr.Error(), Details: map[string]interface{}{
			"pending_areas": areasErr.PendingAreas,
		}}
	case stderrors.As(err, &indicatorsErr):
		status = http.StatusUnprocessableEntity
		body = errorBody{Code: "NOT_ALL_INDICATORS_COMPLETE", Message: indicatorsErr.Error(), Details: map[string]interface{}{
			"area_id":       indicatorsErr.AreaID,
			"indicator_ids": indicatorsErr.IndicatorIDs,
		}}
	case stderrors.As(err, &transitionErr):
		status = http.StatusConflict
		body = errorBody{Code: "INVALID_STATE_TRANSITION", Message: transitionErr.Error()}
	case stderrors.As(err, &configErr):
		status = http.StatusBadRequest
		body = errorBody{Code: "CONFIGURATION_ERROR", Message: configErr.Error()}
	default:
		switch errors.Code(err) {
		case errors.ErrCodeNotFound:
			status = http.StatusNotFound
		case errors.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		case errors.ErrCodeConflict:
			status = http.StatusConflict
		case errors.ErrCodeUnauthorized:
			status = http.StatusForbidden
		default:
			status = http.StatusInternalServerError
			h.log.Error().Err(err).Msg("internal error")
		}
		body = errorBody{Code: errors.Code(err), Message: err.Error()}
	}

	h.writeJSON(w, status, map[string]interface{}{"error": body})
}
