package service

import (
	"context"
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/completion"
	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/lifecycle"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/logger"
)

// Review decisions accepted by the API.
const (
	DecisionApprove              = "approve"
	DecisionRequestRework        = "request_rework"
	DecisionRequestCalibration   = "request_calibration"
	DecisionRequestRecalibration = "request_recalibration"
)

// AssessmentService orchestrates the review workflow: it gates BLGU
// submissions on indicator completion, applies the pure lifecycle
// transitions, and persists them through the store's atomic latch
// operations.
type AssessmentService struct {
	store    AssessmentStore
	evidence EvidenceStore
	schemas  SchemaStore
	audit    AuditStore
	notifier Notifier
	log      *logger.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	store AssessmentStore,
	evidence EvidenceStore,
	schemas SchemaStore,
	audit AuditStore,
	notifier Notifier,
	log *logger.Logger,
) *AssessmentService {
	return &AssessmentService{
		store:    store,
		evidence: evidence,
		schemas:  schemas,
		audit:    audit,
		notifier: notifier,
		log:      log,
	}
}

// ── Cycle management ──────────────────────────────────────────────────────────

// OpenAssessment opens a new assessment cycle with all six governance
// areas in draft.
func (s *AssessmentService) OpenAssessment(ctx context.Context, barangayID string, cycleYear int) (*domain.Assessment, error) {
	if barangayID == "" {
		return nil, errors.InvalidInput("barangay_id", "barangay id is required")
	}
	if cycleYear < 2000 {
		return nil, errors.InvalidInput("cycle_year", "invalid cycle year")
	}

	a := &domain.Assessment{
		BarangayID: barangayID,
		CycleYear:  cycleYear,
		Areas:      make([]*domain.AreaState, 0, domain.AreaCount),
	}
	for areaID := 1; areaID <= domain.AreaCount; areaID++ {
		a.Areas = append(a.Areas, &domain.AreaState{
			AreaID: areaID,
			Status: domain.AreaDraft,
		})
	}

	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("assessment_id", a.ID).
		Str("barangay_id", barangayID).
		Int("cycle_year", cycleYear).
		Msg("Assessment cycle opened")

	return a, nil
}

// GetAssessment retrieves an assessment with its area states.
func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	return s.store.GetByID(ctx, id)
}

// ListAssessments lists assessments with status filtering and pagination.
func (s *AssessmentService) ListAssessments(ctx context.Context, status *string, page, pageSize int) ([]*domain.Assessment, int64, error) {
	offset := (page - 1) * pageSize
	return s.store.List(ctx, status, pageSize, offset)
}

// GetHistory returns the audit trail for an assessment.
func (s *AssessmentService) GetHistory(ctx context.Context, assessmentID string) ([]*domain.AuditEntry, error) {
	return s.audit.ListByAssessment(ctx, assessmentID)
}

// ── BLGU submission ───────────────────────────────────────────────────────────

// SubmitArea submits a governance area for assessor review. The
// submission is gated on every indicator in the area being complete
// under its validation rule and the current correction window.
func (s *AssessmentService) SubmitArea(ctx context.Context, assessmentID string, areaID int, submittedBy string) (*domain.AreaState, error) {
	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	area := a.Area(areaID)
	if area == nil {
		return nil, errors.InvalidInput("area_id", "unknown governance area")
	}

	switch area.Status {
	case domain.AreaSubmitted, domain.AreaInReview:
		return nil, errors.Conflict("area already submitted")
	case domain.AreaApproved:
		return nil, errors.Conflict("area already approved")
	}

	incomplete, err := s.incompleteIndicators(ctx, a, area)
	if err != nil {
		return nil, err
	}
	if len(incomplete) > 0 {
		return nil, &domain.NotAllIndicatorsCompleteError{AreaID: areaID, IndicatorIDs: incomplete}
	}

	before := string(area.Status)
	updated, err := lifecycle.SubmitArea(*area, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.applyAreaUpdate(ctx, a, &updated); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, a.ID, &areaID, "area_submitted", submittedBy, before, string(updated.Status), nil)
	s.notifier.PublishAssessmentEvent(ctx, "area_submitted", a.ID, submittedBy, map[string]interface{}{
		"area_id": areaID,
	})

	s.log.Info().
		Str("assessment_id", a.ID).
		Int("area_id", areaID).
		Str("submitted_by", submittedBy).
		Msg("Area submitted for review")

	return &updated, nil
}

// ── Assessor review ───────────────────────────────────────────────────────────

// ClaimArea records the assessor taking a submitted area into review.
func (s *AssessmentService) ClaimArea(ctx context.Context, assessmentID string, areaID int, assessorID string) (*domain.AreaState, error) {
	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	area := a.Area(areaID)
	if area == nil {
		return nil, errors.InvalidInput("area_id", "unknown governance area")
	}

	updated, err := lifecycle.ClaimArea(*area, assessorID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.applyAreaUpdate(ctx, a, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReviewArea applies an assessor decision: approve the area, or open its
// single rework round. The rework latch is acquired atomically, so of
// two concurrent rework requests exactly one succeeds and the other gets
// RoundExhausted.
func (s *AssessmentService) ReviewArea(ctx context.Context, assessmentID string, areaID int, decision, assessorID string, comments *string) (*domain.AreaState, error) {
	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	area := a.Area(areaID)
	if area == nil {
		return nil, errors.InvalidInput("area_id", "unknown governance area")
	}

	before := string(area.Status)
	now := time.Now()

	switch decision {
	case DecisionApprove:
		updated, err := lifecycle.ApproveArea(*area, assessorID, now)
		if err != nil {
			return nil, err
		}
		if err := s.applyAreaUpdate(ctx, a, &updated); err != nil {
			return nil, err
		}

		s.appendAudit(ctx, a.ID, &areaID, "area_approved", assessorID, before, string(updated.Status), auditComment(comments))
		s.notifier.PublishAssessmentEvent(ctx, "area_approved", a.ID, assessorID, map[string]interface{}{
			"area_id": areaID,
		})

		if s.derivedAfterArea(a, &updated) == domain.StatusAwaitingValidation {
			s.notifier.PublishAssessmentEvent(ctx, "awaiting_validation", a.ID, assessorID, nil)
		}

		s.log.Info().
			Str("assessment_id", a.ID).
			Int("area_id", areaID).
			Str("assessor_id", assessorID).
			Msg("Area approved")
		return &updated, nil

	case DecisionRequestRework:
		// Pure transition first for precise errors, then the store CAS as
		// the authority on the latch.
		updated, err := lifecycle.RequestRework(*area, assessorID, now)
		if err != nil {
			return nil, err
		}
		if err := s.store.AcquireReworkLatch(ctx, a.ID, areaID, assessorID, *updated.ReworkRequestedAt); err != nil {
			return nil, err
		}

		s.appendAudit(ctx, a.ID, &areaID, "rework_requested", assessorID, before, string(updated.Status), auditComment(comments))
		s.notifier.PublishAssessmentEvent(ctx, "rework_requested", a.ID, assessorID, map[string]interface{}{
			"area_id": areaID,
		})

		s.log.Info().
			Str("assessment_id", a.ID).
			Int("area_id", areaID).
			Str("assessor_id", assessorID).
			Msg("Rework requested")
		return &updated, nil

	default:
		return nil, errors.InvalidInput("decision", "must be approve or request_rework")
	}
}

// ── Validator and final decisions ─────────────────────────────────────────────

// ValidatorDecision applies the system-wide validator decision: approve,
// or open the single calibration round against specific indicators.
func (s *AssessmentService) ValidatorDecision(ctx context.Context, assessmentID, decision, validatorID string, indicatorIDs []string, comments *string) (*domain.Assessment, error) {
	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	before := string(a.Status())
	now := time.Now()

	switch decision {
	case DecisionApprove:
		updated, err := lifecycle.ValidatorApprove(*a, validatorID, now)
		if err != nil {
			return nil, err
		}
		if err := s.store.SaveValidatorApproval(ctx, a.ID, validatorID, now); err != nil {
			return nil, err
		}

		s.appendAudit(ctx, a.ID, nil, "validation_approved", validatorID, before, string(updated.Status()), auditComment(comments))
		s.notifier.PublishAssessmentEvent(ctx, "validation_approved", a.ID, validatorID, nil)

		s.log.Info().
			Str("assessment_id", a.ID).
			Str("validator_id", validatorID).
			Msg("Validation approved")
		return &updated, nil

	case DecisionRequestCalibration:
		updated, err := lifecycle.RequestCalibration(*a, validatorID, indicatorIDs, now)
		if err != nil {
			return nil, err
		}
		if err := s.store.AcquireCalibrationLatch(ctx, a.ID, validatorID, indicatorIDs, now); err != nil {
			return nil, err
		}

		s.appendAudit(ctx, a.ID, nil, "calibration_requested", validatorID, before, string(updated.Status()), map[string]interface{}{
			"indicator_ids": indicatorIDs,
			"comments":      comments,
		})
		s.notifier.PublishAssessmentEvent(ctx, "calibration_requested", a.ID, validatorID, map[string]interface{}{
			"indicator_ids": indicatorIDs,
		})

		s.log.Info().
			Str("assessment_id", a.ID).
			Str("validator_id", validatorID).
			Int("indicator_count", len(indicatorIDs)).
			Msg("Calibration requested")
		return &updated, nil

	default:
		return nil, errors.InvalidInput("decision", "must be approve or request_calibration")
	}
}

// FinalDecision applies the final approver's decision: complete the
// assessment, or open the single post-approval re-calibration round.
func (s *AssessmentService) FinalDecision(ctx context.Context, assessmentID, decision, approvedBy string, indicatorIDs []string, comments *string) (*domain.Assessment, error) {
	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	before := string(a.Status())
	now := time.Now()

	switch decision {
	case DecisionApprove:
		updated, err := lifecycle.FinalApprove(*a, approvedBy, now)
		if err != nil {
			return nil, err
		}
		if err := s.store.SaveCompletion(ctx, a.ID, approvedBy, now); err != nil {
			return nil, err
		}

		s.appendAudit(ctx, a.ID, nil, "assessment_completed", approvedBy, before, string(updated.Status()), auditComment(comments))
		s.notifier.PublishAssessmentEvent(ctx, "assessment_completed", a.ID, approvedBy, nil)

		s.log.Info().
			Str("assessment_id", a.ID).
			Str("approved_by", approvedBy).
			Msg("Assessment completed")
		return &updated, nil

	case DecisionRequestRecalibration:
		updated, err := lifecycle.RequestRecalibration(*a, approvedBy, indicatorIDs, now)
		if err != nil {
			return nil, err
		}
		if err := s.store.AcquireRecalibrationLatch(ctx, a.ID, approvedBy, indicatorIDs, now); err != nil {
			return nil, err
		}

		s.appendAudit(ctx, a.ID, nil, "recalibration_requested", approvedBy, before, string(updated.Status()), map[string]interface{}{
			"indicator_ids": indicatorIDs,
			"comments":      comments,
		})
		s.notifier.PublishAssessmentEvent(ctx, "recalibration_requested", a.ID, approvedBy, map[string]interface{}{
			"indicator_ids": indicatorIDs,
		})

		s.log.Info().
			Str("assessment_id", a.ID).
			Str("requested_by", approvedBy).
			Int("indicator_count", len(indicatorIDs)).
			Msg("Re-calibration requested")
		return &updated, nil

	default:
		return nil, errors.InvalidInput("decision", "must be approve or request_recalibration")
	}
}

// RevertRework administratively resets areas from rework back to
// submitted, clearing their latches, and recomputes the aggregate.
func (s *AssessmentService) RevertRework(ctx context.Context, assessmentID string, areaIDs []int, performedBy string) (*domain.Assessment, error) {
	if len(areaIDs) == 0 {
		return nil, errors.InvalidInput("area_ids", "at least one area id is required")
	}

	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	before := string(a.Status())

	updated, err := lifecycle.RevertReworkAreas(*a, areaIDs, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.RevertReworkAreas(ctx, a.ID, areaIDs, updated.Status()); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, a.ID, nil, "rework_reverted", performedBy, before, string(updated.Status()), map[string]interface{}{
		"area_ids": areaIDs,
	})
	s.notifier.PublishAssessmentEvent(ctx, "rework_reverted", a.ID, performedBy, map[string]interface{}{
		"area_ids": areaIDs,
	})

	s.log.Info().
		Str("assessment_id", a.ID).
		Ints("area_ids", areaIDs).
		Str("performed_by", performedBy).
		Msg("Rework administratively reverted")

	return &updated, nil
}

// ── Completion ────────────────────────────────────────────────────────────────

// EvaluateCompletion reports whether one indicator is currently complete,
// applying the correction-window filter before the validation rule.
func (s *AssessmentService) EvaluateCompletion(ctx context.Context, assessmentID, indicatorID string) (bool, error) {
	a, err := s.store.GetByID(ctx, assessmentID)
	if err != nil {
		return false, err
	}
	schema, err := s.schemas.GetByIndicatorID(ctx, indicatorID)
	if err != nil {
		return false, err
	}
	area := a.Area(schema.AreaID)
	if area == nil {
		return false, errors.InvalidInput("indicator_id", "indicator belongs to an unknown area")
	}
	return s.indicatorComplete(ctx, a, area, schema)
}

// incompleteIndicators runs the completion gate over every indicator in
// the area and returns the ids that fail.
func (s *AssessmentService) incompleteIndicators(ctx context.Context, a *domain.Assessment, area *domain.AreaState) ([]string, error) {
	schemas, err := s.schemas.ListByArea(ctx, area.AreaID)
	if err != nil {
		return nil, err
	}

	var incomplete []string
	for _, schema := range schemas {
		complete, err := s.indicatorComplete(ctx, a, area, schema)
		if err != nil {
			return nil, err
		}
		if !complete {
			incomplete = append(incomplete, schema.IndicatorID)
		}
	}
	return incomplete, nil
}

func (s *AssessmentService) indicatorComplete(ctx context.Context, a *domain.Assessment, area *domain.AreaState, schema *domain.IndicatorSchema) (bool, error) {
	files, err := s.evidence.ListFiles(ctx, schema.IndicatorID)
	if err != nil {
		return false, err
	}
	values, err := s.evidence.GetFormValues(ctx, a.ID, schema.IndicatorID)
	if err != nil {
		return false, err
	}
	cctx, err := s.correctionContext(ctx, a, area, schema.IndicatorID)
	if err != nil {
		return false, err
	}

	valid := completion.Filter(files, cctx)
	return completion.Evaluate(schema, values, valid)
}

// correctionContext assembles the filter context for one indicator from
// the area's rework state or the assessment's calibration state, plus
// the reviewer feedback recorded against the indicator.
func (s *AssessmentService) correctionContext(ctx context.Context, a *domain.Assessment, area *domain.AreaState, indicatorID string) (completion.CorrectionContext, error) {
	var cctx completion.CorrectionContext

	switch {
	case area.Status == domain.AreaRework && area.ReworkRequestedAt != nil:
		cctx.Active = true
		cctx.Mode = completion.ModeAssessorRework
		cctx.ReferenceTime = area.ReworkRequestedAt
	case a.Status() == domain.StatusRecalibration && a.MLGOORecalibrationRequestedAt != nil:
		cctx.Active = true
		cctx.Mode = completion.ModeValidatorCalibration
		cctx.ReferenceTime = a.MLGOORecalibrationRequestedAt
		cctx.IndicatorFlagged = containsID(a.MLGOORecalibrationIndicatorIDs, indicatorID)
	case a.Status() == domain.StatusCalibration && a.CalibrationRequestedAt != nil:
		cctx.Active = true
		cctx.Mode = completion.ModeValidatorCalibration
		cctx.ReferenceTime = a.CalibrationRequestedAt
		cctx.IndicatorFlagged = containsID(a.CalibrationIndicatorIDs, indicatorID)
	default:
		return cctx, nil
	}

	review, err := s.evidence.GetIndicatorReview(ctx, a.ID, indicatorID)
	if err != nil {
		return cctx, err
	}
	annotations, err := s.evidence.ListUnresolvedAnnotations(ctx, indicatorID)
	if err != nil {
		return cctx, err
	}

	if len(annotations) > 0 {
		cctx.RejectedFileIDs = make(map[string]struct{}, len(annotations))
		for _, ann := range annotations {
			cctx.RejectedFileIDs[ann.EvidenceFileID] = struct{}{}
		}
	}
	if review != nil {
		cctx.ForceResubmission = review.RequiresCorrection
		cctx.HasGeneralComments = review.Comment != nil && *review.Comment != ""
	}

	// During assessor rework the round targets the whole area; an
	// indicator counts as flagged when the reviewer touched it at all.
	if cctx.Mode == completion.ModeAssessorRework {
		cctx.IndicatorFlagged = review != nil || len(annotations) > 0
	}

	return cctx, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// applyAreaUpdate persists an area transition together with the freshly
// derived assessment status projection, and patches the in-memory
// aggregate so later derivations in the same call see the new state.
func (s *AssessmentService) applyAreaUpdate(ctx context.Context, a *domain.Assessment, updated *domain.AreaState) error {
	updated.AssessmentID = a.ID
	derived := s.derivedAfterArea(a, updated)
	if err := s.store.UpdateArea(ctx, updated, derived); err != nil {
		return err
	}
	if cur := a.Area(updated.AreaID); cur != nil {
		*cur = *updated
	}
	return nil
}

func (s *AssessmentService) derivedAfterArea(a *domain.Assessment, updated *domain.AreaState) domain.AssessmentStatus {
	if cur := a.Area(updated.AreaID); cur != nil {
		*cur = *updated
	}
	return a.Status()
}

// appendAudit writes an audit entry and logs a warning on failure
// (never returns error).
func (s *AssessmentService) appendAudit(ctx context.Context, assessmentID string, areaID *int, action, performedBy, before, after string, metadata map[string]interface{}) {
	entry := &domain.AuditEntry{
		AssessmentID: assessmentID,
		AreaID:       areaID,
		Action:       action,
		PerformedBy:  performedBy,
		StatusBefore: &before,
		StatusAfter:  &after,
		Metadata:     metadata,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("assessment_id", assessmentID).
			Str("action", action).
			Msg("Failed to write audit log entry")
	}
}

func auditComment(comments *string) map[string]interface{} {
	if comments == nil || *comments == "" {
		return nil
	}
	return map[string]interface{}{"comments": *comments}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
