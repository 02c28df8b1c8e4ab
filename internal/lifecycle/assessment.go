package lifecycle

import (
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

// ValidatorApprove records the validator's approval. Allowed from
// awaiting_validation and from the mandatory post-calibration and
// post-re-calibration passes; after it the assessment awaits the final
// approver.
func ValidatorApprove(a domain.Assessment, validatorID string, now time.Time) (domain.Assessment, error) {
	a = clone(a)

	switch a.Status() {
	case domain.StatusAwaitingValidation, domain.StatusCalibration, domain.StatusRecalibration:
	case domain.StatusDraft, domain.StatusInReview:
		return a, &domain.NotAllAreasApprovedError{PendingAreas: a.PendingAreas()}
	default:
		return a, &domain.InvalidTransitionError{
			Entity: "assessment", From: string(a.Status()), Action: "validate",
		}
	}

	a.ValidatorID = &validatorID
	a.ValidatorApprovedAt = &now
	a.UpdatedAt = now
	return a, nil
}

// RequestCalibration opens the single system-wide calibration round
// against specific indicators. Only permitted on the validator's first
// pass: after calibration the second review may only approve, and during
// a re-calibration pass the request is wrong for the stage regardless of
// the latch.
func RequestCalibration(a domain.Assessment, validatorID string, indicatorIDs []string, now time.Time) (domain.Assessment, error) {
	a = clone(a)

	switch a.Status() {
	case domain.StatusAwaitingValidation:
	case domain.StatusDraft, domain.StatusInReview:
		return a, &domain.NotAllAreasApprovedError{PendingAreas: a.PendingAreas()}
	case domain.StatusCalibration:
		return a, &domain.RoundExhaustedError{Round: domain.RoundCalibration}
	default:
		return a, &domain.InvalidTransitionError{
			Entity: "assessment", From: string(a.Status()), Action: "request calibration for",
		}
	}
	if a.CalibrationUsed {
		return a, &domain.RoundExhaustedError{Round: domain.RoundCalibration}
	}

	a.CalibrationUsed = true
	a.CalibrationRequestedAt = &now
	a.CalibrationIndicatorIDs = append([]string(nil), indicatorIDs...)
	a.ValidatorID = &validatorID
	a.UpdatedAt = now
	return a, nil
}

// FinalApprove is the terminal decision: the assessment cycle completes
// and becomes immutable.
func FinalApprove(a domain.Assessment, approvedBy string, now time.Time) (domain.Assessment, error) {
	a = clone(a)

	if a.Status() != domain.StatusAwaitingFinalApproval {
		return a, &domain.InvalidTransitionError{
			Entity: "assessment", From: string(a.Status()), Action: "finalize",
		}
	}

	a.ApprovedBy = &approvedBy
	a.CompletedAt = &now
	a.UpdatedAt = now
	return a, nil
}

// RequestRecalibration opens the single post-approval-review correction
// round (MLGOO re-calibration). The flow returns to the validator for one
// more pass, so the validator approval marker is cleared; after that pass
// the approver's only remaining decision is approval.
func RequestRecalibration(a domain.Assessment, requestedBy string, indicatorIDs []string, now time.Time) (domain.Assessment, error) {
	a = clone(a)

	if a.Status() != domain.StatusAwaitingFinalApproval {
		return a, &domain.InvalidTransitionError{
			Entity: "assessment", From: string(a.Status()), Action: "request re-calibration for",
		}
	}
	if a.RecalibrationUsed {
		return a, &domain.RoundExhaustedError{Round: domain.RoundRecalibration}
	}

	a.RecalibrationUsed = true
	a.IsMLGOORecalibration = true
	a.MLGOORecalibrationRequestedAt = &now
	a.MLGOORecalibrationIndicatorIDs = append([]string(nil), indicatorIDs...)
	a.ValidatorApprovedAt = nil
	a.UpdatedAt = now
	return a, nil
}

// RevertReworkAreas administratively resets the given areas from rework
// back to submitted, clearing their rework latches. The aggregate status
// is derived, so it can never desynchronize from the area states.
func RevertReworkAreas(a domain.Assessment, areaIDs []int, now time.Time) (domain.Assessment, error) {
	a = clone(a)

	for _, id := range areaIDs {
		area := a.Area(id)
		if area == nil {
			return a, &domain.InvalidTransitionError{
				Entity: "area", From: "missing", Action: "revert rework for",
			}
		}
		reverted, err := RevertRework(*area, now)
		if err != nil {
			return a, err
		}
		*area = reverted
	}
	a.UpdatedAt = now
	return a, nil
}

// clone deep-copies an assessment so transitions never alias the
// caller's area slice.
func clone(a domain.Assessment) domain.Assessment {
	areas := make([]*domain.AreaState, len(a.Areas))
	for i, s := range a.Areas {
		copied := *s
		areas[i] = &copied
	}
	a.Areas = areas
	a.CalibrationIndicatorIDs = append([]string(nil), a.CalibrationIndicatorIDs...)
	a.MLGOORecalibrationIndicatorIDs = append([]string(nil), a.MLGOORecalibrationIndicatorIDs...)
	return a
}
