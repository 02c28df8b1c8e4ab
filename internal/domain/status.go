package domain

// Status derives the assessment-level status from the six area states and
// the post-area-review stage markers. Precedence, highest first:
// completed > awaiting_final_approval > re_calibration > calibration >
// awaiting_validation > in_review > draft.
//
// A re-calibration request clears ValidatorApprovedAt (the flow returns to
// the validator), so re_calibration outranking calibration here is enough
// to keep the projection consistent.
func (a *Assessment) Status() AssessmentStatus {
	if a.CompletedAt != nil {
		return StatusCompleted
	}
	if a.ValidatorApprovedAt != nil {
		return StatusAwaitingFinalApproval
	}
	if a.MLGOORecalibrationRequestedAt != nil {
		return StatusRecalibration
	}
	if a.CalibrationRequestedAt != nil {
		return StatusCalibration
	}
	if a.allAreasApproved() {
		return StatusAwaitingValidation
	}
	if a.anyAreaSubmitted() {
		return StatusInReview
	}
	return StatusDraft
}

func (a *Assessment) allAreasApproved() bool {
	if len(a.Areas) < AreaCount {
		return false
	}
	for _, s := range a.Areas {
		if s.Status != AreaApproved {
			return false
		}
	}
	return true
}

func (a *Assessment) anyAreaSubmitted() bool {
	for _, s := range a.Areas {
		if s.Status != AreaDraft {
			return true
		}
	}
	return false
}
