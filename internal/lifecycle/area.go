// Package lifecycle implements the area and assessment state machines as
// pure transition functions: each takes a state value, checks its guard,
// and returns the new state or a typed domain error. Persistence and the
// authoritative compare-and-set on the round latches belong to the caller.
package lifecycle

import (
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

// SubmitArea moves an area from draft (first submission) or rework
// (resubmission) to submitted. The first submission timestamp is
// preserved across rework cycles; resubmission never resets the rework
// latch.
func SubmitArea(s domain.AreaState, now time.Time) (domain.AreaState, error) {
	switch s.Status {
	case domain.AreaDraft, domain.AreaRework:
	case domain.AreaSubmitted, domain.AreaInReview:
		return s, &domain.InvalidTransitionError{
			Entity: "area", From: string(s.Status), Action: "submit",
		}
	default:
		return s, &domain.InvalidTransitionError{
			Entity: "area", From: string(s.Status), Action: "submit",
		}
	}

	s.Status = domain.AreaSubmitted
	if s.SubmittedAt == nil {
		s.SubmittedAt = &now
	}
	s.UpdatedAt = now
	return s, nil
}

// ClaimArea records the assessor taking a submitted area into review.
// The claim is optional: review decisions also accept areas still in
// submitted status.
func ClaimArea(s domain.AreaState, assessorID string, now time.Time) (domain.AreaState, error) {
	if s.Status != domain.AreaSubmitted {
		return s, &domain.InvalidTransitionError{
			Entity: "area", From: string(s.Status), Action: "claim",
		}
	}
	s.Status = domain.AreaInReview
	s.AssessorID = &assessorID
	s.UpdatedAt = now
	return s, nil
}

// ApproveArea is the terminal area-level review decision. The caller has
// already established indicator completion; this transition only checks
// reviewability.
func ApproveArea(s domain.AreaState, assessorID string, now time.Time) (domain.AreaState, error) {
	if !reviewable(s.Status) {
		return s, &domain.InvalidTransitionError{
			Entity: "area", From: string(s.Status), Action: "approve",
		}
	}
	s.Status = domain.AreaApproved
	s.AssessorID = &assessorID
	s.UpdatedAt = now
	return s, nil
}

// RequestRework opens the area's single rework round. The rework_used
// latch is one-shot: a second request fails with RoundExhausted. The
// latch is checked before reviewability so a request racing a concurrent
// winner reports the exhausted round, not the transient status.
func RequestRework(s domain.AreaState, assessorID string, now time.Time) (domain.AreaState, error) {
	if s.ReworkUsed {
		return s, &domain.RoundExhaustedError{Round: domain.RoundRework, AreaID: s.AreaID}
	}
	if !reviewable(s.Status) {
		return s, &domain.InvalidTransitionError{
			Entity: "area", From: string(s.Status), Action: "request rework for",
		}
	}

	s.Status = domain.AreaRework
	s.ReworkUsed = true
	s.ReworkRequestedAt = &now
	s.AssessorID = &assessorID
	s.UpdatedAt = now
	return s, nil
}

// RevertRework is the administrative reset: the area returns from rework
// to submitted and its correction state is cleared. This is the only
// operation allowed to unset the rework latch.
func RevertRework(s domain.AreaState, now time.Time) (domain.AreaState, error) {
	if s.Status != domain.AreaRework {
		return s, &domain.InvalidTransitionError{
			Entity: "area", From: string(s.Status), Action: "revert rework for",
		}
	}
	s.Status = domain.AreaSubmitted
	s.ReworkUsed = false
	s.ReworkRequestedAt = nil
	s.UpdatedAt = now
	return s, nil
}

// reviewable reports whether an assessor decision may act on the area.
// The in_review claim is optional, so submitted counts.
func reviewable(status domain.AreaStatus) bool {
	return status == domain.AreaSubmitted || status == domain.AreaInReview
}
