package domain

import (
	"fmt"
	"strings"
)

// Correction round names used in RoundExhaustedError.
const (
	RoundRework        = "rework"
	RoundCalibration   = "calibration"
	RoundRecalibration = "re_calibration"
)

// RoundExhaustedError reports that a single-use correction round was
// requested after its one allowed use. AreaID is zero for the system-wide
// rounds (calibration, re-calibration).
type RoundExhaustedError struct {
	Round  string
	AreaID int
}

func (e *RoundExhaustedError) Error() string {
	if e.AreaID != 0 {
		return fmt.Sprintf("%s round already used for area %d", e.Round, e.AreaID)
	}
	return fmt.Sprintf("%s round already used for this assessment", e.Round)
}

// NotAllAreasApprovedError reports a premature aggregate transition,
// listing the areas still pending approval.
type NotAllAreasApprovedError struct {
	PendingAreas []int
}

func (e *NotAllAreasApprovedError) Error() string {
	ids := make([]string, len(e.PendingAreas))
	for i, id := range e.PendingAreas {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("not all areas approved; pending: %s", strings.Join(ids, ", "))
}

// NotAllIndicatorsCompleteError reports a submission attempted while
// required indicators in the area are incomplete.
type NotAllIndicatorsCompleteError struct {
	AreaID       int
	IndicatorIDs []string
}

func (e *NotAllIndicatorsCompleteError) Error() string {
	return fmt.Sprintf("area %d has incomplete indicators: %s",
		e.AreaID, strings.Join(e.IndicatorIDs, ", "))
}

// InvalidTransitionError reports an action attempted from a state that
// does not permit it.
type InvalidTransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status '%s'", e.Action, e.Entity, e.From)
}

// ConfigurationError reports a malformed requirement schema. It aborts the
// single evaluation, never the assessment cycle, and is never silently
// collapsed into a completion verdict.
type ConfigurationError struct {
	IndicatorID string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("indicator %s: invalid requirement schema: %s", e.IndicatorID, e.Reason)
}
