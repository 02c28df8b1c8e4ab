package completion

import (
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

// Mode identifies which correction round supplied the reference
// timestamp. Both modes use the same precedence rules.
type Mode string

const (
	ModeAssessorRework       Mode = "assessor_rework"
	ModeValidatorCalibration Mode = "validator_calibration"
)

// CorrectionContext describes the active correction window for one
// indicator, assembled by the service from area/assessment state and the
// reviewer's feedback.
type CorrectionContext struct {
	// Active is true while a correction round is open for the area
	// (assessor rework) or the assessment (calibration/re-calibration).
	Active bool
	// ReferenceTime is when the correction round was requested; uploads
	// at or after it are always valid.
	ReferenceTime *time.Time
	// IndicatorFlagged is true when this indicator is targeted by the
	// round. Unflagged indicators keep all prior uploads.
	IndicatorFlagged bool
	// ForceResubmission is the reviewer's indicator-level
	// requires-correction flag. It invalidates every pre-window file
	// regardless of per-file annotations.
	ForceResubmission bool
	// RejectedFileIDs are files with unresolved rejection annotations.
	RejectedFileIDs map[string]struct{}
	// HasGeneralComments is true when the reviewer left only general
	// (non-file) comments for this indicator.
	HasGeneralComments bool
	Mode               Mode
}

// verdictRule is one row of the filter decision table: the first rule
// whose predicate matches a file decides its validity.
type verdictRule struct {
	name    string
	applies func(f *domain.EvidenceFile) bool
	valid   bool
}

// Filter narrows evidence to the files that count toward completion
// during a correction window. Soft-deleted files are always dropped.
//
// Precedence is a data table, evaluated top to bottom per file:
//
//  1. fresh_upload        — uploaded at/after the reference time: valid
//  2. requires_correction — indicator-level flag set: pre-window invalid,
//     overriding per-file annotations
//  3. annotated           — file has an unresolved rejection: invalid
//  4. granular_untouched  — annotations exist but not on this file: valid
//  5. general_comment     — only general comments: pre-window invalid
//  6. default             — valid
func Filter(files []*domain.EvidenceFile, ctx CorrectionContext) []*domain.EvidenceFile {
	valid := make([]*domain.EvidenceFile, 0, len(files))
	for _, f := range files {
		if f.DeletedAt != nil {
			continue
		}
		valid = append(valid, f)
	}

	// Outside a correction window, or for indicators the reviewer did not
	// flag, prior uploads remain valid unfiltered.
	if !ctx.Active || !ctx.IndicatorFlagged || ctx.ReferenceTime == nil {
		return valid
	}

	table := decisionTable(ctx)

	filtered := valid[:0]
	for _, f := range valid {
		for _, rule := range table {
			if !rule.applies(f) {
				continue
			}
			if rule.valid {
				filtered = append(filtered, f)
			}
			break
		}
	}
	return filtered
}

func decisionTable(ctx CorrectionContext) []verdictRule {
	ref := *ctx.ReferenceTime
	return []verdictRule{
		{
			name:    "fresh_upload",
			applies: func(f *domain.EvidenceFile) bool { return !f.UploadedAt.Before(ref) },
			valid:   true,
		},
		{
			name:    "requires_correction",
			applies: func(f *domain.EvidenceFile) bool { return ctx.ForceResubmission },
			valid:   false,
		},
		{
			name: "annotated",
			applies: func(f *domain.EvidenceFile) bool {
				_, rejected := ctx.RejectedFileIDs[f.ID]
				return rejected
			},
			valid: false,
		},
		{
			name:    "granular_untouched",
			applies: func(f *domain.EvidenceFile) bool { return len(ctx.RejectedFileIDs) > 0 },
			valid:   true,
		},
		{
			name:    "general_comment",
			applies: func(f *domain.EvidenceFile) bool { return ctx.HasGeneralComments },
			valid:   false,
		},
		{
			name:    "default",
			applies: func(f *domain.EvidenceFile) bool { return true },
			valid:   true,
		},
	}
}
