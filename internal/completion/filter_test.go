package completion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

var reworkAt = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fileAt(id string, uploadedAt time.Time) *domain.EvidenceFile {
	return &domain.EvidenceFile{ID: id, FieldID: "doc", UploadedAt: uploadedAt}
}

func fileIDs(files []*domain.EvidenceFile) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}

func TestFilter_InactiveWindow(t *testing.T) {
	files := []*domain.EvidenceFile{
		fileAt("old", reworkAt.Add(-time.Hour)),
		fileAt("new", reworkAt.Add(time.Hour)),
	}

	got := Filter(files, CorrectionContext{})
	assert.Equal(t, []string{"old", "new"}, fileIDs(got))
}

func TestFilter_UnflaggedIndicatorKeepsEverything(t *testing.T) {
	files := []*domain.EvidenceFile{fileAt("old", reworkAt.Add(-time.Hour))}

	ctx := CorrectionContext{
		Active:           true,
		ReferenceTime:    &reworkAt,
		IndicatorFlagged: false,
		Mode:             ModeValidatorCalibration,
		// Reviewer feedback on other indicators must not leak in.
		HasGeneralComments: true,
	}
	got := Filter(files, ctx)
	assert.Equal(t, []string{"old"}, fileIDs(got))
}

func TestFilter_SoftDeletedAlwaysExcluded(t *testing.T) {
	deletedAt := reworkAt.Add(2 * time.Hour)
	files := []*domain.EvidenceFile{
		fileAt("kept", reworkAt.Add(time.Hour)),
		{ID: "deleted", FieldID: "doc", UploadedAt: reworkAt.Add(time.Hour), DeletedAt: &deletedAt},
	}

	got := Filter(files, CorrectionContext{})
	assert.Equal(t, []string{"kept"}, fileIDs(got))

	got = Filter(files, CorrectionContext{
		Active:           true,
		ReferenceTime:    &reworkAt,
		IndicatorFlagged: true,
		Mode:             ModeAssessorRework,
	})
	assert.Equal(t, []string{"kept"}, fileIDs(got))
}

func TestFilter_StrictGeneralComments(t *testing.T) {
	// Reviewer left only a general comment: every pre-window file is
	// invalidated, a fresh upload restores completeness.
	preWindow := fileAt("before", reworkAt.Add(-time.Hour))
	postWindow := fileAt("after", reworkAt.Add(30*time.Minute))

	ctx := CorrectionContext{
		Active:             true,
		ReferenceTime:      &reworkAt,
		IndicatorFlagged:   true,
		HasGeneralComments: true,
		Mode:               ModeAssessorRework,
	}

	got := Filter([]*domain.EvidenceFile{preWindow}, ctx)
	assert.Empty(t, got)

	got = Filter([]*domain.EvidenceFile{preWindow, postWindow}, ctx)
	assert.Equal(t, []string{"after"}, fileIDs(got))
}

func TestFilter_GranularAnnotations(t *testing.T) {
	// Annotations on specific files: only those files are invalidated,
	// untouched pre-window files stay valid.
	annotated := fileAt("rejected", reworkAt.Add(-2*time.Hour))
	untouched := fileAt("untouched", reworkAt.Add(-time.Hour))

	ctx := CorrectionContext{
		Active:           true,
		ReferenceTime:    &reworkAt,
		IndicatorFlagged: true,
		RejectedFileIDs:  map[string]struct{}{"rejected": {}},
		Mode:             ModeAssessorRework,
	}

	got := Filter([]*domain.EvidenceFile{annotated, untouched}, ctx)
	assert.Equal(t, []string{"untouched"}, fileIDs(got))
}

func TestFilter_GranularWithGeneralComments(t *testing.T) {
	// Granular annotations take precedence over the general-comment rule:
	// files not annotated remain valid even though a comment exists.
	annotated := fileAt("rejected", reworkAt.Add(-2*time.Hour))
	untouched := fileAt("untouched", reworkAt.Add(-time.Hour))

	ctx := CorrectionContext{
		Active:             true,
		ReferenceTime:      &reworkAt,
		IndicatorFlagged:   true,
		RejectedFileIDs:    map[string]struct{}{"rejected": {}},
		HasGeneralComments: true,
		Mode:               ModeAssessorRework,
	}

	got := Filter([]*domain.EvidenceFile{annotated, untouched}, ctx)
	assert.Equal(t, []string{"untouched"}, fileIDs(got))
}

func TestFilter_RequiresCorrectionOverridesAnnotations(t *testing.T) {
	// The indicator-level requires-correction flag invalidates every
	// pre-window file, annotated or not.
	annotated := fileAt("rejected", reworkAt.Add(-2*time.Hour))
	untouched := fileAt("untouched", reworkAt.Add(-time.Hour))
	fresh := fileAt("fresh", reworkAt)

	ctx := CorrectionContext{
		Active:            true,
		ReferenceTime:     &reworkAt,
		IndicatorFlagged:  true,
		ForceResubmission: true,
		RejectedFileIDs:   map[string]struct{}{"rejected": {}},
		Mode:              ModeValidatorCalibration,
	}

	got := Filter([]*domain.EvidenceFile{annotated, untouched, fresh}, ctx)
	assert.Equal(t, []string{"fresh"}, fileIDs(got))
}

func TestFilter_UploadAtReferenceTimeIsFresh(t *testing.T) {
	atRef := fileAt("at-ref", reworkAt)

	ctx := CorrectionContext{
		Active:             true,
		ReferenceTime:      &reworkAt,
		IndicatorFlagged:   true,
		HasGeneralComments: true,
		Mode:               ModeAssessorRework,
	}

	got := Filter([]*domain.EvidenceFile{atRef}, ctx)
	assert.Equal(t, []string{"at-ref"}, fileIDs(got))
}

func TestFilter_FlaggedWithoutFeedbackKeepsFiles(t *testing.T) {
	// Calibration flags the indicator but the reviewer attached no
	// annotations, no requires-correction and no comments: prior files
	// fall through to the default rule and stay valid.
	old := fileAt("old", reworkAt.Add(-time.Hour))

	ctx := CorrectionContext{
		Active:           true,
		ReferenceTime:    &reworkAt,
		IndicatorFlagged: true,
		Mode:             ModeValidatorCalibration,
	}

	got := Filter([]*domain.EvidenceFile{old}, ctx)
	assert.Equal(t, []string{"old"}, fileIDs(got))
}
