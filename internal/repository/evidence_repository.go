package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/database"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
)

// EvidenceRepository reads evidence metadata, annotations, indicator
// reviews and form responses. The completion engine never mutates any of
// these; file upload and deletion belong to the evidence registry
// service, which owns the tables.
type EvidenceRepository struct {
	db *database.DB
}

// NewEvidenceRepository creates a new EvidenceRepository.
func NewEvidenceRepository(db *database.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// ListFiles returns all evidence files for an indicator, soft-deleted
// included — the completion filter decides what counts.
func (r *EvidenceRepository) ListFiles(ctx context.Context, indicatorID string) ([]*domain.EvidenceFile, error) {
	query := `
		SELECT f.id, f.indicator_id, f.field_id, f.uploaded_at, f.deleted_at,
		       COALESCE(ARRAY_AGG(a.id) FILTER (WHERE a.id IS NOT NULL), '{}') AS annotation_ids
		FROM evidence_files f
		LEFT JOIN file_annotations a ON a.evidence_file_id = f.id
		WHERE f.indicator_id = $1
		GROUP BY f.id
		ORDER BY f.uploaded_at ASC
	`

	rows, err := r.db.Query(ctx, query, indicatorID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list evidence files")
	}
	defer rows.Close()

	files := make([]*domain.EvidenceFile, 0)
	for rows.Next() {
		f := &domain.EvidenceFile{}
		err := rows.Scan(
			&f.ID,
			&f.IndicatorID,
			&f.FieldID,
			&f.UploadedAt,
			&f.DeletedAt,
			&f.AnnotationIDs,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan evidence file")
		}
		files = append(files, f)
	}

	return files, nil
}

// ListAnnotations returns the rejection annotations on one file.
func (r *EvidenceRepository) ListAnnotations(ctx context.Context, fileID string) ([]*domain.Annotation, error) {
	query := `
		SELECT id, evidence_file_id, comment, resolved_at, created_at
		FROM file_annotations
		WHERE evidence_file_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list annotations")
	}
	defer rows.Close()

	annotations := make([]*domain.Annotation, 0)
	for rows.Next() {
		a := &domain.Annotation{}
		err := rows.Scan(&a.ID, &a.EvidenceFileID, &a.Comment, &a.ResolvedAt, &a.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan annotation")
		}
		annotations = append(annotations, a)
	}

	return annotations, nil
}

// ListUnresolvedAnnotations returns the unresolved rejection annotations
// across all files of one indicator.
func (r *EvidenceRepository) ListUnresolvedAnnotations(ctx context.Context, indicatorID string) ([]*domain.Annotation, error) {
	query := `
		SELECT a.id, a.evidence_file_id, a.comment, a.resolved_at, a.created_at
		FROM file_annotations a
		JOIN evidence_files f ON f.id = a.evidence_file_id
		WHERE f.indicator_id = $1
		  AND a.resolved_at IS NULL
		ORDER BY a.created_at ASC
	`

	rows, err := r.db.Query(ctx, query, indicatorID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list unresolved annotations")
	}
	defer rows.Close()

	annotations := make([]*domain.Annotation, 0)
	for rows.Next() {
		a := &domain.Annotation{}
		err := rows.Scan(&a.ID, &a.EvidenceFileID, &a.Comment, &a.ResolvedAt, &a.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan annotation")
		}
		annotations = append(annotations, a)
	}

	return annotations, nil
}

// GetIndicatorReview returns the reviewer feedback for an indicator in
// this cycle, or nil when the indicator was never flagged.
func (r *EvidenceRepository) GetIndicatorReview(ctx context.Context, assessmentID, indicatorID string) (*domain.IndicatorReview, error) {
	query := `
		SELECT indicator_id, assessment_id, requires_correction, comment, reviewed_by, reviewed_at
		FROM indicator_reviews
		WHERE assessment_id = $1 AND indicator_id = $2
		ORDER BY reviewed_at DESC
		LIMIT 1
	`

	rev := &domain.IndicatorReview{}
	err := r.db.QueryRow(ctx, query, assessmentID, indicatorID).Scan(
		&rev.IndicatorID,
		&rev.AssessmentID,
		&rev.RequiresCorrection,
		&rev.Comment,
		&rev.ReviewedBy,
		&rev.ReviewedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get indicator review")
	}
	return rev, nil
}

// GetFormValues returns the BLGU's non-file form responses for an
// indicator. Missing responses read as an empty value set.
func (r *EvidenceRepository) GetFormValues(ctx context.Context, assessmentID, indicatorID string) (domain.FormValues, error) {
	query := `
		SELECT values
		FROM indicator_responses
		WHERE assessment_id = $1 AND indicator_id = $2
	`

	var values domain.FormValues
	err := r.db.QueryRow(ctx, query, assessmentID, indicatorID).Scan(&values)
	if err == pgx.ErrNoRows {
		return domain.FormValues{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get form values")
	}
	return values, nil
}
