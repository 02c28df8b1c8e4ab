package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/database"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
)

// AssessmentRepository persists assessment cycles and their six area
// states. The assessment row carries a cached status projection for
// queryability; callers always pass the freshly derived value, so the
// column can never drift from the area states.
//
// The one-shot round latches are written with conditional UPDATEs
// (compare-and-set): when the latch is already spent the statement
// matches zero rows and the caller gets RoundExhausted, so concurrent
// requests have at most one winner.
type AssessmentRepository struct {
	db *database.DB
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db *database.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create opens an assessment cycle: one assessment row plus its six area
// rows in draft, in a single transaction.
func (r *AssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO assessments (barangay_id, cycle_year, status)
			VALUES ($1, $2, $3::assessment_status)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			a.BarangayID,
			a.CycleYear,
			a.Status(),
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create assessment")
		}

		areaQuery := `
			INSERT INTO assessment_areas (assessment_id, area_id, status)
			VALUES ($1, $2, $3::area_status)
			RETURNING created_at, updated_at
		`

		for _, area := range a.Areas {
			area.AssessmentID = a.ID
			err := tx.QueryRow(ctx, areaQuery,
				a.ID,
				area.AreaID,
				area.Status,
			).Scan(&area.CreatedAt, &area.UpdatedAt)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create assessment area")
			}
		}

		return nil
	})
}

// GetByID retrieves an assessment with all six area states.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `
		SELECT id, barangay_id, cycle_year,
		       calibration_used, calibration_requested_at, calibration_indicator_ids,
		       validator_id, validator_approved_at,
		       recalibration_used, is_mlgoo_recalibration,
		       mlgoo_recalibration_requested_at, mlgoo_recalibration_indicator_ids,
		       approved_by, completed_at,
		       created_at, updated_at
		FROM assessments
		WHERE id = $1
	`

	a := &domain.Assessment{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.BarangayID,
		&a.CycleYear,
		&a.CalibrationUsed,
		&a.CalibrationRequestedAt,
		&a.CalibrationIndicatorIDs,
		&a.ValidatorID,
		&a.ValidatorApprovedAt,
		&a.RecalibrationUsed,
		&a.IsMLGOORecalibration,
		&a.MLGOORecalibrationRequestedAt,
		&a.MLGOORecalibrationIndicatorIDs,
		&a.ApprovedBy,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("assessment", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get assessment")
	}

	areas, err := r.getAreas(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Areas = areas

	return a, nil
}

func (r *AssessmentRepository) getAreas(ctx context.Context, assessmentID string) ([]*domain.AreaState, error) {
	query := `
		SELECT assessment_id, area_id, status,
		       submitted_at, rework_requested_at, rework_used, assessor_id,
		       created_at, updated_at
		FROM assessment_areas
		WHERE assessment_id = $1
		ORDER BY area_id
	`

	rows, err := r.db.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get assessment areas")
	}
	defer rows.Close()

	areas := make([]*domain.AreaState, 0, domain.AreaCount)
	for rows.Next() {
		s := &domain.AreaState{}
		err := rows.Scan(
			&s.AssessmentID,
			&s.AreaID,
			&s.Status,
			&s.SubmittedAt,
			&s.ReworkRequestedAt,
			&s.ReworkUsed,
			&s.AssessorID,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan assessment area")
		}
		areas = append(areas, s)
	}

	return areas, nil
}

// List retrieves assessments filtered by cached status, with pagination.
func (r *AssessmentRepository) List(ctx context.Context, status *string, limit, offset int) ([]*domain.Assessment, int64, error) {
	query := `
		SELECT id, barangay_id, cycle_year,
		       calibration_used, calibration_requested_at, calibration_indicator_ids,
		       validator_id, validator_approved_at,
		       recalibration_used, is_mlgoo_recalibration,
		       mlgoo_recalibration_requested_at, mlgoo_recalibration_indicator_ids,
		       approved_by, completed_at,
		       created_at, updated_at
		FROM assessments
	`
	countQuery := `SELECT COUNT(*) FROM assessments`

	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1::assessment_status`
		countQuery += ` WHERE status = $1::assessment_status`
		args = append(args, *status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	queryArgs := append(args, limit, offset)

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count assessments")
	}

	rows, err := r.db.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list assessments")
	}
	defer rows.Close()

	assessments := make([]*domain.Assessment, 0)
	for rows.Next() {
		a := &domain.Assessment{}
		err := rows.Scan(
			&a.ID,
			&a.BarangayID,
			&a.CycleYear,
			&a.CalibrationUsed,
			&a.CalibrationRequestedAt,
			&a.CalibrationIndicatorIDs,
			&a.ValidatorID,
			&a.ValidatorApprovedAt,
			&a.RecalibrationUsed,
			&a.IsMLGOORecalibration,
			&a.MLGOORecalibrationRequestedAt,
			&a.MLGOORecalibrationIndicatorIDs,
			&a.ApprovedBy,
			&a.CompletedAt,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan assessment")
		}
		assessments = append(assessments, a)
	}

	for _, a := range assessments {
		areas, err := r.getAreas(ctx, a.ID)
		if err != nil {
			return nil, 0, err
		}
		a.Areas = areas
	}

	return assessments, total, nil
}

// UpdateArea persists one area state together with the refreshed status
// projection on the parent assessment, in one transaction.
func (r *AssessmentRepository) UpdateArea(ctx context.Context, area *domain.AreaState, derived domain.AssessmentStatus) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE assessment_areas
			SET status              = $3::area_status,
			    submitted_at        = $4,
			    rework_requested_at = $5,
			    rework_used         = $6,
			    assessor_id         = $7,
			    updated_at          = NOW()
			WHERE assessment_id = $1 AND area_id = $2
			RETURNING area_id
		`

		var returnedID int
		err := tx.QueryRow(ctx, query,
			area.AssessmentID,
			area.AreaID,
			area.Status,
			area.SubmittedAt,
			area.ReworkRequestedAt,
			area.ReworkUsed,
			area.AssessorID,
		).Scan(&returnedID)
		if err == pgx.ErrNoRows {
			return errors.NotFound("assessment_area", fmt.Sprintf("%s/%d", area.AssessmentID, area.AreaID))
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update assessment area")
		}

		return r.refreshStatus(ctx, tx, area.AssessmentID, derived)
	})
}

// AcquireReworkLatch atomically opens the area's rework round. The latch
// condition is part of the UPDATE, so exactly one of two concurrent
// requests can win; the loser gets RoundExhausted.
func (r *AssessmentRepository) AcquireReworkLatch(ctx context.Context, assessmentID string, areaID int, assessorID string, now time.Time) error {
	query := `
		UPDATE assessment_areas
		SET status              = 'rework'::area_status,
		    rework_used         = TRUE,
		    rework_requested_at = $3,
		    assessor_id         = $4,
		    updated_at          = NOW()
		WHERE assessment_id = $1 AND area_id = $2
		  AND rework_used = FALSE
		  AND status IN ('submitted', 'in_review')
		RETURNING area_id
	`

	var returnedID int
	err := r.db.QueryRow(ctx, query, assessmentID, areaID, &now, assessorID).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return &domain.RoundExhaustedError{Round: domain.RoundRework, AreaID: areaID}
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to request rework")
	}

	return r.refreshStatusStandalone(ctx, assessmentID)
}

// AcquireCalibrationLatch atomically opens the single system-wide
// calibration round.
func (r *AssessmentRepository) AcquireCalibrationLatch(ctx context.Context, assessmentID, validatorID string, indicatorIDs []string, now time.Time) error {
	query := `
		UPDATE assessments
		SET calibration_used          = TRUE,
		    calibration_requested_at  = $2,
		    calibration_indicator_ids = $3,
		    validator_id              = $4,
		    status                    = 'calibration'::assessment_status,
		    updated_at                = NOW()
		WHERE id = $1
		  AND calibration_used = FALSE
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, assessmentID, &now, indicatorIDs, validatorID).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return &domain.RoundExhaustedError{Round: domain.RoundCalibration}
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to request calibration")
	}
	return nil
}

// AcquireRecalibrationLatch atomically opens the post-approval-review
// re-calibration round and returns the flow to the validator.
func (r *AssessmentRepository) AcquireRecalibrationLatch(ctx context.Context, assessmentID, requestedBy string, indicatorIDs []string, now time.Time) error {
	query := `
		UPDATE assessments
		SET recalibration_used                = TRUE,
		    is_mlgoo_recalibration            = TRUE,
		    mlgoo_recalibration_requested_at  = $2,
		    mlgoo_recalibration_indicator_ids = $3,
		    validator_approved_at             = NULL,
		    status                            = 're_calibration'::assessment_status,
		    updated_at                        = NOW()
		WHERE id = $1
		  AND recalibration_used = FALSE
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, assessmentID, &now, indicatorIDs).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return &domain.RoundExhaustedError{Round: domain.RoundRecalibration}
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to request re-calibration")
	}
	_ = requestedBy // recorded by the audit log, not the assessment row
	return nil
}

// SaveValidatorApproval stamps the validator approval marker.
func (r *AssessmentRepository) SaveValidatorApproval(ctx context.Context, assessmentID, validatorID string, now time.Time) error {
	query := `
		UPDATE assessments
		SET validator_id          = $2,
		    validator_approved_at = $3,
		    status                = 'awaiting_final_approval'::assessment_status,
		    updated_at            = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, assessmentID, validatorID, &now).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("assessment", assessmentID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to save validator approval")
	}
	return nil
}

// SaveCompletion finalizes the assessment. Terminal: the guard on
// completed_at keeps the row immutable once set.
func (r *AssessmentRepository) SaveCompletion(ctx context.Context, assessmentID, approvedBy string, now time.Time) error {
	query := `
		UPDATE assessments
		SET approved_by  = $2,
		    completed_at = $3,
		    status       = 'completed'::assessment_status,
		    updated_at   = NOW()
		WHERE id = $1
		  AND completed_at IS NULL
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, assessmentID, approvedBy, &now).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.Conflict("assessment already completed")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to complete assessment")
	}
	return nil
}

// RevertReworkAreas resets the given areas from rework to submitted and
// clears their latches, then refreshes the status projection — all in
// one transaction so the projection can never go stale.
func (r *AssessmentRepository) RevertReworkAreas(ctx context.Context, assessmentID string, areaIDs []int, derived domain.AssessmentStatus) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE assessment_areas
			SET status              = 'submitted'::area_status,
			    rework_used         = FALSE,
			    rework_requested_at = NULL,
			    updated_at          = NOW()
			WHERE assessment_id = $1 AND area_id = $2
			  AND status = 'rework'::area_status
			RETURNING area_id
		`

		for _, areaID := range areaIDs {
			var returnedID int
			err := tx.QueryRow(ctx, query, assessmentID, areaID).Scan(&returnedID)
			if err == pgx.ErrNoRows {
				return errors.Conflict(fmt.Sprintf("area %d is not in rework", areaID))
			}
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to revert rework")
			}
		}

		return r.refreshStatus(ctx, tx, assessmentID, derived)
	})
}

func (r *AssessmentRepository) refreshStatus(ctx context.Context, tx pgx.Tx, assessmentID string, derived domain.AssessmentStatus) error {
	query := `
		UPDATE assessments
		SET status     = $2::assessment_status,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := tx.QueryRow(ctx, query, assessmentID, derived).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("assessment", assessmentID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to refresh assessment status")
	}
	return nil
}

// refreshStatusStandalone recomputes the projection from the stored area
// states outside a caller-owned transaction.
func (r *AssessmentRepository) refreshStatusStandalone(ctx context.Context, assessmentID string) error {
	a, err := r.GetByID(ctx, assessmentID)
	if err != nil {
		return err
	}
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return r.refreshStatus(ctx, tx, assessmentID, a.Status())
	})
}
