package repository

import (
	"context"
	"encoding/json"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/database"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
)

// AuditRepository is the append-only trail of every workflow transition.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO assessment_audit_log
		    (assessment_id, area_id, action, performed_by,
		     status_before, status_after, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, performed_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.AssessmentID,
		entry.AreaID,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}

	return nil
}

// ListByAssessment returns the full trail for one assessment, oldest
// first.
func (r *AuditRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, assessment_id, area_id, action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM assessment_audit_log
		WHERE assessment_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list audit entries")
	}
	defer rows.Close()

	entries := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		e := &domain.AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID,
			&e.AssessmentID,
			&e.AreaID,
			&e.Action,
			&e.PerformedBy,
			&e.PerformedAt,
			&e.StatusBefore,
			&e.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}
