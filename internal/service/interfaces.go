package service

import (
	"context"
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

// AssessmentStore persists assessment cycles and area states. The latch
// acquisition methods are atomic compare-and-set operations: when the
// round is already spent they return *domain.RoundExhaustedError, so
// concurrent requests have at most one winner.
type AssessmentStore interface {
	Create(ctx context.Context, a *domain.Assessment) error
	GetByID(ctx context.Context, id string) (*domain.Assessment, error)
	List(ctx context.Context, status *string, limit, offset int) ([]*domain.Assessment, int64, error)
	UpdateArea(ctx context.Context, area *domain.AreaState, derived domain.AssessmentStatus) error
	AcquireReworkLatch(ctx context.Context, assessmentID string, areaID int, assessorID string, now time.Time) error
	AcquireCalibrationLatch(ctx context.Context, assessmentID, validatorID string, indicatorIDs []string, now time.Time) error
	AcquireRecalibrationLatch(ctx context.Context, assessmentID, requestedBy string, indicatorIDs []string, now time.Time) error
	SaveValidatorApproval(ctx context.Context, assessmentID, validatorID string, now time.Time) error
	SaveCompletion(ctx context.Context, assessmentID, approvedBy string, now time.Time) error
	RevertReworkAreas(ctx context.Context, assessmentID string, areaIDs []int, derived domain.AssessmentStatus) error
}

// EvidenceStore reads evidence metadata and reviewer feedback. The
// engine consumes all of it read-only.
type EvidenceStore interface {
	ListFiles(ctx context.Context, indicatorID string) ([]*domain.EvidenceFile, error)
	ListUnresolvedAnnotations(ctx context.Context, indicatorID string) ([]*domain.Annotation, error)
	GetIndicatorReview(ctx context.Context, assessmentID, indicatorID string) (*domain.IndicatorReview, error)
	GetFormValues(ctx context.Context, assessmentID, indicatorID string) (domain.FormValues, error)
}

// SchemaStore reads indicator requirement schemas.
type SchemaStore interface {
	GetByIndicatorID(ctx context.Context, indicatorID string) (*domain.IndicatorSchema, error)
	ListByArea(ctx context.Context, areaID int) ([]*domain.IndicatorSchema, error)
}

// AuditStore appends workflow transitions to the audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]*domain.AuditEntry, error)
}

// Notifier publishes workflow events. Implementations must be non-fatal.
type Notifier interface {
	PublishAssessmentEvent(ctx context.Context, eventType, assessmentID, actorID string, payload map[string]interface{})
}
