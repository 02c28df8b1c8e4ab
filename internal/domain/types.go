// Package domain holds the assessment domain model: governance area and
// assessment cycle state, indicator requirement schemas, and evidence
// metadata. State here is plain data; transitions live in the lifecycle
// package and completion rules in the completion package.
package domain

import "time"

// AreaCount is the number of governance areas in one assessment cycle.
const AreaCount = 6

// Governance area ids, fixed per SGLGB cycle.
const (
	AreaFinancialAdministration = 1
	AreaDisasterPreparedness    = 2
	AreaSafetyPeaceAndOrder     = 3
	AreaSocialProtection        = 4
	AreaBusinessFriendliness    = 5
	AreaEnvironmentalManagement = 6
)

// AreaStatus is the lifecycle status of one governance area.
type AreaStatus string

const (
	AreaDraft     AreaStatus = "draft"
	AreaSubmitted AreaStatus = "submitted"
	AreaInReview  AreaStatus = "in_review"
	AreaRework    AreaStatus = "rework"
	AreaApproved  AreaStatus = "approved"
)

// AssessmentStatus is the derived status of the whole assessment cycle.
type AssessmentStatus string

const (
	StatusDraft                 AssessmentStatus = "draft"
	StatusInReview              AssessmentStatus = "in_review"
	StatusAwaitingValidation    AssessmentStatus = "awaiting_validation"
	StatusCalibration           AssessmentStatus = "calibration"
	StatusAwaitingFinalApproval AssessmentStatus = "awaiting_final_approval"
	StatusRecalibration         AssessmentStatus = "re_calibration"
	StatusCompleted             AssessmentStatus = "completed"
)

// AreaState tracks one governance area through submission, review and its
// single rework round. SubmittedAt is the first-ever submission timestamp
// and is preserved across resubmissions.
type AreaState struct {
	AssessmentID      string
	AreaID            int
	Status            AreaStatus
	SubmittedAt       *time.Time
	ReworkRequestedAt *time.Time
	ReworkUsed        bool
	AssessorID        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Assessment is one assessment cycle for a barangay. Its overall status is
// derived from the six area states plus the post-area-review stage markers;
// it is never stored independently.
type Assessment struct {
	ID         string
	BarangayID string
	CycleYear  int
	Areas      []*AreaState

	CalibrationUsed         bool
	CalibrationRequestedAt  *time.Time
	CalibrationIndicatorIDs []string
	ValidatorID             *string
	ValidatorApprovedAt     *time.Time

	RecalibrationUsed              bool
	IsMLGOORecalibration           bool
	MLGOORecalibrationRequestedAt  *time.Time
	MLGOORecalibrationIndicatorIDs []string

	ApprovedBy  *string
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Area returns the state for the given governance area, or nil.
func (a *Assessment) Area(areaID int) *AreaState {
	for _, s := range a.Areas {
		if s.AreaID == areaID {
			return s
		}
	}
	return nil
}

// PendingAreas returns the ids of areas not yet approved, in area order.
func (a *Assessment) PendingAreas() []int {
	var pending []int
	for _, s := range a.Areas {
		if s.Status != AreaApproved {
			pending = append(pending, s.AreaID)
		}
	}
	return pending
}

// ── Indicator requirement schema ─────────────────────────────────────────────

// FieldKind is the input type of a form field.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldNumber FieldKind = "number"
	FieldDate   FieldKind = "date"
	FieldSelect FieldKind = "select"
	FieldFile   FieldKind = "file"
)

// CompletionGroup partitions fields for SHARED_PLUS_OR_LOGIC.
type CompletionGroup string

const (
	GroupShared  CompletionGroup = "shared"
	GroupOptionA CompletionGroup = "option_a"
	GroupOptionB CompletionGroup = "option_b"
)

// ValidationRule selects the completion rule for an indicator.
type ValidationRule string

const (
	AllItemsRequired       ValidationRule = "ALL_ITEMS_REQUIRED"
	AnyItemRequired        ValidationRule = "ANY_ITEM_REQUIRED"
	AnyOptionGroupRequired ValidationRule = "ANY_OPTION_GROUP_REQUIRED"
	SharedPlusOrLogic      ValidationRule = "SHARED_PLUS_OR_LOGIC"
)

// SchemaField is one field in an indicator's requirement schema.
// Stored as JSONB on the indicator_schemas row.
type SchemaField struct {
	FieldID         string          `json:"field_id"`
	Kind            FieldKind       `json:"kind"`
	Required        bool            `json:"required"`
	OptionGroup     string          `json:"option_group,omitempty"`
	CompletionGroup CompletionGroup `json:"completion_group,omitempty"`
}

// IndicatorSchema is the declarative requirement schema for one indicator.
// Immutable per indicator version.
type IndicatorSchema struct {
	IndicatorID string
	AreaID      int
	Version     int
	Rule        ValidationRule
	Fields      []SchemaField
	CreatedAt   time.Time
}

// FormValues holds the non-file form inputs for an indicator, keyed by
// field id.
type FormValues map[string]any

// ── Evidence ─────────────────────────────────────────────────────────────────

// EvidenceFile is read-only file metadata from the evidence registry.
// Soft-deleted files (DeletedAt set) never count toward completion.
type EvidenceFile struct {
	ID            string
	IndicatorID   string
	FieldID       string
	UploadedAt    time.Time
	DeletedAt     *time.Time
	AnnotationIDs []string
}

// Annotation is a rejection mark an assessor placed on one file.
type Annotation struct {
	ID             string
	EvidenceFileID string
	Comment        string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

// IndicatorReview is the reviewer feedback recorded against one indicator
// during a correction round: an authoritative requires-correction flag plus
// an optional general (non-file) comment.
type IndicatorReview struct {
	IndicatorID        string
	AssessmentID       string
	RequiresCorrection bool
	Comment            *string
	ReviewedBy         string
	ReviewedAt         time.Time
}

// AuditEntry is one immutable record in the assessment audit log.
type AuditEntry struct {
	ID           string
	AssessmentID string
	AreaID       *int
	Action       string
	PerformedBy  string
	PerformedAt  time.Time
	StatusBefore *string
	StatusAfter  *string
	Metadata     map[string]interface{}
}
