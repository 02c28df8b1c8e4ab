package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "disabled", ServiceName: "test"})
}

// fakeAssessmentStore is an in-memory AssessmentStore. The latch methods
// run their compare-and-set under a mutex, mirroring the row-level
// atomicity of the SQL implementation.
type fakeAssessmentStore struct {
	mu          sync.Mutex
	assessments map[string]*domain.Assessment
	nextID      int
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{assessments: make(map[string]*domain.Assessment)}
}

func copyAssessment(a *domain.Assessment) *domain.Assessment {
	cp := *a
	cp.Areas = make([]*domain.AreaState, len(a.Areas))
	for i, s := range a.Areas {
		area := *s
		cp.Areas[i] = &area
	}
	cp.CalibrationIndicatorIDs = append([]string(nil), a.CalibrationIndicatorIDs...)
	cp.MLGOORecalibrationIndicatorIDs = append([]string(nil), a.MLGOORecalibrationIndicatorIDs...)
	return &cp
}

func (f *fakeAssessmentStore) Create(ctx context.Context, a *domain.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = fmt.Sprintf("asmt-%d", f.nextID)
	for _, s := range a.Areas {
		s.AssessmentID = a.ID
	}
	f.assessments[a.ID] = copyAssessment(a)
	return nil
}

func (f *fakeAssessmentStore) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return nil, errors.NotFound("assessment", id)
	}
	return copyAssessment(a), nil
}

func (f *fakeAssessmentStore) List(ctx context.Context, status *string, limit, offset int) ([]*domain.Assessment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Assessment
	for _, a := range f.assessments {
		if status != nil && string(a.Status()) != *status {
			continue
		}
		out = append(out, copyAssessment(a))
	}
	return out, int64(len(out)), nil
}

func (f *fakeAssessmentStore) UpdateArea(ctx context.Context, area *domain.AreaState, derived domain.AssessmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[area.AssessmentID]
	if !ok {
		return errors.NotFound("assessment", area.AssessmentID)
	}
	cur := a.Area(area.AreaID)
	if cur == nil {
		return errors.NotFound("area", fmt.Sprintf("%d", area.AreaID))
	}
	*cur = *area
	return nil
}

func (f *fakeAssessmentStore) AcquireReworkLatch(ctx context.Context, assessmentID string, areaID int, assessorID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[assessmentID]
	if !ok {
		return errors.NotFound("assessment", assessmentID)
	}
	area := a.Area(areaID)
	if area == nil {
		return errors.NotFound("area", fmt.Sprintf("%d", areaID))
	}
	if area.ReworkUsed || (area.Status != domain.AreaSubmitted && area.Status != domain.AreaInReview) {
		return &domain.RoundExhaustedError{Round: domain.RoundRework, AreaID: areaID}
	}
	area.Status = domain.AreaRework
	area.ReworkUsed = true
	area.ReworkRequestedAt = &now
	area.AssessorID = &assessorID
	return nil
}

func (f *fakeAssessmentStore) AcquireCalibrationLatch(ctx context.Context, assessmentID, validatorID string, indicatorIDs []string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[assessmentID]
	if !ok {
		return errors.NotFound("assessment", assessmentID)
	}
	if a.CalibrationUsed {
		return &domain.RoundExhaustedError{Round: domain.RoundCalibration}
	}
	a.CalibrationUsed = true
	a.CalibrationRequestedAt = &now
	a.CalibrationIndicatorIDs = append([]string(nil), indicatorIDs...)
	a.ValidatorID = &validatorID
	return nil
}

func (f *fakeAssessmentStore) AcquireRecalibrationLatch(ctx context.Context, assessmentID, requestedBy string, indicatorIDs []string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[assessmentID]
	if !ok {
		return errors.NotFound("assessment", assessmentID)
	}
	if a.RecalibrationUsed {
		return &domain.RoundExhaustedError{Round: domain.RoundRecalibration}
	}
	a.RecalibrationUsed = true
	a.IsMLGOORecalibration = true
	a.MLGOORecalibrationRequestedAt = &now
	a.MLGOORecalibrationIndicatorIDs = append([]string(nil), indicatorIDs...)
	a.ValidatorApprovedAt = nil
	return nil
}

func (f *fakeAssessmentStore) SaveValidatorApproval(ctx context.Context, assessmentID, validatorID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[assessmentID]
	if !ok {
		return errors.NotFound("assessment", assessmentID)
	}
	a.ValidatorID = &validatorID
	a.ValidatorApprovedAt = &now
	return nil
}

func (f *fakeAssessmentStore) SaveCompletion(ctx context.Context, assessmentID, approvedBy string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[assessmentID]
	if !ok {
		return errors.NotFound("assessment", assessmentID)
	}
	if a.CompletedAt != nil {
		return errors.Conflict("assessment already completed")
	}
	a.ApprovedBy = &approvedBy
	a.CompletedAt = &now
	return nil
}

func (f *fakeAssessmentStore) RevertReworkAreas(ctx context.Context, assessmentID string, areaIDs []int, derived domain.AssessmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[assessmentID]
	if !ok {
		return errors.NotFound("assessment", assessmentID)
	}
	for _, id := range areaIDs {
		area := a.Area(id)
		if area == nil || area.Status != domain.AreaRework {
			return errors.Conflict("area not in rework")
		}
		area.Status = domain.AreaSubmitted
		area.ReworkUsed = false
		area.ReworkRequestedAt = nil
	}
	return nil
}

// fakeEvidenceStore serves evidence fixtures keyed by indicator id.
type fakeEvidenceStore struct {
	mu          sync.Mutex
	files       map[string][]*domain.EvidenceFile
	annotations map[string][]*domain.Annotation
	reviews     map[string]*domain.IndicatorReview
	values      map[string]domain.FormValues
}

func newFakeEvidenceStore() *fakeEvidenceStore {
	return &fakeEvidenceStore{
		files:       make(map[string][]*domain.EvidenceFile),
		annotations: make(map[string][]*domain.Annotation),
		reviews:     make(map[string]*domain.IndicatorReview),
		values:      make(map[string]domain.FormValues),
	}
}

func (f *fakeEvidenceStore) addFile(indicatorID string, file *domain.EvidenceFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file.IndicatorID = indicatorID
	f.files[indicatorID] = append(f.files[indicatorID], file)
}

func (f *fakeEvidenceStore) addAnnotation(indicatorID string, ann *domain.Annotation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.annotations[indicatorID] = append(f.annotations[indicatorID], ann)
}

func (f *fakeEvidenceStore) setReview(indicatorID string, review *domain.IndicatorReview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[indicatorID] = review
}

func (f *fakeEvidenceStore) setValues(indicatorID string, values domain.FormValues) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[indicatorID] = values
}

func (f *fakeEvidenceStore) ListFiles(ctx context.Context, indicatorID string) ([]*domain.EvidenceFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.EvidenceFile(nil), f.files[indicatorID]...), nil
}

func (f *fakeEvidenceStore) ListUnresolvedAnnotations(ctx context.Context, indicatorID string) ([]*domain.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Annotation
	for _, ann := range f.annotations[indicatorID] {
		if ann.ResolvedAt == nil {
			out = append(out, ann)
		}
	}
	return out, nil
}

func (f *fakeEvidenceStore) GetIndicatorReview(ctx context.Context, assessmentID, indicatorID string) (*domain.IndicatorReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reviews[indicatorID], nil
}

func (f *fakeEvidenceStore) GetFormValues(ctx context.Context, assessmentID, indicatorID string) (domain.FormValues, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[indicatorID]; ok {
		return v, nil
	}
	return domain.FormValues{}, nil
}

// fakeSchemaStore serves schema fixtures.
type fakeSchemaStore struct {
	schemas map[string]*domain.IndicatorSchema
}

func newFakeSchemaStore() *fakeSchemaStore {
	return &fakeSchemaStore{schemas: make(map[string]*domain.IndicatorSchema)}
}

func (f *fakeSchemaStore) add(schema *domain.IndicatorSchema) {
	f.schemas[schema.IndicatorID] = schema
}

func (f *fakeSchemaStore) GetByIndicatorID(ctx context.Context, indicatorID string) (*domain.IndicatorSchema, error) {
	s, ok := f.schemas[indicatorID]
	if !ok {
		return nil, errors.NotFound("indicator schema", indicatorID)
	}
	return s, nil
}

func (f *fakeSchemaStore) ListByArea(ctx context.Context, areaID int) ([]*domain.IndicatorSchema, error) {
	var out []*domain.IndicatorSchema
	for _, s := range f.schemas {
		if s.AreaID == areaID {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeAuditStore records appended entries in order.
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (f *fakeAuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = fmt.Sprintf("audit-%d", len(f.entries)+1)
	entry.PerformedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) ListByAssessment(ctx context.Context, assessmentID string) ([]*domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range f.entries {
		if e.AssessmentID == assessmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeNotifier records published events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) PublishAssessmentEvent(ctx context.Context, eventType, assessmentID, actorID string, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeNotifier) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
