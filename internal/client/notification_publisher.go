package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/events"
)

// NotificationPublisher publishes assessment workflow events to NATS
// JetStream for consumption by the notifications service.
//
// Subject convention: notifications.sglgb.<event_type>
// Event types: area_submitted, rework_requested, area_approved,
//              awaiting_validation, calibration_requested,
//              validation_approved, recalibration_requested,
//              assessment_completed, rework_reverted
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt review operations.
type NotificationPublisher struct {
	nats *events.Client
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string                 `json:"event_type"`
	AssessmentID string                 `json:"assessment_id"`
	BarangayID   string                 `json:"barangay_id,omitempty"`
	ActorID      string                 `json:"actor_id"`
	ResourceType string                 `json:"resource_type,omitempty"`
	Severity     string                 `json:"severity,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// client. A nil client disables publishing.
func NewNotificationPublisher(nats *events.Client, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// PublishAssessmentEvent publishes an assessment workflow event.
// Subject: notifications.sglgb.<eventType>
func (p *NotificationPublisher) PublishAssessmentEvent(ctx context.Context, eventType, assessmentID, actorID string, payload map[string]interface{}) {
	if p.nats == nil {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		AssessmentID: assessmentID,
		ActorID:      actorID,
		ResourceType: "assessment",
		Severity:     "info",
		Category:     "sglgb_review",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.sglgb.%s", eventType)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("assessment_id", assessmentID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("assessment_id", assessmentID).
		Msg("notification: event published")
}
