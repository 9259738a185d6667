package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Participant metrics are recomputed from these.
const (
	// Batch events
	EventBatchStateChanged EventType = "batch.state_changed"

	// Participant events
	EventParticipantEnrolled     EventType = "participant.enrolled"
	EventParticipantBatchChanged EventType = "participant.batch_changed"
	EventMentorScored            EventType = "participant.mentor_scored"

	// Agenda and assignment events
	EventEventLinkSaved    EventType = "event_link.saved"
	EventAssignmentCreated EventType = "assignment.created"

	// Attendance events
	EventCheckedIn       EventType = "attendance.checked_in"
	EventCheckedOut      EventType = "attendance.checked_out"
	EventAutoAbsent      EventType = "attendance.auto_absent"
	EventAttendanceSaved EventType = "attendance.saved"
	EventAttendanceSync  EventType = "attendance.synced"

	// Submission events
	EventSubmissionSubmitted EventType = "submission.submitted"
	EventSubmissionScored    EventType = "submission.scored"

	// Certificate events
	EventCertificateIssued EventType = "certificate.issued"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// ParticipantScoped is implemented by events whose consequences are limited
// to a single participant's metrics.
type ParticipantScoped interface {
	ParticipantRef() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Batch Events
// ═══════════════════════════════════════════════════════════════════════════

// BatchStateChangedEvent is emitted when a batch moves through its workflow.
type BatchStateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// Payload implements Event interface.
func (e BatchStateChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"from": e.From, "to": e.To}
}

// NewBatchStateChangedEvent creates a new BatchStateChangedEvent.
func NewBatchStateChangedEvent(batchID, from, to string) BatchStateChangedEvent {
	return BatchStateChangedEvent{
		BaseEvent: NewBaseEvent(EventBatchStateChanged, batchID),
		From:      from,
		To:        to,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Participant Events
// ═══════════════════════════════════════════════════════════════════════════

// ParticipantEnrolledEvent is emitted when a participant joins a batch.
type ParticipantEnrolledEvent struct {
	BaseEvent
	BatchID     string `json:"batch_id"`
	PartnerID   string `json:"partner_id"`
	ApplicantID string `json:"applicant_id,omitempty"`
}

// Payload implements Event interface.
func (e ParticipantEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"batch_id":     e.BatchID,
		"partner_id":   e.PartnerID,
		"applicant_id": e.ApplicantID,
	}
}

// ParticipantRef implements ParticipantScoped.
func (e ParticipantEnrolledEvent) ParticipantRef() string { return e.AggregateId }

// NewParticipantEnrolledEvent creates a new ParticipantEnrolledEvent.
func NewParticipantEnrolledEvent(participantID, batchID, partnerID, applicantID string) ParticipantEnrolledEvent {
	return ParticipantEnrolledEvent{
		BaseEvent:   NewBaseEvent(EventParticipantEnrolled, participantID),
		BatchID:     batchID,
		PartnerID:   partnerID,
		ApplicantID: applicantID,
	}
}

// ParticipantBatchChangedEvent is emitted when a participant moves to another batch.
type ParticipantBatchChangedEvent struct {
	BaseEvent
	FromBatchID string `json:"from_batch_id"`
	ToBatchID   string `json:"to_batch_id"`
	Created     int    `json:"created"`
}

// Payload implements Event interface.
func (e ParticipantBatchChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from_batch_id": e.FromBatchID,
		"to_batch_id":   e.ToBatchID,
		"created":       e.Created,
	}
}

// ParticipantRef implements ParticipantScoped.
func (e ParticipantBatchChangedEvent) ParticipantRef() string { return e.AggregateId }

// NewParticipantBatchChangedEvent creates a new ParticipantBatchChangedEvent.
// created is the number of attendance rows generated in the new batch.
func NewParticipantBatchChangedEvent(participantID, fromBatchID, toBatchID string, created int) ParticipantBatchChangedEvent {
	return ParticipantBatchChangedEvent{
		BaseEvent:   NewBaseEvent(EventParticipantBatchChanged, participantID),
		FromBatchID: fromBatchID,
		ToBatchID:   toBatchID,
		Created:     created,
	}
}

// MentorScoredEvent is emitted when a mentor sets a participant's mentor score.
type MentorScoredEvent struct {
	BaseEvent
	Score float64 `json:"score"`
}

// Payload implements Event interface.
func (e MentorScoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"score": e.Score}
}

// ParticipantRef implements ParticipantScoped.
func (e MentorScoredEvent) ParticipantRef() string { return e.AggregateId }

// NewMentorScoredEvent creates a new MentorScoredEvent.
func NewMentorScoredEvent(participantID string, score float64) MentorScoredEvent {
	return MentorScoredEvent{
		BaseEvent: NewBaseEvent(EventMentorScored, participantID),
		Score:     score,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Agenda and Assignment Events
// ═══════════════════════════════════════════════════════════════════════════

// BatchItemEvent is emitted when an event link or assignment of a batch is
// created or edited.
type BatchItemEvent struct {
	BaseEvent
	BatchID string `json:"batch_id"`
}

// Payload implements Event interface.
func (e BatchItemEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"batch_id": e.BatchID}
}

// NewEventLinkSavedEvent creates the event for a created or edited event link.
func NewEventLinkSavedEvent(eventLinkID, batchID string) BatchItemEvent {
	return BatchItemEvent{BaseEvent: NewBaseEvent(EventEventLinkSaved, eventLinkID), BatchID: batchID}
}

// NewAssignmentCreatedEvent creates the event for a new assignment.
func NewAssignmentCreatedEvent(assignmentID, batchID string) BatchItemEvent {
	return BatchItemEvent{BaseEvent: NewBaseEvent(EventAssignmentCreated, assignmentID), BatchID: batchID}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceEvent covers check-in, check-out, auto-absence and manual edits.
type AttendanceEvent struct {
	BaseEvent
	ParticipantID string `json:"participant_id"`
	BatchID       string `json:"batch_id"`
	EventLinkID   string `json:"event_link_id,omitempty"`
	Presence      string `json:"presence"`
	Method        string `json:"method"`
}

// Payload implements Event interface.
func (e AttendanceEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"participant_id": e.ParticipantID,
		"batch_id":       e.BatchID,
		"event_link_id":  e.EventLinkID,
		"presence":       e.Presence,
		"method":         e.Method,
	}
}

// ParticipantRef implements ParticipantScoped.
func (e AttendanceEvent) ParticipantRef() string { return e.ParticipantID }

// NewAttendanceEvent creates a new AttendanceEvent of the given type.
func NewAttendanceEvent(t EventType, attendanceID, participantID, batchID, eventLinkID, presence, method string) AttendanceEvent {
	return AttendanceEvent{
		BaseEvent:     NewBaseEvent(t, attendanceID),
		ParticipantID: participantID,
		BatchID:       batchID,
		EventLinkID:   eventLinkID,
		Presence:      presence,
		Method:        method,
	}
}

// AttendanceSyncedEvent is emitted after attendance rows were generated for a batch.
type AttendanceSyncedEvent struct {
	BaseEvent
	BatchID string `json:"batch_id"`
	Created int    `json:"created"`
}

// Payload implements Event interface.
func (e AttendanceSyncedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"batch_id": e.BatchID, "created": e.Created}
}

// NewAttendanceSyncedEvent creates a new AttendanceSyncedEvent. The aggregate
// is the event link or participant that triggered the sync.
func NewAttendanceSyncedEvent(aggregateID, batchID string, created int) AttendanceSyncedEvent {
	return AttendanceSyncedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceSync, aggregateID),
		BatchID:   batchID,
		Created:   created,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Submission Events
// ═══════════════════════════════════════════════════════════════════════════

// SubmissionEvent is emitted when a submission is handed in or scored.
type SubmissionEvent struct {
	BaseEvent
	AssignmentID  string   `json:"assignment_id"`
	ParticipantID string   `json:"participant_id"`
	Late          bool     `json:"late"`
	Score         *float64 `json:"score,omitempty"`
}

// Payload implements Event interface.
func (e SubmissionEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"assignment_id":  e.AssignmentID,
		"participant_id": e.ParticipantID,
		"late":           e.Late,
	}
	if e.Score != nil {
		p["score"] = *e.Score
	}
	return p
}

// ParticipantRef implements ParticipantScoped.
func (e SubmissionEvent) ParticipantRef() string { return e.ParticipantID }

// NewSubmissionEvent creates a new SubmissionEvent of the given type.
func NewSubmissionEvent(t EventType, submissionID, assignmentID, participantID string, late bool, score *float64) SubmissionEvent {
	return SubmissionEvent{
		BaseEvent:     NewBaseEvent(t, submissionID),
		AssignmentID:  assignmentID,
		ParticipantID: participantID,
		Late:          late,
		Score:         score,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Certificate Events
// ═══════════════════════════════════════════════════════════════════════════

// CertificateIssuedEvent is emitted when a certificate is granted.
type CertificateIssuedEvent struct {
	BaseEvent
	ParticipantID string `json:"participant_id"`
	BatchID       string `json:"batch_id"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"participant_id": e.ParticipantID,
		"batch_id":       e.BatchID,
	}
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(certificateID, participantID, batchID string) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:     NewBaseEvent(EventCertificateIssued, certificateID),
		ParticipantID: participantID,
		BatchID:       batchID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
