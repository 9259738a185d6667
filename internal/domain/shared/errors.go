// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "batch", "attendance", "assignment"
	Op      string // Operation that failed, e.g., "Create", "CheckIn"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// UserMessage returns the human-readable message carried by a DomainError,
// or the plain error text for anything else.
func UserMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// Batch domain errors
var (
	ErrBatchNotFound      = NewDomainError("batch", "Find", ErrNotFound, "batch not found")
	ErrBatchNameTaken     = NewDomainError("batch", "Create", ErrAlreadyExists, "Batch name must be unique.")
	ErrJobAlreadyLinked   = NewDomainError("batch", "Create", ErrAlreadyExists, "A Job can only be linked to one OJT Batch.")
	ErrBatchDateOrder     = NewDomainError("batch", "Validate", ErrValidation, "End Date cannot be earlier than Start Date.")
	ErrPublishNotAllowed  = NewDomainError("batch", "Publish", ErrInvalidState, "You can publish only when the batch status is Recruitment.")
	ErrBatchNameRequired  = NewDomainError("batch", "Validate", ErrEmptyValue, "Batch name is required.")
	ErrBatchDatesRequired = NewDomainError("batch", "Validate", ErrEmptyValue, "Start Date and End Date are required.")
	ErrInvalidBatchState  = NewDomainError("batch", "Transition", ErrStateTransition, "invalid batch state transition")
	ErrNegativeCapacity   = NewDomainError("batch", "Validate", ErrNegativeValue, "Capacity cannot be negative.")
	ErrInvalidBatchMode   = NewDomainError("batch", "Validate", ErrInvalidInput, "invalid delivery mode")
	ErrJobNotFound        = NewDomainError("job", "Find", ErrNotFound, "job not found")
	ErrJobEditViaBatch    = NewDomainError("job", "Write", ErrForbidden, "Please edit Job Name/Description/Target via the related OJT Batch only.")
	ErrJobPublishBlocked  = NewDomainError("job", "Publish", ErrInvalidState, "You can publish only when the batch status is Recruitment.")
	ErrApplicantNotFound  = NewDomainError("applicant", "Find", ErrNotFound, "applicant not found")
	ErrStageNotFound      = NewDomainError("applicant", "FindStage", ErrNotFound, "stage not found")
	ErrPartnerNotFound    = NewDomainError("partner", "Find", ErrNotFound, "partner not found")
	ErrNoBatchForJob      = NewDomainError("applicant", "Enroll", ErrNotFound, "no OJT batch linked to the applicant's job")
	ErrApplicantNoPartner = NewDomainError("applicant", "Enroll", ErrInvalidInput, "applicant has no contact")
)

// Participant domain errors
var (
	ErrParticipantNotFound      = NewDomainError("participant", "Find", ErrNotFound, "participant not found")
	ErrParticipantAlreadyExists = NewDomainError("participant", "Create", ErrAlreadyExists, "Participant already exists in this batch.")
	ErrInvalidParticipantState  = NewDomainError("participant", "SetState", ErrInvalidInput, "invalid participant state")
)

// Agenda domain errors
var (
	ErrEventLinkNotFound  = NewDomainError("event_link", "Find", ErrNotFound, "event link not found")
	ErrEventDateOrder     = NewDomainError("event_link", "Validate", ErrValidation, "Event end must be after start.")
	ErrEventTitleRequired = NewDomainError("event_link", "Validate", ErrEmptyValue, "Event title is required.")
)

// Assignment domain errors
var (
	ErrAssignmentNotFound     = NewDomainError("assignment", "Find", ErrNotFound, "assignment not found")
	ErrMaxScoreNotPositive    = NewDomainError("assignment", "Validate", ErrValueOutOfRange, "Max Score must be greater than 0.")
	ErrNegativeWeight         = NewDomainError("assignment", "Validate", ErrNegativeValue, "Weight cannot be negative.")
	ErrAssignmentEventBatch   = NewDomainError("assignment", "Validate", ErrValidation, "Event Link must belong to the same batch.")
	ErrInvalidAssignmentState = NewDomainError("assignment", "Transition", ErrStateTransition, "invalid assignment state transition")
	ErrInvalidAssignmentType  = NewDomainError("assignment", "Validate", ErrInvalidInput, "invalid assignment type")
	ErrAssignmentClosed       = NewDomainError("submission", "Submit", ErrInvalidState, "Assignment is closed.")
	ErrSubmissionNotFound     = NewDomainError("submission", "Find", ErrNotFound, "submission not found")
	ErrSubmissionBatch        = NewDomainError("submission", "Validate", ErrValidation, "Participant must belong to the same batch as the assignment.")
	ErrAttachmentRequired     = NewDomainError("submission", "Submit", ErrValidation, "An attachment or submission URL is required.")
	ErrInvalidSubmissionState = NewDomainError("submission", "Transition", ErrStateTransition, "invalid submission state transition")
)

// Attendance domain errors
var (
	ErrAttendanceNotFound  = NewDomainError("attendance", "Find", ErrNotFound, "attendance not found")
	ErrCheckOutBeforeIn    = NewDomainError("attendance", "Validate", ErrValidation, "Check Out cannot be earlier than Check In.")
	ErrAttendanceBatch     = NewDomainError("attendance", "Validate", ErrValidation, "Participant must belong to the same batch.")
	ErrAttendanceEvent     = NewDomainError("attendance", "Validate", ErrValidation, "Event must belong to the same batch.")
	ErrNotCheckedIn        = NewDomainError("attendance", "CheckOut", ErrInvalidState, "Participant has not checked in.")
	ErrCheckInNotOpen      = NewDomainError("attendance", "CheckIn", ErrInvalidState, "Check-in is not open yet.")
	ErrCheckInClosed       = NewDomainError("attendance", "CheckIn", ErrInvalidState, "Session closed. Check-in is no longer available.")
	ErrInvalidPresence     = NewDomainError("attendance", "Validate", ErrInvalidInput, "invalid presence")
	ErrInvalidMethod       = NewDomainError("attendance", "Validate", ErrInvalidInput, "invalid check-in method")
	ErrAttendanceDuplicate = NewDomainError("attendance", "Create", ErrAlreadyExists, "Attendance already exists for this participant and event.")
)

// Certificate domain errors
var (
	ErrCertificateNotFound = NewDomainError("certificate", "Find", ErrNotFound, "certificate not found")
	ErrCertificateIssued   = NewDomainError("certificate", "Issue", ErrAlreadyExists, "Certificate already issued for this participant.")
	ErrCertificateNumber   = NewDomainError("certificate", "Issue", ErrAlreadyExists, "certificate number already used in this batch")
	ErrNotEligible         = NewDomainError("certificate", "Issue", ErrInvalidState, "Participant is not eligible for a certificate.")
	ErrBatchNotCertifiable = NewDomainError("certificate", "Issue", ErrInvalidState, "Certificates can be issued only for ongoing or finished batches.")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStateConflict checks if the error comes from a forbidden state change.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStateTransition)
}

// IsForbidden checks if the error is an authorization error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthorized checks if the caller is not authenticated.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
