// Package agenda models the sessions scheduled for a batch (event links).
package agenda

import (
	"context"
	"strings"
	"time"

	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// EventLink is a scheduled session of a batch.
type EventLink struct {
	ID      string
	BatchID string

	// ExternalEventID references the calendar/event system, if any.
	ExternalEventID string
	Title           string

	DateStart *time.Time
	DateEnd   *time.Time

	InstructorID     string
	OnlineMeetingURL string
	Mandatory        bool
	Weight           float64
	Notes            string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counters are the related record counts of an event link.
type Counters struct {
	Participants int `json:"participants"`
	Attendance   int `json:"attendance"`
	Assignments  int `json:"assignments"`
}

// Validate checks the event link invariants.
func (e *EventLink) Validate() error {
	e.Title = strings.TrimSpace(e.Title)
	if e.BatchID == "" {
		return shared.NewDomainError("event_link", "Validate", shared.ErrEmptyValue, "Batch is required.")
	}
	if e.Title == "" {
		return shared.ErrEventTitleRequired
	}
	if e.DateStart != nil && e.DateEnd != nil && e.DateEnd.Before(*e.DateStart) {
		return shared.ErrEventDateOrder
	}
	if e.Weight < 0 {
		return shared.NewDomainError("event_link", "Validate", shared.ErrNegativeValue, "Weight cannot be negative.")
	}
	return nil
}

// Session returns the attendance view of the event link.
func (e *EventLink) Session() attendance.Session {
	return attendance.Session{
		ID:         e.ID,
		BatchID:    e.BatchID,
		Title:      e.Title,
		Start:      e.DateStart,
		End:        e.DateEnd,
		MeetingURL: e.OnlineMeetingURL,
	}
}

// Repository persists event links.
type Repository interface {
	Create(ctx context.Context, e *EventLink) error
	GetByID(ctx context.Context, id string) (*EventLink, error)
	Update(ctx context.Context, e *EventLink) error

	// ListByBatch returns the event links of a batch ordered by start.
	ListByBatch(ctx context.Context, batchID string) ([]*EventLink, error)

	Counters(ctx context.Context, id string) (Counters, error)
}
