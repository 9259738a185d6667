package command

import (
	"context"
	"time"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// AgendaHandler handles event link writes. Every write re-syncs attendance for
// the batch participants.
type AgendaHandler struct {
	deps *Deps
	sync *attendanceSync
}

// EventLinkFields are the editable fields of an event link.
type EventLinkFields struct {
	ExternalEventID  string
	Title            string
	DateStart        *time.Time
	DateEnd          *time.Time
	InstructorID     string
	OnlineMeetingURL string
	Mandatory        bool
	Weight           float64
	Notes            string
}

// EventLinkResult contains the saved event link and the attendance rows it generated.
type EventLinkResult struct {
	EventLink         *agenda.EventLink
	AttendanceCreated int
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE / UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// CreateEventLinkCommand schedules a session for a batch.
type CreateEventLinkCommand struct {
	BatchID string
	EventLinkFields
}

// CreateEventLink executes CreateEventLinkCommand.
func (h *AgendaHandler) CreateEventLink(ctx context.Context, cmd CreateEventLinkCommand) (*EventLinkResult, error) {
	now := h.deps.Clock.Now()
	link := &agenda.EventLink{
		ID:        h.deps.NewID(),
		BatchID:   cmd.BatchID,
		CreatedAt: now,
	}
	applyEventLinkFields(link, cmd.EventLinkFields, now)
	if err := link.Validate(); err != nil {
		return nil, err
	}

	var res EventLinkResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := h.deps.Batches.GetByID(ctx, link.BatchID); err != nil {
			return err
		}
		if err := h.deps.EventLinks.Create(ctx, link); err != nil {
			return err
		}
		n, err := h.sync.forSession(ctx, link.BatchID, link.ID)
		if err != nil {
			return err
		}
		res = EventLinkResult{EventLink: link, AttendanceCreated: n}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewEventLinkSavedEvent(res.EventLink.ID, res.EventLink.BatchID))
	h.afterSync(ctx, &res)
	return &res, nil
}

// UpdateEventLinkCommand replaces the editable fields of an event link.
type UpdateEventLinkCommand struct {
	EventLinkID string
	EventLinkFields
}

// UpdateEventLink executes UpdateEventLinkCommand.
func (h *AgendaHandler) UpdateEventLink(ctx context.Context, cmd UpdateEventLinkCommand) (*EventLinkResult, error) {
	if cmd.EventLinkID == "" {
		return nil, shared.NewDomainError("event_link", "Update", shared.ErrInvalidID, "event_link_id is required")
	}
	now := h.deps.Clock.Now()

	var res EventLinkResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		link, err := h.deps.EventLinks.GetByID(ctx, cmd.EventLinkID)
		if err != nil {
			return err
		}
		applyEventLinkFields(link, cmd.EventLinkFields, now)
		if err := link.Validate(); err != nil {
			return err
		}
		if err := h.deps.EventLinks.Update(ctx, link); err != nil {
			return err
		}
		n, err := h.sync.forSession(ctx, link.BatchID, link.ID)
		if err != nil {
			return err
		}
		res = EventLinkResult{EventLink: link, AttendanceCreated: n}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewEventLinkSavedEvent(res.EventLink.ID, res.EventLink.BatchID))
	h.afterSync(ctx, &res)
	return &res, nil
}

func applyEventLinkFields(link *agenda.EventLink, f EventLinkFields, now time.Time) {
	link.ExternalEventID = f.ExternalEventID
	link.Title = f.Title
	link.DateStart = f.DateStart
	link.DateEnd = f.DateEnd
	link.InstructorID = f.InstructorID
	link.OnlineMeetingURL = f.OnlineMeetingURL
	link.Mandatory = f.Mandatory
	link.Weight = f.Weight
	link.Notes = f.Notes
	link.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// GenerateAttendanceCommand is the explicit, idempotent attendance generator.
type GenerateAttendanceCommand struct {
	EventLinkID string
}

// GenerateAttendance executes GenerateAttendanceCommand.
func (h *AgendaHandler) GenerateAttendance(ctx context.Context, cmd GenerateAttendanceCommand) (*EventLinkResult, error) {
	if cmd.EventLinkID == "" {
		return nil, shared.NewDomainError("event_link", "Generate", shared.ErrInvalidID, "event_link_id is required")
	}

	var res EventLinkResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		link, err := h.deps.EventLinks.GetByID(ctx, cmd.EventLinkID)
		if err != nil {
			return err
		}
		n, err := h.sync.forSession(ctx, link.BatchID, link.ID)
		if err != nil {
			return err
		}
		res = EventLinkResult{EventLink: link, AttendanceCreated: n}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.afterSync(ctx, &res)
	return &res, nil
}

func (h *AgendaHandler) afterSync(ctx context.Context, res *EventLinkResult) {
	if res.AttendanceCreated == 0 {
		return
	}
	h.deps.publish(ctx, shared.NewAttendanceSyncedEvent(res.EventLink.ID, res.EventLink.BatchID, res.AttendanceCreated))
	h.deps.Log.Info("attendance generated",
		logger.EventLinkID(res.EventLink.ID),
		logger.BatchID(res.EventLink.BatchID),
		logger.Int("created", res.AttendanceCreated),
	)
}
