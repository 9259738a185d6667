// Package attendance implements the per-session check-in state machine:
// QR and online check-in gated by a time window, late detection, check-out,
// and the rules the scheduler applies for auto-absence and auto-checkout.
package attendance

import (
	"time"

	"github.com/google/uuid"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Presence is the attendance outcome.
type Presence string

const (
	PresencePresent Presence = "present"
	PresenceLate    Presence = "late"
	PresenceAbsent  Presence = "absent"
)

// IsValid checks that the presence is known.
func (p Presence) IsValid() bool {
	return p == PresencePresent || p == PresenceLate || p == PresenceAbsent
}

// Attended reports whether the presence counts toward the attendance rate.
func (p Presence) Attended() bool {
	return p == PresencePresent || p == PresenceLate
}

// Method is how the attendance was recorded.
type Method string

const (
	MethodQR     Method = "qr"
	MethodOnline Method = "online"
	MethodManual Method = "manual"
)

// IsValid checks that the method is known.
func (m Method) IsValid() bool {
	return m == MethodQR || m == MethodOnline || m == MethodManual
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is the scheduled slot an attendance row belongs to.
type Session struct {
	ID         string
	BatchID    string
	Title      string
	Start      *time.Time
	End        *time.Time
	MeetingURL string
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// Attendance is one participant's record for one session.
type Attendance struct {
	ID            string
	BatchID       string
	EventLinkID   string
	ParticipantID string

	CheckIn  *time.Time
	CheckOut *time.Time

	Presence Presence
	Method   Method

	// DurationMinutes is derived from CheckIn and CheckOut.
	DurationMinutes float64
	Notes           string

	// QRToken is the opaque token printed in QR codes and join links.
	QRToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewToken returns a fresh QR token.
func NewToken() string {
	return uuid.New().String()
}

// NewAbsent creates the placeholder row generated for every participant of a session.
func NewAbsent(id, batchID, eventLinkID, participantID string, now time.Time) *Attendance {
	return &Attendance{
		ID:            id,
		BatchID:       batchID,
		EventLinkID:   eventLinkID,
		ParticipantID: participantID,
		Presence:      PresenceAbsent,
		Method:        MethodManual,
		QRToken:       NewToken(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks the row invariants that do not need other aggregates.
func (a *Attendance) Validate() error {
	if !a.Presence.IsValid() {
		return shared.ErrInvalidPresence
	}
	if !a.Method.IsValid() {
		return shared.ErrInvalidMethod
	}
	if a.CheckIn != nil && a.CheckOut != nil && a.CheckOut.Before(*a.CheckIn) {
		return shared.ErrCheckOutBeforeIn
	}
	return nil
}

// ValidateMembership checks that the participant and session belong to the row's batch.
func (a *Attendance) ValidateMembership(participantBatchID, sessionBatchID string) error {
	if participantBatchID != a.BatchID {
		return shared.ErrAttendanceBatch
	}
	if a.EventLinkID != "" && sessionBatchID != a.BatchID {
		return shared.ErrAttendanceEvent
	}
	return nil
}

// Duration returns the minutes between check in and check out rounded to two
// decimals, or 0 when either side is missing or out precedes in.
func Duration(in, out *time.Time) float64 {
	if in == nil || out == nil {
		return 0
	}
	d := out.Sub(*in).Minutes()
	if d < 0 {
		return 0
	}
	return shared.Round(d, 2)
}

func (a *Attendance) refreshDuration() {
	a.DurationMinutes = Duration(a.CheckIn, a.CheckOut)
}

// IsCheckedIn reports whether a check in has been recorded.
func (a *Attendance) IsCheckedIn() bool {
	return a.CheckIn != nil
}

// EnsureToken assigns a QR token when the row has none. Returns true when changed.
func (a *Attendance) EnsureToken() bool {
	if a.QRToken != "" {
		return false
	}
	a.QRToken = NewToken()
	return true
}

// ManualUpdate applies an edit made by staff and re-validates the row.
type ManualUpdate struct {
	CheckIn  *time.Time
	CheckOut *time.Time
	Presence *Presence
	Notes    *string
}

// ApplyManual applies a manual edit. The method becomes manual when times change.
func (a *Attendance) ApplyManual(u ManualUpdate, now time.Time) error {
	next := *a
	if u.CheckIn != nil {
		t := *u.CheckIn
		next.CheckIn = &t
		next.Method = MethodManual
	}
	if u.CheckOut != nil {
		t := *u.CheckOut
		next.CheckOut = &t
	}
	if u.Presence != nil {
		next.Presence = *u.Presence
	}
	if u.Notes != nil {
		next.Notes = *u.Notes
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.refreshDuration()
	next.UpdatedAt = now
	*a = next
	return nil
}
