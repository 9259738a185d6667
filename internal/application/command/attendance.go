package command

import (
	"context"
	"fmt"
	"time"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// Messages shown on the public check-in pages.
const (
	MsgCheckInRecorded = "Check-in recorded."
)

// AttendanceHandler handles check-in, check-out, manual edits and the
// attendance crons.
type AttendanceHandler struct {
	deps *Deps
}

// session loads the session of an attendance row. Rows without an event link
// have an open-ended session.
func (h *AttendanceHandler) session(ctx context.Context, a *attendance.Attendance) (attendance.Session, error) {
	if a.EventLinkID == "" {
		return attendance.Session{BatchID: a.BatchID}, nil
	}
	link, err := h.deps.EventLinks.GetByID(ctx, a.EventLinkID)
	if err != nil {
		return attendance.Session{}, err
	}
	return link.Session(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECK IN / CHECK OUT
// ══════════════════════════════════════════════════════════════════════════════

// CheckInCommand checks a participant in through their attendance token.
type CheckInCommand struct {
	Token  string
	Method attendance.Method
}

// Validate validates the command.
func (c CheckInCommand) Validate() error {
	if c.Token == "" {
		return shared.NewDomainError("attendance", "CheckIn", shared.ErrInvalidID, "token is required")
	}
	if !c.Method.IsValid() {
		return shared.ErrInvalidMethod
	}
	return nil
}

// CheckInResult describes the check-in outcome.
type CheckInResult struct {
	Attendance *attendance.Attendance
	Session    attendance.Session

	// AlreadyCheckedIn is true when the row was checked in before this call.
	AlreadyCheckedIn bool

	Message string

	// MeetingURL is the normalized online meeting URL, empty when the session
	// has none.
	MeetingURL string
}

// CheckIn executes CheckInCommand. The check-in window is enforced even for
// rows that are already checked in; an outside-window call returns the window
// error and leaves the row untouched.
func (h *AttendanceHandler) CheckIn(ctx context.Context, cmd CheckInCommand) (*CheckInResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var res CheckInResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.deps.Attendance.GetByToken(ctx, cmd.Token)
		if err != nil {
			return err
		}
		s, err := h.session(ctx, a)
		if err != nil {
			return err
		}
		if err := h.deps.Policy.WindowFor(s).Check(s, now); err != nil {
			return err
		}

		changed, err := a.RecordCheckIn(s, now, cmd.Method, h.deps.Policy)
		if err != nil {
			return err
		}
		if changed {
			if err := h.deps.Attendance.Update(ctx, a); err != nil {
				return err
			}
		}
		res = CheckInResult{
			Attendance:       a,
			Session:          s,
			AlreadyCheckedIn: !changed,
			Message:          MsgCheckInRecorded,
			MeetingURL:       attendance.NormalizeMeetingURL(s.MeetingURL),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.AlreadyCheckedIn {
		a := res.Attendance
		if h.deps.Recorder != nil {
			h.deps.Recorder.CheckInRecorded(string(a.Method), string(a.Presence))
		}
		h.deps.publish(ctx, shared.NewAttendanceEvent(shared.EventCheckedIn,
			a.ID, a.ParticipantID, a.BatchID, a.EventLinkID, string(a.Presence), string(a.Method)))
		h.deps.Log.Info("checked in",
			logger.AttendanceID(a.ID),
			logger.ParticipantID(a.ParticipantID),
			logger.String("method", string(a.Method)),
			logger.String("presence", string(a.Presence)),
		)
	}
	return &res, nil
}

// CheckOutCommand stamps the check-out time of an attendance row.
type CheckOutCommand struct {
	AttendanceID string
}

// CheckOut executes CheckOutCommand.
func (h *AttendanceHandler) CheckOut(ctx context.Context, cmd CheckOutCommand) (*attendance.Attendance, error) {
	if cmd.AttendanceID == "" {
		return nil, shared.NewDomainError("attendance", "CheckOut", shared.ErrInvalidID, "attendance_id is required")
	}
	now := h.deps.Clock.Now()

	var out *attendance.Attendance
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.deps.Attendance.GetByID(ctx, cmd.AttendanceID)
		if err != nil {
			return err
		}
		if err := a.RecordCheckOut(now); err != nil {
			return err
		}
		if err := h.deps.Attendance.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewAttendanceEvent(shared.EventCheckedOut,
		out.ID, out.ParticipantID, out.BatchID, out.EventLinkID, string(out.Presence), string(out.Method)))
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// ManualAttendanceCommand lets staff correct an attendance row.
type ManualAttendanceCommand struct {
	AttendanceID string
	attendance.ManualUpdate
}

// ManualAttendance executes ManualAttendanceCommand.
func (h *AttendanceHandler) ManualAttendance(ctx context.Context, cmd ManualAttendanceCommand) (*attendance.Attendance, error) {
	if cmd.AttendanceID == "" {
		return nil, shared.NewDomainError("attendance", "Update", shared.ErrInvalidID, "attendance_id is required")
	}
	now := h.deps.Clock.Now()

	var out *attendance.Attendance
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.deps.Attendance.GetByID(ctx, cmd.AttendanceID)
		if err != nil {
			return err
		}
		p, err := h.deps.Participants.GetByID(ctx, a.ParticipantID)
		if err != nil {
			return err
		}
		var sessionBatchID string
		if a.EventLinkID != "" {
			link, err := h.deps.EventLinks.GetByID(ctx, a.EventLinkID)
			if err != nil {
				return err
			}
			sessionBatchID = link.BatchID
		}
		if err := a.ValidateMembership(p.BatchID, sessionBatchID); err != nil {
			return err
		}
		if err := a.ApplyManual(cmd.ManualUpdate, now); err != nil {
			return err
		}
		if err := h.deps.Attendance.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewAttendanceEvent(shared.EventAttendanceSaved,
		out.ID, out.ParticipantID, out.BatchID, out.EventLinkID, string(out.Presence), string(out.Method)))
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CRONS
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeResult summarises a cron pass.
type FinalizeResult struct {
	Examined int
	Updated  int
}

// AutoAbsent marks rows absent when nobody checked in within the policy
// window after the session start.
func (h *AttendanceHandler) AutoAbsent(ctx context.Context) (*FinalizeResult, error) {
	now := h.deps.Clock.Now()
	cutoff := now.Add(-h.deps.Policy.AutoAbsentAfter)

	return h.finalize(ctx, "auto_absent", shared.EventAutoAbsent,
		func(ctx context.Context) ([]*attendance.Attendance, error) {
			return h.deps.Attendance.FindAutoAbsentCandidates(ctx, cutoff)
		},
		func(a *attendance.Attendance, s attendance.Session) bool {
			if !h.deps.Policy.ShouldAutoAbsent(a, s, now) {
				return false
			}
			a.MarkAbsent(now)
			return true
		},
	)
}

// AutoCheckout checks out rows still open after the session end plus buffer.
func (h *AttendanceHandler) AutoCheckout(ctx context.Context) (*FinalizeResult, error) {
	now := h.deps.Clock.Now()
	cutoff := now.Add(-h.deps.Policy.AutoCheckoutBuffer)

	return h.finalize(ctx, "auto_checkout", shared.EventCheckedOut,
		func(ctx context.Context) ([]*attendance.Attendance, error) {
			return h.deps.Attendance.FindAutoCheckoutCandidates(ctx, cutoff)
		},
		func(a *attendance.Attendance, s attendance.Session) bool {
			if !h.deps.Policy.ShouldAutoCheckout(a, s, now) {
				return false
			}
			a.AutoCheckout(s, now)
			return true
		},
	)
}

func (h *AttendanceHandler) finalize(
	ctx context.Context,
	kind string,
	eventType shared.EventType,
	candidates func(context.Context) ([]*attendance.Attendance, error),
	apply func(*attendance.Attendance, attendance.Session) bool,
) (*FinalizeResult, error) {
	start := time.Now()
	res := &FinalizeResult{}
	var updated []*attendance.Attendance

	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		rows, err := candidates(ctx)
		if err != nil {
			return fmt.Errorf("find %s candidates: %w", kind, err)
		}
		links := make(map[string]*agenda.EventLink)
		for _, a := range rows {
			res.Examined++
			if a.EventLinkID == "" {
				continue
			}
			link, ok := links[a.EventLinkID]
			if !ok {
				link, err = h.deps.EventLinks.GetByID(ctx, a.EventLinkID)
				if err != nil {
					if shared.IsNotFound(err) {
						continue
					}
					return err
				}
				links[a.EventLinkID] = link
			}
			if !apply(a, link.Session()) {
				continue
			}
			if err := h.deps.Attendance.Update(ctx, a); err != nil {
				return err
			}
			updated = append(updated, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Updated = len(updated)

	for _, a := range updated {
		h.deps.publish(ctx, shared.NewAttendanceEvent(eventType,
			a.ID, a.ParticipantID, a.BatchID, a.EventLinkID, string(a.Presence), string(a.Method)))
	}
	if h.deps.Recorder != nil && res.Updated > 0 {
		h.deps.Recorder.AttendanceFinalized(kind, res.Updated)
	}
	h.deps.Log.Info("attendance finalized",
		logger.Operation(kind),
		logger.Int("examined", res.Examined),
		logger.Int("updated", res.Updated),
		logger.Latency(time.Since(start)),
	)
	return res, nil
}
