package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// Policy holds the time rules of the check-in window and the crons.
type Policy struct {
	// LateGrace is how long after the session start a check in still counts as present.
	LateGrace time.Duration

	// AutoAbsentAfter marks rows without check in as absent this long after start.
	AutoAbsentAfter time.Duration

	// AutoCheckoutBuffer checks participants out this long after the session end.
	AutoCheckoutBuffer time.Duration

	// EarlyCheckinOpen opens check in this long before start.
	EarlyCheckinOpen time.Duration

	// CloseCheckinAfterEnd keeps check in open this long after the session end.
	CloseCheckinAfterEnd time.Duration
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		LateGrace:            15 * time.Minute,
		AutoAbsentAfter:      45 * time.Minute,
		AutoCheckoutBuffer:   5 * time.Minute,
		EarlyCheckinOpen:     15 * time.Minute,
		CloseCheckinAfterEnd: 0,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECK-IN WINDOW
// ══════════════════════════════════════════════════════════════════════════════

// Window is the open interval during which check in is accepted.
// A nil bound means the window is open on that side.
type Window struct {
	OpensAt  *time.Time
	ClosesAt *time.Time
}

// WindowFor computes the check-in window of a session.
func (p Policy) WindowFor(s Session) Window {
	var w Window
	if s.Start != nil {
		t := s.Start.Add(-p.EarlyCheckinOpen)
		w.OpensAt = &t
	}
	if s.End != nil {
		t := s.End.Add(p.CloseCheckinAfterEnd)
		w.ClosesAt = &t
	}
	return w
}

// Check returns nil when now is inside the window, otherwise an error whose
// message is suitable for the attendee.
func (w Window) Check(s Session, now time.Time) error {
	if w.OpensAt != nil && now.Before(*w.OpensAt) {
		return shared.WrapError("attendance", "CheckIn", shared.ErrInvalidState,
			fmt.Sprintf("Check-in opens at %s", timeutil.FormatDateTimeStr(*s.Start)), shared.ErrCheckInNotOpen)
	}
	if w.ClosesAt != nil && now.After(*w.ClosesAt) {
		return shared.ErrCheckInClosed
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// PresenceAt classifies a check in made at t.
func (p Policy) PresenceAt(s Session, t time.Time) Presence {
	if s.Start == nil {
		return PresencePresent
	}
	if t.After(s.Start.Add(p.LateGrace)) {
		return PresenceLate
	}
	return PresencePresent
}

// RecordCheckIn records a check in at now using method. Returns false when the row
// was already checked in; the row is left untouched in that case.
func (a *Attendance) RecordCheckIn(s Session, now time.Time, method Method, p Policy) (bool, error) {
	if !method.IsValid() {
		return false, shared.ErrInvalidMethod
	}
	if a.IsCheckedIn() {
		return false, nil
	}
	if err := p.WindowFor(s).Check(s, now); err != nil {
		return false, err
	}
	t := now
	a.CheckIn = &t
	a.Method = method
	a.Presence = p.PresenceAt(s, now)
	a.refreshDuration()
	a.UpdatedAt = now
	return true, nil
}

// RecordCheckOut records a check out at now.
func (a *Attendance) RecordCheckOut(now time.Time) error {
	if !a.IsCheckedIn() {
		return shared.ErrNotCheckedIn
	}
	if now.Before(*a.CheckIn) {
		return shared.ErrCheckOutBeforeIn
	}
	t := now
	a.CheckOut = &t
	a.refreshDuration()
	a.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON RULES
// ══════════════════════════════════════════════════════════════════════════════

// ShouldAutoAbsent reports whether the row must be finalised as absent:
// nobody checked in and the session started at least AutoAbsentAfter ago.
func (p Policy) ShouldAutoAbsent(a *Attendance, s Session, now time.Time) bool {
	if a.IsCheckedIn() || a.Presence == PresenceAbsent || s.Start == nil {
		return false
	}
	return !now.Before(s.Start.Add(p.AutoAbsentAfter))
}

// MarkAbsent finalises a row without check in as absent.
func (a *Attendance) MarkAbsent(now time.Time) {
	a.Presence = PresenceAbsent
	if a.Notes == "" {
		a.Notes = "Auto-absent: no check-in."
	}
	a.UpdatedAt = now
}

// ShouldAutoCheckout reports whether a checked-in row without check out has
// passed the session end plus AutoCheckoutBuffer.
func (p Policy) ShouldAutoCheckout(a *Attendance, s Session, now time.Time) bool {
	if !a.IsCheckedIn() || a.CheckOut != nil || s.End == nil {
		return false
	}
	return !now.Before(s.End.Add(p.AutoCheckoutBuffer))
}

// AutoCheckout stamps the check out at the session end, never before the check in.
func (a *Attendance) AutoCheckout(s Session, now time.Time) {
	out := timeutil.MaxTime(*s.End, *a.CheckIn)
	a.CheckOut = &out
	a.refreshDuration()
	a.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// LINKS
// ══════════════════════════════════════════════════════════════════════════════

// CheckInPath is the public QR check-in path of a token.
func CheckInPath(token string) string { return "/ojt/q/" + token }

// JoinPath is the public online join path of a token.
func JoinPath(token string) string { return "/ojt/a/" + token }

// QRURL is the absolute check-in URL printed in QR codes.
func (a *Attendance) QRURL(baseURL string) string {
	if a.QRToken == "" {
		return ""
	}
	return MakeAbsolute(baseURL, CheckInPath(a.QRToken))
}

// JoinURL is the absolute online join URL.
func (a *Attendance) JoinURL(baseURL string) string {
	if a.QRToken == "" {
		return ""
	}
	return MakeAbsolute(baseURL, JoinPath(a.QRToken))
}

// hasScheme reports whether u already names a scheme, e.g. zoommtg://.
func hasScheme(u string) bool {
	return strings.Contains(u, "://")
}

// MakeAbsolute joins a relative path onto base. URLs with a scheme pass through.
func MakeAbsolute(base, u string) string {
	if u == "" {
		return ""
	}
	if hasScheme(u) {
		return u
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(u, "/")
}

// NormalizeMeetingURL adds an https scheme to bare meeting links.
func NormalizeMeetingURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if hasScheme(u) {
		return u
	}
	return "https://" + u
}
