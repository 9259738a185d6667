package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

var (
	start = time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC) // 09:00 WIB
	end   = start.Add(2 * time.Hour)
)

func session() Session {
	s, e := start, end
	return Session{ID: "e1", BatchID: "b1", Start: &s, End: &e}
}

func row() *Attendance {
	return NewAbsent("a1", "b1", "e1", "p1", start.Add(-24*time.Hour))
}

func TestCheckIn_Window(t *testing.T) {
	p := DefaultPolicy()

	t.Run("too early", func(t *testing.T) {
		a := row()
		ok, err := a.RecordCheckIn(session(), start.Add(-16*time.Minute), MethodQR, p)
		assert.False(t, ok)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrCheckInNotOpen)
		assert.Equal(t, "Check-in opens at 2026-03-02 09:00:00", shared.UserMessage(err))
		assert.Nil(t, a.CheckIn)
	})

	t.Run("opens early", func(t *testing.T) {
		a := row()
		ok, err := a.RecordCheckIn(session(), start.Add(-15*time.Minute), MethodQR, p)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, PresencePresent, a.Presence)
		assert.Equal(t, MethodQR, a.Method)
	})

	t.Run("closed after end", func(t *testing.T) {
		a := row()
		_, err := a.RecordCheckIn(session(), end.Add(time.Second), MethodOnline, p)
		assert.ErrorIs(t, err, shared.ErrCheckInClosed)
		assert.Equal(t, "Session closed. Check-in is no longer available.", shared.UserMessage(err))
	})

	t.Run("close grace extends window", func(t *testing.T) {
		a := row()
		grace := p
		grace.CloseCheckinAfterEnd = 10 * time.Minute
		ok, err := a.RecordCheckIn(session(), end.Add(5*time.Minute), MethodOnline, grace)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, PresenceLate, a.Presence)
	})

	t.Run("no schedule always open", func(t *testing.T) {
		a := row()
		ok, err := a.RecordCheckIn(Session{ID: "e1", BatchID: "b1"}, start, MethodManual, p)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, PresencePresent, a.Presence)
	})
}

func TestCheckIn_LateGrace(t *testing.T) {
	p := DefaultPolicy()

	a := row()
	_, err := a.RecordCheckIn(session(), start.Add(15*time.Minute), MethodQR, p)
	require.NoError(t, err)
	assert.Equal(t, PresencePresent, a.Presence)

	b := row()
	_, err = b.RecordCheckIn(session(), start.Add(15*time.Minute+time.Second), MethodQR, p)
	require.NoError(t, err)
	assert.Equal(t, PresenceLate, b.Presence)
}

func TestCheckIn_Idempotent(t *testing.T) {
	p := DefaultPolicy()
	a := row()

	ok, err := a.RecordCheckIn(session(), start, MethodQR, p)
	require.NoError(t, err)
	require.True(t, ok)
	first := *a.CheckIn

	ok, err = a.RecordCheckIn(session(), start.Add(30*time.Minute), MethodOnline, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, first, *a.CheckIn)
	assert.Equal(t, MethodQR, a.Method)
}

func TestCheckIn_InvalidMethod(t *testing.T) {
	a := row()
	_, err := a.RecordCheckIn(session(), start, "sms", DefaultPolicy())
	assert.ErrorIs(t, err, shared.ErrInvalidMethod)
}

func TestCheckOut(t *testing.T) {
	a := row()
	assert.ErrorIs(t, a.RecordCheckOut(end), shared.ErrNotCheckedIn)

	_, err := a.RecordCheckIn(session(), start, MethodQR, DefaultPolicy())
	require.NoError(t, err)

	assert.ErrorIs(t, a.RecordCheckOut(start.Add(-time.Minute)), shared.ErrCheckOutBeforeIn)

	require.NoError(t, a.RecordCheckOut(start.Add(90*time.Minute+30*time.Second)))
	assert.Equal(t, 90.5, a.DurationMinutes)
}

func TestDuration(t *testing.T) {
	in := start
	out := start.Add(100 * time.Second)
	assert.Equal(t, 1.67, Duration(&in, &out))
	assert.Equal(t, 0.0, Duration(&out, &in))
	assert.Equal(t, 0.0, Duration(&in, nil))
}

func TestAutoAbsent(t *testing.T) {
	p := DefaultPolicy()
	s := session()

	a := row()
	a.Presence = PresencePresent // manually created rows default to present
	assert.False(t, p.ShouldAutoAbsent(a, s, start.Add(44*time.Minute)))
	assert.True(t, p.ShouldAutoAbsent(a, s, start.Add(45*time.Minute)))

	a.MarkAbsent(start.Add(45 * time.Minute))
	assert.Equal(t, PresenceAbsent, a.Presence)
	assert.False(t, p.ShouldAutoAbsent(a, s, start.Add(2*time.Hour)), "already absent")

	checked := row()
	_, err := checked.RecordCheckIn(s, start, MethodQR, p)
	require.NoError(t, err)
	assert.False(t, p.ShouldAutoAbsent(checked, s, end))
}

func TestAutoCheckout(t *testing.T) {
	p := DefaultPolicy()
	s := session()

	a := row()
	assert.False(t, p.ShouldAutoCheckout(a, s, end.Add(time.Hour)), "not checked in")

	_, err := a.RecordCheckIn(s, start.Add(10*time.Minute), MethodQR, p)
	require.NoError(t, err)

	assert.False(t, p.ShouldAutoCheckout(a, s, end.Add(4*time.Minute)))
	require.True(t, p.ShouldAutoCheckout(a, s, end.Add(5*time.Minute)))

	a.AutoCheckout(s, end.Add(5*time.Minute))
	assert.Equal(t, end, *a.CheckOut)
	assert.Equal(t, 110.0, a.DurationMinutes)
	assert.False(t, p.ShouldAutoCheckout(a, s, end.Add(time.Hour)))
}

func TestAutoCheckout_NeverBeforeCheckIn(t *testing.T) {
	p := DefaultPolicy()
	p.CloseCheckinAfterEnd = 30 * time.Minute
	s := session()

	a := row()
	_, err := a.RecordCheckIn(s, end.Add(20*time.Minute), MethodOnline, p)
	require.NoError(t, err)

	a.AutoCheckout(s, end.Add(time.Hour))
	assert.Equal(t, *a.CheckIn, *a.CheckOut)
	assert.Equal(t, 0.0, a.DurationMinutes)
}

func TestLinks(t *testing.T) {
	a := row()
	a.QRToken = "tok"

	assert.Equal(t, "https://hr.example.com/ojt/q/tok", a.QRURL("https://hr.example.com/"))
	assert.Equal(t, "https://hr.example.com/ojt/a/tok", a.JoinURL("https://hr.example.com"))

	assert.Equal(t, "https://zoom.us/j/1", NormalizeMeetingURL(" zoom.us/j/1 "))
	assert.Equal(t, "http://meet.local/x", NormalizeMeetingURL("http://meet.local/x"))
	assert.Equal(t, "", NormalizeMeetingURL("   "))
	assert.Equal(t, "https://cdn.example.com/a.png", MakeAbsolute("https://hr.example.com", "https://cdn.example.com/a.png"))
	assert.Equal(t, "https://hr.example.com/ojt/att/tok", MakeAbsolute("https://hr.example.com/", "/ojt/att/tok"))
}

func TestURLsWithOtherSchemesPassThrough(t *testing.T) {
	for _, u := range []string{
		"zoommtg://zoom.us/join?confno=1",
		"msteams://teams.microsoft.com/l/meetup-join/1",
		"HTTPS://Meet.Google.com/abc",
	} {
		t.Run(u, func(t *testing.T) {
			assert.Equal(t, u, NormalizeMeetingURL(u))
			assert.Equal(t, u, MakeAbsolute("https://hr.example.com", u))
		})
	}
}

func TestApplyManual(t *testing.T) {
	now := start
	a := row()
	in := start
	out := start.Add(-time.Minute)

	err := a.ApplyManual(ManualUpdate{CheckIn: &in, CheckOut: &out}, now)
	assert.ErrorIs(t, err, shared.ErrCheckOutBeforeIn)
	assert.Nil(t, a.CheckIn, "row untouched on validation failure")

	out = start.Add(time.Hour)
	present := PresencePresent
	require.NoError(t, a.ApplyManual(ManualUpdate{CheckIn: &in, CheckOut: &out, Presence: &present}, now))
	assert.Equal(t, 60.0, a.DurationMinutes)
	assert.Equal(t, MethodManual, a.Method)
}

func TestValidateMembership(t *testing.T) {
	a := row()
	assert.NoError(t, a.ValidateMembership("b1", "b1"))
	assert.ErrorIs(t, a.ValidateMembership("b2", "b1"), shared.ErrAttendanceBatch)
	assert.ErrorIs(t, a.ValidateMembership("b1", "b2"), shared.ErrAttendanceEvent)
}

func TestPlanSync(t *testing.T) {
	now := start
	n := 0
	newID := func() string { n++; return string(rune('a' + n)) }

	existing := []*Attendance{
		{ID: "x", BatchID: "b1", EventLinkID: "e1", ParticipantID: "p1", Presence: PresenceAbsent, Method: MethodManual},
	}

	plan := PlanSync("b1", []string{"e1", "e2"}, []string{"p1", "p2"}, existing, newID, now)

	assert.Len(t, plan.Create, 3)
	require.Len(t, plan.Retoken, 1)
	assert.NotEmpty(t, existing[0].QRToken)
	for _, c := range plan.Create {
		assert.Equal(t, PresenceAbsent, c.Presence)
		assert.Equal(t, MethodManual, c.Method)
		assert.NotEmpty(t, c.QRToken)
	}

	again := PlanSync("b1", []string{"e1", "e2"}, []string{"p1", "p2"}, append(existing, plan.Create...), newID, now)
	assert.True(t, again.Empty())
}
