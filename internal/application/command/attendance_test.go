package command

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// Session runs 03:00-05:00 UTC: check-in opens 02:45, late after 03:15,
// auto-absent from 03:45, auto-checkout from 05:05.
var (
	sessionStart = t0.Add(time.Hour)
	sessionEnd   = t0.Add(3 * time.Hour)
)

type attendanceScene struct {
	*fixture
	link *agenda.EventLink
	ayu  *participant.Participant
	budi *participant.Participant
}

func newAttendanceScene(t *testing.T) *attendanceScene {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	s := &attendanceScene{fixture: f}
	s.ayu = f.enroll(b, "ayu", "Ayu")
	s.budi = f.enroll(b, "budi", "Budi")
	s.link = f.session(b, "Kickoff", sessionStart, sessionEnd)
	f.events.reset()
	return s
}

func (s *attendanceScene) token(p *participant.Participant) string {
	return s.row(p.ID, s.link.ID).QRToken
}

func TestCreateEventLink_GeneratesRowsForParticipants(t *testing.T) {
	s := newAttendanceScene(t)

	rows, err := s.repos.Attendance.List(s.ctx, attendance.ListOptions{EventLinkID: s.link.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	res, err := s.h.Agenda.GenerateAttendance(s.ctx, GenerateAttendanceCommand{EventLinkID: s.link.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AttendanceCreated)
	assert.Empty(t, s.events.types())
}

func TestUpdateEventLink(t *testing.T) {
	s := newAttendanceScene(t)

	start, end := sessionStart.Add(time.Hour), sessionEnd.Add(time.Hour)
	res, err := s.h.Agenda.UpdateEventLink(s.ctx, UpdateEventLinkCommand{
		EventLinkID:     s.link.ID,
		EventLinkFields: EventLinkFields{Title: "  Kickoff (moved) ", DateStart: &start, DateEnd: &end, Weight: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "Kickoff (moved)", res.EventLink.Title)
	assert.Equal(t, 0, res.AttendanceCreated)
	assert.Equal(t, []shared.EventType{shared.EventEventLinkSaved}, s.events.types())

	_, err = s.h.Agenda.UpdateEventLink(s.ctx, UpdateEventLinkCommand{
		EventLinkID:     s.link.ID,
		EventLinkFields: EventLinkFields{Title: " "},
	})
	assert.ErrorIs(t, err, shared.ErrEventTitleRequired)

	_, err = s.h.Agenda.UpdateEventLink(s.ctx, UpdateEventLinkCommand{
		EventLinkID:     s.link.ID,
		EventLinkFields: EventLinkFields{Title: "Kickoff", DateStart: &end, DateEnd: &start},
	})
	assert.ErrorIs(t, err, shared.ErrEventDateOrder)

	_, err = s.h.Agenda.CreateEventLink(s.ctx, CreateEventLinkCommand{BatchID: "missing", EventLinkFields: EventLinkFields{Title: "x"}})
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)
}

func TestCheckIn_Window(t *testing.T) {
	s := newAttendanceScene(t)
	tok := s.token(s.ayu)

	_, err := s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: tok, Method: attendance.MethodQR})
	assert.ErrorIs(t, err, shared.ErrCheckInNotOpen)
	assert.True(t, strings.HasPrefix(shared.UserMessage(err), "Check-in opens at"))

	s.clock.Set(sessionEnd.Add(time.Minute))
	_, err = s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: tok, Method: attendance.MethodQR})
	assert.ErrorIs(t, err, shared.ErrCheckInClosed)

	assert.Nil(t, s.row(s.ayu.ID, s.link.ID).CheckIn)
	assert.Empty(t, s.events.types())
}

func TestCheckIn_PresentThenIdempotent(t *testing.T) {
	s := newAttendanceScene(t)
	tok := s.token(s.ayu)
	s.clock.Set(sessionStart.Add(10 * time.Minute))

	res, err := s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: tok, Method: attendance.MethodQR})
	require.NoError(t, err)
	assert.False(t, res.AlreadyCheckedIn)
	assert.Equal(t, MsgCheckInRecorded, res.Message)
	assert.Equal(t, attendance.PresencePresent, res.Attendance.Presence)
	assert.Equal(t, attendance.MethodQR, res.Attendance.Method)
	assert.Equal(t, "https://meet.example.com/ojt", res.MeetingURL)

	s.clock.Set(sessionStart.Add(40 * time.Minute))
	again, err := s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: tok, Method: attendance.MethodOnline})
	require.NoError(t, err)
	assert.True(t, again.AlreadyCheckedIn)

	row := s.row(s.ayu.ID, s.link.ID)
	require.NotNil(t, row.CheckIn)
	assert.True(t, row.CheckIn.Equal(sessionStart.Add(10*time.Minute)))
	assert.Equal(t, attendance.MethodQR, row.Method)

	assert.Equal(t, []shared.EventType{shared.EventCheckedIn}, s.events.types())
	assert.Equal(t, 1, s.recorder.checkIns["qr/present"])
}

func TestCheckIn_LateOnline(t *testing.T) {
	s := newAttendanceScene(t)
	s.clock.Set(sessionStart.Add(20 * time.Minute))

	res, err := s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: s.token(s.budi), Method: attendance.MethodOnline})
	require.NoError(t, err)
	assert.Equal(t, attendance.PresenceLate, res.Attendance.Presence)
	assert.Equal(t, 1, s.recorder.checkIns["online/late"])
}

func TestCheckIn_UnknownToken(t *testing.T) {
	s := newAttendanceScene(t)

	_, err := s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: "nope", Method: attendance.MethodQR})
	assert.ErrorIs(t, err, shared.ErrAttendanceNotFound)

	_, err = s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: "nope", Method: "carrier-pigeon"})
	assert.ErrorIs(t, err, shared.ErrInvalidMethod)
}

func TestCheckOut(t *testing.T) {
	s := newAttendanceScene(t)
	row := s.row(s.ayu.ID, s.link.ID)

	_, err := s.h.Attendance.CheckOut(s.ctx, CheckOutCommand{AttendanceID: row.ID})
	assert.ErrorIs(t, err, shared.ErrNotCheckedIn)

	s.clock.Set(sessionStart)
	_, err = s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: row.QRToken, Method: attendance.MethodQR})
	require.NoError(t, err)

	s.clock.Set(sessionStart.Add(90 * time.Minute))
	out, err := s.h.Attendance.CheckOut(s.ctx, CheckOutCommand{AttendanceID: row.ID})
	require.NoError(t, err)
	assert.Equal(t, 90.0, out.DurationMinutes)
}

func TestManualAttendance(t *testing.T) {
	s := newAttendanceScene(t)
	row := s.row(s.ayu.ID, s.link.ID)

	in, out := sessionStart, sessionStart.Add(-time.Minute)
	_, err := s.h.Attendance.ManualAttendance(s.ctx, ManualAttendanceCommand{
		AttendanceID: row.ID,
		ManualUpdate: attendance.ManualUpdate{CheckIn: &in, CheckOut: &out},
	})
	assert.ErrorIs(t, err, shared.ErrCheckOutBeforeIn)

	out = sessionStart.Add(45 * time.Minute)
	present := attendance.PresencePresent
	note := "signed paper sheet"
	got, err := s.h.Attendance.ManualAttendance(s.ctx, ManualAttendanceCommand{
		AttendanceID: row.ID,
		ManualUpdate: attendance.ManualUpdate{CheckIn: &in, CheckOut: &out, Presence: &present, Notes: &note},
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.MethodManual, got.Method)
	assert.Equal(t, 45.0, got.DurationMinutes)
	assert.Equal(t, []shared.EventType{shared.EventAttendanceSaved}, s.events.types())
}

func TestAutoAbsent(t *testing.T) {
	s := newAttendanceScene(t)

	// Budi was marked present by hand but never checked in.
	present := attendance.PresencePresent
	budiRow := s.row(s.budi.ID, s.link.ID)
	_, err := s.h.Attendance.ManualAttendance(s.ctx, ManualAttendanceCommand{
		AttendanceID: budiRow.ID,
		ManualUpdate: attendance.ManualUpdate{Presence: &present},
	})
	require.NoError(t, err)

	s.clock.Set(sessionStart.Add(5 * time.Minute))
	_, err = s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: s.token(s.ayu), Method: attendance.MethodQR})
	require.NoError(t, err)

	s.clock.Set(sessionStart.Add(44 * time.Minute))
	res, err := s.h.Attendance.AutoAbsent(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)

	s.events.reset()
	s.clock.Set(sessionStart.Add(45 * time.Minute))
	res, err = s.h.Attendance.AutoAbsent(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	got := s.row(s.budi.ID, s.link.ID)
	assert.Equal(t, attendance.PresenceAbsent, got.Presence)
	assert.Equal(t, "Auto-absent: no check-in.", got.Notes)
	assert.Equal(t, attendance.PresencePresent, s.row(s.ayu.ID, s.link.ID).Presence)

	assert.Equal(t, []shared.EventType{shared.EventAutoAbsent}, s.events.types())
	assert.Equal(t, 1, s.recorder.finalized["auto_absent"])

	res, err = s.h.Attendance.AutoAbsent(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
}

func TestAutoCheckout(t *testing.T) {
	s := newAttendanceScene(t)
	s.clock.Set(sessionStart.Add(10 * time.Minute))
	_, err := s.h.Attendance.CheckIn(s.ctx, CheckInCommand{Token: s.token(s.ayu), Method: attendance.MethodQR})
	require.NoError(t, err)

	s.clock.Set(sessionEnd.Add(4 * time.Minute))
	res, err := s.h.Attendance.AutoCheckout(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)

	s.clock.Set(sessionEnd.Add(5 * time.Minute))
	res, err = s.h.Attendance.AutoCheckout(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	row := s.row(s.ayu.ID, s.link.ID)
	require.NotNil(t, row.CheckOut)
	assert.True(t, row.CheckOut.Equal(sessionEnd))
	assert.Equal(t, 110.0, row.DurationMinutes)
	assert.Equal(t, 1, s.recorder.finalized["auto_checkout"])
	assert.Nil(t, s.row(s.budi.ID, s.link.ID).CheckOut)
}
