package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/domain/attendance"
)

func TestQRCheckIn_RecordsAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	p := env.enroll(b, "p-ayu", "Ayu")
	s := env.session(b, "Kickoff", t0.Add(10*time.Minute), "")
	token := env.row(p.ID, s.ID).QRToken

	rec := env.get(attendance.CheckInPath(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), command.MsgCheckInRecorded)
	assert.Contains(t, rec.Body.String(), "Kickoff")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	a := env.row(p.ID, s.ID)
	require.NotNil(t, a.CheckIn)
	assert.Equal(t, attendance.PresencePresent, a.Presence)
	assert.Equal(t, attendance.MethodQR, a.Method)

	rec = env.get(attendance.CheckInPath(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, a.CheckIn, env.row(p.ID, s.ID).CheckIn, "second scan keeps the first check-in")
}

func TestQRCheckIn_OutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	p := env.enroll(b, "p-ayu", "Ayu")
	s := env.session(b, "Tomorrow", t0.Add(24*time.Hour), "")
	token := env.row(p.ID, s.ID).QRToken

	rec := env.get(attendance.CheckInPath(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Check-in opens at")
	assert.Nil(t, env.row(p.ID, s.ID).CheckIn)
}

func TestQRCheckIn_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(attendance.CheckInPath("missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestJoinCheckIn_RedirectsToMeeting(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	p := env.enroll(b, "p-ayu", "Ayu")
	s := env.session(b, "Online", t0.Add(-30*time.Minute), "meet.example.com/ojt")
	token := env.row(p.ID, s.ID).QRToken

	rec := env.get(attendance.JoinPath(token))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.Contains(t, body, "https://meet.example.com/ojt")

	a := env.row(p.ID, s.ID)
	assert.Equal(t, attendance.MethodOnline, a.Method)
	assert.Equal(t, attendance.PresenceLate, a.Presence)
}

func TestJoinCheckIn_WithoutMeetingURL(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	p := env.enroll(b, "p-ayu", "Ayu")
	s := env.session(b, "Room 4", t0, "")
	token := env.row(p.ID, s.ID).QRToken

	rec := env.get(attendance.JoinPath(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `http-equiv="refresh"`)
	assert.Contains(t, rec.Body.String(), "meeting link")
}

func TestQRImage_Engines(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	p := env.enroll(b, "p-ayu", "Ayu")
	s := env.session(b, "Kickoff", t0, "")
	token := env.row(p.ID, s.ID).QRToken

	rec := env.get("/ojt/qrimg/" + token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")
	assert.Contains(t, rec.Body.String(), "https://ojt.example.com/ojt/a/"+token)

	rec = env.get("/ojt/qrimg/" + token + "?engine=server&mode=checkin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	require.NoError(t, env.features.DisableFeature(config.FeatureQRServerEngine))
	rec = env.get("/ojt/qrimg/" + token + "?engine=server")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", "falls back to the page")
}

func TestQRPNG_DownloadPage(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	p := env.enroll(b, "p-ayu", "Ayu")
	s := env.session(b, "Kickoff", t0, "")
	token := env.row(p.ID, s.ID).QRToken

	rec := env.get("/ojt/qrpng/" + token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `download="ojt-checkin.png"`)
	assert.Contains(t, body, "https://ojt.example.com/ojt/q/"+token)

	rec = env.get("/ojt/qrpng/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicPages_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/ojt/q/whatever")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}
