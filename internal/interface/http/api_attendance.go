package http

import (
	"context"
	"net/http"
	"time"

	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

type apiCheckInRequest struct {
	Token  string `json:"token" validate:"notblank"`
	Method string `json:"method" validate:"omitempty,oneof=qr online manual"`
}

type apiCheckInResponse struct {
	Attendance       *AttendanceDTO `json:"attendance"`
	AlreadyCheckedIn bool           `json:"already_checked_in"`
	Message          string         `json:"message"`
	MeetingURL       string         `json:"meeting_url,omitempty"`
}

type manualAttendanceRequest struct {
	CheckIn  *time.Time `json:"check_in"`
	CheckOut *time.Time `json:"check_out"`
	Presence *string    `json:"presence" validate:"omitempty,oneof=present late absent"`
	Notes    *string    `json:"notes"`
}

type finalizeResponse struct {
	Examined int `json:"examined"`
	Updated  int `json:"updated"`
}

// handleListAttendance handles GET /api/v1/attendance?batch_id=&event_link_id=&participant_id=.
func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := attendance.ListOptions{
		BatchID:       q.Get("batch_id"),
		EventLinkID:   q.Get("event_link_id"),
		ParticipantID: q.Get("participant_id"),
	}
	if opts == (attendance.ListOptions{}) {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request",
			"One of batch_id, event_link_id or participant_id is required.")
		return
	}
	s.listAttendance(w, r, opts)
}

func (s *Server) listAttendance(w http.ResponseWriter, r *http.Request, opts attendance.ListOptions) {
	rows, err := s.deps.Queries.ListAttendance(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]*AttendanceDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAttendanceDTO(a, s.config.BaseURL))
	}
	writeJSONWithMeta(w, r, http.StatusOK, out, &ResponseMeta{TotalCount: len(out)})
}

// handleAPICheckIn handles POST /api/v1/attendance/check-in for kiosk and
// scanner clients. The method defaults to qr.
func (s *Server) handleAPICheckIn(w http.ResponseWriter, r *http.Request) {
	var req apiCheckInRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	method := attendance.Method(req.Method)
	if method == "" {
		method = attendance.MethodQR
	}
	res, err := s.deps.Commands.Attendance.CheckIn(r.Context(), command.CheckInCommand{
		Token:  req.Token,
		Method: method,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiCheckInResponse{
		Attendance:       toAttendanceDTO(res.Attendance, s.config.BaseURL),
		AlreadyCheckedIn: res.AlreadyCheckedIn,
		Message:          res.Message,
		MeetingURL:       res.MeetingURL,
	})
}

// handleCheckOut handles POST /api/v1/attendance/{id}/check-out.
func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Commands.Attendance.CheckOut(r.Context(), command.CheckOutCommand{
		AttendanceID: pathID(r, "id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAttendanceDTO(a, s.config.BaseURL))
}

// handleManualAttendance handles PATCH /api/v1/attendance/{id}.
func (s *Server) handleManualAttendance(w http.ResponseWriter, r *http.Request) {
	var req manualAttendanceRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var presence *attendance.Presence
	if req.Presence != nil {
		p := attendance.Presence(*req.Presence)
		presence = &p
	}
	a, err := s.deps.Commands.Attendance.ManualAttendance(r.Context(), command.ManualAttendanceCommand{
		AttendanceID: pathID(r, "id"),
		ManualUpdate: attendance.ManualUpdate{
			CheckIn:  req.CheckIn,
			CheckOut: req.CheckOut,
			Presence: presence,
			Notes:    req.Notes,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAttendanceDTO(a, s.config.BaseURL))
}

// handleAutoAbsent handles POST /api/v1/attendance/auto-absent.
func (s *Server) handleAutoAbsent(w http.ResponseWriter, r *http.Request) {
	s.finalize(w, r, s.deps.Commands.Attendance.AutoAbsent)
}

// handleAutoCheckout handles POST /api/v1/attendance/auto-checkout.
func (s *Server) handleAutoCheckout(w http.ResponseWriter, r *http.Request) {
	s.finalize(w, r, s.deps.Commands.Attendance.AutoCheckout)
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request, run func(ctx context.Context) (*command.FinalizeResult, error)) {
	res, err := run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, finalizeResponse{Examined: res.Examined, Updated: res.Updated})
}
