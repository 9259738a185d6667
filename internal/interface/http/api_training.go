package http

import (
	"net/http"
	"time"

	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/application/query"
	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LINKS
// ══════════════════════════════════════════════════════════════════════════════

type eventLinkRequest struct {
	ExternalEventID  string     `json:"external_event_id"`
	Title            string     `json:"title" validate:"notblank,max=200"`
	DateStart        *time.Time `json:"date_start"`
	DateEnd          *time.Time `json:"date_end"`
	InstructorID     string     `json:"instructor_id"`
	OnlineMeetingURL string     `json:"online_meeting_url" validate:"omitempty,max=2048"`
	Mandatory        bool       `json:"mandatory"`
	Weight           float64    `json:"weight" validate:"gte=0"`
	Notes            string     `json:"notes"`
}

func (req eventLinkRequest) fields() command.EventLinkFields {
	return command.EventLinkFields{
		ExternalEventID:  req.ExternalEventID,
		Title:            req.Title,
		DateStart:        req.DateStart,
		DateEnd:          req.DateEnd,
		InstructorID:     req.InstructorID,
		OnlineMeetingURL: req.OnlineMeetingURL,
		Mandatory:        req.Mandatory,
		Weight:           req.Weight,
		Notes:            req.Notes,
	}
}

type eventLinkResponse struct {
	EventLink         *EventLinkDTO `json:"event_link"`
	AttendanceCreated int           `json:"attendance_created"`
}

func toEventLinkResponse(res *command.EventLinkResult) eventLinkResponse {
	return eventLinkResponse{
		EventLink:         toEventLinkDTO(res.EventLink),
		AttendanceCreated: res.AttendanceCreated,
	}
}

// handleListEventLinks handles GET /api/v1/batches/{id}/event-links.
func (s *Server) handleListEventLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.deps.Queries.ListEventLinks(r.Context(), pathID(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]*EventLinkDTO, 0, len(links))
	for _, l := range links {
		out = append(out, toEventLinkDTO(l))
	}
	writeJSONWithMeta(w, r, http.StatusOK, out, &ResponseMeta{TotalCount: len(out)})
}

// handleCreateEventLink handles POST /api/v1/batches/{id}/event-links.
func (s *Server) handleCreateEventLink(w http.ResponseWriter, r *http.Request) {
	var req eventLinkRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Commands.Agenda.CreateEventLink(r.Context(), command.CreateEventLinkCommand{
		BatchID:         pathID(r, "id"),
		EventLinkFields: req.fields(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEventLinkResponse(res))
}

// handleUpdateEventLink handles PATCH /api/v1/event-links/{id}. The editable
// fields are replaced as a whole.
func (s *Server) handleUpdateEventLink(w http.ResponseWriter, r *http.Request) {
	var req eventLinkRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Commands.Agenda.UpdateEventLink(r.Context(), command.UpdateEventLinkCommand{
		EventLinkID:     pathID(r, "id"),
		EventLinkFields: req.fields(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEventLinkResponse(res))
}

// handleGenerateAttendance handles POST /api/v1/event-links/{id}/attendance.
func (s *Server) handleGenerateAttendance(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Commands.Agenda.GenerateAttendance(r.Context(), command.GenerateAttendanceCommand{
		EventLinkID: pathID(r, "id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEventLinkResponse(res))
}

// handleListSessionAttendance handles GET /api/v1/event-links/{id}/attendance.
func (s *Server) handleListSessionAttendance(w http.ResponseWriter, r *http.Request) {
	s.listAttendance(w, r, attendance.ListOptions{EventLinkID: pathID(r, "id")})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

type createAssignmentRequest struct {
	EventLinkID        string     `json:"event_link_id"`
	Name               string     `json:"name" validate:"notblank,max=200"`
	Description        string     `json:"description"`
	Type               string     `json:"type" validate:"omitempty,oneof=task quiz presentation"`
	Deadline           *time.Time `json:"deadline"`
	MaxScore           *float64   `json:"max_score" validate:"omitempty,gt=0"`
	Weight             float64    `json:"weight" validate:"gte=0"`
	AttachmentRequired bool       `json:"attachment_required"`
}

type assignmentStateRequest struct {
	State string `json:"state" validate:"required,oneof=draft open closed"`
}

type createSubmissionRequest struct {
	ParticipantID string   `json:"participant_id" validate:"notblank"`
	Attachments   []string `json:"attachments" validate:"omitempty,dive,notblank"`
	SubmissionURL string   `json:"submission_url" validate:"omitempty,url"`
}

type submitRequest struct {
	Attachments   []string `json:"attachments" validate:"omitempty,dive,notblank"`
	SubmissionURL *string  `json:"submission_url" validate:"omitempty,url"`
}

type scoreRequest struct {
	Score      *float64 `json:"score" validate:"required,gte=0"`
	ReviewerID string   `json:"reviewer_id"`
	Feedback   string   `json:"feedback"`
}

type submitResponse struct {
	Submission *SubmissionDTO `json:"submission"`
	Note       string         `json:"note,omitempty"`
}

type assignmentOverviewResponse struct {
	Assignment *AssignmentDTO           `json:"assignment"`
	Stats      assignment.Stats         `json:"stats"`
	Scores     []query.ParticipantScore `json:"scores"`
}

// handleCreateAssignment handles POST /api/v1/batches/{id}/assignments.
func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Commands.Assignments.CreateAssignment(r.Context(), command.CreateAssignmentCommand{
		BatchID:            pathID(r, "id"),
		EventLinkID:        req.EventLinkID,
		Name:               req.Name,
		Description:        req.Description,
		Type:               assignment.Type(req.Type),
		Deadline:           req.Deadline,
		MaxScore:           req.MaxScore,
		Weight:             req.Weight,
		AttachmentRequired: req.AttachmentRequired,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toAssignmentDTO(a))
}

// handleAssignmentOverview handles GET /api/v1/assignments/{id}.
func (s *Server) handleAssignmentOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.deps.Queries.AssignmentOverview(r.Context(), pathID(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scores := ov.Scores
	if scores == nil {
		scores = []query.ParticipantScore{}
	}
	writeJSON(w, r, http.StatusOK, assignmentOverviewResponse{
		Assignment: toAssignmentDTO(ov.Assignment),
		Stats:      ov.Stats,
		Scores:     scores,
	})
}

// handleChangeAssignmentState handles POST /api/v1/assignments/{id}/state.
func (s *Server) handleChangeAssignmentState(w http.ResponseWriter, r *http.Request) {
	var req assignmentStateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Commands.Assignments.ChangeAssignmentState(r.Context(), command.ChangeAssignmentStateCommand{
		AssignmentID: pathID(r, "id"),
		State:        assignment.State(req.State),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAssignmentDTO(a))
}

// handleCreateSubmission handles POST /api/v1/assignments/{id}/submissions.
func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.deps.Commands.Assignments.CreateSubmission(r.Context(), command.CreateSubmissionCommand{
		AssignmentID:  pathID(r, "id"),
		ParticipantID: req.ParticipantID,
		Attachments:   req.Attachments,
		SubmissionURL: req.SubmissionURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toSubmissionDTO(sub))
}

// handleSubmitSubmission handles POST /api/v1/submissions/{id}/submit.
func (s *Server) handleSubmitSubmission(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Commands.Assignments.SubmitSubmission(r.Context(), command.SubmitSubmissionCommand{
		SubmissionID:  pathID(r, "id"),
		Attachments:   req.Attachments,
		SubmissionURL: req.SubmissionURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, submitResponse{
		Submission: toSubmissionDTO(res.Submission),
		Note:       res.Note,
	})
}

// handleScoreSubmission handles POST /api/v1/submissions/{id}/score.
func (s *Server) handleScoreSubmission(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.deps.Commands.Assignments.ScoreSubmission(r.Context(), command.ScoreSubmissionCommand{
		SubmissionID: pathID(r, "id"),
		Score:        *req.Score,
		ReviewerID:   req.ReviewerID,
		Feedback:     req.Feedback,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSubmissionDTO(sub))
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

type issueCertificateRequest struct {
	Name  string `json:"name" validate:"max=200"`
	Notes string `json:"notes"`
}

type issueCertificateResponse struct {
	Certificate *CertificateDTO `json:"certificate"`
	Eligibility interface{}     `json:"eligibility"`
}

type batchCertificatesResponse struct {
	Issued      []*CertificateDTO `json:"issued"`
	Failed      []string          `json:"failed"`
	Skipped     int               `json:"skipped"`
	NotEligible int               `json:"not_eligible"`
}

// handleIssueCertificate handles POST /api/v1/participants/{id}/certificate.
// An empty body uses the default certificate name.
func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req issueCertificateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res, err := s.deps.Commands.Certificates.IssueCertificate(r.Context(), command.IssueCertificateCommand{
		ParticipantID: pathID(r, "id"),
		Name:          req.Name,
		Notes:         req.Notes,
	})
	if err != nil {
		if res != nil {
			// Not eligible: report the failed thresholds.
			status, code := statusFor(err)
			writeJSONErrorWithDetails(w, r, status, code, shared.UserMessage(err), res.Decision)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, issueCertificateResponse{
		Certificate: toCertificateDTO(res.Certificate),
		Eligibility: res.Decision,
	})
}

// handleIssueBatchCertificates handles POST /api/v1/batches/{id}/certificates.
func (s *Server) handleIssueBatchCertificates(w http.ResponseWriter, r *http.Request) {
	var req issueCertificateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res, err := s.deps.Commands.Certificates.IssueBatchCertificates(r.Context(), command.IssueBatchCertificatesCommand{
		BatchID: pathID(r, "id"),
		Name:    req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	failed := res.Failed
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, r, http.StatusOK, batchCertificatesResponse{
		Issued:      toCertificateDTOs(res.Issued),
		Failed:      failed,
		Skipped:     res.Skipped,
		NotEligible: res.NotEligible,
	})
}
