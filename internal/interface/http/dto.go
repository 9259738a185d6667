package http

import (
	"time"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// BatchDTO is the API view of a batch.
type BatchDTO struct {
	ID                  string    `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	JobID               string    `json:"job_id"`
	DepartmentID        string    `json:"department_id,omitempty"`
	MentorIDs           []string  `json:"mentor_ids"`
	Capacity            int       `json:"capacity"`
	Description         string    `json:"description,omitempty"`
	StartDate           string    `json:"start_date"`
	EndDate             string    `json:"end_date"`
	Mode                string    `json:"mode"`
	AttendanceThreshold float64   `json:"attendance_threshold"`
	ScoreThreshold      float64   `json:"score_threshold"`
	IsPublished         bool      `json:"is_published"`
	State               string    `json:"state"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toBatchDTO(b *batch.Batch) *BatchDTO {
	if b == nil {
		return nil
	}
	mentors := b.MentorIDs
	if mentors == nil {
		mentors = []string{}
	}
	return &BatchDTO{
		ID:                  b.ID,
		Code:                b.Code,
		Name:                b.Name,
		JobID:               b.JobID,
		DepartmentID:        b.DepartmentID,
		MentorIDs:           mentors,
		Capacity:            b.Capacity,
		Description:         b.Description,
		StartDate:           formatDate(b.StartDate),
		EndDate:             formatDate(b.EndDate),
		Mode:                string(b.Mode),
		AttendanceThreshold: b.AttendanceThreshold,
		ScoreThreshold:      b.ScoreThreshold,
		IsPublished:         b.IsPublished,
		State:               string(b.State),
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func toBatchDTOs(in []*batch.Batch) []*BatchDTO {
	out := make([]*BatchDTO, 0, len(in))
	for _, b := range in {
		out = append(out, toBatchDTO(b))
	}
	return out
}

// JobDTO is the API view of a job opening.
type JobDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	NoOfRecruitment int    `json:"no_of_recruitment"`
	IsPublished     bool   `json:"is_published"`
}

func toJobDTO(j *recruitment.Job) *JobDTO {
	if j == nil {
		return nil
	}
	return &JobDTO{
		ID:              j.ID,
		Name:            j.Name,
		Description:     j.Description,
		NoOfRecruitment: j.NoOfRecruitment,
		IsPublished:     j.IsPublished,
	}
}

// ApplicantDTO is the API view of an applicant.
type ApplicantDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	JobID     string `json:"job_id"`
	PartnerID string `json:"partner_id"`
	StageID   string `json:"stage_id"`
}

func toApplicantDTO(a *recruitment.Applicant) *ApplicantDTO {
	if a == nil {
		return nil
	}
	return &ApplicantDTO{ID: a.ID, Name: a.Name, JobID: a.JobID, PartnerID: a.PartnerID, StageID: a.StageID}
}

// ParticipantDTO is the API view of a participant.
type ParticipantDTO struct {
	ID             string    `json:"id"`
	BatchID        string    `json:"batch_id"`
	PartnerID      string    `json:"partner_id"`
	ApplicantID    string    `json:"applicant_id,omitempty"`
	Name           string    `json:"name"`
	AttendanceRate float64   `json:"attendance_rate"`
	AverageScore   float64   `json:"average_score"`
	FinalScore     float64   `json:"final_score"`
	MentorScore    float64   `json:"mentor_score"`
	State          string    `json:"state"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toParticipantDTO(p *participant.Participant) *ParticipantDTO {
	if p == nil {
		return nil
	}
	return &ParticipantDTO{
		ID:             p.ID,
		BatchID:        p.BatchID,
		PartnerID:      p.PartnerID,
		ApplicantID:    p.ApplicantID,
		Name:           p.Name,
		AttendanceRate: p.AttendanceRate,
		AverageScore:   p.AverageScore,
		FinalScore:     p.FinalScore,
		MentorScore:    p.MentorScore,
		State:          string(p.State),
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toParticipantDTOs(in []*participant.Participant) []*ParticipantDTO {
	out := make([]*ParticipantDTO, 0, len(in))
	for _, p := range in {
		out = append(out, toParticipantDTO(p))
	}
	return out
}

// EventLinkDTO is the API view of a session.
type EventLinkDTO struct {
	ID               string     `json:"id"`
	BatchID          string     `json:"batch_id"`
	ExternalEventID  string     `json:"external_event_id,omitempty"`
	Title            string     `json:"title"`
	DateStart        *time.Time `json:"date_start,omitempty"`
	DateEnd          *time.Time `json:"date_end,omitempty"`
	InstructorID     string     `json:"instructor_id,omitempty"`
	OnlineMeetingURL string     `json:"online_meeting_url,omitempty"`
	Mandatory        bool       `json:"mandatory"`
	Weight           float64    `json:"weight"`
	Notes            string     `json:"notes,omitempty"`
}

func toEventLinkDTO(e *agenda.EventLink) *EventLinkDTO {
	if e == nil {
		return nil
	}
	return &EventLinkDTO{
		ID:               e.ID,
		BatchID:          e.BatchID,
		ExternalEventID:  e.ExternalEventID,
		Title:            e.Title,
		DateStart:        e.DateStart,
		DateEnd:          e.DateEnd,
		InstructorID:     e.InstructorID,
		OnlineMeetingURL: e.OnlineMeetingURL,
		Mandatory:        e.Mandatory,
		Weight:           e.Weight,
		Notes:            e.Notes,
	}
}

// AssignmentDTO is the API view of an assignment.
type AssignmentDTO struct {
	ID                 string     `json:"id"`
	BatchID            string     `json:"batch_id"`
	EventLinkID        string     `json:"event_link_id,omitempty"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Type               string     `json:"type"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	MaxScore           float64    `json:"max_score"`
	Weight             float64    `json:"weight"`
	AttachmentRequired bool       `json:"attachment_required"`
	State              string     `json:"state"`
}

func toAssignmentDTO(a *assignment.Assignment) *AssignmentDTO {
	if a == nil {
		return nil
	}
	return &AssignmentDTO{
		ID:                 a.ID,
		BatchID:            a.BatchID,
		EventLinkID:        a.EventLinkID,
		Name:               a.Name,
		Description:        a.Description,
		Type:               string(a.Type),
		Deadline:           a.Deadline,
		MaxScore:           a.MaxScore,
		Weight:             a.Weight,
		AttachmentRequired: a.AttachmentRequired,
		State:              string(a.State),
	}
}

// SubmissionDTO is the API view of a submission.
type SubmissionDTO struct {
	ID            string     `json:"id"`
	AssignmentID  string     `json:"assignment_id"`
	ParticipantID string     `json:"participant_id"`
	Name          string     `json:"name"`
	SubmittedOn   *time.Time `json:"submitted_on,omitempty"`
	Attachments   []string   `json:"attachments"`
	SubmissionURL string     `json:"submission_url,omitempty"`
	Score         *float64   `json:"score"`
	ReviewerID    string     `json:"reviewer_id,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
	Late          bool       `json:"late"`
	State         string     `json:"state"`
}

func toSubmissionDTO(s *assignment.Submission) *SubmissionDTO {
	if s == nil {
		return nil
	}
	attachments := s.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return &SubmissionDTO{
		ID:            s.ID,
		AssignmentID:  s.AssignmentID,
		ParticipantID: s.ParticipantID,
		Name:          s.Name,
		SubmittedOn:   s.SubmittedOn,
		Attachments:   attachments,
		SubmissionURL: s.SubmissionURL,
		Score:         s.Score,
		ReviewerID:    s.ReviewerID,
		Feedback:      s.Feedback,
		Late:          s.Late,
		State:         string(s.State),
	}
}

// AttendanceDTO is the API view of an attendance row. The QR and join links
// are absolute.
type AttendanceDTO struct {
	ID              string     `json:"id"`
	BatchID         string     `json:"batch_id"`
	EventLinkID     string     `json:"event_link_id"`
	ParticipantID   string     `json:"participant_id"`
	CheckIn         *time.Time `json:"check_in,omitempty"`
	CheckOut        *time.Time `json:"check_out,omitempty"`
	Presence        string     `json:"presence"`
	Method          string     `json:"method,omitempty"`
	DurationMinutes float64    `json:"duration_minutes"`
	Notes           string     `json:"notes,omitempty"`
	QRURL           string     `json:"qr_url,omitempty"`
	JoinURL         string     `json:"join_url,omitempty"`
}

func toAttendanceDTO(a *attendance.Attendance, baseURL string) *AttendanceDTO {
	if a == nil {
		return nil
	}
	return &AttendanceDTO{
		ID:              a.ID,
		BatchID:         a.BatchID,
		EventLinkID:     a.EventLinkID,
		ParticipantID:   a.ParticipantID,
		CheckIn:         a.CheckIn,
		CheckOut:        a.CheckOut,
		Presence:        string(a.Presence),
		Method:          string(a.Method),
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
		QRURL:           a.QRURL(baseURL),
		JoinURL:         a.JoinURL(baseURL),
	}
}

// CertificateDTO is the API view of a certificate.
type CertificateDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Number        string    `json:"number"`
	ParticipantID string    `json:"participant_id"`
	BatchID       string    `json:"batch_id"`
	DateIssued    string    `json:"date_issued"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toCertificateDTO(c *certificate.Certificate) *CertificateDTO {
	if c == nil {
		return nil
	}
	return &CertificateDTO{
		ID:            c.ID,
		Name:          c.Name,
		Number:        c.Number,
		ParticipantID: c.ParticipantID,
		BatchID:       c.BatchID,
		DateIssued:    formatDate(timeutil.DateOf(c.DateIssued)),
		Notes:         c.Notes,
		CreatedAt:     c.CreatedAt,
	}
}

func toCertificateDTOs(in []*certificate.Certificate) []*CertificateDTO {
	out := make([]*CertificateDTO, 0, len(in))
	for _, c := range in {
		out = append(out, toCertificateDTO(c))
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeutil.FormatDate)
}
