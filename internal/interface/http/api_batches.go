package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/application/query"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCHES
// ══════════════════════════════════════════════════════════════════════════════

type createBatchRequest struct {
	Name                string   `json:"name" validate:"notblank,max=200"`
	JobID               string   `json:"job_id"`
	DepartmentID        string   `json:"department_id"`
	MentorIDs           []string `json:"mentor_ids" validate:"omitempty,dive,notblank"`
	Capacity            *int     `json:"capacity" validate:"omitempty,gte=0"`
	Description         *string  `json:"description"`
	StartDate           string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Mode                string   `json:"mode" validate:"omitempty,oneof=online offline hybrid"`
	AttendanceThreshold *float64 `json:"attendance_threshold" validate:"omitempty,gte=0,lte=100"`
	ScoreThreshold      *float64 `json:"score_threshold" validate:"omitempty,gte=0,lte=100"`
}

type updateBatchRequest struct {
	Name                *string  `json:"name" validate:"omitempty,notblank,max=200"`
	DepartmentID        *string  `json:"department_id"`
	MentorIDs           []string `json:"mentor_ids" validate:"omitempty,dive,notblank"`
	Capacity            *int     `json:"capacity" validate:"omitempty,gte=0"`
	Description         *string  `json:"description"`
	StartDate           *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate             *string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Mode                *string  `json:"mode" validate:"omitempty,oneof=online offline hybrid"`
	AttendanceThreshold *float64 `json:"attendance_threshold" validate:"omitempty,gte=0,lte=100"`
	ScoreThreshold      *float64 `json:"score_threshold" validate:"omitempty,gte=0,lte=100"`
}

type batchStateRequest struct {
	State string `json:"state" validate:"required,oneof=draft recruitment ongoing done cancel"`
}

type publishRequest struct {
	Published bool `json:"published"`
}

type batchOverviewResponse struct {
	Batch    *BatchDTO      `json:"batch"`
	Counters batch.Counters `json:"counters"`
	Progress float64        `json:"progress"`
}

type createBatchResponse struct {
	Batch *BatchDTO `json:"batch"`
	Job   *JobDTO   `json:"job,omitempty"`
}

// parseDate parses a YYYY-MM-DD request field.
func parseDate(field, value string) (time.Time, error) {
	t, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, field)
	}
	return t, nil
}

func parseDatePtr(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// handleListBatches handles GET /api/v1/batches?state=&search=&page=&page_size=.
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	pg := shared.NewPagination(getQueryParamInt(r, "page", 1), getQueryParamInt(r, "page_size", shared.DefaultPageSize))
	state := batch.State(getQueryParamLower(r, "state", ""))
	if state != "" && !state.IsValid() {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Unknown batch state.")
		return
	}

	items, err := s.deps.Queries.ListBatches(r.Context(), query.ListBatchesQuery{
		State:      state,
		Search:     r.URL.Query().Get("search"),
		Pagination: pg,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, toBatchDTOs(items), &ResponseMeta{
		Page:     pg.Page,
		PageSize: pg.PageSize,
		HasMore:  len(items) == pg.Limit(),
	})
}

// handleCreateBatch handles POST /api/v1/batches.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Batches.CreateBatch(r.Context(), command.CreateBatchCommand{
		Name:                req.Name,
		JobID:               req.JobID,
		DepartmentID:        req.DepartmentID,
		MentorIDs:           req.MentorIDs,
		Capacity:            req.Capacity,
		Description:         req.Description,
		StartDate:           start,
		EndDate:             end,
		Mode:                batch.Mode(req.Mode),
		AttendanceThreshold: req.AttendanceThreshold,
		ScoreThreshold:      req.ScoreThreshold,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, createBatchResponse{
		Batch: toBatchDTO(res.Batch),
		Job:   toJobDTO(res.Job),
	})
}

// handleGetBatch handles GET /api/v1/batches/{id}.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	ov, err := s.deps.Queries.GetBatchOverview(r.Context(), pathID(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, batchOverviewResponse{
		Batch:    toBatchDTO(ov.Batch),
		Counters: ov.Counters,
		Progress: ov.Progress,
	})
}

// handleUpdateBatch handles PATCH /api/v1/batches/{id}.
func (s *Server) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req updateBatchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseDatePtr("start_date", req.StartDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseDatePtr("end_date", req.EndDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var mode *batch.Mode
	if req.Mode != nil {
		m := batch.Mode(*req.Mode)
		mode = &m
	}

	b, err := s.deps.Commands.Batches.UpdateBatch(r.Context(), command.UpdateBatchCommand{
		BatchID:             pathID(r, "id"),
		Name:                req.Name,
		DepartmentID:        req.DepartmentID,
		MentorIDs:           req.MentorIDs,
		Capacity:            req.Capacity,
		Description:         req.Description,
		StartDate:           start,
		EndDate:             end,
		Mode:                mode,
		AttendanceThreshold: req.AttendanceThreshold,
		ScoreThreshold:      req.ScoreThreshold,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBatchDTO(b))
}

// handleChangeBatchState handles POST /api/v1/batches/{id}/state.
func (s *Server) handleChangeBatchState(w http.ResponseWriter, r *http.Request) {
	var req batchStateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.deps.Commands.Batches.ChangeBatchState(r.Context(), command.ChangeBatchStateCommand{
		BatchID: pathID(r, "id"),
		State:   batch.State(req.State),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBatchDTO(b))
}

// handlePublishBatch handles POST /api/v1/batches/{id}/publish.
func (s *Server) handlePublishBatch(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.deps.Commands.Batches.PublishBatch(r.Context(), command.PublishBatchCommand{
		BatchID:   pathID(r, "id"),
		Published: req.Published,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBatchDTO(b))
}

// ─────────────────────────────────────────────────────────────────────────────
// Recruitment
// ─────────────────────────────────────────────────────────────────────────────

type updateJobRequest struct {
	Name            *string `json:"name" validate:"omitempty,notblank"`
	Description     *string `json:"description"`
	NoOfRecruitment *int    `json:"no_of_recruitment" validate:"omitempty,gte=0"`
	IsPublished     *bool   `json:"is_published"`
}

type moveStageRequest struct {
	StageID string `json:"stage_id" validate:"notblank"`
}

type moveStageResponse struct {
	Applicant      *ApplicantDTO   `json:"applicant"`
	ContractSigned bool            `json:"contract_signed"`
	Participant    *ParticipantDTO `json:"participant,omitempty"`
	Enrolled       bool            `json:"enrolled"`
}

// handleUpdateJob handles PATCH /api/v1/jobs/{id}.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var req updateJobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.deps.Commands.Batches.UpdateJob(r.Context(), command.UpdateJobCommand{
		JobID: pathID(r, "id"),
		Change: recruitment.JobChange{
			Name:            req.Name,
			Description:     req.Description,
			NoOfRecruitment: req.NoOfRecruitment,
			IsPublished:     req.IsPublished,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toJobDTO(job))
}

// handleMoveApplicantStage handles POST /api/v1/applicants/{id}/stage.
func (s *Server) handleMoveApplicantStage(w http.ResponseWriter, r *http.Request) {
	var req moveStageRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Commands.Enrollment.MoveApplicantStage(r.Context(), command.MoveApplicantStageCommand{
		ApplicantID: pathID(r, "id"),
		StageID:     req.StageID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, moveStageResponse{
		Applicant:      toApplicantDTO(res.Applicant),
		ContractSigned: res.ContractSigned,
		Participant:    toParticipantDTO(res.Participant),
		Enrolled:       res.Enrolled,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANTS
// ══════════════════════════════════════════════════════════════════════════════

type enrollRequest struct {
	PartnerID   string `json:"partner_id" validate:"notblank"`
	ApplicantID string `json:"applicant_id"`
	State       string `json:"state" validate:"omitempty,oneof=draft active completed failed left"`
	Notes       string `json:"notes"`
}

type enrollResponse struct {
	Participant       *ParticipantDTO `json:"participant"`
	AttendanceCreated int             `json:"attendance_created"`
}

type participantStateRequest struct {
	State string `json:"state" validate:"required,oneof=draft active completed failed left"`
}

type participantBatchRequest struct {
	BatchID string `json:"batch_id" validate:"notblank"`
}

type participantBatchResponse struct {
	Participant       *ParticipantDTO `json:"participant"`
	FromBatchID       string          `json:"from_batch_id"`
	AttendanceCreated int             `json:"attendance_created"`
}

type mentorScoreRequest struct {
	Score *float64 `json:"score" validate:"required,gte=0,lte=100"`
}

type participantResponse struct {
	Participant  *ParticipantDTO   `json:"participant"`
	Eligibility  interface{}       `json:"eligibility"`
	Certificates []*CertificateDTO `json:"certificates"`
}

type recomputeResponse struct {
	ParticipantID string              `json:"participant_id"`
	Metrics       participant.Metrics `json:"metrics"`
	Changed       bool                `json:"changed"`
}

// handleListParticipants handles GET /api/v1/batches/{id}/participants.
func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Queries.ListParticipants(r.Context(), pathID(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, toParticipantDTOs(items), &ResponseMeta{TotalCount: len(items)})
}

// handleEnrollParticipant handles POST /api/v1/batches/{id}/participants.
func (s *Server) handleEnrollParticipant(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Commands.Enrollment.EnrollParticipant(r.Context(), command.EnrollParticipantCommand{
		BatchID:     pathID(r, "id"),
		PartnerID:   req.PartnerID,
		ApplicantID: req.ApplicantID,
		State:       participant.State(req.State),
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, enrollResponse{
		Participant:       toParticipantDTO(res.Participant),
		AttendanceCreated: res.AttendanceCreated,
	})
}

// handleGetParticipant handles GET /api/v1/participants/{id}.
func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Queries.GetParticipant(r.Context(), pathID(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, participantResponse{
		Participant:  toParticipantDTO(v.Participant),
		Eligibility:  v.Eligibility,
		Certificates: toCertificateDTOs(v.Certificates),
	})
}

// handleSetParticipantState handles POST /api/v1/participants/{id}/state.
func (s *Server) handleSetParticipantState(w http.ResponseWriter, r *http.Request) {
	var req participantStateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.deps.Commands.Enrollment.SetParticipantState(r.Context(), command.SetParticipantStateCommand{
		ParticipantID: pathID(r, "id"),
		State:         participant.State(req.State),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toParticipantDTO(p))
}

// handleChangeParticipantBatch handles POST /api/v1/participants/{id}/batch.
func (s *Server) handleChangeParticipantBatch(w http.ResponseWriter, r *http.Request) {
	var req participantBatchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Commands.Enrollment.ChangeParticipantBatch(r.Context(), command.ChangeParticipantBatchCommand{
		ParticipantID: pathID(r, "id"),
		BatchID:       req.BatchID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, participantBatchResponse{
		Participant:       toParticipantDTO(res.Participant),
		FromBatchID:       res.FromBatchID,
		AttendanceCreated: res.AttendanceCreated,
	})
}

// handleSetMentorScore handles POST /api/v1/participants/{id}/mentor-score.
func (s *Server) handleSetMentorScore(w http.ResponseWriter, r *http.Request) {
	var req mentorScoreRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.deps.Commands.Enrollment.SetMentorScore(r.Context(), command.SetMentorScoreCommand{
		ParticipantID: pathID(r, "id"),
		Score:         *req.Score,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toParticipantDTO(p))
}

// handleRecomputeMetrics handles POST /api/v1/participants/{id}/recompute.
func (s *Server) handleRecomputeMetrics(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Commands.Metrics.RecomputeMetrics(r.Context(), command.RecomputeMetricsCommand{
		ParticipantID: pathID(r, "id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, recomputeResponse{
		ParticipantID: res.ParticipantID,
		Metrics:       res.Metrics,
		Changed:       res.Changed,
	})
}
