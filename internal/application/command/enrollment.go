package command

import (
	"context"
	"fmt"

	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE SYNC
// ══════════════════════════════════════════════════════════════════════════════

// attendanceSync keeps one attendance row per (session, participant) of a batch.
type attendanceSync struct {
	deps *Deps
}

// forSession ensures rows for every participant of the session's batch.
func (s *attendanceSync) forSession(ctx context.Context, batchID, eventLinkID string) (int, error) {
	participants, err := s.deps.Participants.ListByBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	existing, err := s.deps.Attendance.List(ctx, attendance.ListOptions{EventLinkID: eventLinkID})
	if err != nil {
		return 0, err
	}
	return s.apply(ctx, batchID, []string{eventLinkID}, ids, existing)
}

// forParticipant ensures rows for every session of the participant's batch.
func (s *attendanceSync) forParticipant(ctx context.Context, p *participant.Participant) (int, error) {
	links, err := s.deps.EventLinks.ListByBatch(ctx, p.BatchID)
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	existing, err := s.deps.Attendance.List(ctx, attendance.ListOptions{ParticipantID: p.ID})
	if err != nil {
		return 0, err
	}
	return s.apply(ctx, p.BatchID, ids, []string{p.ID}, existing)
}

func (s *attendanceSync) apply(ctx context.Context, batchID string, sessionIDs, participantIDs []string, existing []*attendance.Attendance) (int, error) {
	plan := attendance.PlanSync(batchID, sessionIDs, participantIDs, existing, s.deps.NewID, s.deps.Clock.Now())
	if plan.Empty() {
		return 0, nil
	}
	for _, a := range plan.Retoken {
		if err := s.deps.Attendance.Update(ctx, a); err != nil {
			return 0, fmt.Errorf("assign qr token: %w", err)
		}
	}
	created := 0
	if len(plan.Create) > 0 {
		n, err := s.deps.Attendance.CreateMany(ctx, plan.Create)
		if err != nil {
			return 0, fmt.Errorf("create attendance: %w", err)
		}
		created = n
	}
	return created, nil
}

// EnrollmentHandler handles participant enrollment and participant-level edits.
type EnrollmentHandler struct {
	deps *Deps
	sync *attendanceSync
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL PARTICIPANT
// ══════════════════════════════════════════════════════════════════════════════

// EnrollParticipantCommand adds a contact to a batch.
type EnrollParticipantCommand struct {
	BatchID     string
	PartnerID   string
	ApplicantID string
	State       participant.State
	Notes       string
}

// Validate validates the command.
func (c EnrollParticipantCommand) Validate() error {
	if c.BatchID == "" || c.PartnerID == "" {
		return shared.NewDomainError("participant", "Create", shared.ErrEmptyValue, "batch_id and partner_id are required")
	}
	if c.State != "" && !c.State.IsValid() {
		return shared.ErrInvalidParticipantState
	}
	return nil
}

// EnrollParticipantResult contains the enrolled participant.
type EnrollParticipantResult struct {
	Participant *participant.Participant

	// AttendanceCreated is the number of attendance rows generated for the
	// batch's existing sessions.
	AttendanceCreated int
}

// EnrollParticipant executes EnrollParticipantCommand.
func (h *EnrollmentHandler) EnrollParticipant(ctx context.Context, cmd EnrollParticipantCommand) (*EnrollParticipantResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var res *EnrollParticipantResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := h.deps.Batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		res, err = h.enroll(ctx, b, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.afterEnroll(ctx, res)
	return res, nil
}

// enroll creates the participant and its attendance rows. Caller runs it in a tx.
func (h *EnrollmentHandler) enroll(ctx context.Context, b *batch.Batch, cmd EnrollParticipantCommand) (*EnrollParticipantResult, error) {
	partner, err := h.deps.Partners.GetByID(ctx, cmd.PartnerID)
	if err != nil {
		return nil, err
	}

	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID:          h.deps.NewID(),
		BatchID:     b.ID,
		PartnerID:   partner.ID,
		ApplicantID: cmd.ApplicantID,
		PartnerName: partner.Name,
		BatchName:   b.Name,
		State:       cmd.State,
	}, h.deps.Clock.Now())
	if err != nil {
		return nil, err
	}
	p.Notes = cmd.Notes

	if err := h.deps.Participants.Create(ctx, p); err != nil {
		return nil, err
	}
	created, err := h.sync.forParticipant(ctx, p)
	if err != nil {
		return nil, err
	}
	return &EnrollParticipantResult{Participant: p, AttendanceCreated: created}, nil
}

func (h *EnrollmentHandler) afterEnroll(ctx context.Context, res *EnrollParticipantResult) {
	p := res.Participant
	events := []shared.Event{shared.NewParticipantEnrolledEvent(p.ID, p.BatchID, p.PartnerID, p.ApplicantID)}
	if res.AttendanceCreated > 0 {
		events = append(events, shared.NewAttendanceSyncedEvent(p.ID, p.BatchID, res.AttendanceCreated))
	}
	h.deps.publish(ctx, events...)

	h.deps.Log.Info("participant enrolled",
		logger.ParticipantID(p.ID),
		logger.BatchID(p.BatchID),
		logger.Int("attendance_created", res.AttendanceCreated),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE PARTICIPANT BATCH
// ══════════════════════════════════════════════════════════════════════════════

// ChangeParticipantBatchCommand moves a participant into another batch. Rows of
// the old batch are kept as history.
type ChangeParticipantBatchCommand struct {
	ParticipantID string
	BatchID       string
}

// Validate validates the command.
func (c ChangeParticipantBatchCommand) Validate() error {
	if c.ParticipantID == "" || c.BatchID == "" {
		return shared.NewDomainError("participant", "ChangeBatch", shared.ErrEmptyValue, "participant_id and batch_id are required")
	}
	return nil
}

// ChangeParticipantBatchResult describes the move.
type ChangeParticipantBatchResult struct {
	Participant       *participant.Participant
	FromBatchID       string
	AttendanceCreated int
}

// ChangeParticipantBatch executes ChangeParticipantBatchCommand. Moving to the
// current batch is a no-op.
func (h *EnrollmentHandler) ChangeParticipantBatch(ctx context.Context, cmd ChangeParticipantBatchCommand) (*ChangeParticipantBatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var res ChangeParticipantBatchResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := h.deps.Participants.GetByID(ctx, cmd.ParticipantID)
		if err != nil {
			return err
		}
		res = ChangeParticipantBatchResult{Participant: p, FromBatchID: p.BatchID}
		if p.BatchID == cmd.BatchID {
			return nil
		}

		b, err := h.deps.Batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		other, err := h.deps.Participants.FindByBatchAndPartner(ctx, b.ID, p.PartnerID)
		switch {
		case err == nil && other.ID != p.ID:
			return shared.ErrParticipantAlreadyExists
		case err != nil && !shared.IsNotFound(err):
			return err
		}
		partner, err := h.deps.Partners.GetByID(ctx, p.PartnerID)
		if err != nil {
			return err
		}

		p.MoveToBatch(b.ID, partner.Name, b.Name, now)
		if err := h.deps.Participants.Update(ctx, p); err != nil {
			return err
		}
		res.AttendanceCreated, err = h.sync.forParticipant(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	p := res.Participant
	if res.FromBatchID == p.BatchID {
		return &res, nil
	}
	h.deps.publish(ctx, shared.NewParticipantBatchChangedEvent(p.ID, res.FromBatchID, p.BatchID, res.AttendanceCreated))
	h.deps.Log.Info("participant moved",
		logger.ParticipantID(p.ID),
		logger.String("from_batch_id", res.FromBatchID),
		logger.BatchID(p.BatchID),
		logger.Int("attendance_created", res.AttendanceCreated),
	)
	return &res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MOVE APPLICANT STAGE
// ══════════════════════════════════════════════════════════════════════════════

// MoveApplicantStageCommand moves an applicant to a hiring stage. Reaching a
// contract-signed stage enrolls the applicant into the batch of their job.
type MoveApplicantStageCommand struct {
	ApplicantID string
	StageID     string
}

// Validate validates the command.
func (c MoveApplicantStageCommand) Validate() error {
	if c.ApplicantID == "" || c.StageID == "" {
		return shared.NewDomainError("applicant", "MoveStage", shared.ErrEmptyValue, "applicant_id and stage_id are required")
	}
	return nil
}

// MoveApplicantStageResult describes the outcome of a stage move.
type MoveApplicantStageResult struct {
	Applicant *recruitment.Applicant

	// ContractSigned is true when the new stage is a contract-signed stage.
	ContractSigned bool

	// Participant is set when the applicant is (or already was) enrolled.
	Participant *participant.Participant

	// Enrolled is true when a new participant was created by this move.
	Enrolled bool
}

// MoveApplicantStage executes MoveApplicantStageCommand. Applicants without a
// job, a contact or a linked batch only change stage.
func (h *EnrollmentHandler) MoveApplicantStage(ctx context.Context, cmd MoveApplicantStageCommand) (*MoveApplicantStageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var (
		res      MoveApplicantStageResult
		enrolled *EnrollParticipantResult
	)
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := h.deps.Applicants.GetByID(ctx, cmd.ApplicantID)
		if err != nil {
			return err
		}
		stage, err := h.deps.Applicants.GetStage(ctx, cmd.StageID)
		if err != nil {
			return err
		}
		app.StageID = stage.ID
		app.UpdatedAt = now
		if err := h.deps.Applicants.Update(ctx, app); err != nil {
			return err
		}
		res.Applicant = app
		res.ContractSigned = recruitment.IsContractSignedStage(stage.Name)

		if !res.ContractSigned || app.JobID == "" || app.PartnerID == "" {
			return nil
		}
		batches, err := h.deps.Batches.FindByJobID(ctx, app.JobID)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			return nil
		}
		b := batches[0]

		existing, err := h.deps.Participants.FindByBatchAndPartner(ctx, b.ID, app.PartnerID)
		switch {
		case err == nil:
			if existing.ApplicantID == "" {
				existing.ApplicantID = app.ID
				existing.UpdatedAt = now
				if err := h.deps.Participants.Update(ctx, existing); err != nil {
					return err
				}
			}
			res.Participant = existing
			return nil
		case !shared.IsNotFound(err):
			return err
		}

		enrolled, err = h.enroll(ctx, b, EnrollParticipantCommand{
			BatchID:     b.ID,
			PartnerID:   app.PartnerID,
			ApplicantID: app.ID,
		})
		if err != nil {
			return err
		}
		res.Participant = enrolled.Participant
		res.Enrolled = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if enrolled != nil {
		h.afterEnroll(ctx, enrolled)
	}
	return &res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANT STATE AND MENTOR SCORE
// ══════════════════════════════════════════════════════════════════════════════

// SetParticipantStateCommand is one of the quick state setters.
type SetParticipantStateCommand struct {
	ParticipantID string
	State         participant.State
}

// SetParticipantState executes SetParticipantStateCommand.
func (h *EnrollmentHandler) SetParticipantState(ctx context.Context, cmd SetParticipantStateCommand) (*participant.Participant, error) {
	if cmd.ParticipantID == "" {
		return nil, shared.NewDomainError("participant", "SetState", shared.ErrInvalidID, "participant_id is required")
	}
	now := h.deps.Clock.Now()

	var out *participant.Participant
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := h.deps.Participants.GetByID(ctx, cmd.ParticipantID)
		if err != nil {
			return err
		}
		if err := p.SetState(cmd.State, now); err != nil {
			return err
		}
		if err := h.deps.Participants.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetMentorScoreCommand records the mentor's evaluation of a participant.
type SetMentorScoreCommand struct {
	ParticipantID string
	Score         float64
}

// SetMentorScore executes SetMentorScoreCommand. The final score is refreshed
// by the metrics handler subscribed to the emitted event.
func (h *EnrollmentHandler) SetMentorScore(ctx context.Context, cmd SetMentorScoreCommand) (*participant.Participant, error) {
	if cmd.ParticipantID == "" {
		return nil, shared.NewDomainError("participant", "SetMentorScore", shared.ErrInvalidID, "participant_id is required")
	}
	now := h.deps.Clock.Now()

	var out *participant.Participant
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := h.deps.Participants.GetByID(ctx, cmd.ParticipantID)
		if err != nil {
			return err
		}
		if err := p.SetMentorScore(cmd.Score, now); err != nil {
			return err
		}
		if err := h.deps.Participants.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewMentorScoredEvent(out.ID, out.MentorScore))
	return out, nil
}
