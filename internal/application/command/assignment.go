package command

import (
	"context"
	"time"

	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// AssignmentHandler handles assignments and their submissions.
type AssignmentHandler struct {
	deps *Deps
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// CreateAssignmentCommand creates a draft assignment.
type CreateAssignmentCommand struct {
	BatchID            string
	EventLinkID        string
	Name               string
	Description        string
	Type               assignment.Type
	Deadline           *time.Time
	MaxScore           *float64
	Weight             float64
	AttachmentRequired bool
}

// CreateAssignment executes CreateAssignmentCommand.
func (h *AssignmentHandler) CreateAssignment(ctx context.Context, cmd CreateAssignmentCommand) (*assignment.Assignment, error) {
	var out *assignment.Assignment
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := h.deps.Batches.GetByID(ctx, cmd.BatchID); err != nil {
			return err
		}
		var linkBatchID string
		if cmd.EventLinkID != "" {
			link, err := h.deps.EventLinks.GetByID(ctx, cmd.EventLinkID)
			if err != nil {
				return err
			}
			linkBatchID = link.BatchID
		}

		a, err := assignment.NewAssignment(assignment.NewAssignmentParams{
			ID:                 h.deps.NewID(),
			BatchID:            cmd.BatchID,
			EventLinkID:        cmd.EventLinkID,
			EventLinkBatchID:   linkBatchID,
			Name:               cmd.Name,
			Description:        cmd.Description,
			Type:               cmd.Type,
			Deadline:           cmd.Deadline,
			MaxScore:           cmd.MaxScore,
			Weight:             cmd.Weight,
			AttachmentRequired: cmd.AttachmentRequired,
		}, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		if err := h.deps.Assignments.Create(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewAssignmentCreatedEvent(out.ID, out.BatchID))
	return out, nil
}

// ChangeAssignmentStateCommand moves an assignment through draft/open/closed.
type ChangeAssignmentStateCommand struct {
	AssignmentID string
	State        assignment.State
}

// ChangeAssignmentState executes ChangeAssignmentStateCommand.
func (h *AssignmentHandler) ChangeAssignmentState(ctx context.Context, cmd ChangeAssignmentStateCommand) (*assignment.Assignment, error) {
	if cmd.AssignmentID == "" {
		return nil, shared.NewDomainError("assignment", "Transition", shared.ErrInvalidID, "assignment_id is required")
	}
	now := h.deps.Clock.Now()

	var out *assignment.Assignment
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.deps.Assignments.GetByID(ctx, cmd.AssignmentID)
		if err != nil {
			return err
		}
		if err := a.Transition(cmd.State, now); err != nil {
			return err
		}
		if err := h.deps.Assignments.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// CreateSubmissionCommand creates a draft submission for a participant.
type CreateSubmissionCommand struct {
	AssignmentID  string
	ParticipantID string
	Attachments   []string
	SubmissionURL string
}

// CreateSubmission executes CreateSubmissionCommand.
func (h *AssignmentHandler) CreateSubmission(ctx context.Context, cmd CreateSubmissionCommand) (*assignment.Submission, error) {
	var out *assignment.Submission
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.deps.Assignments.GetByID(ctx, cmd.AssignmentID)
		if err != nil {
			return err
		}
		p, err := h.deps.Participants.GetByID(ctx, cmd.ParticipantID)
		if err != nil {
			return err
		}
		s, err := assignment.NewSubmission(assignment.NewSubmissionParams{
			ID:                 h.deps.NewID(),
			Assignment:         a,
			ParticipantID:      p.ID,
			ParticipantBatchID: p.BatchID,
			ParticipantName:    p.Name,
			Attachments:        cmd.Attachments,
			SubmissionURL:      cmd.SubmissionURL,
		}, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		if err := h.deps.Submissions.Create(ctx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitSubmissionCommand hands a submission in. Attachments and URL, when
// given, replace the stored ones first.
type SubmitSubmissionCommand struct {
	SubmissionID  string
	Attachments   []string
	SubmissionURL *string
}

// SubmitSubmissionResult contains the submitted record and its audit note.
type SubmitSubmissionResult struct {
	Submission *assignment.Submission
	Note       string
}

// SubmitSubmission executes SubmitSubmissionCommand.
func (h *AssignmentHandler) SubmitSubmission(ctx context.Context, cmd SubmitSubmissionCommand) (*SubmitSubmissionResult, error) {
	if cmd.SubmissionID == "" {
		return nil, shared.NewDomainError("submission", "Submit", shared.ErrInvalidID, "submission_id is required")
	}
	now := h.deps.Clock.Now()

	var res SubmitSubmissionResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		s, err := h.deps.Submissions.GetByID(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}
		a, err := h.deps.Assignments.GetByID(ctx, s.AssignmentID)
		if err != nil {
			return err
		}
		if cmd.Attachments != nil {
			s.Attachments = cmd.Attachments
		}
		if cmd.SubmissionURL != nil {
			s.SubmissionURL = *cmd.SubmissionURL
		}
		note, err := s.Submit(a, now)
		if err != nil {
			return err
		}
		if err := h.deps.Submissions.Update(ctx, s); err != nil {
			return err
		}
		res = SubmitSubmissionResult{Submission: s, Note: note}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := res.Submission
	h.deps.publish(ctx, shared.NewSubmissionEvent(shared.EventSubmissionSubmitted, s.ID, s.AssignmentID, s.ParticipantID, s.Late, s.Score))
	h.deps.Log.Info(res.Note,
		logger.String("submission_id", s.ID),
		logger.ParticipantID(s.ParticipantID),
		logger.Bool("late", s.Late),
	)
	return &res, nil
}

// ScoreSubmissionCommand records a reviewer's score.
type ScoreSubmissionCommand struct {
	SubmissionID string
	Score        float64
	ReviewerID   string
	Feedback     string
}

// ScoreSubmission executes ScoreSubmissionCommand.
func (h *AssignmentHandler) ScoreSubmission(ctx context.Context, cmd ScoreSubmissionCommand) (*assignment.Submission, error) {
	if cmd.SubmissionID == "" {
		return nil, shared.NewDomainError("submission", "Score", shared.ErrInvalidID, "submission_id is required")
	}
	now := h.deps.Clock.Now()

	var out *assignment.Submission
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		s, err := h.deps.Submissions.GetByID(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}
		a, err := h.deps.Assignments.GetByID(ctx, s.AssignmentID)
		if err != nil {
			return err
		}
		if err := s.ScoreWith(a, cmd.Score, cmd.ReviewerID, cmd.Feedback, now); err != nil {
			return err
		}
		if err := h.deps.Submissions.Update(ctx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewSubmissionEvent(shared.EventSubmissionScored, out.ID, out.AssignmentID, out.ParticipantID, out.Late, out.Score))
	return out, nil
}
