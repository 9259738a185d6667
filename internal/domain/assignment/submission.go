package assignment

import (
	"fmt"
	"time"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

// SubmissionState is the submission workflow state.
type SubmissionState string

const (
	SubmissionDraft     SubmissionState = "draft"
	SubmissionSubmitted SubmissionState = "submitted"
	SubmissionScored    SubmissionState = "scored"
)

// Submission is a participant's deliverable for an assignment.
type Submission struct {
	ID            string
	AssignmentID  string
	ParticipantID string

	// Name is "<participant> — <assignment>".
	Name string

	SubmittedOn   *time.Time
	Attachments   []string
	SubmissionURL string

	Score      *float64
	ReviewerID string
	Feedback   string

	// Late is derived from SubmittedOn and the assignment deadline.
	Late bool

	State SubmissionState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubmissionParams holds the input for NewSubmission.
type NewSubmissionParams struct {
	ID                 string
	Assignment         *Assignment
	ParticipantID      string
	ParticipantBatchID string
	ParticipantName    string
	Attachments        []string
	SubmissionURL      string
}

// NewSubmission creates a draft submission.
func NewSubmission(p NewSubmissionParams, now time.Time) (*Submission, error) {
	if p.Assignment == nil || p.ParticipantID == "" {
		return nil, shared.NewDomainError("submission", "Create", shared.ErrEmptyValue, "assignment and participant are required")
	}
	if p.ParticipantBatchID != p.Assignment.BatchID {
		return nil, shared.ErrSubmissionBatch
	}
	return &Submission{
		ID:            p.ID,
		AssignmentID:  p.Assignment.ID,
		ParticipantID: p.ParticipantID,
		Name:          joinName(p.ParticipantName, p.Assignment.Name),
		Attachments:   p.Attachments,
		SubmissionURL: p.SubmissionURL,
		State:         SubmissionDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func joinName(participant, assignment string) string {
	if participant != "" && assignment != "" {
		return participant + " — " + assignment
	}
	if participant != "" {
		return participant
	}
	return assignment
}

// IsLate reports whether submittedOn is after the deadline.
func IsLate(submittedOn, deadline *time.Time) bool {
	return submittedOn != nil && deadline != nil && submittedOn.After(*deadline)
}

// Submit hands the submission in. The submission time is stamped on first
// submit and kept on re-submission. Returns the chatter note for the record.
func (s *Submission) Submit(a *Assignment, now time.Time) (string, error) {
	if a.State == StateClosed {
		return "", shared.ErrAssignmentClosed
	}
	if s.State == SubmissionScored {
		return "", shared.ErrInvalidSubmissionState
	}
	if a.AttachmentRequired && len(s.Attachments) == 0 && s.SubmissionURL == "" {
		return "", shared.ErrAttachmentRequired
	}
	if s.SubmittedOn == nil {
		t := now
		s.SubmittedOn = &t
	}
	s.State = SubmissionSubmitted
	s.Late = IsLate(s.SubmittedOn, a.Deadline)
	s.UpdatedAt = now

	status := "on time"
	if s.Late {
		status = "late"
	}
	return fmt.Sprintf("Submission by %s (%s).", s.Name, status), nil
}

// ScoreWith records a review. The score must lie within 0..MaxScore.
func (s *Submission) ScoreWith(a *Assignment, score float64, reviewerID, feedback string, now time.Time) error {
	if score < 0 || score > a.MaxScore {
		return shared.NewDomainError("submission", "Score", shared.ErrValueOutOfRange,
			fmt.Sprintf("Score must be within 0..%g", a.MaxScore))
	}
	v := score
	s.Score = &v
	s.ReviewerID = reviewerID
	s.Feedback = feedback
	s.State = SubmissionScored
	s.Late = IsLate(s.SubmittedOn, a.Deadline)
	s.UpdatedAt = now
	return nil
}
