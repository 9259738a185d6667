// Package assignment models tasks given to a batch and the submissions
// participants hand in for them.
package assignment

import (
	"strings"
	"time"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// State is the assignment workflow state.
type State string

const (
	StateDraft  State = "draft"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// IsValid checks that the state is known.
func (s State) IsValid() bool {
	return s == StateDraft || s == StateOpen || s == StateClosed
}

// Type classifies the assignment.
type Type string

const (
	TypeTask         Type = "task"
	TypeQuiz         Type = "quiz"
	TypePresentation Type = "presentation"
)

// IsValid checks that the type is known.
func (t Type) IsValid() bool {
	return t == TypeTask || t == TypeQuiz || t == TypePresentation
}

// DefaultMaxScore is used when none is given.
const DefaultMaxScore = 100.0

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ASSIGNMENT
// ══════════════════════════════════════════════════════════════════════════════

// Assignment is a graded task of a batch.
type Assignment struct {
	ID          string
	BatchID     string
	EventLinkID string

	Name        string
	Description string
	Type        Type
	Deadline    *time.Time

	MaxScore float64
	// Weight is the assignment's share in the weighted task score.
	Weight             float64
	AttachmentRequired bool

	State State

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAssignmentParams holds the input for NewAssignment.
type NewAssignmentParams struct {
	ID                 string
	BatchID            string
	EventLinkID        string
	EventLinkBatchID   string
	Name               string
	Description        string
	Type               Type
	Deadline           *time.Time
	MaxScore           *float64
	Weight             float64
	AttachmentRequired bool
}

// NewAssignment creates a draft assignment.
func NewAssignment(p NewAssignmentParams, now time.Time) (*Assignment, error) {
	a := &Assignment{
		ID:                 p.ID,
		BatchID:            p.BatchID,
		EventLinkID:        p.EventLinkID,
		Name:               strings.TrimSpace(p.Name),
		Description:        p.Description,
		Type:               p.Type,
		Deadline:           p.Deadline,
		MaxScore:           DefaultMaxScore,
		Weight:             p.Weight,
		AttachmentRequired: p.AttachmentRequired,
		State:              StateDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if a.Type == "" {
		a.Type = TypeTask
	}
	if p.MaxScore != nil {
		a.MaxScore = *p.MaxScore
	}
	if err := a.Validate(p.EventLinkBatchID); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the assignment invariants. eventLinkBatchID is the batch of the
// linked event link and is ignored when the assignment has none.
func (a *Assignment) Validate(eventLinkBatchID string) error {
	if a.Name == "" {
		return shared.NewDomainError("assignment", "Validate", shared.ErrEmptyValue, "Assignment name is required.")
	}
	if a.BatchID == "" {
		return shared.NewDomainError("assignment", "Validate", shared.ErrEmptyValue, "Batch is required.")
	}
	if !a.Type.IsValid() {
		return shared.ErrInvalidAssignmentType
	}
	if a.MaxScore <= 0 {
		return shared.ErrMaxScoreNotPositive
	}
	if a.Weight < 0 {
		return shared.ErrNegativeWeight
	}
	if a.EventLinkID != "" && eventLinkBatchID != a.BatchID {
		return shared.ErrAssignmentEventBatch
	}
	return nil
}

// Open publishes the assignment for submissions.
func (a *Assignment) Open(now time.Time) error {
	return a.moveTo(StateOpen, now, StateDraft)
}

// Close stops accepting submissions.
func (a *Assignment) Close(now time.Time) error {
	return a.moveTo(StateClosed, now, StateOpen)
}

// ResetDraft returns the assignment to draft.
func (a *Assignment) ResetDraft(now time.Time) error {
	return a.moveTo(StateDraft, now, StateOpen, StateClosed)
}

// Transition dispatches to Open, Close or ResetDraft.
func (a *Assignment) Transition(next State, now time.Time) error {
	switch next {
	case StateOpen:
		return a.Open(now)
	case StateClosed:
		return a.Close(now)
	case StateDraft:
		return a.ResetDraft(now)
	default:
		return shared.ErrInvalidAssignmentState
	}
}

func (a *Assignment) moveTo(next State, now time.Time, from ...State) error {
	for _, f := range from {
		if a.State == f {
			a.State = next
			a.UpdatedAt = now
			return nil
		}
	}
	return shared.ErrInvalidAssignmentState
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// Stats summarises submissions of an assignment.
type Stats struct {
	SubmitCount        int     `json:"submit_count"`
	ParticipantCount   int     `json:"participant_count"`
	AvgScore           float64 `json:"avg_score"`
	SubmissionProgress float64 `json:"submission_progress"`
}

// ComputeStats derives the assignment statistics. Scores are clamped to
// [0, MaxScore] and normalised to percent before averaging; unscored
// submissions count as 0.
func (a *Assignment) ComputeStats(submissions []*Submission, participantCount int) Stats {
	st := Stats{
		SubmitCount:      len(submissions),
		ParticipantCount: participantCount,
	}

	if n := len(submissions); n > 0 {
		var sum float64
		for _, s := range submissions {
			v := 0.0
			if s.Score != nil {
				v = *s.Score
			}
			if a.MaxScore > 0 {
				sum += shared.Clamp(v, 0, a.MaxScore) / a.MaxScore * 100
			} else {
				sum += v
			}
		}
		avg := sum / float64(n)
		if a.MaxScore <= 0 {
			avg = shared.Clamp(avg, 0, 100)
		}
		st.AvgScore = shared.Round(avg, 2)
	}

	if participantCount > 0 {
		st.SubmissionProgress = shared.Round(float64(st.SubmitCount)/float64(participantCount)*100, 0)
	}
	return st
}
