// Package participant models a person enrolled in a batch and the metrics
// (attendance rate, task scores, final score) that decide their certificate.
package participant

import (
	"time"

	"github.com/google/uuid"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// State is the participant's standing in the batch.
type State string

const (
	StateDraft     State = "draft"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateLeft      State = "left"
)

// IsValid checks that the state is known.
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StateActive, StateCompleted, StateFailed, StateLeft:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PARTICIPANT
// ══════════════════════════════════════════════════════════════════════════════

// Participant is a trainee in one batch. (BatchID, PartnerID) is unique.
type Participant struct {
	ID          string
	BatchID     string
	PartnerID   string
	ApplicantID string

	// Name is "<partner> — <batch>".
	Name string

	// Stored metrics, percent.
	AttendanceRate float64
	AverageScore   float64
	FinalScore     float64
	MentorScore    float64

	State State
	Notes string

	// PortalToken identifies the participant in portal links.
	PortalToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewParticipantParams holds the input for NewParticipant.
type NewParticipantParams struct {
	ID          string
	BatchID     string
	PartnerID   string
	ApplicantID string
	PartnerName string
	BatchName   string
	State       State
}

// NewParticipant creates a participant, in draft unless a state is given.
func NewParticipant(p NewParticipantParams, now time.Time) (*Participant, error) {
	if p.BatchID == "" || p.PartnerID == "" {
		return nil, shared.NewDomainError("participant", "Create", shared.ErrEmptyValue, "batch and partner are required")
	}
	state := p.State
	if state == "" {
		state = StateDraft
	}
	if !state.IsValid() {
		return nil, shared.ErrInvalidParticipantState
	}
	return &Participant{
		ID:          p.ID,
		BatchID:     p.BatchID,
		PartnerID:   p.PartnerID,
		ApplicantID: p.ApplicantID,
		Name:        DisplayName(p.PartnerName, p.BatchName),
		State:       state,
		PortalToken: uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DisplayName joins partner and batch names, skipping whichever is empty.
func DisplayName(partner, batch string) string {
	switch {
	case partner != "" && batch != "":
		return partner + " — " + batch
	case partner != "":
		return partner
	default:
		return batch
	}
}

// MoveToBatch reassigns the participant and refreshes its display name.
func (p *Participant) MoveToBatch(batchID, partnerName, batchName string, now time.Time) {
	p.BatchID = batchID
	p.Name = DisplayName(partnerName, batchName)
	p.UpdatedAt = now
}

// SetState changes the participant state. Any known state may follow any other.
func (p *Participant) SetState(s State, now time.Time) error {
	if !s.IsValid() {
		return shared.ErrInvalidParticipantState
	}
	p.State = s
	p.UpdatedAt = now
	return nil
}

// SetMentorScore records the mentor's evaluation.
func (p *Participant) SetMentorScore(score float64, now time.Time) error {
	if err := shared.ValidatePercent("participant", "Mentor Score", score); err != nil {
		return err
	}
	p.MentorScore = score
	p.UpdatedAt = now
	return nil
}

// ApplyMetrics stores freshly computed metrics.
func (p *Participant) ApplyMetrics(m Metrics, now time.Time) {
	p.AttendanceRate = m.AttendanceRate
	p.AverageScore = m.AverageScore
	p.FinalScore = m.FinalScore
	p.UpdatedAt = now
}

// ValidateScores checks every stored percentage lies within 0..100.
func (p *Participant) ValidateScores() error {
	checks := []struct {
		label string
		v     float64
	}{
		{"Attendance Rate", p.AttendanceRate},
		{"Average Score", p.AverageScore},
		{"Final Score", p.FinalScore},
		{"Mentor Score", p.MentorScore},
	}
	for _, c := range checks {
		if err := shared.ValidatePercent("participant", c.label, c.v); err != nil {
			return err
		}
	}
	return nil
}
