// Package certificate models completion certificates and the eligibility rule
// that gates them.
package certificate

import (
	"context"
	"fmt"
	"time"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// DefaultName is the certificate title when none is given.
const DefaultName = "Certificate"

// Certificate is a credential issued to a participant.
type Certificate struct {
	ID            string
	Name          string
	Number        string
	ParticipantID string
	BatchID       string
	DateIssued    time.Time
	Notes         string
	CreatedAt     time.Time
}

// Decision explains an eligibility check.
type Decision struct {
	Eligible     bool     `json:"eligible"`
	AttendanceOK bool     `json:"attendance_ok"`
	ScoreOK      bool     `json:"score_ok"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Evaluate checks a participant against the batch thresholds: the attendance
// rate and the final score must both reach their threshold.
func Evaluate(p *participant.Participant, b *batch.Batch) Decision {
	d := Decision{
		AttendanceOK: p.AttendanceRate >= b.AttendanceThreshold,
		ScoreOK:      p.FinalScore >= b.ScoreThreshold,
	}
	if !d.AttendanceOK {
		d.Reasons = append(d.Reasons, fmt.Sprintf("attendance rate %.2f%% is below %.2f%%", p.AttendanceRate, b.AttendanceThreshold))
	}
	if !d.ScoreOK {
		d.Reasons = append(d.Reasons, fmt.Sprintf("final score %.2f is below %.2f", p.FinalScore, b.ScoreThreshold))
	}
	if p.State == participant.StateLeft {
		d.Reasons = append(d.Reasons, "participant left the batch")
	}
	d.Eligible = d.AttendanceOK && d.ScoreOK && p.State != participant.StateLeft
	return d
}

// IssueParams holds the input for Issue.
type IssueParams struct {
	ID     string
	Name   string
	Number string
	Notes  string
}

// Issue creates a certificate for an eligible participant of a batch that
// accepts certificates.
func Issue(p *participant.Participant, b *batch.Batch, params IssueParams, now time.Time) (*Certificate, Decision, error) {
	if p.BatchID != b.ID {
		return nil, Decision{}, shared.NewDomainError("certificate", "Issue", shared.ErrValidation, "participant does not belong to the batch")
	}
	if !b.AcceptsCertificates() {
		return nil, Decision{}, shared.ErrBatchNotCertifiable
	}
	d := Evaluate(p, b)
	if !d.Eligible {
		return nil, d, shared.ErrNotEligible
	}
	name := params.Name
	if name == "" {
		name = DefaultName
	}
	return &Certificate{
		ID:            params.ID,
		Name:          name,
		Number:        params.Number,
		ParticipantID: p.ID,
		BatchID:       b.ID,
		DateIssued:    now,
		Notes:         params.Notes,
		CreatedAt:     now,
	}, d, nil
}

// Repository persists certificates.
type Repository interface {
	// Create returns ErrCertificateIssued when the participant already holds one.
	Create(ctx context.Context, c *Certificate) error
	GetByID(ctx context.Context, id string) (*Certificate, error)
	FindByParticipant(ctx context.Context, participantID string) ([]*Certificate, error)
	ListByBatch(ctx context.Context, batchID string) ([]*Certificate, error)

	// NextNumber allocates the next certificate sequence of a batch. The
	// allocation is held until the surrounding tx commits.
	NextNumber(ctx context.Context, batchID string) (int, error)
}
