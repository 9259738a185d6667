// Package batch models an OJT batch: a cohort of participants trained over a
// date range and recruited through exactly one job opening.
package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// State is the batch workflow state.
type State string

const (
	StateDraft       State = "draft"
	StateRecruitment State = "recruitment"
	StateOngoing     State = "ongoing"
	StateDone        State = "done"
	StateCancel      State = "cancel"
)

// IsValid checks that the state is known.
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StateRecruitment, StateOngoing, StateDone, StateCancel:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateCancel
}

var transitions = map[State][]State{
	StateDraft:       {StateRecruitment, StateCancel},
	StateRecruitment: {StateOngoing, StateDraft, StateCancel},
	StateOngoing:     {StateDone, StateCancel},
}

// CanTransitionTo reports whether the workflow allows moving to next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Mode is how the training is delivered.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	ModeHybrid  Mode = "hybrid"
)

// IsValid checks that the mode is known.
func (m Mode) IsValid() bool {
	return m == ModeOnline || m == ModeOffline || m == ModeHybrid
}

// Default thresholds for certificate eligibility.
const (
	DefaultAttendanceThreshold = 80.0
	DefaultScoreThreshold      = 70.0
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: BATCH
// ══════════════════════════════════════════════════════════════════════════════

// Batch is a training cohort.
type Batch struct {
	ID string

	// Code is a human-readable sequence number, e.g. OJT/2026/0007.
	Code string

	// Name is unique across batches and mirrored to the job.
	Name string

	// JobID links the job opening; one job belongs to at most one batch.
	JobID string

	DepartmentID string
	MentorIDs    []string

	// Capacity and Description are mirrored to the job's recruitment target and description.
	Capacity    int
	Description string

	// StartDate and EndDate are calendar dates (see timeutil.Date).
	StartDate time.Time
	EndDate   time.Time

	Mode Mode

	// Eligibility thresholds, percent.
	AttendanceThreshold float64
	ScoreThreshold      float64

	IsPublished bool
	State       State

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counters aggregates related record counts shown on the batch form.
type Counters struct {
	Participants int `json:"participants"`
	Events       int `json:"events"`
	Assignments  int `json:"assignments"`
	Attendance   int `json:"attendance"`
	Certificates int `json:"certificates"`
}

// NewBatchParams holds the input for NewBatch.
type NewBatchParams struct {
	ID                  string
	Name                string
	JobID               string
	DepartmentID        string
	MentorIDs           []string
	Capacity            int
	Description         string
	StartDate           time.Time
	EndDate             time.Time
	Mode                Mode
	AttendanceThreshold *float64
	ScoreThreshold      *float64
}

// NewBatch creates a draft batch with defaults applied and validates it.
func NewBatch(p NewBatchParams, now time.Time) (*Batch, error) {
	b := &Batch{
		ID:                  p.ID,
		Name:                strings.TrimSpace(p.Name),
		JobID:               p.JobID,
		DepartmentID:        p.DepartmentID,
		MentorIDs:           p.MentorIDs,
		Capacity:            p.Capacity,
		Description:         p.Description,
		StartDate:           p.StartDate,
		EndDate:             p.EndDate,
		Mode:                p.Mode,
		AttendanceThreshold: DefaultAttendanceThreshold,
		ScoreThreshold:      DefaultScoreThreshold,
		State:               StateDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if b.Mode == "" {
		b.Mode = ModeOffline
	}
	if p.AttendanceThreshold != nil {
		b.AttendanceThreshold = *p.AttendanceThreshold
	}
	if p.ScoreThreshold != nil {
		b.ScoreThreshold = *p.ScoreThreshold
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the batch invariants.
func (b *Batch) Validate() error {
	if b.Name == "" {
		return shared.ErrBatchNameRequired
	}
	if !b.Mode.IsValid() {
		return shared.ErrInvalidBatchMode
	}
	if b.Capacity < 0 {
		return shared.ErrNegativeCapacity
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return shared.ErrBatchDatesRequired
	}
	if b.EndDate.Before(b.StartDate) {
		return shared.ErrBatchDateOrder
	}
	if err := shared.ValidatePercent("batch", "Attendance Threshold", b.AttendanceThreshold); err != nil {
		return err
	}
	return shared.ValidatePercent("batch", "Score Threshold", b.ScoreThreshold)
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKFLOW
// ══════════════════════════════════════════════════════════════════════════════

// TransitionTo moves the batch to next. Leaving recruitment unpublishes the batch;
// the caller mirrors IsPublished to the job.
func (b *Batch) TransitionTo(next State, now time.Time) error {
	if !next.IsValid() || !b.State.CanTransitionTo(next) {
		return shared.WrapError("batch", "Transition", shared.ErrStateTransition,
			"cannot move batch from "+string(b.State)+" to "+string(next), nil)
	}
	b.State = next
	if next != StateRecruitment {
		b.IsPublished = false
	}
	b.UpdatedAt = now
	return nil
}

// SetPublished publishes or unpublishes the batch. Publishing is only allowed
// during recruitment.
func (b *Batch) SetPublished(published bool, now time.Time) error {
	if published && b.State != StateRecruitment {
		return shared.ErrPublishNotAllowed
	}
	b.IsPublished = published
	b.UpdatedAt = now
	return nil
}

// ProgressRatio returns how far today is into the batch date range, as a
// percent clamped to 0..100. today is reduced to its Jakarta calendar date.
func (b *Batch) ProgressRatio(today time.Time) float64 {
	if b.StartDate.IsZero() || b.EndDate.IsZero() || b.EndDate.Before(b.StartDate) {
		return 0
	}
	total := timeutil.DaysBetween(b.StartDate, b.EndDate)
	if total == 0 {
		total = 1
	}
	current := timeutil.MinTime(timeutil.DateOf(today), b.EndDate)
	elapsed := timeutil.DaysBetween(b.StartDate, current)
	return shared.Clamp(float64(elapsed)/float64(total)*100, 0, 100)
}

// AcceptsCertificates reports whether certificates may be issued for this batch.
func (b *Batch) AcceptsCertificates() bool {
	return b.State == StateOngoing || b.State == StateDone
}

// FormatCode renders the n-th batch code of a year.
func FormatCode(year, n int) string {
	return fmt.Sprintf("OJT/%d/%04d", year, n)
}

// MirrorOnto copies the batch fields owned by the job opening.
func (b *Batch) MirrorOnto(job *recruitment.Job, now time.Time) {
	job.Name = b.Name
	job.Description = b.Description
	job.NoOfRecruitment = b.Capacity
	job.IsPublished = b.IsPublished
	job.UpdatedAt = now
}
