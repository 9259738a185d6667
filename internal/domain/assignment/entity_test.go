package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

var now = time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func newAssignment(t *testing.T, mutate func(*NewAssignmentParams)) *Assignment {
	t.Helper()
	p := NewAssignmentParams{ID: "as1", BatchID: "b1", Name: "REST API"}
	if mutate != nil {
		mutate(&p)
	}
	a, err := NewAssignment(p, now)
	require.NoError(t, err)
	return a
}

func TestNewAssignment_Defaults(t *testing.T) {
	a := newAssignment(t, nil)
	assert.Equal(t, TypeTask, a.Type)
	assert.Equal(t, 100.0, a.MaxScore)
	assert.Equal(t, 0.0, a.Weight)
	assert.Equal(t, StateDraft, a.State)
}

func TestNewAssignment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewAssignmentParams)
		want   error
	}{
		{"zero max score", func(p *NewAssignmentParams) { p.MaxScore = f(0) }, shared.ErrMaxScoreNotPositive},
		{"negative weight", func(p *NewAssignmentParams) { p.Weight = -0.5 }, shared.ErrNegativeWeight},
		{"bad type", func(p *NewAssignmentParams) { p.Type = "essay" }, shared.ErrInvalidAssignmentType},
		{"event from other batch", func(p *NewAssignmentParams) { p.EventLinkID = "e1"; p.EventLinkBatchID = "b2" }, shared.ErrAssignmentEventBatch},
		{"no name", func(p *NewAssignmentParams) { p.Name = "" }, shared.ErrEmptyValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAssignmentParams{ID: "as1", BatchID: "b1", Name: "REST API"}
			tt.mutate(&p)
			_, err := NewAssignment(p, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAssignment_Workflow(t *testing.T) {
	a := newAssignment(t, nil)

	assert.ErrorIs(t, a.Close(now), shared.ErrInvalidAssignmentState)
	require.NoError(t, a.Open(now))
	require.NoError(t, a.Close(now))
	assert.ErrorIs(t, a.Open(now), shared.ErrInvalidAssignmentState)
	require.NoError(t, a.Transition(StateDraft, now))
	assert.Equal(t, StateDraft, a.State)
	assert.ErrorIs(t, a.Transition("archived", now), shared.ErrInvalidAssignmentState)
}

func TestComputeStats(t *testing.T) {
	a := newAssignment(t, func(p *NewAssignmentParams) { p.MaxScore = f(50) })

	subs := []*Submission{
		{Score: f(50)},
		{Score: f(25)},
		{Score: f(80)}, // clamped to 50
		{Score: nil},
	}

	st := a.ComputeStats(subs, 8)
	assert.Equal(t, 4, st.SubmitCount)
	assert.Equal(t, 8, st.ParticipantCount)
	assert.Equal(t, 62.5, st.AvgScore) // (100+50+100+0)/4
	assert.Equal(t, 50.0, st.SubmissionProgress)
}

func TestComputeStats_Empty(t *testing.T) {
	a := newAssignment(t, nil)
	st := a.ComputeStats(nil, 0)
	assert.Equal(t, Stats{}, st)
}

func TestComputeStats_ProgressRounding(t *testing.T) {
	a := newAssignment(t, nil)
	st := a.ComputeStats([]*Submission{{Score: f(100)}}, 3)
	assert.Equal(t, 33.0, st.SubmissionProgress)
}

func TestSubmission_Lifecycle(t *testing.T) {
	deadline := now.Add(time.Hour)
	a := newAssignment(t, func(p *NewAssignmentParams) { p.Deadline = &deadline; p.AttachmentRequired = true })
	require.NoError(t, a.Open(now))

	_, err := NewSubmission(NewSubmissionParams{ID: "s1", Assignment: a, ParticipantID: "p1", ParticipantBatchID: "b2"}, now)
	assert.ErrorIs(t, err, shared.ErrSubmissionBatch)

	s, err := NewSubmission(NewSubmissionParams{ID: "s1", Assignment: a, ParticipantID: "p1", ParticipantBatchID: "b1", ParticipantName: "Ayu — Batch 1"}, now)
	require.NoError(t, err)
	assert.Equal(t, "Ayu — Batch 1 — REST API", s.Name)

	_, err = s.Submit(a, now)
	assert.ErrorIs(t, err, shared.ErrAttachmentRequired)

	s.SubmissionURL = "https://github.com/ayu/rest-api"
	note, err := s.Submit(a, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, s.Late)
	assert.Contains(t, note, "late")
	assert.Equal(t, SubmissionSubmitted, s.State)

	firstStamp := *s.SubmittedOn
	_, err = s.Submit(a, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, firstStamp, *s.SubmittedOn, "submission time is kept")

	err = s.ScoreWith(a, 101, "m1", "", now)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Equal(t, "Score must be within 0..100", shared.UserMessage(err))

	require.NoError(t, s.ScoreWith(a, 88, "m1", "Solid work", now))
	assert.Equal(t, SubmissionScored, s.State)
	assert.Equal(t, 88.0, *s.Score)

	_, err = s.Submit(a, now)
	assert.ErrorIs(t, err, shared.ErrInvalidSubmissionState)
}

func TestSubmission_OnTimeAndClosed(t *testing.T) {
	deadline := now.Add(time.Hour)
	a := newAssignment(t, func(p *NewAssignmentParams) { p.Deadline = &deadline })
	require.NoError(t, a.Open(now))

	s, err := NewSubmission(NewSubmissionParams{ID: "s1", Assignment: a, ParticipantID: "p1", ParticipantBatchID: "b1"}, now)
	require.NoError(t, err)

	note, err := s.Submit(a, deadline)
	require.NoError(t, err)
	assert.False(t, s.Late)
	assert.Contains(t, note, "on time")

	require.NoError(t, a.Close(now))
	other, _ := NewSubmission(NewSubmissionParams{ID: "s2", Assignment: a, ParticipantID: "p2", ParticipantBatchID: "b1"}, now)
	_, err = other.Submit(a, now)
	assert.ErrorIs(t, err, shared.ErrAssignmentClosed)
}

func TestIsLate(t *testing.T) {
	d := now
	after := now.Add(time.Second)
	assert.False(t, IsLate(nil, &d))
	assert.False(t, IsLate(&after, nil))
	assert.True(t, IsLate(&after, &d))
	assert.False(t, IsLate(&d, &d))
}
