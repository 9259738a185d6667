package participant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

func score(v float64) *float64 { return &v }

func presence(attended ...bool) []PresenceSample {
	out := make([]PresenceSample, len(attended))
	for i, a := range attended {
		out[i] = PresenceSample{Attended: a}
	}
	return out
}

func TestComputeMetrics_AttendanceRate(t *testing.T) {
	m := ComputeMetrics("b1", presence(true, true, false, true), nil, 0)
	assert.InDelta(t, 75.0, m.AttendanceRate, 0.0001)

	m = ComputeMetrics("b1", nil, nil, 0)
	assert.Equal(t, 0.0, m.AttendanceRate)
}

func TestComputeMetrics_WeightedScores(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: score(80)},
		{AssignmentID: "a2", AssignmentBatchID: "b1", MaxScore: 50, Weight: 3, Score: score(40)},
	}

	m := ComputeMetrics("b1", nil, subs, 90)

	// norms: 80 and 80 -> avg 80, weighted (80*1+80*3)/4 = 80
	assert.InDelta(t, 80.0, m.AverageScore, 0.0001)
	assert.InDelta(t, 82.0, m.FinalScore, 0.0001) // 80*0.8 + 90*0.2
}

func TestComputeMetrics_UnequalWeights(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: score(100)},
		{AssignmentID: "a2", AssignmentBatchID: "b1", MaxScore: 100, Weight: 3, Score: score(60)},
	}

	m := ComputeMetrics("b1", nil, subs, 0)

	assert.InDelta(t, 80.0, m.AverageScore, 0.0001)
	// weighted: (100 + 180) / 4 = 70 -> 70*0.8 = 56
	assert.InDelta(t, 56.0, m.FinalScore, 0.0001)
}

func TestComputeMetrics_ZeroWeightsFallBackToAverage(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 10, Score: score(7)},
		{AssignmentID: "a2", AssignmentBatchID: "b1", MaxScore: 10, Score: score(9)},
	}

	m := ComputeMetrics("b1", nil, subs, 50)

	assert.InDelta(t, 80.0, m.AverageScore, 0.0001)
	assert.InDelta(t, 74.0, m.FinalScore, 0.0001)
}

func TestComputeMetrics_BestSubmissionPerAssignment(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: score(40)},
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: score(90)},
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: nil},
	}

	m := ComputeMetrics("b1", nil, subs, 0)

	assert.InDelta(t, 90.0, m.AverageScore, 0.0001)
	assert.InDelta(t, 72.0, m.FinalScore, 0.0001)
}

func TestComputeMetrics_IgnoresForeignAndInvalidAssignments(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "other", MaxScore: 100, Weight: 1, Score: score(10)},
		{AssignmentID: "a2", AssignmentBatchID: "b1", MaxScore: 0, Weight: 1, Score: score(10)},
		{AssignmentID: "a3", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: score(100)},
	}

	m := ComputeMetrics("b1", nil, subs, 100)

	assert.InDelta(t, 100.0, m.AverageScore, 0.0001)
	assert.InDelta(t, 100.0, m.FinalScore, 0.0001)
}

func TestComputeMetrics_UnscoredCountsAsZero(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: nil},
		{AssignmentID: "a2", AssignmentBatchID: "b1", MaxScore: 100, Weight: 1, Score: score(100)},
	}

	m := ComputeMetrics("b1", nil, subs, 0)
	assert.InDelta(t, 50.0, m.AverageScore, 0.0001)
}

func TestComputeMetrics_FinalScoreRounded(t *testing.T) {
	subs := []ScoredSubmission{
		{AssignmentID: "a1", AssignmentBatchID: "b1", MaxScore: 3, Weight: 1, Score: score(1)},
	}

	m := ComputeMetrics("b1", nil, subs, 0)

	// 33.333.. * 0.8 = 26.666..
	assert.Equal(t, 26.67, m.FinalScore)
}

func TestParticipant_SetMentorScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewParticipant(NewParticipantParams{ID: "p1", BatchID: "b1", PartnerID: "r1", PartnerName: "Ayu", BatchName: "Batch 1"}, now)
	require.NoError(t, err)

	assert.Equal(t, "Ayu — Batch 1", p.Name)
	assert.Equal(t, StateDraft, p.State)
	assert.NotEmpty(t, p.PortalToken)

	assert.ErrorIs(t, p.SetMentorScore(101, now), shared.ErrValueOutOfRange)
	require.NoError(t, p.SetMentorScore(85, now))
	assert.Equal(t, 85.0, p.MentorScore)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ayu", DisplayName("Ayu", ""))
	assert.Equal(t, "Batch 1", DisplayName("", "Batch 1"))
	assert.Equal(t, "", DisplayName("", ""))
}

func TestParticipant_SetState(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &Participant{State: StateActive}

	require.NoError(t, p.SetState(StateLeft, now))
	require.NoError(t, p.SetState(StateActive, now))
	assert.ErrorIs(t, p.SetState("graduated", now), shared.ErrInvalidParticipantState)
}
