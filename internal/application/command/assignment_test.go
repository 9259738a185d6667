package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

func ptr[T any](v T) *T { return &v }

func TestCreateAssignment_EventLinkMustShareBatch(t *testing.T) {
	f := newFixture(t)
	b1 := f.batch("Backend", batch.StateOngoing)
	b2 := f.batch("Frontend", batch.StateOngoing)
	other := f.session(b2, "Kickoff", sessionStart, sessionEnd)

	_, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{BatchID: b1.ID, EventLinkID: other.ID, Name: "REST API"})
	assert.ErrorIs(t, err, shared.ErrAssignmentEventBatch)

	own := f.session(b1, "Kickoff", sessionStart, sessionEnd)
	a, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{BatchID: b1.ID, EventLinkID: own.ID, Name: "REST API"})
	require.NoError(t, err)
	assert.Equal(t, assignment.StateDraft, a.State)
	assert.Equal(t, assignment.DefaultMaxScore, a.MaxScore)
}

func TestSubmissionFlow(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	p := f.enroll(b, "ayu", "Ayu")

	deadline := t0.Add(24 * time.Hour)
	a, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{
		BatchID:            b.ID,
		Name:               "REST API",
		Deadline:           &deadline,
		MaxScore:           ptr(50.0),
		Weight:             1,
		AttachmentRequired: true,
	})
	require.NoError(t, err)
	_, err = f.h.Assignments.ChangeAssignmentState(f.ctx, ChangeAssignmentStateCommand{AssignmentID: a.ID, State: assignment.StateOpen})
	require.NoError(t, err)

	s, err := f.h.Assignments.CreateSubmission(f.ctx, CreateSubmissionCommand{AssignmentID: a.ID, ParticipantID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, "Ayu — Backend — REST API", s.Name)

	_, err = f.h.Assignments.SubmitSubmission(f.ctx, SubmitSubmissionCommand{SubmissionID: s.ID})
	assert.ErrorIs(t, err, shared.ErrAttachmentRequired)

	f.events.reset()
	f.clock.Set(deadline.Add(time.Hour))
	res, err := f.h.Assignments.SubmitSubmission(f.ctx, SubmitSubmissionCommand{SubmissionID: s.ID, SubmissionURL: ptr("https://git.example.com/ayu/rest")})
	require.NoError(t, err)
	assert.True(t, res.Submission.Late)
	assert.Contains(t, res.Note, "late")
	assert.Equal(t, []shared.EventType{shared.EventSubmissionSubmitted}, f.events.types())

	_, err = f.h.Assignments.ScoreSubmission(f.ctx, ScoreSubmissionCommand{SubmissionID: s.ID, Score: 60})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	scored, err := f.h.Assignments.ScoreSubmission(f.ctx, ScoreSubmissionCommand{SubmissionID: s.ID, Score: 40, ReviewerID: "mentor-1", Feedback: "Good"})
	require.NoError(t, err)
	assert.Equal(t, assignment.SubmissionScored, scored.State)
	assert.Equal(t, 40.0, *scored.Score)
}

func TestCreateSubmission_RejectsOtherBatch(t *testing.T) {
	f := newFixture(t)
	b1 := f.batch("Backend", batch.StateOngoing)
	b2 := f.batch("Frontend", batch.StateOngoing)
	p := f.enroll(b2, "ayu", "Ayu")

	a, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{BatchID: b1.ID, Name: "REST API"})
	require.NoError(t, err)

	_, err = f.h.Assignments.CreateSubmission(f.ctx, CreateSubmissionCommand{AssignmentID: a.ID, ParticipantID: p.ID})
	assert.ErrorIs(t, err, shared.ErrSubmissionBatch)
}

func TestSubmitSubmission_ClosedAssignment(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	p := f.enroll(b, "ayu", "Ayu")
	a, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{BatchID: b.ID, Name: "REST API"})
	require.NoError(t, err)
	s, err := f.h.Assignments.CreateSubmission(f.ctx, CreateSubmissionCommand{AssignmentID: a.ID, ParticipantID: p.ID})
	require.NoError(t, err)

	_, err = f.h.Assignments.ChangeAssignmentState(f.ctx, ChangeAssignmentStateCommand{AssignmentID: a.ID, State: assignment.StateClosed})
	assert.ErrorIs(t, err, shared.ErrInvalidAssignmentState)

	for _, st := range []assignment.State{assignment.StateOpen, assignment.StateClosed} {
		_, err = f.h.Assignments.ChangeAssignmentState(f.ctx, ChangeAssignmentStateCommand{AssignmentID: a.ID, State: st})
		require.NoError(t, err)
	}
	_, err = f.h.Assignments.SubmitSubmission(f.ctx, SubmitSubmissionCommand{SubmissionID: s.ID})
	assert.ErrorIs(t, err, shared.ErrAssignmentClosed)
}

func TestRecomputeMetrics(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	p := f.enroll(b, "ayu", "Ayu")
	first := f.session(b, "Kickoff", sessionStart, sessionEnd)
	f.session(b, "Review", sessionStart.Add(48*time.Hour), sessionEnd.Add(48*time.Hour))

	f.clock.Set(sessionStart)
	_, err := f.h.Attendance.CheckIn(f.ctx, CheckInCommand{Token: f.row(p.ID, first.ID).QRToken, Method: attendance.MethodQR})
	require.NoError(t, err)

	a, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{BatchID: b.ID, Name: "REST API", MaxScore: ptr(50.0), Weight: 1})
	require.NoError(t, err)
	_, err = f.h.Assignments.ChangeAssignmentState(f.ctx, ChangeAssignmentStateCommand{AssignmentID: a.ID, State: assignment.StateOpen})
	require.NoError(t, err)
	s, err := f.h.Assignments.CreateSubmission(f.ctx, CreateSubmissionCommand{AssignmentID: a.ID, ParticipantID: p.ID})
	require.NoError(t, err)
	_, err = f.h.Assignments.SubmitSubmission(f.ctx, SubmitSubmissionCommand{SubmissionID: s.ID})
	require.NoError(t, err)
	_, err = f.h.Assignments.ScoreSubmission(f.ctx, ScoreSubmissionCommand{SubmissionID: s.ID, Score: 40})
	require.NoError(t, err)
	_, err = f.h.Enrollment.SetMentorScore(f.ctx, SetMentorScoreCommand{ParticipantID: p.ID, Score: 90})
	require.NoError(t, err)

	res, err := f.h.Metrics.RecomputeMetrics(f.ctx, RecomputeMetricsCommand{ParticipantID: p.ID})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 50.0, res.Metrics.AttendanceRate)
	assert.Equal(t, 80.0, res.Metrics.AverageScore)
	assert.Equal(t, 82.0, res.Metrics.FinalScore)

	stored := f.participant(p.ID)
	assert.Equal(t, 82.0, stored.FinalScore)

	res, err = f.h.Metrics.RecomputeMetrics(f.ctx, RecomputeMetricsCommand{ParticipantID: p.ID})
	require.NoError(t, err)
	assert.False(t, res.Changed)

	all, err := f.h.Metrics.RecomputeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, RecomputeAllResult{Processed: 1}, *all)
}

func TestRecomputeMetrics_RejectsOutOfRangeScores(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	p := f.enroll(b, "ayu", "Ayu")

	a, err := f.h.Assignments.CreateAssignment(f.ctx, CreateAssignmentCommand{BatchID: b.ID, Name: "REST API", MaxScore: ptr(50.0), Weight: 1})
	require.NoError(t, err)
	_, err = f.h.Assignments.ChangeAssignmentState(f.ctx, ChangeAssignmentStateCommand{AssignmentID: a.ID, State: assignment.StateOpen})
	require.NoError(t, err)
	s, err := f.h.Assignments.CreateSubmission(f.ctx, CreateSubmissionCommand{AssignmentID: a.ID, ParticipantID: p.ID})
	require.NoError(t, err)
	_, err = f.h.Assignments.SubmitSubmission(f.ctx, SubmitSubmissionCommand{SubmissionID: s.ID})
	require.NoError(t, err)
	_, err = f.h.Assignments.ScoreSubmission(f.ctx, ScoreSubmissionCommand{SubmissionID: s.ID, Score: 40})
	require.NoError(t, err)

	// Lowering the max score after grading pushes the average past 100.
	stored, err := f.repos.Assignments.GetByID(f.ctx, a.ID)
	require.NoError(t, err)
	stored.MaxScore = 20
	require.NoError(t, f.repos.Assignments.Update(f.ctx, stored))
	before := f.participant(p.ID)

	_, err = f.h.Metrics.RecomputeMetrics(f.ctx, RecomputeMetricsCommand{ParticipantID: p.ID})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Equal(t, before.AverageScore, f.participant(p.ID).AverageScore)

	all, err := f.h.Metrics.RecomputeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, RecomputeAllResult{Processed: 1, Failed: 1}, *all)
}
