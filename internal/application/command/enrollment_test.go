package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

func TestEnrollParticipant_GeneratesAttendance(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	f.session(b, "Kickoff", t0.Add(time.Hour), t0.Add(3*time.Hour))
	f.session(b, "Code review", t0.Add(24*time.Hour), t0.Add(26*time.Hour))
	f.partner("ayu", "Ayu")
	f.events.reset()

	res, err := f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b.ID, PartnerID: "ayu"})
	require.NoError(t, err)

	p := res.Participant
	assert.Equal(t, "Ayu — Backend", p.Name)
	assert.Equal(t, participant.StateDraft, p.State)
	assert.NotEmpty(t, p.PortalToken)
	assert.Equal(t, 2, res.AttendanceCreated)

	rows, err := f.repos.Attendance.List(f.ctx, attendance.ListOptions{ParticipantID: p.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, a := range rows {
		assert.Equal(t, attendance.PresenceAbsent, a.Presence)
		assert.Equal(t, attendance.MethodManual, a.Method)
		assert.NotEmpty(t, a.QRToken)
		assert.Equal(t, b.ID, a.BatchID)
	}
	assert.NotEqual(t, rows[0].QRToken, rows[1].QRToken)

	assert.Equal(t, []shared.EventType{shared.EventParticipantEnrolled, shared.EventAttendanceSync}, f.events.types())
}

func TestEnrollParticipant_Rejects(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	f.enroll(b, "ayu", "Ayu")

	_, err := f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b.ID, PartnerID: "ayu"})
	assert.ErrorIs(t, err, shared.ErrParticipantAlreadyExists)

	_, err = f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b.ID, PartnerID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrPartnerNotFound)

	_, err = f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: "missing", PartnerID: "ayu"})
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)

	_, err = f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b.ID, PartnerID: "ayu", State: "graduated"})
	assert.ErrorIs(t, err, shared.ErrInvalidParticipantState)
}

func TestChangeParticipantBatch(t *testing.T) {
	f := newFixture(t)
	b1 := f.batch("Backend", batch.StateOngoing)
	b2 := f.batch("Frontend", batch.StateOngoing)
	f.session(b1, "Kickoff", t0.Add(time.Hour), t0.Add(3*time.Hour))
	f.session(b2, "Kickoff", t0.Add(time.Hour), t0.Add(3*time.Hour))
	f.session(b2, "Review", t0.Add(24*time.Hour), t0.Add(26*time.Hour))
	ayu := f.enroll(b1, "ayu", "Ayu")
	f.events.reset()

	res, err := f.h.Enrollment.ChangeParticipantBatch(f.ctx, ChangeParticipantBatchCommand{ParticipantID: ayu.ID, BatchID: b2.ID})
	require.NoError(t, err)
	assert.Equal(t, b1.ID, res.FromBatchID)
	assert.Equal(t, b2.ID, res.Participant.BatchID)
	assert.Equal(t, "Ayu — Frontend", res.Participant.Name)
	assert.Equal(t, 2, res.AttendanceCreated)
	assert.Equal(t, []shared.EventType{shared.EventParticipantBatchChanged}, f.events.types())

	stored, err := f.repos.Participants.GetByID(f.ctx, ayu.ID)
	require.NoError(t, err)
	assert.Equal(t, b2.ID, stored.BatchID)

	rows, err := f.repos.Attendance.List(f.ctx, attendance.ListOptions{ParticipantID: ayu.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// Same batch again changes nothing.
	f.events.reset()
	res, err = f.h.Enrollment.ChangeParticipantBatch(f.ctx, ChangeParticipantBatchCommand{ParticipantID: ayu.ID, BatchID: b2.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AttendanceCreated)
	assert.Empty(t, f.events.types())
}

func TestChangeParticipantBatch_Rejects(t *testing.T) {
	f := newFixture(t)
	b1 := f.batch("Backend", batch.StateOngoing)
	b2 := f.batch("Frontend", batch.StateOngoing)
	budi := f.enroll(b1, "budi", "Budi")
	_, err := f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b2.ID, PartnerID: "budi"})
	require.NoError(t, err)

	_, err = f.h.Enrollment.ChangeParticipantBatch(f.ctx, ChangeParticipantBatchCommand{ParticipantID: budi.ID, BatchID: b2.ID})
	assert.ErrorIs(t, err, shared.ErrParticipantAlreadyExists)

	_, err = f.h.Enrollment.ChangeParticipantBatch(f.ctx, ChangeParticipantBatchCommand{ParticipantID: budi.ID, BatchID: "missing"})
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)

	_, err = f.h.Enrollment.ChangeParticipantBatch(f.ctx, ChangeParticipantBatchCommand{ParticipantID: budi.ID})
	assert.Error(t, err)

	stored, err := f.repos.Participants.GetByID(f.ctx, budi.ID)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, stored.BatchID)
}

func seedApplicant(f *fixture, b *batch.Batch, stages ...*recruitment.Stage) *recruitment.Applicant {
	f.t.Helper()
	for _, st := range stages {
		require.NoError(f.t, f.repos.Applicants.CreateStage(f.ctx, st))
	}
	f.partner("budi", "Budi")
	app := &recruitment.Applicant{ID: "app-1", Name: "Budi", JobID: b.JobID, PartnerID: "budi", StageID: stages[0].ID, CreatedAt: t0}
	require.NoError(f.t, f.repos.Applicants.Create(f.ctx, app))
	return app
}

func TestMoveApplicantStage_ContractSignedEnrolls(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateRecruitment)
	link := f.session(b, "Kickoff", t0.Add(time.Hour), t0.Add(3*time.Hour))
	app := seedApplicant(f, b,
		&recruitment.Stage{ID: "st-interview", Name: "Interview", Sequence: 1},
		&recruitment.Stage{ID: "st-signed", Name: "Kontrak Ditandatangani", Sequence: 2},
	)

	res, err := f.h.Enrollment.MoveApplicantStage(f.ctx, MoveApplicantStageCommand{ApplicantID: app.ID, StageID: "st-interview"})
	require.NoError(t, err)
	assert.False(t, res.ContractSigned)
	assert.Nil(t, res.Participant)

	res, err = f.h.Enrollment.MoveApplicantStage(f.ctx, MoveApplicantStageCommand{ApplicantID: app.ID, StageID: "st-signed"})
	require.NoError(t, err)
	assert.True(t, res.ContractSigned)
	assert.True(t, res.Enrolled)
	require.NotNil(t, res.Participant)
	assert.Equal(t, app.ID, res.Participant.ApplicantID)
	assert.Equal(t, b.ID, res.Participant.BatchID)

	row := f.row(res.Participant.ID, link.ID)
	assert.Equal(t, attendance.PresenceAbsent, row.Presence)

	// A second move to the same stage keeps the single participant.
	res, err = f.h.Enrollment.MoveApplicantStage(f.ctx, MoveApplicantStageCommand{ApplicantID: app.ID, StageID: "st-signed"})
	require.NoError(t, err)
	assert.False(t, res.Enrolled)
	n, err := f.repos.Participants.Count(f.ctx, participant.ListOptions{BatchID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMoveApplicantStage_BackfillsApplicant(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateRecruitment)
	app := seedApplicant(f, b, &recruitment.Stage{ID: "st-signed", Name: "Contract Signed", Sequence: 5})

	_, err := f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b.ID, PartnerID: "budi"})
	require.NoError(t, err)

	res, err := f.h.Enrollment.MoveApplicantStage(f.ctx, MoveApplicantStageCommand{ApplicantID: app.ID, StageID: "st-signed"})
	require.NoError(t, err)
	assert.False(t, res.Enrolled)
	require.NotNil(t, res.Participant)
	assert.Equal(t, app.ID, f.participant(res.Participant.ID).ApplicantID)
}

func TestMoveApplicantStage_ProposalStageDoesNotEnroll(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateRecruitment)
	app := seedApplicant(f, b, &recruitment.Stage{ID: "st-proposal", Name: "Contract Proposal Signed", Sequence: 4})

	res, err := f.h.Enrollment.MoveApplicantStage(f.ctx, MoveApplicantStageCommand{ApplicantID: app.ID, StageID: "st-proposal"})
	require.NoError(t, err)
	assert.False(t, res.ContractSigned)
	assert.Nil(t, res.Participant)

	got, err := f.repos.Applicants.GetByID(f.ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "st-proposal", got.StageID)
}

func TestSetMentorScore(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	p := f.enroll(b, "ayu", "Ayu")
	f.events.reset()

	_, err := f.h.Enrollment.SetMentorScore(f.ctx, SetMentorScoreCommand{ParticipantID: p.ID, Score: 120})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Empty(t, f.events.types())

	got, err := f.h.Enrollment.SetMentorScore(f.ctx, SetMentorScoreCommand{ParticipantID: p.ID, Score: 90})
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.MentorScore)
	assert.Equal(t, []shared.EventType{shared.EventMentorScored}, f.events.types())
}

func TestSetParticipantState(t *testing.T) {
	f := newFixture(t)
	b := f.batch("Backend", batch.StateOngoing)
	p := f.enroll(b, "ayu", "Ayu")

	got, err := f.h.Enrollment.SetParticipantState(f.ctx, SetParticipantStateCommand{ParticipantID: p.ID, State: participant.StateLeft})
	require.NoError(t, err)
	assert.Equal(t, participant.StateLeft, got.State)

	got, err = f.h.Enrollment.SetParticipantState(f.ctx, SetParticipantStateCommand{ParticipantID: p.ID, State: participant.StateActive})
	require.NoError(t, err)
	assert.Equal(t, participant.StateActive, got.State)
}
