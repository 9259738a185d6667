package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

var t0 = time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repos := New()
	boom := errors.New("boom")

	err := repos.Store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repos.Batches.Create(ctx, &batch.Batch{ID: "b1", Name: "Alpha"}))
		_, err := repos.Batches.NextCode(ctx, 2026)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Batches.GetByID(ctx, "b1")
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)

	code, err := repos.Batches.NextCode(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "OJT/2026/0001", code)
}

func TestWithinTx_Nested(t *testing.T) {
	ctx := context.Background()
	repos := New()

	err := repos.Store.WithinTx(ctx, func(ctx context.Context) error {
		return repos.Store.WithinTx(ctx, func(ctx context.Context) error {
			return repos.Batches.Create(ctx, &batch.Batch{ID: "b1", Name: "Alpha"})
		})
	})
	require.NoError(t, err)

	_, err = repos.Batches.GetByID(ctx, "b1")
	assert.NoError(t, err)
}

func TestBatchRepository_Unique(t *testing.T) {
	ctx := context.Background()
	repos := New()

	require.NoError(t, repos.Batches.Create(ctx, &batch.Batch{ID: "b1", Name: "Alpha", JobID: "j1"}))

	err := repos.Batches.Create(ctx, &batch.Batch{ID: "b2", Name: "Alpha"})
	assert.ErrorIs(t, err, shared.ErrBatchNameTaken)

	err = repos.Batches.Create(ctx, &batch.Batch{ID: "b3", Name: "Beta", JobID: "j1"})
	assert.ErrorIs(t, err, shared.ErrJobAlreadyLinked)
}

func TestBatchRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repos := New()
	require.NoError(t, repos.Batches.Create(ctx, &batch.Batch{ID: "b1", Name: "Alpha", MentorIDs: []string{"m1"}}))

	got, err := repos.Batches.GetByID(ctx, "b1")
	require.NoError(t, err)
	got.Name = "Changed"
	got.MentorIDs[0] = "m2"

	again, err := repos.Batches.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", again.Name)
	assert.Equal(t, []string{"m1"}, again.MentorIDs)
}

func TestParticipantRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repos := New()

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, repos.Participants.Create(ctx, &participant.Participant{
			ID:        id,
			BatchID:   "b1",
			PartnerID: "partner-" + id,
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := repos.Participants.List(ctx, participant.ListOptions{BatchID: "b1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p3", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)

	n, err := repos.Participants.Count(ctx, participant.ListOptions{BatchID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	err = repos.Participants.Create(ctx, &participant.Participant{ID: "p4", BatchID: "b1", PartnerID: "partner-p1"})
	assert.ErrorIs(t, err, shared.ErrParticipantAlreadyExists)
}

func TestAttendanceRepository_CreateManySkipsExisting(t *testing.T) {
	ctx := context.Background()
	repos := New()

	rows := []*attendance.Attendance{
		attendance.NewAbsent("a1", "b1", "e1", "p1", t0),
		attendance.NewAbsent("a2", "b1", "e1", "p2", t0),
	}
	n, err := repos.Attendance.CreateMany(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repos.Attendance.CreateMany(ctx, []*attendance.Attendance{
		attendance.NewAbsent("a3", "b1", "e1", "p1", t0),
		attendance.NewAbsent("a4", "b1", "e2", "p1", t0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repos.Attendance.GetByToken(ctx, rows[0].QRToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestAttendanceRepository_CronCandidates(t *testing.T) {
	ctx := context.Background()
	repos := New()

	start := t0
	end := t0.Add(2 * time.Hour)
	require.NoError(t, repos.EventLinks.Create(ctx, &agenda.EventLink{ID: "e1", BatchID: "b1", Title: "Kickoff", DateStart: &start, DateEnd: &end}))

	pending := attendance.NewAbsent("a1", "b1", "e1", "p1", t0)
	pending.Presence = attendance.PresencePresent

	checkedIn := attendance.NewAbsent("a2", "b1", "e1", "p2", t0)
	in := start.Add(5 * time.Minute)
	checkedIn.CheckIn = &in
	checkedIn.Presence = attendance.PresencePresent

	untouched := attendance.NewAbsent("a3", "b1", "e1", "p3", t0)

	_, err := repos.Attendance.CreateMany(ctx, []*attendance.Attendance{pending, checkedIn, untouched})
	require.NoError(t, err)

	absent, err := repos.Attendance.FindAutoAbsentCandidates(ctx, start)
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, "a1", absent[0].ID)

	absent, err = repos.Attendance.FindAutoAbsentCandidates(ctx, start.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, absent)

	checkout, err := repos.Attendance.FindAutoCheckoutCandidates(ctx, end)
	require.NoError(t, err)
	require.Len(t, checkout, 1)
	assert.Equal(t, "a2", checkout[0].ID)
}

func TestBatchCounters(t *testing.T) {
	ctx := context.Background()
	repos := New()

	require.NoError(t, repos.Participants.Create(ctx, &participant.Participant{ID: "p1", BatchID: "b1", PartnerID: "x"}))
	require.NoError(t, repos.EventLinks.Create(ctx, &agenda.EventLink{ID: "e1", BatchID: "b1", Title: "Kickoff"}))
	_, err := repos.Attendance.CreateMany(ctx, []*attendance.Attendance{attendance.NewAbsent("a1", "b1", "e1", "p1", t0)})
	require.NoError(t, err)

	c, err := repos.Batches.Counters(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, batch.Counters{Participants: 1, Events: 1, Attendance: 1}, c)

	ec, err := repos.EventLinks.Counters(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, agenda.Counters{Participants: 1, Attendance: 1}, ec)
}

func TestCertificateRepository_NextNumber(t *testing.T) {
	ctx := context.Background()
	repos := New()
	require.NoError(t, repos.Certificates.Create(ctx, &certificate.Certificate{ID: "c1", Number: "X/C001", ParticipantID: "p1", BatchID: "b1"}))

	// The sequence starts after certificates already on record.
	n, err := repos.Certificates.NextNumber(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	boom := errors.New("boom")
	err = repos.Store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repos.Certificates.NextNumber(ctx, "b1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err = repos.Certificates.NextNumber(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repos.Certificates.NextNumber(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = repos.Certificates.Create(ctx, &certificate.Certificate{ID: "c2", Number: "X/C001", ParticipantID: "p2", BatchID: "b1"})
	assert.ErrorIs(t, err, shared.ErrCertificateNumber)
}
