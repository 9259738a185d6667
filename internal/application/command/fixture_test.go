package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/memory"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// 2026-03-02 09:00 Jakarta.
var t0 = time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []shared.Event
}

func (l *eventLog) Publish(_ context.Context, e shared.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []shared.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]shared.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.EventType())
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

type countingRecorder struct {
	checkIns     map[string]int
	finalized    map[string]int
	certificates int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{checkIns: map[string]int{}, finalized: map[string]int{}}
}

func (r *countingRecorder) CheckInRecorded(method, presence string) {
	r.checkIns[method+"/"+presence]++
}

func (r *countingRecorder) AttendanceFinalized(kind string, n int) { r.finalized[kind] += n }

func (r *countingRecorder) CertificatesIssued(n int) { r.certificates += n }

type fixture struct {
	t        *testing.T
	ctx      context.Context
	repos    *memory.Repositories
	h        *Handlers
	clock    *testClock
	events   *eventLog
	recorder *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		repos:    repos,
		clock:    &testClock{t: t0},
		events:   &eventLog{},
		recorder: newCountingRecorder(),
	}
	n := 0
	f.h = NewHandlers(Deps{
		Tx:     repos.Store,
		Clock:  f.clock,
		Events: f.events,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
		Recorder:     f.recorder,
		Jobs:         repos.Jobs,
		Applicants:   repos.Applicants,
		Partners:     repos.Partners,
		Batches:      repos.Batches,
		Participants: repos.Participants,
		EventLinks:   repos.EventLinks,
		Assignments:  repos.Assignments,
		Submissions:  repos.Submissions,
		Attendance:   repos.Attendance,
		Certificates: repos.Certificates,
	})
	return f
}

// batch creates a batch and walks it to state.
func (f *fixture) batch(name string, state batch.State) *batch.Batch {
	f.t.Helper()
	res, err := f.h.Batches.CreateBatch(f.ctx, CreateBatchCommand{
		Name:      name,
		Capacity:  ptr(10),
		StartDate: timeutil.Date(2026, 3, 1),
		EndDate:   timeutil.Date(2026, 4, 30),
	})
	require.NoError(f.t, err)

	path := map[batch.State][]batch.State{
		batch.StateDraft:       nil,
		batch.StateRecruitment: {batch.StateRecruitment},
		batch.StateOngoing:     {batch.StateRecruitment, batch.StateOngoing},
		batch.StateDone:        {batch.StateRecruitment, batch.StateOngoing, batch.StateDone},
	}[state]
	b := res.Batch
	for _, s := range path {
		b, err = f.h.Batches.ChangeBatchState(f.ctx, ChangeBatchStateCommand{BatchID: b.ID, State: s})
		require.NoError(f.t, err)
	}
	return b
}

func (f *fixture) partner(id, name string) *recruitment.Partner {
	f.t.Helper()
	p := &recruitment.Partner{ID: id, Name: name, CreatedAt: t0}
	require.NoError(f.t, f.repos.Partners.Create(f.ctx, p))
	return p
}

func (f *fixture) enroll(b *batch.Batch, partnerID, name string) *participant.Participant {
	f.t.Helper()
	f.partner(partnerID, name)
	res, err := f.h.Enrollment.EnrollParticipant(f.ctx, EnrollParticipantCommand{BatchID: b.ID, PartnerID: partnerID})
	require.NoError(f.t, err)
	return res.Participant
}

func (f *fixture) session(b *batch.Batch, title string, start, end time.Time) *agenda.EventLink {
	f.t.Helper()
	res, err := f.h.Agenda.CreateEventLink(f.ctx, CreateEventLinkCommand{
		BatchID: b.ID,
		EventLinkFields: EventLinkFields{
			Title:            title,
			DateStart:        &start,
			DateEnd:          &end,
			OnlineMeetingURL: "meet.example.com/ojt",
		},
	})
	require.NoError(f.t, err)
	return res.EventLink
}

func (f *fixture) row(participantID, eventLinkID string) *attendance.Attendance {
	f.t.Helper()
	rows, err := f.repos.Attendance.List(f.ctx, attendance.ListOptions{ParticipantID: participantID, EventLinkID: eventLinkID})
	require.NoError(f.t, err)
	require.Len(f.t, rows, 1)
	return rows[0]
}

func (f *fixture) participant(id string) *participant.Participant {
	f.t.Helper()
	p, err := f.repos.Participants.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return p
}
