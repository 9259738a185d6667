// Package memory provides in-memory repositories. They back the test suites
// and let the server run locally without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
)

// Store holds every table. Repositories obtained from the same Store see each
// other's writes, so cross-aggregate queries (counters, cron candidates) work.
type Store struct {
	mu sync.RWMutex // protects the maps below

	partners     map[string]*recruitment.Partner
	jobs         map[string]*recruitment.Job
	stages       map[string]*recruitment.Stage
	applicants   map[string]*recruitment.Applicant
	batches      map[string]*batch.Batch
	sequences    map[int]int
	participants map[string]*participant.Participant
	eventLinks   map[string]*agenda.EventLink
	assignments  map[string]*assignment.Assignment
	submissions  map[string]*assignment.Submission
	attendance   map[string]*attendance.Attendance
	certificates map[string]*certificate.Certificate
	certSeq      map[string]int
	users        map[string]*account.User

	txMu sync.Mutex // serialises WithinTx
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		partners:     make(map[string]*recruitment.Partner),
		jobs:         make(map[string]*recruitment.Job),
		stages:       make(map[string]*recruitment.Stage),
		applicants:   make(map[string]*recruitment.Applicant),
		batches:      make(map[string]*batch.Batch),
		sequences:    make(map[int]int),
		participants: make(map[string]*participant.Participant),
		eventLinks:   make(map[string]*agenda.EventLink),
		assignments:  make(map[string]*assignment.Assignment),
		submissions:  make(map[string]*assignment.Submission),
		attendance:   make(map[string]*attendance.Attendance),
		certificates: make(map[string]*certificate.Certificate),
		certSeq:      make(map[string]int),
		users:        make(map[string]*account.User),
	}
}

type txKey struct{}

// WithinTx implements shared.Transactor. When fn fails every table is
// restored to its state before the call.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	partners     map[string]*recruitment.Partner
	jobs         map[string]*recruitment.Job
	stages       map[string]*recruitment.Stage
	applicants   map[string]*recruitment.Applicant
	batches      map[string]*batch.Batch
	sequences    map[int]int
	participants map[string]*participant.Participant
	eventLinks   map[string]*agenda.EventLink
	assignments  map[string]*assignment.Assignment
	submissions  map[string]*assignment.Submission
	attendance   map[string]*attendance.Attendance
	certificates map[string]*certificate.Certificate
	certSeq      map[string]int
	users        map[string]*account.User
}

// Rows are replaced on every write, never mutated in place, so copying the
// maps is enough to capture a consistent snapshot.
func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return snapshot{
		partners:     cloneMap(s.partners),
		jobs:         cloneMap(s.jobs),
		stages:       cloneMap(s.stages),
		applicants:   cloneMap(s.applicants),
		batches:      cloneMap(s.batches),
		sequences:    cloneMap(s.sequences),
		participants: cloneMap(s.participants),
		eventLinks:   cloneMap(s.eventLinks),
		assignments:  cloneMap(s.assignments),
		submissions:  cloneMap(s.submissions),
		attendance:   cloneMap(s.attendance),
		certificates: cloneMap(s.certificates),
		certSeq:      cloneMap(s.certSeq),
		users:        cloneMap(s.users),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partners = snap.partners
	s.jobs = snap.jobs
	s.stages = snap.stages
	s.applicants = snap.applicants
	s.batches = snap.batches
	s.sequences = snap.sequences
	s.participants = snap.participants
	s.eventLinks = snap.eventLinks
	s.assignments = snap.assignments
	s.submissions = snap.submissions
	s.attendance = snap.attendance
	s.certificates = snap.certificates
	s.certSeq = snap.certSeq
	s.users = snap.users
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Repositories bundles a repository of every aggregate over one store.
type Repositories struct {
	Store        *Store
	Jobs         *JobRepository
	Applicants   *ApplicantRepository
	Partners     *PartnerRepository
	Batches      *BatchRepository
	Participants *ParticipantRepository
	EventLinks   *EventLinkRepository
	Assignments  *AssignmentRepository
	Submissions  *SubmissionRepository
	Attendance   *AttendanceRepository
	Certificates *CertificateRepository
	Users        *UserRepository
}

// New creates an empty store and its repositories.
func New() *Repositories {
	s := NewStore()
	return &Repositories{
		Store:        s,
		Jobs:         &JobRepository{s: s},
		Applicants:   &ApplicantRepository{s: s},
		Partners:     &PartnerRepository{s: s},
		Batches:      &BatchRepository{s: s},
		Participants: &ParticipantRepository{s: s},
		EventLinks:   &EventLinkRepository{s: s},
		Assignments:  &AssignmentRepository{s: s},
		Submissions:  &SubmissionRepository{s: s},
		Attendance:   &AttendanceRepository{s: s},
		Certificates: &CertificateRepository{s: s},
		Users:        &UserRepository{s: s},
	}
}
