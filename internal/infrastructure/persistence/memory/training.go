package memory

import (
	"context"
	"sort"
	"time"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LINKS
// ══════════════════════════════════════════════════════════════════════════════

// EventLinkRepository implements agenda.Repository.
type EventLinkRepository struct{ s *Store }

// Create stores an event link.
func (r *EventLinkRepository) Create(_ context.Context, e *agenda.EventLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *e
	r.s.eventLinks[e.ID] = &c
	return nil
}

// GetByID returns an event link.
func (r *EventLinkRepository) GetByID(_ context.Context, id string) (*agenda.EventLink, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.eventLinks[id]
	if !ok {
		return nil, shared.ErrEventLinkNotFound
	}
	c := *e
	return &c, nil
}

// Update saves an event link.
func (r *EventLinkRepository) Update(_ context.Context, e *agenda.EventLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.eventLinks[e.ID]; !ok {
		return shared.ErrEventLinkNotFound
	}
	c := *e
	r.s.eventLinks[e.ID] = &c
	return nil
}

// ListByBatch returns the event links of a batch ordered by start.
func (r *EventLinkRepository) ListByBatch(_ context.Context, batchID string) ([]*agenda.EventLink, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*agenda.EventLink
	for _, e := range r.s.eventLinks {
		if e.BatchID == batchID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DateStart, out[j].DateStart
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out, nil
}

// Counters returns the related record counts of an event link.
func (r *EventLinkRepository) Counters(_ context.Context, id string) (agenda.Counters, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var c agenda.Counters
	e, ok := r.s.eventLinks[id]
	if !ok {
		return c, nil
	}
	for _, p := range r.s.participants {
		if p.BatchID == e.BatchID {
			c.Participants++
		}
	}
	for _, a := range r.s.attendance {
		if a.EventLinkID == id {
			c.Attendance++
		}
	}
	for _, a := range r.s.assignments {
		if a.EventLinkID == id {
			c.Assignments++
		}
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS & SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentRepository implements assignment.Repository.
type AssignmentRepository struct{ s *Store }

// Create stores an assignment.
func (r *AssignmentRepository) Create(_ context.Context, a *assignment.Assignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *a
	r.s.assignments[a.ID] = &c
	return nil
}

// GetByID returns an assignment.
func (r *AssignmentRepository) GetByID(_ context.Context, id string) (*assignment.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.assignments[id]
	if !ok {
		return nil, shared.ErrAssignmentNotFound
	}
	c := *a
	return &c, nil
}

// Update saves an assignment.
func (r *AssignmentRepository) Update(_ context.Context, a *assignment.Assignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.assignments[a.ID]; !ok {
		return shared.ErrAssignmentNotFound
	}
	c := *a
	r.s.assignments[a.ID] = &c
	return nil
}

// ListByBatch returns the assignments of a batch.
func (r *AssignmentRepository) ListByBatch(_ context.Context, batchID string) ([]*assignment.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*assignment.Assignment
	for _, a := range r.s.assignments {
		if a.BatchID == batchID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SubmissionRepository implements assignment.SubmissionRepository.
type SubmissionRepository struct{ s *Store }

func copySubmission(s *assignment.Submission) *assignment.Submission {
	c := *s
	c.Attachments = cloneStrings(s.Attachments)
	return &c
}

// Create stores a submission.
func (r *SubmissionRepository) Create(_ context.Context, s *assignment.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.submissions[s.ID] = copySubmission(s)
	return nil
}

// GetByID returns a submission.
func (r *SubmissionRepository) GetByID(_ context.Context, id string) (*assignment.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	s, ok := r.s.submissions[id]
	if !ok {
		return nil, shared.ErrSubmissionNotFound
	}
	return copySubmission(s), nil
}

// Update saves a submission.
func (r *SubmissionRepository) Update(_ context.Context, s *assignment.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.submissions[s.ID]; !ok {
		return shared.ErrSubmissionNotFound
	}
	r.s.submissions[s.ID] = copySubmission(s)
	return nil
}

// List returns submissions newest first by submission time.
func (r *SubmissionRepository) List(_ context.Context, f assignment.SubmissionFilter) ([]*assignment.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*assignment.Submission
	for _, s := range r.s.submissions {
		if f.AssignmentID != "" && s.AssignmentID != f.AssignmentID {
			continue
		}
		if f.ParticipantID != "" && s.ParticipantID != f.ParticipantID {
			continue
		}
		out = append(out, copySubmission(s))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].SubmittedOn, out[j].SubmittedOn
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository.
type AttendanceRepository struct{ s *Store }

// CreateMany inserts rows; existing (event, participant) pairs are skipped.
func (r *AttendanceRepository) CreateMany(_ context.Context, rows []*attendance.Attendance) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	have := make(map[attendance.Key]bool, len(r.s.attendance))
	tokens := make(map[string]bool, len(r.s.attendance))
	for _, a := range r.s.attendance {
		if a.EventLinkID != "" {
			have[attendance.Key{EventLinkID: a.EventLinkID, ParticipantID: a.ParticipantID}] = true
		}
		tokens[a.QRToken] = true
	}

	created := 0
	for _, a := range rows {
		k := attendance.Key{EventLinkID: a.EventLinkID, ParticipantID: a.ParticipantID}
		if a.EventLinkID != "" && have[k] {
			continue
		}
		if tokens[a.QRToken] {
			return created, shared.ErrAttendanceDuplicate
		}
		have[k] = true
		tokens[a.QRToken] = true
		c := *a
		r.s.attendance[a.ID] = &c
		created++
	}
	return created, nil
}

// GetByID returns an attendance row.
func (r *AttendanceRepository) GetByID(_ context.Context, id string) (*attendance.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.attendance[id]
	if !ok {
		return nil, shared.ErrAttendanceNotFound
	}
	c := *a
	return &c, nil
}

// GetByToken returns the row a QR token belongs to.
func (r *AttendanceRepository) GetByToken(_ context.Context, token string) (*attendance.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if token == "" {
		return nil, shared.ErrAttendanceNotFound
	}
	for _, a := range r.s.attendance {
		if a.QRToken == token {
			c := *a
			return &c, nil
		}
	}
	return nil, shared.ErrAttendanceNotFound
}

// Update saves an attendance row.
func (r *AttendanceRepository) Update(_ context.Context, a *attendance.Attendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.attendance[a.ID]; !ok {
		return shared.ErrAttendanceNotFound
	}
	c := *a
	r.s.attendance[a.ID] = &c
	return nil
}

// List returns attendance rows, latest sessions first.
func (r *AttendanceRepository) List(_ context.Context, opts attendance.ListOptions) ([]*attendance.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*attendance.Attendance
	for _, a := range r.s.attendance {
		if opts.BatchID != "" && a.BatchID != opts.BatchID {
			continue
		}
		if opts.EventLinkID != "" && a.EventLinkID != opts.EventLinkID {
			continue
		}
		if opts.ParticipantID != "" && a.ParticipantID != opts.ParticipantID {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	start := func(a *attendance.Attendance) *time.Time {
		if e, ok := r.s.eventLinks[a.EventLinkID]; ok {
			return e.DateStart
		}
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := start(out[i]), start(out[j])
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})
	return out, nil
}

// FindAutoAbsentCandidates returns rows without check in, not yet absent,
// whose session started at or before startedBefore.
func (r *AttendanceRepository) FindAutoAbsentCandidates(_ context.Context, startedBefore time.Time) ([]*attendance.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*attendance.Attendance
	for _, a := range r.s.attendance {
		e, ok := r.s.eventLinks[a.EventLinkID]
		if !ok || e.DateStart == nil || e.DateStart.After(startedBefore) {
			continue
		}
		if a.CheckIn != nil || a.Presence == attendance.PresenceAbsent {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sortByID(out)
	return out, nil
}

// FindAutoCheckoutCandidates returns checked-in rows without check out whose
// session ended at or before endedBefore.
func (r *AttendanceRepository) FindAutoCheckoutCandidates(_ context.Context, endedBefore time.Time) ([]*attendance.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*attendance.Attendance
	for _, a := range r.s.attendance {
		e, ok := r.s.eventLinks[a.EventLinkID]
		if !ok || e.DateEnd == nil || e.DateEnd.After(endedBefore) {
			continue
		}
		if a.CheckIn == nil || a.CheckOut != nil {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sortByID(out)
	return out, nil
}

func sortByID(rows []*attendance.Attendance) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements certificate.Repository.
type CertificateRepository struct{ s *Store }

// Create stores a certificate; a participant holds at most one and numbers
// are unique within a batch.
func (r *CertificateRepository) Create(_ context.Context, c *certificate.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, other := range r.s.certificates {
		if other.ParticipantID == c.ParticipantID {
			return shared.ErrCertificateIssued
		}
		if other.BatchID == c.BatchID && other.Number == c.Number {
			return shared.ErrCertificateNumber
		}
	}
	cp := *c
	r.s.certificates[c.ID] = &cp
	return nil
}

// GetByID returns a certificate.
func (r *CertificateRepository) GetByID(_ context.Context, id string) (*certificate.Certificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.certificates[id]
	if !ok {
		return nil, shared.ErrCertificateNotFound
	}
	cp := *c
	return &cp, nil
}

// FindByParticipant returns the certificates of a participant.
func (r *CertificateRepository) FindByParticipant(_ context.Context, participantID string) ([]*certificate.Certificate, error) {
	return r.where(func(c *certificate.Certificate) bool { return c.ParticipantID == participantID }), nil
}

// ListByBatch returns the certificates of a batch.
func (r *CertificateRepository) ListByBatch(_ context.Context, batchID string) ([]*certificate.Certificate, error) {
	return r.where(func(c *certificate.Certificate) bool { return c.BatchID == batchID }), nil
}

// NextNumber allocates the next certificate sequence of a batch.
func (r *CertificateRepository) NextNumber(_ context.Context, batchID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.certSeq[batchID]
	if !ok {
		for _, c := range r.s.certificates {
			if c.BatchID == batchID {
				n++
			}
		}
	}
	n++
	r.s.certSeq[batchID] = n
	return n, nil
}

func (r *CertificateRepository) where(keep func(*certificate.Certificate) bool) []*certificate.Certificate {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*certificate.Certificate
	for _, c := range r.s.certificates {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateIssued.After(out[j].DateIssued) })
	return out
}
