package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// BatchRepository implements batch.Repository.
type BatchRepository struct{ s *Store }

func copyBatch(b *batch.Batch) *batch.Batch {
	c := *b
	c.MentorIDs = cloneStrings(b.MentorIDs)
	return &c
}

// checkUnique enforces the unique name and job constraints. Caller holds the lock.
func (r *BatchRepository) checkUnique(b *batch.Batch) error {
	for id, other := range r.s.batches {
		if id == b.ID {
			continue
		}
		if other.Name == b.Name {
			return shared.ErrBatchNameTaken
		}
		if b.JobID != "" && other.JobID == b.JobID {
			return shared.ErrJobAlreadyLinked
		}
	}
	return nil
}

// Create stores a new batch.
func (r *BatchRepository) Create(_ context.Context, b *batch.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.batches[b.ID]; ok {
		return shared.NewDomainError("batch", "Create", shared.ErrAlreadyExists, "batch already exists")
	}
	if err := r.checkUnique(b); err != nil {
		return err
	}
	r.s.batches[b.ID] = copyBatch(b)
	return nil
}

// GetByID returns a batch.
func (r *BatchRepository) GetByID(_ context.Context, id string) (*batch.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.batches[id]
	if !ok {
		return nil, shared.ErrBatchNotFound
	}
	return copyBatch(b), nil
}

// FindByJobID returns the batches linked to a job.
func (r *BatchRepository) FindByJobID(_ context.Context, jobID string) ([]*batch.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*batch.Batch
	for _, b := range r.s.batches {
		if jobID != "" && b.JobID == jobID {
			out = append(out, copyBatch(b))
		}
	}
	return out, nil
}

// Update saves a batch.
func (r *BatchRepository) Update(_ context.Context, b *batch.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.batches[b.ID]; !ok {
		return shared.ErrBatchNotFound
	}
	if err := r.checkUnique(b); err != nil {
		return err
	}
	r.s.batches[b.ID] = copyBatch(b)
	return nil
}

// List returns batches ordered by start date descending.
func (r *BatchRepository) List(_ context.Context, opts batch.ListOptions) ([]*batch.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	var out []*batch.Batch
	for _, b := range r.s.batches {
		if opts.State != "" && b.State != opts.State {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Name), search) &&
			!strings.Contains(strings.ToLower(b.Code), search) {
			continue
		}
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].Name < out[j].Name
	})
	return paginate(out, opts.Limit, opts.Offset), nil
}

// NextCode allocates the next sequence code for year.
func (r *BatchRepository) NextCode(_ context.Context, year int) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.sequences[year]++
	return batch.FormatCode(year, r.s.sequences[year]), nil
}

// Counters returns the related record counts of a batch.
func (r *BatchRepository) Counters(_ context.Context, id string) (batch.Counters, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var c batch.Counters
	for _, p := range r.s.participants {
		if p.BatchID == id {
			c.Participants++
		}
	}
	for _, e := range r.s.eventLinks {
		if e.BatchID == id {
			c.Events++
		}
	}
	for _, a := range r.s.assignments {
		if a.BatchID == id {
			c.Assignments++
		}
	}
	for _, a := range r.s.attendance {
		if a.BatchID == id {
			c.Attendance++
		}
	}
	for _, cert := range r.s.certificates {
		if cert.BatchID == id {
			c.Certificates++
		}
	}
	return c, nil
}

// ParticipantRepository implements participant.Repository.
type ParticipantRepository struct{ s *Store }

// Create stores a participant.
func (r *ParticipantRepository) Create(_ context.Context, p *participant.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, other := range r.s.participants {
		if other.BatchID == p.BatchID && other.PartnerID == p.PartnerID {
			return shared.ErrParticipantAlreadyExists
		}
	}
	c := *p
	r.s.participants[p.ID] = &c
	return nil
}

// GetByID returns a participant.
func (r *ParticipantRepository) GetByID(_ context.Context, id string) (*participant.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.participants[id]
	if !ok {
		return nil, shared.ErrParticipantNotFound
	}
	c := *p
	return &c, nil
}

// FindByBatchAndPartner returns the participant of partnerID in batchID.
func (r *ParticipantRepository) FindByBatchAndPartner(_ context.Context, batchID, partnerID string) (*participant.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.participants {
		if p.BatchID == batchID && p.PartnerID == partnerID {
			c := *p
			return &c, nil
		}
	}
	return nil, shared.ErrParticipantNotFound
}

// Update saves a participant.
func (r *ParticipantRepository) Update(_ context.Context, p *participant.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.participants[p.ID]; !ok {
		return shared.ErrParticipantNotFound
	}
	for id, other := range r.s.participants {
		if id != p.ID && other.BatchID == p.BatchID && other.PartnerID == p.PartnerID {
			return shared.ErrParticipantAlreadyExists
		}
	}
	c := *p
	r.s.participants[p.ID] = &c
	return nil
}

// ListByBatch returns every participant of a batch ordered by name.
func (r *ParticipantRepository) ListByBatch(_ context.Context, batchID string) ([]*participant.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*participant.Participant
	for _, p := range r.s.participants {
		if p.BatchID == batchID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ParticipantRepository) filter(opts participant.ListOptions) []*participant.Participant {
	var out []*participant.Participant
	for _, p := range r.s.participants {
		if opts.BatchID != "" && p.BatchID != opts.BatchID {
			continue
		}
		if opts.PartnerID != "" && p.PartnerID != opts.PartnerID {
			continue
		}
		if opts.State != "" && p.State != opts.State {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out
}

// List returns participants newest first.
func (r *ParticipantRepository) List(_ context.Context, opts participant.ListOptions) ([]*participant.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := r.filter(opts)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, opts.Limit, opts.Offset), nil
}

// Count returns the number of participants matching opts.
func (r *ParticipantRepository) Count(_ context.Context, opts participant.ListOptions) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.filter(opts)), nil
}

// ListIDs returns all participant ids.
func (r *ParticipantRepository) ListIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]string, 0, len(r.s.participants))
	for id := range r.s.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
