package memory

import (
	"context"
	"sort"

	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// JobRepository implements recruitment.JobRepository.
type JobRepository struct{ s *Store }

// Create stores a job.
func (r *JobRepository) Create(_ context.Context, j *recruitment.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.jobs[j.ID]; ok {
		return shared.NewDomainError("job", "Create", shared.ErrAlreadyExists, "job already exists")
	}
	c := *j
	r.s.jobs[j.ID] = &c
	return nil
}

// GetByID returns a job.
func (r *JobRepository) GetByID(_ context.Context, id string) (*recruitment.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	j, ok := r.s.jobs[id]
	if !ok {
		return nil, shared.ErrJobNotFound
	}
	c := *j
	return &c, nil
}

// Update saves a job.
func (r *JobRepository) Update(_ context.Context, j *recruitment.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.jobs[j.ID]; !ok {
		return shared.ErrJobNotFound
	}
	c := *j
	r.s.jobs[j.ID] = &c
	return nil
}

// ApplicantRepository implements recruitment.ApplicantRepository.
type ApplicantRepository struct{ s *Store }

// Create stores an applicant.
func (r *ApplicantRepository) Create(_ context.Context, a *recruitment.Applicant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *a
	r.s.applicants[a.ID] = &c
	return nil
}

// GetByID returns an applicant.
func (r *ApplicantRepository) GetByID(_ context.Context, id string) (*recruitment.Applicant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.applicants[id]
	if !ok {
		return nil, shared.ErrApplicantNotFound
	}
	c := *a
	return &c, nil
}

// Update saves an applicant.
func (r *ApplicantRepository) Update(_ context.Context, a *recruitment.Applicant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.applicants[a.ID]; !ok {
		return shared.ErrApplicantNotFound
	}
	c := *a
	r.s.applicants[a.ID] = &c
	return nil
}

// GetStage returns a stage.
func (r *ApplicantRepository) GetStage(_ context.Context, id string) (*recruitment.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.stages[id]
	if !ok {
		return nil, shared.ErrStageNotFound
	}
	c := *st
	return &c, nil
}

// CreateStage stores a stage.
func (r *ApplicantRepository) CreateStage(_ context.Context, st *recruitment.Stage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *st
	r.s.stages[st.ID] = &c
	return nil
}

// ListStages returns stages by sequence.
func (r *ApplicantRepository) ListStages(_ context.Context) ([]*recruitment.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*recruitment.Stage, 0, len(r.s.stages))
	for _, st := range r.s.stages {
		c := *st
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// PartnerRepository implements recruitment.PartnerRepository.
type PartnerRepository struct{ s *Store }

// Create stores a partner.
func (r *PartnerRepository) Create(_ context.Context, p *recruitment.Partner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.partners[p.ID]; ok {
		return shared.NewDomainError("partner", "Create", shared.ErrAlreadyExists, "partner already exists")
	}
	c := *p
	r.s.partners[p.ID] = &c
	return nil
}

// GetByID returns a partner.
func (r *PartnerRepository) GetByID(_ context.Context, id string) (*recruitment.Partner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.partners[id]
	if !ok {
		return nil, shared.ErrPartnerNotFound
	}
	c := *p
	return &c, nil
}

// GetByIDs returns the partners found among ids.
func (r *PartnerRepository) GetByIDs(_ context.Context, ids []string) (map[string]*recruitment.Partner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]*recruitment.Partner, len(ids))
	for _, id := range ids {
		if p, ok := r.s.partners[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

// UserRepository implements account.Repository.
type UserRepository struct{ s *Store }

// Create stores a portal user.
func (r *UserRepository) Create(_ context.Context, u *account.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	login := account.NormalizeLogin(u.Login)
	for _, existing := range r.s.users {
		if existing.Login == login {
			return shared.NewDomainError("account", "Create", shared.ErrAlreadyExists, "login already taken")
		}
	}
	c := *u
	c.Login = login
	r.s.users[u.ID] = &c
	return nil
}

// GetByLogin returns the user with login.
func (r *UserRepository) GetByLogin(_ context.Context, login string) (*account.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	login = account.NormalizeLogin(login)
	for _, u := range r.s.users {
		if u.Login == login {
			c := *u
			return &c, nil
		}
	}
	return nil, shared.NewDomainError("account", "Find", shared.ErrNotFound, "user not found")
}
