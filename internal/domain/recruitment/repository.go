package recruitment

import "context"

// JobRepository persists job openings.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, job *Job) error
}

// ApplicantRepository persists applicants and their hiring stages.
type ApplicantRepository interface {
	Create(ctx context.Context, applicant *Applicant) error
	GetByID(ctx context.Context, id string) (*Applicant, error)
	Update(ctx context.Context, applicant *Applicant) error
	GetStage(ctx context.Context, id string) (*Stage, error)
	CreateStage(ctx context.Context, stage *Stage) error
	ListStages(ctx context.Context) ([]*Stage, error)
}

// PartnerRepository persists contacts.
type PartnerRepository interface {
	Create(ctx context.Context, partner *Partner) error
	GetByID(ctx context.Context, id string) (*Partner, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*Partner, error)
}
