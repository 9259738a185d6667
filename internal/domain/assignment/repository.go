package assignment

import "context"

// Repository persists assignments.
type Repository interface {
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id string) (*Assignment, error)
	Update(ctx context.Context, a *Assignment) error
	ListByBatch(ctx context.Context, batchID string) ([]*Assignment, error)
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	AssignmentID  string
	ParticipantID string
}

// SubmissionRepository persists submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	Update(ctx context.Context, s *Submission) error

	// List returns submissions newest first by submission time.
	List(ctx context.Context, f SubmissionFilter) ([]*Submission, error)
}
