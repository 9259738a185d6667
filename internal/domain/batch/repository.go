package batch

import "context"

// ListOptions filters and paginates batch listings.
type ListOptions struct {
	State  State
	Search string
	Limit  int
	Offset int
}

// Repository persists batches.
type Repository interface {
	// Create stores a new batch. Returns ErrBatchNameTaken or ErrJobAlreadyLinked
	// when the unique name or job constraint is violated.
	Create(ctx context.Context, b *Batch) error

	// GetByID returns ErrBatchNotFound when missing.
	GetByID(ctx context.Context, id string) (*Batch, error)

	// FindByJobID returns the batches linked to a job (at most one).
	FindByJobID(ctx context.Context, jobID string) ([]*Batch, error)

	Update(ctx context.Context, b *Batch) error

	// List returns batches ordered by start date descending.
	List(ctx context.Context, opts ListOptions) ([]*Batch, error)

	// NextCode allocates the next sequence code for a batch created in year.
	NextCode(ctx context.Context, year int) (string, error)

	// Counters returns the related record counts of a batch.
	Counters(ctx context.Context, id string) (Counters, error)
}

// CountersCache caches Counters between writes. Get reports ok=false on a miss.
type CountersCache interface {
	Get(ctx context.Context, batchID string) (c Counters, ok bool, err error)
	Set(ctx context.Context, batchID string, c Counters) error
	Invalidate(ctx context.Context, batchID string) error
}
