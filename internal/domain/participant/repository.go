package participant

import "context"

// ListOptions filters participant listings.
type ListOptions struct {
	BatchID   string
	PartnerID string
	State     State
	Limit     int
	Offset    int
}

// Repository persists participants.
type Repository interface {
	// Create returns ErrParticipantAlreadyExists when (batch, partner) is taken.
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, id string) (*Participant, error)
	FindByBatchAndPartner(ctx context.Context, batchID, partnerID string) (*Participant, error)
	Update(ctx context.Context, p *Participant) error

	// ListByBatch returns every participant of a batch.
	ListByBatch(ctx context.Context, batchID string) ([]*Participant, error)

	// List returns participants newest first.
	List(ctx context.Context, opts ListOptions) ([]*Participant, error)
	Count(ctx context.Context, opts ListOptions) (int, error)

	// ListIDs returns all participant ids, used by full metric refreshes.
	ListIDs(ctx context.Context) ([]string, error)
}
