package attendance

import (
	"context"
	"time"
)

// ListOptions filters attendance listings.
type ListOptions struct {
	BatchID       string
	EventLinkID   string
	ParticipantID string
}

// Repository persists attendance rows.
type Repository interface {
	// CreateMany inserts rows; existing (event, participant) pairs are skipped.
	CreateMany(ctx context.Context, rows []*Attendance) (int, error)
	GetByID(ctx context.Context, id string) (*Attendance, error)
	GetByToken(ctx context.Context, token string) (*Attendance, error)
	Update(ctx context.Context, a *Attendance) error
	List(ctx context.Context, opts ListOptions) ([]*Attendance, error)

	// FindAutoAbsentCandidates returns rows without check in whose presence is not
	// absent and whose session started at or before startedBefore.
	FindAutoAbsentCandidates(ctx context.Context, startedBefore time.Time) ([]*Attendance, error)

	// FindAutoCheckoutCandidates returns checked-in rows without check out whose
	// session ended at or before endedBefore.
	FindAutoCheckoutCandidates(ctx context.Context, endedBefore time.Time) ([]*Attendance, error)
}
