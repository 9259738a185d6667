package shared

import "context"

// Transactor runs fn as one unit of work. Repositories called with the ctx
// passed to fn take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactor runs fn directly.
type NopTransactor struct{}

// WithinTx implements Transactor.
func (NopTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
