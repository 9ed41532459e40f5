package out

import (
	"context"
	"time"

	"tracker_server/core/domain"
)

// AttributionStore persists one visitor's attribution state.
// Implementations are bound to a single visitor for the lifetime of a request.
type AttributionStore interface {
	// Get returns the prior record, or nil when the visitor has none.
	Get(ctx context.Context) (*domain.VisitorRecord, error)

	// Apply writes the given slots; every written slot expires after ttl.
	Apply(ctx context.Context, writes []domain.StoreWrite, ttl time.Duration) error

	// Clear removes all persisted state for the visitor.
	Clear(ctx context.Context) error
}
