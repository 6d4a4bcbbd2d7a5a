package position

import (
	"context"
)

// Cache stores derived position snapshots keyed by (user, instrument). A
// cache is never authoritative: a miss or stale entry is answered by
// rebuilding from the event log. Implementations return
// errors.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, userID int64, instrument string) (*Position, error)
	Put(ctx context.Context, pos *Position) error
	Delete(ctx context.Context, userID int64, instrument string) error
}
