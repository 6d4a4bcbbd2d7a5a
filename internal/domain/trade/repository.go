package trade

import (
	"context"
	"time"
)

// Store defines the interface for the append-only trade event log.
//
// Append is atomic: on success the event is durably visible to subsequent
// reads before the call returns; on failure nothing is stored. Append is
// idempotent keyed by event ID: re-appending an already stored ID must
// return inserted=false without a second effect. An event whose timestamp
// predates the latest stored event for the same (user, instrument) is
// rejected with errors.ErrOutOfOrder.
type Store interface {
	// Append stores the event, assigning its Seq. inserted=false means the
	// event ID was already present.
	Append(ctx context.Context, event *Event) (inserted bool, err error)

	// List returns events for one (user, instrument) with timestamps inside
	// [from, to], ascending. An empty slice, not an error, when none match.
	List(ctx context.Context, userID int64, instrument string, from, to time.Time) ([]Event, error)

	// History returns the full event sequence for one (user, instrument) in
	// seq order, for position replay.
	History(ctx context.Context, userID int64, instrument string) ([]Event, error)

	// Instruments returns the distinct instruments a user has recorded
	// events for.
	Instruments(ctx context.Context, userID int64) ([]string, error)

	// LastTimestamp returns the timestamp of the latest stored event for the
	// pair, or the zero time when the pair has no history.
	LastTimestamp(ctx context.Context, userID int64, instrument string) (time.Time, error)
}
