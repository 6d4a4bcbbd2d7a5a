package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"journalbot/internal/domain/trade"
	"journalbot/pkg/errors"
)

// Compile-time check
var _ trade.Store = (*TradeEventStore)(nil)

// TradeEventStore implements trade.Store in process memory with the same
// contract as the PostgreSQL repository: append-only, idempotent by event ID,
// monotonic timestamps per (user, instrument). Used by unit tests and as the
// harness for replay-equivalence checks.
type TradeEventStore struct {
	mu     sync.RWMutex
	events map[trade.Key][]trade.Event
	byID   map[uuid.UUID]trade.Key
}

// NewTradeEventStore creates an empty in-memory trade store
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{
		events: make(map[trade.Key][]trade.Event),
		byID:   make(map[uuid.UUID]trade.Key),
	}
}

// Append stores the event, assigning its seq. Duplicates are a no-op and the
// visible state is unchanged on rejection.
func (s *TradeEventStore) Append(ctx context.Context, event *trade.Event) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := event.Key()
	if existing, ok := s.byID[event.ID]; ok {
		for _, stored := range s.events[existing] {
			if stored.ID == event.ID {
				event.Seq = stored.Seq
				break
			}
		}
		return false, nil
	}

	tail := s.events[key]
	if n := len(tail); n > 0 && event.Timestamp.Before(tail[n-1].Timestamp) {
		return false, errors.Wrapf(errors.ErrOutOfOrder,
			"event at %s predates latest %s for %s",
			event.Timestamp.Format(time.RFC3339),
			tail[n-1].Timestamp.Format(time.RFC3339),
			event.Instrument,
		)
	}

	event.Seq = int64(len(tail)) + 1
	s.events[key] = append(tail, *event)
	s.byID[event.ID] = key
	return true, nil
}

// List returns the pair's events with timestamps inside [from, to], ascending.
func (s *TradeEventStore) List(ctx context.Context, userID int64, instrument string, from, to time.Time) ([]trade.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := trade.Key{UserID: userID, Instrument: instrument}
	matched := []trade.Event{}
	for _, event := range s.events[key] {
		if !event.Timestamp.Before(from) && !event.Timestamp.After(to) {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

// History returns the pair's full event sequence in seq order.
func (s *TradeEventStore) History(ctx context.Context, userID int64, instrument string) ([]trade.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := trade.Key{UserID: userID, Instrument: instrument}
	history := make([]trade.Event, len(s.events[key]))
	copy(history, s.events[key])
	return history, nil
}

// Instruments returns the user's distinct instruments, sorted.
func (s *TradeEventStore) Instruments(ctx context.Context, userID int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	instruments := []string{}
	for key := range s.events {
		if key.UserID == userID {
			instruments = append(instruments, key.Instrument)
		}
	}
	sort.Strings(instruments)
	return instruments, nil
}

// LastTimestamp returns the latest stored timestamp for the pair, or the zero
// time when the pair has no history.
func (s *TradeEventStore) LastTimestamp(ctx context.Context, userID int64, instrument string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := trade.Key{UserID: userID, Instrument: instrument}
	tail := s.events[key]
	if len(tail) == 0 {
		return time.Time{}, nil
	}
	return tail[len(tail)-1].Timestamp, nil
}
