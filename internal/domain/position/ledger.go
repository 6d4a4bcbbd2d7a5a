package position

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"journalbot/internal/domain/trade"
	"journalbot/internal/metrics"
	"journalbot/pkg/errors"
	"journalbot/pkg/logger"
)

// Ledger derives positions from the trade event log. Folds for a given
// (user, instrument) pair are serialized behind a per-key mutex; unrelated
// pairs proceed concurrently. Readers only ever observe fully folded
// snapshots.
type Ledger struct {
	store trade.Store
	cache Cache
	locks keyedLocks
	log   *logger.Logger
}

// NewLedger constructs a position ledger. cache may be nil; every read then
// replays from the log.
func NewLedger(store trade.Store, cache Cache) *Ledger {
	return &Ledger{
		store: store,
		cache: cache,
		log:   logger.Get().With("component", "position_ledger"),
	}
}

var _ trade.Tracker = (*Ledger)(nil)

// Track folds one freshly appended event into the pair's position and
// returns the realized P&L delta the event produced. If the cached snapshot
// has drifted (the event's seq does not continue the snapshot's), the
// position is rebuilt from the log and the delta recomputed during replay.
func (l *Ledger) Track(ctx context.Context, event *trade.Event) (decimal.Decimal, error) {
	key := event.Key()
	unlock := l.locks.lock(key)
	defer unlock()

	if l.cache != nil {
		pos, err := l.cache.Get(ctx, key.UserID, key.Instrument)
		switch {
		case err == nil && event.Seq == pos.LastSeq+1:
			delta := pos.Apply(event)
			l.putCache(ctx, pos)
			return delta, nil

		case err == nil:
			// Cache drift: the snapshot missed events or ran ahead. The
			// log is the source of truth, so rebuild and pick the delta
			// out of the replay.
			l.log.Warnw("position snapshot drifted, rebuilding from log",
				"user_id", key.UserID,
				"instrument", key.Instrument,
				"snapshot_seq", pos.LastSeq,
				"event_seq", event.Seq,
			)
			metrics.PositionRebuilds.WithLabelValues("drift").Inc()

		case !errors.Is(err, errors.ErrNotFound):
			l.log.Warnw("position cache read failed, replaying from log",
				"user_id", key.UserID,
				"instrument", key.Instrument,
				"error", err,
			)
		}
	}

	rebuilt, deltas, err := l.replay(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	l.putCache(ctx, rebuilt)

	delta, ok := deltas[event.ID]
	if !ok {
		return decimal.Zero, errors.Wrapf(errors.ErrConsistency,
			"event %s missing from replay of %s", event.ID, key.Instrument)
	}
	return delta, nil
}

// Get returns the pair's position. A pair with no history yields an empty
// position value, not an error.
func (l *Ledger) Get(ctx context.Context, userID int64, instrument string) (*Position, error) {
	if userID == 0 || instrument == "" {
		return nil, errors.ErrInvalidInput
	}
	key := trade.Key{UserID: userID, Instrument: instrument}
	unlock := l.locks.lock(key)
	defer unlock()

	return l.snapshot(ctx, key)
}

// All returns the user's non-flat positions across instruments.
func (l *Ledger) All(ctx context.Context, userID int64) ([]*Position, error) {
	if userID == 0 {
		return nil, errors.ErrInvalidInput
	}
	instruments, err := l.store.Instruments(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list instruments")
	}

	positions := make([]*Position, 0, len(instruments))
	for _, instrument := range instruments {
		pos, err := l.Get(ctx, userID, instrument)
		if err != nil {
			return nil, err
		}
		if !pos.IsFlat() {
			positions = append(positions, pos)
		}
	}
	return positions, nil
}

// Rebuild discards any snapshot and replays the pair's full history. Used
// for recovery and as the correctness oracle for the incremental path.
func (l *Ledger) Rebuild(ctx context.Context, userID int64, instrument string) (*Position, error) {
	if userID == 0 || instrument == "" {
		return nil, errors.ErrInvalidInput
	}
	key := trade.Key{UserID: userID, Instrument: instrument}
	unlock := l.locks.lock(key)
	defer unlock()

	metrics.PositionRebuilds.WithLabelValues("manual").Inc()

	pos, _, err := l.replay(ctx, key)
	if err != nil {
		return nil, err
	}
	l.putCache(ctx, pos)
	return pos, nil
}

// Verify replays the pair's history and compares it against the cached
// snapshot. On divergence the snapshot is replaced by the replay result and
// errors.ErrConsistency is returned; the event log itself is never touched.
func (l *Ledger) Verify(ctx context.Context, userID int64, instrument string) error {
	key := trade.Key{UserID: userID, Instrument: instrument}
	unlock := l.locks.lock(key)
	defer unlock()

	if l.cache == nil {
		return nil
	}
	cached, err := l.cache.Get(ctx, key.UserID, key.Instrument)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "load cached position")
	}

	rebuilt, _, err := l.replay(ctx, key)
	if err != nil {
		return err
	}
	if cached.Equal(rebuilt) {
		return nil
	}

	metrics.PositionConsistencyFailures.Inc()
	l.log.Errorw("cached position diverged from event log",
		"user_id", key.UserID,
		"instrument", key.Instrument,
	)
	l.putCache(ctx, rebuilt)
	return errors.Wrapf(errors.ErrConsistency, "position %d/%s", key.UserID, key.Instrument)
}

// snapshot returns the cached position for the key, replaying from the log
// on a miss. Callers must hold the key lock.
func (l *Ledger) snapshot(ctx context.Context, key trade.Key) (*Position, error) {
	if l.cache != nil {
		pos, err := l.cache.Get(ctx, key.UserID, key.Instrument)
		if err == nil {
			return pos, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			l.log.Warnw("position cache read failed, replaying from log",
				"user_id", key.UserID,
				"instrument", key.Instrument,
				"error", err,
			)
		}
	}

	pos, _, err := l.replay(ctx, key)
	if err != nil {
		return nil, err
	}
	l.putCache(ctx, pos)
	return pos, nil
}

// replay rebuilds the position from the full event history, recording the
// realized delta each event produced.
func (l *Ledger) replay(ctx context.Context, key trade.Key) (*Position, map[uuid.UUID]decimal.Decimal, error) {
	events, err := l.store.History(ctx, key.UserID, key.Instrument)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load event history")
	}

	pos := New(key.UserID, key.Instrument)
	deltas := make(map[uuid.UUID]decimal.Decimal, len(events))
	for i := range events {
		deltas[events[i].ID] = pos.Apply(&events[i])
	}
	return pos, deltas, nil
}

func (l *Ledger) putCache(ctx context.Context, pos *Position) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Put(ctx, pos); err != nil {
		// A failed cache write only costs a future replay.
		l.log.Warnw("position cache write failed",
			"user_id", pos.UserID,
			"instrument", pos.Instrument,
			"error", err,
		)
	}
}

// keyedLocks serializes work per (user, instrument) pair.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[trade.Key]*sync.Mutex
}

func (k *keyedLocks) lock(key trade.Key) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[trade.Key]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
