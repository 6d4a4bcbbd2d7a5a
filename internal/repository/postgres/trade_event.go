package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"journalbot/internal/domain/trade"
	"journalbot/pkg/errors"
)

// Compile-time check
var _ trade.Store = (*TradeEventRepository)(nil)

// TradeEventRepository implements trade.Store on PostgreSQL. The table is
// append-only: rows are never updated or deleted, and each (user, instrument)
// pair carries a strictly increasing seq for ordering verification.
type TradeEventRepository struct {
	db *sqlx.DB
}

// NewTradeEventRepository creates a new trade event repository
func NewTradeEventRepository(db *sqlx.DB) *TradeEventRepository {
	return &TradeEventRepository{db: db}
}

// Append inserts the event inside a transaction guarded by a per-pair
// advisory lock, so concurrent appends for the same (user, instrument)
// serialize while unrelated pairs proceed. The commit is atomic: on any
// failure, including context cancellation, no partial event stays visible.
func (r *TradeEventRepository) Append(ctx context.Context, event *trade.Event) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin append transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lockKey := fmt.Sprintf("trade_events/%d/%s", event.UserID, event.Instrument)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return false, errors.Wrap(err, "acquire pair lock")
	}

	// Idempotency: a retried event ID is a no-op
	var existing int64
	err = tx.GetContext(ctx, &existing, `SELECT seq FROM trade_events WHERE id = $1`, event.ID)
	if err == nil {
		event.Seq = existing
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, errors.Wrap(err, "check duplicate event")
	}

	var tail struct {
		MaxTS  time.Time `db:"max_ts"`
		MaxSeq int64     `db:"max_seq"`
	}
	err = tx.GetContext(ctx, &tail, `
		SELECT COALESCE(MAX(ts), 'epoch'::timestamptz) AS max_ts,
		       COALESCE(MAX(seq), 0) AS max_seq
		FROM trade_events
		WHERE user_id = $1 AND instrument = $2`,
		event.UserID, event.Instrument,
	)
	if err != nil {
		return false, errors.Wrap(err, "read pair tail")
	}

	if event.Timestamp.Before(tail.MaxTS) {
		return false, errors.Wrapf(errors.ErrOutOfOrder,
			"event at %s predates latest %s for %s",
			event.Timestamp.Format(time.RFC3339), tail.MaxTS.Format(time.RFC3339), event.Instrument,
		)
	}

	event.Seq = tail.MaxSeq + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO trade_events (id, user_id, instrument, side, quantity, price, ts, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.UserID, event.Instrument, event.Side,
		event.Quantity, event.Price, event.Timestamp, event.Seq,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert trade event")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit trade event")
	}
	return true, nil
}

// List returns the pair's events with timestamps inside [from, to], ascending.
func (r *TradeEventRepository) List(ctx context.Context, userID int64, instrument string, from, to time.Time) ([]trade.Event, error) {
	events := []trade.Event{}

	query := `
		SELECT id, user_id, instrument, side, quantity, price, ts, seq
		FROM trade_events
		WHERE user_id = $1 AND instrument = $2 AND ts >= $3 AND ts <= $4
		ORDER BY seq`

	if err := r.db.SelectContext(ctx, &events, query, userID, instrument, from, to); err != nil {
		return nil, err
	}
	return events, nil
}

// History returns the pair's full event sequence in seq order.
func (r *TradeEventRepository) History(ctx context.Context, userID int64, instrument string) ([]trade.Event, error) {
	events := []trade.Event{}

	query := `
		SELECT id, user_id, instrument, side, quantity, price, ts, seq
		FROM trade_events
		WHERE user_id = $1 AND instrument = $2
		ORDER BY seq`

	if err := r.db.SelectContext(ctx, &events, query, userID, instrument); err != nil {
		return nil, err
	}
	return events, nil
}

// Instruments returns the user's distinct instruments.
func (r *TradeEventRepository) Instruments(ctx context.Context, userID int64) ([]string, error) {
	instruments := []string{}

	query := `SELECT DISTINCT instrument FROM trade_events WHERE user_id = $1 ORDER BY instrument`

	if err := r.db.SelectContext(ctx, &instruments, query, userID); err != nil {
		return nil, err
	}
	return instruments, nil
}

// LastTimestamp returns the latest stored timestamp for the pair, or the zero
// time when the pair has no history.
func (r *TradeEventRepository) LastTimestamp(ctx context.Context, userID int64, instrument string) (time.Time, error) {
	var ts sql.NullTime

	query := `SELECT MAX(ts) FROM trade_events WHERE user_id = $1 AND instrument = $2`

	if err := r.db.GetContext(ctx, &ts, query, userID, instrument); err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time.UTC(), nil
}
