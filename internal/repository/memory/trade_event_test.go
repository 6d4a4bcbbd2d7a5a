package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalbot/internal/domain/trade"
	"journalbot/pkg/errors"
)

func newEvent(userID int64, instrument string, ts time.Time) *trade.Event {
	return &trade.Event{
		ID:         uuid.New(),
		UserID:     userID,
		Instrument: instrument,
		Side:       trade.SideBuy,
		Quantity:   decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(100),
		Timestamp:  ts,
	}
}

func TestTradeEventStore_Append(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("assigns increasing seq per pair", func(t *testing.T) {
		store := NewTradeEventStore()

		first := newEvent(42, "AAPL", base)
		second := newEvent(42, "AAPL", base.Add(time.Minute))
		other := newEvent(42, "MSFT", base)

		inserted, err := store.Append(ctx, first)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, int64(1), first.Seq)

		inserted, err = store.Append(ctx, second)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, int64(2), second.Seq)

		// Sequences are independent across pairs
		_, err = store.Append(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, int64(1), other.Seq)
	})

	t.Run("duplicate ID is a no-op reporting the stored seq", func(t *testing.T) {
		store := NewTradeEventStore()

		event := newEvent(42, "AAPL", base)
		_, err := store.Append(ctx, event)
		require.NoError(t, err)

		retry := *event
		retry.Seq = 0
		inserted, err := store.Append(ctx, &retry)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, event.Seq, retry.Seq)

		history, err := store.History(ctx, 42, "AAPL")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("rejects timestamps before the pair tail", func(t *testing.T) {
		store := NewTradeEventStore()

		_, err := store.Append(ctx, newEvent(42, "AAPL", base))
		require.NoError(t, err)

		stale := newEvent(42, "AAPL", base.Add(-time.Second))
		inserted, err := store.Append(ctx, stale)
		assert.False(t, inserted)
		assert.ErrorIs(t, err, errors.ErrOutOfOrder)

		// Rejection leaves the log untouched
		history, err := store.History(ctx, 42, "AAPL")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("equal timestamps are accepted", func(t *testing.T) {
		store := NewTradeEventStore()

		_, err := store.Append(ctx, newEvent(42, "AAPL", base))
		require.NoError(t, err)

		same := newEvent(42, "AAPL", base)
		inserted, err := store.Append(ctx, same)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, int64(2), same.Seq)
	})
}

func TestTradeEventStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewTradeEventStore()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, newEvent(42, "AAPL", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	// Inclusive on both bounds
	events, err := store.List(ctx, 42, "AAPL", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(4), events[2].Seq)

	events, err = store.List(ctx, 42, "AAPL", base.Add(24*time.Hour), base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTradeEventStore_Instruments(t *testing.T) {
	ctx := context.Background()
	store := NewTradeEventStore()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, newEvent(42, "MSFT", base))
	require.NoError(t, err)
	_, err = store.Append(ctx, newEvent(42, "AAPL", base))
	require.NoError(t, err)
	_, err = store.Append(ctx, newEvent(7, "TSLA", base))
	require.NoError(t, err)

	instruments, err := store.Instruments(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, instruments)
}

func TestTradeEventStore_LastTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewTradeEventStore()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	ts, err := store.LastTimestamp(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	_, err = store.Append(ctx, newEvent(42, "AAPL", base))
	require.NoError(t, err)
	_, err = store.Append(ctx, newEvent(42, "AAPL", base.Add(time.Hour)))
	require.NoError(t, err)

	ts, err = store.LastTimestamp(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, ts.Equal(base.Add(time.Hour)))
}

func TestTradeEventStore_CancelledContext(t *testing.T) {
	store := NewTradeEventStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Append(ctx, newEvent(42, "AAPL", time.Now()))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.History(ctx, 42, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}
