package position

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalbot/internal/domain/trade"
	"journalbot/internal/repository/memory"
	"journalbot/pkg/errors"
)

// memCache is an in-process Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[trade.Key]Position
}

func newMemCache() *memCache {
	return &memCache{data: make(map[trade.Key]Position)}
}

func (c *memCache) Get(ctx context.Context, userID int64, instrument string) (*Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.data[trade.Key{UserID: userID, Instrument: instrument}]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := pos
	return &copied, nil
}

func (c *memCache) Put(ctx context.Context, pos *Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[trade.Key{UserID: pos.UserID, Instrument: pos.Instrument}] = *pos
	return nil
}

func (c *memCache) Delete(ctx context.Context, userID int64, instrument string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, trade.Key{UserID: userID, Instrument: instrument})
	return nil
}

func appendEvent(t *testing.T, store trade.Store, event *trade.Event) {
	t.Helper()
	inserted, err := store.Append(context.Background(), event)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestLedger_Track_Incremental(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeEventStore()
	cache := newMemCache()
	ledger := NewLedger(store, cache)

	open := makeEvent(0, trade.SideBuy, "10", "100")
	appendEvent(t, store, open)

	delta, err := ledger.Track(ctx, open)
	require.NoError(t, err)
	assert.True(t, delta.IsZero())

	reduce := makeEvent(0, trade.SideSell, "4", "110")
	appendEvent(t, store, reduce)

	delta, err = ledger.Track(ctx, reduce)
	require.NoError(t, err)
	assert.True(t, delta.Equal(decimal.NewFromInt(40)), "got %s", delta)

	pos, err := ledger.Get(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, int64(2), pos.LastSeq)
}

func TestLedger_Track_DriftRebuilds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeEventStore()
	cache := newMemCache()
	ledger := NewLedger(store, cache)

	first := makeEvent(0, trade.SideBuy, "10", "100")
	second := makeEvent(0, trade.SideSell, "10", "130")
	appendEvent(t, store, first)
	appendEvent(t, store, second)

	// Seed a snapshot that never saw either event. Tracking the second event
	// then skips seq 1, which must force a replay from the log.
	stale := New(42, "AAPL")
	require.NoError(t, cache.Put(ctx, stale))

	delta, err := ledger.Track(ctx, second)
	require.NoError(t, err)
	assert.True(t, delta.Equal(decimal.NewFromInt(300)), "got %s", delta)

	pos, err := ledger.Get(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.IsFlat())
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, int64(2), pos.LastSeq)
}

func TestLedger_Get_NoHistory(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(memory.NewTradeEventStore(), newMemCache())

	pos, err := ledger.Get(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.IsFlat())
	assert.True(t, pos.RealizedPnL.IsZero())
	assert.Equal(t, int64(0), pos.LastSeq)
}

func TestLedger_Get_Validation(t *testing.T) {
	ledger := NewLedger(memory.NewTradeEventStore(), nil)

	_, err := ledger.Get(context.Background(), 0, "AAPL")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = ledger.Get(context.Background(), 42, "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestLedger_All_SkipsFlat(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeEventStore()
	ledger := NewLedger(store, newMemCache())

	long := makeEvent(0, trade.SideBuy, "10", "100")
	appendEvent(t, store, long)
	_, err := ledger.Track(ctx, long)
	require.NoError(t, err)

	open := makeEvent(0, trade.SideBuy, "5", "20")
	open.Instrument = "MSFT"
	closeOut := makeEvent(0, trade.SideSell, "5", "25")
	closeOut.Instrument = "MSFT"
	appendEvent(t, store, open)
	appendEvent(t, store, closeOut)

	positions, err := ledger.All(ctx, 42)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Instrument)
}

func TestLedger_Rebuild(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeEventStore()
	cache := newMemCache()
	ledger := NewLedger(store, cache)

	appendEvent(t, store, makeEvent(0, trade.SideBuy, "10", "100"))
	appendEvent(t, store, makeEvent(0, trade.SideSell, "4", "110"))

	// Poison the cache, then rebuild.
	poisoned := New(42, "AAPL")
	poisoned.NetQuantity = decimal.NewFromInt(999)
	poisoned.LastSeq = 2
	require.NoError(t, cache.Put(ctx, poisoned))

	pos, err := ledger.Rebuild(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(6)))
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(40)))

	cached, err := cache.Get(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, cached.Equal(pos))
}

func TestLedger_Verify(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeEventStore()
	cache := newMemCache()
	ledger := NewLedger(store, cache)

	event := makeEvent(0, trade.SideBuy, "10", "100")
	appendEvent(t, store, event)
	_, err := ledger.Track(ctx, event)
	require.NoError(t, err)

	t.Run("clean snapshot passes", func(t *testing.T) {
		assert.NoError(t, ledger.Verify(ctx, 42, "AAPL"))
	})

	t.Run("diverged snapshot is repaired and reported", func(t *testing.T) {
		poisoned := New(42, "AAPL")
		poisoned.NetQuantity = decimal.NewFromInt(999)
		poisoned.LastSeq = 1
		require.NoError(t, cache.Put(ctx, poisoned))

		err := ledger.Verify(ctx, 42, "AAPL")
		assert.ErrorIs(t, err, errors.ErrConsistency)

		// The snapshot was replaced by the replay result.
		cached, err := cache.Get(ctx, 42, "AAPL")
		require.NoError(t, err)
		assert.True(t, cached.NetQuantity.Equal(decimal.NewFromInt(10)))
		assert.NoError(t, ledger.Verify(ctx, 42, "AAPL"))
	})

	t.Run("missing snapshot passes", func(t *testing.T) {
		require.NoError(t, cache.Delete(ctx, 42, "AAPL"))
		assert.NoError(t, ledger.Verify(ctx, 42, "AAPL"))
	})
}

func TestLedger_ConcurrentTracks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeEventStore()
	ledger := NewLedger(store, newMemCache())

	const n = 20
	events := make([]*trade.Event, n)
	for i := 0; i < n; i++ {
		events[i] = makeEvent(0, trade.SideBuy, "1", "100")
		appendEvent(t, store, events[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(e *trade.Event) {
			defer wg.Done()
			_, err := ledger.Track(ctx, e)
			assert.NoError(t, err)
		}(events[i])
	}
	wg.Wait()

	pos, err := ledger.Get(ctx, 42, "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(n)))
	assert.Equal(t, int64(n), pos.LastSeq)
}
