package redis

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalbot/internal/domain/position"
	"journalbot/internal/testsupport"
	"journalbot/pkg/errors"
)

func TestPositionCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	cache := NewPositionCache(client, time.Hour)
	ctx := context.Background()

	t.Run("miss returns not found", func(t *testing.T) {
		_, err := cache.Get(ctx, 42, "AAPL")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("round trip preserves derived state", func(t *testing.T) {
		pos := position.New(42, "AAPL")
		pos.NetQuantity = decimal.RequireFromString("7.5")
		pos.AverageCost = decimal.RequireFromString("101.25")
		pos.RealizedPnL = decimal.NewFromInt(-40)
		pos.LastSeq = 9
		pos.UpdatedAt = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

		require.NoError(t, cache.Put(ctx, pos))

		got, err := cache.Get(ctx, 42, "AAPL")
		require.NoError(t, err)
		assert.True(t, got.Equal(pos))
		assert.True(t, got.UpdatedAt.Equal(pos.UpdatedAt))
	})

	t.Run("delete removes the snapshot", func(t *testing.T) {
		pos := position.New(42, "MSFT")
		require.NoError(t, cache.Put(ctx, pos))
		require.NoError(t, cache.Delete(ctx, 42, "MSFT"))

		_, err := cache.Get(ctx, 42, "MSFT")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("entries carry a TTL", func(t *testing.T) {
		pos := position.New(42, "TSLA")
		require.NoError(t, cache.Put(ctx, pos))

		ttl, err := client.TTL(ctx, "position:42:TSLA").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})
}
