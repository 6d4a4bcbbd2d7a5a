package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"journalbot/internal/domain/position"
	"journalbot/pkg/errors"
)

// Compile-time check
var _ position.Cache = (*PositionCache)(nil)

// PositionCache implements position.Cache using Redis. Snapshots are
// rebuildable from the event log, so entries carry a TTL and a lost or
// evicted entry only costs a replay.
type PositionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPositionCache creates a new position snapshot cache
func NewPositionCache(client *redis.Client, ttl time.Duration) *PositionCache {
	return &PositionCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a snapshot, returning errors.ErrNotFound on a miss
func (c *PositionCache) Get(ctx context.Context, userID int64, instrument string) (*position.Position, error) {
	key := c.key(userID, instrument)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "position snapshot %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get position snapshot: %s", key)
	}

	var pos position.Position
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal position snapshot: %s", key)
	}
	return &pos, nil
}

// Put stores a snapshot with the configured TTL
func (c *PositionCache) Put(ctx context.Context, pos *position.Position) error {
	key := c.key(pos.UserID, pos.Instrument)

	data, err := json.Marshal(pos)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal position snapshot: %s", key)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to save position snapshot: %s", key)
	}
	return nil
}

// Delete removes a snapshot
func (c *PositionCache) Delete(ctx context.Context, userID int64, instrument string) error {
	key := c.key(userID, instrument)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete position snapshot: %s", key)
	}
	return nil
}

func (c *PositionCache) key(userID int64, instrument string) string {
	return fmt.Sprintf("position:%d:%s", userID, instrument)
}
