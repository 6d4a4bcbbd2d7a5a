package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"journalbot/internal/domain/market"
	"journalbot/pkg/errors"
)

// Compile-time check
var _ market.PriceSource = (*PriceSource)(nil)

// PriceSource implements market.PriceSource over Redis keys populated by an
// external price feeder. A missing key means no price is known and the
// lookup returns errors.ErrPriceUnavailable; the journal never guesses.
type PriceSource struct {
	client *redis.Client
}

// NewPriceSource creates a Redis-backed last-price source
func NewPriceSource(client *redis.Client) *PriceSource {
	return &PriceSource{client: client}
}

// LastPrice returns the last known price for the instrument
func (p *PriceSource) LastPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	key := fmt.Sprintf("price:%s", instrument)

	data, err := p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, errors.Wrapf(errors.ErrPriceUnavailable, "instrument %s", instrument)
	}
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get price: %s", instrument)
	}

	price, err := decimal.NewFromString(data)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "malformed price for %s", instrument)
	}
	return price, nil
}
