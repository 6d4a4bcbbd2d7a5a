package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource supplies last known prices for mark-to-market valuation. It is
// an external collaborator: the journal never invents prices. When no source
// is wired, or a source has no price for an instrument
// (errors.ErrPriceUnavailable), unrealized figures are reported unavailable
// rather than guessed.
type PriceSource interface {
	LastPrice(ctx context.Context, instrument string) (decimal.Decimal, error)
}
