package position

import (
	"time"

	"github.com/shopspring/decimal"

	"journalbot/internal/domain/trade"
)

// Position is the derived net holding for one (user, instrument) pair under
// weighted-average-cost accounting. It is a deterministic fold over the trade
// event log and is always rebuildable from it; the log is the source of
// truth, the position a cache.
type Position struct {
	UserID      int64           `json:"user_id"`
	Instrument  string          `json:"instrument"`
	NetQuantity decimal.Decimal `json:"net_quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`

	// LastSeq is the seq of the last event folded in. An incoming event
	// whose seq is not LastSeq+1 signals cache drift and forces a rebuild.
	LastSeq   int64     `json:"last_seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty (flat) position for the pair. Absence of trades is a
// normal state, not an error.
func New(userID int64, instrument string) *Position {
	return &Position{
		UserID:      userID,
		Instrument:  instrument,
		NetQuantity: decimal.Zero,
		AverageCost: decimal.Zero,
		RealizedPnL: decimal.Zero,
	}
}

// IsFlat reports whether the position has no open quantity.
func (p *Position) IsFlat() bool {
	return p.NetQuantity.IsZero()
}

// Apply folds one event into the position and returns the realized P&L delta
// it produced. Events must be applied in seq order.
//
// Same-direction (or flat) events open or add: the average cost becomes the
// quantity-weighted mean of the old basis and the fill. Opposite-direction
// events realize (price − averageCost) × qty × sign(net) on the closed
// quantity; a fill larger than the open quantity flips the position, closing
// it entirely and opening the remainder at the fill price.
func (p *Position) Apply(event *trade.Event) decimal.Decimal {
	signed := event.SignedQuantity()
	delta := decimal.Zero

	switch {
	case p.NetQuantity.IsZero() || p.NetQuantity.Sign() == signed.Sign():
		// Opening or adding
		oldAbs := p.NetQuantity.Abs()
		newAbs := oldAbs.Add(event.Quantity)
		p.AverageCost = p.AverageCost.Mul(oldAbs).Add(event.Price.Mul(event.Quantity)).Div(newAbs)
		p.NetQuantity = p.NetQuantity.Add(signed)

	case event.Quantity.LessThanOrEqual(p.NetQuantity.Abs()):
		// Reducing toward flat; average cost keeps the old basis
		sign := decimal.NewFromInt(int64(p.NetQuantity.Sign()))
		delta = event.Price.Sub(p.AverageCost).Mul(event.Quantity).Mul(sign)
		p.RealizedPnL = p.RealizedPnL.Add(delta)
		p.NetQuantity = p.NetQuantity.Add(signed)
		if p.NetQuantity.IsZero() {
			p.AverageCost = decimal.Zero
		}

	default:
		// Flip: close the whole open quantity, then open the remainder in
		// the other direction at the fill price
		closed := p.NetQuantity.Abs()
		sign := decimal.NewFromInt(int64(p.NetQuantity.Sign()))
		delta = event.Price.Sub(p.AverageCost).Mul(closed).Mul(sign)
		p.RealizedPnL = p.RealizedPnL.Add(delta)

		remainder := event.Quantity.Sub(closed)
		p.NetQuantity = remainder.Mul(decimal.NewFromInt(int64(event.Side.Sign())))
		p.AverageCost = event.Price
	}

	p.LastSeq = event.Seq
	p.UpdatedAt = event.Timestamp
	return delta
}

// Replay folds a full event history from an empty position. It is the
// correctness oracle for the incremental path: for any valid sequence both
// must agree exactly.
func Replay(userID int64, instrument string, events []trade.Event) *Position {
	p := New(userID, instrument)
	for i := range events {
		p.Apply(&events[i])
	}
	return p
}

// Equal reports whether two positions agree on derived state.
func (p *Position) Equal(other *Position) bool {
	if other == nil {
		return false
	}
	return p.NetQuantity.Equal(other.NetQuantity) &&
		p.AverageCost.Equal(other.AverageCost) &&
		p.RealizedPnL.Equal(other.RealizedPnL) &&
		p.LastSeq == other.LastSeq
}
