package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side defines the direction of a trade event
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid checks if the side is a known direction
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Sign returns +1 for buys and -1 for sells
func (s Side) Sign() int {
	if s == SideBuy {
		return 1
	}
	return -1
}

// String returns string representation
func (s Side) String() string {
	return string(s)
}

// Event is an immutable record of a single user-reported fill. Events are
// append-only; a mis-entered trade is corrected with an offsetting event,
// never by editing the stored one.
type Event struct {
	ID         uuid.UUID       `db:"id" csv:"event_id"`
	UserID     int64           `db:"user_id" csv:"user_id"`
	Instrument string          `db:"instrument" csv:"instrument"`
	Side       Side            `db:"side" csv:"side"`
	Quantity   decimal.Decimal `db:"quantity" csv:"quantity"`
	Price      decimal.Decimal `db:"price" csv:"price"`
	Timestamp  time.Time       `db:"ts" csv:"timestamp"`

	// Seq is assigned by the store on append, strictly increasing per
	// (user, instrument). Zero until stored.
	Seq int64 `db:"seq" csv:"seq"`
}

// SignedQuantity returns the quantity with the side's sign applied
func (e *Event) SignedQuantity() decimal.Decimal {
	if e.Side == SideSell {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// Key identifies the (user, instrument) pair an event belongs to
func (e *Event) Key() Key {
	return Key{UserID: e.UserID, Instrument: e.Instrument}
}

// Key identifies one user's position in one instrument
type Key struct {
	UserID     int64
	Instrument string
}
