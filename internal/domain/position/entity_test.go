package position

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalbot/internal/domain/trade"
)

func makeEvent(seq int64, side trade.Side, qty, price string) *trade.Event {
	return &trade.Event{
		ID:         uuid.New(),
		UserID:     42,
		Instrument: "AAPL",
		Side:       side,
		Quantity:   decimal.RequireFromString(qty),
		Price:      decimal.RequireFromString(price),
		Timestamp:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
		Seq:        seq,
	}
}

func TestPosition_Apply_OpenAndAdd(t *testing.T) {
	pos := New(42, "AAPL")

	delta := pos.Apply(makeEvent(1, trade.SideBuy, "10", "100"))
	assert.True(t, delta.IsZero(), "opening trade realizes nothing")
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(100)))

	// Weighted average: (10*100 + 5*112) / 15 = 104
	delta = pos.Apply(makeEvent(2, trade.SideBuy, "5", "112"))
	assert.True(t, delta.IsZero())
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(104)), "got %s", pos.AverageCost)
	assert.True(t, pos.RealizedPnL.IsZero())
	assert.Equal(t, int64(2), pos.LastSeq)
}

func TestPosition_Apply_OpenShort(t *testing.T) {
	pos := New(42, "AAPL")

	delta := pos.Apply(makeEvent(1, trade.SideSell, "8", "50"))
	assert.True(t, delta.IsZero())
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(-8)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(50)))

	// Adding to a short keeps averaging on absolute quantity
	pos.Apply(makeEvent(2, trade.SideSell, "8", "60"))
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(-16)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(55)))
}

func TestPosition_Apply_ReduceRealizes(t *testing.T) {
	t.Run("long reduced at a profit", func(t *testing.T) {
		pos := New(42, "AAPL")
		pos.Apply(makeEvent(1, trade.SideBuy, "10", "100"))

		delta := pos.Apply(makeEvent(2, trade.SideSell, "4", "110"))
		assert.True(t, delta.Equal(decimal.NewFromInt(40)), "got %s", delta)
		assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(6)))
		assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(100)), "reduction keeps the old basis")
		assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(40)))
	})

	t.Run("short reduced at a profit", func(t *testing.T) {
		pos := New(42, "AAPL")
		pos.Apply(makeEvent(1, trade.SideSell, "10", "100"))

		// Buying back below the short basis is a gain
		delta := pos.Apply(makeEvent(2, trade.SideBuy, "4", "90"))
		assert.True(t, delta.Equal(decimal.NewFromInt(40)), "got %s", delta)
		assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(-6)))
	})

	t.Run("close to flat resets average cost", func(t *testing.T) {
		pos := New(42, "AAPL")
		pos.Apply(makeEvent(1, trade.SideBuy, "10", "100"))

		delta := pos.Apply(makeEvent(2, trade.SideSell, "10", "95"))
		assert.True(t, delta.Equal(decimal.NewFromInt(-50)))
		assert.True(t, pos.IsFlat())
		assert.True(t, pos.AverageCost.IsZero(), "flat position carries no basis")

		// Re-opening starts a fresh basis at the fill price
		pos.Apply(makeEvent(3, trade.SideBuy, "2", "200"))
		assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(200)))
	})
}

func TestPosition_Apply_Flip(t *testing.T) {
	pos := New(42, "AAPL")
	pos.Apply(makeEvent(1, trade.SideBuy, "10", "100"))

	// Sell 15 @ 120: close 10 for +200, open short 5 @ 120
	delta := pos.Apply(makeEvent(2, trade.SideSell, "15", "120"))
	assert.True(t, delta.Equal(decimal.NewFromInt(200)), "got %s", delta)
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(-5)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(120)), "remainder opens at the fill price")
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(200)))

	// Flip back long
	delta = pos.Apply(makeEvent(3, trade.SideBuy, "7", "110"))
	assert.True(t, delta.Equal(decimal.NewFromInt(50)), "short covered 10 below basis on 5 units, got %s", delta)
	assert.True(t, pos.NetQuantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(110)))
}

func TestPosition_Apply_FractionalQuantities(t *testing.T) {
	pos := New(42, "BTC/USDT")
	pos.Apply(makeEvent(1, trade.SideBuy, "0.5", "40000"))
	pos.Apply(makeEvent(2, trade.SideBuy, "0.25", "46000"))

	// (0.5*40000 + 0.25*46000) / 0.75 = 42000
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(42000)), "got %s", pos.AverageCost)

	delta := pos.Apply(makeEvent(3, trade.SideSell, "0.75", "43000"))
	assert.True(t, delta.Equal(decimal.NewFromInt(750)), "got %s", delta)
	assert.True(t, pos.IsFlat())
}

func TestPosition_Apply_RealizedConservation(t *testing.T) {
	// Any sequence ending flat realizes exactly its cash flow.
	events := []trade.Event{
		*makeEvent(1, trade.SideBuy, "10", "100"),
		*makeEvent(2, trade.SideBuy, "5", "112"),
		*makeEvent(3, trade.SideSell, "12", "120"),
		*makeEvent(4, trade.SideSell, "8", "95"),
		*makeEvent(5, trade.SideBuy, "5", "105"),
	}

	pos := Replay(42, "AAPL", events)
	require.True(t, pos.IsFlat())

	cash := decimal.Zero
	for i := range events {
		flow := events[i].Price.Mul(events[i].Quantity)
		if events[i].Side == trade.SideBuy {
			cash = cash.Sub(flow)
		} else {
			cash = cash.Add(flow)
		}
	}
	assert.True(t, pos.RealizedPnL.Equal(cash),
		"realized %s, cash flow %s", pos.RealizedPnL, cash)
}

func TestReplay_MatchesIncremental(t *testing.T) {
	events := []trade.Event{
		*makeEvent(1, trade.SideBuy, "3", "10"),
		*makeEvent(2, trade.SideSell, "1", "12"),
		*makeEvent(3, trade.SideSell, "5", "9"),
		*makeEvent(4, trade.SideBuy, "2", "8"),
		*makeEvent(5, trade.SideBuy, "1", "11"),
	}

	incremental := New(42, "AAPL")
	for i := range events {
		incremental.Apply(&events[i])
	}

	replayed := Replay(42, "AAPL", events)
	assert.True(t, incremental.Equal(replayed))
}

func TestPosition_Equal(t *testing.T) {
	a := New(42, "AAPL")
	b := New(42, "AAPL")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))

	b.NetQuantity = decimal.NewFromInt(1)
	assert.False(t, a.Equal(b))
}
