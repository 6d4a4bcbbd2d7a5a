package events

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"journalbot/internal/adapters/kafka"
	"journalbot/internal/domain/trade"
	"journalbot/pkg/logger"
)

// TradeRecordedEvent is the payload published when an event is appended to
// the journal. Consumers get the realized delta so they never need to
// re-derive positions.
type TradeRecordedEvent struct {
	EventID       string          `json:"event_id"`
	UserID        int64           `json:"user_id"`
	Instrument    string          `json:"instrument"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Timestamp     time.Time       `json:"timestamp"`
	Seq           int64           `json:"seq"`
	RealizedDelta decimal.Decimal `json:"realized_delta"`
}

// Publisher publishes journal events to Kafka
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// Compile-time check
var _ trade.Publisher = (*Publisher)(nil)

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishTradeRecorded publishes a trade recorded event, keyed by the
// (user, instrument) pair so per-pair ordering survives partitioning.
func (p *Publisher) PublishTradeRecorded(ctx context.Context, event *trade.Event, realizedDelta decimal.Decimal) error {
	payload := TradeRecordedEvent{
		EventID:       event.ID.String(),
		UserID:        event.UserID,
		Instrument:    event.Instrument,
		Side:          event.Side.String(),
		Quantity:      event.Quantity,
		Price:         event.Price,
		Timestamp:     event.Timestamp,
		Seq:           event.Seq,
		RealizedDelta: realizedDelta,
	}

	key := fmt.Sprintf("%d/%s", event.UserID, event.Instrument)
	return p.producer.Publish(ctx, kafka.TopicTradeRecorded, key, payload)
}
