package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"journalbot/internal/metrics"
	"journalbot/pkg/errors"
	"journalbot/pkg/logger"
)

// Tracker folds a freshly appended event into the derived position state.
// Implemented by position.Ledger.
type Tracker interface {
	Track(ctx context.Context, event *Event) (decimal.Decimal, error)
}

// Publisher broadcasts recorded events to downstream consumers.
type Publisher interface {
	PublishTradeRecorded(ctx context.Context, event *Event, realizedDelta decimal.Decimal) error
}

// RecordResult is the outcome of recording a trade event.
type RecordResult struct {
	Event *Event

	// Inserted is false when the event ID was already stored (idempotent
	// retry); in that case the event had no second position effect.
	Inserted bool

	// RealizedDelta is the realized P&L locked in by this event (zero for
	// opening trades and duplicates).
	RealizedDelta decimal.Decimal
}

// Service validates and records trade events.
type Service struct {
	store     Store
	tracker   Tracker
	publisher Publisher
	log       *logger.Logger
}

// NewService constructs a trade service. publisher may be nil when event
// streaming is disabled.
func NewService(store Store, tracker Tracker, publisher Publisher) *Service {
	return &Service{
		store:     store,
		tracker:   tracker,
		publisher: publisher,
		log:       logger.Get().With("component", "trade_service"),
	}
}

// Record validates the event, appends it to the log and folds it into the
// derived position. Duplicate event IDs are a no-op. Validation never leaves
// a partially applied event behind.
func (s *Service) Record(ctx context.Context, event *Event) (*RecordResult, error) {
	if event == nil {
		return nil, errors.ErrInvalidInput
	}
	if err := s.validate(event); err != nil {
		return nil, err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}

	start := time.Now()
	inserted, err := s.store.Append(ctx, event)
	metrics.AppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, errors.ErrOutOfOrder) {
			metrics.TradeAppends.WithLabelValues("rejected").Inc()
		} else {
			metrics.TradeAppends.WithLabelValues("error").Inc()
		}
		return nil, errors.Wrap(err, "append trade event")
	}

	result := &RecordResult{Event: event, Inserted: inserted, RealizedDelta: decimal.Zero}
	if !inserted {
		metrics.TradeAppends.WithLabelValues("duplicate").Inc()
		s.log.Debugw("duplicate trade event ignored",
			"event_id", event.ID,
			"user_id", event.UserID,
			"instrument", event.Instrument,
		)
		return result, nil
	}
	metrics.TradeAppends.WithLabelValues("recorded").Inc()

	delta, err := s.tracker.Track(ctx, event)
	if err != nil {
		return nil, errors.Wrap(err, "track trade event")
	}
	result.RealizedDelta = delta

	if s.publisher != nil {
		if err := s.publisher.PublishTradeRecorded(ctx, event, delta); err != nil {
			// Streaming is best-effort; the event is already durable.
			s.log.Warnw("failed to publish trade recorded event",
				"event_id", event.ID,
				"error", err,
			)
		}
	}

	return result, nil
}

// List returns the user's events for one instrument inside [from, to].
func (s *Service) List(ctx context.Context, userID int64, instrument string, from, to time.Time) ([]Event, error) {
	if userID == 0 || instrument == "" {
		return nil, errors.ErrInvalidInput
	}
	events, err := s.store.List(ctx, userID, instrument, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list trade events")
	}
	return events, nil
}

// History returns the full event sequence for one (user, instrument).
func (s *Service) History(ctx context.Context, userID int64, instrument string) ([]Event, error) {
	if userID == 0 || instrument == "" {
		return nil, errors.ErrInvalidInput
	}
	events, err := s.store.History(ctx, userID, instrument)
	if err != nil {
		return nil, errors.Wrap(err, "load trade history")
	}
	return events, nil
}

// Instruments returns every instrument the user has recorded events for.
func (s *Service) Instruments(ctx context.Context, userID int64) ([]string, error) {
	if userID == 0 {
		return nil, errors.ErrInvalidInput
	}
	instruments, err := s.store.Instruments(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list instruments")
	}
	return instruments, nil
}

func (s *Service) validate(event *Event) error {
	if event.UserID == 0 {
		return errors.NewValidationError("user_id", "must be set", event.UserID)
	}
	if event.Instrument == "" {
		return errors.NewValidationError("instrument", "must not be empty", event.Instrument)
	}
	if !event.Side.Valid() {
		return errors.NewValidationError("side", "must be BUY or SELL", event.Side)
	}
	if event.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.NewValidationError("quantity", "must be positive", event.Quantity)
	}
	if event.Price.LessThanOrEqual(decimal.Zero) {
		return errors.NewValidationError("price", "must be positive", event.Price)
	}
	return nil
}
