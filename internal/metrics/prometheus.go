package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trade log metrics
	TradeAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journalbot_trade_appends_total",
			Help: "Total number of trade append attempts",
		},
		[]string{"status"}, // status: recorded|duplicate|rejected|error
	)

	AppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journalbot_trade_append_duration_seconds",
			Help:    "Trade append duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	// Position ledger metrics
	PositionRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journalbot_position_rebuilds_total",
			Help: "Total number of position rebuilds from the event log",
		},
		[]string{"reason"}, // reason: drift|manual
	)

	PositionConsistencyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "journalbot_position_consistency_failures_total",
			Help: "Cached positions found diverged from the event log",
		},
	)

	// Report metrics
	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journalbot_report_duration_seconds",
			Help:    "Report generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// Command metrics
	CommandsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journalbot_commands_handled_total",
			Help: "Total number of chat commands handled",
		},
		[]string{"command", "status"}, // status: success|error
	)

	// Kafka metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journalbot_kafka_messages_total",
			Help: "Total number of Kafka messages published",
		},
		[]string{"topic", "status"}, // status: success|error
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(TradeAppends)
	prometheus.MustRegister(AppendDuration)
	prometheus.MustRegister(PositionRebuilds)
	prometheus.MustRegister(PositionConsistencyFailures)
	prometheus.MustRegister(ReportDuration)
	prometheus.MustRegister(CommandsHandled)
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
