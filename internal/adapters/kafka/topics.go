package kafka

// Topic definitions for Kafka event streaming
const (
	// Journal events
	TopicTradeRecorded = "journal.trades.recorded"
)
