package domain

import "encoding/json"

// MessageType classifies queue traffic.
type MessageType string

// Queue message types.
const (
	MessageTypeTransaction  MessageType = "transaction"
	MessageTypeFeedUpdate   MessageType = "feed_update"
	MessageTypePnlUpdate    MessageType = "pnl_update"
	MessageTypeGemDiscovery MessageType = "gem_discovery"
)

// Well-known queue names.
const (
	QueueRawTransactions = "raw-transactions"
	QueueFeedUpdates     = "feed-updates"
	QueuePnlUpdates      = "pnl-updates"
	QueueGemDiscoveries  = "gem-discoveries"
)

// MaxRetryCount bounds redelivery; a message failed this many times moves to
// the dead-letter queue and is never handed to normal consumers again.
const MaxRetryCount = 3

// QueueMessage is the envelope for all bus traffic.
type QueueMessage struct {
	ID         string          `json:"id"`
	Type       MessageType     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"` // Unix ms at publish time
	RetryCount int             `json:"retry_count"`
	Priority   int             `json:"priority"` // higher drains first
}

// DeadLetterQueue returns the dead-letter area name for a queue.
func DeadLetterQueue(queue string) string {
	return queue + ":failed"
}
