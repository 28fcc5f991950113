package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// ConversationRecord is the analytics payload published after a session is
// persisted. It duplicates the stored shape rather than importing the
// storage models to avoid coupling consumers to the database layer.
type ConversationRecord struct {
	ConversationID  string                `json:"conversation_id"`
	SessionID       string                `json:"session_id"`
	Status          string                `json:"status"`
	Success         bool                  `json:"success"`
	DurationSeconds float64               `json:"duration_seconds"`
	TotalTurns      int                   `json:"total_turns"`
	ItemCount       int                   `json:"item_count"`
	TotalPrice      float64               `json:"total_price"`
	Summary         string                `json:"summary"`
	SentimentScore  float64               `json:"sentiment_score"`
	SentimentLabel  string                `json:"sentiment_label"`
	Transcript      []ConversationSegment `json:"transcript,omitempty"`
	CompletedAt     time.Time             `json:"completed_at"`
}

// ConversationSegment is one transcript entry in a published record.
type ConversationSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ConversationPublisher publishes completed conversations to AMQP. Publishing
// is best effort: a missing or disconnected client is a debug-level skip,
// never an error surfaced to the caller.
type ConversationPublisher struct {
	logger       logrus.FieldLogger
	client       AMQPClientInterface
	exchangeName string
	routingKey   string
}

// NewConversationPublisher creates a new conversation publisher
func NewConversationPublisher(logger logrus.FieldLogger, client AMQPClientInterface) *ConversationPublisher {
	return &ConversationPublisher{
		logger:       logger,
		client:       client,
		exchangeName: "drivethru.conversations",
		routingKey:   "conversation.complete",
	}
}

// SetExchange sets the exchange name for conversation publishing
func (p *ConversationPublisher) SetExchange(exchangeName string) {
	p.exchangeName = exchangeName
}

// SetRoutingKey sets the routing key for conversation publishing
func (p *ConversationPublisher) SetRoutingKey(routingKey string) {
	p.routingKey = routingKey
}

// PublishConversation publishes a completed conversation record to AMQP
func (p *ConversationPublisher) PublishConversation(record *ConversationRecord) error {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("Recovered from panic in PublishConversation")
		}
	}()

	if record == nil {
		return nil
	}

	if p.client == nil {
		p.logger.Debug("AMQP client is nil, skipping conversation publishing")
		return nil
	}

	if !p.client.IsConnected() {
		p.logger.Debug("AMQP client not connected, skipping conversation publishing")
		return nil
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal conversation record")
		return err
	}

	metadata := map[string]interface{}{
		"message_type": "conversation_complete",
		"exchange":     p.exchangeName,
		"routing_key":  p.routingKey,
		"published_at": time.Now().UTC().Format(time.RFC3339),
	}

	publishDone := make(chan error, 1)
	go func() {
		publishDone <- p.client.PublishConversationPayload(string(recordJSON), record.ConversationID, metadata)
	}()

	start := time.Now()
	select {
	case err := <-publishDone:
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"conversation_id": record.ConversationID,
				"error":           err.Error(),
			}).Error("Failed to publish conversation to AMQP")
			return err
		}
		p.logger.WithFields(logrus.Fields{
			"conversation_id": record.ConversationID,
			"duration_ms":     time.Since(start).Milliseconds(),
		}).Info("Completed conversation published to AMQP")
		return nil
	case <-time.After(2 * time.Second):
		p.logger.WithField("conversation_id", record.ConversationID).Warn("AMQP conversation publish timed out")
		return context.DeadlineExceeded
	}
}
