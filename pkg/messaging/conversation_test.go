package messaging

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAMQPClient struct {
	connected bool
	publishes []AMQPMessage
	failNext  bool
}

func (m *mockAMQPClient) PublishConversationPayload(payload, conversationID string, metadata map[string]interface{}) error {
	if m.failNext {
		return fmt.Errorf("broker unavailable")
	}
	m.publishes = append(m.publishes, AMQPMessage{
		ConversationID: conversationID,
		Payload:        payload,
		Timestamp:      time.Now(),
		Metadata:       metadata,
	})
	return nil
}

func (m *mockAMQPClient) IsConnected() bool { return m.connected }
func (m *mockAMQPClient) Connect() error    { m.connected = true; return nil }
func (m *mockAMQPClient) Disconnect()       { m.connected = false }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestPublishConversation(t *testing.T) {
	client := &mockAMQPClient{connected: true}
	publisher := NewConversationPublisher(testLogger(), client)

	record := &ConversationRecord{
		ConversationID: "C_a1b2c3d4e5f6",
		SessionID:      "session-1",
		Status:         "completed",
		Success:        true,
		TotalPrice:     12.99,
		Summary:        "Completed order with 1 item (1 combo): Big Mac Combo. Total $12.99.",
		CompletedAt:    time.Now(),
	}

	err := publisher.PublishConversation(record)
	require.NoError(t, err)
	require.Len(t, client.publishes, 1)

	msg := client.publishes[0]
	assert.Equal(t, "C_a1b2c3d4e5f6", msg.ConversationID)

	var decoded ConversationRecord
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
	assert.Equal(t, record.SessionID, decoded.SessionID)
	assert.Equal(t, record.TotalPrice, decoded.TotalPrice)
	assert.Equal(t, "conversation_complete", msg.Metadata["message_type"])
}

func TestPublishConversationSkipsWhenDisconnected(t *testing.T) {
	client := &mockAMQPClient{connected: false}
	publisher := NewConversationPublisher(testLogger(), client)

	err := publisher.PublishConversation(&ConversationRecord{ConversationID: "C_000000000000"})
	assert.NoError(t, err)
	assert.Empty(t, client.publishes)
}

func TestPublishConversationNilClient(t *testing.T) {
	publisher := NewConversationPublisher(testLogger(), nil)

	err := publisher.PublishConversation(&ConversationRecord{ConversationID: "C_000000000000"})
	assert.NoError(t, err)
}

func TestPublishConversationPropagatesPublishError(t *testing.T) {
	client := &mockAMQPClient{connected: true, failNext: true}
	publisher := NewConversationPublisher(testLogger(), client)

	err := publisher.PublishConversation(&ConversationRecord{ConversationID: "C_000000000000"})
	assert.Error(t, err)
}

func TestNewAMQPClientDefaults(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{
		URL:       "amqp://localhost:5672",
		QueueName: "conversations",
	})

	assert.Equal(t, "conversations", client.config.RoutingKey)
	assert.True(t, client.config.Durable)
	assert.False(t, client.config.AutoDelete)
	assert.False(t, client.IsConnected())
}

func TestConnectWithoutURLFails(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{})

	err := client.Connect()
	assert.Error(t, err)
	assert.False(t, client.IsConnected())
}
