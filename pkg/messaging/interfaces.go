package messaging

// AMQPClientInterface defines the interface for AMQP clients
type AMQPClientInterface interface {
	PublishConversationPayload(payload, conversationID string, metadata map[string]interface{}) error
	IsConnected() bool
	Connect() error
	Disconnect()
}
