package database

import "context"

// ConversationData is the unit of work persisted atomically for one session:
// the conversation row, its orders and items, and the ordered transcript.
type ConversationData struct {
	Conversation *Conversation
	Orders       []*Order
	OrderItems   []*OrderItem
	Transcripts  []*Transcript
}

// ConversationStore abstracts durable conversation storage. SaveConversationData
// is a replace-upsert keyed by the conversation's unique session_id: a second
// save for the same session replaces the previous snapshot instead of
// creating a duplicate, and either everything in the bundle becomes visible
// or nothing does.
type ConversationStore interface {
	SaveConversationData(ctx context.Context, data *ConversationData) error

	// Read queries. Not-found is reported as (nil, nil) for single rows and
	// an empty slice for collections, never as an error.
	GetConversationBySessionID(ctx context.Context, sessionID string) (*Conversation, error)
	GetOrdersByConversationID(ctx context.Context, conversationID string) ([]*Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]*OrderItem, error)
	GetTranscriptsByConversationID(ctx context.Context, conversationID string) ([]*Transcript, error)

	Health() error
	Close() error
}
