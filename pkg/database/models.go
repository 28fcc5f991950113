package database

import (
	"time"
)

// Conversation is the durable record for one ordering session.
type Conversation struct {
	ID                  string    `db:"id" json:"id"`
	ConversationID      string    `db:"conversation_id" json:"conversation_id"`
	SessionID           string    `db:"session_id" json:"session_id"`
	Status              string    `db:"status" json:"status"` // pending, in_progress, completed, abandoned
	Success             bool      `db:"success" json:"success"`
	DurationSeconds     float64   `db:"duration_seconds" json:"duration_seconds"`
	TotalTurns          int       `db:"total_turns" json:"total_turns"`
	UserTurns           int       `db:"user_turns" json:"user_turns"`
	AgentTurns          int       `db:"agent_turns" json:"agent_turns"`
	ToolCallsCount      int       `db:"tool_calls_count" json:"tool_calls_count"`
	SuccessfulToolCalls int       `db:"successful_tool_calls" json:"successful_tool_calls"`
	ErrorCount          int       `db:"error_count" json:"error_count"`
	Summary             string    `db:"summary" json:"summary"`
	SentimentScore      float64   `db:"sentiment_score" json:"sentiment_score"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Order groups the items placed in a single session.
type Order struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Status         string    `db:"status" json:"status"`
	TotalPrice     float64   `db:"total_price" json:"total_price"`
	ItemCount      int       `db:"item_count" json:"item_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	ItemName  string    `db:"item_name" json:"item_name"`
	ItemType  string    `db:"item_type" json:"item_type"` // regular, combo
	Price     float64   `db:"price" json:"price"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Size      *string   `db:"size" json:"size,omitempty"`
	Drink     *string   `db:"drink" json:"drink,omitempty"`
	Sauce     *string   `db:"sauce" json:"sauce,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Transcript is one ordered utterance of a conversation.
type Transcript struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Speaker        string    `db:"speaker" json:"speaker"` // user, agent
	Text           string    `db:"text" json:"text"`
	Ordinal        int       `db:"ordinal" json:"ordinal"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
