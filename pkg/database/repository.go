package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Repository provides conversation storage on MySQL. All writes for one
// session go through a single transaction; the unique index on session_id
// plus a row lock serialize concurrent writers for the same session while
// unrelated sessions proceed in parallel.
type Repository struct {
	db     *MySQLDatabase
	logger *logrus.Logger
}

// NewRepository creates a new repository
func NewRepository(db *MySQLDatabase, logger *logrus.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// SaveConversationData atomically upserts the conversation, its orders and
// items, and its transcript. A second save for the same session_id replaces
// the previous snapshot. On any failure the transaction is rolled back and
// no partial write is visible.
func (r *Repository) SaveConversationData(ctx context.Context, data *ConversationData) error {
	if data == nil || data.Conversation == nil {
		return fmt.Errorf("conversation data is nil")
	}

	ctx, cancel := r.db.getContext(ctx)
	defer cancel()

	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	conv := data.Conversation
	now := time.Now()

	var existingID, existingConversationID string
	err = tx.QueryRowContext(ctx,
		`SELECT id, conversation_id FROM conversations WHERE session_id = ? FOR UPDATE`,
		conv.SessionID,
	).Scan(&existingID, &existingConversationID)

	switch {
	case err == sql.ErrNoRows:
		if conv.ID == "" {
			conv.ID = uuid.New().String()
		}
		conv.CreatedAt = now
		conv.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversations (
				id, conversation_id, session_id, status, success, duration_seconds,
				total_turns, user_turns, agent_turns, tool_calls_count,
				successful_tool_calls, error_count, summary, sentiment_score,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			conv.ID, conv.ConversationID, conv.SessionID, conv.Status, conv.Success,
			conv.DurationSeconds, conv.TotalTurns, conv.UserTurns, conv.AgentTurns,
			conv.ToolCallsCount, conv.SuccessfulToolCalls, conv.ErrorCount,
			conv.Summary, conv.SentimentScore, conv.CreatedAt, conv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}

	case err != nil:
		return fmt.Errorf("failed to look up conversation: %w", err)

	default:
		// Re-processing the same session: keep the row identity, replace
		// the children, update the mutable fields.
		conv.ID = existingID
		conv.UpdatedAt = now

		if _, err = tx.ExecContext(ctx,
			`DELETE FROM orders WHERE conversation_id = ?`, existingConversationID); err != nil {
			return fmt.Errorf("failed to clear orders: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM transcripts WHERE conversation_id = ?`, existingConversationID); err != nil {
			return fmt.Errorf("failed to clear transcripts: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET
				conversation_id = ?, status = ?, success = ?, duration_seconds = ?,
				total_turns = ?, user_turns = ?, agent_turns = ?, tool_calls_count = ?,
				successful_tool_calls = ?, error_count = ?, summary = ?,
				sentiment_score = ?, updated_at = ?
			WHERE id = ?
		`,
			conv.ConversationID, conv.Status, conv.Success, conv.DurationSeconds,
			conv.TotalTurns, conv.UserTurns, conv.AgentTurns, conv.ToolCallsCount,
			conv.SuccessfulToolCalls, conv.ErrorCount, conv.Summary,
			conv.SentimentScore, conv.UpdatedAt, conv.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
	}

	for _, order := range data.Orders {
		if order.ID == "" {
			order.ID = uuid.New().String()
		}
		order.CreatedAt = now
		order.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, conversation_id, status, total_price, item_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			order.ID, order.ConversationID, order.Status, order.TotalPrice,
			order.ItemCount, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
	}

	for _, item := range data.OrderItems {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.CreatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, item_name, item_type, price, quantity, size, drink, sauce, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			item.ID, item.OrderID, item.ItemName, item.ItemType, item.Price,
			item.Quantity, item.Size, item.Drink, item.Sauce, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, transcript := range data.Transcripts {
		if transcript.ID == "" {
			transcript.ID = uuid.New().String()
		}
		transcript.CreatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO transcripts (id, conversation_id, speaker, text, ordinal, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			transcript.ID, transcript.ConversationID, transcript.Speaker,
			transcript.Text, transcript.Ordinal, transcript.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transcript: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation data: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ConversationID,
		"session_id":      conv.SessionID,
		"orders":          len(data.Orders),
		"transcripts":     len(data.Transcripts),
	}).Info("Conversation data saved")

	return nil
}

// GetConversationBySessionID retrieves a conversation by its session id.
// Returns (nil, nil) when no row exists.
func (r *Repository) GetConversationBySessionID(ctx context.Context, sessionID string) (*Conversation, error) {
	ctx, cancel := r.db.getContext(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, session_id, status, success, duration_seconds,
			   total_turns, user_turns, agent_turns, tool_calls_count,
			   successful_tool_calls, error_count, summary, sentiment_score,
			   created_at, updated_at
		FROM conversations WHERE session_id = ?
	`

	conv := &Conversation{}
	err := r.db.db.QueryRowContext(ctx, query, sessionID).Scan(
		&conv.ID, &conv.ConversationID, &conv.SessionID, &conv.Status,
		&conv.Success, &conv.DurationSeconds, &conv.TotalTurns, &conv.UserTurns,
		&conv.AgentTurns, &conv.ToolCallsCount, &conv.SuccessfulToolCalls,
		&conv.ErrorCount, &conv.Summary, &conv.SentimentScore,
		&conv.CreatedAt, &conv.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to get conversation")
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// GetOrdersByConversationID retrieves the orders for a conversation.
func (r *Repository) GetOrdersByConversationID(ctx context.Context, conversationID string) ([]*Order, error) {
	ctx, cancel := r.db.getContext(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, status, total_price, item_count, created_at, updated_at
		FROM orders WHERE conversation_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		r.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to get orders")
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*Order, 0, 4)
	for rows.Next() {
		order := &Order{}
		err := rows.Scan(
			&order.ID, &order.ConversationID, &order.Status,
			&order.TotalPrice, &order.ItemCount, &order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// GetOrderItemsByOrderID retrieves the items of an order.
func (r *Repository) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]*OrderItem, error) {
	ctx, cancel := r.db.getContext(ctx)
	defer cancel()

	query := `
		SELECT id, order_id, item_name, item_type, price, quantity, size, drink, sauce, created_at
		FROM order_items WHERE order_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := make([]*OrderItem, 0, 8)
	for rows.Next() {
		item := &OrderItem{}
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ItemName, &item.ItemType,
			&item.Price, &item.Quantity, &item.Size, &item.Drink, &item.Sauce,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item row: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetTranscriptsByConversationID retrieves the transcript rows in order.
func (r *Repository) GetTranscriptsByConversationID(ctx context.Context, conversationID string) ([]*Transcript, error) {
	ctx, cancel := r.db.getContext(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, speaker, text, ordinal, created_at
		FROM transcripts WHERE conversation_id = ?
		ORDER BY ordinal ASC
	`

	rows, err := r.db.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := make([]*Transcript, 0, 16)
	for rows.Next() {
		transcript := &Transcript{}
		err := rows.Scan(
			&transcript.ID, &transcript.ConversationID, &transcript.Speaker,
			&transcript.Text, &transcript.Ordinal, &transcript.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		transcripts = append(transcripts, transcript)
	}

	return transcripts, rows.Err()
}

// Health checks the underlying database connection.
func (r *Repository) Health() error {
	return r.db.Health()
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}
