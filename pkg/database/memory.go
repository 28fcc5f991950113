package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory implementation of ConversationStore.
// This is suitable for development and testing, but not recommended for
// production as all data is lost when the process exits.
type MemoryStore struct {
	mutex         sync.RWMutex
	conversations map[string]*Conversation // keyed by session_id
	orders        map[string][]*Order      // keyed by conversation_id
	orderItems    map[string][]*OrderItem  // keyed by order id
	transcripts   map[string][]*Transcript // keyed by conversation_id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		orders:        make(map[string][]*Order),
		orderItems:    make(map[string][]*OrderItem),
		transcripts:   make(map[string][]*Transcript),
	}
}

// SaveConversationData replaces the stored snapshot for the session.
func (s *MemoryStore) SaveConversationData(_ context.Context, data *ConversationData) error {
	if data == nil || data.Conversation == nil {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	conv := *data.Conversation

	if existing, ok := s.conversations[conv.SessionID]; ok {
		// Re-processing: keep the original row identity, replace children.
		conv.ID = existing.ID
		conv.CreatedAt = existing.CreatedAt
		delete(s.transcripts, existing.ConversationID)
		for _, order := range s.orders[existing.ConversationID] {
			delete(s.orderItems, order.ID)
		}
		delete(s.orders, existing.ConversationID)
	} else {
		if conv.ID == "" {
			conv.ID = uuid.New().String()
		}
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	s.conversations[conv.SessionID] = &conv

	for _, order := range data.Orders {
		orderCopy := *order
		if orderCopy.ID == "" {
			orderCopy.ID = uuid.New().String()
		}
		orderCopy.CreatedAt = now
		orderCopy.UpdatedAt = now
		s.orders[conv.ConversationID] = append(s.orders[conv.ConversationID], &orderCopy)
	}

	for _, item := range data.OrderItems {
		itemCopy := *item
		if itemCopy.ID == "" {
			itemCopy.ID = uuid.New().String()
		}
		itemCopy.CreatedAt = now
		s.orderItems[itemCopy.OrderID] = append(s.orderItems[itemCopy.OrderID], &itemCopy)
	}

	for _, transcript := range data.Transcripts {
		transcriptCopy := *transcript
		if transcriptCopy.ID == "" {
			transcriptCopy.ID = uuid.New().String()
		}
		transcriptCopy.CreatedAt = now
		s.transcripts[conv.ConversationID] = append(s.transcripts[conv.ConversationID], &transcriptCopy)
	}

	return nil
}

// GetConversationBySessionID returns the conversation for a session, or nil.
func (s *MemoryStore) GetConversationBySessionID(_ context.Context, sessionID string) (*Conversation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return nil, nil
	}
	convCopy := *conv
	return &convCopy, nil
}

// GetOrdersByConversationID returns the orders for a conversation.
func (s *MemoryStore) GetOrdersByConversationID(_ context.Context, conversationID string) ([]*Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	orders := make([]*Order, 0, len(s.orders[conversationID]))
	for _, order := range s.orders[conversationID] {
		orderCopy := *order
		orders = append(orders, &orderCopy)
	}
	return orders, nil
}

// GetOrderItemsByOrderID returns the items of an order.
func (s *MemoryStore) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]*OrderItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	items := make([]*OrderItem, 0, len(s.orderItems[orderID]))
	for _, item := range s.orderItems[orderID] {
		itemCopy := *item
		items = append(items, &itemCopy)
	}
	return items, nil
}

// GetTranscriptsByConversationID returns the transcript rows in order.
func (s *MemoryStore) GetTranscriptsByConversationID(_ context.Context, conversationID string) ([]*Transcript, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	transcripts := make([]*Transcript, 0, len(s.transcripts[conversationID]))
	for _, transcript := range s.transcripts[conversationID] {
		transcriptCopy := *transcript
		transcripts = append(transcripts, &transcriptCopy)
	}
	sort.SliceStable(transcripts, func(i, j int) bool {
		return transcripts[i].Ordinal < transcripts[j].Ordinal
	})
	return transcripts, nil
}

// Health always reports healthy for the in-memory store.
func (s *MemoryStore) Health() error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// ConversationCount returns the number of stored conversations.
func (s *MemoryStore) ConversationCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.conversations)
}
