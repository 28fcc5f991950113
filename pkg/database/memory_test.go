package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData(sessionID, conversationID string) *ConversationData {
	orderID := "order-" + conversationID
	return &ConversationData{
		Conversation: &Conversation{
			ConversationID: conversationID,
			SessionID:      sessionID,
			Status:         "completed",
			Success:        true,
			TotalTurns:     4,
		},
		Orders: []*Order{
			{ID: orderID, ConversationID: conversationID, Status: "completed", TotalPrice: 9.99, ItemCount: 2},
		},
		OrderItems: []*OrderItem{
			{OrderID: orderID, ItemName: "Fries", ItemType: "regular", Price: 2.49, Quantity: 1},
			{OrderID: orderID, ItemName: "Cheeseburger", ItemType: "regular", Price: 4.99, Quantity: 1},
		},
		Transcripts: []*Transcript{
			{ConversationID: conversationID, Speaker: "agent", Text: "Welcome", Ordinal: 0},
			{ConversationID: conversationID, Speaker: "user", Text: "Fries and a cheeseburger", Ordinal: 1},
		},
	}
}

func TestMemoryStoreSaveAndRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveConversationData(ctx, sampleData("s-1", "C_aaaaaaaaaaaa")))

	conv, err := store.GetConversationBySessionID(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "C_aaaaaaaaaaaa", conv.ConversationID)
	assert.NotEmpty(t, conv.ID)
	assert.False(t, conv.CreatedAt.IsZero())

	orders, err := store.GetOrdersByConversationID(ctx, "C_aaaaaaaaaaaa")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	items, err := store.GetOrderItemsByOrderID(ctx, orders[0].ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	transcripts, err := store.GetTranscriptsByConversationID(ctx, "C_aaaaaaaaaaaa")
	require.NoError(t, err)
	require.Len(t, transcripts, 2)
	assert.Equal(t, "Welcome", transcripts[0].Text)
}

func TestMemoryStoreNotFoundIsNil(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	conv, err := store.GetConversationBySessionID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, conv)

	orders, err := store.GetOrdersByConversationID(ctx, "C_missing")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMemoryStoreReplaceOnSecondSave(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveConversationData(ctx, sampleData("s-1", "C_aaaaaaaaaaaa")))
	first, err := store.GetConversationBySessionID(ctx, "s-1")
	require.NoError(t, err)

	updated := sampleData("s-1", "C_aaaaaaaaaaaa")
	updated.Conversation.TotalTurns = 9
	updated.Transcripts = updated.Transcripts[:1]
	require.NoError(t, store.SaveConversationData(ctx, updated))

	assert.Equal(t, 1, store.ConversationCount())

	second, err := store.GetConversationBySessionID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 9, second.TotalTurns)
	// Row identity survives a reprocess.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	transcripts, err := store.GetTranscriptsByConversationID(ctx, "C_aaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Len(t, transcripts, 1)
}

func TestMemoryStoreReadsReturnCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveConversationData(ctx, sampleData("s-1", "C_aaaaaaaaaaaa")))

	conv, err := store.GetConversationBySessionID(ctx, "s-1")
	require.NoError(t, err)
	conv.Status = "mutated"

	again, err := store.GetConversationBySessionID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", again.Status)
}
