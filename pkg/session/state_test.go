package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivethru-server/pkg/errors"
)

func TestAddItemsKeyedByGeneratedID(t *testing.T) {
	state := NewOrderState(nil)

	burger := NewRegularItem("item-1", "Cheeseburger", 4.99, 1, "medium", "ketchup")
	combo := NewComboItem("meal-1", "Big Mac Combo", 12.99, 1, "large", "coke", "bbq")
	fries := NewRegularItem("item-2", "Fries", 2.49, 2, "small", "")

	require.NoError(t, state.Add(burger))
	require.NoError(t, state.Add(combo))
	require.NoError(t, state.Add(fries))

	assert.Equal(t, 3, state.ItemCount())
	assert.NotEqual(t, burger.OrderID, combo.OrderID)
	assert.NotEqual(t, combo.OrderID, fries.OrderID)

	items := state.Items()
	assert.Equal(t, "Big Mac Combo", items[combo.OrderID].Name)
	assert.Equal(t, ItemTypeCombo, items[combo.OrderID].ItemType)
	assert.Equal(t, ItemTypeRegular, items[fries.OrderID].ItemType)
}

func TestAddDuplicateItemIDFails(t *testing.T) {
	state := NewOrderState(nil)

	item := NewRegularItem("item-1", "Cheeseburger", 4.99, 1, "", "")
	require.NoError(t, state.Add(item))

	err := state.Add(item)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrDuplicateItem))

	// The failed add must not have touched the aggregate.
	assert.Equal(t, 1, state.ItemCount())
}

func TestFirstAddPromotesPendingToInProgress(t *testing.T) {
	state := NewOrderState(nil)
	assert.Equal(t, StatusPending, state.Status())

	require.NoError(t, state.Add(NewRegularItem("item-1", "Fries", 2.49, 1, "", "")))
	assert.Equal(t, StatusInProgress, state.Status())
}

func TestMarkCompletedRequiresTotalPrice(t *testing.T) {
	state := NewOrderState(nil)
	require.NoError(t, state.Add(NewRegularItem("item-1", "Fries", 2.49, 1, "", "")))

	err := state.MarkCompleted()
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrTotalPriceNotAssigned))
	assert.Equal(t, StatusInProgress, state.Status())

	require.NoError(t, state.SetTotalPrice(2.49))
	require.NoError(t, state.MarkCompleted())
	assert.Equal(t, StatusCompleted, state.Status())

	total, ok := state.TotalPrice()
	assert.True(t, ok)
	assert.Equal(t, 2.49, total)
}

func TestTotalPriceFrozenAfterCompletion(t *testing.T) {
	state := NewOrderState(nil)
	require.NoError(t, state.Add(NewRegularItem("item-1", "Fries", 2.49, 1, "", "")))
	require.NoError(t, state.SetTotalPrice(2.49))
	require.NoError(t, state.MarkCompleted())

	err := state.SetTotalPrice(5.00)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidTransition))

	total, _ := state.TotalPrice()
	assert.Equal(t, 2.49, total)
}

func TestNegativeTotalPriceRejected(t *testing.T) {
	state := NewOrderState(nil)

	err := state.SetTotalPrice(-1)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidInput))
}

func TestTerminalStatesRejectMutation(t *testing.T) {
	state := NewOrderState(nil)
	require.NoError(t, state.MarkAbandoned())
	assert.Equal(t, StatusAbandoned, state.Status())

	err := state.Add(NewRegularItem("item-1", "Fries", 2.49, 1, "", ""))
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidTransition))

	assert.Error(t, state.MarkCompleted())
	assert.Error(t, state.MarkAbandoned())
	assert.Error(t, state.SetTotalPrice(1))
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusAbandoned, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusAbandoned, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusAbandoned, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusAbandoned, StatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTranscriptBufferPreservesOrder(t *testing.T) {
	state := NewOrderState(nil)

	state.AddTranscriptSegment("Welcome to the drive-thru, what can I get you?", false)
	state.AddTranscriptSegment("One Big Mac combo please", true)
	state.AddTranscriptSegment("Anything else?", false)

	transcript := state.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, SpeakerAgent, transcript[0].Speaker)
	assert.Equal(t, SpeakerUser, transcript[1].Speaker)
	assert.Equal(t, "One Big Mac combo please", transcript[1].Text)

	// The returned slice is a copy; mutating it must not affect the state.
	transcript[0].Text = "mutated"
	assert.Equal(t, "Welcome to the drive-thru, what can I get you?", state.Transcript()[0].Text)
}

func TestItemInputClamping(t *testing.T) {
	item := NewRegularItem("item-1", " Fries ", -3, 0, " small ", "")
	assert.Equal(t, "Fries", item.Name)
	assert.Equal(t, 0.0, item.Price)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, "small", item.Size)
}
