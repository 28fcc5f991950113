package session

import (
	"strings"

	"github.com/google/uuid"
)

// ItemType discriminates the ordered item variants.
type ItemType string

const (
	ItemTypeRegular ItemType = "regular"
	ItemTypeCombo   ItemType = "combo"
)

// OrderedItem describes one ordered product. Items are immutable once
// constructed; the OrderID is generated at construction time and is the
// item's key inside the owning OrderState.
type OrderedItem struct {
	OrderID  string   `json:"order_id"`
	ItemID   string   `json:"item_id,omitempty"`
	MealID   string   `json:"meal_id,omitempty"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
	Size     string   `json:"size,omitempty"`
	Drink    string   `json:"drink,omitempty"`
	Sauce    string   `json:"sauce,omitempty"`
	ItemType ItemType `json:"item_type"`
}

// NewRegularItem creates a standalone menu item (burger, drink, side).
func NewRegularItem(itemID, name string, price float64, quantity int, size, sauce string) OrderedItem {
	return OrderedItem{
		OrderID:  newOrderItemID(),
		ItemID:   strings.TrimSpace(itemID),
		Name:     strings.TrimSpace(name),
		Price:    nonNegative(price),
		Quantity: atLeastOne(quantity),
		Size:     strings.TrimSpace(size),
		Sauce:    strings.TrimSpace(sauce),
		ItemType: ItemTypeRegular,
	}
}

// NewComboItem creates a combo meal bundling a main item with drink,
// fries and sauce modifiers.
func NewComboItem(mealID, name string, price float64, quantity int, size, drink, sauce string) OrderedItem {
	return OrderedItem{
		OrderID:  newOrderItemID(),
		MealID:   strings.TrimSpace(mealID),
		Name:     strings.TrimSpace(name),
		Price:    nonNegative(price),
		Quantity: atLeastOne(quantity),
		Size:     strings.TrimSpace(size),
		Drink:    strings.TrimSpace(drink),
		Sauce:    strings.TrimSpace(sauce),
		ItemType: ItemTypeCombo,
	}
}

func newOrderItemID() string {
	return uuid.New().String()
}

func nonNegative(price float64) float64 {
	if price < 0 {
		return 0
	}
	return price
}

func atLeastOne(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}
