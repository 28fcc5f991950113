package session

import (
	"time"

	"drivethru-server/pkg/errors"
)

// Status is the order lifecycle state (persisted as a string).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// allowedTransitions defines the order status state machine.
// completed and abandoned are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusAbandoned},
	StatusInProgress: {StatusCompleted, StatusAbandoned},
	StatusCompleted:  {},
	StatusAbandoned:  {},
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Speaker labels for transcript segments.
const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// TranscriptSegment is one buffered utterance.
type TranscriptSegment struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderState is the live aggregate for one voice ordering session. It is
// mutated by a single logical owner (the dialogue runtime task for the
// session) and therefore carries no internal locking.
type OrderState struct {
	items      map[string]OrderedItem
	status     Status
	totalPrice float64
	priceSet   bool
	transcript []TranscriptSegment
	metrics    *ConversationMetrics
}

// NewOrderState creates the aggregate for a new session. The metrics object
// is owned 1:1 by the returned state.
func NewOrderState(metrics *ConversationMetrics) *OrderState {
	if metrics == nil {
		metrics = NewConversationMetrics()
	}
	return &OrderState{
		items:      make(map[string]OrderedItem),
		status:     StatusPending,
		transcript: make([]TranscriptSegment, 0, 16),
		metrics:    metrics,
	}
}

// Add inserts an item under its generated order id. A key collision means
// id generation is broken and is reported as a fatal invariant violation,
// never retried.
func (o *OrderState) Add(item OrderedItem) error {
	if o.status.Terminal() {
		return errors.NewInvalidTransition(string(o.status), string(StatusInProgress))
	}
	if _, exists := o.items[item.OrderID]; exists {
		return errors.NewDuplicateItem(item.OrderID)
	}

	o.items[item.OrderID] = item

	// First mutation moves a pending session into progress.
	if o.status == StatusPending {
		o.status = StatusInProgress
	}
	return nil
}

// AddTranscriptSegment appends one utterance to the transcript buffer.
// No size bound is enforced here; that policy belongs to the caller.
func (o *OrderState) AddTranscriptSegment(text string, isUser bool) {
	speaker := SpeakerAgent
	if isUser {
		speaker = SpeakerUser
	}
	o.transcript = append(o.transcript, TranscriptSegment{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// SetTotalPrice assigns the session total prior to completion.
func (o *OrderState) SetTotalPrice(price float64) error {
	if o.status.Terminal() {
		return errors.NewInvalidTransition(string(o.status), string(o.status)).
			WithField("reason", "total price is frozen in a terminal state")
	}
	if price < 0 {
		return errors.NewInvalidInput("total price cannot be negative").
			WithField("total_price", price)
	}
	o.totalPrice = price
	o.priceSet = true
	return nil
}

// MarkCompleted transitions the session to completed, freezing the total
// price. The caller must have assigned the total first.
func (o *OrderState) MarkCompleted() error {
	if !CanTransition(o.status, StatusCompleted) || o.status.Terminal() {
		return errors.NewInvalidTransition(string(o.status), string(StatusCompleted))
	}
	if !o.priceSet {
		return errors.Wrap(errors.ErrTotalPriceNotAssigned, "cannot complete order")
	}
	o.status = StatusCompleted
	return nil
}

// MarkAbandoned transitions the session to abandoned.
func (o *OrderState) MarkAbandoned() error {
	if !CanTransition(o.status, StatusAbandoned) || o.status.Terminal() {
		return errors.NewInvalidTransition(string(o.status), string(StatusAbandoned))
	}
	o.status = StatusAbandoned
	return nil
}

// Status returns the current lifecycle status.
func (o *OrderState) Status() Status {
	return o.status
}

// Items returns a copy of the items mapping.
func (o *OrderState) Items() map[string]OrderedItem {
	items := make(map[string]OrderedItem, len(o.items))
	for id, item := range o.items {
		items[id] = item
	}
	return items
}

// ItemCount returns the number of distinct ordered items.
func (o *OrderState) ItemCount() int {
	return len(o.items)
}

// TotalPrice returns the assigned total and whether one has been set.
// The total is authoritative only once the session is completed.
func (o *OrderState) TotalPrice() (float64, bool) {
	return o.totalPrice, o.priceSet
}

// Transcript returns a copy of the buffered transcript in original order.
func (o *OrderState) Transcript() []TranscriptSegment {
	transcript := make([]TranscriptSegment, len(o.transcript))
	copy(transcript, o.transcript)
	return transcript
}

// Metrics returns the conversation metrics owned by this session.
func (o *OrderState) Metrics() *ConversationMetrics {
	return o.metrics
}

// ExportMetrics returns the metrics snapshot computed against this state.
func (o *OrderState) ExportMetrics() MetricsSnapshot {
	return o.metrics.Export(o)
}
