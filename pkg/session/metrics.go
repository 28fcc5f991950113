package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"drivethru-server/pkg/errors"
)

// ConversationMetrics accumulates turn-by-turn counters for one session.
// It is owned exclusively by one OrderState and shares its single-owner
// concurrency model, so there is no internal locking.
type ConversationMetrics struct {
	ConversationID       string
	StartTime            time.Time
	EndTime              *time.Time
	DurationSeconds      float64
	TotalTurns           int
	UserTurns            int
	AgentTurns           int
	ToolCallsCount       int
	SuccessfulToolCalls  int
	ErrorCount           int
	InterruptionCount    int
	OrderSuccess         bool
	SentimentScore       float64
	CustomerSatisfaction *int
	Feedback             *string

	finalized bool
}

// NewConversationMetrics creates metrics for a new session with a generated
// conversation id.
func NewConversationMetrics() *ConversationMetrics {
	return &ConversationMetrics{
		ConversationID: newConversationID(),
		StartTime:      time.Now(),
	}
}

// newConversationID generates a C_<token> conversation identifier.
func newConversationID() string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "C_" + token[:12]
}

// RecordTurn increments the total turn counter and exactly one side counter.
func (m *ConversationMetrics) RecordTurn(isUser bool) {
	m.TotalTurns++
	if isUser {
		m.UserTurns++
	} else {
		m.AgentTurns++
	}
}

// RecordToolCall increments the tool call counter, and the success counter
// when the call succeeded.
func (m *ConversationMetrics) RecordToolCall(successful bool) {
	m.ToolCallsCount++
	if successful {
		m.SuccessfulToolCalls++
	}
}

// RecordError increments the error counter.
func (m *ConversationMetrics) RecordError() {
	m.ErrorCount++
}

// RecordInterruption increments the interruption counter.
func (m *ConversationMetrics) RecordInterruption() {
	m.InterruptionCount++
}

// SetSatisfaction records an optional post-session rating and feedback text.
func (m *ConversationMetrics) SetSatisfaction(rating int, feedback string) {
	m.CustomerSatisfaction = &rating
	if feedback != "" {
		m.Feedback = &feedback
	}
}

// Finalize closes the metrics from the owning order state: end time,
// duration and order success. It may be called at most once; a repeat call
// returns an error and changes nothing.
func (m *ConversationMetrics) Finalize(state *OrderState) error {
	if m.finalized {
		return errors.Wrap(errors.ErrMetricsFinalized, "end session metrics").
			WithField("conversation_id", m.ConversationID)
	}

	now := time.Now()
	m.EndTime = &now
	m.DurationSeconds = now.Sub(m.StartTime).Seconds()
	m.OrderSuccess = state != nil && state.Status() == StatusCompleted
	m.finalized = true
	return nil
}

// Finalized reports whether Finalize has run.
func (m *ConversationMetrics) Finalized() bool {
	return m.finalized
}

// MetricsSnapshot is the exported, read-only view of session metrics.
type MetricsSnapshot struct {
	ConversationID      string              `json:"conversation_id"`
	BusinessSummary     BusinessSummary     `json:"business_summary"`
	PerformanceMetrics  PerformanceMetrics  `json:"performance_metrics"`
	ConversationSummary ConversationSummary `json:"conversation_summary"`
}

// BusinessSummary nests revenue and order aggregates.
type BusinessSummary struct {
	BusinessMetrics BusinessMetrics `json:"business_metrics"`
}

// BusinessMetrics aggregates revenue and order counts for the owning session.
type BusinessMetrics struct {
	TotalRevenue    float64 `json:"total_revenue"`
	CompletedOrders int     `json:"completed_orders"`
	ItemsOrdered    int     `json:"items_ordered"`
}

// PerformanceMetrics holds derived rates for the session.
type PerformanceMetrics struct {
	ToolCallSuccessRate float64 `json:"tool_call_success_rate"`
	ErrorsPerTurn       float64 `json:"errors_per_turn"`
	DurationSeconds     float64 `json:"duration_seconds"`
	InterruptionCount   int     `json:"interruption_count"`
}

// ConversationSummary mirrors the raw counters.
type ConversationSummary struct {
	TotalTurns          int        `json:"total_turns"`
	UserTurns           int        `json:"user_turns"`
	AgentTurns          int        `json:"agent_turns"`
	ToolCallsCount      int        `json:"tool_calls_count"`
	SuccessfulToolCalls int        `json:"successful_tool_calls"`
	ErrorCount          int        `json:"error_count"`
	OrderSuccess        bool       `json:"order_success"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
}

// Export returns a snapshot of the metrics. Business aggregates are computed
// from the owning session's order state, never from process-wide state.
func (m *ConversationMetrics) Export(state *OrderState) MetricsSnapshot {
	business := BusinessMetrics{}
	if state != nil {
		if total, ok := state.TotalPrice(); ok && state.Status() == StatusCompleted {
			business.TotalRevenue = total
			business.CompletedOrders = 1
		}
		business.ItemsOrdered = state.ItemCount()
	}

	return MetricsSnapshot{
		ConversationID: m.ConversationID,
		BusinessSummary: BusinessSummary{
			BusinessMetrics: business,
		},
		PerformanceMetrics: PerformanceMetrics{
			ToolCallSuccessRate: float64(m.SuccessfulToolCalls) / float64(max(m.ToolCallsCount, 1)),
			ErrorsPerTurn:       float64(m.ErrorCount) / float64(max(m.TotalTurns, 1)),
			DurationSeconds:     m.DurationSeconds,
			InterruptionCount:   m.InterruptionCount,
		},
		ConversationSummary: ConversationSummary{
			TotalTurns:          m.TotalTurns,
			UserTurns:           m.UserTurns,
			AgentTurns:          m.AgentTurns,
			ToolCallsCount:      m.ToolCallsCount,
			SuccessfulToolCalls: m.SuccessfulToolCalls,
			ErrorCount:          m.ErrorCount,
			OrderSuccess:        m.OrderSuccess,
			StartTime:           m.StartTime,
			EndTime:             m.EndTime,
		},
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
