package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"drivethru-server/pkg/analytics"
	"drivethru-server/pkg/database"
	"drivethru-server/pkg/errors"
	"drivethru-server/pkg/messaging"
	"drivethru-server/pkg/metrics"
	"drivethru-server/pkg/session"
)

// Result statuses returned by ProcessConversationData.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Stages of a single pipeline invocation, in order. Committed and rolled
// back are terminal.
const (
	stageReceived   = "received"
	stageAnalyzing  = "analyzing"
	stagePersisting = "persisting"
	stageCommitted  = "committed"
	stageRolledBack = "rolled_back"
)

// Result is the outcome of one persistence attempt. ProcessConversationData
// always returns a Result and never panics or returns a Go error: the
// session teardown path must not be abortable by a storage fault.
type Result struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ConversationSink receives the published record after a successful commit.
type ConversationSink interface {
	PublishConversation(record *messaging.ConversationRecord) error
}

// Pipeline converts a finished session into durable analytic records and
// serves read-back queries. It is shared across all concurrent sessions;
// writes are serialized per session id while unrelated sessions persist in
// parallel.
type Pipeline struct {
	logger   *logrus.Logger
	store    database.ConversationStore
	analyzer *analytics.Analyzer
	sink     ConversationSink

	lockMutex    sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// NewPipeline creates a pipeline over the given store. The sink is optional;
// pass nil to disable post-commit publishing.
func NewPipeline(logger *logrus.Logger, store database.ConversationStore, sink ConversationSink) *Pipeline {
	return &Pipeline{
		logger:       logger,
		store:        store,
		analyzer:     analytics.NewAnalyzer(),
		sink:         sink,
		sessionLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the write lock for a session id, creating it on first use.
func (p *Pipeline) lockFor(sessionID string) *sync.Mutex {
	p.lockMutex.Lock()
	defer p.lockMutex.Unlock()

	lock, ok := p.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		p.sessionLocks[sessionID] = lock
	}
	return lock
}

// ProcessConversationData analyzes a finished order state and persists the
// conversation, order, item and transcript records in one atomic unit of
// work. Calling it again with the same session id replaces the stored
// snapshot instead of duplicating it, so retries after abnormal shutdown
// are safe.
func (p *Pipeline) ProcessConversationData(ctx context.Context, sessionID string, state *session.OrderState, snapshot session.MetricsSnapshot) *Result {
	log := p.logger.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"conversation_id": snapshot.ConversationID,
	})
	log.WithField("stage", stageReceived).Debug("Pipeline invocation received")

	lock := p.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	log.WithField("stage", stageAnalyzing).Debug("Analyzing conversation")
	analysis, err := p.analyzer.Analyze(state)
	if err != nil {
		// Data fault, not a storage fault: retrying with the same input
		// cannot succeed, so the message names the analysis step.
		log.WithError(err).WithField("stage", stageRolledBack).Error("Conversation analysis failed")
		metrics.RecordPipelineResult(StatusError)
		return &Result{
			Status:  StatusError,
			Message: fmt.Sprintf("analysis failed: %v", err),
		}
	}

	data := p.buildConversationData(sessionID, state, snapshot, analysis)

	log.WithField("stage", stagePersisting).Debug("Persisting conversation data")
	observe := metrics.ObservePersistDuration()
	err = p.store.SaveConversationData(ctx, data)
	observe()
	if err != nil {
		log.WithError(err).WithField("stage", stageRolledBack).Error("Failed to persist conversation data")
		metrics.RecordPipelineResult(StatusError)
		return &Result{
			Status:  StatusError,
			Message: fmt.Sprintf("storage failure: %v", err),
		}
	}

	log.WithFields(logrus.Fields{
		"stage":       stageCommitted,
		"orders":      len(data.Orders),
		"transcripts": len(data.Transcripts),
	}).Info("Conversation data committed")
	metrics.RecordPipelineResult(StatusSuccess)
	metrics.RecordConversationPersisted()

	p.publishCommitted(sessionID, state, snapshot, analysis)

	return &Result{
		Status:         StatusSuccess,
		ConversationID: snapshot.ConversationID,
	}
}

// buildConversationData maps the in-memory aggregate onto the storage shape:
// one conversation row, one order carrying all items when any were ordered,
// and one transcript row per normalized segment.
func (p *Pipeline) buildConversationData(sessionID string, state *session.OrderState, snapshot session.MetricsSnapshot, analysis *analytics.Analysis) *database.ConversationData {
	summary := snapshot.ConversationSummary

	conversation := &database.Conversation{
		ConversationID:      snapshot.ConversationID,
		SessionID:           sessionID,
		Status:              string(state.Status()),
		Success:             summary.OrderSuccess,
		DurationSeconds:     snapshot.PerformanceMetrics.DurationSeconds,
		TotalTurns:          summary.TotalTurns,
		UserTurns:           summary.UserTurns,
		AgentTurns:          summary.AgentTurns,
		ToolCallsCount:      summary.ToolCallsCount,
		SuccessfulToolCalls: summary.SuccessfulToolCalls,
		ErrorCount:          summary.ErrorCount,
		Summary:             analysis.Summary,
		SentimentScore:      analysis.SentimentScore,
	}

	data := &database.ConversationData{
		Conversation: conversation,
	}

	items := state.Items()
	if len(items) > 0 {
		order := &database.Order{
			ID:             uuid.New().String(),
			ConversationID: snapshot.ConversationID,
			Status:         string(state.Status()),
			ItemCount:      len(items),
		}
		if total, ok := state.TotalPrice(); ok {
			order.TotalPrice = total
		}
		data.Orders = append(data.Orders, order)

		for _, item := range items {
			data.OrderItems = append(data.OrderItems, &database.OrderItem{
				OrderID:  order.ID,
				ItemName: item.Name,
				ItemType: string(item.ItemType),
				Price:    item.Price,
				Quantity: item.Quantity,
				Size:     optionalString(item.Size),
				Drink:    optionalString(item.Drink),
				Sauce:    optionalString(item.Sauce),
			})
		}
	}

	for i, segment := range analysis.Transcript {
		data.Transcripts = append(data.Transcripts, &database.Transcript{
			ConversationID: snapshot.ConversationID,
			Speaker:        segment.Speaker,
			Text:           segment.Text,
			Ordinal:        i,
		})
	}

	return data
}

// publishCommitted pushes the committed conversation to the sink. Publishing
// is best effort and never changes the pipeline result.
func (p *Pipeline) publishCommitted(sessionID string, state *session.OrderState, snapshot session.MetricsSnapshot, analysis *analytics.Analysis) {
	if p.sink == nil {
		return
	}

	record := &messaging.ConversationRecord{
		ConversationID:  snapshot.ConversationID,
		SessionID:       sessionID,
		Status:          string(state.Status()),
		Success:         snapshot.ConversationSummary.OrderSuccess,
		DurationSeconds: snapshot.PerformanceMetrics.DurationSeconds,
		TotalTurns:      snapshot.ConversationSummary.TotalTurns,
		ItemCount:       state.ItemCount(),
		Summary:         analysis.Summary,
		SentimentScore:  analysis.SentimentScore,
		SentimentLabel:  analysis.SentimentLabel,
		CompletedAt:     time.Now().UTC(),
	}
	if total, ok := state.TotalPrice(); ok {
		record.TotalPrice = total
	}
	for _, segment := range analysis.Transcript {
		record.Transcript = append(record.Transcript, messaging.ConversationSegment{
			Speaker: segment.Speaker,
			Text:    segment.Text,
		})
	}

	if err := p.sink.PublishConversation(record); err != nil {
		p.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to publish committed conversation")
	}
}

// GetConversationBySessionID returns the stored conversation for a session,
// or (nil, nil) when none exists.
func (p *Pipeline) GetConversationBySessionID(ctx context.Context, sessionID string) (*database.Conversation, error) {
	return p.store.GetConversationBySessionID(ctx, sessionID)
}

// GetOrdersByConversationID returns the stored orders for a conversation,
// empty when none exist.
func (p *Pipeline) GetOrdersByConversationID(ctx context.Context, conversationID string) ([]*database.Order, error) {
	return p.store.GetOrdersByConversationID(ctx, conversationID)
}

// ExportMetricsForDashboard assembles the dashboard view for one session.
// An unknown session id yields a not-found error, never a panic; on success
// the map always carries the "conversation" key, plus "orders" and
// "transcripts" when any exist.
func (p *Pipeline) ExportMetricsForDashboard(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	conversation, err := p.store.GetConversationBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errors.NewStorageFailure(err)
	}
	if conversation == nil {
		return nil, errors.NewConversationNotFound(sessionID)
	}

	result := map[string]interface{}{
		"conversation": conversation,
	}

	orders, err := p.store.GetOrdersByConversationID(ctx, conversation.ConversationID)
	if err != nil {
		return nil, errors.NewStorageFailure(err)
	}
	if len(orders) > 0 {
		result["orders"] = orders
	}

	transcripts, err := p.store.GetTranscriptsByConversationID(ctx, conversation.ConversationID)
	if err != nil {
		return nil, errors.NewStorageFailure(err)
	}
	if len(transcripts) > 0 {
		result["transcripts"] = transcripts
	}

	return result, nil
}

// optionalString maps "" to nil for nullable storage columns.
func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
