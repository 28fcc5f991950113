package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"drivethru-server/pkg/errors"
	"drivethru-server/pkg/metrics"
)

// Manager is the session-start factory and registry for live sessions. Each
// session's aggregate is owned by its dialogue runtime task; the manager
// only guards the registry map, never the aggregates themselves.
type Manager struct {
	logger   *logrus.Logger
	mutex    sync.RWMutex
	sessions map[string]*OrderState
}

// NewManager creates a session manager.
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		logger:   logger,
		sessions: make(map[string]*OrderState),
	}
}

// StartSession creates the aggregate for a new session. An empty sessionID
// gets a generated one. Returns the session id and its order state.
func (m *Manager) StartSession(sessionID string) (string, *OrderState, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return "", nil, errors.Wrap(errors.ErrSessionAlreadyExist, "start session").
			WithField("session_id", sessionID)
	}

	state := NewOrderState(NewConversationMetrics())
	m.sessions[sessionID] = state

	metrics.SessionStarted()

	m.logger.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"conversation_id": state.Metrics().ConversationID,
	}).Info("Ordering session started")

	return sessionID, state, nil
}

// Get returns the live aggregate for a session.
func (m *Manager) Get(sessionID string) (*OrderState, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	state, ok := m.sessions[sessionID]
	return state, ok
}

// RecordTurn updates the session's turn metrics.
func (m *Manager) RecordTurn(sessionID string, isUser bool) error {
	state, ok := m.Get(sessionID)
	if !ok {
		return errors.Wrap(errors.ErrSessionNotFound, "record turn").
			WithField("session_id", sessionID)
	}

	state.Metrics().RecordTurn(isUser)

	speaker := SpeakerAgent
	if isUser {
		speaker = SpeakerUser
	}
	metrics.RecordTurn(speaker)
	return nil
}

// RecordToolCall updates the session's tool call metrics.
func (m *Manager) RecordToolCall(sessionID string, successful bool) error {
	state, ok := m.Get(sessionID)
	if !ok {
		return errors.Wrap(errors.ErrSessionNotFound, "record tool call").
			WithField("session_id", sessionID)
	}

	state.Metrics().RecordToolCall(successful)
	metrics.RecordToolCall(successful)
	return nil
}

// EndSession finalizes the session metrics and removes the aggregate from
// the registry, handing it back for pipeline processing. The aggregate must
// not be reused after the pipeline consumes it.
func (m *Manager) EndSession(sessionID string) (*OrderState, error) {
	m.mutex.Lock()
	state, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mutex.Unlock()

	if !ok {
		return nil, errors.Wrap(errors.ErrSessionNotFound, "end session").
			WithField("session_id", sessionID)
	}

	if err := state.Metrics().Finalize(state); err != nil {
		return nil, err
	}

	metrics.SessionEnded()

	m.logger.WithFields(logrus.Fields{
		"session_id":       sessionID,
		"conversation_id":  state.Metrics().ConversationID,
		"status":           state.Status(),
		"total_turns":      state.Metrics().TotalTurns,
		"duration_seconds": state.Metrics().DurationSeconds,
	}).Info("Ordering session ended")

	return state, nil
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
