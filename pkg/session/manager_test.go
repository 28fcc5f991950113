package session

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivethru-server/pkg/errors"
)

func newTestManager() *Manager {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewManager(logger)
}

func TestStartSessionGeneratesID(t *testing.T) {
	manager := newTestManager()

	sessionID, state, err := manager.StartSession("")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	require.NotNil(t, state)
	assert.Equal(t, StatusPending, state.Status())
	assert.Equal(t, 1, manager.ActiveSessions())
}

func TestStartSessionDuplicateFails(t *testing.T) {
	manager := newTestManager()

	_, _, err := manager.StartSession("drive-1")
	require.NoError(t, err)

	_, _, err = manager.StartSession("drive-1")
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrSessionAlreadyExist))
}

func TestRecordTurnAndToolCall(t *testing.T) {
	manager := newTestManager()
	sessionID, state, err := manager.StartSession("drive-1")
	require.NoError(t, err)

	require.NoError(t, manager.RecordTurn(sessionID, true))
	require.NoError(t, manager.RecordTurn(sessionID, false))
	require.NoError(t, manager.RecordToolCall(sessionID, true))

	assert.Equal(t, 2, state.Metrics().TotalTurns)
	assert.Equal(t, 1, state.Metrics().UserTurns)
	assert.Equal(t, 1, state.Metrics().SuccessfulToolCalls)

	err = manager.RecordTurn("unknown", true)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrSessionNotFound))
}

func TestEndSessionFinalizesAndRemoves(t *testing.T) {
	manager := newTestManager()
	sessionID, _, err := manager.StartSession("drive-1")
	require.NoError(t, err)

	state, err := manager.EndSession(sessionID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Metrics().Finalized())
	assert.Equal(t, 0, manager.ActiveSessions())

	_, ok := manager.Get(sessionID)
	assert.False(t, ok)

	_, err = manager.EndSession(sessionID)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrSessionNotFound))
}
