package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivethru-server/pkg/errors"
	"drivethru-server/pkg/session"
)

func completedComboState(t *testing.T) *session.OrderState {
	t.Helper()

	state := session.NewOrderState(nil)
	require.NoError(t, state.Add(session.NewComboItem("meal-1", "Big Mac Combo", 12.99, 1, "large", "coke", "")))
	require.NoError(t, state.SetTotalPrice(12.99))
	require.NoError(t, state.MarkCompleted())
	return state
}

func TestAnalyzeCompletedOrder(t *testing.T) {
	state := completedComboState(t)
	state.AddTranscriptSegment("Welcome, what can I get you?", false)
	state.AddTranscriptSegment("One Big Mac combo please", true)
	state.AddTranscriptSegment("That will be $12.99", false)

	analysis, err := NewAnalyzer().Analyze(state)
	require.NoError(t, err)

	assert.Equal(t, "Completed order with 1 item (1 combo): Big Mac Combo. Total $12.99.", analysis.Summary)
	require.Len(t, analysis.Transcript, 3)
	assert.Equal(t, session.SpeakerUser, analysis.Transcript[1].Speaker)
	assert.Equal(t, "One Big Mac combo please", analysis.Transcript[1].Text)
}

func TestAnalyzeAbandonedEmptySession(t *testing.T) {
	state := session.NewOrderState(nil)
	require.NoError(t, state.MarkAbandoned())

	analysis, err := NewAnalyzer().Analyze(state)
	require.NoError(t, err)

	assert.Equal(t, "Abandoned session with no items ordered.", analysis.Summary)
	assert.Equal(t, 0.0, analysis.SentimentScore)
	assert.Equal(t, SentimentNeutral, analysis.SentimentLabel)
	require.NotNil(t, analysis.Transcript)
	assert.Empty(t, analysis.Transcript)
}

func TestAnalyzeMissingMetricsFails(t *testing.T) {
	analyzer := NewAnalyzer()

	_, err := analyzer.Analyze(nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidInput))

	_, err = analyzer.Analyze(&session.OrderState{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidInput))
}

func TestSentimentClassification(t *testing.T) {
	tests := []struct {
		name  string
		turns []string
		label string
	}{
		{"clearly positive", []string{"This is great, thanks!"}, SentimentPositive},
		{"clearly negative", []string{"This is terrible, you got my order wrong"}, SentimentNegative},
		{"no lexicon hits", []string{"One cheeseburger and a large coke"}, SentimentNeutral},
		{"just above positive threshold", []string{"yes"}, SentimentPositive},
		{"mixed cancels out", []string{"great", "bad"}, SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := session.NewOrderState(nil)
			for _, turn := range tt.turns {
				state.AddTranscriptSegment(turn, true)
			}

			analysis, err := NewAnalyzer().Analyze(state)
			require.NoError(t, err)
			assert.Equal(t, tt.label, analysis.SentimentLabel)
			assert.GreaterOrEqual(t, analysis.SentimentScore, -1.0)
			assert.LessOrEqual(t, analysis.SentimentScore, 1.0)
		})
	}
}

func TestSentimentIgnoresAgentTurns(t *testing.T) {
	state := session.NewOrderState(nil)
	state.AddTranscriptSegment("Great choice, excellent, awesome!", false)
	state.AddTranscriptSegment("One cheeseburger", true)

	analysis, err := NewAnalyzer().Analyze(state)
	require.NoError(t, err)

	assert.Equal(t, 0.0, analysis.SentimentScore)
	assert.Equal(t, SentimentNeutral, analysis.SentimentLabel)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	state := session.NewOrderState(nil)
	require.NoError(t, state.Add(session.NewRegularItem("item-1", "Fries", 2.49, 2, "small", "")))
	require.NoError(t, state.Add(session.NewRegularItem("item-2", "Cheeseburger", 4.99, 1, "", "")))
	require.NoError(t, state.Add(session.NewComboItem("meal-1", "McNuggets Combo", 9.49, 1, "medium", "sprite", "bbq")))
	require.NoError(t, state.SetTotalPrice(19.46))
	require.NoError(t, state.MarkCompleted())
	state.AddTranscriptSegment("Thanks, that was fast and friendly", true)

	analyzer := NewAnalyzer()
	first, err := analyzer.Analyze(state)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := analyzer.Analyze(state)
		require.NoError(t, err)
		assert.Equal(t, first.Summary, again.Summary)
		assert.Equal(t, first.SentimentScore, again.SentimentScore)
		assert.Equal(t, first.SentimentLabel, again.SentimentLabel)
	}

	assert.Equal(t, "Completed order with 4 items (1 combo): 2x Fries, Cheeseburger, McNuggets Combo. Total $19.46.", first.Summary)
	assert.Equal(t, SentimentPositive, first.SentimentLabel)
}

func TestAnalyzeInProgressSession(t *testing.T) {
	state := session.NewOrderState(nil)
	require.NoError(t, state.Add(session.NewRegularItem("item-1", "Fries", 2.49, 1, "", "")))

	analysis, err := NewAnalyzer().Analyze(state)
	require.NoError(t, err)
	assert.Equal(t, "Session in progress with 1 item: Fries.", analysis.Summary)
}
