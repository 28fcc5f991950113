package analytics

import (
	"fmt"
	"sort"
	"strings"

	"drivethru-server/pkg/errors"
	"drivethru-server/pkg/session"
)

// Sentiment labels assigned by the analyzer.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Sentiment classification thresholds on the [-1, 1] score.
const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// Segment is one normalized transcript entry.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Analysis is the result of analyzing a finished order state.
type Analysis struct {
	Summary        string    `json:"summary"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label"`
	Transcript     []Segment `json:"transcript"`
}

// Analyzer turns a finished OrderState into a summary, a sentiment score
// and a normalized transcript. It is pure and stateless: the same input
// always yields the same output, with no external calls.
type Analyzer struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
}

// NewAnalyzer creates an analyzer with the default lexicons.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positiveWords: defaultPositiveWords,
		negativeWords: defaultNegativeWords,
	}
}

// Analyze produces the analysis for a session's final order state. It never
// fails for well-formed input; a state without conversation metrics is
// rejected as invalid input.
func (a *Analyzer) Analyze(state *session.OrderState) (*Analysis, error) {
	if state == nil {
		return nil, errors.NewInvalidInput("order state is nil")
	}
	if state.Metrics() == nil {
		return nil, errors.NewInvalidInput("order state missing conversation metrics")
	}

	transcript := normalizeTranscript(state.Transcript())
	score := a.scoreUserTurns(transcript)

	return &Analysis{
		Summary:        buildSummary(state),
		SentimentScore: score,
		SentimentLabel: classify(score),
		Transcript:     transcript,
	}, nil
}

// scoreUserTurns scores the concatenated user-side text against the
// lexicons. The result is the mean weight of matched terms, so it stays
// within [-1, 1] by construction.
func (a *Analyzer) scoreUserTurns(transcript []Segment) float64 {
	var builder strings.Builder
	for _, seg := range transcript {
		if seg.Speaker != session.SpeakerUser {
			continue
		}
		builder.WriteString(seg.Text)
		builder.WriteByte(' ')
	}

	text := strings.ToLower(builder.String())
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == '\n'
	})

	var sum float64
	var hits int
	for _, w := range words {
		if val, ok := a.positiveWords[w]; ok {
			sum += val
			hits++
		}
		if val, ok := a.negativeWords[w]; ok {
			sum -= val
			hits++
		}
	}

	if hits == 0 {
		return 0
	}

	score := sum / float64(hits)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// classify maps a score to its sentiment label.
func classify(score float64) string {
	switch {
	case score > positiveThreshold:
		return SentimentPositive
	case score < negativeThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// buildSummary renders a short deterministic sentence from the ordered
// items and the session status.
func buildSummary(state *session.OrderState) string {
	items := state.Items()

	names := make([]string, 0, len(items))
	totalQuantity := 0
	combos := 0
	for _, item := range items {
		name := item.Name
		if item.Quantity > 1 {
			name = fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		}
		names = append(names, name)
		totalQuantity += item.Quantity
		if item.ItemType == session.ItemTypeCombo {
			combos++
		}
	}
	// Map iteration order is random; sort for a deterministic summary.
	sort.Strings(names)

	itemList := strings.Join(names, ", ")
	itemWord := "items"
	if totalQuantity == 1 {
		itemWord = "item"
	}

	switch state.Status() {
	case session.StatusCompleted:
		summary := fmt.Sprintf("Completed order with %d %s", totalQuantity, itemWord)
		if combos > 0 {
			summary += fmt.Sprintf(" (%d combo)", combos)
		}
		summary += ": " + itemList + "."
		if total, ok := state.TotalPrice(); ok {
			summary += fmt.Sprintf(" Total $%.2f.", total)
		}
		return summary
	case session.StatusAbandoned:
		if len(items) == 0 {
			return "Abandoned session with no items ordered."
		}
		return fmt.Sprintf("Abandoned session with %d %s discussed: %s.", totalQuantity, itemWord, itemList)
	default:
		if len(items) == 0 {
			return "Session in progress with no items yet."
		}
		return fmt.Sprintf("Session in progress with %d %s: %s.", totalQuantity, itemWord, itemList)
	}
}

// normalizeTranscript maps buffered segments to their persisted shape,
// preserving original order. An empty buffer yields an empty slice.
func normalizeTranscript(buffer []session.TranscriptSegment) []Segment {
	normalized := make([]Segment, 0, len(buffer))
	for _, seg := range buffer {
		normalized = append(normalized, Segment{
			Speaker: seg.Speaker,
			Text:    seg.Text,
		})
	}
	return normalized
}
