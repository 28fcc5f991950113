package analytics

// Default sentiment lexicons. Weights are heuristic and tuned for short
// drive-thru exchanges; this is keyword scoring, not NLP.
var defaultPositiveWords = map[string]float64{
	"great":     0.8,
	"good":      0.6,
	"perfect":   0.9,
	"awesome":   0.9,
	"excellent": 0.9,
	"happy":     0.7,
	"love":      0.8,
	"thanks":    0.5,
	"thank":     0.5,
	"yes":       0.3,
	"please":    0.3,
	"delicious": 0.8,
	"fresh":     0.5,
	"fast":      0.4,
	"friendly":  0.6,
}

var defaultNegativeWords = map[string]float64{
	"bad":        0.7,
	"terrible":   0.9,
	"horrible":   0.9,
	"wrong":      0.7,
	"angry":      0.8,
	"upset":      0.7,
	"cancel":     0.6,
	"slow":       0.5,
	"cold":       0.5,
	"stale":      0.7,
	"disgusting": 0.9,
	"never":      0.4,
	"hate":       0.9,
	"waiting":    0.4,
	"forgot":     0.6,
}
