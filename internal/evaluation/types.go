package evaluation

import (
	"time"

	"github.com/zatekoja/itineraryconcierge/internal/application/services"
)

// GoldenMessage is a labeled chat message with the routing it should get.
type GoldenMessage struct {
	ID                 string   `json:"id"`
	Message            string   `json:"message"`
	NeedsRetrieval     bool     `json:"needs_retrieval"`
	ExpectedTriggers   []string `json:"expected_triggers"`
	ExpectedSubSources []string `json:"expected_sub_sources"`
	Difficulty         string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single message.
type EvalResult struct {
	MessageID       string
	Message         string
	Difficulty      string
	Expected        bool
	Got             services.IntentClassification
	TriggerRecall   float64
	SubSourceRecall float64
	Latency         time.Duration
}

// Correct reports whether the retrieval decision matched the label.
func (r EvalResult) Correct() bool {
	return r.Expected == r.Got.NeedsRetrieval
}

// EvalSummary holds aggregate metrics across all golden messages.
type EvalSummary struct {
	TotalMessages      int
	RetrievalAccuracy  float64
	FalseRetrievals    int // retrieval triggered for a message labeled as not needing it
	MissedRetrievals   int
	AvgTriggerRecall   float64
	AvgSubSourceRecall float64
	AvgLatency         time.Duration
	Misrouted          []string
	ByDifficulty       map[string]*DifficultySummary
}

// DifficultySummary holds metrics grouped by difficulty.
type DifficultySummary struct {
	Count             int
	RetrievalAccuracy float64
}
