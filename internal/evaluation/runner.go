package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/itineraryconcierge/internal/application/services"
)

type Classifier interface {
	Classify(message string) services.IntentClassification
}

// Runner runs evaluation across a set of golden messages.
type Runner struct {
	classifier Classifier
}

func NewRunner(classifier Classifier) *Runner {
	return &Runner{classifier: classifier}
}

func (r *Runner) Run(ctx context.Context, messages []GoldenMessage) (*EvalSummary, []EvalResult, error) {
	summary := &EvalSummary{
		TotalMessages: len(messages),
		ByDifficulty:  make(map[string]*DifficultySummary),
	}
	results := make([]EvalResult, 0, len(messages))

	correct := 0
	for _, gm := range messages {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		start := time.Now()
		got := r.classifier.Classify(gm.Message)
		result := EvalResult{
			MessageID:       gm.ID,
			Message:         gm.Message,
			Difficulty:      gm.Difficulty,
			Expected:        gm.NeedsRetrieval,
			Got:             got,
			TriggerRecall:   Recall(gm.ExpectedTriggers, triggerNames(got)),
			SubSourceRecall: Recall(gm.ExpectedSubSources, subSourceNames(got)),
			Latency:         time.Since(start),
		}
		results = append(results, result)

		if result.Correct() {
			correct++
		}
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary, correct)
	return summary, results, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgTriggerRecall += res.TriggerRecall
	s.AvgSubSourceRecall += res.SubSourceRecall
	s.AvgLatency += res.Latency

	if !res.Correct() {
		s.Misrouted = append(s.Misrouted, res.MessageID)
		if res.Got.NeedsRetrieval {
			s.FalseRetrievals++
		} else {
			s.MissedRetrievals++
		}
	}

	if _, ok := s.ByDifficulty[res.Difficulty]; !ok {
		s.ByDifficulty[res.Difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[res.Difficulty]
	ds.Count++
	if res.Correct() {
		// Holds the correct count until finalizeSummary.
		ds.RetrievalAccuracy++
	}
}

func (r *Runner) finalizeSummary(s *EvalSummary, correct int) {
	s.RetrievalAccuracy = Accuracy(correct, s.TotalMessages)
	if s.TotalMessages > 0 {
		n := float64(s.TotalMessages)
		s.AvgTriggerRecall /= n
		s.AvgSubSourceRecall /= n
		s.AvgLatency /= time.Duration(s.TotalMessages)
	}

	for _, ds := range s.ByDifficulty {
		ds.RetrievalAccuracy = Accuracy(int(ds.RetrievalAccuracy), ds.Count)
	}
}

func triggerNames(c services.IntentClassification) []string {
	out := make([]string, len(c.Triggers))
	for i, t := range c.Triggers {
		out[i] = string(t)
	}
	return out
}

func subSourceNames(c services.IntentClassification) []string {
	out := make([]string, len(c.SubSources))
	for i, s := range c.SubSources {
		out[i] = string(s)
	}
	return out
}
