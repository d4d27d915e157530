package evaluation

import "fmt"

type GuardrailConfig struct {
	MinRetrievalAccuracy float64
	MaxFalseRetrievals   int
	MinSubSourceRecall   float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MinRetrievalAccuracy <= 0 {
		config.MinRetrievalAccuracy = 0.9
	}
	if config.MaxFalseRetrievals < 0 {
		config.MaxFalseRetrievals = 0
	}
	return &Guardrails{config: config}
}

// Check returns an error naming the first threshold the summary misses.
func (g *Guardrails) Check(s *EvalSummary) error {
	if s.RetrievalAccuracy < g.config.MinRetrievalAccuracy {
		return fmt.Errorf("retrieval accuracy %.2f below %.2f (misrouted: %v)", s.RetrievalAccuracy, g.config.MinRetrievalAccuracy, s.Misrouted)
	}
	if s.FalseRetrievals > g.config.MaxFalseRetrievals {
		return fmt.Errorf("%d false retrievals, at most %d allowed", s.FalseRetrievals, g.config.MaxFalseRetrievals)
	}
	if s.AvgSubSourceRecall < g.config.MinSubSourceRecall {
		return fmt.Errorf("sub-source recall %.2f below %.2f", s.AvgSubSourceRecall, g.config.MinSubSourceRecall)
	}
	return nil
}
