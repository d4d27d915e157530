package providers

import "context"

// CompletionOptions tunes a single model call.
type CompletionOptions struct {
	// JSONOutput asks the provider to constrain the reply to a JSON object.
	JSONOutput      bool
	Temperature     float64
	MaxOutputTokens int
}

// GenerativeProvider produces a text completion for a prompt.
type GenerativeProvider interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}
