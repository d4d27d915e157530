package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

// FallbackNarration is used when the model reply carries no usable narration.
const FallbackNarration = "Okay!"

const modelReplySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["interaction_type"],
  "properties": {
    "interaction_type": {"enum": ["question", "modification"]}
  },
  "additionalProperties": true
}`

var (
	replySchemaOnce sync.Once
	replySchema     *jsonschema.Schema
	replySchemaErr  error
)

// ModelReplySchema returns the compiled schema every model reply must satisfy.
func ModelReplySchema() (*jsonschema.Schema, error) {
	replySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("model_reply.json", strings.NewReader(modelReplySchemaJSON)); err != nil {
			replySchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("model_reply.json")
		if err != nil {
			replySchemaErr = fmt.Errorf("compile model reply schema: %w", err)
			return
		}
		replySchema = schema
	})
	return replySchema, replySchemaErr
}

// ModelReply is a validated, coerced model response.
type ModelReply struct {
	InteractionType entities.InteractionType
	// Patch holds the raw operations; each is validated by the patch applier.
	Patch       []json.RawMessage
	Narration   string
	Suggestions []string
	Sources     []string
}

// GenerativeAdapter calls the model and turns its text into a ModelReply.
type GenerativeAdapter struct {
	provider providers.GenerativeProvider
	timeout  time.Duration
	opts     providers.CompletionOptions
}

// NewGenerativeAdapter creates an adapter. A zero timeout means 45 seconds.
func NewGenerativeAdapter(provider providers.GenerativeProvider, timeout time.Duration, opts providers.CompletionOptions) *GenerativeAdapter {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	opts.JSONOutput = true
	return &GenerativeAdapter{provider: provider, timeout: timeout, opts: opts}
}

// Generate performs one model call. There is no retry; any failure is a
// GENERATION AppError and nothing downstream may write.
func (a *GenerativeAdapter) Generate(ctx context.Context, prompt string) (*ModelReply, error) {
	ctx, span := observability.StartSpan(ctx, "model.generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.provider.Complete(ctx, prompt, a.opts)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewGenerationError("model call failed", err)
	}

	reply, err := ParseModelReply(text)
	if err != nil {
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Warn().Err(err).Int("reply_length", len(text)).Msg("Discarding malformed model reply")
		return nil, err
	}
	return reply, nil
}

// ParseModelReply strips markdown fences, validates the reply schema and
// coerces optional fields: non-array patch or suggestions become empty,
// non-string narration falls back to FallbackNarration.
func ParseModelReply(text string) (*ModelReply, error) {
	cleaned := stripCodeFence(text)

	var doc interface{}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, apperrors.NewGenerationError("model reply is not valid JSON", err)
	}

	schema, err := ModelReplySchema()
	if err != nil {
		return nil, apperrors.NewInternalError("model reply schema unavailable", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, apperrors.NewGenerationError("model reply does not match schema", err)
	}

	var raw struct {
		InteractionType   entities.InteractionType `json:"interaction_type"`
		Patch             json.RawMessage          `json:"patch"`
		AssistantResponse json.RawMessage          `json:"assistant_response"`
		Suggestions       json.RawMessage          `json:"suggestions"`
		Sources           json.RawMessage          `json:"sources"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, apperrors.NewGenerationError("model reply is not valid JSON", err)
	}

	reply := &ModelReply{
		InteractionType: raw.InteractionType,
		Patch:           []json.RawMessage{},
		Narration:       FallbackNarration,
		Suggestions:     stringList(raw.Suggestions),
		Sources:         stringList(raw.Sources),
	}

	var ops []json.RawMessage
	if err := json.Unmarshal(raw.Patch, &ops); err == nil && ops != nil {
		reply.Patch = ops
	}

	var narration string
	if err := json.Unmarshal(raw.AssistantResponse, &narration); err == nil && strings.TrimSpace(narration) != "" {
		reply.Narration = narration
	}
	return reply, nil
}

func stringList(raw json.RawMessage) []string {
	out := []string{}
	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return out
	}
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```JSON")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
