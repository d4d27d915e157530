package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

const conciergePersona = `You are an AI travel concierge helping a traveller refine an existing itinerary.

TASKS:
1. Inspect the current itinerary below.
2. Read the traveller's new message in the context of the recent conversation.
3. Decide whether the message asks for a change to the itinerary (dates, days, activities, budget, etc.) or is a question.
4. If a change is needed, express it ONLY as an RFC 6902 JSON Patch array addressed against the itinerary object (paths such as "/schedule/2/activities/-").
5. If no change is needed, return an empty patch [].
6. Always write a short natural-language reply to the traveller acknowledging any change or answering the question.`

const evidenceInstruction = `Ground any recommendation in the web evidence above. Do not invent places, prices or opening hours that the evidence does not support.`

const replySchemaInstruction = `Return a single JSON object with exactly these keys:
{
  "interaction_type": "question" | "modification",
  "patch": <RFC 6902 operation array, [] when nothing changes>,
  "assistant_response": <string>,
  "suggestions": <array of short follow-up replies the traveller could send>,
  "sources": <array of evidence URLs you relied on>
}`

// PromptInput is everything the prompt is assembled from.
type PromptInput struct {
	Itinerary json.RawMessage
	Evidence  []entities.EvidenceItem
	History   []entities.ChatTurn
	Message   string
}

// PromptBuilder assembles the single instruction sent to the generative model.
// Output is deterministic for a given input.
type PromptBuilder struct {
	historyWindow int
	excerptLimit  int
}

// NewPromptBuilder creates a builder keeping the last historyWindow turns
// and excerptLimit characters per evidence item.
func NewPromptBuilder(historyWindow, excerptLimit int) *PromptBuilder {
	if historyWindow < 0 {
		historyWindow = 0
	}
	if excerptLimit <= 0 {
		excerptLimit = 500
	}
	return &PromptBuilder{historyWindow: historyWindow, excerptLimit: excerptLimit}
}

// Build renders the prompt: persona, itinerary, evidence (only when present),
// recent history oldest first, the message and the reply schema.
func (b *PromptBuilder) Build(in PromptInput) (string, error) {
	var itinerary bytes.Buffer
	if err := json.Indent(&itinerary, in.Itinerary, "", "  "); err != nil {
		return "", fmt.Errorf("failed to render itinerary: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(conciergePersona)
	sb.WriteString("\n\n### Current Itinerary\n```json\n")
	sb.Write(itinerary.Bytes())
	sb.WriteString("\n```\n")

	if len(in.Evidence) > 0 {
		sb.WriteString("\n### Web Evidence\n")
		for i, item := range in.Evidence {
			fmt.Fprintf(&sb, "[%d] %s\nURL: %s\n", i+1, strings.TrimSpace(item.Title), item.URL)
			if item.PublishedDate != "" {
				fmt.Fprintf(&sb, "Published: %s\n", item.PublishedDate)
			}
			fmt.Fprintf(&sb, "%s\n\n", truncateRunes(strings.TrimSpace(item.Content), b.excerptLimit))
		}
		sb.WriteString(evidenceInstruction)
		sb.WriteString("\n")
	}

	if history := b.window(in.History); len(history) > 0 {
		sb.WriteString("\n### Recent Conversation\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "%s: %s\n", turnLabel(turn.Role), strings.TrimSpace(turn.Message))
		}
	}

	sb.WriteString("\n### Traveller Message\n")
	fmt.Fprintf(&sb, "%q\n\n", strings.TrimSpace(in.Message))
	sb.WriteString(replySchemaInstruction)
	return sb.String(), nil
}

func (b *PromptBuilder) window(history []entities.ChatTurn) []entities.ChatTurn {
	if b.historyWindow == 0 {
		return nil
	}
	if len(history) > b.historyWindow {
		return history[len(history)-b.historyWindow:]
	}
	return history
}

func turnLabel(role string) string {
	switch strings.ToLower(role) {
	case entities.RoleAssistant, "model":
		return "Concierge"
	default:
		return "Traveller"
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
