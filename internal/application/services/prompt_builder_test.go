package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

var promptItinerary = json.RawMessage(`{"destination":"Lisbon","schedule":[{"day":1,"activities":[]}]}`)

func TestPromptBuilder_OmitsEvidenceSectionWhenEmpty(t *testing.T) {
	b := NewPromptBuilder(6, 500)

	prompt, err := b.Build(PromptInput{Itinerary: promptItinerary, Message: "What's planned for day 1?"})
	require.NoError(t, err)

	assert.NotContains(t, prompt, "### Web Evidence")
	assert.NotContains(t, prompt, "### Recent Conversation")
	assert.Contains(t, prompt, `"destination": "Lisbon"`)
	assert.Contains(t, prompt, `"What's planned for day 1?"`)
	assert.Contains(t, prompt, `"interaction_type"`)
}

func TestPromptBuilder_TruncatesEvidenceExcerpts(t *testing.T) {
	b := NewPromptBuilder(6, 500)
	long := strings.Repeat("a", 800)

	prompt, err := b.Build(PromptInput{
		Itinerary: promptItinerary,
		Evidence:  []entities.EvidenceItem{{Title: "Tasca", URL: "https://example.com/tasca", Content: long}},
		Message:   "best tascas",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "### Web Evidence")
	assert.Contains(t, prompt, "URL: https://example.com/tasca")
	assert.Contains(t, prompt, strings.Repeat("a", 500)+"…")
	assert.NotContains(t, prompt, strings.Repeat("a", 501))
}

func TestPromptBuilder_KeepsLastTurnsOldestFirst(t *testing.T) {
	b := NewPromptBuilder(6, 500)
	now := time.Now()

	var history []entities.ChatTurn
	for i := 0; i < 9; i++ {
		role := entities.RoleUser
		if i%2 == 1 {
			role = entities.RoleAssistant
		}
		history = append(history, entities.NewChatTurn(role, fmt.Sprintf("turn-%d", i), now))
	}

	prompt, err := b.Build(PromptInput{Itinerary: promptItinerary, History: history, Message: "ok"})
	require.NoError(t, err)

	assert.NotContains(t, prompt, "turn-2")
	for i := 3; i < 9; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("turn-%d", i))
	}
	assert.Less(t, strings.Index(prompt, "turn-3"), strings.Index(prompt, "turn-8"))
	assert.Contains(t, prompt, "Concierge: turn-3")
	assert.Contains(t, prompt, "Traveller: turn-4")
}

func TestPromptBuilder_IsDeterministic(t *testing.T) {
	b := NewPromptBuilder(6, 500)
	in := PromptInput{
		Itinerary: promptItinerary,
		Evidence:  []entities.EvidenceItem{{Title: "A", URL: "https://a", Content: "x"}},
		Message:   "hi",
	}

	first, err := b.Build(in)
	require.NoError(t, err)
	second, err := b.Build(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPromptBuilder_RejectsInvalidItinerary(t *testing.T) {
	_, err := NewPromptBuilder(6, 500).Build(PromptInput{Itinerary: json.RawMessage(`{`), Message: "hi"})
	assert.Error(t, err)
}
