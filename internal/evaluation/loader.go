package evaluation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zatekoja/itineraryconcierge/internal/application/services"
)

// LoadGoldenMessages reads and parses a golden message set from a JSON file.
func LoadGoldenMessages(path string) ([]GoldenMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden messages file: %w", err)
	}

	var messages []GoldenMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse golden messages: %w", err)
	}

	return messages, nil
}

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

var validTriggers = map[string]bool{
	string(services.TriggerRecommendation): true,
	string(services.TriggerRecency):        true,
	string(services.TriggerSocial):         true,
	string(services.TriggerBooking):        true,
}

var validSubSources = map[string]bool{
	string(services.SubSourceSocial):    true,
	string(services.SubSourceAuthentic): true,
}

// ValidateGoldenMessages checks that all golden messages have required fields and valid labels.
func ValidateGoldenMessages(messages []GoldenMessage) error {
	seen := make(map[string]struct{}, len(messages))

	for i, m := range messages {
		if m.ID == "" {
			return fmt.Errorf("message at index %d: missing id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("message at index %d: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = struct{}{}

		if m.Message == "" {
			return fmt.Errorf("message %q: missing message text", m.ID)
		}
		for _, t := range m.ExpectedTriggers {
			if !validTriggers[t] {
				return fmt.Errorf("message %q: invalid trigger %q", m.ID, t)
			}
		}
		for _, s := range m.ExpectedSubSources {
			if !validSubSources[s] {
				return fmt.Errorf("message %q: invalid sub-source %q", m.ID, s)
			}
		}
		if !m.NeedsRetrieval && (len(m.ExpectedTriggers) > 0 || len(m.ExpectedSubSources) > 0) {
			return fmt.Errorf("message %q: triggers or sub-sources labeled on a message that needs no retrieval", m.ID)
		}
		if !validDifficulties[m.Difficulty] {
			return fmt.Errorf("message %q: invalid difficulty %q (must be easy/medium/hard)", m.ID, m.Difficulty)
		}
	}

	return nil
}
