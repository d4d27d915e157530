package services

import (
	"regexp"
	"strings"
)

// TriggerCategory is a family of phrasing that implies external knowledge is needed.
type TriggerCategory string

const (
	TriggerRecommendation TriggerCategory = "recommendation"
	TriggerRecency        TriggerCategory = "recency"
	TriggerSocial         TriggerCategory = "social"
	TriggerBooking        TriggerCategory = "booking"
)

// SubSource is an optional retrieval channel beyond the primary web search.
type SubSource string

const (
	SubSourceSocial    SubSource = "social"
	SubSourceAuthentic SubSource = "authentic"
)

// IntentClassification is the outcome of classifying one user message.
type IntentClassification struct {
	NeedsRetrieval bool              `json:"needsRetrieval"`
	SubSources     []SubSource       `json:"subSources,omitempty"`
	Triggers       []TriggerCategory `json:"triggers,omitempty"`
}

// HasSubSource reports whether s was selected.
func (c IntentClassification) HasSubSource(s SubSource) bool {
	for _, sub := range c.SubSources {
		if sub == s {
			return true
		}
	}
	return false
}

type triggerPattern struct {
	category TriggerCategory
	pattern  *regexp.Regexp
}

var triggerPatterns = []triggerPattern{
	{TriggerRecommendation, regexp.MustCompile(`(?i)\b(recommend\w*|suggest\w*|best|top[- ]rated|hidden gems?|must[- ](see|try|visit)|worth (visiting|trying|seeing)|where (can|should|do) (i|we)|what (can|should) (i|we) (do|see|eat)|find (me|us)|look(ing)? for|any good|alternatives?|ideas? for)\b`)},
	{TriggerRecency, regexp.MustCompile(`(?i)\b(latest|recent(ly)?|currently|right now|open now|today|tonight|this (week|weekend|month)|upcoming|events?|festivals?|weather|20\d\d)\b`)},
	{TriggerSocial, socialPattern},
	{TriggerBooking, regexp.MustCompile(`(?i)\b(book(ing)?|reserv(e|ation|ations)|tickets?|availability|opening (hours|times)|how much|prices?|flights?|hotels?)\b`)},
}

var socialPattern = regexp.MustCompile(`(?i)\b(tik ?tok|instagram|insta|youtube|viral|trending|trendy|influencers?|vlogs?|reels?|social media)\b`)

var authenticPattern = regexp.MustCompile(`(?i)\b(authentic|locals?|like a local|local (tips?|favou?rites?|spots?|advice)|off the beaten (path|track)|non[- ]touristy|insider|reddit|forums?)\b`)

// IntentClassifier decides from message text alone whether retrieval is needed.
// It is a pure function of its input and never fails.
type IntentClassifier struct{}

// NewIntentClassifier creates a new classifier
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{}
}

// Classify inspects message for retrieval triggers and sub-source cues.
func (c *IntentClassifier) Classify(message string) IntentClassification {
	var out IntentClassification

	text := strings.TrimSpace(message)
	if text == "" {
		return out
	}

	for _, tp := range triggerPatterns {
		if tp.pattern.MatchString(text) {
			out.Triggers = append(out.Triggers, tp.category)
		}
	}

	if socialPattern.MatchString(text) {
		out.SubSources = append(out.SubSources, SubSourceSocial)
	}
	if authenticPattern.MatchString(text) {
		out.SubSources = append(out.SubSources, SubSourceAuthentic)
	}

	out.NeedsRetrieval = len(out.Triggers) > 0 || len(out.SubSources) > 0
	return out
}
