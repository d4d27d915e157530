package services

import (
	"strings"
)

const (
	// PlanKeyPrefix prefixes every canonical plan document key.
	PlanKeyPrefix = "travel_plan:"

	// HistoryKeyPrefix prefixes every conversation log key.
	HistoryKeyPrefix = "chat_history:"

	// legacyRawMinLength is the shortest identifier that older producers
	// wrote directly as a raw, unprefixed storage key.
	legacyRawMinLength = 32
)

// PlanKeys is the storage addressing for one plan identifier.
type PlanKeys struct {
	// PlanID is the bare identifier with any key prefix removed.
	PlanID string `json:"planId"`
	// PlanKey is the canonical document key.
	PlanKey string `json:"planKey"`
	// HistoryKey is the conversation log key.
	HistoryKey string `json:"historyKey"`
	// LegacyKey, when set, is a raw key an older producer may have written the plan under.
	LegacyKey string `json:"legacyKey,omitempty"`
	// Sentinel marks identifiers shared by unrelated sessions.
	Sentinel bool `json:"sentinel"`
}

// PlanKeyResolver maps client identifiers to storage keys. Resolution is
// total and deterministic: the same identifier always yields the same keys.
type PlanKeyResolver struct {
	sentinels map[string]struct{}
}

// NewPlanKeyResolver creates a resolver. sentinels lists identifiers such
// as "current" that clients send when they have no real plan id.
func NewPlanKeyResolver(sentinels []string) *PlanKeyResolver {
	set := make(map[string]struct{}, len(sentinels))
	for _, s := range sentinels {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = struct{}{}
		}
	}
	return &PlanKeyResolver{sentinels: set}
}

// Resolve returns the keys for identifier. An identifier that already
// carries the plan prefix is used as-is; anything else is prefixed.
func (r *PlanKeyResolver) Resolve(identifier string) PlanKeys {
	id := strings.TrimSpace(identifier)

	planID := id
	planKey := PlanKeyPrefix + id
	if strings.HasPrefix(id, PlanKeyPrefix) {
		planID = strings.TrimPrefix(id, PlanKeyPrefix)
		planKey = id
	}

	keys := PlanKeys{
		PlanID:     planID,
		PlanKey:    planKey,
		HistoryKey: HistoryKeyPrefix + planID,
	}
	if _, ok := r.sentinels[strings.ToLower(planID)]; ok {
		keys.Sentinel = true
	}
	if planKey != id && len(id) >= legacyRawMinLength && !strings.Contains(id, ":") {
		keys.LegacyKey = id
	}
	return keys
}
