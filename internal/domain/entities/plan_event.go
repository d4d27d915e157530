package entities

import (
	"time"

	"github.com/google/uuid"
)

// PlanEventType represents the type of plan event
type PlanEventType string

const (
	PlanEventTypeSeeded   PlanEventType = "plan_seeded"
	PlanEventTypeMigrated PlanEventType = "plan_migrated"
	PlanEventTypeUpdated  PlanEventType = "plan_updated"
)

// PlanEvent is published after every committed plan write.
type PlanEvent struct {
	ID           string        `json:"id"`
	PlanID       string        `json:"plan_id"`
	EventType    PlanEventType `json:"event_type"`
	Version      int64         `json:"version"`
	Timestamp    time.Time     `json:"timestamp"`
	ChangedPaths []string      `json:"changed_paths,omitempty"`
}

// NewPlanEvent creates a new plan event
func NewPlanEvent(planID string, eventType PlanEventType, version int64, changedPaths []string) *PlanEvent {
	return &PlanEvent{
		ID:           uuid.NewString(),
		PlanID:       planID,
		EventType:    eventType,
		Version:      version,
		Timestamp:    time.Now().UTC(),
		ChangedPaths: changedPaths,
	}
}
