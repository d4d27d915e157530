package repositories

import (
	"context"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

// PlanRepository defines the interface for plan document and conversation log storage
type PlanRepository interface {
	// Get retrieves the plan stored under key; a NOT_FOUND AppError when absent
	Get(ctx context.Context, key string) (*entities.StoredPlan, error)

	// Save overwrites the plan stored under key and refreshes its expiry
	Save(ctx context.Context, key string, plan *entities.StoredPlan) error

	// CompareAndSave writes plan only when the stored version equals expectedVersion.
	// entities.VersionAbsent requires the key to not exist. Mismatch yields a CONFLICT AppError.
	CompareAndSave(ctx context.Context, key string, expectedVersion int64, plan *entities.StoredPlan) error

	// AppendTurns appends entries to the conversation log under historyKey
	AppendTurns(ctx context.Context, historyKey string, turns ...entities.ChatTurn) error

	// RecentTurns returns up to limit most recent turns, oldest first
	RecentTurns(ctx context.Context, historyKey string, limit int) ([]entities.ChatTurn, error)
}
