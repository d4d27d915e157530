package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/domain/repositories"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

// errVersionMismatch aborts an Update whose expected version no longer holds.
var errVersionMismatch = errors.New("plan version mismatch")

// PlanStore implements PlanRepository on top of a CacheProvider.
type PlanStore struct {
	cache providers.CacheProvider
	ttl   time.Duration
	now   func() time.Time
}

// NewPlanStore creates a plan store whose writes refresh expiry to ttl.
func NewPlanStore(cache providers.CacheProvider, ttl time.Duration) *PlanStore {
	return &PlanStore{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
}

var _ repositories.PlanRepository = (*PlanStore)(nil)

// Get retrieves the plan stored under key
func (s *PlanStore) Get(ctx context.Context, key string) (*entities.StoredPlan, error) {
	data, err := s.cache.Get(ctx, key)
	if errors.Is(err, providers.ErrCacheMiss) {
		observability.RecordCacheMiss(ctx, "plan")
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("plan %s not found", key))
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read plan", err)
	}
	observability.RecordCacheHit(ctx, "plan")

	stored, err := entities.DecodeStoredPlan(data)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("stored plan %s is unreadable", key), err)
	}
	return stored, nil
}

// Save overwrites the plan stored under key
func (s *PlanStore) Save(ctx context.Context, key string, plan *entities.StoredPlan) error {
	data, err := s.encode(plan)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		return apperrors.NewExternalError("failed to write plan", err)
	}
	return nil
}

// CompareAndSave writes plan only when the stored version equals expectedVersion
func (s *PlanStore) CompareAndSave(ctx context.Context, key string, expectedVersion int64, plan *entities.StoredPlan) error {
	data, err := s.encode(plan)
	if err != nil {
		return err
	}

	err = s.cache.Update(ctx, key, s.ttl, func(current []byte) ([]byte, error) {
		actual := entities.VersionAbsent
		if current != nil {
			stored, err := entities.DecodeStoredPlan(current)
			if err != nil {
				return nil, fmt.Errorf("stored plan %s is unreadable: %w", key, err)
			}
			actual = stored.Version
		}
		if actual != expectedVersion {
			return nil, fmt.Errorf("%w: expected %d, found %d", errVersionMismatch, expectedVersion, actual)
		}
		return data, nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, providers.ErrCacheConflict):
		return apperrors.NewConflictError("plan was modified concurrently", err)
	default:
		return apperrors.NewExternalError("failed to write plan", err)
	}
}

// AppendTurns appends entries to the conversation log
func (s *PlanStore) AppendTurns(ctx context.Context, historyKey string, turns ...entities.ChatTurn) error {
	values := make([][]byte, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return apperrors.NewInternalError("failed to encode chat turn", err)
		}
		values = append(values, data)
	}
	if err := s.cache.AppendList(ctx, historyKey, s.ttl, values...); err != nil {
		return apperrors.NewExternalError("failed to append conversation log", err)
	}
	return nil
}

// RecentTurns returns up to limit most recent turns, oldest first
func (s *PlanStore) RecentTurns(ctx context.Context, historyKey string, limit int) ([]entities.ChatTurn, error) {
	values, err := s.cache.ListTail(ctx, historyKey, limit)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read conversation log", err)
	}

	turns := make([]entities.ChatTurn, 0, len(values))
	for _, v := range values {
		var turn entities.ChatTurn
		if err := json.Unmarshal(v, &turn); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", historyKey).Msg("Skipping unreadable chat turn")
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *PlanStore) encode(plan *entities.StoredPlan) ([]byte, error) {
	if plan.SchemaVersion == 0 {
		plan.SchemaVersion = entities.PlanSchemaVersion
	}
	if plan.UpdatedAt.IsZero() {
		plan.UpdatedAt = s.now().UTC()
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode plan", err)
	}
	return data, nil
}
