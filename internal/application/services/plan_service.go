package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/domain/repositories"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

// PlanService handles plan lookup, seeding and legacy migration.
type PlanService struct {
	repo     repositories.PlanRepository
	resolver *PlanKeyResolver
	events   providers.EventBus
	now      func() time.Time
}

// NewPlanService creates a new plan service. events may be nil.
func NewPlanService(repo repositories.PlanRepository, resolver *PlanKeyResolver, events providers.EventBus) *PlanService {
	return &PlanService{
		repo:     repo,
		resolver: resolver,
		events:   events,
		now:      time.Now,
	}
}

// Resolve maps an identifier to its storage keys.
func (s *PlanService) Resolve(identifier string) PlanKeys {
	return s.resolver.Resolve(identifier)
}

// GetPlan returns the plan for identifier, migrating a legacy raw key when needed.
func (s *PlanService) GetPlan(ctx context.Context, identifier string) (*entities.StoredPlan, PlanKeys, error) {
	keys, err := s.validatedKeys(identifier)
	if err != nil {
		return nil, keys, err
	}
	stored, err := s.load(ctx, keys)
	return stored, keys, err
}

// History returns up to limit recent turns of the plan's conversation log.
func (s *PlanService) History(ctx context.Context, identifier string, limit int) ([]entities.ChatTurn, error) {
	keys, err := s.validatedKeys(identifier)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.RecentTurns(ctx, keys.HistoryKey, limit)
}

// LoadOrSeed returns the stored plan, or seeds it from snapshot when none exists.
// Without a snapshot a missing plan is NOT_FOUND.
func (s *PlanService) LoadOrSeed(ctx context.Context, keys PlanKeys, snapshot json.RawMessage) (*entities.StoredPlan, error) {
	stored, err := s.load(ctx, keys)
	if err == nil {
		return stored, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) || len(snapshot) == 0 || string(snapshot) == "null" {
		return nil, err
	}

	record, err := entities.NormalizeSnapshot(snapshot)
	if err != nil {
		return nil, apperrors.NewValidationError("currentPlan is not a valid itinerary: " + err.Error())
	}

	seeded := entities.NewStoredPlan(*record, s.now())
	if err := s.repo.CompareAndSave(ctx, keys.PlanKey, entities.VersionAbsent, seeded); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			// Another request seeded first; use its copy.
			return s.repo.Get(ctx, keys.PlanKey)
		}
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("plan_key", keys.PlanKey).Msg("Seeded plan from client snapshot")
	s.publish(ctx, keys.PlanID, entities.PlanEventTypeSeeded, seeded.Version, nil)
	return seeded, nil
}

// Seed overwrites the plan for identifier with snapshot. It is an operator action.
func (s *PlanService) Seed(ctx context.Context, identifier string, snapshot json.RawMessage) (*entities.StoredPlan, error) {
	keys, err := s.validatedKeys(identifier)
	if err != nil {
		return nil, err
	}
	record, err := entities.NormalizeSnapshot(snapshot)
	if err != nil {
		return nil, apperrors.NewValidationError("snapshot is not a valid itinerary: " + err.Error())
	}

	next := entities.NewStoredPlan(*record, s.now())
	if current, err := s.repo.Get(ctx, keys.PlanKey); err == nil {
		next.Version = current.Version + 1
	}
	if err := s.repo.Save(ctx, keys.PlanKey, next); err != nil {
		return nil, err
	}
	s.publish(ctx, keys.PlanID, entities.PlanEventTypeSeeded, next.Version, nil)
	return next, nil
}

// Migrate copies a plan stored under a legacy raw key to its canonical key.
// The legacy key is left in place. It reports whether a copy happened.
func (s *PlanService) Migrate(ctx context.Context, identifier string) (bool, error) {
	keys, err := s.validatedKeys(identifier)
	if err != nil {
		return false, err
	}
	if _, err := s.repo.Get(ctx, keys.PlanKey); err == nil {
		return false, nil
	} else if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return false, err
	}
	if keys.LegacyKey == "" {
		return false, apperrors.NewNotFoundError("plan not found")
	}
	if _, err := s.migrateLegacy(ctx, keys); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PlanService) load(ctx context.Context, keys PlanKeys) (*entities.StoredPlan, error) {
	stored, err := s.repo.Get(ctx, keys.PlanKey)
	if err == nil {
		return stored, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) || keys.LegacyKey == "" {
		return nil, err
	}
	return s.migrateLegacy(ctx, keys)
}

func (s *PlanService) migrateLegacy(ctx context.Context, keys PlanKeys) (*entities.StoredPlan, error) {
	legacy, err := s.repo.Get(ctx, keys.LegacyKey)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError("plan not found")
		}
		return nil, err
	}

	migrated := entities.NewStoredPlan(legacy.Plan, s.now())
	if err := s.repo.CompareAndSave(ctx, keys.PlanKey, entities.VersionAbsent, migrated); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return s.repo.Get(ctx, keys.PlanKey)
		}
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("legacy_key", keys.LegacyKey).
		Str("plan_key", keys.PlanKey).
		Msg("Migrated plan from legacy key")
	s.publish(ctx, keys.PlanID, entities.PlanEventTypeMigrated, migrated.Version, nil)
	return migrated, nil
}

// ResolveValidated maps an identifier to its storage keys and rejects
// identifiers that resolve to no plan id, such as a bare key prefix.
func (s *PlanService) ResolveValidated(identifier string) (PlanKeys, error) {
	return s.validatedKeys(identifier)
}

func (s *PlanService) validatedKeys(identifier string) (PlanKeys, error) {
	keys := s.resolver.Resolve(identifier)
	if keys.PlanID == "" {
		return keys, apperrors.NewValidationError("planId is required")
	}
	return keys, nil
}

func (s *PlanService) publish(ctx context.Context, planID string, eventType entities.PlanEventType, version int64, paths []string) {
	if s.events == nil {
		return
	}
	event := entities.NewPlanEvent(planID, eventType, version, paths)
	for _, channel := range []string{providers.GetPlanChannel(planID), providers.EventChannelPlanUpdates} {
		if err := s.events.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("channel", channel).Msg("Failed to publish plan event")
		}
	}
}
