package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/domain/repositories"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Retriever gathers web evidence for a message.
type Retriever interface {
	Retrieve(ctx context.Context, destination, message string, subSources []SubSource) RetrievalResult
}

// ReplyGenerator turns a prompt into a validated model reply.
type ReplyGenerator interface {
	Generate(ctx context.Context, prompt string) (*ModelReply, error)
}

// MutationRequest is one conversational turn against a plan.
type MutationRequest struct {
	PlanID  string
	Message string
	// Role is accepted for compatibility; client turns are always logged as user.
	Role string
	// Snapshot seeds the store when no plan exists yet.
	Snapshot json.RawMessage
	// History, when supplied by the client, replaces the stored conversation log as prompt context.
	History []entities.ChatTurn
}

// MutationResponse is returned for every turn that did not fail outright.
type MutationResponse struct {
	Narration          string                   `json:"response"`
	Suggestions        []string                 `json:"suggestions"`
	Citations          []string                 `json:"citations"`
	InteractionType    entities.InteractionType `json:"interactionType"`
	UpdatedPlan        *entities.PlanRecord     `json:"updatedPlan"`
	RetrievalPerformed bool                     `json:"retrievalPerformed"`
	RetrievalDegraded  bool                     `json:"retrievalDegraded"`
	PlanUpdated        bool                     `json:"planUpdated"`
	PatchRejected      bool                     `json:"patchRejected"`
	Version            int64                    `json:"version"`
}

// MutationCoordinator runs the full edit flow for one plan at a time:
// load or seed, classify, retrieve, prompt, generate, apply, commit, log.
type MutationCoordinator struct {
	plans      *PlanService
	repo       repositories.PlanRepository
	classifier *IntentClassifier
	retriever  Retriever
	prompts    *PromptBuilder
	generator  ReplyGenerator
	applier    *PatchApplier
	locks      *KeyedMutex
	events     providers.EventBus
	window     int
	now        func() time.Time
}

// MutationCoordinatorDeps groups the coordinator's collaborators.
type MutationCoordinatorDeps struct {
	Plans         *PlanService
	Repo          repositories.PlanRepository
	Classifier    *IntentClassifier
	Retriever     Retriever
	Prompts       *PromptBuilder
	Generator     ReplyGenerator
	Applier       *PatchApplier
	Events        providers.EventBus
	HistoryWindow int
}

// NewMutationCoordinator creates a new coordinator. Retriever and Events may be nil.
func NewMutationCoordinator(deps MutationCoordinatorDeps) *MutationCoordinator {
	window := deps.HistoryWindow
	if window < 0 {
		window = 0
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = NewIntentClassifier()
	}
	applier := deps.Applier
	if applier == nil {
		applier = NewPatchApplier()
	}
	return &MutationCoordinator{
		plans:      deps.Plans,
		repo:       deps.Repo,
		classifier: classifier,
		retriever:  deps.Retriever,
		prompts:    deps.Prompts,
		generator:  deps.Generator,
		applier:    applier,
		locks:      NewKeyedMutex(),
		events:     deps.Events,
		window:     window,
		now:        time.Now,
	}
}

// Mutate processes one user message against a plan.
func (c *MutationCoordinator) Mutate(ctx context.Context, req MutationRequest) (*MutationResponse, error) {
	ctx, span := observability.StartSpan(ctx, "plan.mutate")
	defer span.End()

	planID := strings.TrimSpace(req.PlanID)
	message := strings.TrimSpace(req.Message)
	if planID == "" || message == "" {
		observability.RecordMutation(ctx, "invalid")
		return nil, apperrors.NewValidationError("planId and message are required")
	}
	if role := strings.TrimSpace(req.Role); role != "" && role != entities.RoleUser {
		observability.LoggerFromContext(ctx).Debug().Str("role", role).Msg("Logging client turn as user")
	}

	keys, err := c.plans.ResolveValidated(planID)
	if err != nil {
		observability.RecordMutation(ctx, "invalid")
		return nil, apperrors.NewValidationError("planId and message are required")
	}
	observability.SetSpanAttributes(span, attribute.String("plan.key", keys.PlanKey))
	logger := observability.LoggerFromContext(ctx).With().Str("plan_key", keys.PlanKey).Logger()
	if keys.Sentinel {
		logger.Warn().Str("plan_id", keys.PlanID).Msg("Plan identifier is a shared sentinel; unrelated sessions may collide")
	}

	unlock, err := c.locks.Lock(ctx, keys.PlanKey)
	if err != nil {
		observability.RecordMutation(ctx, "cancelled")
		return nil, err
	}
	defer unlock()

	stored, err := c.plans.LoadOrSeed(ctx, keys, req.Snapshot)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordMutation(ctx, "load_failed")
		return nil, err
	}

	resp := &MutationResponse{
		Suggestions: []string{},
		Citations:   []string{},
		Version:     stored.Version,
	}

	var evidence []entities.EvidenceItem
	intent := c.classifier.Classify(message)
	if intent.NeedsRetrieval && c.retriever != nil {
		result := c.retriever.Retrieve(ctx, entities.DestinationOf(stored.Plan.Itinerary), message, intent.SubSources)
		resp.RetrievalPerformed = true
		resp.RetrievalDegraded = result.Degraded()
		evidence = result.Evidence
		if len(result.Citations) > 0 {
			resp.Citations = result.Citations
		}
		logger.Debug().
			Int("queries", result.QueriesIssued).
			Int("evidence", len(result.Evidence)).
			Int("failed_sources", len(result.FailedSources)).
			Msg("Retrieval finished")
	}
	if err := ctx.Err(); err != nil {
		observability.RecordMutation(ctx, "cancelled")
		return nil, err
	}

	history := c.recentHistory(ctx, keys, req.History)

	prompt, err := c.prompts.Build(PromptInput{
		Itinerary: stored.Plan.Itinerary,
		Evidence:  evidence,
		History:   history,
		Message:   message,
	})
	if err != nil {
		observability.RecordMutation(ctx, "prompt_failed")
		return nil, apperrors.NewInternalError("failed to build prompt", err)
	}

	reply, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordMutation(ctx, "generation_failed")
		return nil, err
	}

	if unverified := unverifiedSources(reply.Sources, evidence); len(unverified) > 0 {
		logger.Warn().
			Int("sources", len(reply.Sources)).
			Strs("unverified", unverified).
			Msg("Model cited sources outside the retrieved evidence")
	}

	resp.Narration = reply.Narration
	resp.Suggestions = reply.Suggestions
	resp.InteractionType = reply.InteractionType

	outcome := "answered"
	if reply.InteractionType == entities.InteractionModification && len(reply.Patch) > 0 {
		outcome, err = c.commitPatch(ctx, keys, stored, reply.Patch, resp)
		if err != nil {
			observability.RecordError(span, err)
			observability.RecordMutation(ctx, outcome)
			return nil, err
		}
	} else if len(reply.Patch) > 0 {
		logger.Debug().Int("ops", len(reply.Patch)).Msg("Ignoring patch on a question reply")
	}

	turns := []entities.ChatTurn{
		entities.NewChatTurn(entities.RoleUser, message, c.now()),
		entities.NewChatTurn(entities.RoleAssistant, resp.Narration, c.now()),
	}
	if err := c.repo.AppendTurns(ctx, keys.HistoryKey, turns...); err != nil {
		logger.Warn().Err(err).Msg("Failed to append conversation log")
	}

	observability.RecordMutation(ctx, outcome)
	return resp, nil
}

// commitPatch applies the patch and writes the result if the stored version
// still matches. It fills resp and returns the outcome label.
func (c *MutationCoordinator) commitPatch(ctx context.Context, keys PlanKeys, stored *entities.StoredPlan, patch []json.RawMessage, resp *MutationResponse) (string, error) {
	logger := observability.LoggerFromContext(ctx).With().Str("plan_key", keys.PlanKey).Logger()

	result, err := c.applier.Apply(stored.Plan.Itinerary, patch)
	if err != nil {
		logger.Warn().Err(err).Int("ops", len(patch)).Msg("Patch rejected; plan left unchanged")
		resp.PatchRejected = true
		return "patch_rejected", nil
	}
	if result.Outcome == PatchNoop {
		return "noop", nil
	}

	// A cancelled request must not write after the fact.
	if err := ctx.Err(); err != nil {
		return "cancelled", err
	}

	next := stored.Next(result.Itinerary, c.now())
	if err := c.repo.CompareAndSave(ctx, keys.PlanKey, stored.Version, next); err != nil {
		return "commit_failed", err
	}

	resp.UpdatedPlan = &next.Plan
	resp.PlanUpdated = true
	resp.Version = next.Version
	c.publish(ctx, keys.PlanID, next.Version, result.ChangedPaths)
	logger.Info().Int64("version", next.Version).Strs("paths", result.ChangedPaths).Msg("Plan updated")
	return "updated", nil
}

func (c *MutationCoordinator) recentHistory(ctx context.Context, keys PlanKeys, supplied []entities.ChatTurn) []entities.ChatTurn {
	if c.window == 0 {
		return nil
	}
	if len(supplied) > 0 {
		if len(supplied) > c.window {
			return supplied[len(supplied)-c.window:]
		}
		return supplied
	}
	turns, err := c.repo.RecentTurns(ctx, keys.HistoryKey, c.window)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("history_key", keys.HistoryKey).Msg("Proceeding without conversation history")
		return nil
	}
	return turns
}

func (c *MutationCoordinator) publish(ctx context.Context, planID string, version int64, paths []string) {
	if c.events == nil {
		return
	}
	event := entities.NewPlanEvent(planID, entities.PlanEventTypeUpdated, version, paths)
	for _, channel := range []string{providers.GetPlanChannel(planID), providers.EventChannelPlanUpdates} {
		if err := c.events.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("channel", channel).Msg("Failed to publish plan event")
		}
	}
}

// unverifiedSources returns the cited URLs that match no retrieved evidence item.
func unverifiedSources(sources []string, evidence []entities.EvidenceItem) []string {
	retrieved := make(map[string]struct{}, len(evidence))
	for _, item := range evidence {
		retrieved[strings.TrimSpace(item.URL)] = struct{}{}
	}
	return lo.Filter(sources, func(source string, _ int) bool {
		_, ok := retrieved[strings.TrimSpace(source)]
		return !ok
	})
}
