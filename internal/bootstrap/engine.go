// Package bootstrap wires the plan mutation engine from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/cache"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/events"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/search"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/store"
	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/clients/openai"
	redisclient "github.com/zatekoja/itineraryconcierge/internal/infrastructure/clients/redis"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/clients/tavily"
	"github.com/zatekoja/itineraryconcierge/pkg/config"
)

// Options overrides external providers. Nil fields are built from config.
type Options struct {
	Generative providers.GenerativeProvider
	Search     providers.SearchProvider
	// Redis is used instead of dialing cfg.Redis when the backend is redis.
	Redis *redisclient.Client
}

// Engine holds the wired components.
type Engine struct {
	Config *config.Config
	Cache  providers.CacheProvider
	Store  *store.PlanStore
	Events providers.EventBus
	Plans  *services.PlanService
	// Coordinator is nil when no generative provider is configured.
	Coordinator *services.MutationCoordinator

	redis *redisclient.Client
	owned bool
}

// New builds an engine for cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	e := &Engine{Config: cfg}

	switch cfg.Engine.StoreBackend {
	case "memory":
		e.Cache = cache.NewMemoryAdapter(time.Minute)
		e.Events = events.NewMemoryEventBus()
		log.Info().Msg("Using in-process plan store; plans are lost on restart")
	case "redis":
		client := opts.Redis
		if client == nil {
			var err error
			client, err = redisclient.NewClient(ctx, &cfg.Redis)
			if err != nil {
				return nil, err
			}
			e.owned = true
		}
		e.redis = client
		e.Cache = cache.NewRedisAdapter(client)
		e.Events = events.NewRedisEventBus(client)
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis plan store initialized")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Engine.StoreBackend)
	}

	e.Store = store.NewPlanStore(e.Cache, cfg.Engine.PlanTTL)
	e.Plans = services.NewPlanService(e.Store, services.NewPlanKeyResolver(cfg.Engine.SentinelIDs), e.Events)

	generative := opts.Generative
	if generative == nil && cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		generative = client
	}
	if generative == nil {
		log.Warn().Msg("OPENAI_API_KEY is not set; chat endpoint disabled")
		return e, nil
	}

	e.Coordinator = services.NewMutationCoordinator(services.MutationCoordinatorDeps{
		Plans:      e.Plans,
		Repo:       e.Store,
		Classifier: services.NewIntentClassifier(),
		Retriever:  e.retriever(opts.Search),
		Prompts:    services.NewPromptBuilder(cfg.Engine.HistoryWindow, cfg.Engine.EvidenceExcerptChars),
		Generator: services.NewGenerativeAdapter(generative, cfg.Engine.ModelTimeout, providers.CompletionOptions{
			JSONOutput:      true,
			Temperature:     cfg.OpenAI.Temperature,
			MaxOutputTokens: cfg.OpenAI.MaxTokens,
		}),
		Applier:       services.NewPatchApplier(),
		Events:        e.Events,
		HistoryWindow: cfg.Engine.HistoryWindow,
	})
	return e, nil
}

func (e *Engine) retriever(override providers.SearchProvider) services.Retriever {
	searchProvider := override
	if searchProvider == nil {
		if e.Config.Tavily.APIKey == "" {
			log.Warn().Msg("TAVILY_API_KEY is not set; web retrieval disabled")
			return nil
		}
		searchProvider = search.NewTavilyAdapter(tavily.NewClient(&e.Config.Tavily))
	}

	engine := e.Config.Engine
	return services.NewRetrievalAggregator(searchProvider, services.RetrievalConfig{
		MaxItems:         engine.MaxEvidenceItems,
		PerSourceTimeout: engine.RetrievalSourceTimeout,
		OverallTimeout:   engine.RetrievalTimeout,
		CacheSize:        engine.RetrievalCacheSize,
		CacheTTL:         engine.RetrievalCacheTTL,
	})
}

// Ping checks the plan store backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e.redis == nil {
		return nil
	}
	return e.redis.Ping(ctx)
}

// Close releases the event bus and any connection the engine opened.
func (e *Engine) Close() error {
	var errs []error
	if e.Events != nil {
		errs = append(errs, e.Events.Close())
	}
	if e.owned && e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	return errors.Join(errs...)
}
