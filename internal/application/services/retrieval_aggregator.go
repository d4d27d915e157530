package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/samber/lo"
	"github.com/sony/gobreaker"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	"golang.org/x/sync/errgroup"
)

const maxTopicLength = 80

var (
	politePhrases = regexp.MustCompile(`(?i)\b(can you|could you|would you|will you|please|i want to|i want|i'd like to|i would like to|help me)\b`)
	spaceRuns     = regexp.MustCompile(`\s+`)
)

// RetrievalConfig tunes the aggregator.
type RetrievalConfig struct {
	MaxItems         int
	PerSourceTimeout time.Duration
	OverallTimeout   time.Duration
	CacheSize        int
	CacheTTL         time.Duration
}

// DefaultRetrievalConfig returns the production defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MaxItems:         10,
		PerSourceTimeout: 8 * time.Second,
		OverallTimeout:   12 * time.Second,
		CacheSize:        256,
		CacheTTL:         5 * time.Minute,
	}
}

// RetrievalResult is the merged evidence of one retrieval round.
type RetrievalResult struct {
	Evidence      []entities.EvidenceItem
	Citations     []string
	QueriesIssued int
	FailedSources []entities.EvidenceSource
}

// Degraded reports whether at least one source failed.
func (r RetrievalResult) Degraded() bool {
	return len(r.FailedSources) > 0
}

type sourceQuery struct {
	source entities.EvidenceSource
	query  string
	opts   providers.SearchOptions
}

// RetrievalAggregator fans a message out to the web search sources in
// parallel and merges whatever comes back within the deadline.
type RetrievalAggregator struct {
	search   providers.SearchProvider
	cfg      RetrievalConfig
	breakers map[entities.EvidenceSource]*gobreaker.CircuitBreaker
	memo     *expirable.LRU[string, []entities.EvidenceItem]
}

// NewRetrievalAggregator creates a new aggregator over search.
func NewRetrievalAggregator(search providers.SearchProvider, cfg RetrievalConfig) *RetrievalAggregator {
	defaults := DefaultRetrievalConfig()
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaults.MaxItems
	}
	if cfg.PerSourceTimeout <= 0 {
		cfg.PerSourceTimeout = defaults.PerSourceTimeout
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = defaults.OverallTimeout
	}

	a := &RetrievalAggregator{
		search:   search,
		cfg:      cfg,
		breakers: make(map[entities.EvidenceSource]*gobreaker.CircuitBreaker),
	}
	for _, source := range []entities.EvidenceSource{entities.EvidenceSourceWeb, entities.EvidenceSourceSocial, entities.EvidenceSourceAuthentic} {
		a.breakers[source] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "search:" + string(source),
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				observability.GetLogger().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Search breaker state changed")
			},
		})
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		a.memo = expirable.NewLRU[string, []entities.EvidenceItem](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return a
}

// Retrieve issues the primary web query plus one per selected sub-source,
// concurrently. Failed or slow sources are dropped; the call itself never fails.
func (a *RetrievalAggregator) Retrieve(ctx context.Context, destination, message string, subSources []SubSource) RetrievalResult {
	ctx, span := observability.StartSpan(ctx, "retrieval.aggregate")
	defer span.End()

	queries := a.buildQueries(destination, NormalizeTopic(message), subSources)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.OverallTimeout)
	defer cancel()

	results := make([][]entities.EvidenceItem, len(queries))
	failed := make([]bool, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			items, err := a.runSource(gctx, q)
			if err != nil {
				failed[i] = true
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("source", string(q.source)).Str("query", q.query).Msg("Retrieval source failed")
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	out := RetrievalResult{QueriesIssued: len(queries)}
	for i, q := range queries {
		if failed[i] {
			out.FailedSources = append(out.FailedSources, q.source)
		}
	}

	merged := lo.UniqBy(lo.Flatten(results), func(item entities.EvidenceItem) string {
		return item.URL
	})
	if len(merged) > a.cfg.MaxItems {
		merged = merged[:a.cfg.MaxItems]
	}
	out.Evidence = merged
	out.Citations = lo.Map(merged, func(item entities.EvidenceItem, _ int) string {
		return item.URL
	})
	return out
}

func (a *RetrievalAggregator) runSource(ctx context.Context, q sourceQuery) ([]entities.EvidenceItem, error) {
	memoKey := string(q.source) + "|" + q.query
	if a.memo != nil {
		if cached, ok := a.memo.Get(memoKey); ok {
			observability.RecordCacheHit(ctx, "retrieval")
			return cached, nil
		}
		observability.RecordCacheMiss(ctx, "retrieval")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.PerSourceTimeout)
	defer cancel()

	start := time.Now()
	res, err := a.breakers[q.source].Execute(func() (interface{}, error) {
		return a.search.Search(ctx, q.query, q.opts)
	})
	observability.RecordRetrievalSource(ctx, string(q.source), err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", q.source, err)
	}

	items, _ := res.([]entities.EvidenceItem)
	tagged := make([]entities.EvidenceItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.URL) == "" {
			continue
		}
		item.Source = q.source
		tagged = append(tagged, item)
	}
	if a.memo != nil {
		a.memo.Add(memoKey, tagged)
	}
	return tagged, nil
}

func (a *RetrievalAggregator) buildQueries(destination, topic string, subSources []SubSource) []sourceQuery {
	base := strings.TrimSpace(destination + " " + topic)

	queries := []sourceQuery{{
		source: entities.EvidenceSourceWeb,
		query:  base,
		opts: providers.SearchOptions{
			MaxResults: 6,
			Depth:      providers.SearchDepthBasic,
		},
	}}
	for _, sub := range lo.Uniq(subSources) {
		switch sub {
		case SubSourceSocial:
			queries = append(queries, sourceQuery{
				source: entities.EvidenceSourceSocial,
				query:  strings.TrimSpace(base + " travel tips hidden gems"),
				opts: providers.SearchOptions{
					MaxResults:     5,
					Depth:          providers.SearchDepthAdvanced,
					IncludeDomains: []string{"tiktok.com", "instagram.com", "youtube.com"},
					RecencyDays:    90,
				},
			})
		case SubSourceAuthentic:
			queries = append(queries, sourceQuery{
				source: entities.EvidenceSourceAuthentic,
				query:  strings.TrimSpace(base + " local advice"),
				opts: providers.SearchOptions{
					MaxResults:     5,
					Depth:          providers.SearchDepthAdvanced,
					IncludeDomains: []string{"reddit.com"},
					RecencyDays:    180,
				},
			})
		}
	}
	return queries
}

// NormalizeTopic strips conversational filler from message and caps its length.
func NormalizeTopic(message string) string {
	topic := politePhrases.ReplaceAllString(message, " ")
	topic = spaceRuns.ReplaceAllString(topic, " ")
	topic = strings.Trim(topic, " ?!.,;:")
	runes := []rune(topic)
	if len(runes) > maxTopicLength {
		topic = strings.TrimSpace(string(runes[:maxTopicLength]))
	}
	return topic
}
