package search

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/clients/tavily"
)

// tavilySearcher is the slice of the Tavily client used here.
type tavilySearcher interface {
	Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error)
}

// TavilyAdapter implements SearchProvider using the Tavily search API
type TavilyAdapter struct {
	client tavilySearcher
}

// Ensure TavilyAdapter implements SearchProvider
var _ providers.SearchProvider = (*TavilyAdapter)(nil)

// NewTavilyAdapter creates a new Tavily adapter
func NewTavilyAdapter(client *tavily.Client) *TavilyAdapter {
	return &TavilyAdapter{client: client}
}

// Search runs one query and maps hits to evidence items. Hits without a URL are dropped.
func (a *TavilyAdapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]entities.EvidenceItem, error) {
	depth := string(opts.Depth)
	if depth == "" {
		depth = string(providers.SearchDepthBasic)
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	resp, err := a.client.Search(ctx, tavily.SearchRequest{
		Query:          query,
		SearchDepth:    depth,
		Topic:          "general",
		MaxResults:     maxResults,
		TimeRange:      tavily.TimeRangeForDays(opts.RecencyDays),
		IncludeDomains: opts.IncludeDomains,
	})
	if err != nil {
		return nil, err
	}

	hits := lo.Filter(resp.Results, func(r tavily.Result, _ int) bool {
		return strings.TrimSpace(r.URL) != ""
	})
	return lo.Map(hits, func(r tavily.Result, _ int) entities.EvidenceItem {
		return entities.EvidenceItem{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		}
	}), nil
}
