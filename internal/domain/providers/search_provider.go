package providers

import (
	"context"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

// SearchDepth controls how thorough a web search is.
type SearchDepth string

const (
	SearchDepthBasic    SearchDepth = "basic"
	SearchDepthAdvanced SearchDepth = "advanced"
)

// SearchOptions narrows a single web search.
type SearchOptions struct {
	MaxResults     int
	Depth          SearchDepth
	IncludeDomains []string
	// RecencyDays limits results to roughly the last N days. Zero means no limit.
	RecencyDays int
}

// SearchProvider performs one external web search.
type SearchProvider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]entities.EvidenceItem, error)
}
