package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"go.uber.org/zap"
)

// SearchBackend defines the interface for web search backends.
// Implementations can wrap Tavily, SerpAPI, Jina, Google Custom Search, etc.
type SearchBackend interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// WebSearchConfig configures the web_search tool.
type WebSearchConfig struct {
	Backend    SearchBackend
	MaxResults int // 默认 3
	Timeout    time.Duration
	RateLimit  *RateLimitConfig
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

const webSearchParameters = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"minLength": 1,
			"description": "The search query"
		},
		"max_results": {
			"type": "integer",
			"minimum": 1,
			"maximum": 10,
			"description": "Maximum number of results to return"
		}
	},
	"required": ["query"],
	"additionalProperties": false
}`

// NewWebSearchTool builds the web_search tool.
func NewWebSearchTool(cfg WebSearchConfig, logger *zap.Logger) Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params webSearchArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid web_search arguments: %w", err)
		}
		if cfg.Backend == nil {
			return nil, fmt.Errorf("web search backend not configured")
		}

		limit := cfg.MaxResults
		if params.MaxResults > 0 {
			limit = params.MaxResults
		}

		logger.Debug("executing web search", zap.String("query", params.Query), zap.Int("max_results", limit))
		results, err := cfg.Backend.Search(ctx, params.Query, limit)
		if err != nil {
			return nil, fmt.Errorf("web search failed: %w", err)
		}
		if len(results) > limit {
			results = results[:limit]
		}
		if results == nil {
			results = []SearchResult{}
		}
		return json.Marshal(results)
	}

	return Tool{
		Schema: types.ToolSchema{
			Name:        "web_search",
			Description: "Search the web. Returns a list of results with title, url and content.",
			Parameters:  json.RawMessage(webSearchParameters),
		},
		Func:      fn,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	}
}
