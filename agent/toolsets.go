package agent

import (
	"time"

	"github.com/BaSui01/agentgraph/llm/tools"
	"go.uber.org/zap"
)

// Backends are the external services behind the preset tool sets. A nil
// backend still registers its tool; calls then fail with an error result.
type Backends struct {
	Search   tools.SearchBackend
	Feeds    tools.FeedReader
	Crawler  tools.Crawler
	Splitter tools.Splitter
	// Timeout applies to every tool; 0 keeps each tool's default.
	Timeout time.Duration
}

// SearchToolset registers web_search with three results per query, the tool
// set of the tool and reflection agents.
func SearchToolset(b Backends, logger *zap.Logger, opts ...tools.RegistryOption) (*tools.Registry, error) {
	reg := tools.NewRegistry(logger, opts...)
	err := reg.Register(tools.NewWebSearchTool(tools.WebSearchConfig{
		Backend:    b.Search,
		MaxResults: 3,
		Timeout:    b.Timeout,
	}, logger))
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// CurationToolset registers rssReader, firecrawlScrape and firecrawlCrawl for
// the knowledge curator.
func CurationToolset(b Backends, logger *zap.Logger, opts ...tools.RegistryOption) (*tools.Registry, error) {
	reg := tools.NewRegistry(logger, opts...)
	crawler := tools.CrawlerConfig{Crawler: b.Crawler, Splitter: b.Splitter, Timeout: b.Timeout}
	for _, tool := range []tools.Tool{
		tools.NewRSSReaderTool(b.Feeds, b.Timeout, logger),
		tools.NewFirecrawlScrapeTool(crawler, logger),
		tools.NewFirecrawlCrawlTool(crawler, logger),
	} {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
