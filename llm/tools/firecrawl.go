package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"go.uber.org/zap"
)

// Crawler is the scraping backend behind firecrawlScrape and firecrawlCrawl.
type Crawler interface {
	// Scrape returns the document of a single page in the requested formats.
	Scrape(ctx context.Context, url string, formats []string) (json.RawMessage, error)
	// Crawl follows links from url, visiting at most limit pages, and returns
	// the combined markdown.
	Crawl(ctx context.Context, url string, limit int, formats []string) (string, error)
}

// Splitter cuts long text into chunks small enough for a model context.
type Splitter func(text string) []string

// DefaultScrapeFormats are requested when a call does not name any.
var DefaultScrapeFormats = []string{"markdown", "html"}

// CrawlerConfig configures the firecrawl tools.
type CrawlerConfig struct {
	Crawler  Crawler
	Splitter Splitter // nil returns the whole text as one chunk
	Timeout  time.Duration
}

type scrapeArgs struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats,omitempty"`
}

type crawlArgs struct {
	URL     string   `json:"url"`
	Limit   int      `json:"limit,omitempty"`
	Formats []string `json:"formats,omitempty"`
}

func urlSchema() *types.JSONSchema {
	return types.NewStringSchema().WithFormat(types.FormatURI)
}

func formatsSchema() *types.JSONSchema {
	return types.NewArraySchema(types.NewStringSchema()).
		WithDescription("Output formats, defaults to markdown and html")
}

func scrapeSchema() json.RawMessage {
	return types.NewObjectSchema().
		AddProperty("url", urlSchema()).
		AddProperty("formats", formatsSchema()).
		AddRequired("url").
		Raw()
}

func crawlSchema() json.RawMessage {
	limit := types.NewIntegerSchema().
		WithDescription("Maximum pages to crawl").
		WithRange(1, 3)

	return types.NewObjectSchema().
		AddProperty("url", urlSchema()).
		AddProperty("limit", limit).
		AddProperty("formats", formatsSchema()).
		AddRequired("url").
		Raw()
}

func (c CrawlerConfig) split(text string) []string {
	if c.Splitter == nil {
		return []string{text}
	}
	chunks := c.Splitter(text)
	if chunks == nil {
		return []string{}
	}
	return chunks
}

func formatsOrDefault(formats []string) []string {
	if len(formats) == 0 {
		return DefaultScrapeFormats
	}
	return formats
}

// NewFirecrawlScrapeTool builds the firecrawlScrape tool. The scraped document
// is serialized and split into text chunks.
func NewFirecrawlScrapeTool(cfg CrawlerConfig, logger *zap.Logger) Tool {
	if logger == nil {
		logger = zap.NewNop()
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params scrapeArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid firecrawlScrape arguments: %w", err)
		}
		if cfg.Crawler == nil {
			return nil, fmt.Errorf("crawler not configured")
		}

		logger.Debug("scraping url", zap.String("url", params.URL))
		doc, err := cfg.Crawler.Scrape(ctx, params.URL, formatsOrDefault(params.Formats))
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", params.URL, err)
		}
		return json.Marshal(cfg.split(string(doc)))
	}

	return Tool{
		Schema: types.ToolSchema{
			Name:        "firecrawlScrape",
			Description: "Scrape a website using Firecrawl",
			Parameters:  scrapeSchema(),
		},
		Func:    fn,
		Timeout: cfg.Timeout,
	}
}

// NewFirecrawlCrawlTool builds the firecrawlCrawl tool. limit defaults to 1
// and the schema caps it at 3.
func NewFirecrawlCrawlTool(cfg CrawlerConfig, logger *zap.Logger) Tool {
	if logger == nil {
		logger = zap.NewNop()
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params crawlArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid firecrawlCrawl arguments: %w", err)
		}
		if cfg.Crawler == nil {
			return nil, fmt.Errorf("crawler not configured")
		}
		if params.Limit <= 0 {
			params.Limit = 1
		}

		logger.Debug("crawling url", zap.String("url", params.URL), zap.Int("limit", params.Limit))
		markdown, err := cfg.Crawler.Crawl(ctx, params.URL, params.Limit, formatsOrDefault(params.Formats))
		if err != nil {
			return nil, fmt.Errorf("crawl %s: %w", params.URL, err)
		}
		return json.Marshal(cfg.split(markdown))
	}

	return Tool{
		Schema: types.ToolSchema{
			Name:        "firecrawlCrawl",
			Description: "Crawl a website using Firecrawl",
			Parameters:  crawlSchema(),
		},
		Func:    fn,
		Timeout: cfg.Timeout,
	}
}
