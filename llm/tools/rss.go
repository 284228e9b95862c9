package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"go.uber.org/zap"
)

// FeedReader fetches and parses an RSS or Atom feed.
type FeedReader interface {
	ReadFeed(ctx context.Context, feedURL string) ([]FeedItem, error)
}

// FeedItem is one entry of a feed.
type FeedItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Published   time.Time `json:"published,omitempty"`
}

type rssReaderArgs struct {
	FeedURL string `json:"feedUrl"`
}

func rssReaderSchema() json.RawMessage {
	return types.NewObjectSchema().
		AddProperty("feedUrl", types.NewStringSchema().WithDescription("URL of the RSS feed")).
		AddRequired("feedUrl").
		Raw()
}

// NewRSSReaderTool builds the rssReader tool.
func NewRSSReaderTool(reader FeedReader, timeout time.Duration, logger *zap.Logger) Tool {
	if logger == nil {
		logger = zap.NewNop()
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params rssReaderArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid rssReader arguments: %w", err)
		}
		if reader == nil {
			return nil, fmt.Errorf("feed reader not configured")
		}

		logger.Debug("reading rss feed", zap.String("feed_url", params.FeedURL))
		items, err := reader.ReadFeed(ctx, params.FeedURL)
		if err != nil {
			return nil, fmt.Errorf("read feed %s: %w", params.FeedURL, err)
		}
		if items == nil {
			items = []FeedItem{}
		}
		return json.Marshal(items)
	}

	return Tool{
		Schema: types.ToolSchema{
			Name:        "rssReader",
			Description: "Read RSS feeds",
			Parameters:  rssReaderSchema(),
		},
		Func:    fn,
		Timeout: timeout,
	}
}
