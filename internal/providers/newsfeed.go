package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// NewsFeedClient ingests RSS/Atom company-news feeds. It isn't one of the
// six named provider surfaces in spec §4.3, but it backs the stock-news
// and company-news tool contracts (spec §4.1) and the sentiment
// specialist's news leg (spec §4.7), so it shares the same retry/backoff
// core as every other provider client.
type NewsFeedClient struct {
	core   *Core
	parser *gofeed.Parser
}

// NewNewsFeedClient wires a feed client.
func NewNewsFeedClient(app string, ring *events.Ring, log zerolog.Logger) *NewsFeedClient {
	return &NewsFeedClient{
		core:   NewCore(app, "newsfeed", DefaultConfig(), ring, log),
		parser: gofeed.NewParser(),
	}
}

// FetchFeed parses the feed at url and returns up to limit items as
// RawNewsItem. feedURL is expected to be a per-symbol or per-topic news
// feed URL resolved by the caller (e.g. a ticker-scoped Google News RSS
// query); the wire format of any specific feed provider is out of scope.
func (n *NewsFeedClient) FetchFeed(ctx context.Context, feedURL string, limit int) ([]RawNewsItem, error) {
	reqID := uuid.NewString()
	result, err := n.core.Do(ctx, feedURL, http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
			if err != nil {
				return nil, AttemptResult{Err: err, Retry: true}
			}

			items := feed.Items
			if len(items) > limit {
				items = items[:limit]
			}

			out := make([]RawNewsItem, 0, len(items))
			for _, it := range items {
				published := time.Now()
				if it.PublishedParsed != nil {
					published = *it.PublishedParsed
				}
				out = append(out, RawNewsItem{
					Headline:    it.Title,
					Summary:     it.Description,
					Source:      feed.Title,
					URL:         it.Link,
					PublishedAt: published,
				})
			}
			return out, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawNewsItem), nil
}
