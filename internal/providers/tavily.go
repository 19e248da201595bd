package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// TavilyClient is an API-key web-search provider used by the advisor's
// price-move explainer (spec §4.7) and the report builders' web-sentiment
// and web-news collectors (spec §4.11).
type TavilyClient struct {
	core       *Core
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewTavilyClient wires a Tavily client.
func NewTavilyClient(app, apiKey string, ring *events.Ring, log zerolog.Logger) *TavilyClient {
	return &TavilyClient{
		core:       NewCore(app, "tavily", DefaultConfig(), ring, log),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		baseURL:    "https://api.tavily.com",
	}
}

type tavilySearchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search performs a web search for query, returning up to maxResults hits.
func (t *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]RawSearchResult, error) {
	reqID := uuid.NewString()
	result, err := t.core.Do(ctx, "/search", http.MethodPost, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if t.apiKey == "" {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}

			body, err := json.Marshal(tavilySearchRequest{APIKey: t.apiKey, Query: query, MaxResults: maxResults})
			if err != nil {
				return nil, AttemptResult{Err: err}
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
			if err != nil {
				return nil, AttemptResult{Err: err}
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := t.httpClient.Do(req)
			if err != nil {
				return nil, AttemptResult{Err: err, Retry: true}
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, AttemptResult{Status: resp.StatusCode}
			}

			var parsed tavilySearchResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return nil, AttemptResult{Err: err}
			}

			out := make([]RawSearchResult, 0, len(parsed.Results))
			for _, r := range parsed.Results {
				out = append(out, RawSearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
			}
			return out, AttemptResult{Status: resp.StatusCode}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawSearchResult), nil
}
