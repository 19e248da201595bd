package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/finresearch/orchestrator/internal/orchestrator"
	"github.com/finresearch/orchestrator/internal/providers"
)

var (
	redditKeywords    = []string{"reddit", "wsb", "wallstreetbets", "social", "sentiment"}
	newsKeywords      = []string{"news", "headline", "article", "press"}
	politicalKeywords = []string{"insider", "congress", "political", "senator", "lobbying"}
)

func matchesAny(query string, keywords []string) bool {
	lower := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SentimentAgent is the sentiment specialist (spec §4.7): a parallel fetch
// across Reddit, news, and political/insider-trading signal sources,
// each gated by whether the composite query's keywords mention it, with
// each source's output formatted independently.
type SentimentAgent struct {
	Reddit *providers.RedditClient
	News   *providers.NewsFeedClient
	Finviz *providers.FinvizClient

	NewsFeedURL string
}

func NewSentimentAgent(reddit *providers.RedditClient, news *providers.NewsFeedClient, finviz *providers.FinvizClient, newsFeedURL string) *SentimentAgent {
	return &SentimentAgent{Reddit: reddit, News: news, Finviz: finviz, NewsFeedURL: newsFeedURL}
}

func (a *SentimentAgent) Name() orchestrator.AgentName { return orchestrator.AgentSentiment }

func (a *SentimentAgent) Run(ctx context.Context, tasks []orchestrator.AgentTask, state *orchestrator.ConversationState) orchestrator.AgentResult {
	query := compositeQuery(tasks)
	tickers := ExtractTickers(query)
	searchTerm := query
	if len(tickers) > 0 {
		searchTerm = tickers[0]
	}

	wantReddit := matchesAny(query, redditKeywords)
	wantNews := matchesAny(query, newsKeywords)
	wantPolitical := matchesAny(query, politicalKeywords)
	if !wantReddit && !wantNews && !wantPolitical {
		// No keyword gate matched: default to the cheapest, always-useful
		// signal (news) rather than returning nothing.
		wantNews = true
	}

	var mu sync.Mutex
	sections := make(map[string]string)
	var wg sync.WaitGroup

	if wantReddit && a.Reddit != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts, err := a.Reddit.SearchSubreddit(ctx, "wallstreetbets", searchTerm, 10)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sections["reddit"] = fmt.Sprintf("reddit: unavailable (%s)", err)
				return
			}
			sections["reddit"] = formatRedditSection(posts)
		}()
	}

	if wantNews && a.News != nil && a.NewsFeedURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := a.News.FetchFeed(ctx, a.NewsFeedURL, 10)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sections["news"] = fmt.Sprintf("news: unavailable (%s)", err)
				return
			}
			sections["news"] = formatNewsSection(items)
		}()
	}

	if wantPolitical && a.Finviz != nil && len(tickers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			overview, err := a.Finviz.Overview(ctx, tickers[0])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sections["political"] = fmt.Sprintf("political trades: unavailable (%s)", err)
				return
			}
			sections["political"] = fmt.Sprintf("political/insider ownership signal (%s): Insider Own=%s, Inst Own=%s",
				tickers[0], overview["Insider Own"], overview["Inst Own"])
		}()
	}

	wg.Wait()

	order := []string{"reddit", "news", "political"}
	var content strings.Builder
	for _, key := range order {
		if s, ok := sections[key]; ok {
			content.WriteString(s)
			content.WriteString("\n\n")
		}
	}

	markTerminal(state, tasks, orchestrator.TaskCompleted)
	result := orchestrator.AgentResult{
		Agent:   orchestrator.AgentSentiment,
		Content: strings.TrimSpace(content.String()),
		Symbols: tickers,
		Data:    sections,
	}
	state.AgentResults[orchestrator.AgentSentiment] = result
	return result
}

func formatRedditSection(posts []providers.RawRedditPost) string {
	var b strings.Builder
	b.WriteString("### Reddit\n")
	for _, p := range posts {
		fmt.Fprintf(&b, "- %s (score %d)\n", p.Title, p.Score)
	}
	return b.String()
}

func formatNewsSection(items []providers.RawNewsItem) string {
	var b strings.Builder
	b.WriteString("### News\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s (%s)\n", it.Headline, it.Source)
	}
	return b.String()
}
