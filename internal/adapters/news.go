package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
	"github.com/mmcdole/gofeed"
)

// DefaultNewsFeedURL searches Google News; %s receives the escaped query
const DefaultNewsFeedURL = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

// NewsAdapter reads headlines for a topic from an RSS or Atom search feed
type NewsAdapter struct {
	feedURL string
	parser  *gofeed.Parser
	caller  *caller
}

// NewNewsAdapter creates an adapter over a feed URL template
func NewNewsAdapter(feedURL string, opts Options) *NewsAdapter {
	if feedURL == "" {
		feedURL = DefaultNewsFeedURL
	}
	return &NewsAdapter{
		feedURL: feedURL,
		parser:  gofeed.NewParser(),
		caller:  newCaller("news", opts),
	}
}

// Breaker exposes the adapter's breaker for health reporting
func (n *NewsAdapter) Breaker() *resilience.Breaker { return n.caller.breaker }

// Headline is one feed entry
type Headline struct {
	Title     string
	Link      string
	Published time.Time
}

// Headlines returns up to limit headlines for query, newest feed order kept
func (n *NewsAdapter) Headlines(ctx context.Context, query string, limit int) ([]Headline, error) {
	target := n.feedURL
	if strings.Contains(target, "%s") {
		target = fmt.Sprintf(target, url.QueryEscape(query))
	}

	body, err := n.caller.get(ctx, "feed", target, nil)
	if err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse news feed: %w", err)
	}

	headlines := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		h := Headline{Title: title, Link: item.Link}
		if item.PublishedParsed != nil {
			h.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			h.Published = *item.UpdatedParsed
		}
		headlines = append(headlines, h)
		if limit > 0 && len(headlines) == limit {
			break
		}
	}

	if len(headlines) == 0 {
		return nil, fmt.Errorf("news %q: %w", query, ErrNoData)
	}
	return headlines, nil
}
