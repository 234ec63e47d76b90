package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
)

// DefaultYouTubeBaseURL is the Data API v3 root
const DefaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

var (
	videoURLPattern = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?|shorts)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
	videoIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractVideoID finds a video id in a watch, short, embed or youtu.be URL,
// or accepts a bare 11 character id.
func ExtractVideoID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if videoIDPattern.MatchString(input) {
		return input, true
	}
	if m := videoURLPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	return "", false
}

// YouTubeAdapter reads video statistics, comments and search results
type YouTubeAdapter struct {
	apiKey  string
	baseURL string
	caller  *caller
}

// NewYouTubeAdapter creates an adapter. An empty key makes every call
// return ErrNotConfigured.
func NewYouTubeAdapter(apiKey, baseURL string, opts Options) *YouTubeAdapter {
	if baseURL == "" {
		baseURL = DefaultYouTubeBaseURL
	}
	return &YouTubeAdapter{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  newCaller("youtube", opts),
	}
}

// Configured reports whether an API key is present
func (y *YouTubeAdapter) Configured() bool {
	return y.apiKey != ""
}

// Breaker exposes the adapter's breaker for health reporting
func (y *YouTubeAdapter) Breaker() *resilience.Breaker { return y.caller.breaker }

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type commentThreadsResponse struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay string `json:"textDisplay"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// VideoMetadata fetches title, publish time and counters for one video
func (y *YouTubeAdapter) VideoMetadata(ctx context.Context, videoID string) (analysis.Metadata, error) {
	var out videoListResponse
	if err := y.fetch(ctx, "videos.list", "videos", url.Values{
		"part": {"snippet,statistics"},
		"id":   {videoID},
	}, &out); err != nil {
		return analysis.Metadata{}, err
	}
	if len(out.Items) == 0 {
		return analysis.Metadata{}, fmt.Errorf("video %s: %w", videoID, ErrNoData)
	}

	item := out.Items[0]
	return analysis.Metadata{
		Title:        item.Snippet.Title,
		ViewCount:    parseCount(item.Statistics.ViewCount),
		LikeCount:    parseCount(item.Statistics.LikeCount),
		CommentCount: parseCount(item.Statistics.CommentCount),
		PublishedAt:  item.Snippet.PublishedAt,
	}, nil
}

// Comments fetches up to maxResults top-level comments as plain text.
// Disabled comments (403) are reported as an empty list.
func (y *YouTubeAdapter) Comments(ctx context.Context, videoID string, maxResults int) ([]string, error) {
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 50
	}

	var out commentThreadsResponse
	err := y.fetch(ctx, "commentThreads.list", "commentThreads", url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"maxResults": {strconv.Itoa(maxResults)},
		"textFormat": {"plainText"},
	}, &out)
	if isStatus(err, http.StatusForbidden) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	comments := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		comments = append(comments, item.Snippet.TopLevelComment.Snippet.TextDisplay)
	}
	return comments, nil
}

// SearchVideo returns the most relevant video id for a free-text query
func (y *YouTubeAdapter) SearchVideo(ctx context.Context, query string) (string, error) {
	var out searchResponse
	if err := y.fetch(ctx, "search.list", "search", url.Values{
		"part":       {"id"},
		"q":          {query},
		"type":       {"video"},
		"maxResults": {"1"},
		"order":      {"relevance"},
	}, &out); err != nil {
		return "", err
	}
	if len(out.Items) == 0 || out.Items[0].ID.VideoID == "" {
		return "", fmt.Errorf("search %q: %w", query, ErrNoData)
	}
	return out.Items[0].ID.VideoID, nil
}

func (y *YouTubeAdapter) fetch(ctx context.Context, operation, resource string, params url.Values, out any) error {
	if !y.Configured() {
		return ErrNotConfigured
	}
	params.Set("key", y.apiKey)

	body, err := y.caller.get(ctx, operation, y.baseURL+"/"+resource+"?"+params.Encode(),
		http.Header{"Accept": {"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", operation, err)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
