// Package acquisition resolves a user's input into the raw material the
// feature engineer needs.
package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/adapters"
	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/cache"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
)

// ErrNoData means no collaborator could supply anything for the input
var ErrNoData = errors.New("acquisition: no data")

// Source names where an acquisition came from
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceNews       Source = "news"
	SourceSimulation Source = "simulation"
	SourceFeatures   Source = "features"
)

// Acquisition is one input resolved to metadata and comment text
type Acquisition struct {
	Input    string            `json:"input"`
	Source   Source            `json:"source"`
	VideoID  string            `json:"video_id,omitempty"`
	Metadata analysis.Metadata `json:"metadata"`
	// HasMetrics is false when only text was found; engagement signals are
	// then left at their neutral defaults.
	HasMetrics bool     `json:"has_metrics"`
	Comments   []string `json:"comments"`

	// History is the hourly headline count over the last day, news only.
	History []analysis.TrendPoint `json:"history,omitempty"`
}

const historyHours = 24

// VideoSource is the subset of the YouTube adapter used here
type VideoSource interface {
	Configured() bool
	VideoMetadata(ctx context.Context, videoID string) (analysis.Metadata, error)
	Comments(ctx context.Context, videoID string, maxResults int) ([]string, error)
	SearchVideo(ctx context.Context, query string) (string, error)
}

// HeadlineSource is the subset of the news adapter used here
type HeadlineSource interface {
	Headlines(ctx context.Context, query string, limit int) ([]adapters.Headline, error)
}

// Config tunes acquisition
type Config struct {
	MaxComments  int `yaml:"max_comments"`
	MaxHeadlines int `yaml:"max_headlines"`
}

// DefaultConfig returns the acquisition defaults
func DefaultConfig() Config {
	return Config{MaxComments: 50, MaxHeadlines: 25}
}

// Acquirer tries the video platform first and news headlines second
type Acquirer struct {
	videos  VideoSource
	news    HeadlineSource
	cache   *cache.Cache
	cfg     Config
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
	now     func() time.Time
}

// NewAcquirer wires the sources. Any source and the cache may be nil.
func NewAcquirer(videos VideoSource, news HeadlineSource, c *cache.Cache, cfg Config, metrics *monitoring.Metrics, logger *monitoring.Logger) *Acquirer {
	if cfg.MaxComments <= 0 {
		cfg.MaxComments = DefaultConfig().MaxComments
	}
	if cfg.MaxHeadlines <= 0 {
		cfg.MaxHeadlines = DefaultConfig().MaxHeadlines
	}
	return &Acquirer{videos: videos, news: news, cache: c, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock returns a copy of the acquirer that reads the current time from now.
func (a *Acquirer) WithClock(now func() time.Time) *Acquirer {
	cp := *a
	cp.now = now
	return &cp
}

// Acquire resolves input, a video URL or id or a free-text topic. It returns
// ErrNoData when every source failed or came back empty.
func (a *Acquirer) Acquire(ctx context.Context, input string) (Acquisition, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Acquisition{}, fmt.Errorf("empty input: %w", ErrNoData)
	}

	key := cache.Key("acquisition", input)
	if acq, ok := a.cached(key); ok {
		return acq, nil
	}

	acq, err := a.fetch(ctx, input)
	if err != nil {
		return Acquisition{}, err
	}

	if a.cache != nil {
		if data, err := json.Marshal(acq); err == nil {
			a.cache.Set(key, data)
		}
	}
	return acq, nil
}

func (a *Acquirer) cached(key string) (Acquisition, bool) {
	if a.cache == nil {
		return Acquisition{}, false
	}

	data, ok := a.cache.Get(key)
	if ok {
		var acq Acquisition
		if err := json.Unmarshal(data, &acq); err == nil {
			a.recordCache(true)
			return acq, true
		}
		a.cache.Delete(key)
	}
	a.recordCache(false)
	return Acquisition{}, false
}

func (a *Acquirer) recordCache(hit bool) {
	if a.metrics == nil {
		return
	}
	if hit {
		a.metrics.RecordCacheHit()
	} else {
		a.metrics.RecordCacheMiss()
	}
}

func (a *Acquirer) fetch(ctx context.Context, input string) (Acquisition, error) {
	var videoErr error
	if a.videos != nil && a.videos.Configured() {
		acq, err := a.fromVideo(ctx, input)
		if err == nil {
			return acq, nil
		}
		videoErr = err
		a.fallback("news", err)
	}

	if a.news != nil {
		acq, err := a.fromNews(ctx, input)
		if err == nil {
			return acq, nil
		}
		a.fallback("none", err)
		return Acquisition{}, fmt.Errorf("%w: %w", ErrNoData, errors.Join(videoErr, err))
	}

	if videoErr != nil {
		return Acquisition{}, fmt.Errorf("%w: %w", ErrNoData, videoErr)
	}
	return Acquisition{}, fmt.Errorf("no sources configured: %w", ErrNoData)
}

func (a *Acquirer) fromVideo(ctx context.Context, input string) (Acquisition, error) {
	videoID, isVideo := adapters.ExtractVideoID(input)

	var meta analysis.Metadata
	var err error
	if isVideo {
		meta, err = a.videos.VideoMetadata(ctx, videoID)
		// an 11 character topic can look like an id; search for it instead
		if errors.Is(err, adapters.ErrNoData) && videoID == input {
			isVideo = false
		}
	}
	if !isVideo {
		videoID, err = a.videos.SearchVideo(ctx, input)
		if err != nil {
			return Acquisition{}, err
		}
		meta, err = a.videos.VideoMetadata(ctx, videoID)
	}
	if err != nil {
		return Acquisition{}, err
	}

	comments, err := a.videos.Comments(ctx, videoID, a.cfg.MaxComments)
	if err != nil {
		// metadata alone still yields a usable vector
		a.fallback("no_comments", err)
		comments = []string{}
	}

	return Acquisition{
		Input:      input,
		Source:     SourceYouTube,
		VideoID:    videoID,
		Metadata:   meta,
		HasMetrics: true,
		Comments:   comments,
	}, nil
}

func (a *Acquirer) fromNews(ctx context.Context, input string) (Acquisition, error) {
	headlines, err := a.news.Headlines(ctx, input, a.cfg.MaxHeadlines)
	if err != nil {
		return Acquisition{}, err
	}

	texts := make([]string, len(headlines))
	published := make([]time.Time, len(headlines))
	for i, h := range headlines {
		texts[i] = h.Title
		published[i] = h.Published
	}

	meta := analysis.Metadata{Title: input}
	if oldest := oldestPublished(headlines); oldest != "" {
		meta.PublishedAt = oldest
	}

	return Acquisition{
		Input:    input,
		Source:   SourceNews,
		Metadata: meta,
		Comments: texts,
		History:  analysis.HourlyHistory(published, a.now(), historyHours),
	}, nil
}

func oldestPublished(headlines []adapters.Headline) string {
	var oldest adapters.Headline
	for _, h := range headlines {
		if h.Published.IsZero() {
			continue
		}
		if oldest.Published.IsZero() || h.Published.Before(oldest.Published) {
			oldest = h
		}
	}
	if oldest.Published.IsZero() {
		return ""
	}
	return oldest.Published.UTC().Format(time.RFC3339)
}

func (a *Acquirer) fallback(to string, err error) {
	if a.metrics != nil {
		a.metrics.RecordFallback("acquisition", to)
	}
	if a.logger != nil {
		a.logger.FallbackLogger("acquisition", to, err.Error())
	}
}

// Simulated wraps a seeded simulation as an acquisition record
func Simulated(input string) (Acquisition, analysis.Simulation) {
	sim := analysis.Simulate(input)
	return Acquisition{
		Input:    strings.TrimSpace(input),
		Source:   SourceSimulation,
		Comments: []string{},
	}, sim
}
