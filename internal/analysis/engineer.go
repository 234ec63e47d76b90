package analysis

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const (
	// healthyInteractionRate is the interaction rate (percent of views) mapped to zero velocity.
	healthyInteractionRate = 5.0
	velocityScale          = 5.0

	influencerViewCutoff = 500_000
	maxComments          = 500
	featurePrecision     = 4
)

// Metadata is the engagement snapshot of one content item.
type Metadata struct {
	Title        string `json:"title,omitempty"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	PublishedAt  string `json:"published_at"`
}

// PolarityScorer scores the sentiment polarity of one text in [-1, 1].
type PolarityScorer interface {
	Polarity(text string) float64
}

// FeatureEngineer turns raw metadata and comments into a FeatureVector.
// It never fails: every malformed input has a numeric fallback.
type FeatureEngineer struct {
	keywords []string
	polarity PolarityScorer
	now      func() time.Time
}

// NewFeatureEngineer creates an engineer using the configured fatigue keywords.
// A nil polarity scorer selects the built-in lexicon scorer.
func NewFeatureEngineer(cfg ModelConfig, polarity PolarityScorer) *FeatureEngineer {
	if polarity == nil {
		polarity = NewLexiconPolarity()
	}
	folder := cases.Fold()
	keywords := make([]string, 0, len(cfg.FatigueKeywords))
	for _, k := range cfg.FatigueKeywords {
		if k = strings.TrimSpace(folder.String(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &FeatureEngineer{
		keywords: keywords,
		polarity: polarity,
		now:      time.Now,
	}
}

// WithClock returns a copy of the engineer that reads the current time from now.
func (e *FeatureEngineer) WithClock(now func() time.Time) *FeatureEngineer {
	cp := *e
	cp.now = now
	return &cp
}

// Compute derives the full canonical vector. Values are rounded to four
// decimal places so downstream threshold comparisons are reproducible.
func (e *FeatureEngineer) Compute(meta Metadata, comments []string) FeatureVector {
	comments = cleanComments(comments)

	views := float64(max(0, meta.ViewCount))
	likes := float64(max(0, meta.LikeCount))
	commentCount := float64(max(0, meta.CommentCount))

	// a video with no views still divides by one
	engagementPerView := (likes + commentCount) / max(1, views)
	velocity := clip((engagementPerView*100-healthyInteractionRate)/velocityScale, -1, 1)

	sentiment := e.meanPolarity(comments)
	keywordRatio, repetition := e.fatigueTerms(comments)
	trendAge := e.trendAge(meta.PublishedAt)

	influencer := 0.2
	if views < influencerViewCutoff {
		influencer = 0.6
	}
	postingChange := 0.0
	if trendAge > 60 {
		postingChange = -0.1
	}

	raw := map[string]float64{
		SignalEngagementVelocity:    velocity,
		SignalSentimentScore:        sentiment,
		SignalCommentFatigue:        (keywordRatio + repetition) / 2,
		SignalInfluencerRatio:       influencer,
		SignalPostingChange:         postingChange,
		SignalTrendAge:              trendAge,
		SignalFatigueKeywordRatio:   keywordRatio,
		SignalFormatRepetition:      repetition,
		SignalEngagementPerView:     engagementPerView,
		SignalCommentSentimentScore: sentiment,
		SignalInteractionQuality:    interactionQuality(sentiment, engagementPerView),
		SignalEngagementDecayRate:   decayRateForAge(trendAge),
		SignalTimeSincePeak:         timeSincePeak(trendAge),
		SignalViewCount:             views,
		SignalLikeCount:             likes,
	}
	for k, v := range raw {
		raw[k] = roundTo(v, featurePrecision)
	}
	return complete(raw)
}

func (e *FeatureEngineer) meanPolarity(comments []string) float64 {
	if len(comments) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range comments {
		p := e.polarity.Polarity(c)
		if !isFinite(p) {
			p = 0
		}
		sum += clip(p, -1, 1)
	}
	return sum / float64(len(comments))
}

// fatigueTerms returns the share of comments containing a fatigue keyword
// and the duplicate-content ratio (one minus unique/total).
func (e *FeatureEngineer) fatigueTerms(comments []string) (keywordRatio, repetition float64) {
	if len(comments) == 0 {
		return 0, 0
	}
	folder := cases.Fold()
	hits := 0
	unique := make(map[string]struct{}, len(comments))
	for _, c := range comments {
		unique[c] = struct{}{}
		folded := folder.String(c)
		for _, k := range e.keywords {
			if strings.Contains(folded, k) {
				hits++
				break
			}
		}
	}
	n := float64(len(comments))
	return float64(hits) / n, 1 - float64(len(unique))/n
}

// trendAge returns whole days since publication. An empty timestamp counts
// as just published; an unparseable one falls back to DefaultTrendAgeDays.
func (e *FeatureEngineer) trendAge(publishedAt string) float64 {
	publishedAt = strings.TrimSpace(publishedAt)
	if publishedAt == "" {
		return 0
	}
	published, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		if len(publishedAt) < 10 {
			return DefaultTrendAgeDays
		}
		published, err = time.Parse(time.DateOnly, publishedAt[:10])
		if err != nil {
			return DefaultTrendAgeDays
		}
	}
	days := int(e.now().Sub(published).Hours() / 24)
	if days < 0 {
		return 0
	}
	return float64(days)
}

// cleanComments trims whitespace, drops empty entries and caps the sample size.
func cleanComments(comments []string) []string {
	cleaned := make([]string, 0, min(len(comments), maxComments))
	for _, c := range comments {
		if c = strings.TrimSpace(c); c == "" {
			continue
		}
		cleaned = append(cleaned, c)
		if len(cleaned) == maxComments {
			break
		}
	}
	return cleaned
}

func interactionQuality(sentiment, engagementPerView float64) float64 {
	return clip(sentiment*0.5+engagementPerView*10, -1, 1)
}

// decayRateForAge is a coarse step proxy, not a measured decay.
func decayRateForAge(trendAge float64) float64 {
	if trendAge > 30 {
		return 0.2
	}
	return 0.05
}

func timeSincePeak(trendAge float64) float64 {
	return min(24.0, trendAge*0.5)
}
