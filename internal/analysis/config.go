package analysis

import (
	"errors"
	"fmt"
	"math"
)

// BusinessWeights is the fixed linear table of the weighted business scorer.
type BusinessWeights struct {
	FatigueKeywordRatio   float64 `yaml:"fatigue_keyword_ratio" json:"fatigue_keyword_ratio"`
	EngagementDecayRate   float64 `yaml:"engagement_decay_rate" json:"engagement_decay_rate"`
	FormatRepetition      float64 `yaml:"format_repetition_score" json:"format_repetition_score"`
	TrendAge              float64 `yaml:"trend_age" json:"trend_age"`
	EngagementPerView     float64 `yaml:"engagement_per_view" json:"engagement_per_view"`
	CommentSentimentScore float64 `yaml:"comment_sentiment_score" json:"comment_sentiment_score"`
}

// BandThresholds are the lower bounds of the MEDIUM, HIGH and CRITICAL bands.
type BandThresholds struct {
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// ModelConfig holds every tunable of the pipeline. It is built once at
// startup and shared read-only between requests.
type ModelConfig struct {
	BaseScore           float64         `yaml:"base_score" json:"base_score"`
	Weights             BusinessWeights `yaml:"weights" json:"weights"`
	TrendAgeHorizonDays float64         `yaml:"trend_age_horizon_days" json:"trend_age_horizon_days"`

	EvergreenViewThreshold float64 `yaml:"evergreen_view_threshold" json:"evergreen_view_threshold"`
	EvergreenLikeThreshold float64 `yaml:"evergreen_like_threshold" json:"evergreen_like_threshold"`
	EvergreenScore         float64 `yaml:"evergreen_score" json:"evergreen_score"`

	// StatisticalWeight is the share of the statistical score in the blend.
	StatisticalWeight float64        `yaml:"statistical_weight" json:"statistical_weight"`
	Bands             BandThresholds `yaml:"bands" json:"bands"`

	// Sentiment names the comment polarity scorer, "vader" or "lexicon".
	Sentiment             string   `yaml:"sentiment" json:"sentiment"`
	FatigueKeywords       []string `yaml:"fatigue_keywords" json:"fatigue_keywords"`
	SignificanceThreshold float64  `yaml:"significance_threshold" json:"significance_threshold"`
	TopDrivers            int      `yaml:"top_drivers" json:"top_drivers"`

	DefaultCPM              float64 `yaml:"default_cpm" json:"default_cpm"`
	DefaultDailyImpressions float64 `yaml:"default_daily_impressions" json:"default_daily_impressions"`
	CurrencySymbol          string  `yaml:"currency_symbol" json:"currency_symbol"`
}

// DefaultModelConfig returns the production weights and thresholds.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		BaseScore: 50,
		Weights: BusinessWeights{
			FatigueKeywordRatio:   40,
			EngagementDecayRate:   30,
			FormatRepetition:      15,
			TrendAge:              10,
			EngagementPerView:     -10,
			CommentSentimentScore: -15,
		},
		TrendAgeHorizonDays:    30,
		EvergreenViewThreshold: 50_000_000,
		EvergreenLikeThreshold: 1_000_000,
		EvergreenScore:         15,
		StatisticalWeight:      0.4,
		Bands:                  BandThresholds{Medium: 40, High: 70, Critical: 85},
		Sentiment:              SentimentVADER,
		FatigueKeywords: []string{
			"boring", "tired", "repost", "again", "old",
			"dying", "dead", "over", "fake", "scripted",
		},
		SignificanceThreshold:   0.01,
		TopDrivers:              3,
		DefaultCPM:              500,
		DefaultDailyImpressions: 50_000,
		CurrencySymbol:          "₹",
	}
}

// DefaultDailyBudget is the CPM-derived spend assumed when the caller gives none.
func (c ModelConfig) DefaultDailyBudget() float64 {
	return c.DefaultCPM / 1000 * c.DefaultDailyImpressions
}

// Validate checks internal consistency of the configuration.
func (c ModelConfig) Validate() error {
	var errs []error
	if c.StatisticalWeight < 0 || c.StatisticalWeight > 1 {
		errs = append(errs, fmt.Errorf("statistical_weight %.3f outside [0,1]", c.StatisticalWeight))
	}
	if !(c.Bands.Medium < c.Bands.High && c.Bands.High < c.Bands.Critical) {
		errs = append(errs, fmt.Errorf("bands must be strictly increasing, got %.2f/%.2f/%.2f",
			c.Bands.Medium, c.Bands.High, c.Bands.Critical))
	}
	if c.Bands.Medium < 0 || c.Bands.Critical > 100 {
		errs = append(errs, errors.New("bands must lie within [0,100]"))
	}
	if c.TrendAgeHorizonDays <= 0 {
		errs = append(errs, errors.New("trend_age_horizon_days must be positive"))
	}
	if c.EvergreenScore < 0 || c.EvergreenScore > 100 {
		errs = append(errs, errors.New("evergreen_score must lie within [0,100]"))
	}
	if c.SignificanceThreshold < 0 || math.IsNaN(c.SignificanceThreshold) {
		errs = append(errs, errors.New("significance_threshold must be non-negative"))
	}
	if c.TopDrivers < 1 {
		errs = append(errs, errors.New("top_drivers must be at least 1"))
	}
	if c.Sentiment != SentimentVADER && c.Sentiment != SentimentLexicon {
		errs = append(errs, fmt.Errorf("sentiment %q must be %q or %q", c.Sentiment, SentimentVADER, SentimentLexicon))
	}
	if len(c.FatigueKeywords) == 0 {
		errs = append(errs, errors.New("fatigue_keywords must not be empty"))
	}
	if c.DefaultCPM < 0 || c.DefaultDailyImpressions < 0 {
		errs = append(errs, errors.New("default budget inputs must be non-negative"))
	}
	return errors.Join(errs...)
}
