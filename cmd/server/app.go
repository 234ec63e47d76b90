package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/acquisition"
	"github.com/ZanzyTHEbar/trendfall/internal/adapters"
	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/api"
	"github.com/ZanzyTHEbar/trendfall/internal/cache"
	"github.com/ZanzyTHEbar/trendfall/internal/config"
	"github.com/ZanzyTHEbar/trendfall/internal/database"
	"github.com/ZanzyTHEbar/trendfall/internal/decision"
	"github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/ZanzyTHEbar/trendfall/internal/featurestore"
	"github.com/ZanzyTHEbar/trendfall/internal/middleware"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/narrative"
	"github.com/ZanzyTHEbar/trendfall/internal/ratelimit"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
	"github.com/ZanzyTHEbar/trendfall/internal/security"
	"github.com/gin-gonic/gin"
)

// app owns every long-lived component of the server
type app struct {
	router  *gin.Engine
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
	closers []closer
}

type closer struct {
	name string
	c    interface{ Close() error }
}

// Close releases resources in reverse construction order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		errors.SafeClose(a.closers[i].c, a.closers[i].name)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) (*app, error) {
	metrics := monitoring.NewMetrics()
	a := &app{metrics: metrics, logger: logger}
	checks := map[string]api.HealthCheck{}

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, continuing with in-process backends", "error", err)
	}
	if redisClient.IsEnabled() {
		a.closers = append(a.closers, closer{"redis", redisClient})
		checks["redis"] = redisClient.HealthCheck
	}

	var store featurestore.Store
	switch {
	case strings.EqualFold(cfg.FeatureStore.Backend, "redis") && redisClient.IsEnabled():
		store = featurestore.NewRedisStore(redisClient.GetClient(), cfg.FeatureStore.TTL)
	default:
		if strings.EqualFold(cfg.FeatureStore.Backend, "redis") {
			metrics.RecordFallback("featurestore", "memory")
			logger.FallbackLogger("featurestore", "memory", "redis not connected")
		}
		store = featurestore.NewMemoryStore(cfg.FeatureStore.TTL)
	}

	model := analysis.NoModel()
	modelStatus := "rule-based"
	if cfg.Statistical.Enabled {
		start := time.Now()
		model = analysis.SomeModel(analysis.TrainLogisticModel(cfg.Statistical.Training))
		modelStatus = "trained"
		logger.PerformanceLogger("model_training", time.Since(start).Seconds(), "seconds")
	}

	pipeline, err := analysis.NewPipeline(cfg.Model, model)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid model configuration", err)
	}
	polarity, err := analysis.NewPolarityScorer(cfg.Model.Sentiment)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid sentiment scorer", err)
	}
	engineer := analysis.NewFeatureEngineer(cfg.Model, polarity)
	logger.Info("Feature engineer ready", "sentiment", cfg.Model.Sentiment)

	adapterOpts := adapters.Options{
		Breaker: cfg.Breaker,
		Retry:   cfg.Retry,
		Metrics: metrics,
		Logger:  logger,
	}
	var breakers []*resilience.Breaker

	youtube := adapters.NewYouTubeAdapter(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, adapterOpts)
	var videos acquisition.VideoSource
	if youtube.Configured() {
		videos = youtube
		breakers = append(breakers, youtube.Breaker())
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, video acquisition disabled")
	}

	var headlines acquisition.HeadlineSource
	if cfg.News.Enabled {
		news := adapters.NewNewsAdapter(cfg.News.FeedURL, adapterOpts)
		headlines = news
		breakers = append(breakers, news.Breaker())
	}

	acquisitionCache := cache.NewCache(cfg.Cache.TTL, cfg.Cache.Sweep)
	a.closers = append(a.closers, closer{"acquisition cache", acquisitionCache})
	acquirer := acquisition.NewAcquirer(videos, headlines, acquisitionCache, cfg.Acquisition, metrics, logger)

	narrator, err := newNarrator(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	breakers = append(breakers, narrator.Breaker())

	var audit decision.AuditLog
	if cfg.Database.Path != "" {
		db, err := database.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, errors.NewConfigurationError("failed to open audit database", err)
		}
		a.closers = append(a.closers, closer{"database", db})
		checks["database"] = db.PingContext
		audit = database.NewAuditLog(database.NewRepository(db.DB))
	} else {
		logger.Warn("Database path empty, decisions will not be audited")
	}

	service, err := decision.NewService(decision.Options{
		Pipeline:         pipeline,
		Engineer:         engineer,
		Acquirer:         acquirer,
		Store:            store,
		Narrator:         narrator,
		Audit:            audit,
		Metrics:          metrics,
		Logger:           logger,
		SimulateOnNoData: cfg.Simulation.OnNoData,
	})
	if err != nil {
		return nil, err
	}

	a.router = api.NewRouter(api.Dependencies{
		Service:     service,
		Metrics:     metrics,
		Logger:      logger,
		Limiter:     ratelimit.NewRateLimiter(redisClient, cfg.RateLimit, metrics),
		Security:    security.NewMiddleware(cfg.Security),
		Compression: middleware.NewCompression(cfg.Compression),
		Checks:      checks,
		Breakers:    breakers,
		ModelStatus: modelStatus,
	})
	return a, nil
}

// newNarrator puts the configured generator behind the guarded wrapper with
// the template as its offline fallback.
func newNarrator(ctx context.Context, cfg *config.Config, metrics *monitoring.Metrics, logger *monitoring.Logger) (*narrative.Guarded, error) {
	tpl, err := narrative.NewTemplateGenerator(cfg.Narrative.Template)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid narrative template", err)
	}

	var primary narrative.Generator
	var fallback narrative.Generator = tpl
	if strings.EqualFold(cfg.Narrative.Provider, "bedrock") {
		bedrock, err := narrative.NewBedrockGenerator(ctx, cfg.Narrative.Region, cfg.Narrative.ModelID)
		if err != nil {
			metrics.RecordFallback("narrative", string(narrative.SourceTemplate))
			logger.FallbackLogger("narrative", string(narrative.SourceTemplate), fmt.Sprintf("bedrock init: %v", err))
		} else {
			primary = bedrock
		}
	}

	return narrative.NewGuarded(primary, fallback, narrative.GuardedOptions{
		Breaker: cfg.Breaker,
		Retry:   cfg.Retry,
		Timeout: cfg.Narrative.Timeout,
		Metrics: metrics,
		Logger:  logger,
	}), nil
}
