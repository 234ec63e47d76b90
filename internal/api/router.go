// Package api exposes the decision service over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/database"
	"github.com/ZanzyTHEbar/trendfall/internal/decision"
	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/ZanzyTHEbar/trendfall/internal/middleware"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/ratelimit"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
	"github.com/ZanzyTHEbar/trendfall/internal/security"
	"github.com/ZanzyTHEbar/trendfall/internal/types"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
var Version = "dev"

// DecisionService is the subset of decision.Service the handlers use
type DecisionService interface {
	Analyze(ctx context.Context, req decision.Request) (*decision.Result, error)
	AnalyzeFeatures(ctx context.Context, req decision.FeatureRequest) (*decision.Result, error)
	Get(ctx context.Context, requestID string) (*database.DecisionRecord, error)
	Recent(ctx context.Context, limit int) ([]*database.DecisionRecord, error)
}

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// Dependencies wires the router. Service, Metrics and Logger are required.
type Dependencies struct {
	Service  DecisionService
	Metrics  *monitoring.Metrics
	Logger   *monitoring.Logger
	Limiter  *ratelimit.RateLimiter
	Security *security.Middleware
	// Compression defaults to gzip for JSON bodies of 1KB or more
	Compression *middleware.Compression
	// Checks run on /health; any failure reports degraded
	Checks   map[string]HealthCheck
	Breakers []*resilience.Breaker
	// ModelStatus describes the statistical model, e.g. "trained" or "rule-based"
	ModelStatus string
}

type handler struct {
	deps Dependencies
}

// NewRouter builds the gin engine with the full middleware chain
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Security == nil {
		deps.Security = security.NewMiddleware(security.DefaultConfig())
	}
	if deps.Compression == nil {
		deps.Compression = middleware.NewCompression(middleware.DefaultCompressionConfig())
	}
	h := &handler{deps: deps}

	r := gin.New()
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(deps.Metrics, deps.Logger))
	r.Use(apperrors.RecoveryHandler())
	r.Use(apperrors.ErrorHandler())
	r.Use(deps.Compression.Handler())
	r.Use(deps.Security.CORS())
	r.Use(deps.Security.SecurityHeaders)
	r.Use(deps.Security.ValidateContentType)
	r.Use(deps.Security.RequestTimeout)

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	limited := r.Group("/")
	if deps.Limiter != nil {
		limited.Use(deps.Limiter.IPRateLimitMiddleware())
	}

	analyze := limited.Group("/analyze")
	if deps.Limiter != nil {
		analyze.Use(deps.Limiter.AnalyzeRateLimitMiddleware())
	}
	analyze.POST("", h.analyze)
	analyze.POST("/features", h.analyzeFeatures)

	limited.GET("/decisions", h.listDecisions)
	limited.GET("/decisions/:id", h.getDecision)

	return r
}

func (h *handler) analyze(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	input, err := h.deps.Security.CleanInput(req.Input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.deps.Service.Analyze(c.Request.Context(), decision.Request{
		Input:       input,
		DailyBudget: req.DailyBudget,
		Simulate:    req.Simulate,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) analyzeFeatures(c *gin.Context) {
	var req types.FeaturesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	label := ""
	if req.Label != "" {
		var err error
		if label, err = h.deps.Security.CleanInput(req.Label); err != nil {
			_ = c.Error(err)
			return
		}
	}

	result, err := h.deps.Service.AnalyzeFeatures(c.Request.Context(), decision.FeatureRequest{
		Features:    req.Features,
		DailyBudget: req.DailyBudget,
		Label:       label,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) getDecision(c *gin.Context) {
	rec, err := h.deps.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) listDecisions(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = c.Error(apperrors.NewValidationError("limit must be a positive integer", raw))
			return
		}
		limit = n
	}

	records, err := h.deps.Service.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := types.DecisionList{Decisions: make([]types.DecisionSummary, 0, len(records))}
	for _, rec := range records {
		out.Decisions = append(out.Decisions, types.DecisionSummary{
			RequestID:         rec.RequestID,
			Input:             rec.Input,
			DataSource:        rec.DataSource,
			RiskScore:         rec.RiskScore,
			RiskLevel:         rec.RiskLevel,
			Recommendation:    rec.Recommendation,
			ExplanationMethod: rec.ExplanationMethod,
			Digest:            rec.Digest,
			CreatedAt:         rec.CreatedAt,
		})
	}
	out.Count = len(out.Decisions)
	c.JSON(http.StatusOK, out)
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := types.HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now().Format(time.RFC3339),
		Version:    Version,
		Model:      h.deps.ModelStatus,
		Components: make(map[string]string, len(h.deps.Checks)+len(h.deps.Breakers)),
		Metrics:    h.deps.Metrics.GetStats(),
	}
	resp.Metrics["compression"] = h.deps.Compression.GetStats()

	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			resp.Components[name] = "unhealthy: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "healthy"
	}
	// an open breaker means a collaborator is skipped, not that we are down
	for _, b := range h.deps.Breakers {
		resp.Components["breaker:"+b.Name()] = b.State()
	}

	if resp.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
