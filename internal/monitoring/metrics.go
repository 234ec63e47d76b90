package monitoring

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const responseSampleSize = 1000

// Metrics owns a private Prometheus registry plus a few in-process
// counters used by the health endpoint.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	decisions         *prometheus.CounterVec
	riskScores        prometheus.Histogram
	collaboratorCalls *prometheus.CounterVec
	collaboratorTime  *prometheus.HistogramVec
	cacheEvents       *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	rateLimitBlocks   *prometheus.CounterVec
	fallbacks         *prometheus.CounterVec

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64

	responseTimesMu sync.Mutex
	responseTimes   []time.Duration
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendfall_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendfall_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendfall_stage_duration_seconds",
				Help:    "Duration of each decision stage",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendfall_decisions_total",
				Help: "Decisions by risk level, recommendation and explanation method",
			},
			[]string{"risk_level", "recommendation", "explanation_method"},
		),
		riskScores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendfall_risk_score",
				Help:    "Distribution of final risk scores",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 100},
			},
		),
		collaboratorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendfall_collaborator_calls_total",
				Help: "External collaborator calls by result",
			},
			[]string{"collaborator", "result"},
		),
		collaboratorTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendfall_collaborator_duration_seconds",
				Help:    "External collaborator latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collaborator"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendfall_cache_events_total",
				Help: "Acquisition cache hits and misses",
			},
			[]string{"result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendfall_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		rateLimitBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendfall_rate_limit_blocks_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"backend"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendfall_fallbacks_total",
				Help: "Degraded paths taken by component",
			},
			[]string{"component", "fallback"},
		),
		startTime:     time.Now(),
		responseTimes: make([]time.Duration, 0, responseSampleSize),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.stageDuration,
		m.decisions,
		m.riskScores,
		m.collaboratorCalls,
		m.collaboratorTime,
		m.cacheEvents,
		m.breakerState,
		m.rateLimitBlocks,
		m.fallbacks,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one HTTP request
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	m.requestCount.Add(1)
	if status >= 400 {
		m.errorCount.Add(1)
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())

	m.responseTimesMu.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > responseSampleSize {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimesMu.Unlock()
}

// ObserveStage records the duration of one decision stage
func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordDecision records the outcome of one decision
func (m *Metrics) RecordDecision(riskLevel, recommendation, method string, riskScore float64) {
	m.decisions.WithLabelValues(riskLevel, recommendation, method).Inc()
	m.riskScores.Observe(riskScore)
}

// RecordCollaboratorCall records one external call
func (m *Metrics) RecordCollaboratorCall(name string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.collaboratorCalls.WithLabelValues(name, result).Inc()
	m.collaboratorTime.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordCacheHit increments the cache hit counters
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
	m.cacheEvents.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments the cache miss counters
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
	m.cacheEvents.WithLabelValues("miss").Inc()
}

// SetBreakerState publishes a breaker state change
func (m *Metrics) SetBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitBlock counts a rejected request
func (m *Metrics) RecordRateLimitBlock(backend string) {
	m.rateLimitBlocks.WithLabelValues(backend).Inc()
}

// RecordFallback counts a degraded path
func (m *Metrics) RecordFallback(component, fallback string) {
	m.fallbacks.WithLabelValues(component, fallback).Inc()
}

// GetPercentileResponseTime returns the given percentile of recent response times
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMu.Lock()
	sorted := append([]time.Duration(nil), m.responseTimes...)
	m.responseTimesMu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)-1) * percentile / 100)
	return sorted[min(max(index, 0), len(sorted)-1)]
}

// GetStats returns a summary for the health endpoint
func (m *Metrics) GetStats() map[string]interface{} {
	requests := m.requestCount.Load()
	errorsTotal := m.errorCount.Load()
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errorsTotal) / float64(requests)
	}
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return map[string]interface{}{
		"uptime_seconds":  int64(time.Since(m.startTime).Seconds()),
		"request_count":   requests,
		"error_count":     errorsTotal,
		"error_rate":      errorRate,
		"cache_hit_rate":  hitRate,
		"p50_response_ms": m.GetPercentileResponseTime(50).Milliseconds(),
		"p95_response_ms": m.GetPercentileResponseTime(95).Milliseconds(),
		"p99_response_ms": m.GetPercentileResponseTime(99).Milliseconds(),
	}
}
