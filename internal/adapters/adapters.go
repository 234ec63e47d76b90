// Package adapters talks to the content platforms a decision is built from.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
)

var (
	// ErrNoData means the platform answered but had nothing for the query
	ErrNoData = errors.New("adapters: no data")
	// ErrNotConfigured means the adapter has no credentials
	ErrNotConfigured = errors.New("adapters: not configured")
)

const maxBodyBytes = 4 << 20

// StatusError is a non-2xx answer from a platform API
type StatusError struct {
	API    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.API, e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Options carries the shared plumbing of every adapter
type Options struct {
	HTTPClient *http.Client
	Breaker    resilience.BreakerConfig
	Retry      resilience.RetryConfig
	Metrics    *monitoring.Metrics
	Logger     *monitoring.Logger
}

type caller struct {
	api     string
	client  *http.Client
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

func newCaller(api string, opts Options) *caller {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	var observe resilience.StateObserver
	if opts.Metrics != nil {
		observe = opts.Metrics.SetBreakerState
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.FastRetryConfig()
	}
	retry.RetryableErrors = isRetryable

	return &caller{
		api:     api,
		client:  client,
		breaker: resilience.NewBreaker(api, opts.Breaker, observe),
		retry:   retry,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, ErrNoData) || errors.Is(err, ErrNotConfigured) {
		return false
	}
	return apperrors.IsRetryableError(err)
}

// get issues a GET through the breaker and returns the body of a 2xx answer
func (c *caller) get(ctx context.Context, operation, url string, header http.Header) ([]byte, error) {
	start := time.Now()

	var body []byte
	err := resilience.Call(ctx, c.breaker, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return apperrors.NewNetworkError(c.api+" request failed", err)
		}
		defer apperrors.SafeClose(resp.Body, c.api+" response body")

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return apperrors.NewNetworkError("failed to read "+c.api+" response", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{API: c.api, Status: resp.StatusCode, Body: truncate(string(data), 200)}
		}

		body = data
		return nil
	})

	c.observe(operation, time.Since(start), err)
	return body, err
}

func (c *caller) observe(operation string, duration time.Duration, err error) {
	if c.metrics != nil {
		c.metrics.RecordCollaboratorCall(c.api, err == nil, duration)
	}
	if c.logger != nil {
		c.logger.ExternalAPILogger(c.api, operation, duration, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
