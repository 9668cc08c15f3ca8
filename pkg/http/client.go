// Package http provides a reusable HTTP client with resilience features
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"margin_maker/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// APIError represents an API error response
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Options tunes the resilience pipeline
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultOptions mirrors the defaults used for exchange and oracle endpoints
var DefaultOptions = Options{
	Timeout:        5 * time.Second,
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// Client is a wrapper around http.Client with retry and circuit breaking
type Client struct {
	client   *http.Client
	baseURL  string
	pipeline failsafe.Executor[*http.Response]

	tracer      trace.Tracer
	reqCounter  metric.Int64Counter
	errCounter  metric.Int64Counter
	latencyHist metric.Float64Histogram
}

// NewClient creates a new HTTP client with the given resilience options
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultOptions.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	retryPolicy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(opts.InitialBackoff, opts.MaxBackoff).
		WithMaxRetries(opts.MaxRetries).
		ReturnLastFailure().
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	meter := telemetry.GetMeter("http-client")
	reqCounter, _ := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	errCounter, _ := meter.Int64Counter("http_errors_total",
		metric.WithDescription("Total number of HTTP errors"))
	latencyHist, _ := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"))

	return &Client{
		client:      &http.Client{Timeout: opts.Timeout},
		baseURL:     baseURL,
		pipeline:    failsafe.With[*http.Response](retryPolicy, breaker),
		tracer:      telemetry.GetTracer("http-client"),
		reqCounter:  reqCounter,
		errCounter:  errCounter,
		latencyHist: latencyHist,
	}
}

// Get sends a GET request. Repeated query keys are preserved.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	return c.do(req)
}

// PostJSON sends payload as a JSON body. The body is replayed on retries.
func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	ctx, span := c.tracer.Start(req.Context(), "http "+req.Method)
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("host", req.URL.Host),
	)
	start := time.Now()

	resp, err := c.pipeline.WithContext(ctx).Get(func() (*http.Response, error) {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attempt.Body = body
		}
		return c.client.Do(attempt)
	})

	c.reqCounter.Add(ctx, 1, attrs)
	c.latencyHist.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		c.errCounter.Add(ctx, 1, attrs)
		span.RecordError(err)
		if resp == nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.errCounter.Add(ctx, 1, attrs)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}
