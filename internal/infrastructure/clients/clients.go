package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
	"github.com/logistics-platform/booking-dashboard/pkg/resilience"
)

var tracer = otel.Tracer("booking-dashboard/clients")

const (
	// DefaultRequestTimeout bounds a single logical request, retries included
	DefaultRequestTimeout = 10 * time.Second

	maxResponseBytes = 4 << 20
)

// DownstreamMetrics interface for recording downstream service metrics
type DownstreamMetrics interface {
	RecordRequest(service, operation, status string, duration time.Duration)
}

// ServiceClient performs authenticated GET requests against the booking API
type ServiceClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    DownstreamMetrics
	service    string
	timeout    time.Duration
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	now        func() time.Time
}

// Option configures a ServiceClient
type Option func(*ServiceClient)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *ServiceClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ServiceClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCircuitBreaker routes every attempt through cb
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *ServiceClient) { c.breaker = cb }
}

// WithRetry retries network failures up to maxAttempts attempts in total.
// Values below 2 disable retries.
func WithRetry(maxAttempts int) Option {
	return func(c *ServiceClient) {
		if maxAttempts < 2 {
			c.retry = nil
			return
		}
		cfg := resilience.DefaultRetryConfig()
		cfg.MaxAttempts = maxAttempts
		cfg.RetryableErrors = isRetryable
		c.retry = cfg
	}
}

// WithClock overrides the clock used for credential expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *ServiceClient) { c.now = now }
}

// NewServiceClient creates a new service client
func NewServiceClient(baseURL string, logger *logging.Logger, metrics DownstreamMetrics, service string, opts ...Option) *ServiceClient {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &ServiceClient{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		logger:     logger,
		metrics:    metrics,
		service:    service,
		timeout:    DefaultRequestTimeout,
		now:        time.Now,
	}
	WithRetry(resilience.DefaultRetryMaxAttempts)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCircuitBreakerFor builds a breaker that only counts network failures and
// 5xx responses. 4xx answers and success=false envelopes leave it closed.
func NewCircuitBreakerFor(name string, logger *logging.Logger, onStateChange func(name string, from, to int)) *resilience.CircuitBreaker {
	cfg := resilience.DefaultCircuitBreakerConfig(name)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || !IsServerFailure(err)
	}
	if onStateChange != nil {
		cfg.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, int(from), int(to))
		}
	}
	return resilience.NewCircuitBreaker(cfg, logger.Logger)
}

func isRetryable(err error) bool {
	return IsNetworkError(err) &&
		!errors.Is(err, resilience.ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled)
}

type response struct {
	status int
	body   []byte
}

// getJSON issues a GET and decodes the JSON body into an untyped value. The
// credential is checked before any I/O.
func (c *ServiceClient) getJSON(ctx context.Context, cred credentials.Credential, path string, query url.Values) (any, error) {
	operation := http.MethodGet + " " + path
	if err := cred.Validate(c.now()); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, span := tracer.Start(ctx, c.service+".GET",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.url", target),
			attribute.String("service", c.service),
		),
	)
	defer span.End()

	resp, err := c.execute(ctx, operation, target, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordError(ctx, operation, statusOf(err), start, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.status))

	var payload any
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		apiErr := &APIError{Op: operation, Status: resp.status, Cause: fmt.Errorf("failed to decode response: %w", err)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		c.recordError(ctx, operation, resp.status, start, apiErr)
		return nil, apiErr
	}

	c.recordSuccess(ctx, operation, resp.status, start)
	return payload, nil
}

func (c *ServiceClient) execute(ctx context.Context, operation, target string, cred credentials.Credential) (*response, error) {
	call := func() (*response, error) {
		if c.breaker == nil {
			return c.attempt(ctx, operation, target, cred)
		}
		result, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return c.attempt(ctx, operation, target, cred)
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, &NetworkError{Op: operation, Err: err}
		}
		if err != nil {
			return nil, err
		}
		return result.(*response), nil
	}

	var (
		resp *response
		err  error
	)
	if c.retry == nil {
		resp, err = call()
	} else {
		resp, err = resilience.RetryWithResult(ctx, c.retry, call)
	}

	// RetryWithResult reports a done context as the bare ctx error
	if err != nil && !IsNetworkError(err) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = &NetworkError{Op: operation, Err: err}
	}
	return resp, err
}

func (c *ServiceClient) attempt(ctx context.Context, operation, target string, cred credentials.Credential) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{Op: operation, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", cred.AuthorizationHeader())

	// Inject trace context into outgoing request headers
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Op: operation, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: operation, Status: resp.StatusCode, Message: serverMessage(body)}
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func serverMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&envelope); err != nil {
		return ""
	}
	return envelope.Message
}

func statusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func (c *ServiceClient) recordSuccess(ctx context.Context, operation string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordRequest(c.service, operation, "success", time.Since(start))
	}
	c.logger.DownstreamCall(ctx, operation, status, time.Since(start), nil)
}

func (c *ServiceClient) recordError(ctx context.Context, operation string, status int, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.RecordRequest(c.service, operation, "error", time.Since(start))
	}
	c.logger.DownstreamCall(ctx, operation, status, time.Since(start), err)
}
