package ecommerce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
)

// maxResponseSize is the maximum allowed response size from a remote API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Request is a replayable outbound HTTP request
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Attempts is the number of requests sent to obtain this response
	Attempts int
}

// IsSuccess returns true for 2xx responses
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRateLimited returns true for 429 responses
func (r *Response) IsRateLimited() bool {
	return r.StatusCode == http.StatusTooManyRequests
}

// errRateLimited marks a 429 attempt inside the retry loop
var errRateLimited = errors.New("rate limited")

// RetryObserver is notified before every backoff sleep
type RetryObserver func(req *Request, attempt int, delay time.Duration)

// RateLimitedClient sends requests and retries rate-limited responses with exponential backoff.
// Any other non-2xx response is returned at once. Sleeps block only the calling goroutine.
type RateLimitedClient struct {
	httpClient *http.Client
	logger     *zap.Logger
	newTimer   func() backoff.Timer
	observer   RetryObserver
}

// RateLimitedClientOption configures a RateLimitedClient
type RateLimitedClientOption func(*RateLimitedClient)

// WithTimerFactory replaces the wall-clock timer used for backoff sleeps
func WithTimerFactory(f func() backoff.Timer) RateLimitedClientOption {
	return func(c *RateLimitedClient) {
		c.newTimer = f
	}
}

// WithRetryObserver registers a callback invoked before each backoff sleep
func WithRetryObserver(o RetryObserver) RateLimitedClientOption {
	return func(c *RateLimitedClient) {
		c.observer = o
	}
}

// NewRateLimitedClient creates a client on top of httpClient
func NewRateLimitedClient(httpClient *http.Client, logger *zap.Logger, opts ...RateLimitedClientOption) *RateLimitedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RateLimitedClient{
		httpClient: httpClient,
		logger:     logger,
		newTimer:   NewTimer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send executes req under policy. A 429 sleeps and retries; success, any other
// status, or exhaustion returns the last response. Errors are returned only for
// transport failures and context cancellation.
func (c *RateLimitedClient) Send(ctx context.Context, req *Request, policy BackoffPolicy) (*Response, error) {
	var last *Response

	op := func(attempt int) error {
		resp, err := c.do(ctx, req)
		if err != nil {
			return err
		}
		resp.Attempts = attempt
		last = resp
		if resp.IsRateLimited() {
			return Retryable(errRateLimited)
		}
		return nil
	}

	notify := func(_ error, delay time.Duration) {
		logger.Scoped(ctx, c.logger).Warn("Rate limited, backing off",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Int("attempt", last.Attempts),
			zap.Duration("delay", delay),
		)
		if c.observer != nil {
			c.observer(req, last.Attempts, delay)
		}
	}

	err := Retry(ctx, policy, c.newTimer(), op, notify)
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errRateLimited):
		logger.Scoped(ctx, c.logger).Warn("Rate limit retries exhausted",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Int("attempts", last.Attempts),
		)
		return last, nil
	default:
		return last, err
	}
}

func (c *RateLimitedClient) do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
