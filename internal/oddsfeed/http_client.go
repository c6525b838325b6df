package oddsfeed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPClientConfig holds configuration for HTTP clients
type HTTPClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64 // requests per second
	CircuitBreakerMax int     // consecutive failures before the circuit opens
	CircuitCooldown   time.Duration
}

// DefaultHTTPClientConfig returns recommended defaults
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           10 * time.Second,
		MaxRetries:        3,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		RateLimit:         10.0,
		CircuitBreakerMax: 5,
		CircuitCooldown:   30 * time.Second,
	}
}

// RateLimitedHTTPClient wraps retryablehttp.Client with rate limiting and a
// circuit breaker. After the cooldown one probe request is let through.
type RateLimitedHTTPClient struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	circuitBreakerMax int
	cooldown          time.Duration
	log               *logrus.Entry

	mu                sync.Mutex
	consecutiveErrors int
	openedAt          time.Time
	lastError         error
	now               func() time.Time
}

// NewRateLimitedHTTPClient creates a new rate-limited HTTP client
func NewRateLimitedHTTPClient(cfg HTTPClientConfig, log *logrus.Logger) *RateLimitedHTTPClient {
	entry := log.WithField("component", "oddsfeed_http")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()
	retryClient.Logger = leveledLogger{entry}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	breakerMax := cfg.CircuitBreakerMax
	if breakerMax <= 0 {
		breakerMax = 5
	}

	return &RateLimitedHTTPClient{
		client:            retryClient,
		limiter:           rate.NewLimiter(limit, 1),
		circuitBreakerMax: breakerMax,
		cooldown:          cfg.CircuitCooldown,
		log:               entry,
		now:               time.Now,
	}
}

// Do executes an HTTP request with rate limiting and circuit breaker
func (c *RateLimitedHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.allow(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	retryReq, err := retryablehttp.FromRequest(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(retryReq)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}
	if resp.StatusCode >= 500 {
		c.recordFailure(fmt.Errorf("server responded %d", resp.StatusCode))
	} else {
		c.recordSuccess()
	}

	return resp, nil
}

// Get executes a GET request
func (c *RateLimitedHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// CircuitOpen reports whether requests are currently short-circuited.
func (c *RateLimitedHTTPClient) CircuitOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpenLocked()
}

// Close closes any resources held by the client
func (c *RateLimitedHTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *RateLimitedHTTPClient) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpenLocked() {
		return fmt.Errorf("circuit breaker open: %w", c.lastError)
	}
	return nil
}

func (c *RateLimitedHTTPClient) isOpenLocked() bool {
	if c.openedAt.IsZero() {
		return false
	}
	return c.cooldown <= 0 || c.now().Sub(c.openedAt) < c.cooldown
}

func (c *RateLimitedHTTPClient) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors++
	c.lastError = err
	if c.consecutiveErrors >= c.circuitBreakerMax {
		if c.openedAt.IsZero() || !c.isOpenLocked() {
			c.log.WithError(err).WithField("consecutive_errors", c.consecutiveErrors).Warn("Circuit breaker opened")
		}
		c.openedAt = c.now()
	}
}

func (c *RateLimitedHTTPClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
	c.openedAt = time.Time{}
	c.lastError = nil
}

// customRetryPolicy retries network errors, 429 and 5xx gateway responses.
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, nil
		}
		return false, nil
	}
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Warn(msg) }
