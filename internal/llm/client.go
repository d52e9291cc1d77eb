package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ppiankov/flagspan/internal/cache"
	"github.com/ppiankov/flagspan/internal/logger"
	"github.com/ppiankov/flagspan/internal/worker"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultCooldown     = 30 * time.Second
)

// Client wraps a Provider with rate limiting, retry and response caching.
// The Limiter is shared between clients that draw on the same quota.
type Client struct {
	provider     Provider
	limiter      *worker.Limiter
	cache        cache.Cache
	cacheTTL     time.Duration
	log          logger.Logger
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	cooldown     time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLimiter sets the shared rate limiter
func WithLimiter(l *worker.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithCache caches successful responses for ttl (0 = cache default)
func WithCache(store cache.Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithClientLogger sets the logger
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithRetry sets the attempt count and initial backoff delay
func WithRetry(maxAttempts int, initialDelay time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			c.initialDelay = initialDelay
		}
	}
}

// WithCooldown sets how long a provider is paused after a 429
func WithCooldown(d time.Duration) ClientOption {
	return func(c *Client) { c.cooldown = d }
}

// NewClient creates a client for provider
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:     provider,
		log:          logger.NewNop(),
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		cooldown:     defaultCooldown,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProviderName returns the wrapped provider's name
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Detect runs detection, serving repeated requests from the cache
func (c *Client) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	key := cache.CacheKey(c.provider.Name(), req.Model, req.Prompt, req.Text)

	if c.cache != nil {
		var cached DetectResponse
		if cache.GetJSON(c.cache, key, &cached) {
			c.log.Debug("Detection cache hit", logger.String("provider", c.provider.Name()))
			cached.Cached = true
			return &cached, nil
		}
	}

	resp, err := c.detectWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := cache.SetJSON(c.cache, key, resp, c.cacheTTL); err != nil {
			c.log.Warn("Failed to cache detection", logger.Error(err))
		}
	}

	return resp, nil
}

func (c *Client) detectWithRetry(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	name := c.provider.Name()
	delay := c.initialDelay

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, name); err != nil {
				return nil, fmt.Errorf("wait for rate limiter: %w", err)
			}
		}

		start := time.Now()
		resp, err := c.provider.Detect(ctx, req)
		if err == nil {
			c.log.Debug("Detection completed",
				logger.String("provider", name),
				logger.Int("attempt", attempt),
				logger.Int("flags", len(resp.Flags)),
				logger.Duration("elapsed", time.Since(start)),
			)
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrRateLimited) && c.limiter != nil {
			c.limiter.Cooldown(name, c.cooldown)
		}

		if ctx.Err() != nil || !IsRetryable(err) || attempt == c.maxAttempts {
			break
		}

		c.log.Warn("Detection failed, retrying",
			logger.String("provider", name),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("detection cancelled during retry: %w", err)
		}
		delay = min(delay*2, c.maxDelay)
	}

	return nil, fmt.Errorf("%s detection: %w", name, lastErr)
}

// IsRetryable reports whether err is a transient failure: 429, 5xx or a timeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
