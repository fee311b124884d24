package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter sized in requests
// per second. Each client gets one limiter so provider throttling is
// enforced regardless of how many chapters are in flight.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerSecond float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	RequestsPerSec  float64       `json:"requests_per_second"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1.0
	}
	return &RateLimiter{
		requestsPerSecond: requestsPerSecond,
		tokens:            requestsPerSecond,
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		tokensNeeded := 1.0 - r.tokens
		waitTime := time.Duration(tokensNeeded / r.requestsPerSecond * float64(time.Second))
		r.mu.Unlock()

		// Wait outside lock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		RequestsPerSec:  r.requestsPerSecond,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
	}
}

// Throttle wraps a client so every Chat takes a token from a limiter
// sized from the client's own rate limit. Chapter-level concurrency
// fans out past what providers allow per second; throttling sits at
// the client boundary so every caller shares one bucket.
func Throttle(client LLMClient) LLMClient {
	return &throttledClient{
		inner:   client,
		limiter: NewRateLimiter(client.RequestsPerSecond()),
	}
}

type throttledClient struct {
	inner   LLMClient
	limiter *RateLimiter
}

func (c *throttledClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Chat(ctx, req)
}

func (c *throttledClient) Name() string { return c.inner.Name() }

func (c *throttledClient) RequestsPerSecond() float64 { return c.inner.RequestsPerSecond() }

var _ LLMClient = (*throttledClient)(nil)

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.requestsPerSecond
	if r.tokens > r.requestsPerSecond {
		r.tokens = r.requestsPerSecond
	}
}
