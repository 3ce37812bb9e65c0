package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter implements token bucket rate limiting
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	idleAfter  time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucketLimiter allows bursts of maxTokens and adds one token every
// refillRate. Call Stop to end the background cleanup.
func NewTokenBucketLimiter(maxTokens int, refillRate time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		idleAfter:  time.Hour,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go l.cleanup(5 * time.Minute)
	return l
}

// Allow checks if a request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[key] = b
	}

	if add := int(now.Sub(b.lastRefill) / l.refillRate); add > 0 {
		b.tokens = min(b.tokens+add, l.maxTokens)
		b.lastRefill = b.lastRefill.Add(time.Duration(add) * l.refillRate)
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *TokenBucketLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.buckets {
				if now.Sub(b.lastRefill) > l.idleAfter {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// UserRateLimiter limits write operations per signed-in user.
type UserRateLimiter struct {
	limiter RateLimiter
}

// NewUserRateLimiter allows requestsPerMinute writes with a burst of the
// same size.
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &UserRateLimiter{
		limiter: NewTokenBucketLimiter(requestsPerMinute, time.Minute/time.Duration(requestsPerMinute)),
	}
}

func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.limiter.Allow(ctx, fmt.Sprintf("user:%s", userID))
}

// Stop releases the limiter's background goroutine.
func (l *UserRateLimiter) Stop() {
	if s, ok := l.limiter.(interface{ Stop() }); ok {
		s.Stop()
	}
}
