package gateway

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 控制请求速率，避免触发交易所限流；所有扫描 worker 共享同一个实例。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// TokenBucketLimiter 是一个简单的令牌桶实现。
type TokenBucketLimiter struct {
	rate   float64
	burst  int
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait 取走一个令牌；令牌不足时预支并睡眠到令牌补足，ctx 取消则提前返回。
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.tokens -= 1
	if l.tokens >= 0 {
		l.mu.Unlock()
		return nil
	}
	// 欠账由后续调用者按顺序偿还，保证并发 worker 合计不超过 rate
	sleep := time.Duration(-l.tokens / l.rate * float64(time.Second))
	l.mu.Unlock()

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		l.mu.Lock()
		l.tokens += 1
		l.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// noopLimiter 不限速。
type noopLimiter struct{}

func (noopLimiter) Wait(ctx context.Context) error { return ctx.Err() }
