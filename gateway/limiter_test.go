package gateway

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTokenBucketLimiterBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1000, 5)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("burst should not block")
	}
}

func TestTokenBucketLimiterSharedAcrossWorkers(t *testing.T) {
	l := NewTokenBucketLimiter(50, 1)
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				_ = l.Wait(context.Background())
			}
		}()
	}
	wg.Wait()
	// 12 次请求、突发 1、速率 50/s，至少约 220ms
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Fatalf("limiter not shared: 12 waits finished in %s", elapsed)
	}
}

func TestTokenBucketLimiterContextCancel(t *testing.T) {
	l := NewTokenBucketLimiter(0.5, 1)
	_ = l.Wait(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
