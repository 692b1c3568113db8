package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, cfg), mr
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	defer mr.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "+15550100", ""); err != nil {
			t.Fatalf("attempt %d: unexpected check error %v", i, err)
		}
		if err := l.Fail(ctx, "+15550100", ""); err != nil {
			t.Fatalf("attempt %d: unexpected fail error %v", i, err)
		}
	}
	if err := l.Check(ctx, "+15550100", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "+15550199", ""); err != nil {
		t.Fatalf("other phone must not be limited, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	defer mr.Close()
	ctx := context.Background()

	_ = l.Fail(ctx, "+15550100", "")
	if err := l.Check(ctx, "+15550100", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "+15550100", ""); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterResetClearsPhoneOnly(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute, EnableIPThrottle: true})
	defer mr.Close()
	ctx := context.Background()

	_ = l.Fail(ctx, "+15550100", "10.0.0.1")
	_ = l.Fail(ctx, "+15550100", "10.0.0.1")
	if err := l.Reset(ctx, "+15550100"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, "+15550100"); n != 0 {
		t.Fatalf("expected phone counter cleared, got %d", n)
	}
	if err := l.Check(ctx, "+15550199", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to persist, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	mr.Close()

	if err := l.Check(context.Background(), "+15550100", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
