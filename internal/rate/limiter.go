package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
}

// Limiter counts failed OTP verifications per phone and, optionally, per IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when the phone or IP has used its budget.
func (l *Limiter) Check(ctx context.Context, phone, ip string) error {
	if err := l.checkCounter(ctx, phoneKey(phone)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, ipKey(ip))
	}
	return nil
}

// Fail records one failed verification and returns ErrRateLimited once the
// budget is exceeded.
func (l *Limiter) Fail(ctx context.Context, phone, ip string) error {
	count, err := l.incrementWithTTL(ctx, phoneKey(phone))
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, ipKey(ip))
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Reset clears the phone counter after a successful verification. The IP
// counter is left alone so one good number cannot launder guesses on others.
func (l *Limiter) Reset(ctx context.Context, phone string) error {
	if err := l.redis.Del(ctx, phoneKey(phone)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures recorded for phone in the current window.
func (l *Limiter) Attempts(ctx context.Context, phone string) (int, error) {
	count, err := l.redis.Get(ctx, phoneKey(phone)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func phoneKey(phone string) string { return "apv:" + phone }
func ipKey(ip string) string       { return "apvi:" + ip }
