package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/webloom/entitled/internal/config"
)

const keyWebhookProvider = "webhook:provider:%s"

// WebhookLimiter shapes incoming provider webhook traffic. A nil limiter is
// returned when rate limiting is disabled; all checks then pass.
type WebhookLimiter struct {
	enabled bool

	bucket *TokenBucket
	lock   *EventLock

	rate  float64
	burst int
}

func NewWebhookLimiter(cfg config.Config) (*WebhookLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		lock:    NewEventLock(client),
		rate:    limitCfg.WebhookRate,
		burst:   limitCfg.WebhookBurst,
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowProvider takes one token from the provider's bucket.
func (l *WebhookLimiter) AllowProvider(ctx context.Context, provider string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookProvider, strings.TrimSpace(provider)), l.rate, l.burst)
}

// TryLockEvent serializes concurrent redeliveries of the same event so at
// most one reconciliation runs at a time. The store's unique constraint
// still catches whatever slips through.
func (l *WebhookLimiter) TryLockEvent(ctx context.Context, provider, idempotencyKey string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.lock.Acquire(ctx, provider, idempotencyKey)
}

func (l *WebhookLimiter) ReleaseEvent(ctx context.Context, provider, idempotencyKey, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.lock.Release(ctx, provider, idempotencyKey, token)
}
