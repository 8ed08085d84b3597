package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Release must only delete the key while the caller's token is still in it,
// so an expired lock reacquired by someone else survives a late release.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locks expire on their own; the TTL bounds how long a crashed holder can
// block redeliveries of the same event.
const eventLockTTL = 5 * time.Second

// EventLock serializes concurrent redeliveries of one payment event, keyed
// by (provider, idempotency key).
type EventLock struct {
	client  *redis.Client
	release *redis.Script
}

func NewEventLock(client *redis.Client) *EventLock {
	if client == nil {
		return nil
	}
	return &EventLock{
		client:  client,
		release: redis.NewScript(lockReleaseScript),
	}
}

// Acquire takes the lock for the event. The returned token identifies this
// holder and must be passed back to Release.
func (l *EventLock) Acquire(ctx context.Context, provider, idempotencyKey string) (string, bool, error) {
	key, err := eventLockKey(provider, idempotencyKey)
	if err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, eventLockTTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *EventLock) Release(ctx context.Context, provider, idempotencyKey, token string) error {
	if token == "" {
		return nil
	}
	key, err := eventLockKey(provider, idempotencyKey)
	if err != nil {
		return err
	}
	return l.release.Run(ctx, l.client, []string{key}, token).Err()
}

func eventLockKey(provider, idempotencyKey string) (string, error) {
	provider = strings.TrimSpace(provider)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if provider == "" || idempotencyKey == "" {
		return "", errors.New("event lock needs provider and idempotency key")
	}
	return fmt.Sprintf("webhook:reconcile:%s:%s", provider, idempotencyKey), nil
}
