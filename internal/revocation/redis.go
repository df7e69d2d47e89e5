package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// raiseCutoff sets KEYS[1] to ARGV[1] (unix ms) only when it is greater than the stored
// value, refreshing the key TTL (ARGV[2], ms). Returns the cutoff in effect.
var raiseCutoff = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local target = tonumber(ARGV[1])
if cur < target then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return target
end
return cur
`)

// RedisTracker is a Tracker shared by every instance that points at the same Redis.
// Cutoffs are stored with millisecond precision under "revocation:cutoff:<accountID>"
// and expire once no token issued before them can still be valid.
type RedisTracker struct {
	client    redis.UniversalClient
	grace     time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewRedisTracker returns a Redis-backed tracker. retention has the same meaning as for NewMemoryTracker.
func NewRedisTracker(client redis.UniversalClient, grace, retention time.Duration) *RedisTracker {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &RedisTracker{client: client, grace: grace, retention: retention, now: time.Now}
}

func cutoffKey(accountID string) string {
	return "revocation:cutoff:" + accountID
}

// Blacklist implements Tracker.
func (t *RedisTracker) Blacklist(ctx context.Context, accountID string) (time.Time, error) {
	target := t.now().Add(t.grace).UnixMilli()
	ttl := (t.grace + t.retention).Milliseconds()
	ms, err := raiseCutoff.Run(ctx, t.client, []string{cutoffKey(accountID)}, target, ttl).Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("revocation: blacklist %s: %w", accountID, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// IsBlacklisted implements Tracker.
func (t *RedisTracker) IsBlacklisted(ctx context.Context, accountID string, issuedAt time.Time) (bool, error) {
	ms, err := t.client.Get(ctx, cutoffKey(accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("revocation: lookup %s: %w", accountID, err)
	}
	return time.UnixMilli(ms).After(issuedAt), nil
}

// Ping checks the Redis connection.
func (t *RedisTracker) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}
