// Package revocation tracks per-account revocation cutoffs. An access token (or a
// session grant) for an account is rejected when its issue time is before the
// account's cutoff.
package revocation

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultGrace is the offset added to "now" when an account is blacklisted.
const DefaultGrace = 6 * time.Hour

// Tracker records and answers revocation cutoffs. Implementations must treat each
// account as an independent unit: a write for one account never blocks reads for another.
type Tracker interface {
	// Blacklist raises the account's cutoff to now+grace and returns the resulting cutoff.
	// The cutoff never moves backwards.
	Blacklist(ctx context.Context, accountID string) (time.Time, error)
	// IsBlacklisted reports whether a cutoff exists for the account and is after issuedAt.
	IsBlacklisted(ctx context.Context, accountID string, issuedAt time.Time) (bool, error)
}

// pruned marks an entry removed by Prune; writers that observe it retry on a fresh entry.
const pruned = math.MinInt64

// MemoryTracker is an in-process Tracker. Cutoffs are stored as unix nanoseconds in
// per-account atomics inside a sync.Map, so there is no lock shared between accounts.
type MemoryTracker struct {
	grace     time.Duration
	retention time.Duration
	now       func() time.Time
	entries   sync.Map // accountID -> *atomic.Int64
}

// Option configures a MemoryTracker.
type Option func(*MemoryTracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *MemoryTracker) { t.now = now }
}

// NewMemoryTracker returns a tracker with the given grace period. retention is how long an
// entry is kept after its cutoff passes; it should be at least the access token lifetime.
func NewMemoryTracker(grace, retention time.Duration, opts ...Option) *MemoryTracker {
	if grace <= 0 {
		grace = DefaultGrace
	}
	t := &MemoryTracker{grace: grace, retention: retention, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Blacklist implements Tracker.
func (t *MemoryTracker) Blacklist(_ context.Context, accountID string) (time.Time, error) {
	target := t.now().Add(t.grace).UnixNano()
	for {
		v, _ := t.entries.LoadOrStore(accountID, new(atomic.Int64))
		cell := v.(*atomic.Int64)
		for {
			cur := cell.Load()
			if cur == pruned {
				t.entries.CompareAndDelete(accountID, cell)
				break
			}
			if cur >= target {
				return time.Unix(0, cur).UTC(), nil
			}
			if cell.CompareAndSwap(cur, target) {
				return time.Unix(0, target).UTC(), nil
			}
		}
	}
}

// IsBlacklisted implements Tracker.
func (t *MemoryTracker) IsBlacklisted(_ context.Context, accountID string, issuedAt time.Time) (bool, error) {
	cutoff, ok := t.Cutoff(accountID)
	if !ok {
		return false, nil
	}
	return cutoff.After(issuedAt), nil
}

// Cutoff returns the account's current cutoff, if any.
func (t *MemoryTracker) Cutoff(accountID string) (time.Time, bool) {
	v, ok := t.entries.Load(accountID)
	if !ok {
		return time.Time{}, false
	}
	cur := v.(*atomic.Int64).Load()
	if cur == pruned || cur == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, cur).UTC(), true
}

// Len returns the number of tracked accounts.
func (t *MemoryTracker) Len() int {
	n := 0
	t.entries.Range(func(_, v any) bool {
		if v.(*atomic.Int64).Load() != pruned {
			n++
		}
		return true
	})
	return n
}

// Prune removes entries whose cutoff is older than now-retention and returns how many were removed.
// No token that could still pass signature and expiry checks was issued before such a cutoff.
func (t *MemoryTracker) Prune(now time.Time) int {
	limit := now.Add(-t.retention).UnixNano()
	removed := 0
	t.entries.Range(func(k, v any) bool {
		cell := v.(*atomic.Int64)
		cur := cell.Load()
		if cur != pruned && cur < limit && cell.CompareAndSwap(cur, pruned) {
			t.entries.CompareAndDelete(k, cell)
			removed++
		}
		return true
	})
	return removed
}

// Run prunes expired entries every interval until ctx is done.
func (t *MemoryTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Prune(t.now())
		}
	}
}
