// Package accountstate answers "is this account allowed to act right now?" from a
// cache of account states backed by the account repository.
package accountstate

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
)

// AccountLookup loads an account by id. It returns nil, nil when the account does not exist.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}

type entry struct {
	active   bool
	loadedAt time.Time
}

// Gate caches whether accounts are Active.
//
// Invalidate bumps a per-account generation. A load started under an older generation
// never writes its result back, and callers arriving after Invalidate never join it,
// so a state change is observed by every IsActive call that starts after Invalidate returns.
type Gate struct {
	accounts AccountLookup
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	gens    map[string]uint64

	loads singleflight.Group
}

// Option configures a Gate.
type Option func(*Gate)

// WithTTL bounds how long a cached state is trusted. Zero keeps entries until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) { g.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(accounts AccountLookup, opts ...Option) *Gate {
	g := &Gate{
		accounts: accounts,
		now:      time.Now,
		entries:  make(map[string]entry),
		gens:     make(map[string]uint64),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// IsActive reports whether the account exists and is Active. A missing account is
// inactive. A lookup failure returns false with the error.
func (g *Gate) IsActive(ctx context.Context, accountID string) (bool, error) {
	g.mu.Lock()
	if e, ok := g.entries[accountID]; ok && !g.expired(e) {
		g.mu.Unlock()
		return e.active, nil
	}
	gen := g.gens[accountID]
	g.mu.Unlock()

	key := accountID + ":" + strconv.FormatUint(gen, 10)
	ch := g.loads.DoChan(key, func() (any, error) {
		return g.load(context.WithoutCancel(ctx), accountID, gen)
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

func (g *Gate) load(ctx context.Context, accountID string, gen uint64) (bool, error) {
	a, err := g.accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("load account state: %w", err)
	}
	active := a != nil && a.State == domain.StateActive

	g.mu.Lock()
	if g.gens[accountID] == gen {
		g.entries[accountID] = entry{active: active, loadedAt: g.now()}
	}
	g.mu.Unlock()
	return active, nil
}

// Invalidate drops the cached state for the account. Call it after every state change.
func (g *Gate) Invalidate(accountID string) {
	g.mu.Lock()
	delete(g.entries, accountID)
	g.gens[accountID]++
	g.mu.Unlock()
}

func (g *Gate) expired(e entry) bool {
	return g.ttl > 0 && g.now().Sub(e.loadedAt) >= g.ttl
}
