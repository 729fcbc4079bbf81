// Package balance maintains a single-slot TTL cache of the account's
// USDC-equivalent equity across perp and spot. Concurrent misses collapse to
// one upstream fetch; when the refresh fails a previous snapshot is served
// marked stale rather than erroring the caller out.
package balance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"hlbridge/internal/venue"
)

const defaultTTL = 30 * time.Second

// Snapshot is a value copy of the cached equity. Stale marks a snapshot
// served past its TTL because the refresh behind it failed.
type Snapshot struct {
	PerpEquity decimal.Decimal
	SpotUSDC   decimal.Decimal
	Total      decimal.Decimal
	FetchedAt  time.Time
	Stale      bool
}

// Cache is the single-slot TTL cache. Account is a provider func so an
// environment switch re-points the cache without rebuilding it.
type Cache struct {
	port    venue.Port
	account func() string
	ttl     time.Duration
	logger  *slog.Logger

	sf singleflight.Group

	mu        sync.Mutex
	snap      Snapshot
	populated bool
}

// New builds a cache over port for the account named by account(). A zero
// ttl means the 30 second default.
func New(port venue.Port, account func() string, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		port:    port,
		account: account,
		ttl:     ttl,
		logger:  logger.With("component", "balance"),
	}
}

// Get returns the cached snapshot, refreshing it when past TTL. Readers
// always receive a value copy.
func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.populated && time.Since(c.snap.FetchedAt) < c.ttl {
		snap := c.snap
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		// Serve the stale slot if one exists; a momentary venue hiccup
		// should not blank the status panel.
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.populated {
			c.logger.Warn("balance refresh failed, serving stale snapshot", "error", err)
			snap := c.snap
			snap.Stale = true
			return snap, nil
		}
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (c *Cache) refresh(ctx context.Context) (Snapshot, error) {
	addr := c.account()

	perp, err := c.port.ClearinghouseState(ctx, addr)
	if err != nil {
		return Snapshot{}, err
	}
	spot, err := c.port.SpotState(ctx, addr)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		PerpEquity: perp.AccountValue,
		SpotUSDC:   spot.USDC(),
		FetchedAt:  time.Now(),
	}
	snap.Total = snap.PerpEquity.Add(snap.SpotUSDC)

	c.mu.Lock()
	c.snap = snap
	c.populated = true
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached slot, forcing the next Get to refresh. Called
// on environment switches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.populated = false
	c.mu.Unlock()
}
