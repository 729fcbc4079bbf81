// Package symlock serializes order flow per symbol. A reversal is a
// multi-step sequence (close, re-open, attach triggers); two sequences
// interleaving on one symbol can double exposure or orphan triggers, so
// every execution holds the symbol's lock end to end. Unrelated symbols
// proceed in parallel.
package symlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hlbridge/pkg/types"
)

// DefaultTimeout bounds how long an acquisition may queue before the signal
// is turned away as busy.
const DefaultTimeout = 30 * time.Second

// Manager is the lock table: one 1-buffered channel per symbol, created on
// first use and kept for the process lifetime.
type Manager struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	timeout time.Duration
}

// New builds a manager. A zero timeout means DefaultTimeout.
func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		locks:   make(map[string]chan struct{}),
		timeout: timeout,
	}
}

func (m *Manager) lock(symbol string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[symbol]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[symbol] = ch
	}
	return ch
}

// Acquire takes the symbol's lock, waiting up to the configured ceiling.
// The returned release func is safe to call exactly once on every exit
// path; acquisition failure returns a nil release and ErrSymbolBusy (on
// timeout) or the context error.
func (m *Manager) Acquire(ctx context.Context, symbol string) (release func(), err error) {
	ch := m.lock(symbol)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-ch })
		}, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s locked for over %s", types.ErrSymbolBusy, symbol, m.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
