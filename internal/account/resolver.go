// Package account resolves the configured signing key to the trading account
// it acts for. Agent keys sign on behalf of a master account; all reads and
// position-affecting calls must be attributed to the master, not the agent.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hlbridge/internal/venue"
	"hlbridge/pkg/types"
)

// Resolver answers "which account does this key trade for" and caches the
// answer for the process lifetime. A key whose role comes back unknown is a
// misconfiguration, not a transient condition.
type Resolver struct {
	port   venue.Port
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string // key address -> master address
}

func NewResolver(port venue.Port, logger *slog.Logger) *Resolver {
	return &Resolver{
		port:   port,
		logger: logger.With("component", "account"),
		cache:  make(map[string]string),
	}
}

// Resolve maps keyAddr to the trading account address. Master keys resolve
// to themselves; agent keys resolve to their master. The first successful
// resolution per key is cached until the process exits.
func (r *Resolver) Resolve(ctx context.Context, keyAddr string) (string, error) {
	r.mu.Lock()
	if master, ok := r.cache[keyAddr]; ok {
		r.mu.Unlock()
		return master, nil
	}
	r.mu.Unlock()

	role, err := r.port.UserRole(ctx, keyAddr)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", keyAddr, err)
	}

	var master string
	switch role.Kind {
	case types.RoleMaster:
		master = keyAddr
	case types.RoleAgent:
		if role.Master == "" {
			return "", fmt.Errorf("%w: agent key %s reports no master account", types.ErrConfiguration, keyAddr)
		}
		master = role.Master
		r.logger.Info("agent key resolved", "agent", keyAddr, "master", master)
	default:
		return "", fmt.Errorf("%w: venue does not recognize key address %s", types.ErrConfiguration, keyAddr)
	}

	r.mu.Lock()
	r.cache[keyAddr] = master
	r.mu.Unlock()
	return master, nil
}

// Forget drops the cached resolution for keyAddr. Used when the key rotates,
// e.g. on an environment switch.
func (r *Resolver) Forget(keyAddr string) {
	r.mu.Lock()
	delete(r.cache, keyAddr)
	r.mu.Unlock()
}
