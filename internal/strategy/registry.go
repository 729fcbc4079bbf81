// Package strategy keeps the named rule-sets that classify inbound signals:
// per-strategy limits, an enabled switch, and monotonic forward counters.
// Unknown ids are auto-registered on first sighting with the OTHERS
// defaults; once observed, an id is never deleted.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"hlbridge/pkg/types"
)

// Rules are the per-strategy limits. MaxPositionSize clamps signal
// quantities rather than rejecting them.
type Rules struct {
	MaxPositionSize float64 `bson:"max_position_size" json:"max_position_size"`
	MaxDailyTrades  int     `bson:"max_daily_trades" json:"max_daily_trades"`
	MaxDrawdown     float64 `bson:"max_drawdown" json:"max_drawdown"`
}

// Stats are monotonic counters, mutated only by the execution path.
type Stats struct {
	TotalWebhooks      int64 `bson:"total_webhooks" json:"total_webhooks"`
	SuccessfulForwards int64 `bson:"successful_forwards" json:"successful_forwards"`
	FailedForwards     int64 `bson:"failed_forwards" json:"failed_forwards"`
}

// Strategy is one named rule-set.
type Strategy struct {
	ID      string `bson:"id" json:"id"`
	Enabled bool   `bson:"enabled" json:"enabled"`
	Rules   Rules  `bson:"rules" json:"rules"`
	Stats   Stats  `bson:"stats" json:"stats"`
}

// Outcome selects which counter Increment bumps.
type Outcome string

const (
	OutcomeReceived Outcome = "received"
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
)

// Persister saves and restores the registry. Save failures are logged and
// swallowed; the in-memory projection stays authoritative for the process.
type Persister interface {
	Save(ctx context.Context, s Strategy) error
	LoadAll(ctx context.Context) ([]Strategy, error)
}

// seeds are the two strategies guaranteed to exist at all times.
func seeds() []Strategy {
	return []Strategy{
		{
			ID:      "IMBA_HYPER",
			Enabled: true,
			Rules:   Rules{MaxPositionSize: 100.0, MaxDailyTrades: 50, MaxDrawdown: 0.05},
		},
		{
			ID:      types.DefaultStrategyID,
			Enabled: true,
			Rules:   othersDefaults(),
		},
	}
}

func othersDefaults() Rules {
	return Rules{MaxPositionSize: 50.0, MaxDailyTrades: 25, MaxDrawdown: 0.03}
}

// Registry is the process-wide strategy table. All reads return value
// copies; mutation persists best-effort through the Persister.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	persist    Persister
	logger     *slog.Logger
}

// NewRegistry loads persisted strategies and seeds the two built-ins when
// missing.
func NewRegistry(ctx context.Context, persist Persister, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		strategies: make(map[string]*Strategy),
		persist:    persist,
		logger:     logger.With("component", "strategy"),
	}

	if persist != nil {
		loaded, err := persist.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load strategies: %w", err)
		}
		for _, s := range loaded {
			s := s
			r.strategies[s.ID] = &s
		}
	}

	for _, seed := range seeds() {
		if _, ok := r.strategies[seed.ID]; !ok {
			seed := seed
			r.strategies[seed.ID] = &seed
			r.save(ctx, seed)
			r.logger.Info("strategy seeded", "id", seed.ID)
		}
	}
	return r, nil
}

// Get returns a value copy of the strategy, if known.
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	if !ok {
		return Strategy{}, false
	}
	return *s, true
}

// List returns value copies of every strategy, ordered by id.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListIDs returns every known id, sorted.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Toggle flips the enabled switch and returns the updated copy.
func (r *Registry) Toggle(ctx context.Context, id string) (Strategy, error) {
	r.mu.Lock()
	s, ok := r.strategies[id]
	if !ok {
		r.mu.Unlock()
		return Strategy{}, fmt.Errorf("unknown strategy %q", id)
	}
	s.Enabled = !s.Enabled
	out := *s
	r.mu.Unlock()

	r.save(ctx, out)
	r.logger.Info("strategy toggled", "id", id, "enabled", out.Enabled)
	return out, nil
}

// Ensure returns the strategy for id, registering it with OTHERS defaults
// when unseen. Idempotent: repeated calls for the same id register once.
func (r *Registry) Ensure(ctx context.Context, id string) Strategy {
	r.mu.Lock()
	if s, ok := r.strategies[id]; ok {
		out := *s
		r.mu.Unlock()
		return out
	}
	s := &Strategy{ID: id, Enabled: true, Rules: othersDefaults()}
	r.strategies[id] = s
	out := *s
	r.mu.Unlock()

	r.save(ctx, out)
	r.logger.Info("strategy auto-registered", "id", id)
	return out
}

// Increment bumps the counter selected by outcome. Unknown ids are ignored.
func (r *Registry) Increment(ctx context.Context, id string, outcome Outcome) {
	r.mu.Lock()
	s, ok := r.strategies[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	switch outcome {
	case OutcomeReceived:
		s.Stats.TotalWebhooks++
	case OutcomeSuccess:
		s.Stats.SuccessfulForwards++
	case OutcomeFailure:
		s.Stats.FailedForwards++
	}
	out := *s
	r.mu.Unlock()

	r.save(ctx, out)
}

// Clamp caps a signal quantity at the strategy's max position size. The
// oversized remainder is dropped, not rejected.
func (r *Registry) Clamp(id string, quantity decimal.Decimal) decimal.Decimal {
	s, ok := r.Get(id)
	if !ok || s.Rules.MaxPositionSize <= 0 {
		return quantity
	}
	max := decimal.NewFromFloat(s.Rules.MaxPositionSize)
	if quantity.GreaterThan(max) {
		r.logger.Warn("quantity clamped to strategy limit", "strategy", id, "quantity", quantity, "max", max)
		return max
	}
	return quantity
}

// Totals sums the forward counters across every strategy.
func (r *Registry) Totals() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total Stats
	for _, s := range r.strategies {
		total.TotalWebhooks += s.Stats.TotalWebhooks
		total.SuccessfulForwards += s.Stats.SuccessfulForwards
		total.FailedForwards += s.Stats.FailedForwards
	}
	return total
}

func (r *Registry) save(ctx context.Context, s Strategy) {
	if r.persist == nil {
		return
	}
	if err := r.persist.Save(ctx, s); err != nil {
		r.logger.Error("strategy persist failed", "id", s.ID, "error", err)
	}
}
