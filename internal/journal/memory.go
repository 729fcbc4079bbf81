package journal

import (
	"context"
	"sync"
)

// Memory is the in-process Store used by tests. It mirrors the Mongo
// store's contract exactly: seq assignment under the store lock, newest
// first queries, nil-vs-empty filter semantics.
type Memory struct {
	mu        sync.Mutex
	seq       int64
	logs      []Log
	webhooks  []WebhookReceived
	responses []VenueResponse
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	e.meta().Seq = m.seq

	switch v := e.(type) {
	case *Log:
		m.logs = append(m.logs, *v)
	case *WebhookReceived:
		m.webhooks = append(m.webhooks, *v)
	case *VenueResponse:
		m.responses = append(m.responses, *v)
	}
	return nil
}

func (m *Memory) RecentLogs(ctx context.Context, limit int, level string) ([]Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Log, 0, limit)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if level != "" && m.logs[i].Level != level {
			continue
		}
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *Memory) RecentWebhooks(ctx context.Context, limit int, strategyIDs []string) ([]WebhookReceived, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allow := filterSet(strategyIDs)
	out := make([]WebhookReceived, 0, limit)
	for i := len(m.webhooks) - 1; i >= 0 && len(out) < limit; i-- {
		if allow != nil && !allow[m.webhooks[i].StrategyID] {
			continue
		}
		out = append(out, m.webhooks[i])
	}
	return out, nil
}

func (m *Memory) RecentResponses(ctx context.Context, limit int, strategyIDs []string) ([]VenueResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allow := filterSet(strategyIDs)
	out := make([]VenueResponse, 0, limit)
	for i := len(m.responses) - 1; i >= 0 && len(out) < limit; i-- {
		if allow != nil && !allow[m.responses[i].StrategyID] {
			continue
		}
		out = append(out, m.responses[i])
	}
	return out, nil
}

func (m *Memory) ClearLogs(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.logs))
	m.logs = nil
	return n, nil
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}

// filterSet turns a strategy filter into a lookup set. A nil filter stays
// nil (unfiltered); a non-nil empty filter becomes an empty set that
// matches nothing.
func filterSet(ids []string) map[string]bool {
	if ids == nil {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
