// Package uptime samples external reachability on a fixed cadence and keeps
// rolling counters for the status panel. Counters are in-memory only; a
// restart resets them and MonitoringSince tells the reader so.
package uptime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"hlbridge/pkg/brtime"
)

const (
	defaultTarget   = "http://1.1.1.1"
	defaultInterval = 5 * time.Second
	defaultTimeout  = 2 * time.Second
)

// Snapshot is a value copy of the rolling counters. Percentage is
// successful/total in [0,100]; an unsampled prober reports 100.
type Snapshot struct {
	Percentage      float64 `json:"percentage"`
	TotalPings      int64   `json:"total_pings"`
	SuccessfulPings int64   `json:"successful_pings"`
	FailedPings     int64   `json:"failed_pings"`
	MonitoringSince string  `json:"monitoring_since"`
}

// Prober probes a stable endpoint every interval and counts outcomes.
// Probe failures are counted, logged at debug, and never propagate; this is
// a best-effort observability surface.
type Prober struct {
	target   string
	interval time.Duration
	http     *resty.Client
	logger   *slog.Logger

	mu         sync.Mutex
	total      int64
	successful int64
	failed     int64
	since      time.Time
}

// New builds a prober. Zero values select the defaults: HEAD http://1.1.1.1
// every 5 s with a 2 s timeout.
func New(target string, interval, timeout time.Duration, logger *slog.Logger) *Prober {
	if target == "" {
		target = defaultTarget
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{
		target:   target,
		interval: interval,
		http:     resty.New().SetTimeout(timeout),
		logger:   logger.With("component", "uptime"),
		since:    brtime.Now(),
	}
}

// Run ticks until ctx is cancelled. Call in a goroutine.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("uptime prober started", "target", p.target, "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample(ctx)
		}
	}
}

func (p *Prober) sample(ctx context.Context) {
	_, err := p.http.R().SetContext(ctx).Head(p.target)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.total++
	if err != nil {
		p.failed++
		p.logger.Debug("uptime probe failed", "error", err)
		return
	}
	p.successful++
}

// Snapshot returns a value copy of the counters.
func (p *Prober) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	pct := 100.0
	if p.total > 0 {
		pct = float64(p.successful) / float64(p.total) * 100.0
	}
	return Snapshot{
		Percentage:      pct,
		TotalPings:      p.total,
		SuccessfulPings: p.successful,
		FailedPings:     p.failed,
		MonitoringSince: brtime.Format(p.since),
	}
}

// Reset zeroes the counters and advances the monitoring window to now.
func (p *Prober) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = 0
	p.successful = 0
	p.failed = 0
	p.since = brtime.Now()
}
