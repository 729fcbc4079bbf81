package uptime

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newProber(target string, interval time.Duration) *Prober {
	return New(target, interval, time.Second, slog.New(slog.DiscardHandler))
}

func TestSnapshotBeforeAnySample(t *testing.T) {
	t.Parallel()
	p := newProber("http://127.0.0.1:1", time.Second)

	snap := p.Snapshot()
	if snap.Percentage != 100.0 {
		t.Errorf("unsampled percentage = %v, want 100", snap.Percentage)
	}
	if snap.TotalPings != 0 {
		t.Errorf("TotalPings = %d, want 0", snap.TotalPings)
	}
	if !strings.HasSuffix(snap.MonitoringSince, "-03:00") {
		t.Errorf("MonitoringSince %q lacks -03:00 offset", snap.MonitoringSince)
	}
}

func TestCountersSumAndPercentage(t *testing.T) {
	t.Parallel()
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			// The probe only checks transport reachability, so simulate
			// outage by hijacking and dropping the connection.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("hijack unsupported")
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newProber(srv.URL, time.Second)
	ctx := context.Background()

	p.sample(ctx)
	p.sample(ctx)
	fail.Store(true)
	p.sample(ctx)

	snap := p.Snapshot()
	if snap.TotalPings != snap.SuccessfulPings+snap.FailedPings {
		t.Errorf("total %d != successful %d + failed %d", snap.TotalPings, snap.SuccessfulPings, snap.FailedPings)
	}
	if snap.TotalPings != 3 || snap.SuccessfulPings != 2 || snap.FailedPings != 1 {
		t.Errorf("counters = %+v", snap)
	}
	want := 2.0 / 3.0 * 100.0
	if snap.Percentage < want-0.01 || snap.Percentage > want+0.01 {
		t.Errorf("percentage = %v, want ~%v", snap.Percentage, want)
	}
}

func TestUnreachableTargetCountsFailure(t *testing.T) {
	t.Parallel()
	p := newProber("http://127.0.0.1:1", time.Second)

	p.sample(context.Background())

	snap := p.Snapshot()
	if snap.FailedPings != 1 || snap.TotalPings != 1 {
		t.Errorf("counters = %+v, want one failed sample", snap)
	}
	if snap.Percentage != 0.0 {
		t.Errorf("percentage = %v, want 0", snap.Percentage)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	p := newProber("http://127.0.0.1:1", time.Second)

	p.sample(context.Background())
	before := p.Snapshot()

	p.Reset()
	after := p.Snapshot()

	if after.TotalPings != 0 || after.SuccessfulPings != 0 || after.FailedPings != 0 {
		t.Errorf("counters not zeroed: %+v", after)
	}
	if after.Percentage != 100.0 {
		t.Errorf("percentage after reset = %v, want 100", after.Percentage)
	}
	if after.MonitoringSince < before.MonitoringSince {
		t.Error("monitoring window must advance on reset")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p := newProber(srv.URL, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	if snap := p.Snapshot(); snap.TotalPings == 0 {
		t.Error("ticker never sampled")
	}
}
