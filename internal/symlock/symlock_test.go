package symlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hlbridge/pkg/types"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()
	m := New(time.Second)

	release, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	// Reacquire after release must succeed immediately.
	release2, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release2()
}

func TestTimeoutIsSymbolBusy(t *testing.T) {
	t.Parallel()
	m := New(50 * time.Millisecond)

	release, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = m.Acquire(context.Background(), "SOL")
	if !errors.Is(err, types.ErrSymbolBusy) {
		t.Fatalf("err = %v, want ErrSymbolBusy", err)
	}
}

func TestDifferentSymbolsIndependent(t *testing.T) {
	t.Parallel()
	m := New(50 * time.Millisecond)

	relSOL, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatal(err)
	}
	defer relSOL()

	relBTC, err := m.Acquire(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("BTC must not wait on SOL's lock: %v", err)
	}
	relBTC()
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()
	m := New(time.Second)

	release, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatal(err)
	}
	release()
	release() // second call must not unlock someone else's acquisition

	release2, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatal(err)
	}
	defer release2()

	// With the double-release absorbed, a third acquisition times out.
	busy := New(50 * time.Millisecond)
	r, err := busy.Acquire(context.Background(), "X")
	if err != nil {
		t.Fatal(err)
	}
	r()
	r()
	r2, err := busy.Acquire(context.Background(), "X")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := busy.Acquire(context.Background(), "X"); !errors.Is(err, types.ErrSymbolBusy) {
		t.Fatalf("err = %v, want ErrSymbolBusy", err)
	}
	r2()
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()
	m := New(time.Minute)

	release, err := m.Acquire(context.Background(), "SOL")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "SOL")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNoOverlap(t *testing.T) {
	t.Parallel()
	m := New(5 * time.Second)

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "SOL")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Errorf("critical sections overlapped: max concurrency %d", maxInCritical)
	}
}
