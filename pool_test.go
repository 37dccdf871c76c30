package propulse

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeLauncher counts launches and returns browserless instances, whose
// Close is a no-op.
type fakeLauncher struct {
	launches atomic.Int32
	err      error
}

func (f *fakeLauncher) launch() (*browserInstance, error) {
	f.launches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &browserInstance{}, nil
}

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{name: "explicit takes priority", workers: 4, want: 4},
		{name: "explicit can exceed max", workers: 16, want: 16},
		{name: "zero uses auto calculation", workers: 0, want: min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize)},
		{name: "negative uses auto calculation", workers: -2, want: min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ResolvePoolSize(tt.workers); got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}

func TestBrowserPool_LazyLaunch(t *testing.T) {
	t.Parallel()

	fl := &fakeLauncher{}
	p := newBrowserPool(2, fl.launch)
	defer func() { _ = p.Close() }()

	if fl.launches.Load() != 0 {
		t.Fatal("pool must not launch browsers before Acquire")
	}

	b, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	p.Release(b)

	b2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if b2 != b {
		t.Error("released browser should be reused")
	}
	if fl.launches.Load() != 1 {
		t.Errorf("launches = %d, want 1", fl.launches.Load())
	}
	p.Release(b2)
}

func TestBrowserPool_MinimumSize(t *testing.T) {
	t.Parallel()

	p := newBrowserPool(0, (&fakeLauncher{}).launch)
	if p.Size() != MinPoolSize {
		t.Errorf("Size() = %d, want %d", p.Size(), MinPoolSize)
	}
}

func TestBrowserPool_BlocksAtCapacity(t *testing.T) {
	t.Parallel()

	fl := &fakeLauncher{}
	p := newBrowserPool(1, fl.launch)
	defer func() { _ = p.Close() }()

	b, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() at capacity error = %v, want DeadlineExceeded", err)
	}

	got := make(chan *browserInstance, 1)
	go func() {
		b2, err := p.Acquire(context.Background())
		if err == nil {
			got <- b2
		}
	}()

	p.Release(b)
	select {
	case b2 := <-got:
		if b2 != b {
			t.Error("waiter should receive the released browser")
		}
		p.Release(b2)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by Release")
	}
}

func TestBrowserPool_DiscardFreesSlot(t *testing.T) {
	t.Parallel()

	fl := &fakeLauncher{}
	p := newBrowserPool(1, fl.launch)
	defer func() { _ = p.Close() }()

	b, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		b2, err := p.Acquire(context.Background())
		if err == nil {
			p.Release(b2)
		}
		done <- err
	}()

	p.Discard(b)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire() after Discard error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by Discard")
	}
	if fl.launches.Load() != 2 {
		t.Errorf("launches = %d, want 2 (replacement browser)", fl.launches.Load())
	}
}

func TestBrowserPool_LaunchError(t *testing.T) {
	t.Parallel()

	fl := &fakeLauncher{err: ErrBrowserConnect}
	p := newBrowserPool(1, fl.launch)
	defer func() { _ = p.Close() }()

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrBrowserConnect) {
		t.Fatalf("Acquire() error = %v, want ErrBrowserConnect", err)
	}

	// The failed launch must not consume capacity.
	fl.err = nil
	b, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after failed launch error = %v", err)
	}
	p.Release(b)
}

func TestBrowserPool_Close(t *testing.T) {
	t.Parallel()

	p := newBrowserPool(2, (&fakeLauncher{}).launch)

	b, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Releasing after close must not panic.
	p.Release(b)

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire() after Close error = %v, want ErrPoolClosed", err)
	}
}

func TestBrowserPool_Concurrent(t *testing.T) {
	t.Parallel()

	fl := &fakeLauncher{}
	p := newBrowserPool(3, fl.launch)
	defer func() { _ = p.Close() }()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			time.Sleep(time.Millisecond)
			p.Release(b)
		}()
	}
	wg.Wait()

	if n := fl.launches.Load(); n > 3 {
		t.Errorf("launches = %d, want at most pool size 3", n)
	}
}
