package propulse

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one browser is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// browserPool keeps up to size long-lived browsers for reuse across renders.
// Browsers are launched lazily on first acquire to avoid startup delay.
type browserPool struct {
	size   int
	launch func() (*browserInstance, error)

	idle chan *browserInstance

	mu      sync.Mutex
	created int
	closed  bool
	// slot is signalled when a discarded browser frees launch capacity.
	slot chan struct{}
}

// newBrowserPool creates a pool with capacity for n browsers.
func newBrowserPool(n int, launch func() (*browserInstance, error)) *browserPool {
	if n < MinPoolSize {
		n = MinPoolSize
	}
	return &browserPool{
		size:   n,
		launch: launch,
		idle:   make(chan *browserInstance, n),
		slot:   make(chan struct{}, n),
	}
}

// Acquire returns an idle browser, launches a new one if capacity remains,
// or blocks until one is released or ctx is done.
func (p *browserPool) Acquire(ctx context.Context) (*browserInstance, error) {
	for {
		select {
		case b, ok := <-p.idle:
			if !ok {
				return nil, ErrPoolClosed
			}
			return b, nil
		default:
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if p.created < p.size {
			p.created++
			p.mu.Unlock()

			// Launch outside the lock; it takes seconds
			b, err := p.launch()
			if err != nil {
				p.mu.Lock()
				p.created--
				p.mu.Unlock()
				return nil, err
			}

			return b, nil
		}
		p.mu.Unlock()

		select {
		case b, ok := <-p.idle:
			if !ok {
				return nil, ErrPoolClosed
			}
			return b, nil
		case <-p.slot:
			// capacity freed by Discard; retry the launch path
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a healthy browser to the pool. Browsers released after
// Close are shut down instead.
func (p *browserPool) Release(b *browserInstance) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = b.Close()
		return
	}
	// Never blocks: at most size browsers exist, so idle always has room.
	// Sending under the lock keeps Close from closing the channel mid-send.
	select {
	case p.idle <- b:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		_ = b.Close()
	}
}

// Discard closes a browser that failed mid-render and frees its slot.
func (p *browserPool) Discard(b *browserInstance) {
	p.mu.Lock()
	if p.created > 0 {
		p.created--
	}
	closed := p.closed
	p.mu.Unlock()

	_ = b.Close()

	if !closed {
		select {
		case p.slot <- struct{}{}:
		default:
		}
	}
}

// Close shuts down idle browsers. Browsers still rendering are shut down
// when they are released. Returns an aggregated error if several fail.
func (p *browserPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	var errs []error
	for b := range p.idle {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *browserPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the browser pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
