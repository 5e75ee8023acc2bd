package transport

import (
	"context"
	"sync"

	"bitcoindrpc/internal/metrics"
)

// Gate bounds the number of exchanges in flight. Places in line are taken
// with Reserve at submission time, so admission follows submission order.
// A Gate with limit <= 0 admits everything immediately.
type Gate struct {
	limit   int
	active  int
	queue   []*Ticket
	metrics *metrics.Metrics
	mu      sync.Mutex
}

// Ticket is one place in the gate's line
type Ticket struct {
	gate     *Gate
	ready    chan struct{}
	granted  bool
	released bool
}

// NewGate creates a gate admitting at most limit concurrent holders
func NewGate(limit int, m *metrics.Metrics) *Gate {
	return &Gate{
		limit:   limit,
		metrics: m,
	}
}

// Limit returns the configured limit, 0 meaning unbounded
func (g *Gate) Limit() int {
	if g.limit < 0 {
		return 0
	}
	return g.limit
}

// Reserve takes a place in line without blocking
func (g *Gate) Reserve() *Ticket {
	t := &Ticket{gate: g, ready: make(chan struct{})}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.limit <= 0 || g.active < g.limit {
		g.active++
		t.grant()
		g.metrics.IncInFlight()
		return t
	}

	g.queue = append(g.queue, t)
	g.metrics.SetQueued(len(g.queue))
	return t
}

// Active returns the number of admitted, unreleased tickets
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Waiting returns the number of queued tickets
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// grant must be called with the gate lock held
func (t *Ticket) grant() {
	t.granted = true
	close(t.ready)
}

// Wait blocks until the ticket is admitted or ctx is done. On error the
// ticket gives up its place and must not be released.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
	}

	g := t.gate
	g.mu.Lock()
	if t.granted {
		// admitted while ctx was being cancelled; hand the slot on
		g.mu.Unlock()
		t.Release()
		return ctx.Err()
	}
	for i, q := range g.queue {
		if q == t {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			break
		}
	}
	g.metrics.SetQueued(len(g.queue))
	g.mu.Unlock()
	return ctx.Err()
}

// Release frees the slot, admitting the next ticket in line. Releasing
// twice is a no-op.
func (t *Ticket) Release() {
	g := t.gate
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.released || !t.granted {
		return
	}
	t.released = true
	g.metrics.DecInFlight()

	if len(g.queue) > 0 {
		next := g.queue[0]
		g.queue[0] = nil
		g.queue = g.queue[1:]
		next.grant()
		g.metrics.IncInFlight()
		g.metrics.SetQueued(len(g.queue))
		return
	}
	g.active--
}
