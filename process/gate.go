package process

import (
	"sync"

	"github.com/fwojciec/cargomcp"
)

// Gate serializes build-mutating commands per project root. A root is held
// by at most one ticket at a time; waiters are served in FIFO order and the
// root is handed directly to the next waiter on release.
type Gate struct {
	mu    sync.Mutex
	slots map[cargomcp.ProjectRoot]*slot
}

type slot struct {
	waiters []*Ticket
}

// Ticket is a place in a root's queue. Ready is closed once the ticket
// holds the root.
type Ticket struct {
	root  cargomcp.ProjectRoot
	ready chan struct{}
}

// Ready returns a channel closed when the ticket holds its root.
func (t *Ticket) Ready() <-chan struct{} {
	return t.ready
}

// Held reports whether the ticket holds its root.
func (t *Ticket) Held() bool {
	select {
	case <-t.ready:
		return true
	default:
		return false
	}
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{slots: make(map[cargomcp.ProjectRoot]*slot)}
}

// TryAcquire takes the root if nobody holds or waits for it.
func (g *Gate) TryAcquire(root cargomcp.ProjectRoot) (*Ticket, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.slots[root]; busy {
		return nil, false
	}
	t := g.grant(root)
	return t, true
}

// Enqueue joins the root's queue. The returned ticket is already held when
// the root was free.
func (g *Gate) Enqueue(root cargomcp.ProjectRoot) *Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, busy := g.slots[root]
	if !busy {
		return g.grant(root)
	}
	t := &Ticket{root: root, ready: make(chan struct{})}
	s.waiters = append(s.waiters, t)
	return t
}

// grant creates a held ticket for a free root. g.mu must be held.
func (g *Gate) grant(root cargomcp.ProjectRoot) *Ticket {
	t := &Ticket{root: root, ready: make(chan struct{})}
	close(t.ready)
	g.slots[root] = &slot{}
	return t
}

// Release gives up a held ticket, handing the root to the next waiter.
func (g *Gate) Release(t *Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[t.root]
	if !ok {
		return
	}
	if len(s.waiters) == 0 {
		delete(g.slots, t.root)
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next.ready)
}

// Abandon leaves the queue. If the ticket was granted in the meantime the
// root is released instead. It reports whether the ticket was still waiting.
func (g *Gate) Abandon(t *Ticket) bool {
	g.mu.Lock()
	s, ok := g.slots[t.root]
	if ok {
		for i, w := range s.waiters {
			if w == t {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				g.mu.Unlock()
				return true
			}
		}
	}
	g.mu.Unlock()

	if t.Held() {
		g.Release(t)
	}
	return false
}

// Busy reports whether the root is held.
func (g *Gate) Busy(root cargomcp.ProjectRoot) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.slots[root]
	return ok
}

// Waiting returns the number of tickets queued behind the holder of root.
func (g *Gate) Waiting(root cargomcp.ProjectRoot) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.slots[root]; ok {
		return len(s.waiters)
	}
	return 0
}
