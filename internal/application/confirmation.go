package application

import (
	"sync"
	"time"

	"smart-mirror/internal/domain"
)

// Pending is an action held until the user confirms or declines it.
type Pending struct {
	Action domain.StructuredAction
	Text   string
	At     time.Time
}

// Gate holds at most one pending action. A newer Put replaces the older one.
type Gate struct {
	mu      sync.Mutex
	pending *Pending
}

func NewGate() *Gate {
	return &Gate{}
}

// Put stores p and reports whether an older pending action was replaced.
func (g *Gate) Put(p Pending) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	replaced := g.pending != nil
	g.pending = &p
	return replaced
}

// Take removes and returns the pending action.
func (g *Gate) Take() (Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return Pending{}, false
	}
	p := *g.pending
	g.pending = nil
	return p, true
}

// Clear drops the pending action and reports whether there was one.
func (g *Gate) Clear() bool {
	_, ok := g.Take()
	return ok
}

func (g *Gate) Peek() (Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return Pending{}, false
	}
	return *g.pending, true
}
