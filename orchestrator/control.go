package orchestrator

import (
	"sync"
	"sync/atomic"
)

// Control is the triggering UI element of a write. The orchestrator disables
// it for the duration of the write and re-enables it on every path.
type Control interface {
	Busy() bool
	Disable()
	Enable()
}

// Guard is an advisory per-control busy flag. It prevents the same control
// from submitting twice, not two controls targeting the same contract.
type Guard struct {
	busy atomic.Bool

	mu    sync.Mutex
	label string
}

// NewGuard returns an idle guard with a display label.
func NewGuard(label string) *Guard {
	return &Guard{label: label}
}

func (g *Guard) Busy() bool { return g.busy.Load() }
func (g *Guard) Disable()   { g.busy.Store(true) }
func (g *Guard) Enable()    { g.busy.Store(false) }

// TryDisable marks the guard busy and reports whether it was idle.
func (g *Guard) TryDisable() bool { return g.busy.CompareAndSwap(false, true) }

// SetLabel replaces the progress label shown while the guard is busy.
func (g *Guard) SetLabel(label string) {
	g.mu.Lock()
	g.label = label
	g.mu.Unlock()
}

// Label returns the current label.
func (g *Guard) Label() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.label
}

// held stands in for a control already disabled by an enclosing flow.
type held struct{}

func (held) Busy() bool { return false }
func (held) Disable()   {}
func (held) Enable()    {}

// acquire disables ctrl, failing if it is already busy. Controls that can
// claim themselves atomically do so; others fall back to Busy then Disable.
func acquire(ctrl Control) bool {
	if t, ok := ctrl.(interface{ TryDisable() bool }); ok {
		return t.TryDisable()
	}
	if ctrl.Busy() {
		return false
	}
	ctrl.Disable()
	return true
}

// labelControl shows label on a Guard while it is busy. The returned func
// restores the previous label.
func labelControl(ctrl Control, label string) func() {
	g, ok := ctrl.(*Guard)
	if !ok {
		return func() {}
	}
	prev := g.Label()
	g.SetLabel(label)
	return func() { g.SetLabel(prev) }
}
