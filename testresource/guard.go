package testresource

import "sync"

// DefaultResourceGuard installs a replacement process-wide default allocator
// for the duration of a test and restores the previous one. It stands in for
// the source's RAII guard: Go has no destructors, so callers are expected to
// `defer guard.Restore()` immediately after construction.
type DefaultResourceGuard struct {
	once     sync.Once
	previous UpstreamAllocator
}

// NewDefaultResourceGuard installs replacement as the process-wide default
// allocator and returns a guard that restores the prior default when
// Restore is called. A nil replacement leaves the current default in place
// and Restore becomes a no-op, matching the identity-guard behavior spec.md
// documents for a nil argument.
func NewDefaultResourceGuard(replacement UpstreamAllocator) *DefaultResourceGuard {
	g := &DefaultResourceGuard{}
	if replacement == nil {
		g.once.Do(func() {})
		return g
	}
	g.previous = SetDefaultAllocator(replacement)
	return g
}

// Restore installs the default allocator that was active when the guard was
// constructed. It is safe to call more than once or concurrently; only the
// first call has any effect.
func (g *DefaultResourceGuard) Restore() {
	g.once.Do(func() {
		if g.previous != nil {
			SetDefaultAllocator(g.previous)
		}
	})
}
