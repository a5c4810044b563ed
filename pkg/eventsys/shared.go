package eventsys

import (
	"sync/atomic"
)

// Shared is one owning reference to a registry. The registry is destroyed when
// the last owner is released. Subscription handles never own their registry,
// so they do not keep it alive.
type Shared[A any] struct {
	reg  atomic.Pointer[Registry[A]]
	refs *atomic.Int64
}

// Create returns the first owner of a new, empty registry.
func Create[A any](opts ...Option) *Shared[A] {
	refs := new(atomic.Int64)
	refs.Store(1)

	s := &Shared[A]{refs: refs}
	s.reg.Store(newRegistry[A](opts...))
	return s
}

// Registry returns the owned registry, or nil once this owner has been released.
func (s *Shared[A]) Registry() *Registry[A] {
	return s.reg.Load()
}

// Share returns an additional owner of the same registry. It returns nil if
// this owner has already been released.
func (s *Shared[A]) Share() *Shared[A] {
	reg := s.reg.Load()
	if reg == nil {
		return nil
	}

	for {
		n := s.refs.Load()
		if n == 0 {
			return nil
		}
		if s.refs.CompareAndSwap(n, n+1) {
			break
		}
	}

	other := &Shared[A]{refs: s.refs}
	other.reg.Store(reg)
	return other
}

// Release drops this owner. Releasing the same owner again has no effect.
func (s *Shared[A]) Release() {
	reg := s.reg.Swap(nil)
	if reg == nil {
		return
	}

	if s.refs.Add(-1) == 0 {
		reg.destroy()
	}
}

// Owners returns the number of live owners of the registry.
func (s *Shared[A]) Owners() int64 {
	return s.refs.Load()
}
