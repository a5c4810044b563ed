package eventsys

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"
)

// binding is the revocation state of one subscription. It moves between
// handles and is also the argument of the handle's cleanup, so it must never
// point back at a Subscription.
type binding[A any] struct {
	id     ID
	reg    weak.Pointer[Registry[A]]
	active atomic.Bool
}

func (b *binding[A]) available() bool {
	if !b.active.Load() {
		return false
	}
	reg := b.reg.Value()
	return reg != nil && reg.Contains(b.id)
}

func (b *binding[A]) revoke() bool {
	if !b.active.CompareAndSwap(true, false) {
		return false
	}
	if reg := b.reg.Value(); reg != nil {
		reg.Unsubscribe(b.id)
	}
	return true
}

// dropped runs after the handle holding b became unreachable.
func (b *binding[A]) dropped() {
	if !b.revoke() {
		return
	}
	if reg := b.reg.Value(); reg != nil {
		reg.logger.Debug("Revoked subscription of dropped handle", "id", b.id)
	}
}

// Subscription owns the right to revoke one subscription.
//
// A handle is Active after Subscribe and becomes Inactive on Unsubscribe or
// Close, or when it is garbage collected without being closed. Move transfers
// the subscription to a new handle and leaves this one unbound. The zero value
// is an unbound handle. Handles must not be copied.
//
// A callback that captures its own handle keeps the handle reachable, so such
// a subscription is only revoked explicitly.
type Subscription[A any] struct {
	mu      sync.Mutex
	b       *binding[A]
	cleanup runtime.Cleanup
	armed   bool
}

func newSubscription[A any](b *binding[A]) *Subscription[A] {
	b.active.Store(true)

	s := &Subscription[A]{b: b}
	s.cleanup = runtime.AddCleanup(s, (*binding[A]).dropped, b)
	s.armed = true
	return s
}

// ID returns the bound identifier, or InvalidID for an unbound handle.
func (s *Subscription[A]) ID() ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.b == nil {
		return InvalidID
	}
	return s.b.id
}

// IsAvailable reports whether the registry still exists, the handle has not
// revoked, and the registry still holds the identifier. It is evaluated on
// every call.
func (s *Subscription[A]) IsAvailable() bool {
	s.mu.Lock()
	b := s.b
	s.mu.Unlock()

	return b != nil && b.available()
}

// Unsubscribe revokes the subscription. It is a no-op on inactive and unbound
// handles and when the registry no longer exists.
func (s *Subscription[A]) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.b == nil {
		return
	}
	s.b.revoke()
	s.disarm()
}

// Close is Unsubscribe in io.Closer form, for use with defer.
func (s *Subscription[A]) Close() error {
	s.Unsubscribe()
	return nil
}

// Move returns a new handle that takes over this handle's subscription. This
// handle is left unbound.
func (s *Subscription[A]) Move() *Subscription[A] {
	s.mu.Lock()
	b := s.b
	s.b = nil
	s.disarm()
	s.mu.Unlock()

	if b == nil {
		return &Subscription[A]{}
	}

	moved := &Subscription[A]{b: b}
	if b.active.Load() {
		moved.cleanup = runtime.AddCleanup(moved, (*binding[A]).dropped, b)
		moved.armed = true
	}
	return moved
}

func (s *Subscription[A]) disarm() {
	if s.armed {
		s.cleanup.Stop()
		s.armed = false
	}
}
