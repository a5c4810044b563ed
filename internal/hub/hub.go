package hub

import (
	"log/slog"
	"sync"

	"github.com/nfrund/eventsys/pkg/eventsys"
)

// Subscriber represents a single consumer attached to a Hub.
// It contains the channel through which the Hub delivers broadcasts.
type Subscriber[A any] struct {
	// Send is a buffered channel of delivered broadcasts. The client is
	// responsible for reading from it. It is closed when the subscriber is
	// detached or evicted.
	Send chan A

	mu     sync.Mutex
	closed bool
	sub    *eventsys.Subscription[A]
}

// ID returns the registry identifier of the subscriber's subscription.
func (s *Subscriber[A]) ID() eventsys.ID {
	return s.sub.ID()
}

func (s *Subscriber[A]) offer(args A) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.Send <- args:
		return true
	default:
		return false
	}
}

func (s *Subscriber[A]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.Send)
	}
}

// Hub turns registry broadcasts into per-consumer channels. Every attached
// subscriber owns one registry subscription; a subscriber whose buffer is
// full is considered stuck and is evicted.
type Hub[A any] struct {
	reg *eventsys.Registry[A]

	mu          sync.Mutex
	subscribers map[*Subscriber[A]]struct{}
}

// New creates a Hub delivering the broadcasts of reg.
func New[A any](reg *eventsys.Registry[A]) *Hub[A] {
	return &Hub[A]{
		reg:         reg,
		subscribers: make(map[*Subscriber[A]]struct{}),
	}
}

// Attach registers a new subscriber with the given channel buffer size.
func (h *Hub[A]) Attach(buffer int) *Subscriber[A] {
	s := &Subscriber[A]{Send: make(chan A, buffer)}

	// Deliveries wait on s.mu, so none can observe s before it is registered.
	s.mu.Lock()
	s.sub = h.reg.Subscribe(func(args A) error {
		if !s.offer(args) {
			// The client's send buffer is full. We assume it's dead or stuck.
			slog.Warn("Evicting slow subscriber", "id", s.sub.ID(), "registry", h.reg.Name())
			h.Detach(s)
		}
		return nil
	})
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	total := len(h.subscribers)
	h.mu.Unlock()
	s.mu.Unlock()

	slog.Info("New subscriber attached", "id", s.sub.ID(), "total_subscribers", total)
	return s
}

// Detach revokes the subscriber's subscription and closes its channel.
// Detaching twice has no effect.
func (h *Hub[A]) Detach(s *Subscriber[A]) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	delete(h.subscribers, s)
	total := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.sub.Unsubscribe()
	s.close()
	slog.Info("Subscriber detached", "id", s.sub.ID(), "total_subscribers", total)
}

// Len returns the number of attached subscribers.
func (h *Hub[A]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// Close detaches every subscriber.
func (h *Hub[A]) Close() {
	h.mu.Lock()
	subs := make([]*Subscriber[A], 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.Detach(s)
	}
}
