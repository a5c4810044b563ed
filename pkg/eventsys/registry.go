package eventsys

import (
	"context"
	"log/slog"
	"sync"
	"weak"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ID names one subscription within a registry.
type ID uint64

// InvalidID is never assigned by a registry. Unbound and moved-from handles report it.
const InvalidID ID = 0

// Callback is invoked by Notify with the broadcast arguments. A non-nil error
// is reported back to the Notify caller without interrupting the broadcast.
type Callback[A any] func(args A) error

// Func adapts a callback that cannot fail.
func Func[A any](fn func(A)) Callback[A] {
	return func(args A) error {
		fn(args)
		return nil
	}
}

type entry[A any] struct {
	id ID
	cb Callback[A]
}

// Registry owns the callback table of one event signature. It is safe for
// concurrent use. Registries are only obtained through Create.
type Registry[A any] struct {
	mu     sync.RWMutex
	lastID ID
	table  map[ID]Callback[A]
	dead   bool

	name   string
	logger *slog.Logger
	tracer trace.Tracer
}

func newRegistry[A any](opts ...Option) *Registry[A] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Registry[A]{
		table:  make(map[ID]Callback[A]),
		name:   o.name,
		logger: o.logger.With("registry", o.name),
		tracer: o.tracer,
	}
}

// Name returns the name given with WithName.
func (r *Registry[A]) Name() string {
	return r.name
}

// Subscribe adds cb to the table and returns the handle that owns its
// revocation. Subscribing to a destroyed registry returns an unbound handle.
func (r *Registry[A]) Subscribe(cb Callback[A]) *Subscription[A] {
	if cb == nil {
		panic("eventsys: nil callback")
	}

	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		r.logger.Debug("Subscribe on destroyed registry ignored")
		return &Subscription[A]{}
	}
	r.lastID++
	id := r.lastID
	r.table[id] = cb
	size := len(r.table)
	r.mu.Unlock()

	r.logger.Debug("Subscriber registered", "id", id, "total_subscribers", size)
	return newSubscription(&binding[A]{id: id, reg: weak.Make(r)})
}

// Unsubscribe removes id from the table. Unknown, already removed and invalid
// identifiers are ignored.
func (r *Registry[A]) Unsubscribe(id ID) {
	if id == InvalidID {
		return
	}

	r.mu.Lock()
	_, ok := r.table[id]
	if ok {
		delete(r.table, id)
	}
	size := len(r.table)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("Subscriber unregistered", "id", id, "total_subscribers", size)
	}
}

// Contains reports whether id is currently subscribed.
func (r *Registry[A]) Contains(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.table[id]
	return ok
}

// Len returns the number of current subscriptions.
func (r *Registry[A]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.table)
}

// Notify invokes every callback present when the call starts, once each, in
// no particular order. See NotifyContext.
func (r *Registry[A]) Notify(args A) error {
	return r.NotifyContext(context.Background(), args)
}

// NotifyContext is Notify with a parent context for the broadcast span.
//
// The table is copied under a read lock and the copies are invoked after the
// lock is released, so callbacks may subscribe, unsubscribe or notify on the
// same registry. A subscription removed after the copy is taken still
// receives this broadcast. Every callback runs even if earlier ones fail; the
// returned error is nil or a *multierror.Error of *CallbackError values.
func (r *Registry[A]) NotifyContext(ctx context.Context, args A) error {
	snapshot := r.snapshot()

	_, span := r.tracer.Start(ctx, "eventsys.notify",
		trace.WithAttributes(
			attribute.String("eventsys.registry", r.name),
			attribute.Int("eventsys.subscribers", len(snapshot)),
		),
	)
	defer span.End()

	failures := newFailures()
	for _, e := range snapshot {
		if err := invoke(e, args); err != nil {
			r.logger.Warn("Subscriber failed during notify", "id", e.id, "error", err)
			failures = multierror.Append(failures, err)
		}
	}

	span.SetAttributes(attribute.Int("eventsys.failures", failures.Len()))
	if err := failures.ErrorOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscriber failures")
		return err
	}
	return nil
}

func (r *Registry[A]) snapshot() []entry[A] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]entry[A], 0, len(r.table))
	for id, cb := range r.table {
		entries = append(entries, entry[A]{id: id, cb: cb})
	}
	return entries
}

func invoke[A any](e entry[A], args A) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &CallbackError{ID: e.id, Panic: p}
		}
	}()

	if cbErr := e.cb(args); cbErr != nil {
		return &CallbackError{ID: e.id, Err: cbErr}
	}
	return nil
}

// destroy drops every subscription and turns all further operations into no-ops.
func (r *Registry[A]) destroy() {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return
	}
	r.dead = true
	dropped := len(r.table)
	r.table = nil
	r.mu.Unlock()

	r.logger.Debug("Registry destroyed", "dropped_subscribers", dropped)
}
