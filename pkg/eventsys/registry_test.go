package eventsys

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// calls records callback invocations by subscriber label.
type calls struct {
	mu   sync.Mutex
	seen map[string][]int
}

func newCalls() *calls {
	return &calls{seen: make(map[string][]int)}
}

func (c *calls) callback(label string) Callback[int] {
	return Func(func(v int) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.seen[label] = append(c.seen[label], v)
	})
}

func (c *calls) get(label string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.seen[label]...)
}

func (c *calls) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string][]int)
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry[int] {
	t.Helper()
	owner := Create[int](opts...)
	t.Cleanup(owner.Release)
	return owner.Registry()
}

func TestRegistry_IdentifiersAreUniqueAndIncreasing(t *testing.T) {
	reg := newTestRegistry(t)

	var subs []*Subscription[int]
	last := InvalidID
	for i := 0; i < 100; i++ {
		sub := reg.Subscribe(Func(func(int) {}))
		subs = append(subs, sub)

		require.NotEqual(t, InvalidID, sub.ID())
		require.Greater(t, sub.ID(), last)
		last = sub.ID()

		// removing entries never makes an identifier come back
		if i%3 == 0 {
			sub.Unsubscribe()
		}
	}
	assert.Equal(t, ID(100), last)
	assert.Equal(t, 66, reg.Len())
	assert.Len(t, subs, 100)
}

func TestRegistry_CountersAreScopedToInstance(t *testing.T) {
	first := newTestRegistry(t)
	second := newTestRegistry(t)

	a := first.Subscribe(Func(func(int) {}))
	b := first.Subscribe(Func(func(int) {}))
	c := second.Subscribe(Func(func(int) {}))

	assert.Equal(t, ID(1), a.ID())
	assert.Equal(t, ID(2), b.ID())
	assert.Equal(t, ID(1), c.ID())
	assert.False(t, second.Contains(b.ID()))
}

func TestRegistry_UnsubscribeThenContains(t *testing.T) {
	reg := newTestRegistry(t)

	sub := reg.Subscribe(Func(func(int) {}))
	id := sub.ID()
	require.True(t, reg.Contains(id))

	reg.Unsubscribe(id)
	assert.False(t, reg.Contains(id))

	// idempotent
	reg.Unsubscribe(id)
	assert.False(t, reg.Contains(id))
}

func TestRegistry_InvalidAndUnknownIdentifiers(t *testing.T) {
	reg := newTestRegistry(t)
	sub := reg.Subscribe(Func(func(int) {}))

	assert.NotPanics(t, func() {
		reg.Unsubscribe(InvalidID)
		reg.Unsubscribe(ID(12345))
	})
	assert.False(t, reg.Contains(InvalidID))
	assert.False(t, reg.Contains(ID(12345)))
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.Contains(sub.ID()))
}

func TestRegistry_SubscribeNilCallbackPanics(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Panics(t, func() {
		reg.Subscribe(nil)
	})
}

func TestRegistry_NotifyEmpty(t *testing.T) {
	reg := newTestRegistry(t)
	assert.NoError(t, reg.Notify(1))
}

func TestRegistry_NotifyInvokesEachOnce(t *testing.T) {
	reg := newTestRegistry(t)
	rec := newCalls()

	labels := []string{"f1", "f2", "f3", "f4", "f5"}
	subs := make([]*Subscription[int], 0, len(labels))
	for _, label := range labels {
		subs = append(subs, reg.Subscribe(rec.callback(label)))
	}

	require.NoError(t, reg.Notify(42))
	for _, label := range labels {
		assert.Equal(t, []int{42}, rec.get(label), label)
	}
	assert.Len(t, subs, len(labels))
}

func TestRegistry_SubscribeUnsubscribeNotifyScenario(t *testing.T) {
	reg := newTestRegistry(t)
	rec := newCalls()

	h1 := reg.Subscribe(rec.callback("f1"))
	h2 := reg.Subscribe(rec.callback("f2"))

	require.NoError(t, reg.Notify(5))
	assert.Equal(t, []int{5}, rec.get("f1"))
	assert.Equal(t, []int{5}, rec.get("f2"))

	rec.reset()
	h1.Unsubscribe()
	require.NoError(t, reg.Notify(6))
	assert.Empty(t, rec.get("f1"))
	assert.Equal(t, []int{6}, rec.get("f2"))
	assert.True(t, h2.IsAvailable())
}

func TestRegistry_NotifyUsesSnapshot(t *testing.T) {
	t.Run("unsubscribe during notify still delivers this pass", func(t *testing.T) {
		reg := newTestRegistry(t)
		rec := newCalls()

		victim := reg.Subscribe(rec.callback("victim"))
		killer := reg.Subscribe(Func(func(int) {
			victim.Unsubscribe()
		}))
		defer killer.Close()

		require.NoError(t, reg.Notify(1))
		assert.Equal(t, []int{1}, rec.get("victim"))

		require.NoError(t, reg.Notify(2))
		assert.Equal(t, []int{1}, rec.get("victim"))
	})

	t.Run("subscribe during notify joins the next pass", func(t *testing.T) {
		reg := newTestRegistry(t)
		rec := newCalls()

		var (
			once sync.Once
			late *Subscription[int]
		)
		starter := reg.Subscribe(Func(func(int) {
			once.Do(func() {
				late = reg.Subscribe(rec.callback("late"))
			})
		}))
		defer starter.Close()

		require.NoError(t, reg.Notify(1))
		assert.Empty(t, rec.get("late"))

		require.NoError(t, reg.Notify(2))
		assert.Equal(t, []int{2}, rec.get("late"))
		require.NotNil(t, late)
		late.Unsubscribe()
	})
}

func TestRegistry_ReentrantNotify(t *testing.T) {
	reg := newTestRegistry(t)
	rec := newCalls()

	relay := reg.Subscribe(func(v int) error {
		if v > 0 {
			return reg.Notify(v - 1)
		}
		return nil
	})
	defer relay.Close()
	sink := reg.Subscribe(rec.callback("sink"))
	defer sink.Close()

	require.NoError(t, reg.Notify(2))
	assert.ElementsMatch(t, []int{2, 1, 0}, rec.get("sink"))
}

func TestRegistry_CallbackFailuresAreIsolated(t *testing.T) {
	reg := newTestRegistry(t)
	rec := newCalls()
	errBoom := errors.New("boom")

	failing := reg.Subscribe(func(int) error { return errBoom })
	panicking := reg.Subscribe(func(int) error { panic("kaboom") })
	healthy := reg.Subscribe(rec.callback("healthy"))

	err := reg.Notify(7)
	require.Error(t, err)
	assert.Equal(t, []int{7}, rec.get("healthy"))
	assert.ErrorIs(t, err, errBoom)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 2)

	failed := make(map[ID]*CallbackError)
	for _, e := range merr.Errors {
		var cbErr *CallbackError
		require.ErrorAs(t, e, &cbErr)
		failed[cbErr.ID] = cbErr
	}
	require.Contains(t, failed, failing.ID())
	require.Contains(t, failed, panicking.ID())
	assert.NotContains(t, failed, healthy.ID())
	assert.Equal(t, "kaboom", failed[panicking.ID()].Panic)
	assert.Contains(t, err.Error(), "2 subscribers failed")

	// a failing callback stays subscribed
	assert.True(t, failing.IsAvailable())
}

func TestRegistry_NotifySpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reg := newTestRegistry(t, WithName("spans"), WithTracer(tp.Tracer("test")))

	ok := reg.Subscribe(Func(func(int) {}))
	defer ok.Close()
	bad := reg.Subscribe(func(int) error { return errors.New("nope") })
	defer bad.Close()

	require.Error(t, reg.NotifyContext(context.Background(), 1))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "eventsys.notify", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("eventsys.registry", "spans"))
	assert.Contains(t, span.Attributes(), attribute.Int("eventsys.subscribers", 2))
	assert.Contains(t, span.Attributes(), attribute.Int("eventsys.failures", 1))
}

func TestRegistry_ConcurrentNotifyMayOverlap(t *testing.T) {
	reg := newTestRegistry(t)

	var (
		mu    sync.Mutex
		total int
	)
	sub := reg.Subscribe(Func(func(v int) {
		mu.Lock()
		total += v
		mu.Unlock()
	}))
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, reg.Notify(1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, total)
}
