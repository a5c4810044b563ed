// Package eventsys provides a typed, in-process publish/subscribe registry with
// lifetime-safe subscription handles.
//
// A Registry is parameterized by the argument type its callbacks accept. Callers
// subscribe callbacks, broadcast to all of them with Notify, and revoke a
// subscription through the Subscription handle returned by Subscribe. Handles
// and the registry may be torn down in any order from any goroutine: a handle
// only holds a weak reference to its registry and becomes inert once the
// registry is gone.
//
// Key Features:
//   - Identifiers are scoped to one registry instance and never reused
//   - Notify snapshots the table and invokes callbacks outside the lock
//   - Each callback invocation is isolated; failures and panics are aggregated
//   - Subscription handles revoke on Close, on Move-out, or when dropped
//
// Usage:
//
//	owner := eventsys.Create[int]()
//	defer owner.Release()
//
//	reg := owner.Registry()
//	sub := reg.Subscribe(eventsys.Func(func(v int) {
//		fmt.Println("got", v)
//	}))
//	defer sub.Close()
//
//	if err := reg.Notify(5); err != nil {
//		slog.Warn("some subscribers failed", "error", err)
//	}
//
// Signatures with several arguments are expressed as a struct type:
//
//	type Moved struct{ X, Y int }
//	owner := eventsys.Create[Moved]()
//
// Callbacks that act on an object must capture a stable pointer to it (a *T
// allocated on its own), never the address of an element inside a slice that
// may be grown or reordered.
package eventsys
