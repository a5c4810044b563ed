package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/eventsys/internal/bridge"
	"github.com/nfrund/eventsys/internal/hub"
	"github.com/nfrund/eventsys/internal/tracing"
	"github.com/nfrund/eventsys/pkg/eventsys"
)

const demoTopic = "demo.values"

var (
	demoWatermill bool
	demoHub       bool
)

// demoOptions selects the optional delivery paths of the demo.
type demoOptions struct {
	watermill bool
	hub       bool
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Subscribe listeners, revoke one and broadcast",
	Long: `Subscribe a free function and two listener objects to an int registry,
revoke the first listener and broadcast the value 4.

Listeners are heap-allocated so the callbacks they register keep pointing at
the same object however the slice holding them is grown or reordered.

Examples:
  eventsys-cli demo
  eventsys-cli demo --watermill   # also route the broadcast through a watermill topic
  eventsys-cli demo --hub         # also drain the broadcast from a hub channel`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := demoOptions{watermill: demoWatermill, hub: demoHub}
		return runDemo(cmd.Context(), cmd.OutOrStdout(), opts, cfg.Tracing)
	},
}

func init() {
	demoCmd.Flags().BoolVar(&demoWatermill, "watermill", false, "forward the broadcast to a second registry through watermill")
	demoCmd.Flags().BoolVar(&demoHub, "hub", false, "attach a hub subscriber and print what it drains")
	rootCmd.AddCommand(demoCmd)
}

// listener owns its subscription and reports every broadcast it receives.
type listener struct {
	name string
	out  io.Writer
	sub  *eventsys.Subscription[int]
}

func newListener(reg *eventsys.Registry[int], name string, out io.Writer) *listener {
	l := &listener{name: name, out: out}
	l.sub = reg.Subscribe(eventsys.Func(l.onEvent))
	return l
}

func (l *listener) onEvent(v int) {
	fmt.Fprintf(l.out, "%s received %d (subscription %d)\n", l.name, v, l.sub.ID())
}

func (l *listener) stop() {
	l.sub.Unsubscribe()
}

func runDemo(ctx context.Context, out io.Writer, opts demoOptions, tc tracing.TracingConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer, cleanup, err := tracing.SetupOTel(ctx, tc)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer cleanup()

	return demo(ctx, out, opts, tracer)
}

func demo(ctx context.Context, out io.Writer, opts demoOptions, tracer trace.Tracer) error {
	owner := eventsys.Create[int](eventsys.WithName("demo"), eventsys.WithTracer(tracer))
	defer owner.Release()
	reg := owner.Registry()

	plain := reg.Subscribe(eventsys.Func(func(v int) {
		fmt.Fprintf(out, "function called: %d\n", v)
	}))
	defer plain.Close()

	listeners := []*listener{
		newListener(reg, "listener-1", out),
		newListener(reg, "listener-2", out),
	}
	defer func() {
		for _, l := range listeners {
			l.stop()
		}
	}()
	listeners[0].stop()

	var (
		fanout  *hub.Hub[int]
		drained *hub.Subscriber[int]
	)
	if opts.hub {
		fanout = hub.New(reg)
		defer fanout.Close()
		drained = fanout.Attach(1)
	}

	var received chan int
	if opts.watermill {
		goChannel := bridge.NewGoChannel()
		defer goChannel.Close()

		remoteOwner := eventsys.Create[int](eventsys.WithName("demo-remote"), eventsys.WithTracer(tracer))
		defer remoteOwner.Release()
		remote := remoteOwner.Registry()

		received = make(chan int, 1)
		sink := remote.Subscribe(eventsys.Func(func(v int) {
			received <- v
		}))
		defer sink.Close()

		if err := bridge.Feed(ctx, goChannel, demoTopic, remote); err != nil {
			return err
		}
		fwd := bridge.Forward(reg, bridge.NewTracingPublisher(goChannel, tracer), demoTopic)
		defer fwd.Close()
	}

	if err := reg.NotifyContext(ctx, 4); err != nil {
		return err
	}

	if drained != nil {
		// Detach closes Send, so the loop ends after the buffered broadcasts.
		fanout.Detach(drained)
		for v := range drained.Send {
			fmt.Fprintf(out, "hub subscriber %d drained %d\n", drained.ID(), v)
		}
	}

	if received != nil {
		select {
		case v := <-received:
			fmt.Fprintf(out, "remote registry received %d via watermill\n", v)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("remote registry did not receive the broadcast")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
