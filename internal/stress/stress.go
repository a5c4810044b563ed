// Package stress hammers a single registry from many goroutines and checks
// that identifiers, removal and delivery stay consistent under contention.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nfrund/eventsys/pkg/eventsys"
)

// Config controls a stress run.
type Config struct {
	Workers  int
	Duration time.Duration
}

// Report summarizes a stress run. A run is clean when Violations is empty.
type Report struct {
	RunID        string        `json:"run_id"`
	Workers      int           `json:"workers"`
	Duration     time.Duration `json:"duration_ns"`
	Subscribes   int64         `json:"subscribes"`
	Unsubscribes int64         `json:"unsubscribes"`
	Notifies     int64         `json:"notifies"`
	Invocations  int64         `json:"invocations"`
	MaxID        uint64        `json:"max_id"`
	Violations   []string      `json:"violations,omitempty"`
}

// Clean reports whether the run found no violations.
func (r Report) Clean() bool {
	return len(r.Violations) == 0
}

// maxViolations caps how many violations are kept in a report.
const maxViolations = 100

type run struct {
	reg     *eventsys.Registry[int]
	workers int

	subscribes   atomic.Int64
	unsubscribes atomic.Int64
	notifies     atomic.Int64
	invocations  atomic.Int64

	mu         sync.Mutex
	issued     map[eventsys.ID]struct{}
	maxID      eventsys.ID
	violations []string
}

func (r *run) violation(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.violations) < maxViolations {
		r.violations = append(r.violations, fmt.Sprintf(format, args...))
	}
}

func (r *run) issue(id eventsys.ID) {
	r.mu.Lock()
	_, dup := r.issued[id]
	r.issued[id] = struct{}{}
	if id > r.maxID {
		r.maxID = id
	}
	r.mu.Unlock()

	if dup {
		r.violation("identifier %d issued twice", id)
	}
	if id == eventsys.InvalidID {
		r.violation("invalid identifier issued")
	}
}

func (r *run) count(int) {
	r.invocations.Add(1)
}

// worker loops Subscribe, Notify and Unsubscribe until ctx is done. Each
// worker holds at most two subscriptions at once, which bounds the table.
func (r *run) worker(ctx context.Context, n int) error {
	last := eventsys.InvalidID
	for ctx.Err() == nil {
		sub := r.reg.Subscribe(eventsys.Func(r.count))
		r.subscribes.Add(1)
		id := sub.ID()
		r.issue(id)
		if id <= last {
			r.violation("worker %d: identifier %d not greater than %d", n, id, last)
		}
		last = id

		var delivered atomic.Int64
		probe := r.reg.Subscribe(eventsys.Func(func(int) { delivered.Add(1) }))
		r.subscribes.Add(1)
		r.issue(probe.ID())

		if err := r.reg.Notify(n); err != nil {
			r.violation("worker %d: notify failed: %v", n, err)
		}
		r.notifies.Add(1)
		if delivered.Load() == 0 {
			r.violation("worker %d: notify skipped subscription %d present for the whole call", n, probe.ID())
		}
		if size := r.reg.Len(); size > 2*r.workers {
			r.violation("table holds %d entries, bound is %d", size, 2*r.workers)
		}

		probe.Unsubscribe()
		sub.Unsubscribe()
		r.unsubscribes.Add(2)
		if r.reg.Contains(id) || r.reg.Contains(probe.ID()) {
			r.violation("worker %d: identifier still present after unsubscribe", n)
		}
	}
	return nil
}

// Run executes the stress scenario on a fresh registry built with opts.
func Run(ctx context.Context, cfg Config, opts ...eventsys.Option) (Report, error) {
	if cfg.Workers < 1 {
		return Report{}, errors.New("stress: at least one worker is required")
	}
	if cfg.Duration <= 0 {
		return Report{}, errors.New("stress: duration must be positive")
	}

	owner := eventsys.Create[int](opts...)
	defer owner.Release()

	r := &run{
		reg:     owner.Registry(),
		workers: cfg.Workers,
		issued:  make(map[eventsys.ID]struct{}),
	}
	runID := uuid.NewString()
	slog.Info("Starting stress run", "run_id", runID, "workers", cfg.Workers, "duration", cfg.Duration)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	started := time.Now()
	g, gCtx := errgroup.WithContext(runCtx)
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			return r.worker(gCtx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("stress run %s interrupted: %w", runID, err)
	}

	if size := r.reg.Len(); size != 0 {
		r.violation("%d entries left after all workers unsubscribed", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	report := Report{
		RunID:        runID,
		Workers:      cfg.Workers,
		Duration:     time.Since(started),
		Subscribes:   r.subscribes.Load(),
		Unsubscribes: r.unsubscribes.Load(),
		Notifies:     r.notifies.Load(),
		Invocations:  r.invocations.Load(),
		MaxID:        uint64(r.maxID),
		Violations:   r.violations,
	}
	if int64(len(r.issued)) != report.Subscribes {
		report.Violations = append(report.Violations,
			fmt.Sprintf("%d subscribes issued %d distinct identifiers", report.Subscribes, len(r.issued)))
	}

	slog.Info("Stress run finished", "run_id", runID, "notifies", report.Notifies, "violations", len(report.Violations))
	return report, nil
}
