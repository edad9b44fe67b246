// Package reconciler keeps users.is_boa_member in step with the presence of
// a membership number. Passes run on a fixed interval; a pass that would
// overlap a running one is skipped.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the period between passes when Config.Interval is zero.
const DefaultInterval = 5 * time.Second

// Store runs the two bulk updates of a pass. Each returns the number of
// users whose flag changed.
type Store interface {
	ActivateMembers(ctx context.Context) (int64, error)
	DeactivateNonMembers(ctx context.Context) (int64, error)
}

// Stats describes one completed pass. Err joins the storage errors of the
// pass, if any; they are logged and never returned to a caller.
type Stats struct {
	Activated   int64
	Deactivated int64
	Err         error
}

// Recorder receives one observation per attempted pass.
type Recorder interface {
	ObserveReconcile(stats Stats, elapsed time.Duration)
	ObserveReconcileSkipped()
}

// Config holds the tunables. Zero values are usable.
type Config struct {
	Interval time.Duration
	Logger   *slog.Logger
	Recorder Recorder
}

// Reconciler owns the schedule and the re-entrancy flag. Construct one per
// process and Stop it on shutdown.
type Reconciler struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	recorder Recorder

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped Reconciler.
func New(store Store, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		interval: cfg.Interval,
		logger:   logger.With("component", "reconciler"),
		recorder: cfg.Recorder,
	}
}

// Running reports whether a pass is in progress.
func (r *Reconciler) Running() bool { return r.running.Load() }

// Reconcile runs one pass: activation, then deactivation. If another pass is
// in progress it returns immediately with ran == false and writes nothing.
// Storage errors are logged, collected in Stats.Err and otherwise swallowed;
// a failure in the first update does not prevent the second.
func (r *Reconciler) Reconcile(ctx context.Context) (stats Stats, ran bool) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.DebugContext(ctx, "reconciler: pass already running, skipping")
		if r.recorder != nil {
			r.recorder.ObserveReconcileSkipped()
		}
		return Stats{}, false
	}
	defer r.running.Store(false)

	start := time.Now()
	var errs []error

	activated, err := r.store.ActivateMembers(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "reconciler: activation failed", "error", err)
		errs = append(errs, err)
	} else {
		stats.Activated = activated
		r.logger.InfoContext(ctx, "reconciler: activated members", "rows", activated)
	}

	deactivated, err := r.store.DeactivateNonMembers(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "reconciler: deactivation failed", "error", err)
		errs = append(errs, err)
	} else {
		stats.Deactivated = deactivated
		r.logger.InfoContext(ctx, "reconciler: deactivated non-members", "rows", deactivated)
	}

	stats.Err = errors.Join(errs...)
	if r.recorder != nil {
		r.recorder.ObserveReconcile(stats, time.Since(start))
	}
	return stats, true
}

// Start runs a pass immediately and then one every interval until Stop is
// called or ctx is cancelled. Calling Start on a running Reconciler is a
// no-op; after ctx has ended the loop, Start launches a new one.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		select {
		case <-r.done:
			r.cancel()
		default:
			return
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	r.logger.InfoContext(ctx, "reconciler: started", "interval", r.interval)
	go r.loop(loopCtx, r.done)
}

// Stop cancels future passes and waits for the loop to exit. A pass already
// in progress is allowed to finish. Stop is idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}

	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	r.logger.Info("reconciler: stopped")
}

func (r *Reconciler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	// Passes must not be cut short by Stop.
	passCtx := context.WithoutCancel(ctx)

	r.Reconcile(passCtx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reconcile(passCtx)
		}
	}
}
