package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/slot"
)

// Slots is the part of the slot manager the reconciler inspects.
type Slots interface {
	Snapshot() []slot.Info
	MarkExited(id int)
	SetMinimized(id int, minimized bool) bool
}

// WindowLister returns the windows that currently exist.
type WindowLister func() ([]platform.Window, error)

// Liveness reports whether a process is still running.
type Liveness interface {
	Alive(pid int) bool
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically checks that every bound slot still has a live
// process and window, and marks the ones that vanished as exited. Slots
// whose window was iconified behind the daemon's back are flagged
// minimized.
type Reconciler struct {
	interval    time.Duration
	slots       Slots
	listWindows WindowLister
	liveness    Liveness
	logger      *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
// A nil liveness skips the process check.
func NewReconciler(cfg ReconcilerConfig, slots Slots, listWindows WindowLister, liveness Liveness) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reconciler{
		interval:    interval,
		slots:       slots,
		listWindows: listWindows,
		liveness:    liveness,
		logger:      logger,
	}
}

// Serve runs the reconciliation loop until ctx is cancelled.
func (r *Reconciler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.reconcile()
		}
	}
}

func (r *Reconciler) String() string { return "reconciler" }

// reconcile performs a single reconciliation pass and returns the slots
// it marked as exited.
func (r *Reconciler) reconcile() (exited []int) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	var bound []slot.Info
	for _, info := range r.slots.Snapshot() {
		if info.State.HasWindow() {
			bound = append(bound, info)
		}
	}
	if len(bound) == 0 {
		return nil
	}

	actual, err := r.listWindows()
	if err != nil {
		r.logger.Error("reconciler: failed to list windows", "error", err)
		return nil
	}
	byID := make(map[platform.WindowID]platform.Window, len(actual))
	for _, w := range actual {
		byID[w.ID] = w
	}

	for _, info := range bound {
		w, present := byID[info.Window]
		reason := ""
		switch {
		case !present:
			reason = "window gone"
		case r.liveness != nil && info.PID > 0 && !r.liveness.Alive(info.PID):
			reason = "process gone"
		default:
			if r.slots.SetMinimized(info.ID, !w.Visible) {
				r.logger.Debug("reconciler: slot visibility changed", "slot", info.ID, "minimized", !w.Visible)
			}
			continue
		}
		r.logger.Info("reconciler: orphaned slot detected",
			"slot", info.ID,
			"pid", info.PID,
			"window", fmt.Sprintf("0x%x", uint32(info.Window)),
			"reason", reason)
		r.slots.MarkExited(info.ID)
		exited = append(exited, info.ID)
	}
	return exited
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() []int {
	return r.reconcile()
}
