// Package acquire binds a slot to exactly one OS window by polling the
// windows of the processes the slot tracks.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/multiboxer/internal/claim"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/process"
)

const (
	DefaultInterval    = 100 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
	DefaultRescanEvery = 10
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("acquisition timed out")

// TimeoutError reports that no eligible window appeared in time.
type TimeoutError struct {
	Slot     int
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("slot %d: no window acquired after %d attempts (%s)", e.Slot, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// Is makes errors.Is(err, ErrTimeout) true.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// WindowSource enumerates top-level windows.
type WindowSource interface {
	ListWindows() ([]platform.Window, error)
}

// ProcessSource answers liveness, name and parentage lookups.
type ProcessSource interface {
	Alive(pid int) bool
	FindByName(names []string) ([]process.Info, error)
	Children(pid int) ([]process.Info, error)
}

// Request describes one acquisition.
type Request struct {
	Slot     int
	PID      int
	Criteria Criteria
}

// Result is a successful acquisition. The caller owns Claim.
type Result struct {
	Claim    *claim.Claim
	Window   platform.Window
	PID      int
	Attempts int
}

// Config tunes the polling loop. Zero values take the defaults.
type Config struct {
	Interval    time.Duration
	Timeout     time.Duration
	RescanEvery int
	Logger      *slog.Logger
}

// Acquirer runs acquisitions against a shared claim registry.
type Acquirer struct {
	registry    *claim.Registry
	procs       ProcessSource
	windows     WindowSource
	interval    time.Duration
	timeout     time.Duration
	rescanEvery int
	logger      *slog.Logger
}

// New creates an Acquirer.
func New(cfg Config, registry *claim.Registry, procs ProcessSource, windows WindowSource) *Acquirer {
	a := &Acquirer{
		registry:    registry,
		procs:       procs,
		windows:     windows,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		rescanEvery: cfg.RescanEvery,
		logger:      cfg.Logger,
	}
	if a.interval <= 0 {
		a.interval = DefaultInterval
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.rescanEvery <= 0 {
		a.rescanEvery = DefaultRescanEvery
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a
}

// tracking is the per-acquisition set of candidate processes.
type tracking struct {
	primary int
	pids    map[int]struct{}
}

func (t *tracking) add(pid int) {
	if pid > 0 {
		t.pids[pid] = struct{}{}
	}
}

func (t *tracking) sorted() []int {
	out := make([]int, 0, len(t.pids))
	for pid := range t.pids {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}

// Acquire polls until a matching unclaimed window is claimed for
// req.Slot, the timeout elapses, or ctx is cancelled. It never returns a
// window owned by another slot.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	maxAttempts := int(a.timeout/a.interval) + 1

	tr := &tracking{primary: req.PID, pids: make(map[int]struct{})}
	tr.add(req.PID)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, ok := a.attempt(req, tr, attempt)
		if ok {
			res.Attempts = attempt
			a.logger.Info("window acquired",
				"slot", req.Slot,
				"window", fmt.Sprintf("0x%x", uint32(res.Window.ID)),
				"pid", res.PID,
				"attempts", attempt)
			return res, nil
		}
		if time.Since(start) >= a.timeout {
			return Result{}, &TimeoutError{Slot: req.Slot, Attempts: attempt, Elapsed: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
	return Result{}, &TimeoutError{Slot: req.Slot, Attempts: maxAttempts, Elapsed: time.Since(start)}
}

func (a *Acquirer) attempt(req Request, tr *tracking, attempt int) (Result, bool) {
	windows, err := a.windows.ListWindows()
	if err != nil {
		a.logger.Debug("acquire: list windows failed", "slot", req.Slot, "error", err)
		return Result{}, false
	}
	byPID := groupByPID(windows)

	// Main window of the tracked process.
	if tr.primary > 0 && a.procs.Alive(tr.primary) {
		if res, ok := a.claimFirst(req, byPID[tr.primary], true); ok {
			return res, true
		}
	} else if len(req.Criteria.Executables) > 0 {
		// The launcher exited; follow the process it handed off to.
		if next := a.handoffCandidate(req, byPID); next > 0 && next != tr.primary {
			a.logger.Info("acquire: tracking handoff", "slot", req.Slot, "from", tr.primary, "to", next)
			tr.primary = next
			tr.add(next)
			if res, ok := a.claimFirst(req, byPID[next], true); ok {
				return res, true
			}
		}
	}

	if attempt%a.rescanEvery == 0 {
		a.rescan(req, tr)
	}

	for _, pid := range tr.sorted() {
		if res, ok := a.claimFirst(req, byPID[pid], false); ok {
			return res, true
		}
	}
	return Result{}, false
}

// claimFirst claims the first matching unclaimed window in id order.
// mainOnly restricts to visible windows with a title.
func (a *Acquirer) claimFirst(req Request, candidates []platform.Window, mainOnly bool) (Result, bool) {
	for _, w := range candidates {
		if mainOnly && (!w.Visible || w.Title == "") {
			continue
		}
		if a.registry.IsClaimed(w.ID) || !req.Criteria.Matches(w) {
			continue
		}
		if c := a.registry.Acquire(w.ID, req.Slot); c != nil {
			return Result{Claim: c, Window: w, PID: w.PID}, true
		}
		// Lost a race to another slot; keep looking.
	}
	return Result{}, false
}

// handoffCandidate picks a live process by executable name, preferring one
// that already shows an eligible window.
func (a *Acquirer) handoffCandidate(req Request, byPID map[int][]platform.Window) int {
	found, err := a.procs.FindByName(req.Criteria.Executables)
	if err != nil || len(found) == 0 {
		return 0
	}
	fallback := 0
	for _, info := range found {
		if fallback == 0 {
			fallback = info.PID
		}
		for _, w := range byPID[info.PID] {
			if w.Visible && w.Title != "" && !a.registry.IsClaimed(w.ID) && req.Criteria.Matches(w) {
				return info.PID
			}
		}
	}
	return fallback
}

// rescan widens tracking to the children of the tracked process and to
// processes named by the criteria.
func (a *Acquirer) rescan(req Request, tr *tracking) {
	if tr.primary > 0 {
		if kids, err := a.procs.Children(tr.primary); err == nil {
			for _, info := range kids {
				tr.add(info.PID)
			}
		}
	}
	if len(req.Criteria.Executables) == 0 {
		return
	}
	found, err := a.procs.FindByName(req.Criteria.Executables)
	if err != nil {
		return
	}
	for _, info := range found {
		tr.add(info.PID)
	}
}

func groupByPID(windows []platform.Window) map[int][]platform.Window {
	out := make(map[int][]platform.Window)
	for _, w := range windows {
		if w.PID <= 0 {
			continue
		}
		out[w.PID] = append(out[w.PID], w)
	}
	for pid := range out {
		ws := out[pid]
		sort.Slice(ws, func(i, j int) bool { return ws[i].ID < ws[j].ID })
	}
	return out
}
