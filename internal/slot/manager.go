package slot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/time/rate"

	"github.com/1broseidon/multiboxer/internal/acquire"
	"github.com/1broseidon/multiboxer/internal/claim"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/process"
	"github.com/1broseidon/multiboxer/internal/region"
)

// EventKind classifies slot events.
type EventKind int

const (
	EventAcquired EventKind = iota
	EventFailed
	EventReleased
	EventExited
)

func (k EventKind) String() string {
	switch k {
	case EventAcquired:
		return "acquired"
	case EventFailed:
		return "failed"
	case EventReleased:
		return "released"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event reports a change in slot ownership.
type Event struct {
	Slot     int
	Kind     EventKind
	Window   platform.WindowID
	PID      int
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Starter launches client processes.
type Starter interface {
	Start(ctx context.Context, spec process.Spec) (*process.Handle, error)
}

// Acquirer binds a window to a slot.
type Acquirer interface {
	Acquire(ctx context.Context, req acquire.Request) (acquire.Result, error)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// LaunchInterval staggers consecutive launches in LaunchAll.
	LaunchInterval time.Duration
	// LaunchParallel bounds concurrent launch+acquire pairs in LaunchAll.
	LaunchParallel int
	Logger         *slog.Logger
}

// Manager owns every slot of the seat.
type Manager struct {
	mu       sync.RWMutex
	slots    map[int]*Slot
	registry *claim.Registry
	acquirer Acquirer
	starter  Starter
	logger   *slog.Logger
	events   chan Event
	// foreground is the slot last passed to SetForeground.
	foreground int

	launchInterval time.Duration
	launchParallel int
}

var (
	ErrUnknownSlot = errors.New("unknown slot")
	ErrNoProfile   = errors.New("slot has no profile")
	ErrBusy        = errors.New("slot is starting")
	// ErrSuperseded is returned by an acquisition whose slot was released
	// or rebound before it finished.
	ErrSuperseded = errors.New("slot acquisition superseded")
)

// NewManager creates a manager. Events are delivered on a buffered channel
// that the owner must drain.
func NewManager(cfg ManagerConfig, registry *claim.Registry, acquirer Acquirer, starter Starter) *Manager {
	m := &Manager{
		slots:          make(map[int]*Slot),
		registry:       registry,
		acquirer:       acquirer,
		starter:        starter,
		logger:         cfg.Logger,
		events:         make(chan Event, 64),
		launchInterval: cfg.LaunchInterval,
		launchParallel: cfg.LaunchParallel,
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.launchParallel <= 0 {
		m.launchParallel = 1
	}
	return m
}

// Events returns the slot event stream.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Configure declares slot id with the given profile. Existing bindings
// are kept.
func (m *Manager) Configure(id int, profile Profile) error {
	if id < 1 || id > region.MaxSlots {
		return fmt.Errorf("slot id %d out of range 1..%d", id, region.MaxSlots)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		s = &Slot{ID: id}
		m.slots[id] = s
	}
	s.Profile = profile
	return nil
}

// Remove disposes of a slot, releasing its window and abandoning any
// acquisition in flight.
func (m *Manager) Remove(id int) {
	m.mu.Lock()
	s, ok := m.slots[id]
	if ok {
		s.abandon()
		s.unbind()
		delete(m.slots, id)
	}
	m.mu.Unlock()
}

// Launch starts the slot's client and acquires its window in the
// background. The result arrives as an Event.
func (m *Manager) Launch(ctx context.Context, id int) error {
	run, err := m.start(ctx, id)
	if err != nil {
		return err
	}
	go m.acquire(run)
	return nil
}

// LaunchAll launches the given slots with bounded parallelism, spacing
// process starts by the launch interval. It returns once every slot has
// acquired a window or failed.
func (m *Manager) LaunchAll(ctx context.Context, ids []int) error {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if m.launchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(m.launchInterval), 1)
	}

	var mu sync.Mutex
	var errs []error
	wg := sizedwaitgroup.New(m.launchParallel)
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add()
		go func(id int) {
			defer wg.Done()
			run, err := m.start(ctx, id)
			if err == nil {
				err = m.acquire(run)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("slot %d: %w", id, err))
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Attach binds an already running process to the slot. A window the
// slot owned is released first.
func (m *Manager) Attach(ctx context.Context, id, pid int) error {
	m.mu.Lock()
	s, ok := m.slots[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSlot
	}
	if s.State == StateStarting {
		m.mu.Unlock()
		return ErrBusy
	}
	run, released := m.beginLocked(ctx, s)
	run.pid = pid
	s.PID = pid
	s.StartedAt = time.Now()
	m.mu.Unlock()

	m.emitReleased(id, released)
	go m.acquire(run)
	return nil
}

// Release gives up the slot's window, cancels any acquisition in flight
// and marks the slot empty.
func (m *Manager) Release(id int) error {
	m.mu.Lock()
	s, ok := m.slots[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSlot
	}
	w := s.Window()
	s.abandon()
	s.unbind()
	s.State = StateEmpty
	s.PID = 0
	m.mu.Unlock()

	m.emit(Event{Slot: id, Kind: EventReleased, Window: w})
	return nil
}

// MarkExited records that the slot's client went away.
func (m *Manager) MarkExited(id int) {
	m.mu.Lock()
	s, ok := m.slots[id]
	if !ok || !s.State.HasWindow() {
		m.mu.Unlock()
		return
	}
	m.exitLocked(id, s)
}

// exitLocked unbinds s and reports the exit. It releases m.mu.
func (m *Manager) exitLocked(id int, s *Slot) {
	w := s.Window()
	s.unbind()
	s.State = StateExited
	m.mu.Unlock()

	m.logger.Info("slot exited", "slot", id, "window", fmt.Sprintf("0x%x", uint32(w)))
	m.emit(Event{Slot: id, Kind: EventExited, Window: w})
}

// SetForeground marks id as the focused slot; the previous foreground
// slot goes back to running.
func (m *Manager) SetForeground(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foreground = id
	for sid, s := range m.slots {
		switch {
		case sid == id && s.State.HasWindow():
			s.State = StateForeground
		case s.State == StateForeground:
			s.State = StateRunning
		}
	}
}

// SetMinimized flags a slot whose window was iconified outside the
// daemon, or clears the flag once the window is shown again. Restoring
// it happens on the next layout pass. It reports whether the state
// changed.
func (m *Manager) SetMinimized(id int, minimized bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || !s.State.HasWindow() {
		return false
	}
	switch {
	case minimized && s.State != StateMinimized:
		s.State = StateMinimized
	case !minimized && s.State == StateMinimized && id == m.foreground:
		s.State = StateForeground
	case !minimized && s.State == StateMinimized:
		s.State = StateRunning
	default:
		return false
	}
	return true
}

// ActiveSlots returns the ids of slots that own a window, ascending.
func (m *Manager) ActiveSlots() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int
	for id, s := range m.slots {
		if s.State.HasWindow() {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// ConfiguredSlots returns every configured slot id, ascending.
func (m *Manager) ConfiguredSlots() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Window returns the window owned by slot id.
func (m *Manager) Window(id int) (platform.WindowID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok || !s.State.HasWindow() {
		return 0, false
	}
	return s.Window(), true
}

// SlotByWindow returns the slot owning w.
func (m *Manager) SlotByWindow(w platform.WindowID) (int, bool) {
	return m.registry.Owner(w)
}

// Get returns a copy of slot id.
func (m *Manager) Get(id int) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// Snapshot returns every slot ordered by id.
func (m *Manager) Snapshot() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// acquisition is one launch or attach in progress.
type acquisition struct {
	ctx      context.Context
	slot     int
	gen      uint64
	pid      int
	criteria acquire.Criteria
}

// beginLocked starts a new acquisition generation for s. A window the
// slot owned is unbound and returned so the caller can report it.
func (m *Manager) beginLocked(ctx context.Context, s *Slot) (acquisition, platform.WindowID) {
	var released platform.WindowID
	if s.State.HasWindow() {
		released = s.Window()
	}
	s.abandon()
	s.unbind()
	actx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.State = StateStarting
	s.LastError = ""
	return acquisition{ctx: actx, slot: s.ID, gen: s.gen, criteria: s.Profile.Criteria}, released
}

func (m *Manager) emitReleased(id int, w platform.WindowID) {
	if w == 0 {
		return
	}
	m.logger.Info("slot window released for rebind", "slot", id, "window", fmt.Sprintf("0x%x", uint32(w)))
	m.emit(Event{Slot: id, Kind: EventReleased, Window: w})
}

func (m *Manager) start(ctx context.Context, id int) (acquisition, error) {
	m.mu.Lock()
	s, ok := m.slots[id]
	if !ok {
		m.mu.Unlock()
		return acquisition{}, ErrUnknownSlot
	}
	if s.Profile.Spec.Command == "" {
		m.mu.Unlock()
		return acquisition{}, ErrNoProfile
	}
	if s.State == StateStarting {
		m.mu.Unlock()
		return acquisition{}, ErrBusy
	}
	run, released := m.beginLocked(ctx, s)
	profile := s.Profile
	m.mu.Unlock()

	m.emitReleased(id, released)

	handle, err := m.starter.Start(ctx, profile.Spec)
	if err != nil {
		m.fail(run, err, 0, 0)
		return acquisition{}, err
	}
	run.pid = handle.PID

	m.mu.Lock()
	if s.gen == run.gen {
		s.PID = handle.PID
		s.StartedAt = time.Now()
	}
	m.mu.Unlock()

	m.logger.Info("slot launched", "slot", id, "profile", profile.Name, "pid", handle.PID)
	go m.watchExit(run, handle)
	return run, nil
}

// watchExit marks the slot exited as soon as the launched process goes
// away, provided the slot still owns a window of that process.
func (m *Manager) watchExit(run acquisition, h *process.Handle) {
	if h.Done() == nil {
		return
	}
	<-h.Done()

	m.mu.Lock()
	s, ok := m.slots[run.slot]
	if !ok || s.gen != run.gen || s.PID != h.PID || !s.State.HasWindow() {
		m.mu.Unlock()
		return
	}
	m.logger.Debug("slot process exited", "slot", run.slot, "pid", h.PID, "error", h.Err())
	m.exitLocked(run.slot, s)
}

func (m *Manager) acquire(run acquisition) error {
	started := time.Now()
	res, err := m.acquirer.Acquire(run.ctx, acquire.Request{Slot: run.slot, PID: run.pid, Criteria: run.criteria})
	if err != nil {
		attempts := 0
		var te *acquire.TimeoutError
		if errors.As(err, &te) {
			attempts = te.Attempts
		}
		m.fail(run, err, attempts, time.Since(started))
		return err
	}

	m.mu.Lock()
	s, ok := m.slots[run.slot]
	if !ok || s.gen != run.gen || s.State != StateStarting {
		// Released, removed or rebound while acquiring.
		m.mu.Unlock()
		res.Claim.Release()
		m.logger.Info("slot acquisition discarded", "slot", run.slot, "window", fmt.Sprintf("0x%x", uint32(res.Window.ID)))
		return ErrSuperseded
	}
	s.bind(res.Claim, res.PID)
	s.State = StateRunning
	s.cancel()
	s.cancel = nil
	m.mu.Unlock()

	m.emit(Event{
		Slot:     run.slot,
		Kind:     EventAcquired,
		Window:   res.Window.ID,
		PID:      res.PID,
		Attempts: res.Attempts,
		Elapsed:  time.Since(started),
	})
	return nil
}

// fail records a failed launch or acquisition unless it was superseded.
func (m *Manager) fail(run acquisition, err error, attempts int, elapsed time.Duration) {
	m.mu.Lock()
	s, ok := m.slots[run.slot]
	if !ok || s.gen != run.gen {
		m.mu.Unlock()
		return
	}
	s.abandon()
	s.unbind()
	s.State = StateError
	s.LastError = err.Error()
	m.mu.Unlock()

	m.logger.Warn("slot failed", "slot", run.slot, "error", err)
	m.emit(Event{Slot: run.slot, Kind: EventFailed, Err: err, Attempts: attempts, Elapsed: elapsed})
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("slot event dropped", "slot", ev.Slot, "kind", ev.Kind.String())
	}
}
