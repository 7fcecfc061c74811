// Package swap serialises focus swaps: requests are debounced and
// coalesced to the newest target, and a new layout never starts while
// the previous one is still being applied.
package swap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State of the machine.
type State string

const (
	StateIdle               State = "idle"
	StateSwapRequested      State = "swap-requested"
	StateLayoutApplying     State = "layout-applying"
	StateThumbnailsApplying State = "thumbnails-applying"
	StateStabilizing        State = "stabilizing"
	StateRecovery           State = "recovery"
)

const (
	DefaultDebounce  = 150 * time.Millisecond
	DefaultStabilize = 50 * time.Millisecond
)

var (
	// ErrRecovering rejects requests while the machine is in recovery.
	ErrRecovering = errors.New("swap machine is in recovery")
	// ErrUnexpected is returned for a completion report that does not
	// match the current state.
	ErrUnexpected = errors.New("unexpected transition")
)

// Request is one swap request. In-flight requests coalesce to the newest.
type Request struct {
	ID        string
	Target    int
	Timestamp time.Time
}

// Kind classifies notifications.
type Kind string

const (
	// SwapReady asks the consumer to apply the layout for Request.Target
	// and report back with LayoutFinished.
	SwapReady     Kind = "swap-ready"
	SwapCompleted Kind = "swap-completed"
	SwapFailed    Kind = "swap-failed"
	// RecoveryEntered reports that the machine stopped accepting requests.
	RecoveryEntered Kind = "recovery-entered"
)

// Notification is emitted on the machine's channel.
type Notification struct {
	Kind    Kind
	Request Request
	Reason  string
	// Latency is the time from the request to this notification.
	Latency time.Duration
}

// Config configures a Machine. Zero durations take the defaults; a zero
// Watchdog disables it.
type Config struct {
	Debounce  time.Duration
	Stabilize time.Duration
	// Watchdog enters recovery when a layout or thumbnail pass does not
	// report back in time.
	Watchdog time.Duration
	Clock    Clock
	Logger   *slog.Logger
}

// Stats is a snapshot of the machine.
type Stats struct {
	State         State
	Pending       int
	Current       int
	Dropped       uint64
	Completed     uint64
	Failed        uint64
	Rejected      uint64
	LastCompleted time.Time
	RecoveryCause string
}

// Machine is the swap state machine. One mutex guards state and pending;
// timers verify a generation counter before acting.
type Machine struct {
	mu        sync.Mutex
	state     State
	pending   *Request
	current   *Request
	gen       uint64
	timer     Timer
	debounce  time.Duration
	stabilize time.Duration
	watchdog  time.Duration
	clock     Clock
	logger    *slog.Logger
	notify    chan Notification

	dropped       uint64
	completed     uint64
	failed        uint64
	rejected      uint64
	lastCompleted time.Time
	recoveryCause string
}

// New creates an idle machine.
func New(cfg Config) *Machine {
	m := &Machine{
		state:     StateIdle,
		debounce:  cfg.Debounce,
		stabilize: cfg.Stabilize,
		watchdog:  cfg.Watchdog,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		notify:    make(chan Notification, 64),
	}
	if m.debounce <= 0 {
		m.debounce = DefaultDebounce
	}
	if m.stabilize <= 0 {
		m.stabilize = DefaultStabilize
	}
	if m.clock == nil {
		m.clock = RealClock{}
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

// Notifications returns the notification stream.
func (m *Machine) Notifications() <-chan Notification {
	return m.notify
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Request asks for target to become the foreground slot.
func (m *Machine) Request(target int) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRecovery {
		m.rejected++
		return Request{}, ErrRecovering
	}

	req := Request{ID: uuid.NewString(), Target: target, Timestamp: m.clock.Now()}
	m.setPendingLocked(&req)

	switch m.state {
	case StateIdle:
		m.armLocked(m.debounce, m.onDebounce)
		m.setStateLocked(StateSwapRequested)
	case StateStabilizing:
		// The interrupted swap was applied; it just never settles.
		cur := m.takeCurrentLocked()
		m.completed++
		m.lastCompleted = req.Timestamp
		m.emitLocked(Notification{Kind: SwapCompleted, Request: cur})
		m.armLocked(m.debounce, m.onDebounce)
		m.setStateLocked(StateSwapRequested)
	case StateSwapRequested, StateLayoutApplying, StateThumbnailsApplying:
		// Pending overwritten; the running cycle picks it up.
	}
	return req, nil
}

// LayoutFinished reports the outcome of the layout pass for the current
// request.
func (m *Machine) LayoutFinished(ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLayoutApplying {
		return fmt.Errorf("%w: layout finished in state %s", ErrUnexpected, m.state)
	}
	if !ok {
		m.failed++
		m.cancelLocked()
		if m.pending != nil {
			m.dropped++
			m.pending = nil
		}
		cur := m.takeCurrentLocked()
		m.setStateLocked(StateIdle)
		m.emitLocked(Notification{Kind: SwapFailed, Request: cur, Reason: "layout failed"})
		return nil
	}
	m.setStateLocked(StateThumbnailsApplying)
	m.armWatchdogLocked()
	return nil
}

// ThumbnailsFinished reports that the preview surfaces were updated.
func (m *Machine) ThumbnailsFinished() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateThumbnailsApplying {
		return fmt.Errorf("%w: thumbnails finished in state %s", ErrUnexpected, m.state)
	}
	m.armLocked(m.stabilize, m.onStabilize)
	m.setStateLocked(StateStabilizing)
	return nil
}

// EnterRecovery stops accepting requests, dropping anything pending.
func (m *Machine) EnterRecovery(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enterRecoveryLocked(reason)
}

// ExitRecovery returns to idle. ok records whether the seat was repaired.
func (m *Machine) ExitRecovery(ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecovery {
		return fmt.Errorf("%w: exit recovery in state %s", ErrUnexpected, m.state)
	}
	m.logger.Info("leaving recovery", "repaired", ok, "cause", m.recoveryCause)
	m.recoveryCause = ""
	m.setStateLocked(StateIdle)
	return nil
}

// ForceReset discards everything and returns to idle from any state.
func (m *Machine) ForceReset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked()
	m.pending = nil
	m.current = nil
	m.recoveryCause = ""
	m.setStateLocked(StateIdle)
}

// Stats returns a snapshot of the machine.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		State:         m.state,
		Dropped:       m.dropped,
		Completed:     m.completed,
		Failed:        m.failed,
		Rejected:      m.rejected,
		LastCompleted: m.lastCompleted,
		RecoveryCause: m.recoveryCause,
	}
	if m.pending != nil {
		s.Pending = m.pending.Target
	}
	if m.current != nil {
		s.Current = m.current.Target
	}
	return s
}

func (m *Machine) onDebounce(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateSwapRequested {
		return
	}
	m.timer = nil
	if m.pending == nil {
		m.setStateLocked(StateIdle)
		return
	}
	m.startPendingLocked()
}

func (m *Machine) onStabilize(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateStabilizing {
		return
	}
	m.timer = nil
	cur := m.takeCurrentLocked()
	m.completed++
	m.lastCompleted = m.clock.Now()
	m.emitLocked(Notification{Kind: SwapCompleted, Request: cur})

	if m.pending != nil {
		m.startPendingLocked()
		return
	}
	m.setStateLocked(StateIdle)
}

func (m *Machine) onWatchdog(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}
	if m.state != StateLayoutApplying && m.state != StateThumbnailsApplying {
		return
	}
	m.enterRecoveryLocked(fmt.Sprintf("no completion within %s in state %s", m.watchdog, m.state))
}

func (m *Machine) startPendingLocked() {
	m.current = m.pending
	m.pending = nil
	m.setStateLocked(StateLayoutApplying)
	m.armWatchdogLocked()
	m.emitLocked(Notification{Kind: SwapReady, Request: *m.current})
}

func (m *Machine) enterRecoveryLocked(reason string) {
	m.cancelLocked()
	if m.pending != nil {
		m.dropped++
	}
	m.pending = nil
	cur := m.takeCurrentLocked()
	m.recoveryCause = reason
	m.setStateLocked(StateRecovery)
	m.logger.Warn("swap recovery", "reason", reason)
	m.emitLocked(Notification{Kind: RecoveryEntered, Request: cur, Reason: reason})
}

func (m *Machine) setPendingLocked(req *Request) {
	if m.pending != nil {
		m.dropped++
		m.logger.Debug("swap request coalesced", "replaced", m.pending.Target, "target", req.Target)
	}
	m.pending = req
}

func (m *Machine) takeCurrentLocked() Request {
	if m.current == nil {
		return Request{}
	}
	cur := *m.current
	m.current = nil
	return cur
}

// armLocked replaces the running timer. Bumping gen invalidates callbacks
// of the old timer that already started.
func (m *Machine) armLocked(d time.Duration, fn func(uint64)) {
	m.cancelLocked()
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() { fn(gen) })
}

func (m *Machine) armWatchdogLocked() {
	if m.watchdog <= 0 {
		m.cancelLocked()
		return
	}
	m.armLocked(m.watchdog, m.onWatchdog)
}

func (m *Machine) cancelLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("swap state", "from", string(m.state), "to", string(s))
	m.state = s
}

func (m *Machine) emitLocked(n Notification) {
	if !n.Request.Timestamp.IsZero() {
		n.Latency = m.clock.Now().Sub(n.Request.Timestamp)
	}
	select {
	case m.notify <- n:
	default:
		m.logger.Warn("swap notification dropped", "kind", string(n.Kind), "target", n.Request.Target)
	}
}
