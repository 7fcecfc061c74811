// Package seat is the control path: it turns inputs into swap requests and
// drives the layout engine and preview compositor from the swap machine's
// notifications.
package seat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/multiboxer/internal/journal"
	"github.com/1broseidon/multiboxer/internal/layout"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/preview"
	"github.com/1broseidon/multiboxer/internal/region"
	"github.com/1broseidon/multiboxer/internal/slot"
	"github.com/1broseidon/multiboxer/internal/swap"
)

var (
	ErrQueueFull   = errors.New("input queue is full")
	ErrNoWindow    = errors.New("slot has no window")
	ErrNoTemplates = errors.New("no template source")
)

// TemplateSource resolves template names for a display area.
// *config.Config implements it.
type TemplateSource interface {
	Template(name string, area platform.Rect) (region.Template, error)
	TemplateNames() []string
}

// Recorder persists swap and acquisition outcomes.
type Recorder interface {
	RecordSwap(rec *journal.SwapRecord) error
	RecordAcquisition(rec *journal.AcquisitionRecord) error
}

// Liveness reports whether a process still runs.
type Liveness interface {
	Alive(pid int) bool
}

// Config wires optional collaborators.
type Config struct {
	Templates      TemplateSource
	Topology       platform.Topology
	Journal        Recorder
	Liveness       Liveness
	StatePath      string
	PreviewRefresh time.Duration
	Logger         *slog.Logger
}

// Seat owns the control path. Run must be running for inputs and events
// to be handled.
type Seat struct {
	slots    *slot.Manager
	engine   *layout.Engine
	machine  *swap.Machine
	previews *preview.Manager
	topology platform.Topology
	journal  Recorder
	liveness Liveness
	logger   *slog.Logger
	refresh  time.Duration
	inputs   chan Input

	mu        sync.Mutex
	ctx       context.Context
	templates TemplateSource
	template  string
	statePath string
	last      layout.Result
	lastID    string
	lastAt    time.Time
	lastErr   string
	started   time.Time
}

// New creates a seat around already constructed components.
func New(cfg Config, slots *slot.Manager, engine *layout.Engine, machine *swap.Machine, previews *preview.Manager) *Seat {
	s := &Seat{
		slots:     slots,
		engine:    engine,
		machine:   machine,
		previews:  previews,
		topology:  cfg.Topology,
		journal:   cfg.Journal,
		liveness:  cfg.Liveness,
		logger:    cfg.Logger,
		refresh:   cfg.PreviewRefresh,
		inputs:    make(chan Input, 32),
		ctx:       context.Background(),
		templates: cfg.Templates,
		statePath: cfg.StatePath,
		started:   time.Now(),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.previews == nil {
		s.previews = preview.NewManager(nil, s.logger)
	}
	return s
}

// Submit queues an input for the control path.
func (s *Seat) Submit(in Input) error {
	if in.Action == ActionFocus {
		if in.SlotID == nil {
			return fmt.Errorf("focus requires a slot id")
		}
		if _, ok := s.slots.Window(*in.SlotID); !ok {
			return fmt.Errorf("slot %d: %w", *in.SlotID, ErrNoWindow)
		}
	}
	select {
	case s.inputs <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

// WindowActivated is the active-window watch callback.
func (s *Seat) WindowActivated(w platform.WindowID) {
	if w == 0 {
		return
	}
	select {
	case s.inputs <- Input{Action: ActionActivate, Source: SourceWindow, Window: w}:
	default:
	}
}

// Run handles inputs, swap notifications, slot events and preview clicks
// until ctx is cancelled.
func (s *Seat) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if s.refresh > 0 {
		go s.previews.Run(ctx, s.refresh)
	}

	s.logger.Info("seat started", "template", s.TemplateName())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("seat stopped")
			return ctx.Err()
		case in := <-s.inputs:
			s.handleInput(in)
		case n := <-s.machine.Notifications():
			s.handleNotification(n)
		case ev := <-s.slots.Events():
			s.handleSlotEvent(ev)
		case id := <-s.previews.Clicks():
			s.handleInput(Focus(id, SourcePreview))
		}
	}
}

func (s *Seat) handleInput(in Input) {
	s.logger.Debug("input", "input", in.String())
	opts := s.engine.Options()

	switch in.Action {
	case ActionFocus:
		if in.SlotID == nil {
			return
		}
		id := *in.SlotID
		if in.Source == SourceHotkey && !opts.SwapOnHotkeyFocus {
			if _, err := s.engine.FocusOnly(id); err != nil {
				s.logger.Warn("focus failed", "slot", id, "error", err)
				return
			}
			s.slots.SetForeground(id)
			return
		}
		s.request(id)

	case ActionActivate:
		if !opts.SwapOnActivate {
			return
		}
		id, ok := s.slots.SlotByWindow(in.Window)
		if !ok || id == s.engine.Foreground() {
			return
		}
		s.request(id)

	case ActionNext, ActionPrevious:
		step := 1
		if in.Action == ActionPrevious {
			step = -1
		}
		if id, ok := cycle(s.slots.ActiveSlots(), s.engine.Foreground(), step); ok {
			s.request(id)
		}

	case ActionRelayout:
		s.relayout()

	case ActionReset:
		s.machine.ForceReset()
		s.engine.Invalidate()
		s.previews.HideAll()
		s.logger.Info("seat reset")
	}
}

func (s *Seat) request(id int) {
	req, err := s.machine.Request(id)
	if err != nil {
		s.logger.Warn("swap request rejected", "slot", id, "error", err)
		return
	}
	s.logger.Debug("swap requested", "slot", id, "request", req.ID)
}

// relayout forces a full application around the current foreground, or the
// first active slot when there is none.
func (s *Seat) relayout() {
	active := s.slots.ActiveSlots()
	if len(active) == 0 {
		s.previews.HideAll()
		return
	}
	target := s.engine.Foreground()
	if !contains(active, target) {
		target = active[0]
	}
	s.engine.Invalidate()
	s.request(target)
}

func (s *Seat) handleNotification(n swap.Notification) {
	switch n.Kind {
	case swap.SwapReady:
		s.applySwap(n.Request)

	case swap.SwapCompleted:
		s.mu.Lock()
		res := s.last
		matched := s.lastID == n.Request.ID
		s.mu.Unlock()
		rec := &journal.SwapRecord{
			RequestID: n.Request.ID,
			Slot:      n.Request.Target,
			Outcome:   journal.OutcomeCompleted,
			LatencyMS: n.Latency.Milliseconds(),
		}
		if matched {
			rec.Path = res.Path.String()
			rec.Touched = res.Touched
		}
		s.recordSwap(rec)
		s.logger.Debug("swap completed", "slot", n.Request.Target, "latency", n.Latency)

	case swap.SwapFailed:
		s.recordSwap(&journal.SwapRecord{
			RequestID: n.Request.ID,
			Slot:      n.Request.Target,
			Outcome:   journal.OutcomeFailed,
			LatencyMS: n.Latency.Milliseconds(),
			Reason:    n.Reason,
		})

	case swap.RecoveryEntered:
		s.previews.HideAll()
		s.logger.Warn("swap machine entered recovery", "reason", n.Reason)
		s.recordSwap(&journal.SwapRecord{
			RequestID: n.Request.ID,
			Slot:      n.Request.Target,
			Outcome:   journal.OutcomeRecovery,
			Reason:    n.Reason,
		})
	}
}

func (s *Seat) applySwap(req swap.Request) {
	res, err := s.engine.ApplyLayoutWithMain(req.Target)

	s.mu.Lock()
	s.last = res
	s.lastID = req.ID
	s.lastAt = time.Now()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("layout failed", "slot", req.Target, "error", err)
		if ferr := s.machine.LayoutFinished(false); ferr != nil {
			s.logger.Debug("layout result ignored", "error", ferr)
		}
		return
	}
	if ferr := s.machine.LayoutFinished(true); ferr != nil {
		// Reset or recovery happened underneath us.
		s.logger.Debug("layout result ignored", "error", ferr)
		return
	}

	if res.Path != layout.PathDeferred && res.Focus != 0 {
		s.slots.SetForeground(res.Focus)
	}
	s.updatePreviews(res)

	if err := s.machine.ThumbnailsFinished(); err != nil {
		s.logger.Debug("thumbnail result ignored", "error", err)
	}
	s.logger.Debug("layout applied", "slot", req.Target, "path", res.Path.String(),
		"touched", res.Touched, "fallback", res.Fallback)
}

func (s *Seat) updatePreviews(res layout.Result) {
	if !s.engine.Options().UsePreviewSurfaces {
		s.previews.HideAll()
		return
	}
	switch res.Path {
	case layout.PathFast, layout.PathFull:
	default:
		return
	}
	targets := make([]preview.Target, 0, len(res.Background))
	for _, t := range res.Background {
		targets = append(targets, preview.Target{Slot: t.Slot, Source: t.Window, Dest: t.Dest})
	}
	if err := s.previews.Update(targets); err != nil {
		s.logger.Warn("preview update failed", "error", err)
	}
}

func (s *Seat) handleSlotEvent(ev slot.Event) {
	switch ev.Kind {
	case slot.EventAcquired:
		s.logger.Info("slot acquired", "slot", ev.Slot, "window", fmt.Sprintf("0x%x", uint32(ev.Window)),
			"pid", ev.PID, "attempts", ev.Attempts, "elapsed", ev.Elapsed)
		s.recordAcquisition(&journal.AcquisitionRecord{
			Slot:      ev.Slot,
			PID:       ev.PID,
			Window:    uint32(ev.Window),
			Success:   true,
			Attempts:  ev.Attempts,
			ElapsedMS: ev.Elapsed.Milliseconds(),
		})
		s.saveState()
		s.relayout()

	case slot.EventFailed:
		s.recordAcquisition(&journal.AcquisitionRecord{
			Slot:      ev.Slot,
			PID:       ev.PID,
			Success:   false,
			Attempts:  ev.Attempts,
			ElapsedMS: ev.Elapsed.Milliseconds(),
			Error:     errString(ev.Err),
		})

	case slot.EventReleased, slot.EventExited:
		s.engine.Forget(ev.Window)
		s.previews.Forget(ev.Slot)
		s.saveState()
		s.relayout()
	}
}

func (s *Seat) recordSwap(rec *journal.SwapRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordSwap(rec); err != nil {
		s.logger.Warn("journal write failed", "error", err)
	}
}

func (s *Seat) recordAcquisition(rec *journal.AcquisitionRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordAcquisition(rec); err != nil {
		s.logger.Warn("journal write failed", "error", err)
	}
}

// SetTemplate resolves name against the current display and makes it the
// active template. An empty name clears the template.
func (s *Seat) SetTemplate(name string) error {
	t := region.Template{}
	if name != "" {
		s.mu.Lock()
		src := s.templates
		s.mu.Unlock()
		if src == nil {
			return ErrNoTemplates
		}
		area, err := s.templateArea()
		if err != nil {
			return err
		}
		t, err = src.Template(name, area)
		if err != nil {
			return err
		}
	}
	if err := s.engine.SetTemplate(t); err != nil {
		return err
	}

	s.mu.Lock()
	s.template = name
	s.mu.Unlock()
	s.logger.Info("template set", "template", name, "regions", t.Len())

	if len(s.slots.ActiveSlots()) > 0 {
		s.relayoutAsync()
	}
	return nil
}

// relayoutAsync is relayout for callers outside the control path.
func (s *Seat) relayoutAsync() {
	select {
	case s.inputs <- Do(ActionRelayout, SourceIPC):
	default:
		s.logger.Warn("relayout dropped", "error", ErrQueueFull)
	}
}

// TemplateName returns the active template name.
func (s *Seat) TemplateName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// TemplateNames lists the templates that SetTemplate accepts.
func (s *Seat) TemplateNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templates == nil {
		return nil
	}
	return s.templates.TemplateNames()
}

// templateArea is the size generated templates are computed for.
func (s *Seat) templateArea() (platform.Rect, error) {
	if s.topology == nil {
		return platform.Rect{}, platform.ErrNoDisplays
	}
	displays, err := s.topology.Displays()
	if err != nil {
		return platform.Rect{}, err
	}
	opts := s.engine.Options()
	d, err := layout.ResolveDisplay(displays, opts.MonitorIndex)
	if err != nil {
		return platform.Rect{}, err
	}
	if opts.AvoidTaskbar && d.Usable.Valid() {
		return d.Usable, nil
	}
	return d.Bounds, nil
}

// Launch starts the given slots, or every configured slot when ids is
// empty, in the background.
func (s *Seat) Launch(ids []int) ([]int, error) {
	if len(ids) == 0 {
		ids = s.slots.ConfiguredSlots()
	}
	for _, id := range ids {
		if _, ok := s.slots.Get(id); !ok {
			return nil, fmt.Errorf("slot %d: %w", id, slot.ErrUnknownSlot)
		}
	}
	ctx := s.context()
	go func() {
		if err := s.slots.LaunchAll(ctx, ids); err != nil {
			s.logger.Warn("launch finished with errors", "error", err)
		}
	}()
	return ids, nil
}

// Attach binds a running process to a slot.
func (s *Seat) Attach(id, pid int) error {
	return s.slots.Attach(s.context(), id, pid)
}

// Release frees a slot's window.
func (s *Seat) Release(id int) error {
	return s.slots.Release(id)
}

// EnterRecovery stops accepting swaps until ExitRecovery.
func (s *Seat) EnterRecovery(reason string) {
	s.machine.EnterRecovery(reason)
	s.previews.HideAll()
}

// ExitRecovery leaves recovery; a successful exit re-applies the layout.
func (s *Seat) ExitRecovery(ok bool) error {
	if err := s.machine.ExitRecovery(ok); err != nil {
		return err
	}
	if ok {
		s.relayoutAsync()
	}
	return nil
}

// Shutdown restores window geometry and decorations and removes previews.
func (s *Seat) Shutdown() {
	s.previews.Close()
	if err := s.engine.Restore(); err != nil {
		s.logger.Warn("restore failed", "error", err)
	}
	s.saveState()
}

func (s *Seat) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cycle returns the slot step positions away from current in active,
// wrapping. Without a current slot it starts from either end.
func cycle(active []int, current, step int) (int, bool) {
	if len(active) == 0 {
		return 0, false
	}
	idx := -1
	for i, id := range active {
		if id == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		if step < 0 {
			return active[len(active)-1], true
		}
		return active[0], true
	}
	n := len(active)
	return active[((idx+step)%n+n)%n], true
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
