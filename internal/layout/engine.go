package layout

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/region"
)

// Backend is the subset of the platform the engine drives.
type Backend interface {
	platform.Topology
	platform.Styler

	Window(windowID platform.WindowID) (platform.Window, error)
	ApplyBatch(placements []platform.Placement) error
	MoveResize(windowID platform.WindowID, bounds platform.Rect) error
	Move(windowID platform.WindowID, x, y int) error
	Restore(windowID platform.WindowID) error
	Raise(windowID platform.WindowID) error
	Focus(windowID platform.WindowID) error
}

// Slots reports which slots own a window.
type Slots interface {
	ActiveSlots() []int
	Window(id int) (platform.WindowID, bool)
}

// Target is a background slot the compositor should draw.
type Target struct {
	Slot   int
	Window platform.WindowID
	Dest   platform.Rect
}

// Result describes one layout application.
type Result struct {
	Path       Path
	Focus      int
	Touched    int
	Fallback   bool
	Background []Target
}

// Status is a snapshot of the engine for status output.
type Status struct {
	Template   string
	Capacity   int
	Bound      int
	Foreground int
	Applied    bool
	Protected  int
	Parked     int
}

// parkMargin keeps parked windows clear of every display.
const parkMargin = 64

var ErrNoWindow = errors.New("slot has no window")

// Engine applies the template to the active slots. One mutex serialises
// every application.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	slots   Slots
	logger  *slog.Logger
	opts    Options

	template   region.Template
	regions    region.Map
	foreground int
	applied    bool

	borderless map[platform.WindowID]bool
	protected  map[platform.WindowID]bool
	parked     map[int]platform.Rect
	// placed is the slot -> window binding of the last full application.
	placed map[int]platform.WindowID
	// backOwner maps a slot to the slot whose back region it occupies.
	backOwner map[int]int
	// original holds geometry from before the engine first moved a window.
	original map[platform.WindowID]platform.Rect
}

// NewEngine creates an engine with no template.
func NewEngine(backend Backend, slots Slots, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		backend:    backend,
		slots:      slots,
		logger:     logger,
		opts:       opts,
		borderless: make(map[platform.WindowID]bool),
		protected:  make(map[platform.WindowID]bool),
		parked:     make(map[int]platform.Rect),
		placed:     make(map[int]platform.WindowID),
		backOwner:  make(map[int]int),
		original:   make(map[platform.WindowID]platform.Rect),
	}
}

// SetTemplate replaces the template and recomputes the region map. The
// next application takes the full path.
func (e *Engine) SetTemplate(t region.Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.template = t
	e.applied = false
	e.remapLocked()
	return nil
}

// Template returns the current template.
func (e *Engine) Template() region.Template {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.template
}

// SetOptions replaces the options. The next application takes the full path.
func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = opts
	e.applied = false
}

// Options returns the current options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// RemapToActiveSlots rederives the region map from the active slots.
func (e *Engine) RemapToActiveSlots() region.Map {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remapLocked()
}

// Foreground returns the slot last brought to the fore region.
func (e *Engine) Foreground() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.foreground
}

// Invalidate forces the next application onto the full path.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.applied = false
	e.mu.Unlock()
}

// Forget drops per-window state for a window that is no longer owned.
func (e *Engine) Forget(w platform.WindowID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.borderless, w)
	delete(e.protected, w)
	delete(e.original, w)
	for slot, pw := range e.placed {
		if pw == w {
			delete(e.placed, slot)
			delete(e.parked, slot)
		}
	}
	e.applied = false
}

// IsProtected reports whether the window's style could not be changed.
func (e *Engine) IsProtected(w platform.WindowID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protected[w]
}

// Status returns a snapshot for status output.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Template:   e.template.Name,
		Capacity:   e.template.Len(),
		Bound:      e.regions.Len(),
		Foreground: e.foreground,
		Applied:    e.applied,
		Protected:  len(e.protected),
		Parked:     len(e.parked),
	}
}

// ApplyLayoutWithMain makes slot the foreground and applies the layout.
// Without a usable template the target window is only raised and focused.
func (e *Engine) ApplyLayoutWithMain(slot int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.remapLocked()
	if e.template.Empty() {
		return e.raiseOnlyLocked(slot)
	}
	if !e.template.HasEnoughSlotsForTemplate(len(e.slots.ActiveSlots())) {
		return Result{Path: PathDeferred, Focus: slot}, nil
	}
	if _, bound := e.regions.Get(slot); !bound {
		// Slots beyond the template capacity have no regions.
		return e.raiseOnlyLocked(slot)
	}
	return e.applyLocked(slot)
}

// FocusOnly raises and focuses slot without moving any other window.
func (e *Engine) FocusOnly(slot int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.raiseOnlyLocked(slot)
}

// ApplyLayout applies the template, focusing focus or, when focus is 0,
// keeping the current foreground.
func (e *Engine) ApplyLayout(focus int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.remapLocked()
	if e.template.Empty() {
		if focus == 0 {
			focus = e.foreground
		}
		if focus == 0 {
			return Result{Path: PathNone}, nil
		}
		return e.raiseOnlyLocked(focus)
	}
	return e.applyLocked(focus)
}

// Restore puts every window the engine moved back where it found it and
// gives back the decorations it removed.
func (e *Engine) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for w, r := range e.original {
		if err := e.backend.MoveResize(w, r); err != nil {
			errs = append(errs, fmt.Errorf("restore 0x%x: %w", uint32(w), err))
		}
	}
	for w := range e.borderless {
		if err := e.backend.RestoreBorder(w); err != nil {
			errs = append(errs, fmt.Errorf("restore border 0x%x: %w", uint32(w), err))
		}
	}
	e.original = make(map[platform.WindowID]platform.Rect)
	e.borderless = make(map[platform.WindowID]bool)
	e.parked = make(map[int]platform.Rect)
	e.placed = make(map[int]platform.WindowID)
	e.applied = false
	return errors.Join(errs...)
}

func (e *Engine) remapLocked() region.Map {
	e.regions = region.Remap(e.template, e.slots.ActiveSlots())
	e.syncBackOwnersLocked()
	return e.regions
}

// syncBackOwnersLocked keeps backOwner a permutation of the bound slots,
// resetting to identity whenever the bound set changes.
func (e *Engine) syncBackOwnersLocked() {
	bound := e.regions.Slots()
	valid := len(e.backOwner) == len(bound)
	used := make(map[int]bool, len(bound))
	for _, id := range bound {
		owner, ok := e.backOwner[id]
		if !ok || used[owner] {
			valid = false
			break
		}
		if _, isBound := e.regions.Get(owner); !isBound {
			valid = false
			break
		}
		used[owner] = true
	}
	if valid {
		return
	}
	e.backOwner = make(map[int]int, len(bound))
	for _, id := range bound {
		e.backOwner[id] = id
	}
}

func (e *Engine) resolveFocusLocked(focus int) int {
	if focus != 0 {
		if _, ok := e.regions.Get(focus); ok {
			return focus
		}
	}
	if _, ok := e.regions.Get(e.foreground); ok {
		return e.foreground
	}
	if ids := e.regions.Slots(); len(ids) > 0 {
		return ids[0]
	}
	return 0
}

func (e *Engine) applyLocked(focus int) (Result, error) {
	active := len(e.slots.ActiveSlots())
	if !e.template.HasEnoughSlotsForTemplate(active) {
		e.logger.Debug("layout deferred", "template", e.template.Name, "capacity", e.template.Len(), "active", active)
		return Result{Path: PathDeferred, Focus: focus}, nil
	}

	focus = e.resolveFocusLocked(focus)
	if focus == 0 {
		return Result{Path: PathNone}, nil
	}

	display, err := e.displayLocked()
	if err != nil {
		return Result{}, err
	}

	prev := e.foreground
	var owners map[int]int
	if prev != 0 && prev != focus && !e.opts.LeaveHole {
		owners = maps.Clone(e.backOwner)
		e.swapBackOwnersLocked(prev, focus)
	}

	var res Result
	if e.canFastPathLocked(prev, focus) {
		res, err = e.fastLocked(prev, focus, display)
	} else {
		res, err = e.fullLocked(focus, display)
	}
	if err != nil && owners != nil {
		// Nothing was committed; keep the previous back-region assignment.
		e.backOwner = owners
	}
	return res, err
}

func (e *Engine) swapBackOwnersLocked(prev, focus int) {
	pOwner, ok1 := e.backOwner[prev]
	fOwner, ok2 := e.backOwner[focus]
	if !ok1 || !ok2 {
		return
	}
	e.backOwner[prev] = fOwner
	e.backOwner[focus] = pOwner
}

func (e *Engine) canFastPathLocked(prev, focus int) bool {
	if !e.applied || !e.opts.UsePreviewSurfaces || prev == 0 || prev == focus {
		return false
	}
	if _, ok := e.regions.Get(prev); !ok {
		return false
	}
	bound := e.regions.Slots()
	if len(bound) != len(e.placed) {
		return false
	}
	for _, id := range bound {
		w, ok := e.slots.Window(id)
		if !ok || e.placed[id] != w {
			return false
		}
	}
	return true
}

func (e *Engine) fastLocked(prev, focus int, display platform.Display) (Result, error) {
	origin := e.originLocked(display)
	prevWin := e.placed[prev]
	focusWin := e.placed[focus]
	fore, _ := e.regions.Get(focus)
	back, _ := e.regions.Get(prev)
	dest := fore.Fore.Offset(origin.X, origin.Y)
	if !dest.Valid() {
		return e.fullLocked(focus, display)
	}
	park := e.parkRect(back)

	placements := []platform.Placement{
		{Window: prevWin, Bounds: park},
		{Window: focusWin, Bounds: dest, Raise: true},
	}
	fallback := e.commitLocked(placements)
	delete(e.parked, focus)
	e.parked[prev] = park

	if err := e.backend.Focus(focusWin); err != nil {
		e.logger.Warn("focus failed", "slot", focus, "error", err)
	}
	e.foreground = focus

	e.logger.Debug("layout applied", "path", PathFast.String(), "focus", focus, "previous", prev)
	return Result{
		Path:       PathFast,
		Focus:      focus,
		Touched:    len(placements),
		Fallback:   fallback,
		Background: e.backgroundLocked(focus, origin),
	}, nil
}

func (e *Engine) fullLocked(focus int, display platform.Display) (Result, error) {
	origin := e.originLocked(display)
	focusWin, ok := e.slots.Window(focus)
	if !ok {
		return Result{}, fmt.Errorf("slot %d: %w", focus, ErrNoWindow)
	}

	placements := make([]platform.Placement, 0, e.regions.Len())
	placed := make(map[int]platform.WindowID, e.regions.Len())
	e.parked = make(map[int]platform.Rect)

	for _, id := range e.regions.Slots() {
		w, ok := e.slots.Window(id)
		if !ok {
			continue
		}
		r, _ := e.regions.Get(id)
		e.rememberLocked(w)
		e.stripChromeLocked(id, w)

		var dest platform.Rect
		switch {
		case id == focus:
			dest = r.Fore.Offset(origin.X, origin.Y)
			if info, err := e.backend.Window(w); err == nil && !info.Visible {
				if err := e.backend.Restore(w); err != nil {
					e.logger.Warn("restore failed", "slot", id, "error", err)
				}
			}
		case e.opts.UsePreviewSurfaces:
			dest = e.parkRect(r)
			e.parked[id] = dest
		default:
			dest = e.backRegionLocked(id).Offset(origin.X, origin.Y)
		}

		placed[id] = w
		if !dest.Valid() {
			e.logger.Warn("skipping invalid region", "slot", id, "width", dest.Width, "height", dest.Height)
			continue
		}
		placements = append(placements, platform.Placement{
			Window: w,
			Bounds: dest,
			Resize: e.opts.RescaleWindows,
			Raise:  id == focus,
		})
	}

	fallback := e.commitLocked(placements)

	if err := e.backend.Raise(focusWin); err != nil {
		e.logger.Warn("raise failed", "slot", focus, "error", err)
	}
	if err := e.backend.Focus(focusWin); err != nil {
		e.logger.Warn("focus failed", "slot", focus, "error", err)
	}

	e.placed = placed
	e.foreground = focus
	e.applied = true

	e.logger.Debug("layout applied", "path", PathFull.String(), "focus", focus, "windows", len(placements))
	res := Result{
		Path:     PathFull,
		Focus:    focus,
		Touched:  len(placements),
		Fallback: fallback,
	}
	if e.opts.UsePreviewSurfaces {
		res.Background = e.backgroundLocked(focus, origin)
	}
	return res, nil
}

func (e *Engine) raiseOnlyLocked(slot int) (Result, error) {
	w, ok := e.slots.Window(slot)
	if !ok {
		return Result{}, fmt.Errorf("slot %d: %w", slot, ErrNoWindow)
	}
	if info, err := e.backend.Window(w); err == nil && !info.Visible {
		if err := e.backend.Restore(w); err != nil {
			e.logger.Warn("restore failed", "slot", slot, "error", err)
		}
	}
	if err := e.backend.Raise(w); err != nil {
		return Result{}, fmt.Errorf("raise slot %d: %w", slot, err)
	}
	if err := e.backend.Focus(w); err != nil {
		return Result{}, fmt.Errorf("focus slot %d: %w", slot, err)
	}
	e.foreground = slot
	return Result{Path: PathRaiseOnly, Focus: slot, Touched: 1}, nil
}

// commitLocked sends one batch and falls back to individual moves when
// the batch is rejected. It reports whether the fallback ran.
func (e *Engine) commitLocked(placements []platform.Placement) bool {
	if len(placements) == 0 {
		return false
	}
	err := e.backend.ApplyBatch(placements)
	if err == nil {
		return false
	}
	e.logger.Warn("batch reposition failed, moving windows individually", "windows", len(placements), "error", err)
	for _, p := range placements {
		var perr error
		if p.Resize {
			perr = e.backend.MoveResize(p.Window, p.Bounds)
		} else {
			perr = e.backend.Move(p.Window, p.Bounds.X, p.Bounds.Y)
		}
		if perr != nil {
			e.logger.Warn("move failed", "window", fmt.Sprintf("0x%x", uint32(p.Window)), "error", perr)
			continue
		}
		if p.Raise {
			if rerr := e.backend.Raise(p.Window); rerr != nil {
				e.logger.Warn("raise failed", "window", fmt.Sprintf("0x%x", uint32(p.Window)), "error", rerr)
			}
		}
	}
	return true
}

// stripChromeLocked removes decorations once per window. A window whose
// style does not change is protected from further attempts.
func (e *Engine) stripChromeLocked(slot int, w platform.WindowID) {
	if !e.opts.MakeBorderless || e.protected[w] || e.borderless[w] {
		return
	}
	if already, err := e.backend.IsBorderless(w); err == nil && already {
		return
	}
	if err := e.backend.MakeBorderless(w); err != nil {
		e.protectLocked(slot, w, err)
		return
	}
	if ok, err := e.backend.IsBorderless(w); err != nil || !ok {
		e.protectLocked(slot, w, err)
		return
	}
	e.borderless[w] = true
}

func (e *Engine) protectLocked(slot int, w platform.WindowID, err error) {
	e.protected[w] = true
	e.logger.Warn("window style change rejected, leaving decorations", "slot", slot, "window", fmt.Sprintf("0x%x", uint32(w)), "error", err)
}

func (e *Engine) rememberLocked(w platform.WindowID) {
	if _, ok := e.original[w]; ok {
		return
	}
	if info, err := e.backend.Window(w); err == nil && info.Bounds.Valid() {
		e.original[w] = info.Bounds
	}
}

func (e *Engine) backRegionLocked(slot int) platform.Rect {
	owner, ok := e.backOwner[slot]
	if !ok {
		owner = slot
	}
	r, ok := e.regions.Get(owner)
	if !ok {
		r, _ = e.regions.Get(slot)
	}
	return r.Back
}

func (e *Engine) backgroundLocked(focus int, origin platform.Rect) []Target {
	var out []Target
	for _, id := range e.regions.Slots() {
		if id == focus {
			continue
		}
		w, ok := e.slots.Window(id)
		if !ok {
			continue
		}
		dest := e.backRegionLocked(id).Offset(origin.X, origin.Y)
		if !dest.Valid() {
			continue
		}
		out = append(out, Target{Slot: id, Window: w, Dest: dest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// parkRect places a window beyond the right edge of the virtual screen,
// keeping the size of its fore region.
func (e *Engine) parkRect(r region.SlotRegion) platform.Rect {
	displays, err := e.backend.Displays()
	vb := platform.VirtualBounds(displays)
	if err != nil || !vb.Valid() {
		vb = platform.Rect{Width: 1, Height: 1}
	}
	return platform.Rect{
		X:      vb.X + vb.Width + parkMargin,
		Y:      vb.Y,
		Width:  r.Fore.Width,
		Height: r.Fore.Height,
	}
}

func (e *Engine) displayLocked() (platform.Display, error) {
	displays, err := e.backend.Displays()
	if err != nil {
		return platform.Display{}, fmt.Errorf("list displays: %w", err)
	}
	return ResolveDisplay(displays, e.opts.MonitorIndex)
}

func (e *Engine) originLocked(d platform.Display) platform.Rect {
	if e.opts.AvoidTaskbar && d.Usable.Valid() {
		return d.Usable
	}
	return d.Bounds
}

// ResolveDisplay picks the display at index; -1 or an out of range index
// falls back to the primary display.
func ResolveDisplay(displays []platform.Display, index int) (platform.Display, error) {
	if index >= 0 && index < len(displays) {
		return displays[index], nil
	}
	return platform.PrimaryOf(displays)
}
