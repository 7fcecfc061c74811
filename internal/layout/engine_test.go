package layout

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/region"
)

type fakeBackend struct {
	mu         sync.Mutex
	displays   []platform.Display
	windows    map[platform.WindowID]platform.Window
	borderless map[platform.WindowID]bool
	// sticky windows ignore MakeBorderless.
	sticky    map[platform.WindowID]bool
	batches   [][]platform.Placement
	moves     []platform.WindowID
	focused   []platform.WindowID
	raised    []platform.WindowID
	restored  []platform.WindowID
	failBatch bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		displays: []platform.Display{
			{ID: 0, Name: "left", Bounds: platform.Rect{Width: 1920, Height: 1080}, Usable: platform.Rect{Width: 1920, Height: 1040}},
			{ID: 1, Name: "right", Bounds: platform.Rect{X: 1920, Width: 2560, Height: 1440}, Usable: platform.Rect{X: 1920, Width: 2560, Height: 1440}, Primary: true},
		},
		windows:    make(map[platform.WindowID]platform.Window),
		borderless: make(map[platform.WindowID]bool),
		sticky:     make(map[platform.WindowID]bool),
	}
}

func (f *fakeBackend) Displays() ([]platform.Display, error) { return f.displays, nil }

func (f *fakeBackend) IsBorderless(w platform.WindowID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.borderless[w], nil
}

func (f *fakeBackend) MakeBorderless(w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sticky[w] {
		f.borderless[w] = true
	}
	return nil
}

func (f *fakeBackend) RestoreBorder(w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.borderless[w] = false
	return nil
}

func (f *fakeBackend) Window(w platform.WindowID) (platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	win, ok := f.windows[w]
	if !ok {
		return platform.Window{}, errors.New("no such window")
	}
	return win, nil
}

func (f *fakeBackend) ApplyBatch(p []platform.Placement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return platform.ErrBatchFailed
	}
	f.batches = append(f.batches, append([]platform.Placement(nil), p...))
	for _, pl := range p {
		win := f.windows[pl.Window]
		win.Bounds.X, win.Bounds.Y = pl.Bounds.X, pl.Bounds.Y
		if pl.Resize {
			win.Bounds = pl.Bounds
		}
		f.windows[pl.Window] = win
	}
	return nil
}

func (f *fakeBackend) MoveResize(w platform.WindowID, r platform.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, w)
	win := f.windows[w]
	win.Bounds = r
	f.windows[w] = win
	return nil
}

func (f *fakeBackend) Move(w platform.WindowID, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, w)
	return nil
}

func (f *fakeBackend) Restore(w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, w)
	win := f.windows[w]
	win.Visible = true
	f.windows[w] = win
	return nil
}

func (f *fakeBackend) Raise(w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, w)
	return nil
}

func (f *fakeBackend) Focus(w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, w)
	return nil
}

func (f *fakeBackend) lastBatch() []platform.Placement {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

type fakeSlots struct {
	windows map[int]platform.WindowID
	// lost slots stay active but report no window.
	lost map[int]bool
}

func (f *fakeSlots) ActiveSlots() []int {
	ids := make([]int, 0, len(f.windows))
	for id := range f.windows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (f *fakeSlots) Window(id int) (platform.WindowID, bool) {
	if f.lost[id] {
		return 0, false
	}
	w, ok := f.windows[id]
	return w, ok
}

func (f *fakeSlots) add(backend *fakeBackend, id int) {
	w := platform.WindowID(0x100 * id)
	f.windows[id] = w
	backend.windows[w] = platform.Window{ID: w, Visible: true, Bounds: platform.Rect{X: 10, Y: 10, Width: 800, Height: 600}}
}

func seat(backend *fakeBackend, ids ...int) *fakeSlots {
	s := &fakeSlots{windows: make(map[int]platform.WindowID), lost: make(map[int]bool)}
	for _, id := range ids {
		s.add(backend, id)
	}
	return s
}

func fourUp() region.Template {
	t := region.Template{Name: "four-up"}
	for i := 0; i < 4; i++ {
		t.Regions = append(t.Regions, region.SlotRegion{
			Fore: platform.Rect{Width: 1920, Height: 1040},
			Back: platform.Rect{X: 220 * i, Y: 880, Width: 200, Height: 150},
		})
	}
	return t
}

func twoUp() region.Template {
	return region.Template{Name: "two-up", Regions: []region.SlotRegion{
		{Fore: platform.Rect{Width: 1920, Height: 1040}, Back: platform.Rect{X: 0, Y: 880, Width: 200, Height: 150}},
		{Fore: platform.Rect{Width: 1920, Height: 1040}, Back: platform.Rect{X: 220, Y: 880, Width: 200, Height: 150}},
	}}
}

func leftMonitor() Options {
	opts := DefaultOptions()
	opts.MonitorIndex = 0
	return opts
}

func TestSingleSwapTouchesTwoWindows(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	e := NewEngine(backend, slots, leftMonitor(), nil)
	if err := e.SetTemplate(twoUp()); err != nil {
		t.Fatalf("SetTemplate() error: %v", err)
	}

	first, err := e.ApplyLayoutWithMain(1)
	if err != nil {
		t.Fatalf("first apply error: %v", err)
	}
	if first.Path != PathFull || first.Touched != 2 {
		t.Fatalf("first apply = %+v, want full path touching 2", first)
	}

	res, err := e.ApplyLayoutWithMain(2)
	if err != nil {
		t.Fatalf("swap error: %v", err)
	}
	if res.Path != PathFast {
		t.Fatalf("swap path = %s, want fast", res.Path)
	}
	if res.Touched != 2 {
		t.Fatalf("touched = %d, want 2", res.Touched)
	}

	batch := backend.lastBatch()
	if len(batch) != 2 {
		t.Fatalf("batch has %d entries, want 2", len(batch))
	}
	for _, p := range batch {
		if p.Resize {
			t.Fatalf("fast path must not resize: %+v", p)
		}
	}
	if batch[0].Window != 0x100 || batch[0].Bounds.X < 1920+2560 {
		t.Fatalf("previous foreground not parked off-screen: %+v", batch[0])
	}
	if batch[1].Window != 0x200 || batch[1].Bounds.X != 0 || batch[1].Bounds.Y != 0 || !batch[1].Raise {
		t.Fatalf("new foreground not moved to fore region: %+v", batch[1])
	}
	if got := backend.focused[len(backend.focused)-1]; got != 0x200 {
		t.Fatalf("focused window = 0x%x, want 0x200", got)
	}
	if e.Foreground() != 2 {
		t.Fatalf("Foreground() = %d, want 2", e.Foreground())
	}
}

func TestInsufficientSlotsDefersLayout(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1)
	tmpl := twoUp()
	tmpl.Regions = append(tmpl.Regions, tmpl.Regions[0], tmpl.Regions[1])
	e := NewEngine(backend, slots, leftMonitor(), nil)
	if err := e.SetTemplate(tmpl); err != nil {
		t.Fatalf("SetTemplate() error: %v", err)
	}

	res, err := e.ApplyLayout(1)
	if err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if res.Path != PathDeferred {
		t.Fatalf("path = %s, want deferred", res.Path)
	}
	if len(backend.batches) != 0 || len(backend.moves) != 0 {
		t.Fatalf("deferred layout moved windows")
	}
}

func TestDeferredLayoutCompletesOnceSlotsFillTemplate(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	e := NewEngine(backend, slots, leftMonitor(), nil)
	if err := e.SetTemplate(fourUp()); err != nil {
		t.Fatalf("SetTemplate() error: %v", err)
	}

	for _, add := range []int{0, 3} {
		if add != 0 {
			slots.add(backend, add)
		}
		res, err := e.ApplyLayout(1)
		if err != nil {
			t.Fatalf("ApplyLayout() error: %v", err)
		}
		if res.Path != PathDeferred {
			t.Fatalf("path with %d of 4 slots = %s, want deferred", len(slots.windows), res.Path)
		}
	}
	if len(backend.batches) != 0 || len(backend.moves) != 0 {
		t.Fatalf("deferred layout moved windows")
	}

	slots.add(backend, 4)
	res, err := e.ApplyLayout(1)
	if err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if res.Path != PathFull || res.Touched != 4 {
		t.Fatalf("result = %+v, want full path touching 4", res)
	}
	if st := e.Status(); st.Bound != 4 || st.Capacity != 4 {
		t.Fatalf("status = %+v, want 4 of 4 bound", st)
	}
}

func TestFailedSwapKeepsBackRegions(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	opts := leftMonitor()
	opts.UsePreviewSurfaces = false
	e := NewEngine(backend, slots, opts, nil)
	_ = e.SetTemplate(twoUp())

	if _, err := e.ApplyLayout(1); err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}

	slots.lost[2] = true
	if _, err := e.ApplyLayout(2); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("ApplyLayout(2) error = %v, want ErrNoWindow", err)
	}
	if e.Foreground() != 1 {
		t.Fatalf("Foreground() = %d, want 1 after failed swap", e.Foreground())
	}

	slots.lost[2] = false
	if _, err := e.ApplyLayout(1); err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if got := backend.windows[0x200].Bounds; got.X != 220 || got.Y != 880 {
		t.Fatalf("slot 2 bounds = %+v, want its own back region", got)
	}
}

func TestFullPathWithoutPreviewUsesBackRegions(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	opts := leftMonitor()
	opts.UsePreviewSurfaces = false
	e := NewEngine(backend, slots, opts, nil)
	_ = e.SetTemplate(twoUp())

	if _, err := e.ApplyLayout(1); err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	res, err := e.ApplyLayout(2)
	if err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if res.Path != PathFull {
		t.Fatalf("path = %s, want full without preview surfaces", res.Path)
	}
	if len(res.Background) != 0 {
		t.Fatalf("background targets without preview surfaces: %v", res.Background)
	}

	// Slot 1 inherits the back region slot 2 vacated.
	got := backend.windows[0x100].Bounds
	if got.X != 220 || got.Y != 880 || got.Width != 200 {
		t.Fatalf("slot 1 bounds = %+v, want slot 2's back region", got)
	}
}

func TestLeaveHoleKeepsOwnBackRegion(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	opts := leftMonitor()
	opts.LeaveHole = true
	e := NewEngine(backend, slots, opts, nil)
	_ = e.SetTemplate(twoUp())

	_, _ = e.ApplyLayout(1)
	res, err := e.ApplyLayout(2)
	if err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if len(res.Background) != 1 || res.Background[0].Slot != 1 {
		t.Fatalf("background = %+v, want slot 1", res.Background)
	}
	if res.Background[0].Dest.X != 0 {
		t.Fatalf("slot 1 thumbnail at x=%d, want its own back region at 0", res.Background[0].Dest.X)
	}
}

func TestInvalidRegionNeverApplied(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	opts := leftMonitor()
	opts.UsePreviewSurfaces = false
	tmpl := twoUp()
	tmpl.Regions[1].Back = platform.Rect{}
	e := NewEngine(backend, slots, opts, nil)
	if err := e.SetTemplate(tmpl); err != nil {
		t.Fatalf("SetTemplate() error: %v", err)
	}
	opts.LeaveHole = true
	e.SetOptions(opts)

	res, err := e.ApplyLayout(1)
	if err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if res.Touched != 1 {
		t.Fatalf("touched = %d, want only the focused window", res.Touched)
	}
	for _, p := range backend.lastBatch() {
		if !p.Bounds.Valid() {
			t.Fatalf("invalid rect sent to backend: %+v", p)
		}
	}
}

func TestSetTemplateRejectsZeroFore(t *testing.T) {
	e := NewEngine(newFakeBackend(), &fakeSlots{}, DefaultOptions(), nil)
	tmpl := twoUp()
	tmpl.Regions[0].Fore.Width = 0
	if err := e.SetTemplate(tmpl); err == nil {
		t.Fatalf("expected error for zero-width fore region")
	}
}

func TestMonitorIndexFallsBackToPrimary(t *testing.T) {
	backend := newFakeBackend()
	for _, idx := range []int{-1, 7} {
		d, err := ResolveDisplay(backend.displays, idx)
		if err != nil {
			t.Fatalf("ResolveDisplay(%d) error: %v", idx, err)
		}
		if d.Name != "right" {
			t.Fatalf("ResolveDisplay(%d) = %s, want primary", idx, d.Name)
		}
	}
	if d, _ := ResolveDisplay(backend.displays, 0); d.Name != "left" {
		t.Fatalf("ResolveDisplay(0) = %s, want left", d.Name)
	}

	slots := seat(backend, 1, 2)
	opts := DefaultOptions()
	e := NewEngine(backend, slots, opts, nil)
	_ = e.SetTemplate(twoUp())
	if _, err := e.ApplyLayout(1); err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if got := backend.windows[0x100].Bounds.X; got != 1920 {
		t.Fatalf("fore x = %d, want primary display origin 1920", got)
	}
}

func TestStyleRejectionProtectsWindow(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	backend.sticky[0x200] = true
	e := NewEngine(backend, slots, leftMonitor(), nil)
	_ = e.SetTemplate(twoUp())

	if _, err := e.ApplyLayout(1); err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if !e.IsProtected(0x200) {
		t.Fatalf("window with rejected style change not protected")
	}
	if e.IsProtected(0x100) {
		t.Fatalf("borderless window wrongly protected")
	}
	if !backend.borderless[0x100] {
		t.Fatalf("window 0x100 not made borderless")
	}
}

func TestBatchFailureFallsBackToIndividualMoves(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	backend.failBatch = true
	e := NewEngine(backend, slots, leftMonitor(), nil)
	_ = e.SetTemplate(twoUp())

	res, err := e.ApplyLayout(1)
	if err != nil {
		t.Fatalf("ApplyLayout() error: %v", err)
	}
	if !res.Fallback {
		t.Fatalf("expected fallback after batch failure")
	}
	if len(backend.moves) != 2 {
		t.Fatalf("individual moves = %d, want 2", len(backend.moves))
	}
}

func TestRaiseOnlyWithoutTemplate(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	w := backend.windows[0x200]
	w.Visible = false
	backend.windows[0x200] = w
	e := NewEngine(backend, slots, DefaultOptions(), nil)

	res, err := e.ApplyLayoutWithMain(2)
	if err != nil {
		t.Fatalf("ApplyLayoutWithMain() error: %v", err)
	}
	if res.Path != PathRaiseOnly {
		t.Fatalf("path = %s, want raise-only", res.Path)
	}
	if len(backend.restored) != 1 || backend.restored[0] != 0x200 {
		t.Fatalf("minimized window not restored: %v", backend.restored)
	}
	if len(backend.batches) != 0 {
		t.Fatalf("raise-only must not reposition")
	}
}

func TestRestorePutsWindowsBack(t *testing.T) {
	backend := newFakeBackend()
	slots := seat(backend, 1, 2)
	e := NewEngine(backend, slots, leftMonitor(), nil)
	_ = e.SetTemplate(twoUp())
	_, _ = e.ApplyLayout(1)

	if err := e.Restore(); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	got := backend.windows[0x100].Bounds
	if got.X != 10 || got.Width != 800 {
		t.Fatalf("window 0x100 bounds = %+v, want original", got)
	}
	if backend.borderless[0x100] {
		t.Fatalf("decorations not restored")
	}
}
