package preview

import (
	"testing"

	"github.com/1broseidon/multiboxer/internal/platform"
)

func TestCoverCropWideSourceTrimsSides(t *testing.T) {
	// 16:9 source into a 4:3 thumbnail.
	got := CoverCrop(1920, 1080, 400, 300)
	want := platform.Rect{X: 240, Y: 0, Width: 1440, Height: 1080}
	if got != want {
		t.Fatalf("CoverCrop() = %+v, want %+v", got, want)
	}
	if s := Scale(got, 400); s != 3.6 {
		t.Fatalf("Scale() = %v, want 3.6", s)
	}
}

func TestCoverCropTallSourceTrimsTopAndBottom(t *testing.T) {
	got := CoverCrop(1000, 1000, 200, 100)
	want := platform.Rect{X: 0, Y: 250, Width: 1000, Height: 500}
	if got != want {
		t.Fatalf("CoverCrop() = %+v, want %+v", got, want)
	}
}

func TestCoverCropSameAspectUsesWholeSource(t *testing.T) {
	got := CoverCrop(1920, 1080, 320, 180)
	if got != (platform.Rect{Width: 1920, Height: 1080}) {
		t.Fatalf("CoverCrop() = %+v, want full source", got)
	}
}

func TestCoverCropInvalid(t *testing.T) {
	if got := CoverCrop(0, 1080, 320, 180); got.Valid() {
		t.Fatalf("CoverCrop() with empty source = %+v", got)
	}
}

type fakeSurface struct {
	slot    int
	binds   []platform.WindowID
	places  []platform.Rect
	visible bool
	gone    bool
	onClick func()
}

func (s *fakeSurface) Bind(w platform.WindowID) error { s.binds = append(s.binds, w); return nil }
func (s *fakeSurface) Place(r platform.Rect) error    { s.places = append(s.places, r); return nil }
func (s *fakeSurface) Refresh() error                 { return nil }
func (s *fakeSurface) Show() error                    { s.visible = true; return nil }
func (s *fakeSurface) Hide() error                    { s.visible = false; return nil }
func (s *fakeSurface) Destroy()                       { s.gone = true }

type fakeFactory struct {
	surfaces map[int]*fakeSurface
}

func (f *fakeFactory) NewSurface(slot int, onClick func()) (Surface, error) {
	s := &fakeSurface{slot: slot, onClick: onClick}
	f.surfaces[slot] = s
	return s, nil
}

func TestManagerRebindsOnlyOnSourceChange(t *testing.T) {
	f := &fakeFactory{surfaces: make(map[int]*fakeSurface)}
	m := NewManager(f, nil)
	back := platform.Rect{X: 0, Y: 880, Width: 200, Height: 150}

	if err := m.Update([]Target{{Slot: 2, Source: 0x200, Dest: back}}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	moved := back.Offset(220, 0)
	if err := m.Update([]Target{{Slot: 2, Source: 0x200, Dest: moved}}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	s := f.surfaces[2]
	if len(s.binds) != 1 {
		t.Fatalf("binds = %d, want 1 for unchanged source", len(s.binds))
	}
	if len(s.places) != 2 || s.places[1] != moved {
		t.Fatalf("places = %v, want move to %v", s.places, moved)
	}

	_ = m.Update([]Target{{Slot: 2, Source: 0x300, Dest: moved}})
	if len(s.binds) != 2 || len(s.places) != 2 {
		t.Fatalf("binds/places = %d/%d, want rebind without move", len(s.binds), len(s.places))
	}
	if st := m.Stats(); st.Rebinds != 2 || st.Moves != 2 || st.Visible != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestManagerHidesSlotsLeavingBackground(t *testing.T) {
	f := &fakeFactory{surfaces: make(map[int]*fakeSurface)}
	m := NewManager(f, nil)
	back := platform.Rect{Width: 200, Height: 150}

	_ = m.Update([]Target{{Slot: 1, Source: 0x100, Dest: back}, {Slot: 2, Source: 0x200, Dest: back.Offset(220, 0)}})
	_ = m.Update([]Target{{Slot: 2, Source: 0x200, Dest: back.Offset(220, 0)}})

	if f.surfaces[1].visible {
		t.Fatalf("surface for new foreground slot still visible")
	}
	if got := m.Visible(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("Visible() = %v, want [2]", got)
	}

	m.Forget(1)
	if !f.surfaces[1].gone {
		t.Fatalf("Forget did not destroy surface")
	}
}

func TestManagerRejectsInvalidDestination(t *testing.T) {
	m := NewManager(&fakeFactory{surfaces: make(map[int]*fakeSurface)}, nil)
	if err := m.Update([]Target{{Slot: 1, Source: 0x100}}); err == nil {
		t.Fatalf("expected error for empty destination")
	}
}

func TestManagerClickEmitsSlot(t *testing.T) {
	f := &fakeFactory{surfaces: make(map[int]*fakeSurface)}
	m := NewManager(f, nil)
	_ = m.Update([]Target{{Slot: 3, Source: 0x300, Dest: platform.Rect{Width: 10, Height: 10}}})

	f.surfaces[3].onClick()
	select {
	case slot := <-m.Clicks():
		if slot != 3 {
			t.Fatalf("clicked slot = %d, want 3", slot)
		}
	default:
		t.Fatalf("no click delivered")
	}
}
