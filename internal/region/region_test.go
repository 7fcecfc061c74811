package region

import (
	"testing"

	"github.com/1broseidon/multiboxer/internal/platform"
)

func twoUp() Template {
	return Template{
		Name: "two-up",
		Regions: []SlotRegion{
			{Fore: platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1040}, Back: platform.Rect{X: 0, Y: 1040, Width: 200, Height: 40}},
			{Fore: platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1040}, Back: platform.Rect{X: 200, Y: 1040, Width: 200, Height: 40}},
		},
	}
}

func TestRemapZipsPositionsWithSortedSlots(t *testing.T) {
	m := Remap(twoUp(), []int{7, 3})

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	got := m.Slots()
	if got[0] != 3 || got[1] != 7 {
		t.Fatalf("Slots() = %v, want [3 7]", got)
	}
	r3, _ := m.Get(3)
	if r3.Back.X != 0 || r3.SlotID != 3 {
		t.Fatalf("slot 3 bound to %+v, want position 0", r3)
	}
	r7, _ := m.Get(7)
	if r7.Back.X != 200 || r7.SlotID != 7 {
		t.Fatalf("slot 7 bound to %+v, want position 1", r7)
	}
}

func TestRemapIsDeterministic(t *testing.T) {
	a := Remap(twoUp(), []int{2, 1})
	b := Remap(twoUp(), []int{1, 2})
	for _, id := range []int{1, 2} {
		ra, _ := a.Get(id)
		rb, _ := b.Get(id)
		if ra != rb {
			t.Fatalf("slot %d: %+v != %+v", id, ra, rb)
		}
	}
}

func TestRemapSizeIsMinOfTemplateAndSlots(t *testing.T) {
	if got := Remap(twoUp(), []int{1}).Len(); got != 1 {
		t.Fatalf("fewer slots: Len() = %d, want 1", got)
	}
	m := Remap(twoUp(), []int{1, 2, 3, 4})
	if m.Len() != 2 {
		t.Fatalf("more slots: Len() = %d, want 2", m.Len())
	}
	if _, ok := m.Get(3); ok {
		t.Fatal("slot 3 should be unbound")
	}
	if got := Remap(Template{}, []int{1, 2}).Len(); got != 0 {
		t.Fatalf("empty template: Len() = %d, want 0", got)
	}
}

func TestHasEnoughSlotsForTemplate(t *testing.T) {
	tpl := twoUp()
	if tpl.HasEnoughSlotsForTemplate(1) {
		t.Fatal("1 slot should not fill a 2-region template")
	}
	if !tpl.HasEnoughSlotsForTemplate(2) {
		t.Fatal("2 slots should fill a 2-region template")
	}
}

func TestTemplateValidateRejectsZeroFore(t *testing.T) {
	tpl := twoUp()
	tpl.Regions[1].Fore.Width = 0
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected error for zero-width fore region")
	}
}

func TestStripTemplate(t *testing.T) {
	tpl, err := StripTemplate("strip", StripSpec{Slots: 4, StripHeightPercent: 20, Gap: 0}, 2000, 1000)
	if err != nil {
		t.Fatalf("StripTemplate() error: %v", err)
	}
	if tpl.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", tpl.Len())
	}
	wantFore := platform.Rect{X: 0, Y: 0, Width: 2000, Height: 800}
	for i, r := range tpl.Regions {
		if r.Fore != wantFore {
			t.Fatalf("region %d fore = %+v, want %+v", i, r.Fore, wantFore)
		}
		wantBack := platform.Rect{X: i * 500, Y: 800, Width: 500, Height: 200}
		if r.Back != wantBack {
			t.Fatalf("region %d back = %+v, want %+v", i, r.Back, wantBack)
		}
	}
	if err := tpl.Validate(); err != nil {
		t.Fatalf("generated template invalid: %v", err)
	}
}

func TestStripTemplateRejectsBadSpec(t *testing.T) {
	if _, err := StripTemplate("x", StripSpec{Slots: 0, StripHeightPercent: 20}, 100, 100); err == nil {
		t.Fatal("expected error for zero slots")
	}
	if _, err := StripTemplate("x", StripSpec{Slots: 2, StripHeightPercent: 90}, 100, 100); err == nil {
		t.Fatal("expected error for oversized strip")
	}
}

func TestGridDims(t *testing.T) {
	tests := []struct {
		n, rows, cols int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{2, 1, 2},
		{4, 2, 2},
		{5, 2, 3},
		{10, 3, 4},
	}
	for _, tt := range tests {
		rows, cols := GridDims(tt.n)
		if rows != tt.rows || cols != tt.cols {
			t.Fatalf("GridDims(%d) = %dx%d, want %dx%d", tt.n, rows, cols, tt.rows, tt.cols)
		}
	}
}

func TestStackTemplate(t *testing.T) {
	tpl, err := StackTemplate("stack", StackSpec{Slots: 4, MainWidthPercent: 60, Gap: 10}, 2000, 1000)
	if err != nil {
		t.Fatalf("StackTemplate() error: %v", err)
	}
	wantFore := platform.Rect{X: 0, Y: 0, Width: 1200, Height: 1000}
	if tpl.Regions[0].Fore != wantFore {
		t.Fatalf("fore = %+v, want %+v", tpl.Regions[0].Fore, wantFore)
	}
	// 2x2 grid in the 800px right column: cells (800-30)/2 wide.
	wantBack := platform.Rect{X: 1200 + 10 + 385 + 10, Y: 10 + 485 + 10, Width: 385, Height: 485}
	if tpl.Regions[3].Back != wantBack {
		t.Fatalf("back[3] = %+v, want %+v", tpl.Regions[3].Back, wantBack)
	}
}

func TestStackTemplateCapsColumns(t *testing.T) {
	tpl, err := StackTemplate("stack", StackSpec{Slots: 6, MainWidthPercent: 70, MaxStackCols: 1}, 1000, 600)
	if err != nil {
		t.Fatalf("StackTemplate() error: %v", err)
	}
	for i, r := range tpl.Regions {
		if r.Back.X != 700 || r.Back.Height != 100 || r.Back.Y != i*100 {
			t.Fatalf("region %d back = %+v, want single column of 100px cells", i, r.Back)
		}
	}
}

func TestStackTemplateRejectsCrampedGrid(t *testing.T) {
	if _, err := StackTemplate("stack", StackSpec{Slots: 40, MainWidthPercent: 90, Gap: 50}, 400, 300); err == nil {
		t.Fatal("expected error when cells have no room")
	}
}
