package region

import (
	"fmt"
	"math"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// StripSpec describes a generated "one big, many small" template: the
// focused window fills the display above a strip of equal back cells.
type StripSpec struct {
	Slots              int `json:"slots" yaml:"slots"`
	StripHeightPercent int `json:"strip_height_percent" yaml:"strip_height_percent"`
	Gap                int `json:"gap" yaml:"gap"`
}

// Validate checks generator parameters.
func (s StripSpec) Validate() error {
	if s.Slots < 1 || s.Slots > MaxSlots {
		return fmt.Errorf("slots must be between 1 and %d", MaxSlots)
	}
	if s.StripHeightPercent < 5 || s.StripHeightPercent > 50 {
		return fmt.Errorf("strip_height_percent must be between 5 and 50")
	}
	if s.Gap < 0 {
		return fmt.Errorf("gap must be >= 0")
	}
	return nil
}

// StripTemplate generates a template for a display of the given size.
// Coordinates are relative to the display origin.
func StripTemplate(name string, spec StripSpec, width, height int) (Template, error) {
	if err := spec.Validate(); err != nil {
		return Template{}, err
	}
	if width <= 0 || height <= 0 {
		return Template{}, fmt.Errorf("display size %dx%d is invalid", width, height)
	}

	stripHeight := height * spec.StripHeightPercent / 100
	fore := platform.Rect{X: 0, Y: 0, Width: width, Height: height - stripHeight}
	strip := platform.Rect{X: 0, Y: fore.Height, Width: width, Height: stripHeight}
	cells := RowCells(spec.Slots, strip, spec.Gap)

	t := Template{Name: name, Regions: make([]SlotRegion, spec.Slots)}
	for i := range t.Regions {
		t.Regions[i] = SlotRegion{SlotID: i + 1, Fore: fore, Back: cells[i]}
	}
	return t, nil
}

// RowCells splits area into n equal cells on a single row with gaps on
// every side.
func RowCells(n int, area platform.Rect, gap int) []platform.Rect {
	if n <= 0 {
		return nil
	}

	cellWidth := (area.Width - (n+1)*gap) / n
	cellHeight := area.Height - 2*gap

	cells := make([]platform.Rect, n)
	for i := range cells {
		cells[i] = platform.Rect{
			X:      area.X + gap + i*(cellWidth+gap),
			Y:      area.Y + gap,
			Width:  cellWidth,
			Height: cellHeight,
		}
	}
	return cells
}

// StackSpec describes a generated main-and-stack template: the focused
// window takes the left MainWidthPercent of the display and back cells
// fill a grid on the right.
type StackSpec struct {
	Slots            int `json:"slots" yaml:"slots"`
	MainWidthPercent int `json:"main_width_percent" yaml:"main_width_percent"`
	MaxStackCols     int `json:"max_stack_cols" yaml:"max_stack_cols"`
	Gap              int `json:"gap" yaml:"gap"`
}

// Validate checks generator parameters.
func (s StackSpec) Validate() error {
	if s.Slots < 1 || s.Slots > MaxSlots {
		return fmt.Errorf("slots must be between 1 and %d", MaxSlots)
	}
	if s.MainWidthPercent < 10 || s.MainWidthPercent > 90 {
		return fmt.Errorf("main_width_percent must be between 10 and 90")
	}
	if s.MaxStackCols < 0 {
		return fmt.Errorf("max_stack_cols must be >= 0")
	}
	if s.Gap < 0 {
		return fmt.Errorf("gap must be >= 0")
	}
	return nil
}

// StackTemplate generates a main-and-stack template for a display of the
// given size. Coordinates are relative to the display origin.
func StackTemplate(name string, spec StackSpec, width, height int) (Template, error) {
	if err := spec.Validate(); err != nil {
		return Template{}, err
	}
	if width <= 0 || height <= 0 {
		return Template{}, fmt.Errorf("display size %dx%d is invalid", width, height)
	}

	mainWidth := width * spec.MainWidthPercent / 100
	fore := platform.Rect{X: 0, Y: 0, Width: mainWidth, Height: height}
	stack := platform.Rect{X: mainWidth, Y: 0, Width: width - mainWidth, Height: height}

	rows, cols := GridDims(spec.Slots)
	if spec.MaxStackCols > 0 && cols > spec.MaxStackCols {
		cols = spec.MaxStackCols
		rows = (spec.Slots + cols - 1) / cols
	}
	cells := GridCells(spec.Slots, rows, cols, stack, spec.Gap)
	for i, c := range cells {
		if !c.Valid() {
			return Template{}, fmt.Errorf("insufficient space for %d stack cells: cell %d is %dx%d", spec.Slots, i, c.Width, c.Height)
		}
	}

	t := Template{Name: name, Regions: make([]SlotRegion, spec.Slots)}
	for i := range t.Regions {
		t.Regions[i] = SlotRegion{SlotID: i + 1, Fore: fore, Back: cells[i]}
	}
	return t, nil
}

// GridDims returns the most square grid holding n cells: columns are the
// ceiling of the square root, rows whatever that leaves.
func GridDims(n int) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = int(math.Ceil(float64(n) / float64(cols)))
	return rows, cols
}

// GridCells lays out n cells row by row in a rows x cols grid with gaps
// on every side.
func GridCells(n, rows, cols int, area platform.Rect, gap int) []platform.Rect {
	if n <= 0 || rows <= 0 || cols <= 0 {
		return nil
	}

	cellWidth := (area.Width - (cols+1)*gap) / cols
	cellHeight := (area.Height - (rows+1)*gap) / rows

	cells := make([]platform.Rect, n)
	for i := range cells {
		row := i / cols
		col := i % cols
		cells[i] = platform.Rect{
			X:      area.X + gap + col*(cellWidth+gap),
			Y:      area.Y + gap + row*(cellHeight+gap),
			Width:  cellWidth,
			Height: cellHeight,
		}
	}
	return cells
}
