package platform

import "errors"

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether the rect can be applied to a window.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Offset returns r translated by dx, dy.
func (r Rect) Offset(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Union returns the smallest rect containing both r and o. An invalid
// operand is ignored.
func (r Rect) Union(o Rect) Rect {
	if !r.Valid() {
		return o
	}
	if !o.Valid() {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.X+r.Width, o.X+o.Width)
	y2 := max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID      int
	Name    string
	Bounds  Rect
	Usable  Rect
	Primary bool
}

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID      WindowID
	PID     int
	AppID   string
	Title   string
	Bounds  Rect
	Visible bool
}

// Placement is a single entry of a reposition batch.
type Placement struct {
	Window WindowID
	Bounds Rect
	// Resize applies Bounds.Width/Height; otherwise only the position moves.
	Resize bool
	// Raise stacks the window above its siblings.
	Raise bool
}

var (
	// ErrBatchFailed is returned when a reposition batch could not be
	// committed as a whole.
	ErrBatchFailed = errors.New("reposition batch failed")
	// ErrNoDisplays is returned when the topology reports no monitors.
	ErrNoDisplays = errors.New("no displays found")
)

// Topology reports the monitor layout.
type Topology interface {
	Displays() ([]Display, error)
}

// Styler toggles window chrome.
type Styler interface {
	IsBorderless(windowID WindowID) (bool, error)
	MakeBorderless(windowID WindowID) error
	RestoreBorder(windowID WindowID) error
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Topology
	Styler

	ActiveWindow() (WindowID, error)
	ListWindows() ([]Window, error)
	Window(windowID WindowID) (Window, error)
	MoveResize(windowID WindowID, bounds Rect) error
	Move(windowID WindowID, x, y int) error
	// ApplyBatch commits every placement as one unit. A failure leaves the
	// caller to fall back to individual moves.
	ApplyBatch(placements []Placement) error
	Restore(windowID WindowID) error
	Raise(windowID WindowID) error
	Focus(windowID WindowID) error
}

// ActivityWatcher is implemented by backends that can report focus changes
// made outside the daemon, e.g. a click on a client window.
type ActivityWatcher interface {
	WatchActiveWindow(fn func(WindowID)) error
}

// PrimaryOf returns the display flagged primary, else the first one.
func PrimaryOf(displays []Display) (Display, error) {
	if len(displays) == 0 {
		return Display{}, ErrNoDisplays
	}
	for _, d := range displays {
		if d.Primary {
			return d, nil
		}
	}
	return displays[0], nil
}

// VirtualBounds returns the union of all display bounds.
func VirtualBounds(displays []Display) Rect {
	var out Rect
	for _, d := range displays {
		out = out.Union(d.Bounds)
	}
	return out
}
