//go:build linux

package platform

import (
	"fmt"
	"sort"

	"github.com/1broseidon/multiboxer/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var (
	_ Backend         = (*LinuxBackend)(nil)
	_ ActivityWatcher = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// QuitEventLoop stops a running EventLoop.
func (b *LinuxBackend) QuitEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// Connection returns the X11 connection for X11-specific consumers.
func (b *LinuxBackend) Connection() *x11.Connection {
	if b == nil {
		return nil
	}
	return b.conn
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Displays returns all active displays ordered by id.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m))
	}

	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})

	return displays, nil
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}

	wid, err := conn.GetActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// ListWindows lists every normal top-level client window, ordered by id.
func (b *LinuxBackend) ListWindows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := ewmh.ClientListGet(conn.XUtil)
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(clients))
	for _, windowID := range clients {
		if !conn.IsNormalWindow(windowID) {
			continue
		}
		w, err := b.describe(windowID)
		if err != nil {
			continue
		}
		windows = append(windows, w)
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID < windows[j].ID
	})

	return windows, nil
}

// Window returns the current metadata of a single window.
func (b *LinuxBackend) Window(windowID WindowID) (Window, error) {
	if _, err := b.connection(); err != nil {
		return Window{}, err
	}
	return b.describe(xproto.Window(windowID))
}

// MoveResize moves and resizes a window to the specified bounds.
func (b *LinuxBackend) MoveResize(windowID WindowID, bounds Rect) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}

	return conn.MoveResizeWindow(
		xproto.Window(windowID),
		bounds.X,
		bounds.Y,
		bounds.Width,
		bounds.Height,
	)
}

// Move repositions a window without resizing it.
func (b *LinuxBackend) Move(windowID WindowID, x, y int) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveWindow(xproto.Window(windowID), x, y)
}

// ApplyBatch configures all placements under a server grab.
func (b *LinuxBackend) ApplyBatch(placements []Placement) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}

	entries := make([]x11.Configure, 0, len(placements))
	for _, p := range placements {
		entries = append(entries, x11.Configure{
			Window: xproto.Window(p.Window),
			X:      p.Bounds.X,
			Y:      p.Bounds.Y,
			Width:  p.Bounds.Width,
			Height: p.Bounds.Height,
			Resize: p.Resize,
			Raise:  p.Raise,
		})
	}
	if err := conn.ConfigureBatch(entries); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}
	return nil
}

// Restore un-minimizes a window.
func (b *LinuxBackend) Restore(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.RestoreWindow(xproto.Window(windowID))
}

// Raise stacks a window on top.
func (b *LinuxBackend) Raise(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.RaiseWindow(xproto.Window(windowID))
}

// Focus activates a window via _NET_ACTIVE_WINDOW.
func (b *LinuxBackend) Focus(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusWindow(uint32(windowID))
}

// IsBorderless reports whether the window has opted out of WM decorations.
func (b *LinuxBackend) IsBorderless(windowID WindowID) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	return !conn.HasDecorations(xproto.Window(windowID)), nil
}

// MakeBorderless strips WM decorations.
func (b *LinuxBackend) MakeBorderless(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetDecorations(xproto.Window(windowID), false)
}

// RestoreBorder re-enables WM decorations.
func (b *LinuxBackend) RestoreBorder(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetDecorations(xproto.Window(windowID), true)
}

// WatchActiveWindow reports _NET_ACTIVE_WINDOW changes. Requires EventLoop.
func (b *LinuxBackend) WatchActiveWindow(fn func(WindowID)) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.WatchActiveWindow(func(w xproto.Window) {
		fn(WindowID(w))
	})
}

func (b *LinuxBackend) describe(windowID xproto.Window) (Window, error) {
	conn := b.conn
	geom, err := conn.WindowGeometry(windowID)
	if err != nil {
		return Window{}, err
	}
	return Window{
		ID:      WindowID(windowID),
		PID:     conn.WindowPID(windowID),
		AppID:   conn.WindowClass(windowID),
		Title:   conn.WindowTitle(windowID),
		Bounds:  rectFromGeometry(geom),
		Visible: conn.IsViewable(windowID) && !conn.IsHidden(windowID),
	}, nil
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func displayFromMonitor(m x11.Monitor) Display {
	return Display{
		ID:      m.ID,
		Name:    m.Name,
		Bounds:  rectFromGeometry(m.Bounds),
		Usable:  rectFromGeometry(m.Usable),
		Primary: m.Primary,
	}
}

func rectFromGeometry(g x11.Geometry) Rect {
	return Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}
