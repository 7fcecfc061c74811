//go:build linux

package preview

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// X11Factory draws previews with the Composite and Render extensions:
// source windows are redirected off-screen and scaled into
// override-redirect windows that the window manager never focuses.
type X11Factory struct {
	xu      *xgbutil.XUtil
	formats map[xproto.Visualid]render.Pictformat
	logger  *slog.Logger
}

var _ SurfaceFactory = (*X11Factory)(nil)

// NewX11Factory initialises the extensions on xu's connection.
func NewX11Factory(xu *xgbutil.XUtil, logger *slog.Logger) (*X11Factory, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	conn := xu.Conn()
	if err := composite.Init(conn); err != nil {
		return nil, fmt.Errorf("composite extension: %w", err)
	}
	if _, err := composite.QueryVersion(conn, 0, 4).Reply(); err != nil {
		return nil, fmt.Errorf("composite version: %w", err)
	}
	if err := render.Init(conn); err != nil {
		return nil, fmt.Errorf("render extension: %w", err)
	}
	if _, err := render.QueryVersion(conn, 0, 11).Reply(); err != nil {
		return nil, fmt.Errorf("render version: %w", err)
	}

	reply, err := render.QueryPictFormats(conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("query picture formats: %w", err)
	}
	formats := make(map[xproto.Visualid]render.Pictformat)
	for _, screen := range reply.Screens {
		for _, depth := range screen.Depths {
			for _, v := range depth.Visuals {
				formats[v.Visual] = v.Format
			}
		}
	}
	return &X11Factory{xu: xu, formats: formats, logger: logger}, nil
}

// NewSurface creates a hidden override-redirect window for slot.
func (f *X11Factory) NewSurface(slot int, onClick func()) (Surface, error) {
	conn := f.xu.Conn()
	screen := f.xu.Screen()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, err
	}
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		f.xu.RootWin(),
		0, 0,
		1, 1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		// Value order follows the mask bits, low to high.
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{0, 1, xproto.EventMaskButtonPress | xproto.EventMaskExposure},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("create preview window: %w", err)
	}

	format, ok := f.formats[screen.RootVisual]
	if !ok {
		xproto.DestroyWindow(conn, wid)
		return nil, fmt.Errorf("no picture format for root visual")
	}
	dst, err := render.NewPictureId(conn)
	if err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, err
	}
	if err := render.CreatePictureChecked(conn, dst, xproto.Drawable(wid), format, 0, nil).Check(); err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, fmt.Errorf("create preview picture: %w", err)
	}

	s := &x11Surface{factory: f, slot: slot, wid: wid, dst: dst}
	xevent.ButtonPressFun(func(_ *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
		if ev.Detail == xproto.ButtonIndex1 && onClick != nil {
			onClick()
		}
	}).Connect(f.xu, wid)
	xevent.ExposeFun(func(_ *xgbutil.XUtil, ev xevent.ExposeEvent) {
		if ev.Count == 0 {
			_ = s.Refresh()
		}
	}).Connect(f.xu, wid)
	return s, nil
}

type x11Surface struct {
	factory *X11Factory
	slot    int
	wid     xproto.Window
	dst     render.Picture

	mu     sync.Mutex
	source xproto.Window
	src    render.Picture
	dest   platform.Rect
}

func (s *x11Surface) Bind(source platform.WindowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.factory.xu.Conn()

	s.releaseSourceLocked()
	win := xproto.Window(source)

	// Automatic redirection keeps the window's contents rendered while
	// it is parked off-screen. It fails if a compositor holds a manual
	// redirect, in which case the contents are available anyway.
	if err := composite.RedirectWindowChecked(conn, win, composite.RedirectAutomatic).Check(); err != nil {
		s.factory.logger.Debug("redirect window failed", "slot", s.slot, "error", err)
	}

	attrs, err := xproto.GetWindowAttributes(conn, win).Reply()
	if err != nil {
		return fmt.Errorf("window attributes: %w", err)
	}
	format, ok := s.factory.formats[attrs.Visual]
	if !ok {
		return fmt.Errorf("no picture format for visual 0x%x", attrs.Visual)
	}
	pic, err := render.NewPictureId(conn)
	if err != nil {
		return err
	}
	err = render.CreatePictureChecked(
		conn, pic, xproto.Drawable(win), format,
		render.CpSubwindowMode, []uint32{xproto.SubwindowModeIncludeInferiors},
	).Check()
	if err != nil {
		return fmt.Errorf("create source picture: %w", err)
	}
	filter := "bilinear"
	render.SetPictureFilter(conn, pic, uint16(len(filter)), filter, nil)

	s.source = win
	s.src = pic
	return s.drawLocked()
}

func (s *x11Surface) Place(dest platform.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dest = dest
	err := xproto.ConfigureWindowChecked(
		s.factory.xu.Conn(),
		s.wid,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode,
		[]uint32{
			uint32(dest.X),
			uint32(dest.Y),
			uint32(dest.Width),
			uint32(dest.Height),
			xproto.StackModeAbove,
		},
	).Check()
	if err != nil {
		return err
	}
	return s.drawLocked()
}

func (s *x11Surface) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawLocked()
}

func (s *x11Surface) Show() error {
	conn := s.factory.xu.Conn()
	if err := xproto.MapWindowChecked(conn, s.wid).Check(); err != nil {
		return err
	}
	return xproto.ConfigureWindowChecked(conn, s.wid, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
}

func (s *x11Surface) Hide() error {
	return xproto.UnmapWindowChecked(s.factory.xu.Conn(), s.wid).Check()
}

func (s *x11Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.factory.xu.Conn()
	s.releaseSourceLocked()
	render.FreePicture(conn, s.dst)
	xevent.Detach(s.factory.xu, s.wid)
	xproto.DestroyWindow(conn, s.wid)
}

func (s *x11Surface) releaseSourceLocked() {
	if s.src == 0 {
		return
	}
	conn := s.factory.xu.Conn()
	render.FreePicture(conn, s.src)
	composite.UnredirectWindow(conn, s.source, composite.RedirectAutomatic)
	s.src = 0
	s.source = 0
}

// drawLocked scales the cover crop of the source into the surface.
func (s *x11Surface) drawLocked() error {
	if s.src == 0 || !s.dest.Valid() {
		return nil
	}
	conn := s.factory.xu.Conn()
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(s.source)).Reply()
	if err != nil {
		return fmt.Errorf("source geometry: %w", err)
	}
	crop := CoverCrop(int(geom.Width), int(geom.Height), s.dest.Width, s.dest.Height)
	if !crop.Valid() {
		return nil
	}
	scale := Scale(crop, s.dest.Width)

	render.SetPictureTransform(conn, s.src, render.Transform{
		Matrix11: fixed(scale), Matrix12: 0, Matrix13: fixed(float64(crop.X)),
		Matrix21: 0, Matrix22: fixed(scale), Matrix23: fixed(float64(crop.Y)),
		Matrix31: 0, Matrix32: 0, Matrix33: fixed(1),
	})
	return render.CompositeChecked(
		conn, render.PictOpSrc, s.src, 0, s.dst,
		0, 0, 0, 0, 0, 0,
		uint16(s.dest.Width), uint16(s.dest.Height),
	).Check()
}

// fixed converts to the 16.16 fixed point Render uses.
func fixed(v float64) render.Fixed {
	return render.Fixed(v * 65536)
}
