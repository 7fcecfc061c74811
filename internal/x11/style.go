package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/motif"
)

// HasDecorations reports whether the window asks the WM for decorations.
// Windows without _MOTIF_WM_HINTS are decorated by default.
func (c *Connection) HasDecorations(windowID xproto.Window) bool {
	hints, err := motif.WmHintsGet(c.XUtil, windowID)
	if err != nil {
		return true
	}
	return motif.Decor(hints)
}

// SetDecorations toggles WM decorations through _MOTIF_WM_HINTS, keeping
// any function/input hints the client already set.
func (c *Connection) SetDecorations(windowID xproto.Window, on bool) error {
	hints, err := motif.WmHintsGet(c.XUtil, windowID)
	if err != nil || hints == nil {
		hints = &motif.Hints{}
	}
	hints.Flags |= motif.HintDecorations
	if on {
		hints.Decoration = motif.DecorationAll
	} else {
		hints.Decoration = motif.DecorationNone
	}
	return motif.WmHintsSet(c.XUtil, windowID, hints)
}
