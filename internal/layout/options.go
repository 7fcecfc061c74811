// Package layout places slot windows according to the active template.
package layout

// Options tune how templates are applied.
type Options struct {
	// SwapOnActivate turns focus changes made outside the daemon into swaps.
	SwapOnActivate bool `json:"swap_on_activate" yaml:"swap_on_activate"`
	// SwapOnHotkeyFocus makes slot hotkeys swap instead of only focusing.
	SwapOnHotkeyFocus bool `json:"swap_on_hotkey_focus" yaml:"swap_on_hotkey_focus"`
	// LeaveHole keeps every slot on its own back region. When false the
	// previous foreground slot takes the back region the new one vacated.
	LeaveHole bool `json:"leave_hole" yaml:"leave_hole"`
	// AvoidTaskbar offsets regions from the display's usable area instead
	// of its full bounds.
	AvoidTaskbar   bool `json:"avoid_taskbar" yaml:"avoid_taskbar"`
	MakeBorderless bool `json:"make_borderless" yaml:"make_borderless"`
	RescaleWindows bool `json:"rescale_windows" yaml:"rescale_windows"`
	// UsePreviewSurfaces parks unfocused windows off-screen and lets the
	// compositor draw them into their back regions.
	UsePreviewSurfaces bool `json:"use_preview_surfaces" yaml:"use_preview_surfaces"`
	// MonitorIndex selects the display; -1 or out of range means primary.
	MonitorIndex int `json:"monitor_index" yaml:"monitor_index"`
}

// DefaultOptions returns the options used when the config omits them.
func DefaultOptions() Options {
	return Options{
		SwapOnActivate:     true,
		SwapOnHotkeyFocus:  true,
		LeaveHole:          false,
		AvoidTaskbar:       true,
		MakeBorderless:     true,
		RescaleWindows:     true,
		UsePreviewSurfaces: true,
		MonitorIndex:       -1,
	}
}

// Path says which branch of the algorithm an application took.
type Path int

const (
	PathNone Path = iota
	PathDeferred
	PathFast
	PathFull
	PathRaiseOnly
)

func (p Path) String() string {
	switch p {
	case PathNone:
		return "none"
	case PathDeferred:
		return "deferred"
	case PathFast:
		return "fast"
	case PathFull:
		return "full"
	case PathRaiseOnly:
		return "raise-only"
	default:
		return "unknown"
	}
}
