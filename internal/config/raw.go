package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/multiboxer/internal/region"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawHotkeys struct {
	Slots    map[int]string `yaml:"slots"`
	Next     *string        `yaml:"next"`
	Previous *string        `yaml:"previous"`
	Relayout *string        `yaml:"relayout"`
	Reset    *string        `yaml:"reset"`
}

type RawOptions struct {
	SwapOnActivate     *bool `yaml:"swap_on_activate"`
	SwapOnHotkeyFocus  *bool `yaml:"swap_on_hotkey_focus"`
	LeaveHole          *bool `yaml:"leave_hole"`
	AvoidTaskbar       *bool `yaml:"avoid_taskbar"`
	MakeBorderless     *bool `yaml:"make_borderless"`
	RescaleWindows     *bool `yaml:"rescale_windows"`
	UsePreviewSurfaces *bool `yaml:"use_preview_surfaces"`
	MonitorIndex       *int  `yaml:"monitor_index"`
}

type RawLayout struct {
	Template *string     `yaml:"template"`
	Options  *RawOptions `yaml:"options"`
}

type RawTiming struct {
	DebounceMS            *int `yaml:"debounce_ms"`
	StabilizeMS           *int `yaml:"stabilize_ms"`
	WatchdogMS            *int `yaml:"watchdog_ms"`
	AcquirePollMS         *int `yaml:"acquire_poll_ms"`
	AcquireTimeoutSeconds *int `yaml:"acquire_timeout_seconds"`
	AcquireRescanEvery    *int `yaml:"acquire_rescan_every"`
	LaunchIntervalMS      *int `yaml:"launch_interval_ms"`
	LaunchParallel        *int `yaml:"launch_parallel"`
	PreviewRefreshMS      *int `yaml:"preview_refresh_ms"`
	ReconcileSeconds      *int `yaml:"reconcile_seconds"`
}

type RawJournal struct {
	Enabled       *bool   `yaml:"enabled"`
	Path          *string `yaml:"path"`
	RetentionDays *int    `yaml:"retention_days"`
}

type RawConfig struct {
	Include            IncludeList                    `yaml:"include"`
	LogLevel           *string                        `yaml:"log_level"`
	Hotkeys            *RawHotkeys                    `yaml:"hotkeys"`
	Layout             *RawLayout                     `yaml:"layout"`
	Templates          map[string][]region.SlotRegion `yaml:"templates"`
	GeneratedTemplates map[string]GeneratedTemplate   `yaml:"generated_templates"`
	Profiles           map[string]Profile             `yaml:"profiles"`
	Slots              []SlotConfig                   `yaml:"slots"`
	Timing             *RawTiming                     `yaml:"timing"`
	Journal            *RawJournal                    `yaml:"journal"`
}

// merge overlays c with overlay. Scalars in overlay win; named maps merge
// per key; the slot list is replaced wholesale.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	setString(&out.LogLevel, overlay.LogLevel)

	if overlay.Hotkeys != nil {
		if out.Hotkeys == nil {
			out.Hotkeys = &RawHotkeys{}
		}
		h := out.Hotkeys
		if overlay.Hotkeys.Slots != nil {
			if h.Slots == nil {
				h.Slots = make(map[int]string, len(overlay.Hotkeys.Slots))
			}
			for id, key := range overlay.Hotkeys.Slots {
				h.Slots[id] = key
			}
		}
		setString(&h.Next, overlay.Hotkeys.Next)
		setString(&h.Previous, overlay.Hotkeys.Previous)
		setString(&h.Relayout, overlay.Hotkeys.Relayout)
		setString(&h.Reset, overlay.Hotkeys.Reset)
	}

	if overlay.Layout != nil {
		if out.Layout == nil {
			out.Layout = &RawLayout{}
		}
		setString(&out.Layout.Template, overlay.Layout.Template)
		if overlay.Layout.Options != nil {
			if out.Layout.Options == nil {
				out.Layout.Options = &RawOptions{}
			}
			mergeRawOptions(out.Layout.Options, overlay.Layout.Options)
		}
	}

	out.Templates = mergeMap(out.Templates, overlay.Templates)
	out.GeneratedTemplates = mergeMap(out.GeneratedTemplates, overlay.GeneratedTemplates)
	out.Profiles = mergeMap(out.Profiles, overlay.Profiles)

	if overlay.Slots != nil {
		out.Slots = overlay.Slots
	}

	if overlay.Timing != nil {
		if out.Timing == nil {
			out.Timing = &RawTiming{}
		}
		t, o := out.Timing, overlay.Timing
		setInt(&t.DebounceMS, o.DebounceMS)
		setInt(&t.StabilizeMS, o.StabilizeMS)
		setInt(&t.WatchdogMS, o.WatchdogMS)
		setInt(&t.AcquirePollMS, o.AcquirePollMS)
		setInt(&t.AcquireTimeoutSeconds, o.AcquireTimeoutSeconds)
		setInt(&t.AcquireRescanEvery, o.AcquireRescanEvery)
		setInt(&t.LaunchIntervalMS, o.LaunchIntervalMS)
		setInt(&t.LaunchParallel, o.LaunchParallel)
		setInt(&t.PreviewRefreshMS, o.PreviewRefreshMS)
		setInt(&t.ReconcileSeconds, o.ReconcileSeconds)
	}

	if overlay.Journal != nil {
		if out.Journal == nil {
			out.Journal = &RawJournal{}
		}
		setBool(&out.Journal.Enabled, overlay.Journal.Enabled)
		setString(&out.Journal.Path, overlay.Journal.Path)
		setInt(&out.Journal.RetentionDays, overlay.Journal.RetentionDays)
	}

	return out
}

func mergeRawOptions(out, overlay *RawOptions) {
	setBool(&out.SwapOnActivate, overlay.SwapOnActivate)
	setBool(&out.SwapOnHotkeyFocus, overlay.SwapOnHotkeyFocus)
	setBool(&out.LeaveHole, overlay.LeaveHole)
	setBool(&out.AvoidTaskbar, overlay.AvoidTaskbar)
	setBool(&out.MakeBorderless, overlay.MakeBorderless)
	setBool(&out.RescaleWindows, overlay.RescaleWindows)
	setBool(&out.UsePreviewSurfaces, overlay.UsePreviewSurfaces)
	setInt(&out.MonitorIndex, overlay.MonitorIndex)
}

func mergeMap[V any](base, overlay map[string]V) map[string]V {
	if overlay == nil {
		return base
	}
	if base == nil {
		base = make(map[string]V, len(overlay))
	}
	for k, v := range overlay {
		base[k] = v
	}
	return base
}

func setString(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func setInt(dst **int, v *int) {
	if v != nil {
		*dst = v
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		*dst = v
	}
}
