package config

import (
	"fmt"
	"strings"
)

// ValidationError pins a config error to a YAML path and, when known, the
// file position that last wrote it.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Err.Error()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.Source.File, e.Source.Line, e.Source.Column, msg)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig applies raw on top of DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}

	if h := raw.Hotkeys; h != nil {
		for id, key := range h.Slots {
			if strings.TrimSpace(key) == "" {
				delete(cfg.Hotkeys.Slots, id)
				continue
			}
			cfg.Hotkeys.Slots[id] = key
		}
		applyString(&cfg.Hotkeys.Next, h.Next)
		applyString(&cfg.Hotkeys.Previous, h.Previous)
		applyString(&cfg.Hotkeys.Relayout, h.Relayout)
		applyString(&cfg.Hotkeys.Reset, h.Reset)
	}

	if l := raw.Layout; l != nil {
		applyString(&cfg.Layout.Template, l.Template)
		if o := l.Options; o != nil {
			opts := &cfg.Layout.Options
			applyBool(&opts.SwapOnActivate, o.SwapOnActivate)
			applyBool(&opts.SwapOnHotkeyFocus, o.SwapOnHotkeyFocus)
			applyBool(&opts.LeaveHole, o.LeaveHole)
			applyBool(&opts.AvoidTaskbar, o.AvoidTaskbar)
			applyBool(&opts.MakeBorderless, o.MakeBorderless)
			applyBool(&opts.RescaleWindows, o.RescaleWindows)
			applyBool(&opts.UsePreviewSurfaces, o.UsePreviewSurfaces)
			applyInt(&opts.MonitorIndex, o.MonitorIndex)
		}
	}

	for name, regions := range raw.Templates {
		cfg.Templates[name] = regions
		// An explicit template replaces a generated default of the same name.
		delete(cfg.GeneratedTemplates, name)
	}
	for name, g := range raw.GeneratedTemplates {
		cfg.GeneratedTemplates[name] = g
	}
	for name, p := range raw.Profiles {
		cfg.Profiles[name] = p
	}
	if raw.Slots != nil {
		cfg.Slots = append([]SlotConfig(nil), raw.Slots...)
	}

	if t := raw.Timing; t != nil {
		applyInt(&cfg.Timing.DebounceMS, t.DebounceMS)
		applyInt(&cfg.Timing.StabilizeMS, t.StabilizeMS)
		applyInt(&cfg.Timing.WatchdogMS, t.WatchdogMS)
		applyInt(&cfg.Timing.AcquirePollMS, t.AcquirePollMS)
		applyInt(&cfg.Timing.AcquireTimeoutSeconds, t.AcquireTimeoutSeconds)
		applyInt(&cfg.Timing.AcquireRescanEvery, t.AcquireRescanEvery)
		applyInt(&cfg.Timing.LaunchIntervalMS, t.LaunchIntervalMS)
		applyInt(&cfg.Timing.LaunchParallel, t.LaunchParallel)
		applyInt(&cfg.Timing.PreviewRefreshMS, t.PreviewRefreshMS)
		applyInt(&cfg.Timing.ReconcileSeconds, t.ReconcileSeconds)
	}

	if j := raw.Journal; j != nil {
		applyBool(&cfg.Journal.Enabled, j.Enabled)
		applyString(&cfg.Journal.Path, j.Path)
		applyInt(&cfg.Journal.RetentionDays, j.RetentionDays)
	}

	for id, slot := range cfg.Slots {
		if strings.TrimSpace(slot.Profile) == "" {
			return nil, &ValidationError{Path: "slots", Err: fmt.Errorf("entry %d has no profile", id)}
		}
	}
	return cfg, nil
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func applyInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func applyBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
