package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/multiboxer/internal/layout"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/region"
)

// Generated template styles.
const (
	StyleStrip = "strip"
	StyleStack = "stack"
)

// Hotkeys binds keys to slot focus and seat actions. Key strings use the
// xgbutil keybind syntax, e.g. "Mod4-Shift-Tab".
type Hotkeys struct {
	Slots    map[int]string `yaml:"slots,omitempty"`
	Next     string         `yaml:"next,omitempty"`
	Previous string         `yaml:"previous,omitempty"`
	Relayout string         `yaml:"relayout,omitempty"`
	Reset    string         `yaml:"reset,omitempty"`
}

// LayoutConfig selects the active template and its options.
type LayoutConfig struct {
	Template string         `yaml:"template"`
	Options  layout.Options `yaml:"options"`
}

// GeneratedTemplate is a template computed from the display size.
type GeneratedTemplate struct {
	Style              string `yaml:"style,omitempty"`
	Slots              int    `yaml:"slots"`
	StripHeightPercent int    `yaml:"strip_height_percent,omitempty"`
	MainWidthPercent   int    `yaml:"main_width_percent,omitempty"`
	MaxStackCols       int    `yaml:"max_stack_cols,omitempty"`
	Gap                int    `yaml:"gap,omitempty"`
}

// Profile describes how to start a client and recognise its window.
type Profile struct {
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args,omitempty"`
	Dir          string            `yaml:"dir,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	Executables  []string          `yaml:"executables,omitempty"`
	WindowClass  string            `yaml:"window_class,omitempty"`
	TitlePattern string            `yaml:"title_pattern,omitempty"`
}

// SlotConfig assigns a profile to a slot id.
type SlotConfig struct {
	ID      int    `yaml:"id"`
	Profile string `yaml:"profile"`
}

// Timing holds every tunable delay.
type Timing struct {
	DebounceMS            int `yaml:"debounce_ms"`
	StabilizeMS           int `yaml:"stabilize_ms"`
	WatchdogMS            int `yaml:"watchdog_ms"`
	AcquirePollMS         int `yaml:"acquire_poll_ms"`
	AcquireTimeoutSeconds int `yaml:"acquire_timeout_seconds"`
	AcquireRescanEvery    int `yaml:"acquire_rescan_every"`
	LaunchIntervalMS      int `yaml:"launch_interval_ms"`
	LaunchParallel        int `yaml:"launch_parallel"`
	PreviewRefreshMS      int `yaml:"preview_refresh_ms"`
	ReconcileSeconds      int `yaml:"reconcile_seconds"`
}

func (t Timing) Debounce() time.Duration       { return ms(t.DebounceMS) }
func (t Timing) Stabilize() time.Duration      { return ms(t.StabilizeMS) }
func (t Timing) Watchdog() time.Duration       { return ms(t.WatchdogMS) }
func (t Timing) AcquirePoll() time.Duration    { return ms(t.AcquirePollMS) }
func (t Timing) LaunchInterval() time.Duration { return ms(t.LaunchIntervalMS) }
func (t Timing) PreviewRefresh() time.Duration { return ms(t.PreviewRefreshMS) }

func (t Timing) AcquireTimeout() time.Duration {
	return time.Duration(t.AcquireTimeoutSeconds) * time.Second
}

func (t Timing) ReconcileInterval() time.Duration {
	return time.Duration(t.ReconcileSeconds) * time.Second
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// JournalConfig controls the SQLite swap journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
	// RetentionDays prunes older records; 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the journal retention window, or 0.
func (j JournalConfig) Retention() time.Duration {
	return time.Duration(j.RetentionDays) * 24 * time.Hour
}

// Config is the effective configuration.
type Config struct {
	LogLevel           string                         `yaml:"log_level"`
	Hotkeys            Hotkeys                        `yaml:"hotkeys"`
	Layout             LayoutConfig                   `yaml:"layout"`
	Templates          map[string][]region.SlotRegion `yaml:"templates,omitempty"`
	GeneratedTemplates map[string]GeneratedTemplate   `yaml:"generated_templates,omitempty"`
	Profiles           map[string]Profile             `yaml:"profiles,omitempty"`
	Slots              []SlotConfig                   `yaml:"slots,omitempty"`
	Timing             Timing                         `yaml:"timing"`
	Journal            JournalConfig                  `yaml:"journal"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	slotKeys := make(map[int]string, 9)
	for i := 1; i <= 9; i++ {
		slotKeys[i] = fmt.Sprintf("Mod4-%d", i)
	}
	return &Config{
		LogLevel: "info",
		Hotkeys: Hotkeys{
			Slots:    slotKeys,
			Next:     "Mod4-Tab",
			Previous: "Mod4-Shift-Tab",
			Relayout: "Mod4-Mod1-l",
			Reset:    "Mod4-Mod1-Escape",
		},
		Layout: LayoutConfig{
			Template: "bottom-strip",
			Options:  layout.DefaultOptions(),
		},
		Templates: map[string][]region.SlotRegion{},
		GeneratedTemplates: map[string]GeneratedTemplate{
			"bottom-strip": {Style: StyleStrip, Slots: 4, StripHeightPercent: 20, Gap: 4},
			"side-stack":   {Style: StyleStack, Slots: 4, MainWidthPercent: 75, MaxStackCols: 1, Gap: 4},
		},
		Profiles: map[string]Profile{},
		Timing: Timing{
			DebounceMS:            150,
			StabilizeMS:           50,
			WatchdogMS:            5000,
			AcquirePollMS:         100,
			AcquireTimeoutSeconds: 30,
			AcquireRescanEvery:    10,
			LaunchIntervalMS:      500,
			LaunchParallel:        2,
			PreviewRefreshMS:      33,
			ReconcileSeconds:      5,
		},
		Journal: JournalConfig{Enabled: true, RetentionDays: 30},
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// TemplateNames lists explicit and generated templates, sorted.
func (c *Config) TemplateNames() []string {
	names := make([]string, 0, len(c.Templates)+len(c.GeneratedTemplates))
	for name := range c.Templates {
		names = append(names, name)
	}
	for name := range c.GeneratedTemplates {
		if _, dup := c.Templates[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HasTemplate reports whether name is defined.
func (c *Config) HasTemplate(name string) bool {
	if _, ok := c.Templates[name]; ok {
		return true
	}
	_, ok := c.GeneratedTemplates[name]
	return ok
}

// Template resolves a template for a display area. Generated templates
// are computed from the area size; coordinates stay display-relative.
func (c *Config) Template(name string, area platform.Rect) (region.Template, error) {
	if regions, ok := c.Templates[name]; ok {
		t := region.Template{Name: name, Regions: append([]region.SlotRegion(nil), regions...)}
		return t, t.Validate()
	}
	g, ok := c.GeneratedTemplates[name]
	if !ok {
		return region.Template{}, fmt.Errorf("unknown template %q", name)
	}
	switch g.styleOrDefault() {
	case StyleStack:
		return region.StackTemplate(name, region.StackSpec{
			Slots:            g.Slots,
			MainWidthPercent: g.MainWidthPercent,
			MaxStackCols:     g.MaxStackCols,
			Gap:              g.Gap,
		}, area.Width, area.Height)
	default:
		return region.StripTemplate(name, region.StripSpec{
			Slots:              g.Slots,
			StripHeightPercent: g.StripHeightPercent,
			Gap:                g.Gap,
		}, area.Width, area.Height)
	}
}

func (g GeneratedTemplate) styleOrDefault() string {
	if g.Style == "" {
		return StyleStrip
	}
	return g.Style
}

// SlotIDs returns the configured slot ids in ascending order.
func (c *Config) SlotIDs() []int {
	ids := make([]int, 0, len(c.Slots))
	for _, s := range c.Slots {
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	return ids
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warning", "warn", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("must be one of debug, info, warning, error")}
	}

	for id := range c.Hotkeys.Slots {
		if id < 1 || id > region.MaxSlots {
			return &ValidationError{Path: "hotkeys.slots", Err: fmt.Errorf("slot %d out of range 1..%d", id, region.MaxSlots)}
		}
	}

	for name, regions := range c.Templates {
		t := region.Template{Name: name, Regions: regions}
		if t.Empty() {
			return &ValidationError{Path: "templates." + name, Err: fmt.Errorf("template has no regions")}
		}
		if t.Len() > region.MaxSlots {
			return &ValidationError{Path: "templates." + name, Err: fmt.Errorf("template has more than %d regions", region.MaxSlots)}
		}
		if err := t.Validate(); err != nil {
			return &ValidationError{Path: "templates." + name, Err: err}
		}
	}
	for name, g := range c.GeneratedTemplates {
		path := "generated_templates." + name
		if _, dup := c.Templates[name]; dup {
			return &ValidationError{Path: path, Err: fmt.Errorf("name already used by templates.%s", name)}
		}
		if err := g.validate(); err != nil {
			return &ValidationError{Path: path, Err: err}
		}
	}

	if c.Layout.Template != "" && !c.HasTemplate(c.Layout.Template) {
		return &ValidationError{Path: "layout.template", Err: fmt.Errorf("unknown template %q", c.Layout.Template)}
	}
	if c.Layout.Options.MonitorIndex < -1 {
		return &ValidationError{Path: "layout.options.monitor_index", Err: fmt.Errorf("must be -1 (primary) or a display index")}
	}

	for name, p := range c.Profiles {
		if strings.TrimSpace(p.Command) == "" {
			return &ValidationError{Path: "profiles." + name + ".command", Err: fmt.Errorf("command is required")}
		}
		if p.TitlePattern != "" {
			if _, err := regexp.Compile(p.TitlePattern); err != nil {
				return &ValidationError{Path: "profiles." + name + ".title_pattern", Err: err}
			}
		}
	}

	seen := make(map[int]bool, len(c.Slots))
	for _, s := range c.Slots {
		if s.ID < 1 || s.ID > region.MaxSlots {
			return &ValidationError{Path: "slots", Err: fmt.Errorf("slot id %d out of range 1..%d", s.ID, region.MaxSlots)}
		}
		if seen[s.ID] {
			return &ValidationError{Path: "slots", Err: fmt.Errorf("slot id %d listed twice", s.ID)}
		}
		seen[s.ID] = true
		if _, ok := c.Profiles[s.Profile]; !ok {
			return &ValidationError{Path: "slots", Err: fmt.Errorf("slot %d references unknown profile %q", s.ID, s.Profile)}
		}
	}

	t := c.Timing
	positive := []struct {
		path  string
		value int
	}{
		{"timing.debounce_ms", t.DebounceMS},
		{"timing.stabilize_ms", t.StabilizeMS},
		{"timing.acquire_poll_ms", t.AcquirePollMS},
		{"timing.acquire_timeout_seconds", t.AcquireTimeoutSeconds},
		{"timing.acquire_rescan_every", t.AcquireRescanEvery},
		{"timing.launch_parallel", t.LaunchParallel},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return &ValidationError{Path: p.path, Err: fmt.Errorf("must be > 0")}
		}
	}
	nonNegative := []struct {
		path  string
		value int
	}{
		{"timing.watchdog_ms", t.WatchdogMS},
		{"timing.launch_interval_ms", t.LaunchIntervalMS},
		{"timing.preview_refresh_ms", t.PreviewRefreshMS},
		{"timing.reconcile_seconds", t.ReconcileSeconds},
		{"journal.retention_days", c.Journal.RetentionDays},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			return &ValidationError{Path: p.path, Err: fmt.Errorf("must be >= 0")}
		}
	}
	return nil
}

func (g GeneratedTemplate) validate() error {
	switch g.styleOrDefault() {
	case StyleStrip:
		return region.StripSpec{Slots: g.Slots, StripHeightPercent: g.StripHeightPercent, Gap: g.Gap}.Validate()
	case StyleStack:
		return region.StackSpec{Slots: g.Slots, MainWidthPercent: g.MainWidthPercent, MaxStackCols: g.MaxStackCols, Gap: g.Gap}.Validate()
	default:
		return fmt.Errorf("unknown style %q (want %s or %s)", g.Style, StyleStrip, StyleStack)
	}
}
