package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// Target is one unfocused slot to draw.
type Target struct {
	Slot   int
	Source platform.WindowID
	Dest   platform.Rect
}

// Surface is an always-on-top, non-activating window showing one source.
type Surface interface {
	Bind(source platform.WindowID) error
	Place(dest platform.Rect) error
	Refresh() error
	Show() error
	Hide() error
	Destroy()
}

// SurfaceFactory creates surfaces. onClick is called from the event
// loop when the surface is clicked.
type SurfaceFactory interface {
	NewSurface(slot int, onClick func()) (Surface, error)
}

// Stats counts surface operations.
type Stats struct {
	Surfaces int
	Visible  int
	Rebinds  uint64
	Moves    uint64
}

type entry struct {
	surface Surface
	source  platform.WindowID
	dest    platform.Rect
	visible bool
}

// Manager keeps one surface per slot in sync with the background set.
type Manager struct {
	mu       sync.Mutex
	factory  SurfaceFactory
	logger   *slog.Logger
	surfaces map[int]*entry
	clicks   chan int
	rebinds  uint64
	moves    uint64
}

// NewManager creates a manager. A nil factory draws nothing.
func NewManager(factory SurfaceFactory, logger *slog.Logger) *Manager {
	if factory == nil {
		factory = NopFactory{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		factory:  factory,
		logger:   logger,
		surfaces: make(map[int]*entry),
		clicks:   make(chan int, 16),
	}
}

// Clicks delivers the slot id of every clicked surface.
func (m *Manager) Clicks() <-chan int {
	return m.clicks
}

// Update shows a surface for every target and hides the rest. A surface
// is rebound only when its source window changed.
func (m *Manager) Update(targets []Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	wanted := make(map[int]bool, len(targets))
	for _, t := range targets {
		wanted[t.Slot] = true
		if err := m.updateLocked(t); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", t.Slot, err))
		}
	}
	for slot, e := range m.surfaces {
		if wanted[slot] || !e.visible {
			continue
		}
		if err := e.surface.Hide(); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: hide: %w", slot, err))
		}
		e.visible = false
	}
	return errors.Join(errs...)
}

func (m *Manager) updateLocked(t Target) error {
	if !t.Dest.Valid() {
		return fmt.Errorf("invalid destination %dx%d", t.Dest.Width, t.Dest.Height)
	}
	e, ok := m.surfaces[t.Slot]
	if !ok {
		slot := t.Slot
		s, err := m.factory.NewSurface(slot, func() { m.clicked(slot) })
		if err != nil {
			return fmt.Errorf("create surface: %w", err)
		}
		e = &entry{surface: s}
		m.surfaces[slot] = e
	}
	if e.source != t.Source {
		if err := e.surface.Bind(t.Source); err != nil {
			return fmt.Errorf("bind 0x%x: %w", uint32(t.Source), err)
		}
		e.source = t.Source
		m.rebinds++
	}
	if e.dest != t.Dest {
		if err := e.surface.Place(t.Dest); err != nil {
			return fmt.Errorf("place: %w", err)
		}
		e.dest = t.Dest
		m.moves++
	}
	if !e.visible {
		if err := e.surface.Show(); err != nil {
			return fmt.Errorf("show: %w", err)
		}
		e.visible = true
	}
	return nil
}

// Forget destroys the surface of a slot whose window is gone.
func (m *Manager) Forget(slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.surfaces[slot]; ok {
		e.surface.Destroy()
		delete(m.surfaces, slot)
	}
}

// HideAll hides every surface, e.g. while in recovery.
func (m *Manager) HideAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for slot, e := range m.surfaces {
		if !e.visible {
			continue
		}
		if err := e.surface.Hide(); err != nil {
			m.logger.Warn("hide preview failed", "slot", slot, "error", err)
		}
		e.visible = false
	}
}

// Refresh redraws every visible surface.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for slot, e := range m.surfaces {
		if !e.visible {
			continue
		}
		if err := e.surface.Refresh(); err != nil {
			m.logger.Debug("preview refresh failed", "slot", slot, "error", err)
		}
	}
}

// Run refreshes visible surfaces every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh()
		}
	}
}

// Visible returns the slots with a visible surface, ascending.
func (m *Manager) Visible() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for slot, e := range m.surfaces {
		if e.visible {
			out = append(out, slot)
		}
	}
	sort.Ints(out)
	return out
}

// Stats returns operation counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Surfaces: len(m.surfaces), Rebinds: m.rebinds, Moves: m.moves}
	for _, e := range m.surfaces {
		if e.visible {
			s.Visible++
		}
	}
	return s
}

// Close destroys every surface.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for slot, e := range m.surfaces {
		e.surface.Destroy()
		delete(m.surfaces, slot)
	}
}

func (m *Manager) clicked(slot int) {
	select {
	case m.clicks <- slot:
	default:
		m.logger.Debug("preview click dropped", "slot", slot)
	}
}

// NopFactory creates surfaces that draw nothing.
type NopFactory struct{}

func (NopFactory) NewSurface(int, func()) (Surface, error) { return nopSurface{}, nil }

type nopSurface struct{}

func (nopSurface) Bind(platform.WindowID) error { return nil }
func (nopSurface) Place(platform.Rect) error    { return nil }
func (nopSurface) Refresh() error               { return nil }
func (nopSurface) Show() error                  { return nil }
func (nopSurface) Hide() error                  { return nil }
func (nopSurface) Destroy()                     {}
