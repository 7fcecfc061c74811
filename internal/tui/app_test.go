package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/ipc"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/region"
	"github.com/1broseidon/multiboxer/internal/seat"
)

type fakeDaemon struct {
	focused  []int
	cycled   []string
	relayout int
	reset    int
	down     bool
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.down {
		return nil, errors.New("failed to connect to daemon")
	}
	return &ipc.StatusData{DaemonRunning: true, Status: seat.Status{
		Template:   "bottom-strip",
		Capacity:   4,
		Active:     2,
		Foreground: 1,
		SwapState:  "idle",
		Uptime:     "3m",
		Slots: []seat.SlotStatus{
			{ID: 1, Profile: "game", State: "foreground", PID: 10, Foreground: true},
			{ID: 2, Profile: "game", State: "running", PID: 20},
		},
	}}, nil
}

func (f *fakeDaemon) GetMonitors() (*ipc.MonitorsData, error) {
	return &ipc.MonitorsData{Monitors: []ipc.MonitorInfo{{Width: 2560, Height: 1440, UsableW: 2560, UsableH: 1400, Primary: true}}}, nil
}

func (f *fakeDaemon) Focus(slot int) error {
	f.focused = append(f.focused, slot)
	return nil
}

func (f *fakeDaemon) Cycle(direction string) error {
	f.cycled = append(f.cycled, direction)
	return nil
}

func (f *fakeDaemon) Relayout() error {
	f.relayout++
	return nil
}

func (f *fakeDaemon) ForceReset() error {
	f.reset++
	return nil
}

func run(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	next, _ := m.Update(msg)
	return next.(model)
}

func press(t *testing.T, m model, k tea.KeyMsg) model {
	t.Helper()
	next, cmd := m.Update(k)
	return run(t, next.(model), cmd)
}

func TestNewModelUsesPrimaryUsableArea(t *testing.T) {
	m := newModel(&fakeDaemon{}, config.DefaultConfig())
	if m.area.Width != 2560 || m.area.Height != 1400 {
		t.Fatalf("expected usable area 2560x1400, got %+v", m.area)
	}
}

func TestKeysDriveDaemon(t *testing.T) {
	d := &fakeDaemon{}
	m := newModel(d, config.DefaultConfig())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})

	if len(d.focused) != 1 || d.focused[0] != 2 {
		t.Fatalf("expected focus(2), got %v", d.focused)
	}
	if len(d.cycled) != 2 || d.cycled[0] != "next" || d.cycled[1] != "previous" {
		t.Fatalf("unexpected cycles %v", d.cycled)
	}
	if d.relayout != 1 || d.reset != 1 {
		t.Fatalf("expected one relayout and one reset, got %d/%d", d.relayout, d.reset)
	}
	if m.lastInfo != "reset" || m.lastError != "" {
		t.Fatalf("unexpected feedback info=%q err=%q", m.lastInfo, m.lastError)
	}
}

func TestQuitKey(t *testing.T) {
	m := newModel(&fakeDaemon{}, config.DefaultConfig())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestStatusAndDisconnect(t *testing.T) {
	d := &fakeDaemon{}
	m := newModel(d, config.DefaultConfig())
	m = run(t, m, m.fetchStatus())
	if !m.connected || m.status == nil || m.status.Foreground != 1 {
		t.Fatalf("expected connected status, got %+v", m.status)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = next.(model)
	view := m.View()
	if !strings.Contains(view, "daemon connected") || !strings.Contains(view, "bottom-strip") {
		t.Fatalf("view missing status line:\n%s", view)
	}

	d.down = true
	m = run(t, m, m.fetchStatus())
	if m.connected || m.status != nil {
		t.Fatalf("expected disconnected model")
	}
	if !strings.Contains(m.View(), "daemon not running") {
		t.Fatalf("expected not-running status bar")
	}
}

func TestASCIIPreviewDrawsForeAndBacks(t *testing.T) {
	tmpl := region.Template{Name: "t", Regions: []region.SlotRegion{
		{Fore: platform.Rect{Width: 100, Height: 80}, Back: platform.Rect{Y: 80, Width: 50, Height: 20}},
		{Fore: platform.Rect{Width: 100, Height: 80}, Back: platform.Rect{X: 50, Y: 80, Width: 50, Height: 20}},
	}}
	regions := region.Remap(tmpl, []int{3, 5})

	lines := renderASCIIPreview(regions, 5, platform.Rect{Width: 100, Height: 100}, 40, 20)
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "*5") {
		t.Fatalf("expected foreground label *5:\n%s", joined)
	}
	if !strings.Contains(joined, "3") {
		t.Fatalf("expected back label 3:\n%s", joined)
	}
	if strings.Contains(joined, "*3") {
		t.Fatalf("slot 3 is not foreground:\n%s", joined)
	}
}

func TestASCIIPreviewTooSmall(t *testing.T) {
	lines := renderASCIIPreview(region.Map{}, 0, platform.Rect{Width: 100, Height: 100}, 3, 2)
	if len(lines) != 2 || strings.TrimSpace(lines[0]) != "" {
		t.Fatalf("expected blank canvas, got %q", lines)
	}
}
