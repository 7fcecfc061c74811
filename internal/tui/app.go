package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/ipc"
	"github.com/1broseidon/multiboxer/internal/platform"
)

const refreshInterval = time.Second

// Daemon is the IPC surface the dashboard uses. *ipc.Client implements it.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetMonitors() (*ipc.MonitorsData, error)
	Focus(slot int) error
	Cycle(direction string) error
	Relayout() error
	ForceReset() error
}

type statusMsg struct {
	status *ipc.StatusData
	err    error
}

type actionMsg struct {
	what string
	err  error
}

type tickMsg time.Time

// model is the root bubbletea model for the dashboard.
type model struct {
	daemon Daemon
	cfg    *config.Config
	keys   keyMap

	status    *ipc.StatusData
	connected bool
	area      platform.Rect
	lastError string
	lastInfo  string

	width  int
	height int
}

func newModel(d Daemon, cfg *config.Config) model {
	m := model{
		daemon: d,
		cfg:    cfg,
		keys:   newKeyMap(),
		area:   platform.Rect{Width: 1920, Height: 1080},
	}
	if mons, err := d.GetMonitors(); err == nil {
		for _, mon := range mons.Monitors {
			if mon.Primary || len(mons.Monitors) == 1 {
				m.area = platform.Rect{Width: mon.UsableW, Height: mon.UsableH}
			}
		}
	}
	return m
}

func (m model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := m.daemon.GetStatus()
		return statusMsg{status: st, err: err}
	}
}

func (m model) do(what string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{what: what, err: fn()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())

	case statusMsg:
		if msg.err != nil {
			m.connected = false
			m.status = nil
			m.lastError = msg.err.Error()
			return m, nil
		}
		m.connected = true
		m.status = msg.status
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.lastError = msg.what + ": " + msg.err.Error()
			m.lastInfo = ""
		} else {
			m.lastError = ""
			m.lastInfo = msg.what
		}
		return m, m.fetchStatus()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.focus):
			id, _ := strconv.Atoi(msg.String())
			return m, m.do("focus "+msg.String(), func() error { return m.daemon.Focus(id) })
		case key.Matches(msg, m.keys.next):
			return m, m.do("next", func() error { return m.daemon.Cycle("next") })
		case key.Matches(msg, m.keys.previous):
			return m, m.do("previous", func() error { return m.daemon.Cycle("previous") })
		case key.Matches(msg, m.keys.relayout):
			return m, m.do("relayout", m.daemon.Relayout)
		case key.Matches(msg, m.keys.reset):
			return m, m.do("reset", m.daemon.ForceReset)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.connected, m.width)
	helpBar := renderHelpBar(m.keys, m.lastInfo, m.lastError, m.width)

	contentHeight := m.height - lipgloss.Height(statusBar) - lipgloss.Height(helpBar)
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	if m.status == nil {
		content = renderPlaceholder("waiting for daemon", m.width, contentHeight)
	} else {
		tableWidth := m.width / 2
		table := renderSlotTable(m.status, tableWidth, contentHeight)
		preview := m.renderTemplate(m.width-tableWidth, contentHeight)
		content = lipgloss.JoinHorizontal(lipgloss.Top, table, preview)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		content,
		helpBar,
	)
}
