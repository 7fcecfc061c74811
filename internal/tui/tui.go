package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/ipc"
)

// Run starts the seat dashboard. configPath may be empty for the default
// location; the config is only used to draw template previews.
func Run(configPath string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	var cfg *config.Config
	if configPath == "" {
		cfg, _ = config.Load()
	} else if res, err := config.LoadFromPath(configPath); err == nil {
		cfg = res.Config
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	p := tea.NewProgram(newModel(ipc.NewClient(), cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
