package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/multiboxer/internal/ipc"
)

var (
	foregroundStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
)

// renderStatusBar renders the daemon and swap machine summary line.
func renderStatusBar(st *ipc.StatusData, connected bool, width int) string {
	var status string
	if connected && st != nil {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{dot + " daemon connected"}
		if st.Template != "" {
			parts = append(parts, "template:"+st.Template)
		}
		parts = append(parts, "swap:"+st.SwapState)
		if st.RecoveryCause != "" {
			parts = append(parts, errorStyle.Render("recovery: "+st.RecoveryCause))
		}
		parts = append(parts,
			fmt.Sprintf("done:%d dropped:%d failed:%d", st.Completed, st.Dropped, st.Failed),
			"up "+st.Uptime)
		status = strings.Join(parts, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		status = dot + " daemon not running"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(status)
}

// renderSlotTable lists every configured slot.
func renderSlotTable(st *ipc.StatusData, width, height int) string {
	lines := []string{headerStyle.Render(fmt.Sprintf("%-4s %-12s %-11s %-8s %s", "SLOT", "PROFILE", "STATE", "PID", "UPTIME"))}
	for _, s := range st.Slots {
		pid := "-"
		if s.PID > 0 {
			pid = fmt.Sprintf("%d", s.PID)
		}
		line := fmt.Sprintf("%-4d %-12s %-11s %-8s %s", s.ID, truncate(s.Profile, 12), s.State, pid, s.Uptime)
		switch {
		case s.Foreground:
			line = foregroundStyle.Render(line + " *")
		case s.LastError != "":
			line = errorStyle.Render(line + " " + s.LastError)
		case s.State == "exited" || s.State == "empty":
			line = dimStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(st.Slots) == 0 {
		lines = append(lines, dimStyle.Render("no slots configured"))
	}
	if st.Deferred {
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("layout deferred: %d of %d slots active", st.Active, st.Capacity)))
	}
	if st.LastSwap != "" {
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("last swap %s (%s, %d moved)", st.LastSwap, st.LastPath, st.LastTouched)))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// renderPlaceholder renders centred filler text.
func renderPlaceholder(msg string, width, height int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Foreground(lipgloss.Color("241")).
		Align(lipgloss.Center, lipgloss.Center)
	return style.Render(msg)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(keys keyMap, info, errMsg string, width int) string {
	parts := make([]string, 0, len(keys.bindings()))
	for _, b := range keys.bindings() {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	help := strings.Join(parts, "  ")
	switch {
	case errMsg != "":
		help = errorStyle.Render(errMsg) + "  " + help
	case info != "":
		help = foregroundStyle.Render(info) + "  " + help
	}
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "~"
}
