package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/multiboxer/internal/ipc"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/region"
)

// activeSlots returns the ids of slots that own a window.
func activeSlots(st *ipc.StatusData) []int {
	var ids []int
	for _, s := range st.Slots {
		switch s.State {
		case "running", "foreground", "minimized":
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func (m model) renderTemplate(width, height int) string {
	if m.cfg == nil || m.status == nil || m.status.Template == "" {
		return renderPlaceholder("no template", width, height)
	}
	t, err := m.cfg.Template(m.status.Template, m.area)
	if err != nil {
		return renderPlaceholder("template "+m.status.Template+" not in local config", width, height)
	}

	regions := region.Remap(t, activeSlots(m.status))
	title := headerStyle.Render(fmt.Sprintf("%s (%d/%d bound)", t.Name, regions.Len(), t.Len()))
	canvas := renderASCIIPreview(regions, m.status.Foreground, m.area, width-2, height-1)
	return lipgloss.NewStyle().Width(width).Render(title + "\n" + strings.Join(canvas, "\n"))
}

// renderASCIIPreview draws the bound regions on a character canvas: the
// foreground slot in its fore rect, every other slot in its back rect.
func renderASCIIPreview(regions region.Map, foreground int, area platform.Rect, width, height int) []string {
	if width < 5 || height < 3 || !area.Valid() {
		return emptyCanvas(max(width, 0), max(height, 0))
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	// Backs first so the fore rect wins where they overlap.
	for _, r := range regions.Regions() {
		if r.SlotID == foreground {
			continue
		}
		drawTile(canvas, r.Back, fmt.Sprintf("%d", r.SlotID), area, width, height)
	}
	if r, ok := regions.Get(foreground); ok {
		drawTile(canvas, r.Fore, fmt.Sprintf("*%d", r.SlotID), area, width, height)
	}

	drawBorder(canvas, width, height)

	lines := make([]string, height)
	for i, row := range canvas {
		lines[i] = string(row)
	}
	return lines
}

func drawTile(canvas [][]rune, rect platform.Rect, label string, area platform.Rect, canvasW, canvasH int) {
	// Map rect coordinates to canvas coordinates
	x1 := rect.X * canvasW / area.Width
	y1 := rect.Y * canvasH / area.Height
	x2 := (rect.X + rect.Width) * canvasW / area.Width
	y2 := (rect.Y + rect.Height) * canvasH / area.Height

	// Clamp to canvas bounds
	x1 = max(x1, 1)
	y1 = max(y1, 1)
	x2 = min(x2, canvasW-2)
	y2 = min(y2, canvasH-2)

	// Need at least 2x2 for a tile
	if x2 <= x1 || y2 <= y1 {
		return
	}

	for x := x1; x <= x2; x++ {
		canvas[y1][x] = '─'
		canvas[y2][x] = '─'
	}
	for y := y1; y <= y2; y++ {
		canvas[y][x1] = '│'
		canvas[y][x2] = '│'
	}
	canvas[y1][x1] = '┌'
	canvas[y1][x2] = '┐'
	canvas[y2][x1] = '└'
	canvas[y2][x2] = '┘'

	// Clear the interior so an overlapping fore rect reads cleanly.
	for y := y1 + 1; y < y2; y++ {
		for x := x1 + 1; x < x2; x++ {
			canvas[y][x] = ' '
		}
	}

	centerY := (y1 + y2) / 2
	centerX := (x1 + x2) / 2
	if centerY > y1 && centerY < y2 {
		startX := centerX - len(label)/2
		for i, r := range label {
			if startX+i > x1 && startX+i < x2 {
				canvas[centerY][startX+i] = r
			}
		}
	}
}

func drawBorder(canvas [][]rune, width, height int) {
	for x := 0; x < width; x++ {
		canvas[0][x] = '═'
		canvas[height-1][x] = '═'
	}
	for y := 0; y < height; y++ {
		canvas[y][0] = '║'
		canvas[y][width-1] = '║'
	}
	canvas[0][0] = '╔'
	canvas[0][width-1] = '╗'
	canvas[height-1][0] = '╚'
	canvas[height-1][width-1] = '╝'
}

func emptyCanvas(width, height int) []string {
	lines := make([]string, height)
	empty := strings.Repeat(" ", width)
	for i := range lines {
		lines[i] = empty
	}
	return lines
}
