package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rusenback/dockerstats/internal/model"
)

const maxProcesses = 10

// RenderStats renders the latest figures of one container.
func RenderStats(row model.Row, processes []model.Process, width int) string {
	barLength := width - 24
	if barLength > 30 {
		barLength = 30
	}
	if barLength < 10 {
		barLength = 10
	}

	cpuStr := fmt.Sprintf("%6.2f%% |%s|", row.CPU, renderBar(row.CPU, barLength))
	cpuBox := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#89B4FA")).
		Padding(0, 1).
		Render("CPU\n" + colorize(row.CPU, cpuStr))

	limit := "host"
	if row.MemLimit != nil {
		limit = fmt.Sprintf("%.2f MB", *row.MemLimit)
	}
	memStr := fmt.Sprintf("%.2f MB / %s (%.2f%%)\n|%s|", row.MemUsage, limit, row.Mem, renderBar(row.Mem, barLength))
	memBox := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#A6E3A1")).
		Padding(0, 1).
		Render("MEM\n" + colorize(row.Mem, memStr))

	info := []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5C2E7")).Render("Container: " + row.Name),
		dimStyle.Render(fmt.Sprintf("Image: %s  Ports: %s", row.Image, row.Ports)),
		fmt.Sprintf("Uptime: %s  Restarts: %d  PIDs: %d", row.Uptime, row.Restarts, row.PIDCount),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")).
			Render(fmt.Sprintf("Network: Rx %.2f MB | Tx %.2f MB", row.NetRx, row.NetTx)),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7")).
			Render(fmt.Sprintf("Disk I/O: Read %.2f MB | Write %.2f MB", row.BlockRead, row.BlockWrite)),
		"Update: " + updateText(row.UpdateAvailable),
	}
	if row.ComposeProject != "" {
		info = append(info, dimStyle.Render(fmt.Sprintf("Compose: %s/%s", row.ComposeProject, row.ComposeService)))
	}

	parts := []string{info[0], cpuBox, memBox}
	parts = append(parts, info[1:]...)
	parts = append(parts, renderProcesses(processes))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderBar(percent float64, length int) string {
	filled := int(percent / 100 * float64(length))
	if filled > length {
		filled = length
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("─", length-filled)
}

func colorize(percent float64, text string) string {
	var color string
	switch {
	case percent > 80:
		color = "#F38BA8"
	case percent > 50:
		color = "#FAB387"
	default:
		color = "#A6E3A1"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

func updateText(u model.UpdateStatus) string {
	switch u {
	case model.UpdateAvailable:
		return updateStyle.Render("available")
	case model.UpdateCurrent:
		return runningStyle.Render("up to date")
	default:
		return dimStyle.Render("unknown")
	}
}

// renderProcesses renders the top of the process table
func renderProcesses(processes []model.Process) string {
	if len(processes) == 0 {
		return ""
	}

	var s strings.Builder
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9E2AF")).Render("Processes") + "\n")

	header := fmt.Sprintf("%-8s %-10s %6s %6s %s", "PID", "USER", "%CPU", "%MEM", "COMMAND")
	s.WriteString(dimStyle.Bold(true).Render(header) + "\n")

	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
	for i, proc := range processes {
		if i == maxProcesses {
			s.WriteString(dimStyle.Render(fmt.Sprintf("... %d more", len(processes)-maxProcesses)) + "\n")
			break
		}
		row := fmt.Sprintf("%-8s %-10s %6s %6s %s",
			truncate(proc.PID, 8),
			truncate(proc.User, 10),
			truncate(proc.CPU, 6),
			truncate(proc.Memory, 6),
			truncate(proc.Command, 40))
		s.WriteString(rowStyle.Render(row) + "\n")
	}

	return s.String()
}
