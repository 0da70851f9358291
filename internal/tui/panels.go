package tui

import (
	"fmt"
	"strings"

	"github.com/rusenback/dockerstats/internal/model"
)

// renderContainerListPanel renders the container list panel
func (m Model) renderContainerListPanel(width, height int) string {
	return panelStyle.
		Width(width - 4).
		Height(height - 4).
		Render(m.renderListPanelContent(width, height))
}

func (m Model) renderListPanelContent(width, height int) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("🐳 Containers") + "\n\n")

	if m.err != nil {
		s.WriteString(fmt.Sprintf("Error: %v\n", m.err))
		return s.String()
	}

	if m.loading && len(m.rows) == 0 {
		s.WriteString("Loading...\n")
		return s.String()
	}

	running := 0
	for _, r := range m.rows {
		if r.Status == "running" {
			running++
		}
	}
	s.WriteString(fmt.Sprintf("%d tracked, %d running, sorted by %s\n\n", len(m.rows), running, sortKeys[m.sortIdx]))

	colWidth := width - 10
	cpuWidth, memWidth, updWidth := 7, 7, 3
	statusWidth := 14
	nameWidth := colWidth - cpuWidth - memWidth - updWidth - statusWidth - 4
	if nameWidth < 8 {
		nameWidth = 8
	}

	header := fmt.Sprintf("%-*s %*s %*s %-*s %-*s",
		nameWidth, "NAME",
		cpuWidth, "CPU%",
		memWidth, "MEM%",
		statusWidth, "STATUS",
		updWidth, "UPD")
	s.WriteString(headerStyle.Render(header) + "\n")

	// room for title, summary, header and help
	maxRows := height - 12
	if maxRows < 1 {
		maxRows = 1
	}
	first := 0
	if m.cursor >= maxRows {
		first = m.cursor - maxRows + 1
	}

	for i := first; i < len(m.rows) && i < first+maxRows; i++ {
		r := m.rows[i]
		status := fmt.Sprintf("%-*s", statusWidth, truncate(r.Status, statusWidth))
		line := fmt.Sprintf("%-*s %*.1f %*.1f %s %-*s",
			nameWidth, truncate(r.Name, nameWidth),
			cpuWidth, r.CPU,
			memWidth, r.Mem,
			statusStyle(r.Status).Render(status),
			updWidth, updateMark(r.UpdateAvailable))

		if i == m.cursor {
			s.WriteString(selectedStyle.Render("> " + line))
		} else {
			s.WriteString("  " + line)
		}
		s.WriteString("\n")
	}

	if m.message != "" {
		s.WriteString("\n" + truncate(m.message, colWidth) + "\n")
	}

	help := "\n[↑/k] up [↓/j] down [s]tart [x]stop [r]estart [u]pdate\n[o] sort [F] check updates [R] refresh [q] quit"
	s.WriteString(helpStyle.Render(help))

	return s.String()
}

func updateMark(u model.UpdateStatus) string {
	switch u {
	case model.UpdateAvailable:
		return updateStyle.Render("↑")
	case model.UpdateCurrent:
		return "✓"
	default:
		return dimStyle.Render("?")
	}
}

// renderGraphPanel renders the graph panel with the selected history
func (m Model) renderGraphPanel(width, height int) string {
	content := renderDualGraphWithRange(m.series, width-4, height-4, m.timeRange)
	return panelStyle.
		Width(width - 4).
		Height(height - 4).
		Render(content)
}

// renderLogPanel renders the log panel
func (m Model) renderLogPanel(width, height int) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("📋 Log Preview") + "\n\n")

	row, ok := m.selected()
	if !ok {
		s.WriteString("No container selected")
	} else {
		s.WriteString("Container: " + row.Name)
		if m.logsAutoScroll {
			s.WriteString(" [Auto-scroll: ON]")
		}
		s.WriteString("\n\n")

		if len(m.logs) == 0 {
			s.WriteString("No logs yet...")
		} else {
			visible := m.calculateVisibleLogLines()
			total := len(m.logs)
			start := m.logsScroll
			if start > total-visible {
				start = total - visible
			}
			if start < 0 {
				start = 0
			}
			end := start + visible
			if end > total {
				end = total
			}

			maxLineWidth := width - 8
			for _, line := range m.logs[start:end] {
				s.WriteString(styleLogLine(line, maxLineWidth) + "\n")
			}

			if total > visible {
				s.WriteString(dimStyle.Render(fmt.Sprintf("\n[%d/%d] PgUp/PgDown:scroll | a:toggle auto", start+1, total)))
			}
		}
	}

	return panelStyle.
		Width(width - 4).
		Height(height - 4).
		Render(s.String())
}

// renderStatsPanel renders the stats panel
func (m Model) renderStatsPanel(width, height int) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("📊 Stats") + "\n\n")

	if row, ok := m.selected(); ok {
		s.WriteString(RenderStats(row, m.processes, width-8))
	} else {
		s.WriteString("No containers available")
	}

	return panelStyle.
		Width(width - 4).
		Height(height - 4).
		Render(s.String())
}
