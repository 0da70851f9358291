package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/storage"
)

var (
	graphTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B4BEFE"))
	graphAxisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	cpuGraphStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
	memGraphStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	bothGraphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7"))
)

// renderDualGraphWithRange renders CPU and memory of series on one graph
func renderDualGraphWithRange(series model.Series, width, height int, timeRange storage.TimeRange) string {
	var s strings.Builder

	s.WriteString(graphTitleStyle.Render("📈 Resource Usage - "+timeRange.String()) + "\n")
	s.WriteString(graphAxisStyle.Render("[1]30m [2]1h [3]6h [4]1d [5]1w [t] next") + "\n\n")

	if series.Len() == 0 {
		s.WriteString("Waiting for data...\n")
		s.WriteString("History appears once the sampler has recorded the container.")
		return s.String()
	}

	graphHeight := height - 14
	if graphHeight < 5 {
		graphHeight = 5
	}
	s.WriteString(renderCombinedGraph(series, width-8, graphHeight))
	return s.String()
}

// renderCombinedGraph creates a multi-line ASCII graph with both CPU and memory
func renderCombinedGraph(series model.Series, width, height int) string {
	var s strings.Builder

	cpuData, memData := series.CPUUsage, series.RAMUsage
	if len(cpuData) == 0 || len(memData) != len(cpuData) {
		return "Waiting for data..."
	}

	cpuLegend := cpuGraphStyle.Render("█") + " CPU: " + cpuGraphStyle.Render(fmt.Sprintf("%.1f%%", cpuData[len(cpuData)-1]))
	memLegend := memGraphStyle.Render("█") + " Memory: " + memGraphStyle.Render(fmt.Sprintf("%.1f%%", memData[len(memData)-1]))
	s.WriteString(cpuLegend + "  " + memLegend + "  " + bothGraphStyle.Render("█") + " Both\n\n")

	// CPU can exceed 100 on multi-core hosts
	minVal, maxVal := 0.0, 100.0
	for _, v := range cpuData {
		if v > maxVal {
			maxVal = v
		}
	}

	// leave room for the Y-axis labels
	maxWidth := width - 10
	if maxWidth < 20 {
		maxWidth = 20
	}
	startIdx := len(cpuData) - maxWidth
	if startIdx < 0 {
		startIdx = 0
	}
	displayCPU := cpuData[startIdx:]
	displayMem := memData[startIdx:]

	for row := height; row >= 0; row-- {
		var line strings.Builder

		isGridLine := row == height || row == height*3/4 || row == height/2 || row == height/4 || row == 0

		switch row {
		case height:
			line.WriteString(graphAxisStyle.Render(fmt.Sprintf("%3.0f%% ", maxVal)))
		case height * 3 / 4:
			line.WriteString(graphAxisStyle.Render(fmt.Sprintf("%3.0f%% ", maxVal*0.75)))
		case height / 2:
			line.WriteString(graphAxisStyle.Render(fmt.Sprintf("%3.0f%% ", maxVal*0.5)))
		case height / 4:
			line.WriteString(graphAxisStyle.Render(fmt.Sprintf("%3.0f%% ", maxVal*0.25)))
		case 0:
			line.WriteString(graphAxisStyle.Render(fmt.Sprintf("%3.0f%% ", minVal)))
		default:
			line.WriteString("     ")
		}
		line.WriteString(graphAxisStyle.Render("│"))

		threshold := minVal + (float64(row)/float64(height))*(maxVal-minVal)
		for i := range displayCPU {
			cpuAbove := displayCPU[i] >= threshold
			memAbove := displayMem[i] >= threshold

			switch {
			case isGridLine && !cpuAbove && !memAbove:
				line.WriteString(graphAxisStyle.Render("·"))
			case cpuAbove && memAbove:
				line.WriteString(bothGraphStyle.Render("█"))
			case cpuAbove:
				line.WriteString(cpuGraphStyle.Render("█"))
			case memAbove:
				line.WriteString(memGraphStyle.Render("█"))
			default:
				line.WriteString(" ")
			}
		}

		s.WriteString(line.String() + "\n")
	}

	axisLength := len(displayCPU)
	s.WriteString("     " + graphAxisStyle.Render("└"+strings.Repeat("─", axisLength)) + "\n")

	span := spanOf(series.Timestamps[startIdx:])
	s.WriteString(renderTimeLabels(axisLength, span) + "\n\n")
	s.WriteString(graphAxisStyle.Render(fmt.Sprintf("Showing %d of %d points", axisLength, series.Len())))

	return s.String()
}

// spanOf returns the time covered by unix timestamps in seconds.
func spanOf(timestamps []float64) time.Duration {
	if len(timestamps) < 2 {
		return 0
	}
	return time.Duration((timestamps[len(timestamps)-1] - timestamps[0]) * float64(time.Second))
}

// renderTimeLabels creates time markers along the X-axis
func renderTimeLabels(axisLength int, span time.Duration) string {
	if axisLength < 20 {
		return graphAxisStyle.Render("     " + agoLabel(span) + " → Now")
	}

	numMarkers := 5
	if axisLength < 50 {
		numMarkers = 3
	}

	var s strings.Builder
	s.WriteString("     ")

	currentCol := 0
	for i := 0; i < numMarkers; i++ {
		position := (i * axisLength) / (numMarkers - 1)
		if i == numMarkers-1 {
			position = axisLength - 1
		}
		// leftmost is oldest
		ago := span - time.Duration(float64(span)*float64(position)/float64(axisLength-1))
		label := agoLabel(ago)

		labelStart := position - len(label)/2
		if labelStart < currentCol {
			labelStart = currentCol
		}
		if pad := labelStart - currentCol; pad > 0 {
			s.WriteString(strings.Repeat(" ", pad))
		}
		s.WriteString(label)
		currentCol = labelStart + len(label)
	}

	return graphAxisStyle.Render(s.String())
}

func agoLabel(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "Now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
