package tui

// truncate shortens a string to a maximum number of runes
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func (m Model) topHeight() int {
	return int(float64(m.height) * 0.6)
}

// calculateVisibleLogLines calculates how many log lines can fit in the panel
func (m Model) calculateVisibleLogLines() int {
	// borders, padding, title and container line
	visibleLines := m.height - m.topHeight() - 10
	if visibleLines < 3 {
		visibleLines = 3
	}
	return visibleLines
}

// calculateMaxScroll calculates the maximum scroll position
func (m Model) calculateMaxScroll() int {
	maxScroll := len(m.logs) - m.calculateVisibleLogLines()
	if maxScroll < 0 {
		maxScroll = 0
	}
	return maxScroll
}
