package tui

import "github.com/charmbracelet/lipgloss"

// View renders the TUI interface
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	return m.renderFourPanelView()
}

// renderFourPanelView renders the four-panel grid layout
func (m Model) renderFourPanelView() string {
	// 60/40 split both ways
	leftWidth := int(float64(m.width) * 0.6)
	rightWidth := m.width - leftWidth

	topHeight := m.topHeight()
	bottomHeight := m.height - topHeight

	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderContainerListPanel(leftWidth, topHeight),
		m.renderStatsPanel(rightWidth, topHeight),
	)
	bottomRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderGraphPanel(leftWidth, bottomHeight),
		m.renderLogPanel(rightWidth, bottomHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, topRow, bottomRow)
}
