package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/storage"
)

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(fetchRows(m.source, m.query(false)), m.refreshSelected(), tickCmd(m.interval))

	case rowsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.rows = msg.rows
		cmd := m.followSelection()
		return m, cmd

	case seriesMsg:
		if msg.id != m.selectedID {
			return m, nil
		}
		if msg.err != nil {
			m.series = model.Series{}
			return m, nil
		}
		m.series = msg.series

	case detailMsg:
		if msg.id != m.selectedID {
			return m, nil
		}
		if msg.err != nil {
			m.message = fmt.Sprintf("Detail error: %v", msg.err)
			return m, nil
		}
		m.processes = msg.processes
		m.logs = msg.logs
		if m.logsAutoScroll {
			m.logsScroll = m.calculateMaxScroll()
		}

	case actionLineMsg:
		m.message = string(msg)
		return m, m.actionWait

	case actionDoneMsg:
		m.busy = false
		m.actionWait = nil
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %s %s: %v", msg.action, msg.name, msg.err)
		} else {
			m.message = fmt.Sprintf("Done: %s %s", msg.action, msg.name)
		}
		return m, tea.Batch(fetchRows(m.source, m.query(false)), m.refreshSelected())
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			cmd := m.selectCursor()
			return m, cmd
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			cmd := m.selectCursor()
			return m, cmd
		}

	case "s":
		return m.runAction("start")
	case "x":
		return m.runAction("stop")
	case "r":
		return m.runAction("restart")
	case "u":
		return m.runAction("update")

	case "R":
		m.loading = true
		m.message = "Refreshing..."
		return m, fetchRows(m.source, m.query(false))

	case "F":
		m.message = "Update check requested"
		return m, fetchRows(m.source, m.query(true))

	case "o":
		m.sortIdx = (m.sortIdx + 1) % len(sortKeys)
		m.message = "Sorted by " + sortKeys[m.sortIdx]
		return m, fetchRows(m.source, m.query(false))

	case "1", "2", "3", "4", "5":
		m.timeRange = storage.TimeRanges[int(key[0]-'1')]
		return m, m.refreshSeries()
	case "t":
		m.timeRange = m.timeRange.Next()
		return m, m.refreshSeries()

	case "pgup":
		// half a page at a time
		step := m.calculateVisibleLogLines() / 2
		if step < 1 {
			step = 1
		}
		m.logsScroll -= step
		if m.logsScroll < 0 {
			m.logsScroll = 0
		}
		m.logsAutoScroll = false

	case "pgdown":
		step := m.calculateVisibleLogLines() / 2
		if step < 1 {
			step = 1
		}
		maxScroll := m.calculateMaxScroll()
		m.logsScroll += step
		if m.logsScroll >= maxScroll {
			m.logsScroll = maxScroll
			m.logsAutoScroll = true
		}

	case "home":
		m.logsScroll = 0
		m.logsAutoScroll = false

	case "end":
		m.logsScroll = m.calculateMaxScroll()
		m.logsAutoScroll = true

	case "a":
		m.logsAutoScroll = !m.logsAutoScroll
		if m.logsAutoScroll {
			m.logsScroll = m.calculateMaxScroll()
		}
	}

	return m, nil
}

func (m Model) runAction(action string) (tea.Model, tea.Cmd) {
	row, ok := m.selected()
	if !ok {
		return m, nil
	}
	if m.busy {
		m.message = "Another action is still running"
		return m, nil
	}
	m.busy = true
	m.message = fmt.Sprintf("%s %s...", action, row.Name)
	lines, done := startAction(m.source, row.ID, action)
	m.actionWait = waitForAction(lines, done, row.Name, action)
	return m, m.actionWait
}

// followSelection keeps the cursor on the selected container across list
// refreshes, then selects whatever the cursor ends up on.
func (m *Model) followSelection() tea.Cmd {
	for i, r := range m.rows {
		if r.ID == m.selectedID {
			m.cursor = i
			break
		}
	}
	return m.selectCursor()
}

// selectCursor reloads detail when the row under the cursor changed.
func (m *Model) selectCursor() tea.Cmd {
	if len(m.rows) == 0 {
		m.cursor = 0
		m.clearSelection("")
		return nil
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	row, _ := m.selected()
	if row.ID == m.selectedID {
		return nil
	}
	m.clearSelection(row.ID)
	return m.refreshSelected()
}

func (m *Model) clearSelection(id string) {
	m.selectedID = id
	m.series = model.Series{}
	m.processes = nil
	m.logs = nil
	m.logsScroll = 0
	m.logsAutoScroll = true
}

func (m Model) refreshSelected() tea.Cmd {
	if m.selectedID == "" {
		return nil
	}
	return tea.Batch(m.refreshSeries(), fetchDetail(m.source, m.selectedID))
}

func (m Model) refreshSeries() tea.Cmd {
	if m.selectedID == "" {
		return nil
	}
	return fetchSeries(m.source, m.selectedID, m.timeRange)
}
