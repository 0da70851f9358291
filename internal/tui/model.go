package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/remote"
	"github.com/rusenback/dockerstats/internal/storage"
)

// Source is the part of the API client the dashboard reads from.
type Source interface {
	Metrics(ctx context.Context, q remote.MetricsQuery) ([]model.Row, error)
	History(ctx context.Context, id string, window, bucket time.Duration) (model.Series, error)
	Processes(ctx context.Context, id string) ([]model.Process, error)
	Logs(ctx context.Context, id string, tail int) ([]string, error)
	Action(ctx context.Context, id, action string, emit func(string)) error
}

var _ Source = (*remote.Client)(nil)

// sortKeys are cycled with "o".
var sortKeys = []string{"combined", "cpu", "mem", "name"}

const logTail = 200

// Model represents the TUI application state
type Model struct {
	source   Source
	interval time.Duration

	rows    []model.Row
	cursor  int
	err     error
	loading bool
	message string
	width   int
	height  int
	sortIdx int

	// selectedID follows the container, not the row index
	selectedID string
	series     model.Series
	processes  []model.Process

	logs           []string
	logsScroll     int
	logsAutoScroll bool

	timeRange storage.TimeRange

	// action in flight
	busy       bool
	actionWait tea.Cmd
}

// Message types for Bubbletea update loop
type tickMsg time.Time

type rowsMsg struct {
	rows []model.Row
	err  error
}

type seriesMsg struct {
	id     string
	series model.Series
	err    error
}

type detailMsg struct {
	id        string
	processes []model.Process
	logs      []string
	err       error
}

type actionLineMsg string

type actionDoneMsg struct {
	name   string
	action string
	err    error
}

// NewModel creates a new TUI model polling source every interval.
func NewModel(source Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Model{
		source:         source,
		interval:       interval,
		loading:        true,
		logsAutoScroll: true,
		timeRange:      storage.Range30Min,
	}
}

// Init initializes the model and returns initial commands
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchRows(m.source, m.query(false)), tickCmd(m.interval))
}

func (m Model) query(force bool) remote.MetricsQuery {
	key := sortKeys[m.sortIdx]
	return remote.MetricsQuery{Sort: key, Asc: key == "name", Force: force}
}

func (m Model) selected() (model.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return model.Row{}, false
	}
	return m.rows[m.cursor], true
}
