package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/dockerstats/internal/remote"
	"github.com/rusenback/dockerstats/internal/storage"
)

const requestTimeout = 10 * time.Second

// tickCmd creates a command that sends a tick message every interval
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchRows(source Source, q remote.MetricsQuery) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		rows, err := source.Metrics(ctx, q)
		return rowsMsg{rows: rows, err: err}
	}
}

func fetchSeries(source Source, id string, r storage.TimeRange) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		series, err := source.History(ctx, id, r.Duration(), r.Bucket())
		return seriesMsg{id: id, series: series, err: err}
	}
}

// fetchDetail loads the process list and the log tail of id.
func fetchDetail(source Source, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		procs, err := source.Processes(ctx, id)
		if err != nil {
			return detailMsg{id: id, err: err}
		}
		logs, err := source.Logs(ctx, id, logTail)
		return detailMsg{id: id, processes: procs, logs: logs, err: err}
	}
}

// startAction runs action in the background. Progress lines arrive on the
// first channel, the result on the second once the lines are drained.
func startAction(source Source, id, action string) (<-chan string, <-chan error) {
	lines := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		err := source.Action(context.Background(), id, action, func(line string) {
			lines <- line
		})
		close(lines)
		done <- err
	}()
	return lines, done
}

// waitForAction creates a command that waits for the next progress line
func waitForAction(lines <-chan string, done <-chan error, name, action string) tea.Cmd {
	return func() tea.Msg {
		if line, ok := <-lines; ok {
			return actionLineMsg(line)
		}
		return actionDoneMsg{name: name, action: action, err: <-done}
	}
}
