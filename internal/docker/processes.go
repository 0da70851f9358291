package docker

import (
	"context"

	"emperror.dev/errors"

	"github.com/rusenback/dockerstats/internal/model"
)

// ListProcesses hakee containerin prosessit (ps aux)
func (c *Client) ListProcesses(ctx context.Context, id string) ([]model.Process, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	top, err := c.cli.ContainerTop(ctx, id, []string{"aux"})
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to list processes", "container", id)
	}

	return parseTop(top.Titles, top.Processes), nil
}

// parseTop maps ps output columns onto processes. Missing columns stay empty.
func parseTop(titles []string, rows [][]string) []model.Process {
	pidIdx, userIdx, cpuIdx, memIdx, cmdIdx := -1, -1, -1, -1, -1
	for i, title := range titles {
		switch title {
		case "PID":
			pidIdx = i
		case "USER", "UID":
			userIdx = i
		case "%CPU":
			cpuIdx = i
		case "%MEM":
			memIdx = i
		case "COMMAND", "CMD":
			cmdIdx = i
		}
	}

	processes := make([]model.Process, 0, len(rows))
	for _, row := range rows {
		if pidIdx < 0 || pidIdx >= len(row) {
			continue
		}
		processes = append(processes, model.Process{
			PID:     column(row, pidIdx),
			User:    column(row, userIdx),
			CPU:     column(row, cpuIdx),
			Memory:  column(row, memIdx),
			Command: column(row, cmdIdx),
		})
	}
	return processes
}

func column(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
