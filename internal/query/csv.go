package query

import (
	"encoding/csv"
	"io"
	"strconv"

	"emperror.dev/errors"

	"github.com/rusenback/dockerstats/internal/model"
)

// CSVHeader matches the JSON field names of model.Row.
var CSVHeader = []string{
	"id", "name", "pid_count", "cpu", "mem", "mem_usage", "mem_limit", "combined",
	"status", "uptime_sec", "uptime", "size_rw", "size_rootfs", "net_io_rx",
	"net_io_tx", "block_io_r", "block_io_w", "image", "ports", "restarts",
	"update_available", "compose_project", "compose_service",
}

// WriteCSV writes rows with a header line. Absent values are empty cells.
func WriteCSV(w io.Writer, rows []model.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.WrapIf(err, "failed to write csv header")
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			r.Name,
			strconv.FormatUint(r.PIDCount, 10),
			formatFloat(r.CPU),
			formatFloat(r.Mem),
			formatFloat(r.MemUsage),
			formatFloatPtr(r.MemLimit),
			formatFloat(r.Combined),
			r.Status,
			formatIntPtr(r.UptimeSec),
			r.Uptime,
			formatFloatPtr(r.SizeRw),
			formatFloatPtr(r.SizeRootFs),
			formatFloat(r.NetRx),
			formatFloat(r.NetTx),
			formatFloat(r.BlockRead),
			formatFloat(r.BlockWrite),
			r.Image,
			r.Ports,
			strconv.Itoa(r.Restarts),
			formatUpdate(r.UpdateAvailable),
			r.ComposeProject,
			r.ComposeService,
		}
		if err := cw.Write(record); err != nil {
			return errors.WrapIf(err, "failed to write csv row")
		}
	}
	cw.Flush()
	return errors.WrapIf(cw.Error(), "failed to flush csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatUpdate(u model.UpdateStatus) string {
	if b := u.Bool(); b != nil {
		return strconv.FormatBool(*b)
	}
	return ""
}
