// Package metrics turns raw engine stats snapshots into percentages and
// totals. Nothing here performs I/O, and nothing here fails: malformed or
// missing input degrades to zero so that one bad snapshot never aborts a
// sampling cycle.
package metrics

import (
	"math"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/rusenback/dockerstats/internal/model"
)

// CPUPercent laskee CPU käytön prosentteina kahden snapshotin erotuksesta.
func CPUPercent(current, previous *model.RawSnapshot) float64 {
	if current == nil || previous == nil {
		return 0.0
	}
	cur, prev := current.CPUStats, previous.CPUStats
	if cur == nil || prev == nil || cur.CPUUsage == nil || prev.CPUUsage == nil {
		return 0.0
	}
	if cur.CPUUsage.TotalUsage == nil || prev.CPUUsage.TotalUsage == nil {
		return 0.0
	}
	if cur.SystemUsage == nil || prev.SystemUsage == nil {
		return 0.0
	}

	cpuCount := onlineCPUs(cur)
	if cpuCount == 0 {
		return 0.0
	}

	cpuDelta := float64(*cur.CPUUsage.TotalUsage) - float64(*prev.CPUUsage.TotalUsage)
	systemDelta := float64(*cur.SystemUsage) - float64(*prev.SystemUsage)
	if systemDelta <= 0.0 || cpuDelta < 0.0 {
		return 0.0
	}

	return math.Max(0.0, (cpuDelta/systemDelta)*float64(cpuCount)*100.0)
}

func onlineCPUs(stats *model.CPUStats) uint32 {
	if stats.OnlineCPUs != nil {
		return *stats.OnlineCPUs
	}
	if n := len(stats.CPUUsage.PercpuUsage); n > 0 {
		return uint32(n)
	}
	return 1
}

// MemPercentAndUsage returns memory usage as a percentage of the limit,
// clamped to [0,100], and the usage in MiB.
func MemPercentAndUsage(current *model.RawSnapshot) (float64, float64) {
	if current == nil || current.MemoryStats == nil {
		return 0.0, 0
	}
	mem := current.MemoryStats
	if mem.Usage == nil || mem.Limit == nil || *mem.Limit == 0 {
		return 0.0, 0
	}

	percent := float64(*mem.Usage) / float64(*mem.Limit) * 100.0
	percent = math.Max(0.0, math.Min(percent, 100.0))
	return percent, datasize.ByteSize(*mem.Usage).MBytes()
}

// NetIO sums received and transmitted bytes over every interface, in MB.
func NetIO(current *model.RawSnapshot) (float64, float64) {
	if current == nil {
		return 0, 0
	}
	var rx, tx uint64
	for _, network := range current.Networks {
		if network == nil {
			continue
		}
		rx += network.RxBytes
		tx += network.TxBytes
	}
	return toMB(rx), toMB(tx)
}

// BlockIO sums the recursive service-bytes counters by operation, in MB.
// Operations other than read and write are ignored.
func BlockIO(current *model.RawSnapshot) (float64, float64) {
	if current == nil || current.BlkioStats == nil {
		return 0, 0
	}
	var read, write uint64
	for _, entry := range current.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(entry.Op) {
		case "read":
			read += entry.Value
		case "write":
			write += entry.Value
		}
	}
	return toMB(read), toMB(write)
}

// PIDs returns the number of processes and threads in the container.
func PIDs(current *model.RawSnapshot) uint64 {
	if current == nil || current.PidsStats == nil {
		return 0
	}
	return current.PidsStats.Current
}

func toMB(b uint64) float64 {
	return Round2(datasize.ByteSize(b).MBytes())
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
