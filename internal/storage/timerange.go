package storage

import (
	"time"

	"github.com/rusenback/dockerstats/internal/model"
)

// TimeRange is one of the preset history windows offered by the dashboard.
type TimeRange int

const (
	Range30Min TimeRange = iota
	Range1Hour
	Range6Hour
	Range1Day
	Range1Week
)

// TimeRanges lists the presets in cycling order.
var TimeRanges = []TimeRange{Range30Min, Range1Hour, Range6Hour, Range1Day, Range1Week}

func (t TimeRange) String() string {
	switch t {
	case Range30Min:
		return "30min"
	case Range1Hour:
		return "1hour"
	case Range6Hour:
		return "6hours"
	case Range1Day:
		return "1day"
	case Range1Week:
		return "1week"
	default:
		return "unknown"
	}
}

// Duration returns the window length.
func (t TimeRange) Duration() time.Duration {
	switch t {
	case Range1Hour:
		return time.Hour
	case Range6Hour:
		return 6 * time.Hour
	case Range1Day:
		return 24 * time.Hour
	case Range1Week:
		return 7 * 24 * time.Hour
	default:
		return 30 * time.Minute
	}
}

// Bucket returns the averaging bucket used when plotting the window. Zero
// means full resolution.
func (t TimeRange) Bucket() time.Duration {
	switch t {
	case Range1Hour:
		return 30 * time.Second
	case Range6Hour:
		return 5 * time.Minute
	case Range1Day:
		return 10 * time.Minute
	case Range1Week:
		return time.Hour
	default:
		return 0
	}
}

// Next cycles to the following preset.
func (t TimeRange) Next() TimeRange {
	return TimeRanges[(int(t)+1)%len(TimeRanges)]
}

// Downsample averages records into fixed buckets aligned to the Unix epoch.
// CPU and memory figures are averaged; cumulative counters, the name and the
// statuses are taken from the last record of each bucket. The input must be
// in chronological order, which is what Range returns.
func Downsample(records []model.MetricRecord, bucket time.Duration) []model.MetricRecord {
	if bucket <= 0 || len(records) == 0 {
		out := make([]model.MetricRecord, len(records))
		copy(out, records)
		return out
	}

	var (
		out   []model.MetricRecord
		acc   model.MetricRecord
		n     int
		start time.Time
	)
	flush := func() {
		if n == 0 {
			return
		}
		acc.Timestamp = start
		if len(out) == 0 {
			// the first bucket may start before the queried range
			acc.Timestamp = records[0].Timestamp
		}
		acc.CPUPercent /= float64(n)
		acc.MemPercent /= float64(n)
		acc.MemUsageMiB /= float64(n)
		out = append(out, acc)
	}

	for _, rec := range records {
		b := rec.Timestamp.Truncate(bucket)
		if n == 0 || !b.Equal(start) {
			flush()
			start, n = b, 0
			acc = model.MetricRecord{}
		}
		cpu, mem, usage := acc.CPUPercent, acc.MemPercent, acc.MemUsageMiB
		acc = rec
		acc.CPUPercent = cpu + rec.CPUPercent
		acc.MemPercent = mem + rec.MemPercent
		acc.MemUsageMiB = usage + rec.MemUsageMiB
		n++
	}
	flush()

	return out
}

// BucketFor returns the bucket of the smallest preset covering window.
// Windows longer than every preset use the widest one.
func BucketFor(window time.Duration) time.Duration {
	for _, t := range TimeRanges {
		if window <= t.Duration() {
			return t.Bucket()
		}
	}
	return TimeRanges[len(TimeRanges)-1].Bucket()
}
