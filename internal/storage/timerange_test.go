package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/dockerstats/internal/model"
)

func TestTimeRange(t *testing.T) {
	tests := []struct {
		r        TimeRange
		name     string
		duration time.Duration
		bucket   time.Duration
	}{
		{Range30Min, "30min", 30 * time.Minute, 0},
		{Range1Hour, "1hour", time.Hour, 30 * time.Second},
		{Range6Hour, "6hours", 6 * time.Hour, 5 * time.Minute},
		{Range1Day, "1day", 24 * time.Hour, 10 * time.Minute},
		{Range1Week, "1week", 7 * 24 * time.Hour, time.Hour},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.name, test.r.String())
			assert.Equal(t, test.duration, test.r.Duration())
			assert.Equal(t, test.bucket, test.r.Bucket())
		})
	}
	assert.Equal(t, Range30Min, Range1Week.Next())
	assert.Equal(t, Range1Hour, Range30Min.Next())
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, time.Duration(0), BucketFor(5*time.Minute))
	assert.Equal(t, time.Duration(0), BucketFor(30*time.Minute))
	assert.Equal(t, 30*time.Second, BucketFor(45*time.Minute))
	assert.Equal(t, 10*time.Minute, BucketFor(24*time.Hour))
	assert.Equal(t, time.Hour, BucketFor(30*24*time.Hour))
}

func TestDownsample(t *testing.T) {
	var records []model.MetricRecord
	for i := 0; i < 6; i++ {
		r := rec(i*10, float64(i))
		r.MemPercent = float64(10 * i)
		r.PIDs = uint64(i)
		records = append(records, r)
	}

	out := Downsample(records, 30*time.Second)
	require.Len(t, out, 2)

	assert.Equal(t, t0, out[0].Timestamp)
	assert.InDelta(t, 1.0, out[0].CPUPercent, 1e-9)
	assert.InDelta(t, 10.0, out[0].MemPercent, 1e-9)
	assert.Equal(t, uint64(2), out[0].PIDs)

	assert.Equal(t, t0.Add(30*time.Second), out[1].Timestamp)
	assert.InDelta(t, 4.0, out[1].CPUPercent, 1e-9)
	assert.Equal(t, uint64(5), out[1].PIDs)
}

func TestDownsample_FirstBucketInsideRange(t *testing.T) {
	records := []model.MetricRecord{rec(20, 1), rec(25, 3), rec(40, 5)}

	out := Downsample(records, 30*time.Second)
	require.Len(t, out, 2)
	assert.Equal(t, t0.Add(20*time.Second), out[0].Timestamp)
	assert.InDelta(t, 2.0, out[0].CPUPercent, 1e-9)
	assert.Equal(t, t0.Add(30*time.Second), out[1].Timestamp)
}

func TestDownsample_NoBucket(t *testing.T) {
	records := []model.MetricRecord{rec(0, 1), rec(5, 2)}
	out := Downsample(records, 0)
	assert.Equal(t, records, out)

	out[0].CPUPercent = 99
	assert.Equal(t, 1.0, records[0].CPUPercent)

	assert.Empty(t, Downsample(nil, time.Minute))
}
