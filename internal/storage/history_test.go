package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/dockerstats/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(sec int, cpu float64) model.MetricRecord {
	return model.MetricRecord{
		Timestamp:  t0.Add(time.Duration(sec) * time.Second),
		CPUPercent: cpu,
		Status:     model.StatusRunning,
		Name:       "web",
	}
}

func TestRecord_RingBound(t *testing.T) {
	s := New(10)
	for i := 0; i < 25; i++ {
		s.Record("a", rec(i, float64(i)))
		assert.LessOrEqual(t, s.Len("a"), 10)
	}

	records, ok := s.Range("a", time.Time{})
	require.True(t, ok)
	require.Len(t, records, 10)
	assert.Equal(t, 15.0, records[0].CPUPercent)
	assert.Equal(t, 24.0, records[9].CPUPercent)

	latest, ok := s.Latest("a")
	require.True(t, ok)
	assert.Equal(t, 24.0, latest.CPUPercent)
}

func TestRecord_GrowsOnDemand(t *testing.T) {
	s := New(17280)
	s.Record("a", rec(0, 1))

	e := s.get("a")
	require.NotNil(t, e)
	assert.Equal(t, 1, e.history.len())
	assert.Less(t, cap(e.history.buf), 64)

	r := newRing(3)
	for i := 0; i < 5; i++ {
		r.push(rec(i, float64(i)))
	}
	assert.Len(t, r.buf, 3)
	assert.Equal(t, []model.MetricRecord{rec(2, 2), rec(3, 3), rec(4, 4)}, r.since(time.Time{}))
}

func TestRange(t *testing.T) {
	s := New(1000)
	for i := 0; i <= 95; i += 5 {
		s.Record("a", rec(i, float64(i)))
	}

	records, ok := s.Range("a", t0.Add(50*time.Second))
	require.True(t, ok)
	var secs []int
	for _, r := range records {
		secs = append(secs, int(r.Timestamp.Sub(t0).Seconds()))
	}
	assert.Equal(t, []int{50, 55, 60, 65, 70, 75, 80, 85, 90, 95}, secs)

	records, ok = s.Range("a", t0.Add(time.Hour))
	assert.True(t, ok)
	assert.Empty(t, records)

	_, ok = s.Range("missing", time.Time{})
	assert.False(t, ok)
}

func TestRange_AfterWrap(t *testing.T) {
	s := New(8)
	for i := 0; i < 20; i++ {
		s.Record("a", rec(i, 0))
	}
	records, _ := s.Range("a", t0.Add(15*time.Second))
	require.Len(t, records, 5)
	assert.Equal(t, t0.Add(15*time.Second), records[0].Timestamp)
	assert.Equal(t, t0.Add(19*time.Second), records[4].Timestamp)
}

func TestRecord_ClampsOutOfOrder(t *testing.T) {
	s := New(10)
	s.Record("a", rec(10, 1))
	s.Record("a", rec(5, 2))

	records, _ := s.Range("a", time.Time{})
	require.Len(t, records, 2)
	assert.Equal(t, records[0].Timestamp, records[1].Timestamp)
	assert.Equal(t, 2.0, records[1].CPUPercent)
}

func TestPurge(t *testing.T) {
	s := New(10)
	s.Record("a", rec(0, 1))
	s.SetPrevious("a", &model.RawSnapshot{})
	s.SetUpdateCheck("a", model.UpdateAvailable, t0)

	assert.True(t, s.Purge("a"))
	assert.False(t, s.Purge("a"))

	_, ok := s.Latest("a")
	assert.False(t, ok)
	assert.Nil(t, s.Previous("a"))
	_, ok = s.UpdateCheck("a")
	assert.False(t, ok)
	assert.Empty(t, s.IDs())
}

func TestPurge_AtomicForReaders(t *testing.T) {
	s := New(100)
	for i := 0; i < 50; i++ {
		s.Record("a", rec(i, 1))
		s.SetPrevious("a", &model.RawSnapshot{})
		s.SetUpdateCheck("a", model.UpdateCurrent, t0)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				records, ok := s.Range("a", time.Time{})
				if ok {
					// a reader either sees the whole history or nothing
					assert.Len(t, records, 50)
				} else {
					assert.Nil(t, records)
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	s.Purge("a")
	time.Sleep(5 * time.Millisecond)
	close(stop)
	wg.Wait()

	_, ok := s.Range("a", time.Time{})
	assert.False(t, ok)
	_, ok = s.UpdateCheck("a")
	assert.False(t, ok)
}

func TestConcurrentWriters(t *testing.T) {
	s := New(500)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", w)
			for i := 0; i < 200; i++ {
				s.Record(id, rec(i, float64(i)))
				s.SetPrevious(id, &model.RawSnapshot{})
				_ = s.IDs()
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, s.IDs(), 8)
	for _, id := range s.IDs() {
		assert.Equal(t, 200, s.Len(id))
	}
}

func TestIDs_Snapshot(t *testing.T) {
	s := New(10)
	s.Record("b", rec(0, 0))
	s.Record("a", rec(0, 0))

	ids := s.IDs()
	s.Purge("a")
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []string{"b"}, s.IDs())
}

func TestUpdateChecks(t *testing.T) {
	s := New(10)

	assert.False(t, s.SetUpdateCheck("a", model.UpdateAvailable, t0), "untracked id must be ignored")
	assert.Equal(t, model.UpdateUnknown, s.UpdateStatus("a"))

	s.Record("a", rec(0, 0))
	assert.True(t, s.SetUpdateCheck("a", model.UpdateAvailable, t0))
	assert.Equal(t, model.UpdateAvailable, s.UpdateStatus("a"))

	check, ok := s.UpdateCheck("a")
	require.True(t, ok)
	assert.Equal(t, t0, check.CheckedAt)
}

func TestForceFlags_OneShot(t *testing.T) {
	s := New(10)
	s.Record("a", rec(0, 0))

	assert.False(t, s.TakeForce("a"))
	assert.True(t, s.ForceUpdateCheck("a"))
	assert.True(t, s.TakeForce("a"))
	assert.False(t, s.TakeForce("a"))

	assert.False(t, s.ForceUpdateCheck("missing"))

	assert.False(t, s.TakeForceAll())
	s.ForceAllUpdateChecks()
	assert.True(t, s.TakeForceAll())
	assert.False(t, s.TakeForceAll())
}

func TestReconcile(t *testing.T) {
	s := New(10)
	for _, id := range []string{"running", "stopped", "removed"} {
		s.Record(id, rec(0, 0))
		s.SetPrevious(id, &model.RawSnapshot{})
		s.SetUpdateCheck(id, model.UpdateCurrent, t0)
	}

	dropped, purged := s.Reconcile([]string{"running"}, []string{"running", "stopped"})
	assert.Equal(t, []string{"stopped"}, dropped)
	assert.Equal(t, []string{"removed"}, purged)

	assert.Equal(t, []string{"running", "stopped"}, s.IDs())
	assert.NotNil(t, s.Previous("running"))
	assert.Nil(t, s.Previous("stopped"))
	_, ok := s.UpdateCheck("stopped")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len("stopped"), "stopped containers keep their history")
}

func TestReconcile_FullListingFailed(t *testing.T) {
	s := New(10)
	s.Record("a", rec(0, 0))
	s.SetPrevious("a", &model.RawSnapshot{})

	dropped, purged := s.Reconcile(nil, nil)
	assert.Equal(t, []string{"a"}, dropped)
	assert.Empty(t, purged)
	assert.Equal(t, []string{"a"}, s.IDs())
	assert.Nil(t, s.Previous("a"))
}

func TestNew_MinimumCapacity(t *testing.T) {
	s := New(0)
	s.Record("a", rec(0, 0))
	s.Record("a", rec(1, 0))
	assert.Equal(t, 1, s.Capacity())
	assert.Equal(t, 1, s.Len("a"))
}
