package storage

import (
	"sort"
	"time"

	"github.com/rusenback/dockerstats/internal/model"
)

// ring is a bounded FIFO of records. The buffer grows on demand up to
// capacity, then the oldest record is overwritten. Not safe for concurrent
// use; the owning entry guards it.
type ring struct {
	buf      []model.MetricRecord
	capacity int
	start    int
	size     int
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity}
}

func (r *ring) len() int { return r.size }

func (r *ring) at(i int) model.MetricRecord {
	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *ring) push(rec model.MetricRecord) {
	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, rec)
		r.size++
		return
	}
	// full, overwrite oldest
	r.buf[r.start] = rec
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) last() (model.MetricRecord, bool) {
	if r.size == 0 {
		return model.MetricRecord{}, false
	}
	return r.at(r.size - 1), true
}

// since copies out every record with Timestamp >= t.
func (r *ring) since(t time.Time) []model.MetricRecord {
	first := sort.Search(r.size, func(i int) bool {
		return !r.at(i).Timestamp.Before(t)
	})
	out := make([]model.MetricRecord, 0, r.size-first)
	for i := first; i < r.size; i++ {
		out = append(out, r.at(i))
	}
	return out
}
