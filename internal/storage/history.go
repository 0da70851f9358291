// Package storage keeps the bounded in-memory history of every sampled
// container together with the per-container sampling caches.
package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/rusenback/dockerstats/internal/model"
)

// UpdateCheck is a cached update-availability result.
type UpdateCheck struct {
	Result    model.UpdateStatus
	CheckedAt time.Time
}

type entry struct {
	mu       sync.RWMutex
	history  *ring
	previous *model.RawSnapshot
	check    *UpdateCheck
	force    bool
}

// Store holds one entry per tracked container. The map lock is taken for
// writing only when an entry is created or removed; everything else locks
// the single entry it touches.
type Store struct {
	capacity int

	mu       sync.RWMutex
	entries  map[string]*entry
	forceAll bool
}

// New creates a store whose histories keep at most capacity records.
func New(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		entries:  make(map[string]*entry),
	}
}

// Capacity returns the per-container record bound.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) get(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

func (s *Store) getOrCreate(id string) *entry {
	if e := s.get(id); e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{history: newRing(s.capacity)}
		s.entries[id] = e
	}
	return e
}

// Record appends rec to the history of id, creating the entry on first use
// and evicting the oldest record at capacity. A record older than the newest
// retained one is stamped with the newest timestamp so histories stay sorted.
func (s *Store) Record(id string, rec model.MetricRecord) {
	e := s.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if newest, ok := e.history.last(); ok && rec.Timestamp.Before(newest.Timestamp) {
		rec.Timestamp = newest.Timestamp
	}
	e.history.push(rec)
}

// Latest returns the newest record of id.
func (s *Store) Latest(id string) (model.MetricRecord, bool) {
	e := s.get(id)
	if e == nil {
		return model.MetricRecord{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.last()
}

// Range returns the records of id with Timestamp >= since, oldest first. The
// bool reports whether id is tracked at all.
func (s *Store) Range(id string, since time.Time) ([]model.MetricRecord, bool) {
	e := s.get(id)
	if e == nil {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.since(since), true
}

// Has reports whether id is tracked.
func (s *Store) Has(id string) bool {
	return s.get(id) != nil
}

// Len returns the number of retained records for id.
func (s *Store) Len(id string) int {
	e := s.get(id)
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.len()
}

// IDs returns a sorted snapshot of the tracked ids.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Purge forgets id entirely: history, previous snapshot and update check go
// in the same step.
func (s *Store) Purge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

// Previous returns the last raw snapshot stored for id.
func (s *Store) Previous(id string) *model.RawSnapshot {
	e := s.get(id)
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.previous
}

// SetPrevious replaces the stored raw snapshot for id.
func (s *Store) SetPrevious(id string, snap *model.RawSnapshot) {
	e := s.getOrCreate(id)
	e.mu.Lock()
	e.previous = snap
	e.mu.Unlock()
}

// UpdateStatus returns the cached update result for id, unknown if none.
func (s *Store) UpdateStatus(id string) model.UpdateStatus {
	if check, ok := s.UpdateCheck(id); ok {
		return check.Result
	}
	return model.UpdateUnknown
}

// UpdateCheck returns the cached update check for id.
func (s *Store) UpdateCheck(id string) (UpdateCheck, bool) {
	e := s.get(id)
	if e == nil {
		return UpdateCheck{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.check == nil {
		return UpdateCheck{}, false
	}
	return *e.check, true
}

// SetUpdateCheck caches a check result. Untracked ids are ignored and false
// is returned.
func (s *Store) SetUpdateCheck(id string, result model.UpdateStatus, at time.Time) bool {
	e := s.get(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	e.check = &UpdateCheck{Result: result, CheckedAt: at}
	e.mu.Unlock()
	return true
}

// ForceUpdateCheck requests a fresh check of id on the next scheduler run.
func (s *Store) ForceUpdateCheck(id string) bool {
	e := s.get(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	e.force = true
	e.mu.Unlock()
	return true
}

// ForceAllUpdateChecks requests a fresh check of every running container.
func (s *Store) ForceAllUpdateChecks() {
	s.mu.Lock()
	s.forceAll = true
	s.mu.Unlock()
}

// TakeForceAll reports and clears the global force flag.
func (s *Store) TakeForceAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	forced := s.forceAll
	s.forceAll = false
	return forced
}

// TakeForce reports and clears the force flag of id.
func (s *Store) TakeForce(id string) bool {
	e := s.get(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	forced := e.force
	e.force = false
	return forced
}

// DropSampling clears the previous snapshot and update check of id while
// keeping its history.
func (s *Store) DropSampling(id string) {
	e := s.get(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.previous = nil
	e.check = nil
	e.force = false
	e.mu.Unlock()
}

// Reconcile brings the store in line with the engine after a cycle. Entities
// not in running lose their sampling caches; entities missing from all are
// purged. A nil all means the full listing failed and nothing is purged.
func (s *Store) Reconcile(running, all []string) (dropped, purged []string) {
	live := toSet(running)
	existing := toSet(all)

	for _, id := range s.IDs() {
		if all != nil {
			if _, ok := existing[id]; !ok {
				if s.Purge(id) {
					purged = append(purged, id)
				}
				continue
			}
		}
		if _, ok := live[id]; !ok {
			if s.hasSampling(id) {
				dropped = append(dropped, id)
			}
			s.DropSampling(id)
		}
	}
	return dropped, purged
}

func (s *Store) hasSampling(id string) bool {
	e := s.get(id)
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.previous != nil || e.check != nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
