// Package localstore implements L1: a bounded, process-local cache with a
// single TTL applied to every entry. It is the in-process front door of the
// two-level coordinator.
//
// Trade-offs:
//   - A single sync.Mutex protects the map and the insertion-order list.
//     This is a global lock, acceptable at the throughput this component
//     targets; sharding would be a follow-up if it ever becomes a bottleneck.
//   - container/list gives O(1) insertion-order tracking for the
//     oldest-first eviction rule without a second map.
package localstore

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// entry is the value stored in the backing map; element points back into
// the insertion-ordered list for O(1) removal.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// Stats is a point-in-time snapshot of L1 counters.
type Stats struct {
	Hits         int64
	Misses       int64
	Total        int64
	HitRate      float64
	Size         int
	Capacity     int
	UsagePercent float64
}

// Store is L1: bounded, global-TTL, thread-safe.
type Store struct {
	mu       sync.Mutex
	items    map[string]*entry
	order    *list.List // front = oldest insertion, back = newest
	maxSize  int
	ttl      time.Duration
	hits     int64
	misses   int64
}

// New constructs an L1 Store with the given capacity and global entry TTL.
func New(maxSize int, ttl time.Duration) *Store {
	return &Store{
		items:   make(map[string]*entry, maxSize),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the live value for key, incrementing the hit or miss counter.
// An expired entry is evicted on access and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if s.isExpiredLocked(e) {
		s.removeLocked(e)
		s.misses++
		return nil, false
	}

	s.hits++
	return e.value, true
}

// Set stores value under key, refreshing its TTL. If inserting would exceed
// capacity, the oldest expired entry is evicted first; if none are expired,
// the oldest live entry (by insertion order) is evicted instead.
func (s *Store) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *Store) setLocked(key string, value []byte) {
	expiresAt := time.Now().Add(s.ttl)

	if e, ok := s.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToBack(e.element)
		return
	}

	if len(s.items) >= s.maxSize {
		s.evictOneLocked()
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	e.element = s.order.PushBack(e)
	s.items[key] = e
}

// SetIfAbsent stores value under key only if no live entry exists for it,
// reporting whether it stored.
func (s *Store) SetIfAbsent(key string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok && !s.isExpiredLocked(e) {
		return false
	}
	s.setLocked(key, value)
	return true
}

// Delete removes key if present. It is idempotent: deleting an absent key
// is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok {
		s.removeLocked(e)
	}
}

// Clear removes every entry and returns the count removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = make(map[string]*entry, s.maxSize)
	s.order = list.New()
	return n
}

// Exists reports whether key has a live entry, without affecting hit/miss
// counters.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return false
	}
	if s.isExpiredLocked(e) {
		s.removeLocked(e)
		return false
	}
	return true
}

// TTL returns the store's configured TTL if key is live, or false if it is
// absent or expired. L1 carries a single global TTL rather than a per-entry
// one, so this is the store's fixed TTL, not a remaining-time value.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok || s.isExpiredLocked(e) {
		return 0, false
	}
	return s.ttl, true
}

// ListKeys returns a snapshot of live keys, optionally filtered by prefix.
// The snapshot is copied under the lock so the caller can iterate lock-free.
func (s *Store) ListKeys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(s.items))
	for key, e := range s.items {
		if now.Sub(e.expiresAt) >= 0 {
			continue
		}
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Size returns the current entry count, including any expired-but-not-yet-
// evicted entries (they still count against capacity until accessed).
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats returns hit/miss/capacity counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.hits) / float64(total)
	}

	var usage float64
	if s.maxSize > 0 {
		usage = float64(len(s.items)) / float64(s.maxSize) * 100
	}

	return Stats{
		Hits:         s.hits,
		Misses:       s.misses,
		Total:        total,
		HitRate:      hitRate,
		Size:         len(s.items),
		Capacity:     s.maxSize,
		UsagePercent: usage,
	}
}

func (s *Store) isExpiredLocked(e *entry) bool {
	return !time.Now().Before(e.expiresAt)
}

func (s *Store) removeLocked(e *entry) {
	s.order.Remove(e.element)
	delete(s.items, e.key)
}

// evictOneLocked drops the oldest expired entry if one exists, else the
// oldest live entry by insertion order. Must be called with s.mu held.
func (s *Store) evictOneLocked() {
	for el := s.order.Front(); el != nil; el = el.Next() {
		if s.isExpiredLocked(el.Value.(*entry)) {
			s.removeLocked(el.Value.(*entry))
			return
		}
	}

	if front := s.order.Front(); front != nil {
		s.removeLocked(front.Value.(*entry))
	}
}
