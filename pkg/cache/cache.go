// Package cache provides the in-memory caches that sit in front of the
// embedding, search, and generation services. Two eviction policies are
// available: capacity-bounded LRU and time-bounded TTL. Both are safe for
// concurrent use; every mutating operation runs under the instance's mutex.
//
// Caches store only successful results. Callers must never insert sentinel or
// error values; a failed upstream call leaves the cache untouched.
package cache

// Stats is a point-in-time snapshot of a cache's counters. Hits and misses
// are monotonic for the cache's lifetime.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
