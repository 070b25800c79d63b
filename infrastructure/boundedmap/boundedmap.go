// Package boundedmap implements a fixed-capacity map that silently evicts
// its oldest key on overflow, used by the coordination server's pairing,
// request, and establish managers (§4.5/§4.6) so that a flood of
// registrations cannot accumulate unbounded state.
//
// Eviction tracks a ring buffer of insertion order plus a per-key refcount:
// a key inserted more than once occupies more than one ring slot, so it is
// only actually evicted from the map once its refcount drops to zero — the
// same key overwriting itself repeatedly does not get evicted early just
// because an old ring slot cycles back to it.
package boundedmap

// Map is a capacity-N map[K]V that evicts the oldest insertion once the N+1th
// distinct slot is written.
type Map[K comparable, V any] struct {
	capacity  int
	cursor    int
	ring      []*K
	data      map[K]V
	refcounts map[K]int
}

// New builds a Map holding at most capacity live ring slots. capacity must
// be positive.
func New[K comparable, V any](capacity int) *Map[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Map[K, V]{
		capacity:  capacity,
		ring:      make([]*K, capacity),
		data:      make(map[K]V, capacity),
		refcounts: make(map[K]int, capacity),
	}
}

// push records key in the ring buffer, returning the key it displaced, if
// any.
func (m *Map[K, V]) push(key K) (evicted K, ok bool) {
	prev := m.ring[m.cursor]
	m.ring[m.cursor] = &key
	m.cursor++
	if m.cursor == m.capacity {
		m.cursor = 0
	}
	if prev == nil {
		return evicted, false
	}
	return *prev, true
}

// Insert stores value under key, evicting the oldest ring slot's key if the
// map is at capacity. Returns the previous value for key, if any.
func (m *Map[K, V]) Insert(key K, value V) (previous V, hadPrevious bool) {
	if evictedKey, displaced := m.push(key); displaced {
		if m.refcounts[evictedKey] > 0 {
			m.refcounts[evictedKey]--
			if m.refcounts[evictedKey] == 0 {
				delete(m.refcounts, evictedKey)
				delete(m.data, evictedKey)
			}
		}
	}
	m.refcounts[key]++

	previous, hadPrevious = m.data[key]
	m.data[key] = value
	return previous, hadPrevious
}

// Contains reports whether key currently has a live value.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.data[key]
	return ok
}

// Get returns the value for key, if present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.data[key]
	return v, ok
}

// Remove deletes and returns key's value, if present. The ring buffer
// retains key's slot (matching the reference map, which tolerates a
// redundant removal at a later natural eviction).
func (m *Map[K, V]) Remove(key K) (V, bool) {
	v, ok := m.data[key]
	if ok {
		delete(m.data, key)
	}
	return v, ok
}

// Len returns the number of currently live entries.
func (m *Map[K, V]) Len() int {
	return len(m.data)
}
