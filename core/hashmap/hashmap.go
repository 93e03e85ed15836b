// Package hashmap implements a fixed-capacity, chaining hash map keyed on
// integer file descriptors, used only by the generic-poll backend to
// translate a descriptor into its watch-slot metadata.
package hashmap

import "github.com/searchktools/staticd/core/objpool"

// FNV-1a 32-bit constants.
const (
	offsetBasis32 uint32 = 0x811c9dc5
	prime32       uint32 = 0x01000193
)

func fnv1a32(fd int) uint32 {
	h := offsetBasis32
	// Hash the descriptor's low 32 bits as 4 bytes, little-endian, the way
	// a byte-wise FNV-1a pass over a 32-bit int's memory would.
	v := uint32(fd)
	for i := 0; i < 4; i++ {
		h ^= uint32(byte(v >> (8 * i)))
		h *= prime32
	}
	return h
}

type node struct {
	key   int
	value any
	next  objpool.Handle
	used  bool
}

// Map is a fixed-capacity chaining hash map. Capacity is fixed at
// construction; Add fails when the backing node pool is full.
type Map struct {
	buckets []objpool.Handle // head handle per bucket, -1 when empty
	nodes   *objpool.Pool[node]
	count   int
}

const emptyHandle objpool.Handle = -1

// New creates a map sized for up to capacity entries.
func New(capacity int) *Map {
	if capacity <= 0 {
		capacity = 1
	}

	buckets := make([]objpool.Handle, capacity)
	for i := range buckets {
		buckets[i] = emptyHandle
	}

	return &Map{
		buckets: buckets,
		nodes:   objpool.New[node](capacity),
	}
}

func (m *Map) bucketFor(fd int) int {
	return int(fnv1a32(fd) % uint32(len(m.buckets)))
}

// Add inserts fd -> value. Returns false if the map's node pool is
// exhausted or fd is already present.
func (m *Map) Add(fd int, value any) bool {
	if _, ok := m.Get(fd); ok {
		return false
	}

	h, err := m.nodes.Acquire()
	if err != nil {
		return false
	}

	b := m.bucketFor(fd)
	n := m.nodes.Get(h)
	*n = node{key: fd, value: value, next: m.buckets[b], used: true}
	m.buckets[b] = h
	m.count++
	return true
}

// Get looks up fd, returning its value and whether it was found.
func (m *Map) Get(fd int) (any, bool) {
	b := m.bucketFor(fd)
	for h := m.buckets[b]; h != emptyHandle; {
		n := m.nodes.Get(h)
		if n == nil || !n.used {
			break
		}
		if n.key == fd {
			return n.value, true
		}
		h = n.next
	}
	return nil, false
}

// Remove deletes fd from the map, if present.
func (m *Map) Remove(fd int) {
	b := m.bucketFor(fd)
	prev := emptyHandle
	for h := m.buckets[b]; h != emptyHandle; {
		n := m.nodes.Get(h)
		if n == nil || !n.used {
			break
		}
		if n.key == fd {
			if prev == emptyHandle {
				m.buckets[b] = n.next
			} else {
				m.nodes.Get(prev).next = n.next
			}
			m.nodes.Release(h)
			m.count--
			return
		}
		prev = h
		h = n.next
	}
}

// Len returns the number of entries currently stored.
func (m *Map) Len() int {
	return m.count
}
