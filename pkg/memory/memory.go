package memory

import "sync"

// Memory is a bounded window of the most recent entries. Once full, storing
// a new entry evicts the oldest.
type Memory[T any] struct {
	stream   []T
	capacity int
	mu       sync.RWMutex
}

func NewMemory[T any](capacity int) *Memory[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory[T]{
		stream:   make([]T, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of every entry, oldest first
func (m *Memory[T]) All() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, len(m.stream))
	copy(out, m.stream)
	return out
}

// Last returns a copy of at most n of the newest entries, oldest first
func (m *Memory[T]) Last(n int) []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.stream) {
		n = len(m.stream)
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	copy(out, m.stream[len(m.stream)-n:])
	return out
}

func (m *Memory[T]) Store(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stream = append(m.stream, v)
	if len(m.stream) > m.capacity {
		m.stream = m.stream[1:]
	}
}

func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stream)
}

func (m *Memory[T]) Capacity() int {
	return m.capacity
}

func (m *Memory[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = make([]T, 0, m.capacity)
}
