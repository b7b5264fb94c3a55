package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory_EvictsOldest(t *testing.T) {
	m := NewMemory[int](3)
	for i := 1; i <= 5; i++ {
		m.Store(i)
	}
	assert.Equal(t, []int{3, 4, 5}, m.All())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 3, m.Capacity())
}

func TestMemory_Last(t *testing.T) {
	m := NewMemory[string](10)
	m.Store("a")
	m.Store("b")
	m.Store("c")

	assert.Equal(t, []string{"b", "c"}, m.Last(2))
	assert.Equal(t, []string{"a", "b", "c"}, m.Last(50))
	assert.Empty(t, m.Last(0))
}

func TestMemory_CopiesAreIndependent(t *testing.T) {
	m := NewMemory[int](2)
	m.Store(1)
	all := m.All()
	all[0] = 99
	assert.Equal(t, []int{1}, m.All())

	m.Reset()
	assert.Zero(t, m.Len())
	assert.Equal(t, 1, NewMemory[int](0).Capacity())
}
