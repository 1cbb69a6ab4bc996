package safeset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSafeSet(t *testing.T) {
	s := NewSafeSet[string]()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.Contains("x"))
}

func TestSafeSet_Add_Contains(t *testing.T) {
	s := NewSafeSet[string]()

	t.Run("add and contains returns true", func(t *testing.T) {
		s.Add("a")
		assert.True(t, s.Contains("a"))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("adding duplicate does not increase size", func(t *testing.T) {
		s.Add("a")
		s.Add("a")
		assert.True(t, s.Contains("a"))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("contains missing returns false", func(t *testing.T) {
		assert.False(t, s.Contains("nonexistent"))
	})
}

func TestSafeSet_Remove(t *testing.T) {
	s := NewSafeSet[string]()
	s.Add("a")
	s.Add("b")

	t.Run("remove removes element", func(t *testing.T) {
		s.Remove("a")
		assert.False(t, s.Contains("a"))
		assert.True(t, s.Contains("b"))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("remove missing is no-op", func(t *testing.T) {
		s.Remove("nonexistent")
		assert.Equal(t, 1, s.Size())
	})
}

func TestSafeSet_Range(t *testing.T) {
	s := NewSafeSet[string]()
	s.Add("a")
	s.Add("b")
	s.Add("c")

	t.Run("iterates all elements", func(t *testing.T) {
		seen := make(map[string]bool)
		s.Range(func(v string) bool {
			seen[v] = true
			return true
		})
		assert.Len(t, seen, 3)
		assert.True(t, seen["a"])
		assert.True(t, seen["b"])
		assert.True(t, seen["c"])
	})

	t.Run("stops when f returns false", func(t *testing.T) {
		count := 0
		s.Range(func(v string) bool {
			count++
			return count < 2
		})
		assert.Equal(t, 2, count)
	})
}

func TestSafeSet_Concurrent(t *testing.T) {
	s := NewSafeSet[int]()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				v := id*opsPerGoroutine + i
				s.Add(v)
				s.Contains(v)
				s.Size()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*opsPerGoroutine, s.Size())

	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				v := id*opsPerGoroutine + i
				s.Remove(v)
				s.Contains(v)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 0, s.Size())
}
