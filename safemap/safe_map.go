// Package safemap provides a type-safe concurrent map built on sync.Map.
// The session registry uses it for its id and descriptor indices; iteration
// via Values yields a snapshot, so callers can mutate the map while walking
// the returned slice.
package safemap

import "sync"

// SafeMap is a concurrent map safe for use by multiple goroutines. Keys must
// be comparable; values may be any type.
//
// SafeMap must not be copied after first use. Store and Load are amortized
// O(1); Len, Range and Values are O(n) in the number of entries.
type SafeMap[K comparable, V any] struct {
	m sync.Map
}

// NewSafeMap returns a new empty SafeMap ready for use.
func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{}
}

// Store sets the value for key k, overwriting any existing value.
//
// Parameters:
//   - k: The key to store
//   - v: The value to associate with k
func (m *SafeMap[K, V]) Store(k K, v V) {
	m.m.Store(k, v)
}

// Load returns the value for key k and whether the key was present. A missing
// key yields the zero value of V and false.
//
// Parameters:
//   - k: The key to look up
//
// Returns:
//   - The value associated with k, or the zero value of V if not found
//   - true if the key was present, false otherwise
func (m *SafeMap[K, V]) Load(k K) (V, bool) {
	v, found := m.m.Load(k)
	if !found {
		var empty V
		return empty, found
	}

	return v.(V), found
}

// Delete removes the entry for key k. Deleting a missing key is a no-op.
//
// Parameters:
//   - k: The key to delete
func (m *SafeMap[K, V]) Delete(k K) {
	m.m.Delete(k)
}

// Has reports whether key k is present in the map.
//
// Parameters:
//   - k: The key to check
//
// Returns:
//   - true if the key is in the map, false otherwise
func (m *SafeMap[K, V]) Has(k K) bool {
	_, found := m.Load(k)
	return found
}

// Range calls f sequentially for each entry. If f returns false, Range stops.
// The behavior is undefined if f itself modifies the map; callers that need
// to mutate while iterating should walk Values instead.
//
// Parameters:
//   - f: Function called for each entry; return false to stop iteration
func (m *SafeMap[K, V]) Range(f func(k K, v V) bool) {
	m.m.Range(func(k, v interface{}) bool {
		return f(k.(K), v.(V))
	})
}

// Values returns a snapshot slice of all values present when the call was
// made. Additions and removals after the snapshot do not affect the slice,
// which makes it safe to delete entries while walking it.
//
// Returns:
//   - A newly allocated slice of the map's values
func (m *SafeMap[K, V]) Values() []V {
	values := make([]V, 0)
	m.Range(func(k K, v V) bool {
		values = append(values, v)
		return true
	})

	return values
}

// Len returns the number of entries. It iterates the whole map to count;
// use sparingly on large maps.
//
// Returns:
//   - The number of key-value pairs in the map
func (m *SafeMap[K, V]) Len() int {
	length := 0
	m.Range(func(k K, v V) bool {
		length++
		return true
	})

	return length
}
