package cm

import "sync"

// ConcurrentMap wraps around sync.Map
type ConcurrentMap[K comparable, V any] struct {
	m sync.Map
}

// Set adds or updates a value in the map for a given key.
func (cm *ConcurrentMap[K, V]) Set(key K, value V) {
	cm.m.Store(key, value)
}

// Get retrieves a value from the map for a given key.
func (cm *ConcurrentMap[K, V]) Get(key K) (V, bool) {
	value, ok := cm.m.Load(key)
	if !ok {
		var zeroValue V
		return zeroValue, false
	}
	return value.(V), true
}

// Delete removes key.
func (cm *ConcurrentMap[K, V]) Delete(key K) {
	cm.m.Delete(key)
}

// Len counts the entries. It is O(n).
func (cm *ConcurrentMap[K, V]) Len() int {
	n := 0
	cm.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
