// SPDX-License-Identifier: MPL-2.0

package cache

import "sync"

// Map is a typed wrapper over sync.Map. The zero value is ready to use.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Load returns the value stored for key.
func (m *Map[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores value and returns it. loaded reports whether the value was already
// present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	return v.(V), loaded
}

// Store sets the value for key, replacing any previous value.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// Len returns the number of entries. It walks the map and is meant for
// diagnostics and tests.
func (m *Map[K, V]) Len() int {
	n := 0
	m.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
