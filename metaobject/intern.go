package metaobject

import "sync"

// internTable is an append-only map from keys to values that are
// expensive or identity-sensitive to create.
//
// Lookups are lock-free. Creation is serialized, so that racing
// callers for the same key all observe the single value that was
// created, fully constructed.
type internTable[K comparable, V any] struct {
	mu sync.Mutex
	m  sync.Map
}

// Get returns the value for key, if present.
func (t *internTable[K, V]) Get(key K) (val V, found bool) {
	ent, ok := t.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return ent.(V), true
}

// GetOrCreate returns the value for key, calling create to make it
// if key is not present. create runs with the table locked, and so
// must not use the table itself.
func (t *internTable[K, V]) GetOrCreate(key K, create func() V) (val V, created bool) {
	if v, ok := t.Get(key); ok {
		return v, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.Get(key); ok {
		return v, false
	}
	v := create()
	t.m.Store(key, v)
	return v, true
}
