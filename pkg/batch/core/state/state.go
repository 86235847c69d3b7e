// Package state provides the mutable key-value store shared by every task and
// hook of a run.
package state

import "sync"

// SharedState is a concurrency-safe map handed to completion and error hooks.
// Hooks use it for cross-task bookkeeping such as seen-key sets for
// deduplication or error tallies.
type SharedState struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// New returns a SharedState seeded with a copy of initial.
func New(initial map[string]interface{}) *SharedState {
	values := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &SharedState{values: values}
}

// Get returns the value stored under key.
func (s *SharedState) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetInt returns the value under key as an int, or 0 if absent or not an int.
func (s *SharedState) GetInt(key string) int {
	v, _ := s.Get(key)
	n, _ := v.(int)
	return n
}

// Set stores value under key.
func (s *SharedState) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key.
func (s *SharedState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Update applies fn to the current value of key atomically and stores the result.
// fn receives nil and false when the key is absent.
func (s *SharedState) Update(key string, fn func(current interface{}, ok bool) interface{}) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.values[key]
	next := fn(cur, ok)
	s.values[key] = next
	return next
}

// Increment adds delta to the int stored under key and returns the new value.
func (s *SharedState) Increment(key string, delta int) int {
	return s.Update(key, func(cur interface{}, _ bool) interface{} {
		n, _ := cur.(int)
		return n + delta
	}).(int)
}

// SetIfAbsent stores value under key only when key is absent.
// It reports whether the value was stored.
func (s *SharedState) SetIfAbsent(key string, value interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return false
	}
	s.values[key] = value
	return true
}

// Snapshot returns a shallow copy of the whole state.
func (s *SharedState) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
