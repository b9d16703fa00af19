package cache

import "sync/atomic"

// Snapshot is a lock-free, read-optimized container holding an immutable
// value that is swapped wholesale, never mutated in place. The manager uses
// it for the campaign snapshot so event-path reads don't contend with syncs.
type Snapshot[T any] struct{ v atomic.Value }

type box[T any] struct{ val T }

// Load returns the stored value, or the zero value when nothing has been
// stored yet.
func (s *Snapshot[T]) Load() T {
	v := s.v.Load()
	if v == nil {
		var zero T
		return zero
	}
	return v.(box[T]).val
}

// Store atomically swaps in the new value.
func (s *Snapshot[T]) Store(val T) {
	s.v.Store(box[T]{val: val})
}
