package idgen

import "sync/atomic"

// Allocator hands out document IDs. IDs are unique and strictly increasing within a process.
type Allocator struct {
	last atomic.Uint64
}

// NewAllocator creates an allocator whose first ID is start+1
func NewAllocator(start uint64) *Allocator {
	a := &Allocator{}
	a.last.Store(start)
	return a
}

// Next returns the next ID. Safe for concurrent use.
func (a *Allocator) Next() uint64 {
	return a.last.Add(1)
}

// Last returns the most recently issued ID, or the start value if none was issued
func (a *Allocator) Last() uint64 {
	return a.last.Load()
}
