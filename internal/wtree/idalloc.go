package wtree

import "sync/atomic"

// IDAllocator hands out monotonically increasing, never-reused Entry ids
// (spec §3 "id: engine-assigned monotonically-allocated identifier").
type IDAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator returns an allocator whose first Allocate() call returns 1,
// reserving 0 to mean "no id" / the zero value.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Allocate returns the next unused id.
func (a *IDAllocator) Allocate() ID {
	return ID(a.next.Add(1))
}
