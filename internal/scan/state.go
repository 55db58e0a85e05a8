package scan

import "sync/atomic"

// State is the Scanner's lifecycle (spec §4.C "Initializing → Scanning →
// Idle ⇄ Processing").
type State int32

const (
	Initializing State = iota
	Scanning
	Idle
	Processing
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	default:
		return "initializing"
	}
}

// StateBox is a lock-free State cell, read far more often (by status
// queries) than it is written (by the commit loop).
type StateBox struct {
	v atomic.Int32
}

// Set stores s.
func (b *StateBox) Set(s State) { b.v.Store(int32(s)) }

// Get loads the current State.
func (b *StateBox) Get() State { return State(b.v.Load()) }
