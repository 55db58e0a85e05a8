// Package scan is the Scanner (spec §4.C): the initial recursive walk, raw
// filesystem event diffing, and inode-keyed rename detection. It produces
// Batches of wtree.Mutation-shaped changes; internal/engine's commit loop is
// the only thing that actually applies a Batch to the live Tree (spec §5
// "single-threaded commit loop").
package scan

import "github.com/wtengine/wtengine/internal/wtree"

// PathChange classifies how a path changed in one commit (spec §4.G).
type PathChange int

const (
	Loaded PathChange = iota
	Added
	Removed
	Updated
	AddedOrUpdated
)

func (c PathChange) String() string {
	switch c {
	case Loaded:
		return "loaded"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Updated:
		return "updated"
	case AddedOrUpdated:
		return "added_or_updated"
	default:
		return "unknown"
	}
}

// Change is one path's outcome within a commit, the unit UpdatedEntries
// reports (spec §4.G).
type Change struct {
	Path   wtree.Path
	ID     wtree.ID
	Change PathChange
}

// Observation is a single path's freshly-stat'd state, as produced by the
// initial walk or by re-stating an fs-event's path (spec §4.C "the Scanner
// re-stats the path, diffs against the current Entry"). A nil Meta means the
// path no longer exists on disk.
type Observation struct {
	Path   wtree.Path
	Meta   *ObservedMeta
	Loaded bool // true during the initial scan, false for a post-scan event
}

// ObservedMeta carries exactly the filesystem facts the Scanner diffs
// against an existing Entry.
type ObservedMeta struct {
	IsDir     bool
	IsSymlink bool
	Inode     uint64
	Size      int64
	MtimeUnix int64
	Exec      bool
	// SymlinkExternal is true if the symlink's target resolves outside the
	// worktree root or revisits an ancestor directory (spec §4.C).
	SymlinkExternal bool
}
