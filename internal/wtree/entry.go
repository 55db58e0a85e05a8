package wtree

import (
	"time"

	"github.com/wtengine/wtengine/internal/gitstatus"
)

// ID is an engine-assigned identifier, allocated once on creation and never
// reused. It stays attached to an Entry across rename and across a rename of
// any ancestor directory (spec §3 invariant, spec §8 "Id stability").
type ID uint64

// Kind is the type of filesystem node an Entry represents (spec §3).
type Kind int

const (
	// File is a regular file.
	File Kind = iota
	// Directory is a directory whose children have been scanned.
	Directory
	// Symlink is a symbolic link; its target is not descended into when it
	// resolves outside the worktree root or revisits an ancestor (spec §4.C).
	Symlink
	// UnloadedDirectory is a directory discovered but not yet scanned.
	UnloadedDirectory
	// PendingDirectory is a directory whose on-disk materialisation has not
	// yet been confirmed by a commit. The Mutation API's CreateEntry records
	// new directories as Directory, not PendingDirectory.
	PendingDirectory
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case UnloadedDirectory:
		return "unloaded_directory"
	case PendingDirectory:
		return "pending_directory"
	default:
		return "file"
	}
}

// IsDir reports whether the Kind is some flavor of directory.
func (k Kind) IsDir() bool {
	return k == Directory || k == UnloadedDirectory || k == PendingDirectory
}

// Entry is one node of the worktree's model of the filesystem (spec §3).
type Entry struct {
	Path Path
	ID   ID
	Kind Kind

	Inode uint64
	Mtime time.Time
	Size  int64
	Exec  bool

	IsIgnored  bool
	IsExternal bool

	Status gitstatus.Status
}

// Clone returns a shallow copy of the Entry, safe to hand to a caller that
// must not observe later in-place mutation (snapshots only ever hand out
// copies, never live pointers into the mutable tree).
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// Name returns the Entry's base name (empty for the root entry).
func (e *Entry) Name() string { return e.Path.Base() }
