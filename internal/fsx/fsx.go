// Package fsx is the Filesystem collaborator (spec §6): the one place the
// engine talks to real disk. Everything above this package works in
// worktree-relative, forward-slash Paths; fsx is where those are translated
// to OS paths and back.
package fsx

import (
	"context"
	"io/fs"
	"time"

	"github.com/wtengine/wtengine/internal/wtree"
)

// SaveOptions controls how Save writes a file (spec §6 "save(path, bytes,
// opts)").
type SaveOptions struct {
	// Mode is the file mode to use when creating a new file. Ignored when
	// the file already exists.
	Mode fs.FileMode
}

// RemoveDirOptions controls RemoveDir (spec §6 "remove_dir(path, {recursive,
// ignore_if_not_exists})").
type RemoveDirOptions struct {
	Recursive        bool
	IgnoreIfNotExist bool
}

// RenameOptions controls Rename (spec §6 "rename(from, to, {overwrite,
// ignore_if_exists})").
type RenameOptions struct {
	Overwrite      bool
	IgnoreIfExists bool
}

// Metadata is what the filesystem collaborator reports about a path (spec §6
// "metadata(path)"), enough for the Scanner to build or update an Entry
// without a second stat.
type Metadata struct {
	IsDir     bool
	IsSymlink bool
	Size      int64
	Mtime     time.Time
	Exec      bool
	// Inode identifies the underlying file for rename detection (spec §4.C
	// "Rename detection is inode-keyed"). Zero on platforms that cannot
	// report one (see inode_windows.go); rename detection skips such
	// observations, so a rename is seen as a removal plus an addition with a
	// fresh ID.
	Inode uint64
}

// EventKind classifies a raw filesystem notification. The engine never
// trusts EventKind alone — it always re-stats the path (spec §6 "the engine
// re-stats on any event and does not rely on event kind alone").
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCreate
	EventWrite
	EventRemove
	EventRename
)

// Event is one raw notification from Watch. Path is already translated to a
// worktree-relative Path.
type Event struct {
	Path wtree.Path
	Kind EventKind
}

// Path is the OS-rooted counterpart of wtree.Path: an absolute filesystem
// path, as opposed to a worktree-relative one. fsx is the only package that
// deals in both.
type Path = string

// Filesystem is the Filesystem collaborator (spec §6). All paths passed in
// and returned are worktree-relative wtree.Path; implementations own the
// translation to absolute OS paths.
type Filesystem interface {
	// Load reads the full contents of path.
	Load(ctx context.Context, path wtree.Path) ([]byte, error)
	// Save writes bytes to path, creating it if it does not exist.
	Save(ctx context.Context, path wtree.Path, data []byte, opts SaveOptions) error
	// CreateFile creates an empty file at path. It fails with AlreadyExists
	// if path already exists.
	CreateFile(ctx context.Context, path wtree.Path) error
	// CreateDir creates path and any missing ancestors.
	CreateDir(ctx context.Context, path wtree.Path) error
	// RemoveFile deletes the file at path.
	RemoveFile(ctx context.Context, path wtree.Path) error
	// RemoveDir deletes the directory at path per opts.
	RemoveDir(ctx context.Context, path wtree.Path, opts RemoveDirOptions) error
	// Rename moves from to to per opts.
	Rename(ctx context.Context, from, to wtree.Path, opts RenameOptions) error
	// IsFile reports whether path exists and is a regular file.
	IsFile(ctx context.Context, path wtree.Path) (bool, error)
	// Metadata stats path.
	Metadata(ctx context.Context, path wtree.Path) (Metadata, error)
	// CreateSymlink creates a symlink at path pointing at target (which may
	// be relative, per normal symlink semantics).
	CreateSymlink(ctx context.Context, path wtree.Path, target string) error
	// ReadSymlink returns the raw target of the symlink at path.
	ReadSymlink(ctx context.Context, path wtree.Path) (string, error)
	// ReadDir lists the immediate children of path (the empty path lists
	// the root). Not part of the spec's enumerated Filesystem collaborator
	// operations, but required by any of them performing a walk — the
	// teacher's own scan code (os.ReadDir, filepath.WalkDir) needs exactly
	// this, so it is added here rather than reinvented above this layer.
	ReadDir(ctx context.Context, path wtree.Path) ([]string, error)
	// ResolveSymlink follows the symlink at path to its final target and
	// reports whether that target stays within the collaborator's root. A
	// target outside the root reports ok=false (spec §4.C "a path that
	// resolves outside the root ... is marked is_external"). Cycles are not
	// detected here; the Scanner's walk tracks visited inodes for that.
	ResolveSymlink(ctx context.Context, path wtree.Path) (target wtree.Path, ok bool, err error)
	// Watch streams raw filesystem events under the collaborator's root
	// until ctx is cancelled. The returned channel is closed when the
	// watch ends, whether due to cancellation or an unrecoverable error.
	Watch(ctx context.Context) (<-chan Event, error)
}
