package wtree

import "github.com/wtengine/wtengine/internal/wterr"

// Mutation is an engine-initiated change routed through the same commit
// path as filesystem events (spec §4.D). The Scanner's commit loop is the
// only thing that ever calls Apply; it does so after the filesystem
// collaborator call the mutation requires (if any) has already completed.
type Mutation interface {
	// Apply mutates t in place and returns the Entry the mutation produced,
	// or a *wterr.Error describing why it could not be applied.
	Apply(t *Tree, ids *IDAllocator) (*Entry, error)
}

// CreateEntry creates path as a file or directory. It fails with InvalidPath
// on an empty path and AlreadyExists if a non-directory already occupies
// path; creating a directory atop an existing directory is a no-op that
// returns the existing Entry (spec §4.D).
type CreateEntry struct {
	Path  Path
	IsDir bool
}

// Apply implements Mutation.
func (m CreateEntry) Apply(t *Tree, ids *IDAllocator) (*Entry, error) {
	if m.Path == "" {
		return nil, wterr.New(wterr.InvalidPath, "create_entry: empty path")
	}
	if existing, ok := t.EntryForPath(m.Path); ok {
		if m.IsDir && existing.Kind.IsDir() {
			return existing, nil
		}
		return nil, wterr.New(wterr.AlreadyExists, "create_entry: %s already exists", m.Path)
	}
	ensureAncestors(t, ids, m.Path)
	kind := File
	if m.IsDir {
		kind = Directory
	}
	e := &Entry{Path: m.Path, ID: ids.Allocate(), Kind: kind}
	t.Put(e)
	return e, nil
}

// ensureAncestors creates any missing ancestor directories of path as plain
// Directory entries, so that e.g. writing a/e when a does not yet exist
// creates a first (spec §4.C "create_directory_during_initial_scan").
func ensureAncestors(t *Tree, ids *IDAllocator, path Path) {
	parent, ok := path.Parent()
	if !ok {
		return
	}
	if _, exists := t.EntryForPath(parent); exists {
		return
	}
	ensureAncestors(t, ids, parent)
	t.Put(&Entry{Path: parent, ID: ids.Allocate(), Kind: Directory})
}

// WriteFile records that path now holds the given size/mtime, creating the
// Entry (and any missing ancestors) if it did not already exist. The actual
// byte write happens through the filesystem collaborator before Apply is
// called; Apply only updates the model (spec §4.D).
type WriteFile struct {
	Path  Path
	Size  int64
	Inode uint64
}

// Apply implements Mutation.
func (m WriteFile) Apply(t *Tree, ids *IDAllocator) (*Entry, error) {
	if m.Path == "" {
		return nil, wterr.New(wterr.InvalidPath, "write_file: empty path")
	}
	e, existed := t.EntryForPath(m.Path)
	if !existed {
		ensureAncestors(t, ids, m.Path)
		e = &Entry{Path: m.Path, ID: ids.Allocate(), Kind: File}
	}
	e.Kind = File
	e.Size = m.Size
	e.Inode = m.Inode
	t.Put(e)
	return e, nil
}

// RenameEntry moves the entry identified by ID to newPath. It fails with
// NotFound if id is absent, InvalidPath if the entry's current path is a
// prefix of (i.e. newPath would nest inside) newPath, and AlreadyExists if
// newPath is occupied and overwrite is false (spec §4.D).
type RenameEntry struct {
	ID        ID
	NewPath   Path
	Overwrite bool
}

// Apply implements Mutation.
func (m RenameEntry) Apply(t *Tree, ids *IDAllocator) (*Entry, error) {
	old := findByID(t, m.ID)
	if old == nil {
		return nil, wterr.New(wterr.NotFound, "rename_entry: id %d not found", m.ID)
	}
	if IsPrefixLoop(old.Path, m.NewPath) {
		return nil, wterr.New(wterr.InvalidPath, "rename_entry: %s is a prefix of %s", old.Path, m.NewPath)
	}
	if dest, ok := t.EntryForPath(m.NewPath); ok && !m.Overwrite {
		return nil, wterr.New(wterr.AlreadyExists, "rename_entry: %s already exists", m.NewPath)
	} else if ok && m.Overwrite {
		if dest.Kind.IsDir() {
			t.RemoveSubtree(m.NewPath)
		} else {
			t.Remove(m.NewPath)
		}
	}

	ensureAncestors(t, ids, m.NewPath)

	oldPath := old.Path
	moved := relocateSubtree(t, oldPath, m.NewPath)
	return moved, nil
}

// relocateSubtree moves every entry under oldRoot (inclusive) to the
// corresponding path under newRoot, preserving each entry's ID (spec §3
// invariant 4, spec §8 "Id stability").
func relocateSubtree(t *Tree, oldRoot, newRoot Path) *Entry {
	t.Freeze()
	entries := t.DescendentEntries(true, true, oldRoot)
	root, _ := t.EntryForPath(oldRoot)
	all := append([]*Entry{root}, entries...)

	t.RemoveSubtree(oldRoot)

	var movedRoot *Entry
	for _, e := range all {
		rel := string(e.Path)[len(oldRoot):]
		newPath := newRoot
		if rel != "" {
			newPath = Path(string(newRoot) + rel)
		}
		cp := e.Clone()
		cp.Path = newPath
		t.Put(cp)
		if e.Path == oldRoot {
			movedRoot = cp
		}
	}
	return movedRoot
}

// DeleteEntry removes the entry identified by ID, recursively if it is a
// directory. The root entry cannot be deleted (spec §4.D).
type DeleteEntry struct {
	ID ID
}

// Apply implements Mutation.
func (m DeleteEntry) Apply(t *Tree, ids *IDAllocator) (*Entry, error) {
	e := findByID(t, m.ID)
	if e == nil {
		return nil, wterr.New(wterr.NotFound, "delete_entry: id %d not found", m.ID)
	}
	if e.Path == "" {
		return nil, wterr.New(wterr.InvalidPath, "delete_entry: cannot delete the worktree root")
	}
	if e.Kind.IsDir() {
		t.RemoveSubtree(e.Path)
	} else {
		t.Remove(e.Path)
	}
	return e, nil
}

// findByID does a linear scan for the entry with the given ID. The Mutation
// API is not on the Scanner's hot path (it is driven by explicit API calls,
// not filesystem event bursts), so this trades an id->path index for
// simplicity; the Scanner's rename detector, which runs on every commit,
// keeps its own inode index instead (see internal/scan).
func findByID(t *Tree, id ID) *Entry {
	for _, e := range t.Entries(true) {
		if e.ID == id {
			return e
		}
	}
	return nil
}
