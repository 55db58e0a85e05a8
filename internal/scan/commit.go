package scan

import (
	"sort"
	"time"

	"github.com/wtengine/wtengine/internal/ignore"
	"github.com/wtengine/wtengine/internal/wtree"
)

// IgnoreContext bundles what Commit needs to keep is_ignored correct after a
// batch of path-level changes (spec §4.B contract).
type IgnoreContext struct {
	Resolver *ignore.Resolver
	Tracked  ignore.TrackedChecker
	// PatternFile, given a path and its current file contents, returns the
	// compiled ignore.File it represents, or nil if path is not a pattern
	// file (e.g. not named ".gitignore"). Injected so this package does not
	// need to know the filesystem collaborator.
	PatternFile func(path wtree.Path, contents []byte) *ignore.File
	// ReadFile loads a pattern file's contents for recompilation. May be
	// nil if the caller has no pattern files in this worktree.
	ReadFile func(path wtree.Path) ([]byte, error)
}

// MutationOutcome is the per-mutation result of a Commit call, reported in
// the same order as batch.Mutations so a caller waiting on a specific
// engine-initiated mutation (spec §4.D) can find its entry or error.
type MutationOutcome struct {
	Entry *wtree.Entry
	Err   error
}

// Commit applies one batch to t: it resolves engine-initiated mutations and
// raw fs observations into a single diff, performs inode-keyed rename
// detection across the whole batch, recomputes affected ignore state, and
// returns the path-ordered list of Changes this commit produced (spec §4.C
// "Commit") plus one MutationOutcome per batch.Mutations entry. The decision
// to run rename/path mutation first and ignore recomputation second —
// rather than interleaved — is deliberate: it means a rename that lands in
// the same batch as an edit to the .gitignore governing its destination
// always sees the post-edit pattern set.
func Commit(t *wtree.Tree, ids *wtree.IDAllocator, ig *IgnoreContext, batch *Batch) ([]Change, []MutationOutcome) {
	changes := make(map[wtree.Path]*Change)

	var removed, present []Observation
	for _, o := range batch.Observations {
		if o.Meta == nil {
			removed = append(removed, o)
		} else {
			present = append(present, o)
		}
	}

	removedByInode := make(map[uint64]*wtree.Entry)
	removedEntries := make(map[wtree.Path]*wtree.Entry)
	for _, o := range removed {
		if e, ok := t.EntryForPath(o.Path); ok {
			removedEntries[o.Path] = e
			if e.Inode != 0 {
				removedByInode[e.Inode] = e
			}
		}
	}

	consumedRemoved := make(map[wtree.Path]bool)
	consumedPresent := make(map[wtree.Path]bool)

	// Rename detection (spec §4.C "Rename detection is inode-keyed"): a
	// present observation whose inode matches a removed path's former
	// entry, at a different path, is a rename rather than a delete+create.
	for _, o := range present {
		if o.Meta.Inode == 0 {
			continue
		}
		old, ok := removedByInode[o.Meta.Inode]
		if !ok || old.Path == o.Path || consumedRemoved[old.Path] {
			continue
		}
		moved := relocate(t, old, o.Path)
		applyMeta(moved, o.Meta)
		changes[old.Path] = &Change{Path: old.Path, ID: old.ID, Change: Removed}
		changes[o.Path] = &Change{Path: o.Path, ID: moved.ID, Change: Added}
		consumedRemoved[old.Path] = true
		consumedPresent[o.Path] = true
	}

	for _, o := range removed {
		if consumedRemoved[o.Path] {
			continue
		}
		e, ok := removedEntries[o.Path]
		if !ok {
			continue
		}
		if e.Kind.IsDir() {
			t.RemoveSubtree(o.Path)
		} else {
			t.Remove(o.Path)
		}
		changes[o.Path] = &Change{Path: o.Path, ID: e.ID, Change: Removed}
	}

	for _, o := range present {
		if consumedPresent[o.Path] {
			continue
		}
		e, pc := applyObservation(t, ids, o)
		changes[o.Path] = &Change{Path: o.Path, ID: e.ID, Change: pc}
	}

	outcomes := make([]MutationOutcome, len(batch.Mutations))
	for i, m := range batch.Mutations {
		e, err := m.Apply(t, ids)
		outcomes[i] = MutationOutcome{Entry: e, Err: err}
		if err != nil || e == nil {
			continue
		}
		pc := AddedOrUpdated
		if _, isDelete := m.(wtree.DeleteEntry); isDelete {
			pc = Removed
		}
		changes[e.Path] = &Change{Path: e.Path, ID: e.ID, Change: pc}
	}

	if ig != nil {
		recomputeIgnore(t, ig, changes)
	}

	t.Freeze()
	return sortedChanges(changes), outcomes
}

// relocate moves old's subtree to newPath, preserving old's id, and returns
// the relocated root entry. It is the commit-time counterpart of the subtree
// relocation the Mutation API's RenameEntry performs, implemented separately
// here (spec §3 invariant 4 "Id stability").
func relocate(t *wtree.Tree, old *wtree.Entry, newPath wtree.Path) *wtree.Entry {
	t.Freeze()
	descendants := t.DescendentEntries(true, true, old.Path)
	all := append([]*wtree.Entry{old}, descendants...)
	t.RemoveSubtree(old.Path)

	var movedRoot *wtree.Entry
	oldRoot := old.Path
	for _, e := range all {
		rel := string(e.Path)[len(oldRoot):]
		np := newPath
		if rel != "" {
			np = wtree.Path(string(newPath) + rel)
		}
		cp := e.Clone()
		cp.Path = np
		t.Put(cp)
		if e.Path == oldRoot {
			movedRoot = cp
		}
	}
	return movedRoot
}

// applyObservation creates or updates the Entry at o.Path from o.Meta,
// creating missing ancestors (spec §4.C edge case: "create_directory_during
// _initial_scan"). The PathChange is Loaded during the initial scan and
// Added/Updated afterwards, matching whichever the entry's prior existence
// implies.
func applyObservation(t *wtree.Tree, ids *wtree.IDAllocator, o Observation) (*wtree.Entry, PathChange) {
	existing, existed := t.EntryForPath(o.Path)
	e := existing
	if !existed {
		ensureAncestors(t, ids, o.Path)
		e = &wtree.Entry{Path: o.Path, ID: ids.Allocate()}
	}
	applyMeta(e, o.Meta)
	t.Put(e)

	switch {
	case o.Loaded:
		return e, Loaded
	case !existed:
		return e, Added
	default:
		return e, Updated
	}
}

func applyMeta(e *wtree.Entry, m *ObservedMeta) {
	switch {
	case m.IsDir:
		e.Kind = wtree.Directory
	case m.IsSymlink:
		e.Kind = wtree.Symlink
		e.IsExternal = m.SymlinkExternal
	default:
		e.Kind = wtree.File
	}
	e.Inode = m.Inode
	e.Size = m.Size
	e.Mtime = time.Unix(m.MtimeUnix, 0)
	e.Exec = m.Exec
}

// ensureAncestors creates missing ancestor directories as UnloadedDirectory,
// so the Scanner can fill them in as it walks to them (spec §4.A invariant
// 2). Mutation-API callers instead create plain Directory ancestors (see
// internal/wtree/mutation.go) since those are never separately scanned.
func ensureAncestors(t *wtree.Tree, ids *wtree.IDAllocator, path wtree.Path) {
	parent, ok := path.Parent()
	if !ok {
		return
	}
	if _, exists := t.EntryForPath(parent); exists {
		return
	}
	ensureAncestors(t, ids, parent)
	t.Put(&wtree.Entry{Path: parent, ID: ids.Allocate(), Kind: wtree.UnloadedDirectory})
}

// recomputeIgnore rebuilds the IgnoreStack for every directory this batch
// touched (a pattern file added/changed/removed, or a new directory
// appeared) and republishes any entry whose is_ignored flipped, even if
// nothing else about it changed — recursing into every descendant, not just
// direct children, since a single pattern-file edit can flip the verdict
// arbitrarily far down the tree (spec §4.B contract).
func recomputeIgnore(t *wtree.Tree, ig *IgnoreContext, changes map[wtree.Path]*Change) {
	dirtyDirs := make(map[wtree.Path]bool)
	for p := range changes {
		if parent, ok := wtree.Path(p).Parent(); ok {
			dirtyDirs[parent] = true
		}
		if e, ok := t.EntryForPath(p); ok && e.Kind.IsDir() {
			dirtyDirs[p] = true
		}
	}
	if len(dirtyDirs) == 0 {
		return
	}

	for _, dir := range topmostDirs(dirtyDirs) {
		recomputeSubtree(t, ig, dir, changes)
	}
}

// topmostDirs reduces a set of dirty directories to the minimal subset whose
// recursive recompute covers every entry in the set: any dir with an ancestor
// already in the set is dropped, since recomputing the ancestor recurses into
// it anyway.
func topmostDirs(dirtyDirs map[wtree.Path]bool) []wtree.Path {
	all := make([]wtree.Path, 0, len(dirtyDirs))
	for d := range dirtyDirs {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return wtree.ComparePaths(all[i], all[j]) < 0 })

	var roots []wtree.Path
	for _, d := range all {
		covered := false
		for _, r := range roots {
			if d.HasPrefix(r) {
				covered = true
				break
			}
		}
		if !covered {
			roots = append(roots, d)
		}
	}
	return roots
}

// recomputeSubtree rebuilds dir's IgnoreStack, re-resolves dir and every
// descendant entry against it, and recurses into child directories with
// their own freshly rebuilt stacks.
func recomputeSubtree(t *wtree.Tree, ig *IgnoreContext, dir wtree.Path, changes map[wtree.Path]*Change) {
	var own *ignore.File
	if ig.ReadFile != nil && ig.PatternFile != nil {
		candidate := dir.Join(".gitignore")
		if _, ok := t.EntryForPath(candidate); ok {
			if data, err := ig.ReadFile(candidate); err == nil {
				own = ig.PatternFile(candidate, data)
			}
		}
	}
	stack := ig.Resolver.Rebuild(dir, own)

	parentIgnored := false
	if parent, ok := dir.Parent(); ok {
		if pe, ok := t.EntryForPath(parent); ok {
			parentIgnored = pe.IsIgnored
		}
	}

	dirIgnored := parentIgnored
	if e, ok := t.EntryForPath(dir); ok {
		was := e.IsIgnored
		e.IsIgnored = ignore.Resolve(stack, dir, true, parentIgnored, ig.Tracked)
		dirIgnored = e.IsIgnored
		if e.IsIgnored != was {
			markChanged(changes, dir, e.ID)
		}
	}

	for _, child := range directChildren(t, dir) {
		was := child.IsIgnored
		child.IsIgnored = ignore.Resolve(stack, child.Path, child.Kind.IsDir(), dirIgnored, ig.Tracked)
		if child.IsIgnored != was {
			markChanged(changes, child.Path, child.ID)
		}
		if child.Kind.IsDir() {
			recomputeSubtree(t, ig, child.Path, changes)
		}
	}
}

func markChanged(changes map[wtree.Path]*Change, p wtree.Path, id wtree.ID) {
	if _, exists := changes[p]; !exists {
		changes[p] = &Change{Path: p, ID: id, Change: Updated}
	}
}

// directChildren returns dir's immediate children (not the whole subtree).
func directChildren(t *wtree.Tree, dir wtree.Path) []*wtree.Entry {
	all := t.DescendentEntries(true, true, dir)
	out := make([]*wtree.Entry, 0, len(all))
	for _, e := range all {
		parent, ok := e.Path.Parent()
		if ok && parent == dir {
			out = append(out, e)
		}
	}
	return out
}

func sortedChanges(changes map[wtree.Path]*Change) []Change {
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return wtree.ComparePaths(out[i].Path, out[j].Path) < 0 })
	return out
}
