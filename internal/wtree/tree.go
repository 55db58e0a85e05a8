package wtree

import (
	"sort"

	"github.com/emirpasic/gods/maps/treemap"
	godsutils "github.com/emirpasic/gods/utils"
)

// pathComparator orders treemap keys the same way ComparePaths does, rather
// than gods' default byte-wise string comparator, so the tree's own notion
// of "next key" already respects spec §3 invariant 1.
func pathComparator(a, b any) int {
	return ComparePaths(a.(Path), b.(Path))
}

// Tree is the Path-Indexed Tree (spec §4.A). It is owned exclusively by the
// commit loop (spec §5): all mutation happens there, and readers only ever
// see a Tree through a frozen Snapshot's copy.
type Tree struct {
	byPath *treemap.Map // Path -> *Entry

	// sorted is a cache of every key in byPath, kept in the same order
	// ComparePaths defines, rebuilt by Freeze(). DescendentEntries() and
	// RemoveSubtree() binary-search into this slice (see rangeOf), so a
	// query over a small subtree stays close to O(log n + k) even though the
	// underlying red-black tree is only guaranteed O(log n) per key.
	sorted []Path
	dirty  bool
}

// New returns an empty Path-Indexed Tree.
func New() *Tree {
	return &Tree{byPath: treemap.NewWith(godsutils.Comparator(pathComparator))}
}

// Put inserts or replaces the Entry at its Path.
func (t *Tree) Put(e *Entry) {
	t.byPath.Put(e.Path, e)
	t.dirty = true
}

// Remove deletes the entry at path, if any. It does not recurse; callers
// remove a directory's descendants explicitly (see RemoveSubtree).
func (t *Tree) Remove(path Path) {
	t.byPath.Remove(path)
	t.dirty = true
}

// RemoveSubtree deletes root and every strict descendant of root.
func (t *Tree) RemoveSubtree(root Path) {
	t.freeze()
	lo, hi := t.rangeOf(root)
	for _, p := range t.sorted[lo:hi] {
		t.byPath.Remove(p)
	}
	t.dirty = true
}

// EntryForPath returns the Entry at path, or (nil, false) if absent.
func (t *Tree) EntryForPath(path Path) (*Entry, bool) {
	v, found := t.byPath.Get(path)
	if !found {
		return nil, false
	}
	return v.(*Entry), true
}

// Len returns the number of entries in the tree, including the root.
func (t *Tree) Len() int { return t.byPath.Size() }

// freeze rebuilds the sorted-keys cache if the tree has been mutated since
// the last freeze. Called at the start of every read operation that needs
// ordered iteration; a commit is expected to call Freeze() once so readers
// within that commit's snapshot never pay to rebuild it themselves.
func (t *Tree) freeze() {
	if !t.dirty && t.sorted != nil {
		return
	}
	keys := t.byPath.Keys()
	sorted := make([]Path, len(keys))
	for i, k := range keys {
		sorted[i] = k.(Path)
	}
	t.sorted = sorted
	t.dirty = false
}

// Freeze rebuilds the sorted-keys cache. Exported so the commit loop can pay
// the O(n) cost once per commit rather than on first read.
func (t *Tree) Freeze() { t.freeze() }

// rangeOf returns the half-open [lo, hi) index range, within the frozen
// sorted slice, of root itself followed by every strict descendant of root.
func (t *Tree) rangeOf(root Path) (lo, hi int) {
	lo = sort.Search(len(t.sorted), func(i int) bool {
		return ComparePaths(t.sorted[i], root) >= 0
	})
	hi = lo
	for hi < len(t.sorted) && (t.sorted[hi] == root || t.sorted[hi].IsStrictDescendantOf(root)) {
		hi++
	}
	return lo, hi
}

// Entries returns every entry in path order. When includeIgnored is false, a
// directory whose IsIgnored is true is included (so callers can still render
// a collapsed, grayed-out folder) but its descendants are skipped; a
// non-directory entry whose IsIgnored is true is omitted entirely — the tree
// itself is never pruned (spec §4.A).
func (t *Tree) Entries(includeIgnored bool) []*Entry {
	t.freeze()
	out := make([]*Entry, 0, len(t.sorted))
	var skipUnder Path
	skipping := false
	for _, p := range t.sorted {
		if skipping {
			if p.IsStrictDescendantOf(skipUnder) {
				continue
			}
			skipping = false
		}
		e, _ := t.EntryForPath(p)
		if e == nil {
			continue
		}
		if !includeIgnored && e.IsIgnored && !e.Kind.IsDir() {
			continue
		}
		out = append(out, e)
		if !includeIgnored && e.IsIgnored && e.Kind.IsDir() {
			skipUnder = p
			skipping = true
		}
	}
	return out
}

// DescendentEntries returns every strict descendant of root, in path order.
// When includeIgnored is false and root itself is ignored, it returns an
// empty sequence even though the subtree physically contains entries (spec
// §4.A, scenario 3) — unless includeExternal is true, in which case the
// ignored subtree is surfaced on demand (spec §8 scenario 3: "include_external
// = true surfaces the ignored subtree contents on demand"), bypassing both
// the empty-root short-circuit and the per-entry ignore filtering below.
// When includeExternal is false (and the subtree isn't being surfaced this
// way), entries reached only via a symlink that escapes the root are
// omitted — note that this flag also controls the *caller's* view of
// entries already marked IsExternal; the Scanner itself always records an
// external symlink's own entry (spec §4.C).
func (t *Tree) DescendentEntries(includeIgnored, includeExternal bool, root Path) []*Entry {
	t.freeze()

	showIgnored := includeIgnored || includeExternal

	if !showIgnored {
		if e, ok := t.EntryForPath(root); ok && e.IsIgnored {
			return nil
		}
	}

	lo, hi := t.rangeOf(root)
	out := make([]*Entry, 0, hi-lo)
	var skipUnder Path
	skipping := false
	for _, p := range t.sorted[lo:hi] {
		if p == root {
			continue
		}
		if skipping {
			if p.IsStrictDescendantOf(skipUnder) {
				continue
			}
			skipping = false
		}
		e, _ := t.EntryForPath(p)
		if e == nil {
			continue
		}
		if !includeExternal && e.IsExternal {
			continue
		}
		if !showIgnored && e.IsIgnored && !e.Kind.IsDir() {
			continue
		}
		out = append(out, e)
		if !showIgnored && e.IsIgnored && e.Kind.IsDir() {
			skipUnder = p
			skipping = true
		}
	}
	return out
}

// Files returns a cursor over non-directory entries starting at index
// startIx within the (include-ignored-aware) ordered file sequence.
func (t *Tree) Files(includeIgnored bool, startIx int) []*Entry {
	all := t.Entries(includeIgnored)
	files := make([]*Entry, 0, len(all))
	for _, e := range all {
		if !e.Kind.IsDir() {
			files = append(files, e)
		}
	}
	if startIx < 0 {
		startIx = 0
	}
	if startIx >= len(files) {
		return nil
	}
	return files[startIx:]
}

// Clone returns a deep-enough copy of the tree suitable for an immutable
// Snapshot: a fresh treemap with cloned Entry values, so later mutation of
// the live Tree is never observed through the clone (spec §3 Snapshot).
func (t *Tree) Clone() *Tree {
	t.freeze()
	out := New()
	out.sorted = make([]Path, len(t.sorted))
	copy(out.sorted, t.sorted)
	for _, p := range t.sorted {
		e, _ := t.EntryForPath(p)
		out.byPath.Put(p, e.Clone())
	}
	out.dirty = false
	return out
}
