package wtree

import "testing"

func mustPut(t *Tree, path Path, kind Kind, ignored bool) *Entry {
	e := &Entry{Path: path, Kind: kind, IsIgnored: ignored}
	t.Put(e)
	return e
}

// TestTree_EntriesOrder verifies that Entries returns paths in
// component-wise order, matching spec §8 "Order".
func TestTree_EntriesOrder(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "a", Directory, false)
	mustPut(tr, "a/c", File, false)
	mustPut(tr, ".gitignore", File, false)

	got := tr.Entries(true)
	want := []Path{"", ".gitignore", "a", "a/c"}
	if len(got) != len(want) {
		t.Fatalf("Entries(true) returned %d entries, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.Path != want[i] {
			t.Errorf("Entries(true)[%d] = %q, want %q", i, e.Path, want[i])
		}
	}
}

// TestTree_EntriesSkipsIgnoredSubtree is spec §8 scenario 1: a .gitignore
// that ignores "a/b" leaves "a/c" visible, and entries(false) skips the
// ignored child without pruning it from entries(true).
func TestTree_EntriesSkipsIgnoredSubtree(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, ".gitignore", File, false)
	mustPut(tr, "a", Directory, false)
	mustPut(tr, "a/b", File, true)
	mustPut(tr, "a/c", File, false)

	got := pathsOf(tr.Entries(false))
	want := []Path{"", ".gitignore", "a", "a/c"}
	assertPaths(t, "Entries(false)", got, want)

	got = pathsOf(tr.Entries(true))
	want = []Path{"", ".gitignore", "a", "a/b", "a/c"}
	assertPaths(t, "Entries(true)", got, want)
}

// TestTree_EntriesSkipsIgnoredDirectorySubtree verifies an ignored directory
// hides its entire subtree from entries(false), not just itself.
func TestTree_EntriesSkipsIgnoredDirectorySubtree(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "node_modules", Directory, true)
	mustPut(tr, "node_modules/pkg", Directory, true)
	mustPut(tr, "node_modules/pkg/index.js", File, true)
	mustPut(tr, "src", Directory, false)

	got := pathsOf(tr.Entries(false))
	want := []Path{"", "node_modules", "src"}
	assertPaths(t, "Entries(false)", got, want)
}

// TestTree_DescendentEntries_IgnoredRootReturnsEmpty is spec §8 scenario 3:
// descendent_entries(false, false, root) on an ignored root is empty even
// though the subtree physically contains entries.
func TestTree_DescendentEntries_IgnoredRootReturnsEmpty(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "i", Directory, true)
	mustPut(tr, "i/j", Directory, true)
	mustPut(tr, "i/j/k", File, true)
	mustPut(tr, "i/l", Directory, true)

	got := tr.DescendentEntries(false, false, "i")
	if len(got) != 0 {
		t.Errorf("DescendentEntries(false, false, \"i\") = %v, want empty", pathsOf(got))
	}
}

// TestTree_DescendentEntries_IncludeExternalSurfacesIgnored verifies the
// includeExternal=true branch used to inspect an ignored subtree on demand.
func TestTree_DescendentEntries_IncludeExternalSurfacesIgnored(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "i", Directory, true)
	mustPut(tr, "i/j", Directory, true)
	mustPut(tr, "i/j/k", File, true)

	got := pathsOf(tr.DescendentEntries(false, true, "i"))
	want := []Path{"i/j", "i/j/k"}
	assertPaths(t, `DescendentEntries(false, true, "i")`, got, want)
}

// TestTree_RemoveSubtree verifies that removing a directory also removes
// every strict descendant, leaving siblings untouched.
func TestTree_RemoveSubtree(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "a", Directory, false)
	mustPut(tr, "a/b", File, false)
	mustPut(tr, "a/c", File, false)
	mustPut(tr, "z", File, false)

	tr.RemoveSubtree("a")

	got := pathsOf(tr.Entries(true))
	want := []Path{"", "z"}
	assertPaths(t, "Entries(true) after RemoveSubtree", got, want)
}

// TestTree_Files verifies Files filters out directories and honours
// startIx as a cursor into the file-only sequence.
func TestTree_Files(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "a", Directory, false)
	mustPut(tr, "a/b", File, false)
	mustPut(tr, "a/c", File, false)
	mustPut(tr, "d", File, false)

	all := tr.Files(true, 0)
	want := []Path{"a/b", "a/c", "d"}
	assertPaths(t, "Files(true, 0)", pathsOf(all), want)

	from1 := tr.Files(true, 1)
	assertPaths(t, "Files(true, 1)", pathsOf(from1), []Path{"a/c", "d"})

	if got := tr.Files(true, 99); got != nil {
		t.Errorf("Files(true, 99) = %v, want nil", got)
	}
}

// TestTree_Clone verifies that mutating the clone's entries does not affect
// the original tree, and vice versa — required for Snapshot semantics.
func TestTree_Clone(t *testing.T) {
	tr := New()
	mustPut(tr, "", Directory, false)
	mustPut(tr, "a", File, false)

	clone := tr.Clone()
	e, _ := clone.EntryForPath("a")
	e.Size = 42

	orig, _ := tr.EntryForPath("a")
	if orig.Size == 42 {
		t.Error("mutating a cloned entry affected the original tree's entry")
	}

	mustPut(tr, "b", File, false)
	if _, ok := clone.EntryForPath("b"); ok {
		t.Error("a later Put on the original tree leaked into the clone")
	}
}

func pathsOf(entries []*Entry) []Path {
	out := make([]Path, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func assertPaths(t *testing.T, label string, got, want []Path) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", label, got, want)
		}
	}
}
