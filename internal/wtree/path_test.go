package wtree

import "testing"

// TestComparePaths_ComponentWise verifies that paths sort component-wise
// rather than byte-wise, so that "a" precedes "a/b" and "a-extra" sorts
// after both, even though '-' < '/' byte-wise (spec §3 invariant 1).
func TestComparePaths_ComponentWise(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "a/b", -1},
		{"a/b", "a/c", -1},
		{"a/b", "a-extra", -1},
		{"", "a", -1},
		{"a", "", 1},
		{"a/b", "a/b", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got := ComparePaths(Path(tt.a), Path(tt.b))
			if sign(got) != sign(tt.want) {
				t.Errorf("ComparePaths(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// TestPath_Parent verifies Parent across root, single-component, and nested
// paths.
func TestPath_Parent(t *testing.T) {
	if p, ok := Path("").Parent(); ok || p != "" {
		t.Errorf("root.Parent() = (%q, %v), want (\"\", false)", p, ok)
	}
	if p, ok := Path("a").Parent(); !ok || p != "" {
		t.Errorf(`"a".Parent() = (%q, %v), want ("", true)`, p, ok)
	}
	if p, ok := Path("a/b/c").Parent(); !ok || p != "a/b" {
		t.Errorf(`"a/b/c".Parent() = (%q, %v), want ("a/b", true)`, p, ok)
	}
}

// TestPath_Base verifies Base for root and nested paths.
func TestPath_Base(t *testing.T) {
	if got := Path("").Base(); got != "" {
		t.Errorf("root.Base() = %q, want \"\"", got)
	}
	if got := Path("a/b/c").Base(); got != "c" {
		t.Errorf(`"a/b/c".Base() = %q, want "c"`, got)
	}
}

// TestPath_Join verifies Join from the root and from a nested path.
func TestPath_Join(t *testing.T) {
	if got := Path("").Join("a"); got != "a" {
		t.Errorf(`"".Join("a") = %q, want "a"`, got)
	}
	if got := Path("a").Join("b"); got != "a/b" {
		t.Errorf(`"a".Join("b") = %q, want "a/b"`, got)
	}
}

// TestPath_HasPrefix verifies that HasPrefix is inclusive of root and equal
// paths, but does not treat "a-extra" as a descendant of "a".
func TestPath_HasPrefix(t *testing.T) {
	if !Path("a/b").HasPrefix("") {
		t.Error(`"a/b".HasPrefix("") = false, want true`)
	}
	if !Path("a").HasPrefix("a") {
		t.Error(`"a".HasPrefix("a") = false, want true`)
	}
	if Path("a-extra").HasPrefix("a") {
		t.Error(`"a-extra".HasPrefix("a") = true, want false`)
	}
	if !Path("a/b").HasPrefix("a") {
		t.Error(`"a/b".HasPrefix("a") = false, want true`)
	}
}

// TestPath_IsStrictDescendantOf verifies the strict (non-reflexive) variant
// used by DescendentEntries/RemoveSubtree.
func TestPath_IsStrictDescendantOf(t *testing.T) {
	if Path("a").IsStrictDescendantOf("a") {
		t.Error(`"a".IsStrictDescendantOf("a") = true, want false`)
	}
	if !Path("a/b").IsStrictDescendantOf("a") {
		t.Error(`"a/b".IsStrictDescendantOf("a") = false, want true`)
	}
	if !Path("a/b").IsStrictDescendantOf("") {
		t.Error(`"a/b".IsStrictDescendantOf("") = false, want true`)
	}
}

// TestIsPrefixLoop verifies rename_entry's loop guard: a destination equal to
// or nested under the source is rejected.
func TestIsPrefixLoop(t *testing.T) {
	tests := []struct {
		candidate, target string
		want              bool
	}{
		{"a", "a/b", true},
		{"a", "a", true},
		{"a", "b", false},
		{"a/b", "a", false},
	}
	for _, tt := range tests {
		if got := IsPrefixLoop(Path(tt.candidate), Path(tt.target)); got != tt.want {
			t.Errorf("IsPrefixLoop(%q, %q) = %v, want %v", tt.candidate, tt.target, got, tt.want)
		}
	}
}
