// Package wtree implements the Path-Indexed Tree (spec §4.A): an ordered
// map from a worktree-relative path to its Entry, plus the Mutation API
// (spec §4.D) which shares the tree's commit path.
//
// The ordered store is backed by emirpasic/gods' red-black tree map, the
// same dependency go-git-go-git already carries (there for commit-graph
// walkers in plumbing/object/commitgraph); here it backs the thing it was
// built for: an ordered map with O(log n) Put/Remove. Prefix iteration is
// then served from a sorted-keys cache that is rebuilt once per commit
// (Freeze), turning per-query prefix scans into a binary search plus a
// linear scan of just the matching range instead of a scan of everything.
package wtree

import "strings"

// Path is a forward-slash-normalised, worktree-relative path. The empty
// string denotes the worktree root (spec §3, §6 "Path semantics").
type Path string

// Components splits a Path into its ordered segments. The root path has no
// components.
func (p Path) Components() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Parent returns the path's parent and true, or ("", false) if p is already
// the root.
func (p Path) Parent() (Path, bool) {
	if p == "" {
		return "", false
	}
	idx := strings.LastIndexByte(string(p), '/')
	if idx < 0 {
		return "", true
	}
	return p[:idx], true
}

// Base returns the final path component, or "" for the root.
func (p Path) Base() string {
	idx := strings.LastIndexByte(string(p), '/')
	if idx < 0 {
		return string(p)
	}
	return string(p)[idx+1:]
}

// Join appends a child component to p.
func (p Path) Join(name string) Path {
	if p == "" {
		return Path(name)
	}
	return p + "/" + Path(name)
}

// IsRoot reports whether p is the worktree root.
func (p Path) IsRoot() bool { return p == "" }

// HasPrefix reports whether p is root or a strict descendant of root.
func (p Path) HasPrefix(root Path) bool {
	if root == "" {
		return true
	}
	if p == root {
		return true
	}
	return strings.HasPrefix(string(p), string(root)+"/")
}

// IsStrictDescendantOf reports whether p is a strict descendant of root.
func (p Path) IsStrictDescendantOf(root Path) bool {
	return p != root && p.HasPrefix(root)
}

// ComparePaths orders two paths component-wise, so that "a" precedes "a/b"
// and "a/b" precedes "a/c" (spec §3 invariant 1, spec §4.A range semantics).
// Plain byte-wise string comparison does not satisfy this in general (e.g.
// "a-extra" vs "a/b": '-' < '/' puts "a-extra" first byte-wise, but
// component-wise "a" < "a-extra" means "a/b" must sort first), so paths are
// compared component by component instead.
func ComparePaths(a, b Path) int {
	ac, bc := a.Components(), b.Components()
	n := len(ac)
	if len(bc) < n {
		n = len(bc)
	}
	for i := 0; i < n; i++ {
		if ac[i] != bc[i] {
			if ac[i] < bc[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ac) < len(bc):
		return -1
	case len(ac) > len(bc):
		return 1
	default:
		return 0
	}
}

// IsPrefixLoop reports whether candidate is equal to or a strict ancestor of
// target — used by rename_entry to reject a destination that would nest a
// path inside itself (spec §4.D InvalidPath).
func IsPrefixLoop(candidate, target Path) bool {
	return target.HasPrefix(candidate)
}
