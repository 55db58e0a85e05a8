// Package snapshot is the Snapshot & Update Log (spec §4.F): immutable,
// point-in-time views of a worktree plus the monotonic stream of deltas that
// lets a remote replica reconstruct an equivalent view.
//
// Grounded on rybkr-gitvista's own snapshot/diff shape:
// RepositoryDelta/IsEmpty (internal/gitcore/types.go) for "what changed", and
// RepoSession.updateRepository's reload-then-diff-then-broadcast sequencing
// (internal/server/session.go) for when a new Snapshot gets published.
package snapshot

import (
	"github.com/wtengine/wtengine/internal/gitoverlay"
	"github.com/wtengine/wtengine/internal/scan"
	"github.com/wtengine/wtengine/internal/wtree"
)

// Snapshot is a read-only handle valid indefinitely; it never observes
// further mutation of the Tree it was built from (spec §3 "Snapshot").
type Snapshot struct {
	ScanID uint64
	tree   *wtree.Tree
	repos  map[wtree.Path]*gitoverlay.Repository
}

// New captures tree (which callers must not mutate further — pass a Clone)
// at scanID.
func New(scanID uint64, tree *wtree.Tree) *Snapshot {
	return &Snapshot{ScanID: scanID, tree: tree, repos: make(map[wtree.Path]*gitoverlay.Repository)}
}

// EntryForPath delegates to the underlying tree.
func (s *Snapshot) EntryForPath(p wtree.Path) (*wtree.Entry, bool) { return s.tree.EntryForPath(p) }

// Entries delegates to the underlying tree.
func (s *Snapshot) Entries(includeIgnored bool) []*wtree.Entry { return s.tree.Entries(includeIgnored) }

// DescendentEntries delegates to the underlying tree.
func (s *Snapshot) DescendentEntries(includeIgnored, includeExternal bool, root wtree.Path) []*wtree.Entry {
	return s.tree.DescendentEntries(includeIgnored, includeExternal, root)
}

// Files delegates to the underlying tree.
func (s *Snapshot) Files(includeIgnored bool, startIx int) []*wtree.Entry {
	return s.tree.Files(includeIgnored, startIx)
}

// Clone returns a snapshot whose tree is independent of s's, the cheap-to
// -clone handle spec §3 describes ("shared structure" in spirit — wtree.Tree
// is small enough here that a full Clone, not copy-on-write sharing, is the
// honest implementation).
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{ScanID: s.ScanID, tree: s.tree.Clone(), repos: s.repos}
}

// Envelope is one commit's worth of change, suitable for remote replication
// (spec §3 "UpdateEnvelope", spec §4.F).
type Envelope struct {
	ScanID        uint64
	AddedOrUpdated []*wtree.Entry
	RemovedPaths   []wtree.Path
	RepoDeltas     []gitoverlay.Delta
}

// BuildEnvelope turns one commit's Changes into the Entry-bearing Envelope
// remote peers replay (spec §4.C "appends one UpdateEnvelope").
func BuildEnvelope(scanID uint64, tree *wtree.Tree, changes []scan.Change, repoDeltas []gitoverlay.Delta) Envelope {
	env := Envelope{ScanID: scanID, RepoDeltas: repoDeltas}
	for _, c := range changes {
		if c.Change == scan.Removed {
			env.RemovedPaths = append(env.RemovedPaths, c.Path)
			continue
		}
		if e, ok := tree.EntryForPath(c.Path); ok {
			env.AddedOrUpdated = append(env.AddedOrUpdated, e.Clone())
		}
	}
	return env
}

// Apply mutates s in place per env (spec §4.F "apply_remote_update"). A stale
// envelope (ScanID <= s.ScanID) is a no-op, the idempotency guarantee
// replication relies on.
func (s *Snapshot) Apply(env Envelope) {
	if env.ScanID <= s.ScanID {
		return
	}
	for _, p := range env.RemovedPaths {
		if e, ok := s.tree.EntryForPath(p); ok && e.Kind.IsDir() {
			s.tree.RemoveSubtree(p)
		} else {
			s.tree.Remove(p)
		}
	}
	for _, e := range env.AddedOrUpdated {
		s.tree.Put(e.Clone())
	}
	s.tree.Freeze()
	s.ScanID = env.ScanID
}
