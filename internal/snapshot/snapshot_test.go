package snapshot

import (
	"testing"

	"github.com/wtengine/wtengine/internal/scan"
	"github.com/wtengine/wtengine/internal/wtree"
)

func newTree() *wtree.Tree {
	tr := wtree.New()
	tr.Put(&wtree.Entry{Path: "", Kind: wtree.Directory})
	tr.Freeze()
	return tr
}

// TestBuildEnvelope_SplitsAddedFromRemoved verifies that a Removed change
// becomes a RemovedPaths entry and every other change resolves to a live
// tree entry in AddedOrUpdated.
func TestBuildEnvelope_SplitsAddedFromRemoved(t *testing.T) {
	tr := newTree()
	tr.Put(&wtree.Entry{Path: "a.txt", ID: 1, Kind: wtree.File})
	tr.Freeze()

	changes := []scan.Change{
		{Path: "a.txt", ID: 1, Change: scan.Added},
		{Path: "gone.txt", ID: 2, Change: scan.Removed},
	}
	env := BuildEnvelope(7, tr, changes, nil)

	if env.ScanID != 7 {
		t.Errorf("ScanID = %d, want 7", env.ScanID)
	}
	if len(env.AddedOrUpdated) != 1 || env.AddedOrUpdated[0].Path != "a.txt" {
		t.Errorf("AddedOrUpdated = %+v, want one entry for a.txt", env.AddedOrUpdated)
	}
	if len(env.RemovedPaths) != 1 || env.RemovedPaths[0] != "gone.txt" {
		t.Errorf("RemovedPaths = %v, want [gone.txt]", env.RemovedPaths)
	}
}

// TestSnapshot_Apply_StaleEnvelopeIsNoOp verifies the idempotency guarantee
// replication relies on: an envelope whose ScanID is not greater than the
// snapshot's current ScanID changes nothing (spec §4.F).
func TestSnapshot_Apply_StaleEnvelopeIsNoOp(t *testing.T) {
	tr := newTree()
	tr.Put(&wtree.Entry{Path: "a.txt", ID: 1, Kind: wtree.File, Size: 10})
	tr.Freeze()
	snap := New(5, tr)

	snap.Apply(Envelope{
		ScanID:         5,
		AddedOrUpdated: []*wtree.Entry{{Path: "a.txt", ID: 1, Kind: wtree.File, Size: 999}},
	})

	e, _ := snap.EntryForPath("a.txt")
	if e.Size != 10 {
		t.Errorf("Size = %d after a stale (ScanID<=current) envelope, want unchanged 10", e.Size)
	}
	if snap.ScanID != 5 {
		t.Errorf("ScanID = %d, want unchanged 5", snap.ScanID)
	}

	snap.Apply(Envelope{
		ScanID:         4,
		AddedOrUpdated: []*wtree.Entry{{Path: "a.txt", ID: 1, Kind: wtree.File, Size: 111}},
	})
	if e, _ := snap.EntryForPath("a.txt"); e.Size != 10 {
		t.Errorf("Size = %d after an older envelope, want unchanged 10", e.Size)
	}
}

// TestSnapshot_Apply_AdvancesAndRemoves verifies a fresh envelope both
// applies additions and removes a whole subtree for a directory RemovedPath.
func TestSnapshot_Apply_AdvancesAndRemoves(t *testing.T) {
	tr := newTree()
	tr.Put(&wtree.Entry{Path: "dir", ID: 1, Kind: wtree.Directory})
	tr.Put(&wtree.Entry{Path: "dir/child", ID: 2, Kind: wtree.File})
	tr.Freeze()
	snap := New(1, tr)

	snap.Apply(Envelope{
		ScanID:         2,
		RemovedPaths:   []wtree.Path{"dir"},
		AddedOrUpdated: []*wtree.Entry{{Path: "new.txt", ID: 3, Kind: wtree.File}},
	})

	if snap.ScanID != 2 {
		t.Fatalf("ScanID = %d, want 2", snap.ScanID)
	}
	if _, ok := snap.EntryForPath("dir"); ok {
		t.Error("\"dir\" still present after a RemovedPaths entry")
	}
	if _, ok := snap.EntryForPath("dir/child"); ok {
		t.Error("\"dir/child\" still present after its parent directory was removed")
	}
	if _, ok := snap.EntryForPath("new.txt"); !ok {
		t.Error("\"new.txt\" missing after AddedOrUpdated")
	}
}

// TestSnapshot_Clone_IsIndependent verifies that mutating a clone's tree via
// Apply does not affect the original snapshot.
func TestSnapshot_Clone_IsIndependent(t *testing.T) {
	tr := newTree()
	tr.Put(&wtree.Entry{Path: "a.txt", ID: 1, Kind: wtree.File})
	tr.Freeze()
	snap := New(1, tr)

	clone := snap.Clone()
	clone.Apply(Envelope{ScanID: 2, RemovedPaths: []wtree.Path{"a.txt"}})

	if _, ok := snap.EntryForPath("a.txt"); !ok {
		t.Error("applying to the clone removed the entry from the original snapshot")
	}
	if snap.ScanID != 1 {
		t.Errorf("original ScanID = %d, want unchanged 1", snap.ScanID)
	}
}

// TestReplicationConvergence simulates a remote replica applying a sequence
// of envelopes out of a log and checks it reaches the authoritative
// snapshot's ScanID and agrees on the entries "a" (removed) and "b"
// (present), even if an envelope is replayed.
func TestReplicationConvergence(t *testing.T) {
	tr := newTree()
	tr.Freeze()
	authoritative := New(0, tr)
	replica := New(0, wtree.New())

	envs := []Envelope{
		{ScanID: 1, AddedOrUpdated: []*wtree.Entry{{Path: "a", ID: 1, Kind: wtree.File}}},
		{ScanID: 2, AddedOrUpdated: []*wtree.Entry{{Path: "b", ID: 2, Kind: wtree.File}}},
		{ScanID: 3, RemovedPaths: []wtree.Path{"a"}},
	}
	for _, e := range envs {
		authoritative.Apply(e)
	}
	// Replay the full log, plus a duplicate of an already-applied envelope.
	for _, e := range append(append([]Envelope{}, envs...), envs[1]) {
		replica.Apply(e)
	}

	if replica.ScanID != authoritative.ScanID {
		t.Fatalf("replica ScanID = %d, want %d", replica.ScanID, authoritative.ScanID)
	}
	if _, ok := replica.EntryForPath("a"); ok {
		t.Error("replica still has \"a\" after the authoritative removal was replayed")
	}
	if _, ok := replica.EntryForPath("b"); !ok {
		t.Error("replica missing \"b\"")
	}
}
