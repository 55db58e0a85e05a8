package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wtengine/wtengine/internal/eventbus"
	"github.com/wtengine/wtengine/internal/scan"
	"github.com/wtengine/wtengine/internal/wtree"
)

func waitForState(t *testing.T, e *Engine, want scan.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %v, stuck at %v", want, e.State())
}

func waitForEntry(t *testing.T, e *Engine, path wtree.Path, timeout time.Duration) *wtree.Entry {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ent, ok := e.Snapshot().EntryForPath(path); ok {
			return ent
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("entry %q never appeared in the snapshot", path)
	return nil
}

// TestEngine_InitialScanSurfacesTreeAndHonoursIgnore is spec §8 scenario 1
// end to end: a real directory tree with a .gitignore that excludes "a/b"
// is scanned, and the resulting snapshot both contains "a/c" and marks
// "a/b" ignored.
func TestEngine_InitialScanSurfacesTreeAndHonoursIgnore(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "a"))
	mustWriteFile(t, filepath.Join(root, ".gitignore"), "a/b\n")
	mustWriteFile(t, filepath.Join(root, "a", "b"), "ignored")
	mustWriteFile(t, filepath.Join(root, "a", "c"), "visible")

	e := New(Config{Root: root})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	defer e.Shutdown()

	waitForState(t, e, scan.Idle, 5*time.Second)

	visible := waitForEntry(t, e, "a/c", time.Second)
	if visible.IsIgnored {
		t.Error("\"a/c\" should not be ignored")
	}
	snap := e.Snapshot()
	ignored, ok := snap.EntryForPath("a/b")
	if !ok {
		t.Fatal("\"a/b\" missing from the snapshot (entries(true) must still include ignored paths)")
	}
	if !ignored.IsIgnored {
		t.Error("\"a/b\" should be ignored per the .gitignore rule")
	}

	visibleOnly := snap.Entries(false)
	for _, ent := range visibleOnly {
		if ent.Path == "a/b" {
			t.Error("Entries(false) should have skipped the ignored \"a/b\"")
		}
	}
}

// TestEngine_Mutate_CreateEntryPublishesBeforeReturning is the regression
// test for ordering guarantee 3 (spec §5): a Mutate caller observes its own
// entry already reflected in a subscriber's UpdatedEntries event by the time
// Mutate returns.
func TestEngine_Mutate_CreateEntryPublishesBeforeReturning(t *testing.T) {
	root := t.TempDir()

	e := New(Config{Root: root})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	defer e.Shutdown()

	waitForState(t, e, scan.Idle, 5*time.Second)

	sub := eventbus.NewChanSubscriber(8, nil)
	e.Bus().Subscribe(sub)

	entry, err := e.Mutate(ctx, wtree.CreateEntry{Path: "created.txt", IsDir: false})
	if err != nil {
		t.Fatalf("Mutate() err = %v", err)
	}
	if entry.Path != "created.txt" {
		t.Fatalf("entry.Path = %q, want \"created.txt\"", entry.Path)
	}

	select {
	case ev := <-sub.Entries:
		var found bool
		for _, c := range ev.Changes {
			if c.Path == "created.txt" {
				found = true
			}
		}
		if !found {
			t.Errorf("UpdatedEntries changes = %+v, want an entry for \"created.txt\"", ev.Changes)
		}
	default:
		t.Fatal("no UpdatedEntries event was available immediately after Mutate returned, violating ordering guarantee 3")
	}
}

// TestEngine_Mutate_RenameEntryMovesSubtree verifies an engine-initiated
// rename through Mutate relocates a directory's descendants and that the
// resulting snapshot reflects it.
func TestEngine_Mutate_RenameEntryMovesSubtree(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "proj", "src"))
	mustWriteFile(t, filepath.Join(root, "proj", "src", "main.go"), "package main")

	e := New(Config{Root: root})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	defer e.Shutdown()

	waitForState(t, e, scan.Idle, 5*time.Second)
	waitForEntry(t, e, "proj/src/main.go", time.Second)

	projEntry, ok := e.Snapshot().EntryForPath("proj")
	if !ok {
		t.Fatal("\"proj\" missing from snapshot before rename")
	}

	if _, err := e.Mutate(ctx, wtree.RenameEntry{ID: projEntry.ID, NewPath: "renamed"}); err != nil {
		t.Fatalf("Mutate(rename) err = %v", err)
	}

	moved := waitForEntry(t, e, "renamed/src/main.go", time.Second)
	if moved == nil {
		t.Fatal("\"renamed/src/main.go\" missing after rename")
	}
	if _, ok := e.Snapshot().EntryForPath("proj"); ok {
		t.Error("\"proj\" still present after rename")
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q) err = %v", path, err)
	}
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) err = %v", path, err)
	}
}
