package engine

import (
	"github.com/wtengine/wtengine/internal/eventbus"
	"github.com/wtengine/wtengine/internal/gitoverlay"
	"github.com/wtengine/wtengine/internal/ignore"
	"github.com/wtengine/wtengine/internal/scan"
	"github.com/wtengine/wtengine/internal/snapshot"
	"github.com/wtengine/wtengine/internal/wtree"
)

// commitLoop is the single writer of e.tree (spec §5 "All Tree mutation
// happens on a single goroutine; concurrent scan workers, the watch loop,
// and Mutation API callers all hand their work to it instead of touching
// the tree directly"). It drains e.incoming, applies each item through
// scan.Commit, folds in git overlay lifecycle/refresh, publishes the
// resulting envelope, and resolves any pending mutation jobs.
//
// Grounded on rybkr-gitvista/internal/server/session.go's
// updateRepository (reload -> diff -> broadcast, one goroutine per
// session) generalized from "one repo, one session" to "one worktree, one
// commit loop shared by every writer".
func (e *Engine) commitLoop() {
	defer e.wg.Done()

	ig := &scan.IgnoreContext{
		Resolver: e.resolver,
		Tracked:  e.overlay.IsTracked,
		PatternFile: func(path wtree.Path, contents []byte) *ignore.File {
			if path.Base() != ".gitignore" {
				return nil
			}
			dir, _ := path.Parent()
			return ignore.CompileFile(dir, ".gitignore", splitIgnoreLines(contents))
		},
		ReadFile: func(path wtree.Path) ([]byte, error) {
			return e.fs.Load(e.ctx, path)
		},
	}

	for item := range e.incoming {
		if e.state.Get() != scan.Scanning {
			e.state.Set(scan.Processing)
		}
		e.applyItem(ig, item)
		if e.state.Get() != scan.Scanning {
			e.state.Set(scan.Idle)
		}
	}
}

func (e *Engine) applyItem(ig *scan.IgnoreContext, item incomingItem) {
	batch := item.batch
	if batch == nil {
		batch = scan.NewBatch()
	}
	if item.mutation != nil {
		batch.AddMutation(item.mutation.mutation)
	}

	changes, outcomes := scan.Commit(e.tree, e.ids, ig, batch)

	repoDeltas := e.reconcileGitEntries(changes)
	repoDeltas = append(repoDeltas, e.refreshKnownRepos()...)

	for _, entry := range e.tree.Entries(true) {
		entry.Status = e.overlay.StatusForFile(entry.Path)
	}
	gitoverlay.PropagateStatuses(e.tree.Entries(true))
	e.tree.Freeze()

	// The mutation's completion future must resolve only after this commit's
	// events have been delivered (spec §5 ordering guarantee 3), so the send
	// on item.mutation.result is deferred to the end of this function.
	mutationRes := mutationResult{}
	for _, o := range outcomes {
		if o.Entry != nil || o.Err != nil {
			mutationRes = mutationResult{entry: o.Entry, err: o.Err}
			break
		}
	}
	defer func() {
		if item.mutation != nil {
			item.mutation.result <- mutationRes
		}
	}()

	if len(changes) == 0 && len(repoDeltas) == 0 {
		return
	}

	e.scanID++
	env := snapshot.BuildEnvelope(e.scanID, e.tree, changes, repoDeltas)
	e.updlog.Append(env)
	e.publishEnvelope(env)

	next := e.snap.load().Clone()
	next.Apply(env)
	e.snap.store(next)

	if len(changes) > 0 {
		e.bus.PublishEntries(toUpdatedEntries(e.scanID, changes))
	}
	if len(repoDeltas) > 0 {
		e.bus.PublishGitRepositories(eventbus.UpdatedGitRepositories{ScanID: e.scanID, Deltas: repoDeltas})
	}
}

// reconcileGitEntries watches this commit's Changes for a .git entry being
// added or removed and drives the corresponding Overlay transition (spec
// §4.E). Renames are not reconciled: OnGitEntryRenamed is not called, and a
// Change whose own base name is not ".git" (such as a renamed work
// directory) is ignored.
func (e *Engine) reconcileGitEntries(changes []scan.Change) []gitoverlay.Delta {
	var deltas []gitoverlay.Delta
	for _, c := range changes {
		if c.Path.Base() != ".git" {
			continue
		}
		switch c.Change {
		case scan.Removed:
			if d := e.overlay.OnGitEntryRemoved(c.Path); !d.IsEmpty() {
				deltas = append(deltas, d)
			}
		case scan.Added, scan.Loaded, scan.AddedOrUpdated:
			workDir, _ := c.Path.Parent()
			if d := e.overlay.OnGitEntryObserved(c.Path, absPath(e.cfg.Root, workDir)); !d.IsEmpty() {
				deltas = append(deltas, d)
			}
		}
	}
	return deltas
}

// refreshKnownRepos re-queries every repository the overlay currently
// tracks (spec §4.E "periodically, and after any write that could affect
// tracked files" — here realised as "every commit", since the commit loop
// is the one serialisation point through which both paths flow).
func (e *Engine) refreshKnownRepos() []gitoverlay.Delta {
	var deltas []gitoverlay.Delta
	for _, wd := range e.overlay.WorkDirs() {
		if d := e.overlay.Refresh(wd, e.scanID); !d.IsEmpty() {
			deltas = append(deltas, d)
		}
	}
	return deltas
}

func splitIgnoreLines(contents []byte) []string {
	var lines []string
	start := 0
	for i, b := range contents {
		if b == '\n' {
			lines = append(lines, trimCR(string(contents[start:i])))
			start = i + 1
		}
	}
	if start < len(contents) {
		lines = append(lines, trimCR(string(contents[start:])))
	}
	out := lines[:0]
	for _, l := range lines {
		if l == "" || l[0] == '#' {
			continue
		}
		out = append(out, l)
	}
	return out
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

func toUpdatedEntries(scanID uint64, changes []scan.Change) eventbus.UpdatedEntries {
	out := eventbus.UpdatedEntries{ScanID: scanID, Changes: make([]eventbus.EntryChange, len(changes))}
	for i, c := range changes {
		out.Changes[i] = eventbus.EntryChange{Path: c.Path, ID: c.ID, Change: c.Change}
	}
	return out
}
