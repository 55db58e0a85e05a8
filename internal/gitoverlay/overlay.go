// Package gitoverlay is the Repository Overlay (spec §4.E): it tracks one
// Repository per discovered .git entry and propagates per-file VCS status
// upward to containing directories.
//
// Shaped after rybkr-gitvista's internal/gitcore status/delta types
// (RepositoryDelta, IsEmpty), generalized from "one repo the whole server
// serves" to "zero or more repos discovered anywhere under the worktree
// root", and backed by vcsadapter (go-git) instead of gitvista's own
// from-scratch index/object reader, since the spec treats the VCS backend as
// an external black box rather than something this engine reimplements.
package gitoverlay

import (
	"log/slog"
	"sync"

	"github.com/wtengine/wtengine/internal/gitoverlay/vcsadapter"
	"github.com/wtengine/wtengine/internal/gitstatus"
	"github.com/wtengine/wtengine/internal/wtree"
)

// Repository is a discovered VCS work directory (spec §3 "Repository").
type Repository struct {
	DotGit       wtree.Path
	WorkDir      wtree.Path
	ScanID       uint64
	vcs          *vcsadapter.Repo
	statusByPath map[string]gitstatus.Status // relative to WorkDir
}

// Delta describes what changed about a Repository in one refresh, the wire
// shape UpdatedGitRepositories reports (spec §4.G), grounded on
// RepositoryDelta/IsEmpty from rybkr-gitvista/internal/gitcore/types.go.
type Delta struct {
	WorkDir         wtree.Path
	Created         bool
	Removed         bool
	Renamed         bool
	OldWorkDir      wtree.Path
	ContentsChanged bool
}

// IsEmpty reports whether the delta carries no change worth publishing.
func (d Delta) IsEmpty() bool {
	return !d.Created && !d.Removed && !d.Renamed && !d.ContentsChanged
}

// Overlay owns every Repository discovered in one worktree.
type Overlay struct {
	mu    sync.RWMutex
	repos map[wtree.Path]*Repository // keyed by WorkDir
	log   *slog.Logger
}

// New returns an empty Overlay.
func New(log *slog.Logger) *Overlay {
	if log == nil {
		log = slog.Default()
	}
	return &Overlay{repos: make(map[wtree.Path]*Repository), log: log}
}

// OnGitEntryObserved instantiates a Repository when a .git entry appears
// (spec §4.E "On observing a .git entry, the overlay instantiates a
// Repository whose work directory is the containing directory"). absWorkDir
// is the absolute filesystem path to that work directory, needed because
// vcsadapter.Open requires a real OS path.
func (o *Overlay) OnGitEntryObserved(dotGit wtree.Path, absWorkDir string) Delta {
	workDir, _ := dotGit.Parent()

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.repos[workDir]; exists {
		return Delta{}
	}

	vcs, err := vcsadapter.Open(absWorkDir)
	if err != nil {
		o.log.Warn("gitoverlay: failed to open repository", "workdir", workDir, "err", err)
		return Delta{}
	}
	o.repos[workDir] = &Repository{DotGit: dotGit, WorkDir: workDir, vcs: vcs, statusByPath: map[string]gitstatus.Status{}}
	return Delta{WorkDir: workDir, Created: true}
}

// OnGitEntryRemoved drops the Repository whose .git entry disappeared (spec
// §4.E "A Repository whose .git is deleted is dropped and its status map
// forgotten").
func (o *Overlay) OnGitEntryRemoved(dotGit wtree.Path) Delta {
	workDir, _ := dotGit.Parent()

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.repos[workDir]; !exists {
		return Delta{}
	}
	delete(o.repos, workDir)
	return Delta{WorkDir: workDir, Removed: true}
}

// OnGitEntryRenamed follows a .git rename to its new containing directory
// (spec §4.E "a Repository whose .git is renamed follows the rename").
func (o *Overlay) OnGitEntryRenamed(oldDotGit, newDotGit wtree.Path) Delta {
	oldWorkDir, _ := oldDotGit.Parent()
	newWorkDir, _ := newDotGit.Parent()

	o.mu.Lock()
	defer o.mu.Unlock()
	repo, exists := o.repos[oldWorkDir]
	if !exists {
		return Delta{}
	}
	delete(o.repos, oldWorkDir)
	repo.WorkDir = newWorkDir
	repo.DotGit = newDotGit
	rekeyed := make(map[string]gitstatus.Status, len(repo.statusByPath))
	for p, s := range repo.statusByPath {
		rekeyed[p] = s
	}
	repo.statusByPath = rekeyed
	o.repos[newWorkDir] = repo
	return Delta{WorkDir: newWorkDir, OldWorkDir: oldWorkDir, Renamed: true}
}

// Refresh re-queries the VCS collaborator for workDir's status map (spec
// §4.E "periodically, and after any write that could affect tracked files").
// A query failure demotes the Repository to an empty-status state rather
// than touching tree entries (spec §7 "VCS failures demote that Repository
// to an empty-status state"). The returned Delta's ContentsChanged is set
// when the status map actually differs from what was previously recorded,
// so a refresh that only touched file contents (no repo create/remove/
// rename) still has something for UpdatedGitRepositories to report (spec
// §4.E/§4.G).
func (o *Overlay) Refresh(workDir wtree.Path, scanID uint64) Delta {
	o.mu.Lock()
	repo, exists := o.repos[workDir]
	o.mu.Unlock()
	if !exists {
		return Delta{}
	}

	statuses, err := repo.vcs.Statuses()
	if err != nil {
		o.log.Warn("gitoverlay: status query failed, demoting to empty", "workdir", workDir, "err", err)
		statuses = map[string]gitstatus.Status{}
	}

	o.mu.Lock()
	changed := !statusMapsEqual(repo.statusByPath, statuses)
	repo.statusByPath = statuses
	repo.ScanID = scanID
	o.mu.Unlock()
	return Delta{WorkDir: workDir, ContentsChanged: changed}
}

func statusMapsEqual(a, b map[string]gitstatus.Status) bool {
	if len(a) != len(b) {
		return false
	}
	for path, s := range a {
		if b[path] != s {
			return false
		}
	}
	return true
}

// WorkDirs returns every currently-tracked repository's work directory, the
// set the refresh ticker iterates (spec §4.E "periodically").
func (o *Overlay) WorkDirs() []wtree.Path {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]wtree.Path, 0, len(o.repos))
	for wd := range o.repos {
		out = append(out, wd)
	}
	return out
}

// StatusForFile returns the VCS status recorded for path, or None if path is
// not inside any tracked repository or has no outstanding status.
func (o *Overlay) StatusForFile(path wtree.Path) gitstatus.Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for workDir, repo := range o.repos {
		if !path.HasPrefix(workDir) || path == workDir {
			continue
		}
		rel := string(path)[len(workDir):]
		rel = trimLeadingSlash(rel)
		if s, ok := repo.statusByPath[rel]; ok {
			return s
		}
	}
	return gitstatus.None
}

// IsTracked reports whether path is recorded in some repository's index,
// the forced-visible override the Ignore Resolver consults (spec §4.B).
func (o *Overlay) IsTracked(path wtree.Path) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for workDir, repo := range o.repos {
		if !path.HasPrefix(workDir) || path == workDir {
			continue
		}
		rel := trimLeadingSlash(string(path)[len(workDir):])
		if repo.vcs.IsTracked(rel) {
			return true
		}
	}
	return false
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// PropagateStatuses computes, for every entry in entries, the propagated
// status of directories (spec §4.E "propagated status... the maximum of its
// descendants' statuses under the ordering Conflict > Modified > Added >
// None"), honoring the invariant that the result is independent of which
// subset is passed — each directory's status is recomputed by aggregating
// exactly its own descendants within the passed-in entries (spec §8
// "Propagation monotonicity", test `propagate_git_statuses`).
func PropagateStatuses(entries []*wtree.Entry) {
	dirs := make(map[wtree.Path]*wtree.Entry)
	for _, e := range entries {
		if e.Kind.IsDir() {
			dirs[e.Path] = e
			e.Status = gitstatus.None
		}
	}

	// Fold each non-directory status into every ancestor directory present in
	// entries, whether or not the directories in between are present.
	for _, e := range entries {
		if e.Kind.IsDir() {
			continue
		}
		for p, ok := e.Path.Parent(); ok; p, ok = p.Parent() {
			if d, found := dirs[p]; found {
				d.Status = gitstatus.Max(d.Status, e.Status)
			}
		}
	}
}
