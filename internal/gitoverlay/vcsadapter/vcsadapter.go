// Package vcsadapter is the concrete VCS collaborator (spec §6): it opens a
// repository by its work directory and reports per-file status, backed by
// go-git/go-git/v5 (the same library used as a black-box collaborator rather
// than a reimplementation, since go-git-go-git is the dependency-richest Go
// Git implementation in the retrieval pack and the spec treats the VCS
// backend as an external black box).
package vcsadapter

import (
	"github.com/go-git/go-git/v5"

	"github.com/wtengine/wtengine/internal/gitstatus"
	"github.com/wtengine/wtengine/internal/wterr"
)

// Repo is an open VCS collaborator handle for one repository (spec §6
// "open_repo(dot_git_path) -> Repo").
type Repo struct {
	repo *git.Repository
}

// Open opens the repository whose work directory is workDir. workDir must
// contain a .git entry (file or directory — go-git resolves worktree
// .git-file indirection itself, which is what makes it usable for the
// submodule/linked-worktree cases the Rust original also has to handle).
func Open(workDir string) (*Repo, error) {
	r, err := git.PlainOpen(workDir)
	if err != nil {
		return nil, wterr.Wrap(wterr.VcsFailure, err, "open_repo: %s", workDir)
	}
	return &Repo{repo: r}, nil
}

// Statuses returns every path go-git reports as non-clean, translated to the
// engine's three-value status model (spec §6 "Repo.statuses() -> map
// <RelPath, GitFileStatus> where status in {Added, Modified, Conflict}").
func (r *Repo) Statuses() (map[string]gitstatus.Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, wterr.Wrap(wterr.VcsFailure, err, "statuses: worktree")
	}
	st, err := wt.Status()
	if err != nil {
		return nil, wterr.Wrap(wterr.VcsFailure, err, "statuses: status")
	}

	out := make(map[string]gitstatus.Status, len(st))
	for path, fs := range st {
		s, ok := translate(fs)
		if ok {
			out[path] = s
		}
	}
	return out, nil
}

// translate maps a go-git FileStatus (two independent staging/worktree
// codes) down to the engine's single Conflict > Modified > Added ordering.
// UpdatedButUnmerged is the only code that maps to Conflict; everything
// clean or untracked-but-unmodified is dropped (status ok=false) rather than
// reported as None, since the overlay only tracks paths with an opinion.
func translate(fs *git.FileStatus) (gitstatus.Status, bool) {
	if fs.Staging == git.UpdatedButUnmerged || fs.Worktree == git.UpdatedButUnmerged {
		return gitstatus.Conflict, true
	}
	if fs.Staging == git.Added || fs.Worktree == git.Untracked {
		return gitstatus.Added, true
	}
	if fs.Staging == git.Modified || fs.Worktree == git.Modified ||
		fs.Staging == git.Deleted || fs.Worktree == git.Deleted ||
		fs.Staging == git.Renamed || fs.Worktree == git.Renamed {
		return gitstatus.Modified, true
	}
	return gitstatus.Status(0), false
}

// IsTracked reports whether relPath is recorded in the index, i.e. would
// appear with anything other than Untracked/Unmodified-absent (spec §6
// "Repo.is_tracked(relpath)", used by the ignore resolver's forced-visible
// override).
func (r *Repo) IsTracked(relPath string) bool {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return false
	}
	for _, e := range idx.Entries {
		if e.Name == relPath {
			return true
		}
	}
	return false
}
