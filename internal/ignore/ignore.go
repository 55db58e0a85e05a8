// Package ignore implements the Ignore Resolver (spec §4.B): a per-directory
// stack of pattern files, cascaded from the worktree root down to each
// directory, that decides whether a path is ignored.
//
// Pattern compilation is delegated to sabhiram/go-gitignore (the same
// dependency paviko-rovo-bridge/backend/internal/index/util.go uses for
// exactly this), which already resolves in-file negation precedence. What
// sabhiram/go-gitignore does not do is compose several pattern files scoped
// to different directories along a path — that composition, including the
// same "last matching file wins" simplification gitvista/internal/gitcore
// and rovo-bridge both settle on for cross-file negation, is this package's
// job.
package ignore

import (
	"strings"

	gi "github.com/sabhiram/go-gitignore"

	"github.com/wtengine/wtengine/internal/wtree"
)

// File is a single compiled pattern file anchored at a directory.
type File struct {
	Dir     wtree.Path // directory the pattern file lives in ("" for root)
	Source  string     // original path relative to Dir, e.g. ".gitignore"
	matcher *gi.GitIgnore
}

// CompileFile compiles the non-empty, non-comment lines of a pattern file
// into a File anchored at dir. A trailing "\n" or "\r\n" on a line is
// stripped before compilation.
func CompileFile(dir wtree.Path, source string, lines []string) *File {
	if len(lines) == 0 {
		return nil
	}
	trimmed := make([]string, len(lines))
	for i, l := range lines {
		trimmed[i] = strings.TrimRight(l, "\r\n")
	}
	return &File{Dir: dir, Source: source, matcher: gi.CompileIgnoreLines(trimmed...)}
}

// matches reports whether path (worktree-relative) is matched by f, given
// that path is a strict descendant of (or equal to) f.Dir.
func (f *File) matches(path wtree.Path, isDir bool) bool {
	rel := string(path)
	if f.Dir != "" {
		rel = strings.TrimPrefix(rel, string(f.Dir)+"/")
	}
	if rel == "" {
		return false // a directory's own pattern file never ignores the directory itself
	}
	if isDir {
		rel += "/"
	}
	return f.matcher.MatchesPath(rel)
}

// Stack is the ordered, root-to-leaf list of pattern files active at a
// directory (spec §3 "IgnoreStack").
type Stack struct {
	Dir   wtree.Path
	Files []*File
}

// Matches reports whether path is ignored by the patterns in the stack,
// independent of ancestor-directory or VCS-tracked overrides (those are
// applied by Resolver.Resolve). Files are evaluated root-to-leaf and the
// last file with an opinion wins; a deeper file can only re-ignore a path an
// ancestor's file didn't mention, not retract an ancestor's ignore via its
// own negation pattern — the same simplification gitvista's ignoredByRules
// and rovo-bridge's ignoredByRules both make.
func (s *Stack) Matches(path wtree.Path, isDir bool) bool {
	if s == nil {
		return false
	}
	ignored := false
	for _, f := range s.Files {
		if !path.HasPrefix(f.Dir) {
			continue
		}
		if f.matches(path, isDir) {
			ignored = true
		}
	}
	return ignored
}

// TrackedChecker reports whether the VCS collaborator considers path
// tracked, in which case it is forced visible regardless of ignore patterns
// (spec §4.B "A file that the VCS reports as tracked overrides ignore
// status"). A nil checker is treated as "nothing is tracked".
type TrackedChecker func(path wtree.Path) bool

// Resolver maintains one Stack per directory, recomputed when a pattern file
// is created, modified, or removed (spec §4.B contract).
type Resolver struct {
	stacks map[wtree.Path]*Stack
}

// New returns an empty Resolver; stacks are populated via Rebuild.
func New() *Resolver {
	return &Resolver{stacks: make(map[wtree.Path]*Stack)}
}

// Rebuild replaces the Stack cached for dir, composed from the parent's
// cached Stack (which must already be up to date — the Scanner walks
// top-down) plus ownFile, the pattern file located directly in dir, if any.
func (r *Resolver) Rebuild(dir wtree.Path, ownFile *File) *Stack {
	var files []*File
	if parent, ok := dir.Parent(); ok {
		if parentStack, found := r.stacks[parent]; found {
			files = append(files, parentStack.Files...)
		}
	}
	if ownFile != nil {
		files = append(files, ownFile)
	}
	stack := &Stack{Dir: dir, Files: files}
	r.stacks[dir] = stack
	return stack
}

// StackFor returns the cached Stack for dir, or nil if never built.
func (r *Resolver) StackFor(dir wtree.Path) *Stack {
	return r.stacks[dir]
}

// Forget drops the cached Stack for dir, e.g. when the directory itself is
// removed.
func (r *Resolver) Forget(dir wtree.Path) {
	delete(r.stacks, dir)
}

// IsGitMetadataDir reports whether name is the reserved ".git" entry, which
// is implicitly ignored at the worktree root and at every nested repository
// (spec §4.B).
func IsGitMetadataDir(name string) bool { return name == ".git" }

// Resolve decides is_ignored for a single entry: the stack's own verdict,
// forced true if the parent directory is already ignored (spec §3 invariant
// 3), forced false if the VCS collaborator reports path as tracked.
func Resolve(stack *Stack, path wtree.Path, isDir bool, parentIgnored bool, tracked TrackedChecker) bool {
	if path.Base() == ".git" && isDir {
		return true
	}
	ignored := parentIgnored || stack.Matches(path, isDir)
	if tracked != nil && tracked(path) {
		return false
	}
	return ignored
}
