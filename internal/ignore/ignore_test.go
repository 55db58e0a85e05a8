package ignore

import (
	"testing"

	"github.com/wtengine/wtengine/internal/wtree"
)

// TestResolve_BasicPattern verifies a simple pattern ignores the file it
// names but not its siblings (spec §8 scenario 1).
func TestResolve_BasicPattern(t *testing.T) {
	r := New()
	own := CompileFile("", ".gitignore", []string{"a/b\n"})
	stack := r.Rebuild("", own)

	if !Resolve(stack, "a/b", false, false, nil) {
		t.Error("\"a/b\" should be ignored by pattern \"a/b\"")
	}
	if Resolve(stack, "a/c", false, false, nil) {
		t.Error("\"a/c\" should not be ignored")
	}
}

// TestResolve_DirectoryPatternIgnoresDescendants verifies that a pattern
// naming a directory marks its transitive descendants ignored too (spec
// §4.B "A pattern that names a directory marks the directory and its
// transitive descendants as ignored").
func TestResolve_DirectoryPatternIgnoresDescendants(t *testing.T) {
	r := New()
	own := CompileFile("", ".gitignore", []string{"node_modules\n"})
	r.Rebuild("", own)
	r.Rebuild("node_modules", nil)

	nmStack := r.StackFor("node_modules")
	if !Resolve(nmStack, "node_modules", true, false, nil) {
		t.Fatal("\"node_modules\" itself should be ignored")
	}
	// A descendant is ignored because its parent directory is ignored
	// (invariant 3), not because the pattern itself matches nested paths.
	if !Resolve(nmStack, "node_modules/pkg/index.js", false, true, nil) {
		t.Error("descendant of an ignored directory should be ignored")
	}
}

// TestResolve_TrackedOverridesIgnore verifies that a VCS-tracked file is
// forced visible even when a pattern matches it (spec §4.B).
func TestResolve_TrackedOverridesIgnore(t *testing.T) {
	r := New()
	own := CompileFile("", ".gitignore", []string{"*.log\n"})
	stack := r.Rebuild("", own)

	tracked := func(p wtree.Path) bool { return p == "debug.log" }

	if !Resolve(stack, "debug.log", false, false, nil) {
		t.Fatal("without a tracked checker, *.log should be ignored")
	}
	if Resolve(stack, "debug.log", false, false, tracked) {
		t.Error("a VCS-tracked file should override the ignore pattern")
	}
}

// TestResolve_GitDirAlwaysIgnored verifies the worktree root's .git
// directory (and any nested repo's) is implicitly ignored (spec §4.B).
func TestResolve_GitDirAlwaysIgnored(t *testing.T) {
	r := New()
	stack := r.Rebuild("", nil)
	if !Resolve(stack, ".git", true, false, nil) {
		t.Error("\".git\" should be implicitly ignored")
	}
	nested := r.Rebuild("projects/proj1", nil)
	if !Resolve(nested, "projects/proj1/.git", true, false, nil) {
		t.Error("a nested repo's \".git\" should be implicitly ignored")
	}
}

// TestResolve_ParentIgnoredForcesChild verifies invariant 3: if an ancestor
// directory is ignored, the child is ignored even without its own matching
// pattern.
func TestResolve_ParentIgnoredForcesChild(t *testing.T) {
	stack := &Stack{Dir: "a", Files: nil}
	if !Resolve(stack, "a/b", false, true /* parentIgnored */, nil) {
		t.Error("child of an ignored parent should be ignored")
	}
}

// TestStack_Rebuild_ComposesFromParent verifies that Rebuild composes a
// directory's stack from its already-cached parent stack plus its own
// pattern file, root-to-leaf (spec §3 "IgnoreStack").
func TestStack_Rebuild_ComposesFromParent(t *testing.T) {
	r := New()
	rootFile := CompileFile("", ".gitignore", []string{"*.log\n"})
	r.Rebuild("", rootFile)

	childFile := CompileFile("a", ".gitignore", []string{"build/\n"})
	childStack := r.Rebuild("a", childFile)

	if len(childStack.Files) != 2 {
		t.Fatalf("child stack has %d files, want 2 (root + own)", len(childStack.Files))
	}
	if !childStack.Matches("a/debug.log", false) {
		t.Error("child stack should still match the root's *.log pattern")
	}
	if !childStack.Matches("a/build", true) {
		t.Error("child stack should match its own build/ pattern")
	}
}

// TestResolver_ForgetDropsCache verifies Forget removes a directory's cached
// stack, e.g. when the directory itself is removed.
func TestResolver_ForgetDropsCache(t *testing.T) {
	r := New()
	r.Rebuild("a", nil)
	if r.StackFor("a") == nil {
		t.Fatal("expected a cached stack after Rebuild")
	}
	r.Forget("a")
	if r.StackFor("a") != nil {
		t.Error("Forget should have dropped the cached stack")
	}
}

// TestIsGitMetadataDir verifies the reserved-name check used by the implicit
// .git ignore rule.
func TestIsGitMetadataDir(t *testing.T) {
	if !IsGitMetadataDir(".git") {
		t.Error(`IsGitMetadataDir(".git") = false, want true`)
	}
	if IsGitMetadataDir("git") {
		t.Error(`IsGitMetadataDir("git") = true, want false`)
	}
}

// TestCompileFile_EmptyReturnsNil verifies that a pattern file with no lines
// compiles to nil rather than an empty-but-non-nil File.
func TestCompileFile_EmptyReturnsNil(t *testing.T) {
	if f := CompileFile("", ".gitignore", nil); f != nil {
		t.Errorf("CompileFile with no lines = %v, want nil", f)
	}
}
