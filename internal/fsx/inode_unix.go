//go:build !windows

package fsx

import (
	"io/fs"
	"syscall"
)

// inodeOf extracts the inode number fi's Sys() carries on unix-family
// platforms, the same syscall.Stat_t type assertion go-git's
// worktree_darwin.go/worktree_bsd.go use to fill index.Entry.Inode, and the
// fossabot-gitree scanner example uses for symlink-loop detection. Returns 0
// if Sys() is not a *syscall.Stat_t (should not happen on these platforms);
// rename detection then skips the path, so a rename of it is seen as a
// removal plus an addition.
func inodeOf(fi fs.FileInfo) uint64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(st.Ino)
}
