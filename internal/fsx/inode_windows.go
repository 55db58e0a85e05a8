//go:build windows

package fsx

import "io/fs"

// inodeOf has no portable inode concept on Windows (the fossabot-gitree
// scanner example hits the same wall and just always-visits instead). With
// Inode 0 the Scanner does no rename detection: a rename is seen as a removal
// plus an addition with a fresh ID.
func inodeOf(fi fs.FileInfo) uint64 {
	return 0
}
