package scan

import (
	"context"

	"github.com/wtengine/wtengine/internal/fsx"
	"github.com/wtengine/wtengine/internal/wtree"
)

// Observe re-stats path and builds the Observation Commit expects (spec §4.C
// "the Scanner re-stats the path, diffs against the current Entry, and does
// not rely on event kind alone" — so the incoming fsx.EventKind is
// deliberately not threaded through past this point).
func Observe(ctx context.Context, fs fsx.Filesystem, path wtree.Path) Observation {
	md, err := fs.Metadata(ctx, path)
	if err != nil {
		return Observation{Path: path, Meta: nil}
	}

	meta := &ObservedMeta{
		IsDir:     md.IsDir,
		IsSymlink: md.IsSymlink,
		Inode:     md.Inode,
		Size:      md.Size,
		MtimeUnix: md.Mtime.Unix(),
		Exec:      md.Exec,
	}
	if md.IsSymlink {
		_, ok, rerr := fs.ResolveSymlink(ctx, path)
		meta.SymlinkExternal = rerr != nil || !ok
	}
	return Observation{Path: path, Meta: meta}
}
