package scan

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/wtengine/wtengine/internal/fsx"
	"github.com/wtengine/wtengine/internal/wtree"
)

// DefaultWalkConcurrency bounds the initial scan's directory fan-out (spec
// §4.C "Directories are entered in parallel up to a bounded fan-out").
const DefaultWalkConcurrency = 16

// Walker performs the initial recursive walk. One Batch per directory is
// sent on out, the same per-directory incremental unit
// paviko-rovo-bridge/backend/internal/index/scan.go builds (there via an
// explicit stack; here via a semaphore-bounded goroutine per directory so
// sibling directories can be stat'd concurrently).
type Walker struct {
	fs      fsx.Filesystem
	sem     *semaphore.Weighted
	log     *slog.Logger
	visited sync.Map // inode (uint64) -> struct{}, symlink cycle guard
}

// NewWalker returns a Walker bounded to concurrency simultaneous directory
// reads.
func NewWalker(fs fsx.Filesystem, concurrency int64, log *slog.Logger) *Walker {
	if concurrency <= 0 {
		concurrency = DefaultWalkConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Walker{fs: fs, sem: semaphore.NewWeighted(concurrency), log: log}
}

// Walk walks root (the worktree root is wtree.Path("")) breadth-first,
// sending one Batch per directory on out. Walk closes out and returns when
// the walk completes or ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, out chan<- *Batch) error {
	defer close(out)

	var wg sync.WaitGroup

	var walkDir func(dir wtree.Path)
	walkDir = func(dir wtree.Path) {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}

		names, err := w.fs.ReadDir(ctx, dir)
		if err != nil {
			w.log.Warn("scan: failed to list directory, skipping", "path", dir, "err", err)
			return
		}

		batch := NewBatch()
		var subdirs []wtree.Path
		for _, name := range names {
			childPath := dir.Join(name)
			md, err := w.fs.Metadata(ctx, childPath)
			if err != nil {
				w.log.Warn("scan: failed to stat entry, skipping", "path", childPath, "err", err)
				continue
			}

			meta := &ObservedMeta{
				IsDir:     md.IsDir,
				IsSymlink: md.IsSymlink,
				Inode:     md.Inode,
				Size:      md.Size,
				MtimeUnix: md.Mtime.Unix(),
				Exec:      md.Exec,
			}

			descend := md.IsDir && name != ".git"
			if md.IsSymlink {
				descend = w.resolveSymlinkForWalk(ctx, childPath, meta)
			} else if descend && md.Inode != 0 {
				if _, already := w.visited.LoadOrStore(md.Inode, struct{}{}); already {
					descend = false
				}
			}

			batch.AddObservation(Observation{Path: childPath, Meta: meta, Loaded: true})
			if descend {
				subdirs = append(subdirs, childPath)
			}
		}

		select {
		case out <- batch:
		case <-ctx.Done():
			return
		}

		for _, sub := range subdirs {
			sub := sub
			wg.Add(1)
			if err := w.sem.Acquire(ctx, 1); err != nil {
				wg.Done()
				continue
			}
			go func() {
				defer w.sem.Release(1)
				walkDir(sub)
			}()
		}
	}

	wg.Add(1)
	go walkDir("")
	wg.Wait()

	return ctx.Err()
}

// resolveSymlinkForWalk decides whether a symlink should be descended into:
// it must resolve inside the root and must not revisit an inode already
// seen in this walk (spec §4.C "a path that resolves outside the root (or
// revisits an ancestor via a cycle) is recorded as an entry but not
// descended into"). Grounded on the fossabot-gitree scanner example's
// shouldVisit, which keeps a visited-inode set for the same reason.
func (w *Walker) resolveSymlinkForWalk(ctx context.Context, linkPath wtree.Path, meta *ObservedMeta) bool {
	target, ok, err := w.fs.ResolveSymlink(ctx, linkPath)
	if err != nil || !ok {
		meta.SymlinkExternal = true
		return false
	}
	md, err := w.fs.Metadata(ctx, target)
	if err != nil || !md.IsDir {
		return false
	}
	if md.Inode != 0 {
		if _, already := w.visited.LoadOrStore(md.Inode, struct{}{}); already {
			meta.SymlinkExternal = true
			return false
		}
	}
	return true
}
