package fsx

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch implements Filesystem. It recursively installs fsnotify watches
// under the filesystem's root, the same walkAndWatch technique
// rybkr-gitvista's internal/server/watcher.go uses for a single .git
// directory, generalised to the whole worktree since the Scanner (not this
// package) owns debouncing and ignore-aware filtering. fsnotify does not
// recurse on its own, so a directory Create event triggers an additional
// watch.Add for the new subtree.
func (o *OSFilesystem) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := o.walkAndWatch(watcher, o.root); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan Event, 64)
	go o.watchLoop(ctx, watcher, out)
	return out, nil
}

func (o *OSFilesystem) walkAndWatch(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			o.log.Warn("fsx: skipping unreadable path during watch setup", "path", p, "err", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && p != dir {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			o.log.Warn("fsx: failed to watch directory", "path", p, "err", err)
		}
		return nil
	})
}

func (o *OSFilesystem) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			kind := classify(ev.Op)
			if kind == EventUnknown {
				continue
			}
			if kind == EventCreate {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = o.walkAndWatch(watcher, ev.Name)
				}
			}
			rel, err := filepath.Rel(o.root, ev.Name)
			if err != nil {
				continue
			}
			select {
			case out <- Event{Path: toWtree(rel), Kind: kind}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			o.log.Error("fsx: watcher error", "err", err)
		}
	}
}

func classify(op fsnotify.Op) EventKind {
	switch {
	case op&fsnotify.Create != 0:
		return EventCreate
	case op&fsnotify.Write != 0:
		return EventWrite
	case op&fsnotify.Remove != 0:
		return EventRemove
	case op&fsnotify.Rename != 0:
		return EventRename
	default:
		return EventUnknown
	}
}
