package dropzone

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch uploads every file that appears in dir into target until ctx is
// done. Files arriving in a burst are collected until no event has been seen
// for the debounce interval, then uploaded as one drop. A file whose size or
// modification time changed since its last event is held for another
// interval. Each path is uploaded at most once per call; later writes to it
// are ignored. onBatch, if set, receives each drop's result.
func (z *Zone) Watch(ctx context.Context, dir string, target *string, onBatch func(Result)) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(absDir); err != nil {
		return err
	}
	z.log.Info("watching drop folder", "dir", absDir)

	pending := make(map[string]fileSig)
	uploaded := make(map[string]struct{})
	timer := time.NewTimer(z.debounce)
	timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		var paths []string
		for p, seen := range pending {
			sig, ok := statRegular(p)
			if !ok {
				delete(pending, p)
				continue
			}
			if sig != seen {
				// Still being written.
				pending[p] = sig
				continue
			}
			paths = append(paths, p)
			delete(pending, p)
		}
		if len(pending) > 0 {
			timer.Reset(z.debounce)
		}
		if len(paths) == 0 {
			return
		}
		sort.Strings(paths)

		res := z.DropPaths(ctx, paths, target)
		for _, it := range res.Items {
			if it.Err == nil {
				uploaded[it.Source] = struct{}{}
			}
		}
		if err := res.Err(); err != nil {
			z.log.Warn("drop folder upload failed", "error", err)
		}
		if onBatch != nil {
			onBatch(res)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || ignored(event.Name) {
				continue
			}
			if _, done := uploaded[event.Name]; done {
				continue
			}
			sig, ok := statRegular(event.Name)
			if !ok {
				continue
			}
			pending[event.Name] = sig
			timer.Reset(z.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			z.log.Error("watcher error", "error", err)

		case <-timer.C:
			flush()
		}
	}
}

// fileSig identifies one state of a file's content.
type fileSig struct {
	size    int64
	modTime time.Time
}

// statRegular returns the signature of path if it is a regular file.
func statRegular(path string) (fileSig, bool) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fileSig{}, false
	}
	return fileSig{size: info.Size(), modTime: info.ModTime()}, true
}

// ignored skips hidden and partially written files.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".part") ||
		strings.HasSuffix(base, ".crdownload")
}
