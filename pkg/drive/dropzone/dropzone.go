// Package dropzone turns drag-and-drop gestures into store calls.
//
// Nodes dragged inside the drive are checked with the descendant guard
// before anything is sent. Files dropped from the local filesystem are read
// concurrently and uploaded as a single batch. Drops on one Zone never
// interleave.
package dropzone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// ErrIsDirectory rejects a dropped directory.
var ErrIsDirectory = errors.New("directories cannot be uploaded")

// Store is the part of *store.Store a Zone drives.
type Store interface {
	Snapshot() map[string]*types.Node
	Move(ctx context.Context, id string, destinationID *string) error
	Upload(ctx context.Context, files []store.UploadFile, parentID *string) error
}

// Options configures a Zone.
type Options struct {
	// Workers bounds concurrent file reads. Zero means 4.
	Workers int

	// Debounce is how long Watch waits for a burst of files to settle.
	// Zero means 500ms.
	Debounce time.Duration
}

// Zone serializes drops onto a store.
type Zone struct {
	store    Store
	workers  int
	debounce time.Duration
	log      *logging.Logger

	mu sync.Mutex
}

// New creates a Zone.
func New(s Store, opts Options) *Zone {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Zone{
		store:    s,
		workers:  opts.Workers,
		debounce: opts.Debounce,
		log:      logging.Get("dropzone"),
	}
}

// Item is the outcome for one dragged node or dropped path.
type Item struct {
	// Source is the node id or the local path.
	Source string

	// Skipped is set when the item was already in place.
	Skipped bool

	Err error
}

// Result lists per-item outcomes in drop order.
type Result struct {
	Items []Item
}

// Accepted returns the number of items that were applied.
func (r Result) Accepted() int {
	n := 0
	for _, it := range r.Items {
		if it.Err == nil && !it.Skipped {
			n++
		}
	}
	return n
}

// Rejected returns the items that failed.
func (r Result) Rejected() []Item {
	var out []Item
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Err joins every item error, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, it := range r.Items {
		if it.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.Source, it.Err))
		}
	}
	return errors.Join(errs...)
}

// DropNodes moves dragged nodes into target (nil = root), in order.
// Each node is checked against the current cache first; a rejected node
// never reaches the store.
func (z *Zone) DropNodes(ctx context.Context, ids []string, target *string) Result {
	z.mu.Lock()
	defer z.mu.Unlock()

	target = types.NormalizeParent(target)
	res := Result{Items: make([]Item, 0, len(ids))}
	for _, id := range ids {
		item := Item{Source: id}
		snapshot := z.store.Snapshot()

		if n, ok := snapshot[id]; ok && types.SameParent(n.ParentID, target) {
			item.Skipped = true
		} else if err := tree.CheckMove(id, target, snapshot); err != nil {
			z.log.Debug("rejected drop", "id", id, "target", types.ParentString(target), "error", err)
			item.Err = err
		} else {
			item.Err = z.store.Move(ctx, id, target)
		}
		res.Items = append(res.Items, item)

		if ctx.Err() != nil {
			break
		}
	}
	return res
}

// DropPaths uploads local files into target (nil = the active folder).
// Directories and unreadable files are rejected per item; the rest go to
// the store in one Upload call.
func (z *Zone) DropPaths(ctx context.Context, paths []string, target *string) Result {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.dropPathsLocked(ctx, paths, target)
}

func (z *Zone) dropPathsLocked(ctx context.Context, paths []string, target *string) Result {
	res := Result{Items: make([]Item, len(paths))}
	files := make([]*store.UploadFile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(z.workers)
	for i, p := range paths {
		res.Items[i].Source = p
		g.Go(func() error {
			f, err := readLocal(gctx, p)
			if err != nil {
				res.Items[i].Err = err
				return nil
			}
			files[i] = f
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]store.UploadFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			batch = append(batch, *f)
		}
	}
	if len(batch) == 0 {
		return res
	}

	if err := z.store.Upload(ctx, batch, target); err != nil {
		for i := range res.Items {
			if files[i] != nil {
				res.Items[i].Err = err
			}
		}
		return res
	}
	z.log.Info("uploaded drop", "files", len(batch), "target", types.ParentString(target))
	return res
}

// readLocal loads one dropped file.
func readLocal(ctx context.Context, path string) (*store.UploadFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrIsDirectory
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	return &store.UploadFile{
		Name:     name,
		MIMEType: MIMEType(name),
		Size:     int64(len(data)),
		Content:  bytes.NewReader(data),
	}, nil
}

// MIMEType guesses a media type from the file extension.
func MIMEType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}
	t := mime.TypeByExtension(strings.ToLower(ext))
	if t == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
