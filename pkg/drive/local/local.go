// Package local is a serverless drive backed by badger.
//
// The whole tree is kept in memory and persisted as a single
// {"files": [...]} record, rewritten after every mutation. File content is
// stored under its own key so that the record stays small.
package local

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jamesainslie/drive/pkg/drive/blob"
	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// Options configures a Backend.
type Options struct {
	// InlineThreshold is the largest upload that gets a data: URL.
	// Zero means types.InlineThreshold.
	InlineThreshold int64

	// Blobs receives references for larger uploads. Nil creates a private registry.
	Blobs *blob.Registry

	// InMemory keeps the database off disk. Path is ignored.
	InMemory bool

	// Now overrides the clock.
	Now func() time.Time
}

// Backend implements store.API on a local database.
type Backend struct {
	db        *badger.DB
	blobs     *blob.Registry
	threshold int64
	now       func() time.Time
	log       *logging.Logger

	mu    sync.RWMutex
	nodes map[string]*types.Node
}

// Open opens or creates the database at path and loads the tree.
func Open(path string, opts Options) (*Backend, error) {
	db, err := openDB(path, opts.InMemory)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	nodes, err := readRecord(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	b := &Backend{
		db:        db,
		blobs:     opts.Blobs,
		threshold: opts.InlineThreshold,
		now:       opts.Now,
		log:       logging.Get("local"),
		nodes:     nodes,
	}
	if b.blobs == nil {
		b.blobs = blob.New()
	}
	if b.threshold <= 0 {
		b.threshold = types.InlineThreshold
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.restoreContentURLs()
	b.log.Debug("opened local drive", "path", path, "nodes", len(nodes))
	return b, nil
}

// Close releases the backend's blob references and closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.releaseRefs()
	b.mu.Unlock()
	return b.db.Close()
}

// restoreContentURLs gives every file loaded without a download URL a
// fresh one from its stored content.
func (b *Backend) restoreContentURLs() {
	for _, n := range b.nodes {
		if n.IsFolder() || (n.DownloadURL != "" && !blob.IsRef(n.DownloadURL)) {
			continue
		}
		data, err := readContent(b.db, n.ID)
		if err != nil {
			b.log.Warn("content missing", "id", n.ID, "error", err)
			n.DownloadURL = ""
			continue
		}
		n.DownloadURL = b.contentURL(data, n.MIMEType)
	}
}

// releaseRefs drops every blob reference held by the tree.
func (b *Backend) releaseRefs() {
	for _, n := range b.nodes {
		if blob.IsRef(n.DownloadURL) {
			b.blobs.Release(n.DownloadURL)
		}
	}
}

// Blobs returns the registry holding large-upload references.
func (b *Backend) Blobs() *blob.Registry {
	return b.blobs
}

// List returns the children of opts.ParentID. The offline drive has one
// owner, so opts.UserID is ignored.
func (b *Backend) List(_ context.Context, opts store.ListOptions) ([]*types.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	parent := types.NormalizeParent(opts.ParentID)
	if err := b.folderLocked(parent); err != nil {
		return nil, err
	}
	var out []*types.Node
	for _, n := range b.nodes {
		if types.SameParent(n.ParentID, parent) {
			out = append(out, n.Clone())
		}
	}
	store.SortListing(out)
	return out, nil
}

// Get returns one node.
func (b *Backend) Get(_ context.Context, id string) (*types.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, types.ErrNotFound)
	}
	return n.Clone(), nil
}

// Upload stores files under parentID.
func (b *Backend) Upload(ctx context.Context, files []store.UploadFile, parentID *string) ([]*types.Node, error) {
	parent := types.NormalizeParent(parentID)

	type pending struct {
		node *types.Node
		data []byte
	}
	batch := make([]pending, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, types.ErrEmptyName
		}
		var data []byte
		if f.Content != nil {
			var err error
			if data, err = io.ReadAll(f.Content); err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
		}
		now := b.now()
		mime := f.MIMEType
		if mime == "" {
			mime = "application/octet-stream"
		}
		batch = append(batch, pending{
			node: &types.Node{
				ID:        uuid.NewString(),
				Name:      name,
				Kind:      types.KindFile,
				ParentID:  types.CopyID(parent),
				Size:      int64(len(data)),
				MIMEType:  mime,
				Extension: types.ExtensionOf(name),
				CreatedAt: now,
				UpdatedAt: now,
			},
			data: data,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.folderLocked(parent); err != nil {
		return nil, err
	}
	next := b.cloneLocked()
	c := change{nodes: next, put: make(map[string][]byte, len(batch))}
	var refs []string
	out := make([]*types.Node, 0, len(batch))
	for _, p := range batch {
		p.node.DownloadURL = b.contentURL(p.data, p.node.MIMEType)
		if blob.IsRef(p.node.DownloadURL) {
			refs = append(refs, p.node.DownloadURL)
		}
		next[p.node.ID] = p.node
		c.put[p.node.ID] = p.data
		out = append(out, p.node.Clone())
	}
	if err := b.commitLocked(c); err != nil {
		for _, ref := range refs {
			b.blobs.Release(ref)
		}
		return nil, err
	}
	return out, nil
}

// contentURL encodes small content inline and registers large content.
func (b *Backend) contentURL(data []byte, mime string) string {
	if int64(len(data)) <= b.threshold {
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	return b.blobs.Register(data, mime)
}

// CreateFolder creates a folder under parentID.
func (b *Backend) CreateFolder(_ context.Context, name string, parentID *string) (*types.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrEmptyName
	}
	parent := types.NormalizeParent(parentID)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.folderLocked(parent); err != nil {
		return nil, err
	}
	now := b.now()
	n := &types.Node{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      types.KindFolder,
		ParentID:  types.CopyID(parent),
		CreatedAt: now,
		UpdatedAt: now,
	}
	next := b.cloneLocked()
	next[n.ID] = n
	if err := b.commitLocked(change{nodes: next}); err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// Rename renames id.
func (b *Backend) Rename(_ context.Context, id, name string) (*types.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrEmptyName
	}
	return b.update("rename", id, func(n *types.Node, _ map[string]*types.Node) error {
		n.Name = name
		return nil
	})
}

// Move reparents id under dest, refusing cycles.
func (b *Backend) Move(_ context.Context, id string, dest *string) (*types.Node, error) {
	dest = types.NormalizeParent(dest)
	return b.update("move", id, func(n *types.Node, nodes map[string]*types.Node) error {
		if dest != nil {
			if _, ok := nodes[*dest]; !ok {
				return fmt.Errorf("destination %s: %w", *dest, types.ErrNotFound)
			}
		}
		if err := tree.CheckMove(id, dest, nodes); err != nil {
			return err
		}
		n.ParentID = types.CopyID(dest)
		return nil
	})
}

// update applies fn to a copy of id and persists it with a fresh updatedAt.
func (b *Backend) update(op, id string, fn func(n *types.Node, nodes map[string]*types.Node) error) (*types.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", op, id, types.ErrNotFound)
	}
	n := current.Clone()
	if err := fn(n, b.nodes); err != nil {
		return nil, err
	}
	n.UpdatedAt = b.now()

	next := b.cloneLocked()
	next[id] = n
	if err := b.commitLocked(change{nodes: next}); err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// Copy duplicates id, and for folders its whole subtree, under dest.
// Only the top copy is renamed.
func (b *Backend) Copy(_ context.Context, id string, dest *string) (*types.Node, error) {
	dest = types.NormalizeParent(dest)

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.nodes[id]
	if !ok {
		return nil, fmt.Errorf("copy %s: %w", id, types.ErrNotFound)
	}
	if err := b.folderLocked(dest); err != nil {
		return nil, err
	}
	if dest != nil && (*dest == id || tree.IsDescendant(*dest, id, b.nodes)) {
		return nil, fmt.Errorf("copy %s: %w", id, types.ErrDescendantMove)
	}

	next := b.cloneLocked()
	c := change{nodes: next, put: make(map[string][]byte)}
	now := b.now()

	var copyNode func(n *types.Node, parent *string, top bool) (*types.Node, error)
	copyNode = func(n *types.Node, parent *string, top bool) (*types.Node, error) {
		cp := n.Clone()
		cp.ID = uuid.NewString()
		cp.ParentID = types.CopyID(parent)
		cp.CreatedAt, cp.UpdatedAt = now, now
		if top {
			cp.Name = n.Name + " (copy)"
		}
		if !n.IsFolder() {
			data, err := readContent(b.db, n.ID)
			if err != nil {
				return nil, err
			}
			if blob.IsRef(n.DownloadURL) {
				cp.DownloadURL = b.blobs.Register(data, n.MIMEType)
			}
			c.put[cp.ID] = data
		}
		next[cp.ID] = cp

		for _, child := range b.nodes {
			if child.ParentID != nil && *child.ParentID == n.ID {
				if _, err := copyNode(child, types.ID(cp.ID), false); err != nil {
					return nil, err
				}
			}
		}
		return cp, nil
	}

	top, err := copyNode(src, dest, true)
	if err != nil {
		return nil, err
	}
	if err := b.commitLocked(c); err != nil {
		return nil, err
	}
	return top.Clone(), nil
}

// Delete removes id and its subtree.
func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.nodes[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, types.ErrNotFound)
	}
	removed := tree.Descendants(id, b.nodes)
	removed[id] = struct{}{}

	next := make(map[string]*types.Node, len(b.nodes))
	var refs []string
	c := change{nodes: next}
	for nid, n := range b.nodes {
		if _, gone := removed[nid]; !gone {
			next[nid] = n
			continue
		}
		if !n.IsFolder() {
			c.deleted = append(c.deleted, nid)
			if blob.IsRef(n.DownloadURL) {
				refs = append(refs, n.DownloadURL)
			}
		}
	}
	if err := b.commitLocked(c); err != nil {
		return err
	}
	for _, ref := range refs {
		b.blobs.Release(ref)
	}
	b.log.Debug("deleted", "id", id, "removed", len(removed))
	return nil
}

// Download returns the content of a file.
func (b *Backend) Download(_ context.Context, id string) (io.ReadCloser, error) {
	b.mu.RLock()
	n, ok := b.nodes[id]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("download %s: %w", id, types.ErrNotFound)
	}
	if n.IsFolder() {
		return nil, fmt.Errorf("%w: %s is a folder", types.ErrValidation, n.Name)
	}
	data, err := readContent(b.db, id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// folderLocked checks that parent is the root or an existing folder.
func (b *Backend) folderLocked(parent *string) error {
	if parent == nil {
		return nil
	}
	n, ok := b.nodes[*parent]
	if !ok {
		return fmt.Errorf("folder %s: %w", *parent, types.ErrNotFound)
	}
	if !n.IsFolder() {
		return fmt.Errorf("%s: %w", n.Name, types.ErrNotAFolder)
	}
	return nil
}

func (b *Backend) cloneLocked() map[string]*types.Node {
	next := make(map[string]*types.Node, len(b.nodes)+1)
	for id, n := range b.nodes {
		next[id] = n
	}
	return next
}

// commitLocked persists c and then swaps the in-memory tree.
func (b *Backend) commitLocked(c change) error {
	if err := write(b.db, c); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	b.nodes = c.nodes
	return nil
}

var _ store.API = (*Backend)(nil)
