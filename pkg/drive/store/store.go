// Package store is the client-side cache of a drive tree.
//
// A Store accumulates every node fetched during a session, keeps the listing
// of the active folder and records the outcome of the last operation. Every
// mutation goes to the remote API first; the cache only changes once the
// call succeeds, in a single step under the store lock, so a failed call
// never leaves a partial update behind.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// ErrSuperseded is returned when a newer call on the same target replaced
// this one before its response was applied. The response is dropped.
var ErrSuperseded = errors.New("superseded by a newer request")

// ErrCopyIdentity is returned when a copy comes back with an id that is
// already in use.
var ErrCopyIdentity = errors.New("copy did not receive a fresh id")

// ErrMalformedResponse is returned when a backend answers with an unusable node.
var ErrMalformedResponse = errors.New("malformed response")

// Options configures a Store.
type Options struct {
	// UserID lists another user's drive (admin only). Empty means the caller.
	UserID string
}

// Store is the tree cache. It is safe for concurrent use.
// The lock is never held across a remote call.
type Store struct {
	api     API
	userID  string
	log     *logging.Logger
	tasks   *taskSet
	events  *broadcaster
	builder tree.Builder

	mu        sync.RWMutex
	cache     map[string]*types.Node
	displayed []*types.Node
	active    *string
	pending   int
	lastError string
	revision  uint64
	deleted   map[string]struct{} // ids removed by Delete, for not-found suppression
}

// New creates an empty store backed by api.
func New(api API, opts Options) *Store {
	return &Store{
		api:     api,
		userID:  opts.UserID,
		log:     logging.Get("store"),
		tasks:   newTaskSet(),
		events:  newBroadcaster(),
		cache:   make(map[string]*types.Node),
		deleted: make(map[string]struct{}),
	}
}

// run performs one remote call as a task keyed by op and target.
// On success commit applies the response with the store lock held; commit
// must validate before it mutates anything. A response whose task was
// superseded while in flight is dropped.
func run[T any](ctx context.Context, s *Store, op Op, target string,
	call func(context.Context) (T, error),
	commit func(T) (Event, error),
) error {
	key := s.tasks.key(op, target)
	tctx, t := s.tasks.start(ctx, key)
	defer s.tasks.finish(key, t)

	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	res, err := call(tctx)

	s.mu.Lock()
	s.pending--
	if s.tasks.superseded(key, t) {
		s.mu.Unlock()
		s.log.Debug("dropped superseded response", "op", op, "target", target)
		return fmt.Errorf("%s %s: %w", op, target, ErrSuperseded)
	}

	var ev Event
	if err == nil {
		ev, err = commit(res)
	}
	if err != nil {
		ev = s.failLocked(op, target, err)
		s.mu.Unlock()
		s.events.publish(ev)
		return err
	}

	s.revision++
	s.lastError = ""
	ev.Op = op
	ev.ActiveFolderID = types.CopyID(s.active)
	ev.Revision = s.revision
	s.mu.Unlock()

	s.events.publish(ev)
	return nil
}

// failLocked records err as the last error, unless it is an expected
// not-found for a node this store already deleted. Must be called with s.mu held.
func (s *Store) failLocked(op Op, target string, err error) Event {
	ev := Event{Op: op, ActiveFolderID: types.CopyID(s.active), Revision: s.revision}
	if target != "" {
		ev.IDs = []string{target}
	}

	if errors.Is(err, context.Canceled) {
		s.log.Debug("operation cancelled", "op", op, "target", target)
		ev.Err = err
		return ev
	}
	if errors.Is(err, types.ErrNotFound) && target != "" {
		if _, gone := s.deleted[target]; gone {
			s.log.Debug("ignoring not found for deleted node", "op", op, "target", target)
			ev.Suppressed = true
			return ev
		}
	}

	s.lastError = messageOf(err)
	s.log.Warn("operation failed", "op", op, "target", target, "error", err)
	ev.Err = err
	return ev
}

// reject records a failure that happened before any remote call.
func (s *Store) reject(op Op, target string, err error) error {
	s.mu.Lock()
	ev := s.failLocked(op, target, err)
	s.mu.Unlock()
	s.events.publish(ev)
	return err
}

// messageOf returns the server's own message when the error carries one.
func messageOf(err error) string {
	var server interface{ ServerMessage() string }
	if errors.As(err, &server) {
		return server.ServerMessage()
	}
	return err.Error()
}

// Load lists parentID (nil = root), merges the result into the cache and
// makes parentID the active folder. Cached children of parentID that the
// server no longer lists are evicted together with their subtrees; every
// other cached folder is kept.
func (s *Store) Load(ctx context.Context, parentID *string) error {
	parent := types.NormalizeParent(parentID)
	opts := ListOptions{ParentID: parent, UserID: s.userID}

	target := ""
	if parent != nil {
		target = *parent
	}

	return run(ctx, s, OpLoad, target, func(ctx context.Context) ([]*types.Node, error) {
		return s.api.List(ctx, opts)
	}, func(nodes []*types.Node) (Event, error) {
		for _, n := range nodes {
			if err := validNode(n); err != nil {
				return Event{}, err
			}
		}
		s.mergeListingLocked(parent, nodes)
		s.active = types.CopyID(parent)
		s.displayed = s.childrenLocked(parent)
		return Event{IDs: nodeIDs(nodes)}, nil
	})
}

// NavigateToFolder is Load under the name the browser uses.
func (s *Store) NavigateToFolder(ctx context.Context, folderID *string) error {
	return s.Load(ctx, folderID)
}

// RefreshFiles reloads the active folder.
func (s *Store) RefreshFiles(ctx context.Context) error {
	return s.Load(ctx, s.ActiveFolderID())
}

// mergeListingLocked applies a listing of parent. Must be called with s.mu held.
func (s *Store) mergeListingLocked(parent *string, nodes []*types.Node) {
	returned := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		returned[n.ID] = n
	}

	stale := make(map[string]struct{})
	for id, n := range s.cache {
		if _, ok := returned[id]; ok || !types.SameParent(n.ParentID, parent) {
			continue
		}
		stale[id] = struct{}{}
		for d := range tree.Descendants(id, s.cache) {
			if _, ok := returned[d]; !ok {
				stale[d] = struct{}{}
			}
		}
	}

	next := make(map[string]*types.Node, len(s.cache)+len(returned))
	for id, n := range s.cache {
		if _, gone := stale[id]; !gone {
			next[id] = n
		}
	}
	for id, n := range returned {
		if existing, ok := next[id]; ok && existing.Kind != n.Kind {
			s.log.Warn("ignoring kind change", "id", id, "cached", existing.Kind, "received", n.Kind)
			continue
		}
		next[id] = normalized(n)
		delete(s.deleted, id)
	}
	s.cache = next
}

// Fetch loads a single node into the cache.
func (s *Store) Fetch(ctx context.Context, id string) error {
	return run(ctx, s, OpFetch, id, func(ctx context.Context) (*types.Node, error) {
		return s.api.Get(ctx, id)
	}, func(n *types.Node) (Event, error) {
		if err := validNode(n); err != nil {
			return Event{}, err
		}
		if existing, ok := s.cache[n.ID]; ok && existing.Kind != n.Kind {
			return Event{}, fmt.Errorf("fetch %s: %w", id, types.ErrKindChanged)
		}
		s.cache[n.ID] = normalized(n)
		delete(s.deleted, n.ID)
		s.displayed = s.childrenLocked(s.active)
		return Event{IDs: []string{n.ID}}, nil
	})
}

// FetchPath loads id and every ancestor up to the root, so that the guard
// and breadcrumbs can see the whole chain.
func (s *Store) FetchPath(ctx context.Context, id string) error {
	seen := make(map[string]struct{})
	current := id
	for {
		if _, ok := seen[current]; ok {
			return nil
		}
		seen[current] = struct{}{}

		if err := s.Fetch(ctx, current); err != nil {
			return err
		}
		n, ok := s.FindByID(current)
		if !ok || n.ParentID == nil {
			return nil
		}
		current = *n.ParentID
	}
}

// CreateFolder creates a folder under parentID, falling back to the active
// folder and then the root, and then loads that parent.
// Duplicate names are left to the server.
func (s *Store) CreateFolder(ctx context.Context, name string, parentID *string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.reject(OpCreateFolder, "", types.ErrEmptyName)
	}

	s.mu.RLock()
	target := s.resolveParentLocked(parentID)
	err := s.checkFolderLocked(target)
	s.mu.RUnlock()
	if err != nil {
		return s.reject(OpCreateFolder, types.ParentString(target), err)
	}

	err = run(ctx, s, OpCreateFolder, "", func(ctx context.Context) (*types.Node, error) {
		return s.api.CreateFolder(ctx, name, target)
	}, func(n *types.Node) (Event, error) {
		if err := validNode(n); err != nil {
			return Event{}, err
		}
		if !n.IsFolder() {
			return Event{}, fmt.Errorf("%w: create folder returned a %s", ErrMalformedResponse, n.Kind)
		}
		s.cache[n.ID] = normalized(n)
		return Event{IDs: []string{n.ID}}, nil
	})
	if err != nil {
		return err
	}
	return s.Load(ctx, target)
}

// Rename renames id. Blank names are rejected, and renaming to the current
// name makes no remote call.
func (s *Store) Rename(ctx context.Context, id, newName string) error {
	name := strings.TrimSpace(newName)
	if name == "" {
		return s.reject(OpRename, id, types.ErrEmptyName)
	}
	current, ok := s.FindByID(id)
	if !ok {
		return s.reject(OpRename, id, fmt.Errorf("rename %s: %w", id, types.ErrNotFound))
	}
	if current.Name == name {
		return nil
	}

	return run(ctx, s, OpRename, id, func(ctx context.Context) (*types.Node, error) {
		return s.api.Rename(ctx, id, name)
	}, func(n *types.Node) (Event, error) {
		next, err := s.replacementLocked(id, n)
		if err != nil {
			return Event{}, err
		}
		s.cache[id] = next
		s.displayed = s.childrenLocked(s.active)
		return Event{IDs: []string{id}}, nil
	})
}

// Move reparents id under destinationID (nil = root). The descendant guard
// runs before the remote call; a move into itself or into its own subtree
// never reaches the API.
func (s *Store) Move(ctx context.Context, id string, destinationID *string) error {
	dest := types.NormalizeParent(destinationID)

	s.mu.RLock()
	err := tree.CheckMove(id, dest, s.cache)
	s.mu.RUnlock()
	if err != nil {
		return s.reject(OpMove, id, err)
	}

	return run(ctx, s, OpMove, id, func(ctx context.Context) (*types.Node, error) {
		return s.api.Move(ctx, id, dest)
	}, func(n *types.Node) (Event, error) {
		next, err := s.replacementLocked(id, n)
		if err != nil {
			return Event{}, err
		}
		// Another commit may have changed the tree while this call was in flight.
		if next.ParentID != nil && (*next.ParentID == id || tree.IsDescendant(*next.ParentID, id, s.cache)) {
			return Event{}, fmt.Errorf("move %s: %w", id, types.ErrDescendantMove)
		}
		s.cache[id] = next
		s.displayed = s.childrenLocked(s.active)
		return Event{IDs: []string{id}, ParentID: types.CopyID(next.ParentID)}, nil
	})
}

// Copy duplicates id under destinationID (nil = root). The copy must come
// back with an id the cache has not seen; the original is untouched.
func (s *Store) Copy(ctx context.Context, id string, destinationID *string) error {
	dest := types.NormalizeParent(destinationID)

	if _, ok := s.FindByID(id); !ok {
		return s.reject(OpCopy, id, fmt.Errorf("copy %s: %w", id, types.ErrNotFound))
	}
	s.mu.RLock()
	err := s.checkFolderLocked(dest)
	s.mu.RUnlock()
	if err != nil {
		return s.reject(OpCopy, id, err)
	}

	return run(ctx, s, OpCopy, id, func(ctx context.Context) (*types.Node, error) {
		return s.api.Copy(ctx, id, dest)
	}, func(n *types.Node) (Event, error) {
		if err := validNode(n); err != nil {
			return Event{}, err
		}
		if _, taken := s.cache[n.ID]; taken || n.ID == id {
			return Event{}, fmt.Errorf("copy %s: %w", id, ErrCopyIdentity)
		}
		s.cache[n.ID] = normalized(n)
		s.displayed = s.childrenLocked(s.active)
		return Event{IDs: []string{n.ID}}, nil
	})
}

// Delete removes id remotely, then drops it and every cached descendant in
// one cache replacement. When the active folder is removed the listing
// becomes empty and the event carries ActiveDeleted; navigating away is
// left to the caller.
func (s *Store) Delete(ctx context.Context, id string) error {
	return run(ctx, s, OpDelete, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.Delete(ctx, id)
	}, func(struct{}) (Event, error) {
		removed := tree.Descendants(id, s.cache)
		removed[id] = struct{}{}

		var parent *string
		if n, ok := s.cache[id]; ok {
			parent = types.CopyID(n.ParentID)
		}

		next := make(map[string]*types.Node, len(s.cache))
		for nid, n := range s.cache {
			if _, gone := removed[nid]; !gone {
				next[nid] = n
			}
		}
		s.cache = next

		ids := make([]string, 0, len(removed))
		for nid := range removed {
			s.deleted[nid] = struct{}{}
			ids = append(ids, nid)
		}
		sort.Strings(ids)

		activeDeleted := false
		if s.active != nil {
			_, activeDeleted = removed[*s.active]
		}
		s.displayed = s.childrenLocked(s.active)

		return Event{IDs: ids, ActiveDeleted: activeDeleted, ParentID: parent}, nil
	})
}

// Upload sends files as one batch to parentID, falling back to the active
// folder and then the root. The listing is derived again from the cache
// once, after every returned node is inserted.
func (s *Store) Upload(ctx context.Context, files []UploadFile, parentID *string) error {
	if len(files) == 0 {
		return nil
	}

	s.mu.RLock()
	target := s.resolveParentLocked(parentID)
	err := s.checkFolderLocked(target)
	s.mu.RUnlock()
	if err != nil {
		return s.reject(OpUpload, types.ParentString(target), err)
	}

	return run(ctx, s, OpUpload, types.ParentString(target), func(ctx context.Context) ([]*types.Node, error) {
		return s.api.Upload(ctx, files, target)
	}, func(nodes []*types.Node) (Event, error) {
		for _, n := range nodes {
			if err := validNode(n); err != nil {
				return Event{}, err
			}
			if existing, ok := s.cache[n.ID]; ok && existing.Kind != n.Kind {
				return Event{}, fmt.Errorf("upload %s: %w", n.ID, types.ErrKindChanged)
			}
		}
		for _, n := range nodes {
			s.cache[n.ID] = normalized(n)
		}
		s.displayed = s.childrenLocked(s.active)
		return Event{IDs: nodeIDs(nodes)}, nil
	})
}

// Download streams a file's content. Folders are rejected.
func (s *Store) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	if n, ok := s.FindByID(id); ok && n.IsFolder() {
		return nil, s.reject(OpDownload, id, fmt.Errorf("%w: %s is a folder", types.ErrValidation, n.Name))
	}
	rc, err := s.api.Download(ctx, id)
	if err != nil {
		return nil, s.reject(OpDownload, id, err)
	}
	return rc, nil
}

// resolveParentLocked applies the explicit > active > root fallback.
func (s *Store) resolveParentLocked(explicit *string) *string {
	if explicit != nil {
		return types.NormalizeParent(explicit)
	}
	return types.CopyID(s.active)
}

// checkFolderLocked rejects a cached destination that is a file.
func (s *Store) checkFolderLocked(target *string) error {
	if target == nil {
		return nil
	}
	if n, ok := s.cache[*target]; ok && !n.IsFolder() {
		return fmt.Errorf("%s: %w", n.Name, types.ErrNotAFolder)
	}
	return nil
}

// replacementLocked validates a server copy of a cached node.
func (s *Store) replacementLocked(id string, n *types.Node) (*types.Node, error) {
	if err := validNode(n); err != nil {
		return nil, err
	}
	if n.ID != id {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrMalformedResponse, id, n.ID)
	}
	existing, ok := s.cache[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, types.ErrNotFound)
	}
	if existing.Kind != n.Kind {
		return nil, fmt.Errorf("%s: %w", id, types.ErrKindChanged)
	}
	return normalized(n), nil
}

// childrenLocked derives a listing from the cache.
func (s *Store) childrenLocked(parent *string) []*types.Node {
	var out []*types.Node
	for _, n := range s.cache {
		if types.SameParent(n.ParentID, parent) {
			out = append(out, n.Clone())
		}
	}
	SortListing(out)
	return out
}

// SortListing orders folders before files, then by case-insensitive name.
func SortListing(nodes []*types.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

func validNode(n *types.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: node without id", ErrMalformedResponse)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: node %s has kind %q", ErrMalformedResponse, n.ID, n.Kind)
	}
	return nil
}

func normalized(n *types.Node) *types.Node {
	c := n.Clone()
	c.ParentID = types.NormalizeParent(n.ParentID)
	return c
}

func nodeIDs(nodes []*types.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
