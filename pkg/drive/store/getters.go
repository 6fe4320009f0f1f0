package store

import (
	"sort"
	"strings"

	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// Displayed returns a copy of the active folder's listing.
func (s *Store) Displayed() []*types.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Node, len(s.displayed))
	for i, n := range s.displayed {
		out[i] = n.Clone()
	}
	return out
}

// Children derives the cached listing of parent (nil = root).
func (s *Store) Children(parent *string) []*types.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(types.NormalizeParent(parent))
}

// Snapshot returns a copy of the whole cache.
func (s *Store) Snapshot() map[string]*types.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*types.Node, len(s.cache))
	for id, n := range s.cache {
		out[id] = n.Clone()
	}
	return out
}

// Len returns the number of cached nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// FindByID returns a copy of the cached node.
func (s *Store) FindByID(id string) (*types.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.cache[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// AllFolders returns every cached folder, sorted by name.
func (s *Store) AllFolders() []*types.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Node
	for _, n := range s.cache {
		if n.IsFolder() {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		an, bn := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if an != bn {
			return an < bn
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CurrentFolderName returns the active folder's name, or the root label
// when the root is active or the folder is not cached.
func (s *Store) CurrentFolderName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return types.RootLabel
	}
	if n, ok := s.cache[*s.active]; ok {
		return n.Name
	}
	return types.RootLabel
}

// ActiveFolderID returns the active folder, nil for the root.
func (s *Store) ActiveFolderID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CopyID(s.active)
}

// Ancestors returns the cached ancestors of id, outermost first.
func (s *Store) Ancestors(id string) []*types.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := tree.Ancestors(id, s.cache)
	for i, n := range chain {
		chain[i] = n.Clone()
	}
	return chain
}

// FolderTree returns the folder forest, rebuilt only when the cache changed.
// Callers must not modify it apart from the Expanded flags.
func (s *Store) FolderTree() []*tree.Node {
	return s.builder.Build(s.Revision(), s.Snapshot)
}

// Pending reports whether a remote call is in flight.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// LastError returns the message of the most recent failure, or "" after a success.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError forgets the last failure.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// Revision increases with every committed change.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe returns a subscription to store events. Slow readers miss
// events rather than block the store. Returns nil after Close.
func (s *Store) Subscribe() *Subscription {
	return s.events.subscribe()
}

// Unsubscribe closes and removes a subscription.
func (s *Store) Unsubscribe(id string) {
	s.events.unsubscribe(id)
}

// SubscriberCount returns the number of active subscriptions.
func (s *Store) SubscriberCount() int {
	return s.events.count()
}

// Close closes every subscription.
func (s *Store) Close() {
	s.events.close()
}
