package store

import (
	"sync"

	"github.com/google/uuid"
)

// Op names a store operation in events and task keys.
type Op string

// Store operations.
const (
	OpLoad         Op = "load"
	OpFetch        Op = "fetch"
	OpCreateFolder Op = "create-folder"
	OpRename       Op = "rename"
	OpMove         Op = "move"
	OpCopy         Op = "copy"
	OpDelete       Op = "delete"
	OpUpload       Op = "upload"
	OpDownload     Op = "download"
)

// supersedes reports whether a newer call of op on the same target
// replaces an older one. Copies, uploads and folder creation each produce
// new nodes, so every call stands on its own.
func (op Op) supersedes() bool {
	switch op {
	case OpLoad, OpFetch, OpRename, OpMove, OpDelete:
		return true
	default:
		return false
	}
}

// Event describes a committed change or a failure.
type Event struct {
	Op Op

	// IDs are the nodes touched. For deletes this includes every removed descendant.
	IDs []string

	// ActiveFolderID is the active folder after the event.
	ActiveFolderID *string

	// ActiveDeleted is set when a delete removed the active folder.
	// ParentID then holds that folder's parent, for navigation.
	ActiveDeleted bool
	ParentID      *string

	// Err is set for failures. Suppressed failures carry no Err.
	Err        error
	Suppressed bool

	// Revision is the cache revision after the event.
	Revision uint64
}

// Subscription receives store events until it is unsubscribed or the store closes.
type Subscription struct {
	ID     string
	Events chan Event
}

type broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[string]*Subscription)}
}

func (b *broadcaster) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	sub := &Subscription{
		ID:     uuid.New().String(),
		Events: make(chan Event, 100),
	}
	b.subs[sub.ID] = sub
	return sub
}

func (b *broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		close(sub.Events)
		delete(b.subs, id)
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.Events <- ev:
		default:
			// Channel full, event dropped
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.Events)
	}
	b.subs = make(map[string]*Subscription)
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
