package tree

import (
	"sync"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// Expansion tracks which folders are expanded in the sidebar.
// It starts with only the root expanded.
type Expansion struct {
	mu       sync.RWMutex
	expanded map[string]bool
}

// NewExpansion creates an expansion set containing the root.
func NewExpansion() *Expansion {
	return &Expansion{
		expanded: map[string]bool{RootKey: true},
	}
}

// IsExpanded reports whether id is expanded.
func (e *Expansion) IsExpanded(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.expanded[id]
}

// Expand marks id as expanded.
func (e *Expansion) Expand(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expanded[id] = true
}

// Collapse marks id as collapsed.
func (e *Expansion) Collapse(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.expanded, id)
}

// Toggle flips the state of id and returns the new state.
func (e *Expansion) Toggle(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.expanded[id] {
		delete(e.expanded, id)
		return false
	}
	e.expanded[id] = true
	return true
}

// Reveal expands the root and every ancestor of the active folder so that
// the active folder is visible. A nil active folder only expands the root.
func (e *Expansion) Reveal(active *string, cache map[string]*types.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expanded[RootKey] = true
	if active == nil {
		return
	}
	for _, ancestor := range Ancestors(*active, cache) {
		e.expanded[ancestor.ID] = true
	}
}

// Apply copies the expansion state onto a tree.
func (e *Expansion) Apply(root *Node) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.apply(root)
}

func (e *Expansion) apply(n *Node) {
	n.Expanded = e.expanded[n.ID()]
	for _, child := range n.Children {
		e.apply(child)
	}
}

// Len returns the number of expanded entries, root included.
func (e *Expansion) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.expanded)
}
