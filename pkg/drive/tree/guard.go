package tree

import (
	"fmt"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// IsDescendant reports whether ancestorID appears on the parent chain of
// candidateID. The walk stops at the first repeated id, so it terminates
// even when the cache holds a cycle.
func IsDescendant(candidateID, ancestorID string, cache map[string]*types.Node) bool {
	visited := map[string]struct{}{candidateID: {}}
	current := candidateID
	for {
		n, ok := cache[current]
		if !ok || n.ParentID == nil {
			return false
		}
		parent := *n.ParentID
		if parent == ancestorID {
			return true
		}
		if _, seen := visited[parent]; seen {
			return false
		}
		visited[parent] = struct{}{}
		current = parent
	}
}

// Ancestors returns the cached ancestors of id, outermost first.
// The node itself is not included. Missing parents end the chain.
func Ancestors(id string, cache map[string]*types.Node) []*types.Node {
	var chain []*types.Node
	visited := map[string]struct{}{id: {}}
	current := id
	for {
		n, ok := cache[current]
		if !ok || n.ParentID == nil {
			break
		}
		parent := *n.ParentID
		if _, seen := visited[parent]; seen {
			break
		}
		p, ok := cache[parent]
		if !ok {
			break
		}
		visited[parent] = struct{}{}
		chain = append(chain, p)
		current = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Descendants returns the ids of every cached node below id.
func Descendants(id string, cache map[string]*types.Node) map[string]struct{} {
	result := make(map[string]struct{})
	for nid := range cache {
		if nid != id && IsDescendant(nid, id, cache) {
			result[nid] = struct{}{}
		}
	}
	return result
}

// CheckMove validates moving id under dest (nil = root) against the cache.
// It returns nil when the move keeps the parent graph a forest.
func CheckMove(id string, dest *string, cache map[string]*types.Node) error {
	if _, ok := cache[id]; !ok {
		return fmt.Errorf("move %s: %w", id, types.ErrNotFound)
	}
	if dest == nil {
		return nil
	}
	if *dest == id {
		return types.ErrSelfMove
	}
	if target, ok := cache[*dest]; ok && !target.IsFolder() {
		return fmt.Errorf("move %s into %s: %w", id, *dest, types.ErrNotAFolder)
	}
	if IsDescendant(*dest, id, cache) {
		return types.ErrDescendantMove
	}
	return nil
}
