package tree

import (
	"sort"
	"strings"
	"sync"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// BuildFolderTree constructs the folder forest from the node cache.
// Files are ignored. A folder whose parent is missing from the cache, or is
// not a folder, is promoted to the top level. Children are sorted
// alphabetically at every level.
func BuildFolderTree(cache map[string]*types.Node) []*Node {
	// First pass: one tree node per folder, with no children yet.
	nodes := make(map[string]*Node)
	for id, n := range cache {
		if n.Kind != types.KindFolder {
			continue
		}
		nodes[id] = &Node{Folder: n.Clone()}
	}

	// Second pass: attach to parents, promote orphans.
	var roots []*Node
	for _, node := range nodes {
		parentID := node.Folder.ParentID
		if parentID == nil || *parentID == node.Folder.ID {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*parentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.AddChild(node)
	}

	// Folders stuck in a parent cycle are reachable from no root.
	// Promote one member of each cycle so every folder appears exactly once.
	roots = append(roots, detached(nodes, roots)...)

	sortNodes(roots)
	for _, root := range roots {
		sortChildren(root)
	}
	return roots
}

// detached returns one representative of every cycle not reachable from roots,
// unlinked from its parent.
func detached(nodes map[string]*Node, roots []*Node) []*Node {
	reached := make(map[*Node]bool, len(nodes))
	var mark func(n *Node)
	mark = func(n *Node) {
		if reached[n] {
			return
		}
		reached[n] = true
		for _, child := range n.Children {
			mark(child)
		}
	}
	for _, root := range roots {
		mark(root)
	}
	if len(reached) == len(nodes) {
		return nil
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var promoted []*Node
	for _, id := range ids {
		node := nodes[id]
		if reached[node] {
			continue
		}
		node.Parent.removeChild(node)
		node.Parent = nil
		promoted = append(promoted, node)
		mark(node)
	}
	return promoted
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// sortChildren sorts all children recursively by name.
func sortChildren(node *Node) {
	if len(node.Children) == 0 {
		return
	}
	sortNodes(node.Children)
	for _, child := range node.Children {
		sortChildren(child)
	}
}

// sortNodes orders by case-insensitive name, then by id for stability.
func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		an, bn := strings.ToLower(a.Name()), strings.ToLower(b.Name())
		if an != bn {
			return an < bn
		}
		return a.ID() < b.ID()
	})
}

// Builder memoizes the folder forest on a cache revision.
// The forest is shared between callers and must be treated as read-only,
// apart from the Expanded flags.
type Builder struct {
	mu       sync.Mutex
	built    bool
	revision uint64
	forest   []*Node
}

// Build returns the forest for revision rev, calling snapshot and rebuilding
// only when rev differs from the last build.
func (b *Builder) Build(rev uint64, snapshot func() map[string]*types.Node) []*Node {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built && b.revision == rev {
		return b.forest
	}
	b.forest = BuildFolderTree(snapshot())
	b.revision = rev
	b.built = true
	return b.forest
}
