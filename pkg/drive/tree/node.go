// Package tree projects the flat node cache into a folder hierarchy.
// It holds the folder forest builder, the descendant guard used to reject
// cyclic moves, and the sidebar expansion state.
package tree

import "github.com/jamesainslie/drive/pkg/drive/types"

// RootKey identifies the implicit root folder in the expansion set.
const RootKey = ""

// Node is a folder in the projected hierarchy.
// The pseudo root created by NewRoot has a nil Folder.
type Node struct {
	Folder *types.Node `json:"folder,omitempty"`

	Children []*Node `json:"children,omitempty"`
	Parent   *Node   `json:"-"` // Exclude from JSON to avoid cycles

	// UI state
	Expanded bool `json:"expanded,omitempty"`
}

// NewRoot wraps a forest under a pseudo root node representing the drive itself.
func NewRoot(forest []*Node) *Node {
	root := &Node{}
	for _, n := range forest {
		root.AddChild(n)
	}
	return root
}

// ID returns the folder id, or RootKey for the pseudo root.
func (n *Node) ID() string {
	if n.Folder == nil {
		return RootKey
	}
	return n.Folder.ID
}

// Name returns the folder name, or the root label for the pseudo root.
func (n *Node) Name() string {
	if n.Folder == nil {
		return types.RootLabel
	}
	return n.Folder.Name
}

// IsRoot reports whether n is the pseudo root.
func (n *Node) IsRoot() bool {
	return n.Folder == nil
}

// AddChild adds a child node and sets this node as the child's parent.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Depth returns the depth of this node from the top of its tree (top = 0).
func (n *Node) Depth() int {
	depth := 0
	for current := n.Parent; current != nil; current = current.Parent {
		depth++
	}
	return depth
}

// Flatten returns a slice of all visible nodes in display order.
// Collapsed folders hide their children.
func (n *Node) Flatten() []*Node {
	result := []*Node{n}
	if n.Expanded {
		for _, child := range n.Children {
			result = append(result, child.Flatten()...)
		}
	}
	return result
}

// Toggle expands or collapses the node.
func (n *Node) Toggle() {
	n.Expanded = !n.Expanded
}

// Find returns the node with the given id in this subtree, or nil.
func (n *Node) Find(id string) *Node {
	if n.ID() == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Count returns the number of folders in this subtree, excluding the pseudo root.
func (n *Node) Count() int {
	count := 0
	if !n.IsRoot() {
		count = 1
	}
	for _, child := range n.Children {
		count += child.Count()
	}
	return count
}

// Flatten returns the visible nodes of a whole forest in display order.
func Flatten(forest []*Node) []*Node {
	var result []*Node
	for _, n := range forest {
		result = append(result, n.Flatten()...)
	}
	return result
}
