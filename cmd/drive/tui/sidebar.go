package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// Tree view icons using Unicode symbols.
const (
	iconExpanded  = "▼" // Black down-pointing triangle
	iconCollapsed = "▶" // Black right-pointing triangle
	iconLeaf      = " "
)

// sidebarRow is one visible folder. A nil node is the drive root.
type sidebarRow struct {
	node  *tree.Node
	depth int
}

// id returns the expansion key of the row.
func (r sidebarRow) id() string {
	if r.node == nil {
		return tree.RootKey
	}
	return r.node.ID()
}

// Sidebar shows the folder tree with the drive root on top.
type Sidebar struct {
	forest    []*tree.Node
	expansion *tree.Expansion
	flat      []sidebarRow
	cursor    int
	offset    int
}

// NewSidebar creates a sidebar backed by an expansion set.
func NewSidebar(exp *tree.Expansion) *Sidebar {
	s := &Sidebar{expansion: exp}
	s.refresh()
	return s
}

// SetForest replaces the folder tree, keeping the cursor on the same folder.
func (s *Sidebar) SetForest(forest []*tree.Node) {
	current := s.SelectedID()
	s.forest = forest
	s.refresh()
	s.SelectID(current)
}

// refresh rebuilds the flat list from the expansion state.
func (s *Sidebar) refresh() {
	s.flat = []sidebarRow{{depth: 0}}
	if s.expansion.IsExpanded(tree.RootKey) {
		for _, n := range s.forest {
			s.expansion.Apply(n)
			for _, visible := range n.Flatten() {
				s.flat = append(s.flat, sidebarRow{node: visible, depth: visible.Depth() + 1})
			}
		}
	}

	if s.cursor >= len(s.flat) {
		s.cursor = len(s.flat) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// MoveUp moves the cursor up one position.
func (s *Sidebar) MoveUp() {
	if s.cursor > 0 {
		s.cursor--
	}
}

// MoveDown moves the cursor down one position.
func (s *Sidebar) MoveDown() {
	if s.cursor < len(s.flat)-1 {
		s.cursor++
	}
}

// Toggle expands or collapses the folder under the cursor.
func (s *Sidebar) Toggle() {
	s.expansion.Toggle(s.flat[s.cursor].id())
	s.refresh()
}

// Expand opens the folder under the cursor.
func (s *Sidebar) Expand() {
	s.expansion.Expand(s.flat[s.cursor].id())
	s.refresh()
}

// Collapse closes the folder under the cursor, or moves to its parent
// when it is already closed.
func (s *Sidebar) Collapse() {
	row := s.flat[s.cursor]
	if s.expansion.IsExpanded(row.id()) {
		s.expansion.Collapse(row.id())
		s.refresh()
		return
	}
	if row.node == nil {
		return
	}
	if row.node.Parent != nil {
		s.SelectID(row.node.Parent.ID())
	} else {
		s.SelectID(tree.RootKey)
	}
}

// Selected returns the folder under the cursor. A nil node means the root.
func (s *Sidebar) Selected() *tree.Node {
	return s.flat[s.cursor].node
}

// SelectedID returns the expansion key under the cursor.
func (s *Sidebar) SelectedID() string {
	if len(s.flat) == 0 {
		return tree.RootKey
	}
	return s.flat[s.cursor].id()
}

// SelectID moves the cursor to id when it is visible.
func (s *Sidebar) SelectID(id string) {
	for i, row := range s.flat {
		if row.id() == id {
			s.cursor = i
			return
		}
	}
}

// Len returns the number of visible rows.
func (s *Sidebar) Len() int {
	return len(s.flat)
}

// View renders the sidebar. active is the expansion key of the open folder.
func (s *Sidebar) View(width, height int, active string) string {
	if height < 1 {
		height = 1
	}
	if s.cursor < s.offset {
		s.offset = s.cursor
	} else if s.cursor >= s.offset+height {
		s.offset = s.cursor - height + 1
	}

	var b strings.Builder
	for i := s.offset; i < s.offset+height && i < len(s.flat); i++ {
		row := s.flat[i]
		b.WriteString(s.renderRow(row, width, i == s.cursor, row.id() == active))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Sidebar) renderRow(row sidebarRow, width int, isCursor, isActive bool) string {
	icon := iconLeaf
	hasChildren := row.node == nil || len(row.node.Children) > 0
	if hasChildren {
		icon = iconCollapsed
		if s.expansion.IsExpanded(row.id()) {
			icon = iconExpanded
		}
	}

	name := types.RootLabel
	if row.node != nil {
		name = row.node.Name()
	}
	indent := strings.Repeat("  ", row.depth)
	text := truncate(indent+icon+" "+name, max(1, width))
	text += strings.Repeat(" ", max(0, width-lipgloss.Width(text)))

	switch {
	case isCursor:
		return rowHighlightStyle.Render(text)
	case isActive:
		return rowActiveStyle.Render(text)
	default:
		return rowNormalStyle.Render(text)
	}
}
