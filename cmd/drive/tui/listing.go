package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// Listing is the file pane for the active folder.
type Listing struct {
	nodes  []*types.Node
	cut    map[string]bool
	cursor int
	offset int
}

// NewListing creates an empty file pane.
func NewListing() *Listing {
	return &Listing{cut: make(map[string]bool)}
}

// SetNodes replaces the rows, keeping the cursor on the same node when it
// is still present.
func (l *Listing) SetNodes(nodes []*types.Node) {
	current := ""
	if n := l.Selected(); n != nil {
		current = n.ID
	}
	l.nodes = nodes
	l.cursor = 0
	for i, n := range nodes {
		if n.ID == current {
			l.cursor = i
			break
		}
	}
}

// Selected returns the node under the cursor, or nil when empty.
func (l *Listing) Selected() *types.Node {
	if l.cursor < 0 || l.cursor >= len(l.nodes) {
		return nil
	}
	return l.nodes[l.cursor]
}

// MoveUp moves the cursor up one row.
func (l *Listing) MoveUp() {
	if l.cursor > 0 {
		l.cursor--
	}
}

// MoveDown moves the cursor down one row.
func (l *Listing) MoveDown() {
	if l.cursor < len(l.nodes)-1 {
		l.cursor++
	}
}

// Home jumps to the first row.
func (l *Listing) Home() { l.cursor = 0 }

// End jumps to the last row.
func (l *Listing) End() { l.cursor = max(0, len(l.nodes)-1) }

// ToggleCut marks or unmarks the selected node for a later paste.
func (l *Listing) ToggleCut() {
	n := l.Selected()
	if n == nil {
		return
	}
	if l.cut[n.ID] {
		delete(l.cut, n.ID)
	} else {
		l.cut[n.ID] = true
	}
}

// CutIDs returns the marked nodes in listing order, then any marked nodes
// from other folders.
func (l *Listing) CutIDs() []string {
	ids := make([]string, 0, len(l.cut))
	seen := make(map[string]bool, len(l.cut))
	for _, n := range l.nodes {
		if l.cut[n.ID] {
			ids = append(ids, n.ID)
			seen[n.ID] = true
		}
	}
	for id := range l.cut {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// ClearCut drops every mark.
func (l *Listing) ClearCut() {
	l.cut = make(map[string]bool)
}

// Len returns the number of rows.
func (l *Listing) Len() int {
	return len(l.nodes)
}

// View renders the rows into width x height cells.
func (l *Listing) View(width, height int) string {
	if len(l.nodes) == 0 {
		return mutedTextStyle.Render("This folder is empty")
	}
	if height < 1 {
		height = 1
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	} else if l.cursor >= l.offset+height {
		l.offset = l.cursor - height + 1
	}

	var b strings.Builder
	for i := l.offset; i < l.offset+height && i < len(l.nodes); i++ {
		b.WriteString(l.renderRow(l.nodes[i], width, i == l.cursor))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (l *Listing) renderRow(n *types.Node, width int, isCursor bool) string {
	const sizeWidth = 10
	const dateWidth = 14

	name := n.Name
	if n.IsFolder() {
		name += "/"
	}
	modified := ""
	if !n.UpdatedAt.IsZero() {
		modified = humanize.Time(n.UpdatedAt)
	}

	nameWidth := max(4, width-sizeWidth-dateWidth-2)
	name = truncate(name, nameWidth)
	pad := strings.Repeat(" ", max(0, nameWidth-lipgloss.Width(name)))

	text := fmt.Sprintf("%s%s %*s %*s", name, pad, sizeWidth, n.HumanSize(), dateWidth, truncate(modified, dateWidth))

	switch {
	case isCursor:
		return rowHighlightStyle.Render(text)
	case l.cut[n.ID]:
		return rowCutStyle.Render(text)
	case n.IsFolder():
		return rowActiveStyle.Render(text)
	default:
		return rowNormalStyle.Render(text)
	}
}
