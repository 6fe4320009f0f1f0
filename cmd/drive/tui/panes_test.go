package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// testForest returns:
//
//	music/
//	  live/
//	photos/
func testForest() []*tree.Node {
	return tree.BuildFolderTree(map[string]*types.Node{
		"music":  {ID: "music", Name: "music", Kind: types.KindFolder},
		"live":   {ID: "live", Name: "live", Kind: types.KindFolder, ParentID: types.ID("music")},
		"photos": {ID: "photos", Name: "photos", Kind: types.KindFolder},
		"song":   {ID: "song", Name: "song.mp3", Kind: types.KindFile, ParentID: types.ID("music")},
	})
}

func TestSidebarRows(t *testing.T) {
	s := NewSidebar(tree.NewExpansion())
	if s.Len() != 1 {
		t.Fatalf("expected only the root before a forest, got %d", s.Len())
	}

	s.SetForest(testForest())
	// Root + music + photos
	if s.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", s.Len())
	}
	if s.SelectedID() != tree.RootKey {
		t.Errorf("expected cursor on root, got %q", s.SelectedID())
	}

	s.MoveDown()
	s.Expand()
	if s.Len() != 4 {
		t.Errorf("expected 4 rows after expanding music, got %d", s.Len())
	}

	s.MoveDown()
	if s.SelectedID() != "live" {
		t.Fatalf("expected live, got %q", s.SelectedID())
	}
	if s.flat[s.cursor].depth != 2 {
		t.Errorf("expected live at depth 2, got %d", s.flat[s.cursor].depth)
	}

	// Collapse on a leaf moves to its parent.
	s.Collapse()
	if s.SelectedID() != "music" {
		t.Errorf("expected cursor on music, got %q", s.SelectedID())
	}
	s.Collapse()
	if s.Len() != 3 {
		t.Errorf("expected music to collapse, got %d rows", s.Len())
	}
}

func TestSidebarCollapseRoot(t *testing.T) {
	s := NewSidebar(tree.NewExpansion())
	s.SetForest(testForest())

	s.Toggle()
	if s.Len() != 1 {
		t.Errorf("expected only the root row, got %d", s.Len())
	}
	s.Toggle()
	if s.Len() != 3 {
		t.Errorf("expected root children back, got %d", s.Len())
	}
}

func TestSidebarKeepsSelectionAcrossForests(t *testing.T) {
	s := NewSidebar(tree.NewExpansion())
	s.SetForest(testForest())
	s.SelectID("photos")

	forest := tree.BuildFolderTree(map[string]*types.Node{
		"archive": {ID: "archive", Name: "archive", Kind: types.KindFolder},
		"photos":  {ID: "photos", Name: "photos", Kind: types.KindFolder},
	})
	s.SetForest(forest)

	if s.SelectedID() != "photos" {
		t.Errorf("expected selection to follow photos, got %q", s.SelectedID())
	}
}

func TestSidebarView(t *testing.T) {
	s := NewSidebar(tree.NewExpansion())
	s.SetForest(testForest())

	view := s.View(30, 10, "photos")
	lines := strings.Split(view, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], iconExpanded+" "+types.RootLabel) {
		t.Errorf("expected expanded root, got %q", lines[0])
	}
	if !strings.Contains(lines[1], iconCollapsed+" music") {
		t.Errorf("expected collapsed music, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "photos") {
		t.Errorf("expected photos, got %q", lines[2])
	}

	// Scrolls to keep the cursor visible.
	s.SelectID("photos")
	view = s.View(30, 1, "")
	if !strings.Contains(view, "photos") || strings.Contains(view, "music") {
		t.Errorf("expected only photos in a one-line view, got %q", view)
	}
}

func testNodes() []*types.Node {
	return []*types.Node{
		{ID: "d", Name: "docs", Kind: types.KindFolder},
		{ID: "a", Name: "a.txt", Kind: types.KindFile, Size: 2048, UpdatedAt: time.Now().Add(-time.Hour)},
		{ID: "b", Name: "b.txt", Kind: types.KindFile, Size: 10},
	}
}

func TestListingCursor(t *testing.T) {
	l := NewListing()
	if l.Selected() != nil {
		t.Error("expected no selection when empty")
	}

	l.SetNodes(testNodes())
	l.MoveDown()
	l.MoveDown()
	l.MoveDown()
	if l.Selected().ID != "b" {
		t.Errorf("expected cursor clamped at b, got %s", l.Selected().ID)
	}
	l.Home()
	if l.Selected().ID != "d" {
		t.Errorf("expected home at d, got %s", l.Selected().ID)
	}
	l.End()
	l.MoveUp()
	if l.Selected().ID != "a" {
		t.Errorf("expected a, got %s", l.Selected().ID)
	}

	// The cursor follows the node when rows change.
	l.SetNodes(append([]*types.Node{{ID: "z", Name: "new", Kind: types.KindFolder}}, testNodes()...))
	if l.Selected().ID != "a" {
		t.Errorf("expected cursor to follow a, got %s", l.Selected().ID)
	}

	// And resets when the node is gone.
	l.SetNodes(testNodes()[2:])
	if l.Selected().ID != "b" {
		t.Errorf("expected reset to first row, got %s", l.Selected().ID)
	}
}

func TestListingCut(t *testing.T) {
	l := NewListing()
	l.SetNodes(testNodes())

	l.End()
	l.ToggleCut()
	l.Home()
	l.ToggleCut()

	ids := l.CutIDs()
	if strings.Join(ids, ",") != "d,b" {
		t.Errorf("expected listing order, got %v", ids)
	}

	// Marks survive a folder change.
	l.SetNodes(nil)
	if len(l.CutIDs()) != 2 {
		t.Errorf("expected marks kept, got %v", l.CutIDs())
	}

	l.ClearCut()
	if len(l.CutIDs()) != 0 {
		t.Error("expected marks cleared")
	}
}

func TestListingView(t *testing.T) {
	l := NewListing()
	if !strings.Contains(l.View(40, 5), "This folder is empty") {
		t.Error("expected empty message")
	}

	l.SetNodes(testNodes())
	view := l.View(60, 5)
	lines := strings.Split(view, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "docs/") {
		t.Errorf("expected folder suffix, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "2.0 KiB") || !strings.Contains(lines[1], "ago") {
		t.Errorf("expected size and age, got %q", lines[1])
	}
}
