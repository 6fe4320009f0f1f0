package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/jamesainslie/drive/pkg/drive/dropzone"
	"github.com/jamesainslie/drive/pkg/drive/local"
	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

type testDrive struct {
	store *store.Store
	docs  string
	inner string
	file  string
}

// newTestModel builds a browser over an in-memory drive:
//
//	Docs/Inner/
//	a.txt
func newTestModel(t *testing.T) (Model, testDrive) {
	t.Helper()
	ctx := context.Background()

	backend, err := local.Open("", local.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	docs, err := backend.CreateFolder(ctx, "Docs", nil)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := backend.CreateFolder(ctx, "Inner", types.ID(docs.ID))
	if err != nil {
		t.Fatal(err)
	}
	files, err := backend.Upload(ctx, []store.UploadFile{{
		Name:     "a.txt",
		MIMEType: "text/plain",
		Size:     5,
		Content:  strings.NewReader("hello"),
	}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	s := store.New(backend, store.Options{})
	t.Cleanup(s.Close)
	m := NewModel(Options{Store: s, Zone: dropzone.New(s, dropzone.Options{})})
	m = run(t, m, m.navigate(nil))

	return m, testDrive{store: s, docs: docs.ID, inner: inner.ID, file: files[0].ID}
}

// run executes cmd synchronously and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func listingNames(m Model) []string {
	var names []string
	for _, n := range m.listing.nodes {
		names = append(names, n.Name)
	}
	return names
}

func TestInitialLoad(t *testing.T) {
	m, _ := newTestModel(t)

	got := strings.Join(listingNames(m), ",")
	if got != "Docs,a.txt" {
		t.Errorf("expected folders first, got %s", got)
	}
	// Root + Docs (collapsed)
	if m.sidebar.Len() != 2 {
		t.Errorf("expected 2 sidebar rows, got %d", m.sidebar.Len())
	}
}

func TestEnterAndBack(t *testing.T) {
	m, d := newTestModel(t)

	m, cmd := press(m, "enter")
	m = run(t, m, cmd)

	if m.active != d.docs {
		t.Fatalf("expected Docs to be active, got %q", m.active)
	}
	if got := strings.Join(listingNames(m), ","); got != "Inner" {
		t.Errorf("expected Inner, got %s", got)
	}
	if !strings.Contains(m.renderHeader(), types.RootLabel+" / Docs") {
		t.Errorf("expected breadcrumbs, got %q", m.renderHeader())
	}

	m, cmd = press(m, "backspace")
	m = run(t, m, cmd)
	if m.store.ActiveFolderID() != nil {
		t.Error("expected root to be active")
	}
	if m.listing.Len() != 2 {
		t.Errorf("expected 2 rows at root, got %d", m.listing.Len())
	}

	// Backspace at the root is a no-op.
	_, cmd = press(m, "backspace")
	if cmd != nil {
		t.Error("expected no command at the root")
	}
}

func TestSidebarNavigation(t *testing.T) {
	m, d := newTestModel(t)
	// Cache Inner, then return to the root.
	m = run(t, m, m.navigate(types.ID(d.docs)))
	m = run(t, m, m.navigate(nil))

	m, _ = press(m, "tab")
	if m.focus != FocusSidebar {
		t.Fatal("expected sidebar focus")
	}
	m, _ = press(m, "down")
	m, _ = press(m, "l")
	// Root, Docs, Inner
	if m.sidebar.Len() != 3 {
		t.Errorf("expected 3 rows after expanding Docs, got %d", m.sidebar.Len())
	}

	m, _ = press(m, "down")
	m, cmd := press(m, "enter")
	m = run(t, m, cmd)
	if m.active != d.inner {
		t.Errorf("expected Inner to be active, got %q", m.active)
	}
	if m.sidebar.SelectedID() != d.inner {
		t.Errorf("expected cursor to stay on Inner, got %q", m.sidebar.SelectedID())
	}
}

func TestMkdirPrompt(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "n")
	if m.state != StatePrompt {
		t.Fatal("expected prompt state")
	}
	m, _ = press(m, "Notes")
	m, cmd := press(m, "enter")
	if m.state != StateBrowse {
		t.Error("expected prompt to close on enter")
	}
	m = run(t, m, cmd)

	if got := strings.Join(listingNames(m), ","); got != "Docs,Notes,a.txt" {
		t.Errorf("expected new folder in listing, got %s", got)
	}
	if m.status != "created Notes" {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestPromptCancel(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "n")
	m, _ = press(m, "x")
	m, cmd := press(m, "esc")
	if cmd != nil || m.state != StateBrowse {
		t.Error("expected esc to cancel the prompt")
	}
	if m.input.Value() != "" {
		t.Error("expected input to be cleared")
	}
}

func TestRenamePrompt(t *testing.T) {
	m, d := newTestModel(t)

	m, _ = press(m, "down")
	m, _ = press(m, "r")
	if m.input.Value() != "a.txt" {
		t.Fatalf("expected current name prefilled, got %q", m.input.Value())
	}
	m.input.SetValue("b.txt")
	m, cmd := press(m, "enter")
	m = run(t, m, cmd)

	n, ok := d.store.FindByID(d.file)
	if !ok || n.Name != "b.txt" {
		t.Errorf("expected rename to reach the store, got %+v", n)
	}
}

func TestDeleteConfirm(t *testing.T) {
	m, d := newTestModel(t)

	m, _ = press(m, "down")
	m, _ = press(m, "d")
	if m.state != StateConfirm {
		t.Fatal("expected confirm state")
	}
	if !strings.Contains(m.View(), "Confirm Deletion") {
		t.Error("expected confirm dialog in view")
	}
	m, _ = press(m, "n")
	if m.state != StateBrowse {
		t.Fatal("expected n to cancel")
	}
	if _, ok := d.store.FindByID(d.file); !ok {
		t.Fatal("cancel must not delete")
	}

	m, _ = press(m, "d")
	m, cmd := press(m, "y")
	m = run(t, m, cmd)
	if _, ok := d.store.FindByID(d.file); ok {
		t.Error("expected file to be deleted")
	}
	if got := strings.Join(listingNames(m), ","); got != "Docs" {
		t.Errorf("expected only Docs left, got %s", got)
	}
}

func TestCutPaste(t *testing.T) {
	m, d := newTestModel(t)

	m, _ = press(m, "down")
	m, _ = press(m, "x")
	if ids := m.listing.CutIDs(); len(ids) != 1 || ids[0] != d.file {
		t.Fatalf("expected a.txt marked, got %v", ids)
	}

	m = run(t, m, m.navigate(types.ID(d.docs)))
	m, cmd := press(m, "p")
	m = run(t, m, cmd)

	n, ok := d.store.FindByID(d.file)
	if !ok || n.ParentID == nil || *n.ParentID != d.docs {
		t.Errorf("expected a.txt moved into Docs, got %+v", n)
	}
	if got := strings.Join(listingNames(m), ","); got != "Inner,a.txt" {
		t.Errorf("unexpected listing %s", got)
	}
	if len(m.listing.CutIDs()) != 0 {
		t.Error("expected marks cleared after paste")
	}
}

func TestPasteIntoOwnChildIsRejected(t *testing.T) {
	m, d := newTestModel(t)

	m, _ = press(m, "x") // Docs
	m = run(t, m, m.navigate(types.ID(d.inner)))
	m, cmd := press(m, "p")
	m = run(t, m, cmd)

	if !strings.Contains(m.status, "rejected") {
		t.Errorf("expected rejection status, got %q", m.status)
	}
	n, _ := d.store.FindByID(d.docs)
	if n.ParentID != nil {
		t.Error("Docs must stay at the root")
	}
}

func TestActiveFolderDeleted(t *testing.T) {
	m, d := newTestModel(t)
	m = run(t, m, m.navigate(types.ID(d.docs)))

	if err := d.store.Delete(context.Background(), d.docs); err != nil {
		t.Fatal(err)
	}
	var ev store.Event
	for ev = range m.sub.Events {
		if ev.Op == store.OpDelete {
			break
		}
	}
	if !ev.ActiveDeleted {
		t.Fatal("expected the delete to report the active folder")
	}

	next, cmd := m.Update(storeEventMsg(ev))
	m = next.(Model)
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) == 0 {
		t.Fatalf("expected a navigation command, got %T", batch)
	}
	m = run(t, m, batch[0])

	if m.store.ActiveFolderID() != nil {
		t.Error("expected navigation back to the root")
	}
	if got := strings.Join(listingNames(m), ","); got != "a.txt" {
		t.Errorf("unexpected listing %s", got)
	}
}

func TestErrorInFooter(t *testing.T) {
	m, _ := newTestModel(t)

	m = run(t, m, m.navigate(types.ID("missing")))
	if m.store.LastError() == "" {
		t.Fatal("expected a recorded error")
	}
	if !strings.Contains(m.renderFooter(), "Error:") {
		t.Error("expected error in footer")
	}

	m, _ = press(m, "esc")
	if strings.Contains(m.renderFooter(), "Error:") {
		t.Error("expected esc to clear the error")
	}
}

func TestLogPanelToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m.logs = logging.NewBuffer(10)
	m.logs.Add(logging.Entry{
		Time:      time.Now(),
		Level:     log.WarnLevel,
		Component: "store",
		Message:   "load failed",
	})

	if strings.Contains(m.View(), "load failed") {
		t.Fatal("log panel should start hidden")
	}
	m, _ = press(m, "L")
	if !strings.Contains(m.View(), "load failed") {
		t.Error("expected the entry in the log panel")
	}
	m, _ = press(m, "L")
	if strings.Contains(m.View(), "load failed") {
		t.Error("expected L to hide the panel again")
	}
}

func TestLogPanelWithoutBuffer(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(m, "L")
	if !strings.Contains(m.View(), "No log entries") {
		t.Error("expected placeholder without a buffer")
	}
}

func TestQuit(t *testing.T) {
	m, d := newTestModel(t)
	before := d.store.SubscriberCount()

	_, cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if d.store.SubscriberCount() != before-1 {
		t.Error("expected the subscription to be released")
	}
}
