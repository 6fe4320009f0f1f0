package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/drive/pkg/drive/dropzone"
	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// AppState represents the current state of the application.
type AppState int

const (
	StateBrowse AppState = iota
	StatePrompt
	StateConfirm
)

// Focus names the pane receiving navigation keys.
type Focus int

const (
	FocusFiles Focus = iota
	FocusSidebar
)

// promptKind says what a submitted prompt does.
type promptKind int

const (
	promptNone promptKind = iota
	promptMkdir
	promptRename
	promptUpload
)

// Options configures the TUI application.
type Options struct {
	Store *store.Store
	Zone  *dropzone.Zone

	// Start is the folder opened first. Nil means the root.
	Start *string

	// Logs backs the log panel toggled with L. May be nil.
	Logs *logging.Buffer
}

// Model is the main Bubble Tea model for the drive browser.
type Model struct {
	state AppState
	focus Focus

	store *store.Store
	zone  *dropzone.Zone
	sub   *store.Subscription
	start *string

	expansion *tree.Expansion
	sidebar   *Sidebar
	listing   *Listing
	active    string // expansion key of the folder last shown

	ctx    context.Context
	cancel context.CancelFunc

	input   textinput.Model
	prompt  promptKind
	target  *types.Node // node a prompt or confirmation applies to
	spinner spinner.Model
	status  string

	logs     *logging.Buffer
	showLogs bool

	width  int
	height int
}

// storeEventMsg carries one store event.
type storeEventMsg store.Event

// opDoneMsg reports the end of a store call started by a key.
type opDoneMsg struct {
	op  string
	err error
}

// dropDoneMsg reports the end of a paste or upload.
type dropDoneMsg struct {
	op  string
	res dropzone.Result
}

// NewModel creates a new TUI model with the given options.
func NewModel(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	ti := textinput.New()
	ti.CharLimit = 255
	ti.Width = 40

	exp := tree.NewExpansion()
	return Model{
		state:     StateBrowse,
		focus:     FocusFiles,
		store:     opts.Store,
		zone:      opts.Zone,
		sub:       opts.Store.Subscribe(),
		start:     types.NormalizeParent(opts.Start),
		expansion: exp,
		sidebar:   NewSidebar(exp),
		listing:   NewListing(),
		active:    tree.RootKey,
		ctx:       ctx,
		cancel:    cancel,
		input:     ti,
		spinner:   sp,
		logs:      opts.Logs,
		width:     80,
		height:    24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.navigate(m.start),
		m.listen(),
	)
}

// listen waits for the next store event.
func (m Model) listen() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		if sub == nil {
			return nil
		}
		ev, ok := <-sub.Events
		if !ok {
			return nil
		}
		return storeEventMsg(ev)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case storeEventMsg:
		var cmds []tea.Cmd
		if msg.ActiveDeleted {
			cmds = append(cmds, m.navigate(msg.ParentID))
		}
		m.sync()
		cmds = append(cmds, m.listen())
		return m, tea.Batch(cmds...)

	case opDoneMsg:
		switch {
		case msg.err == nil:
			m.status = msg.op
		case errors.Is(msg.err, store.ErrSuperseded), errors.Is(msg.err, context.Canceled):
		default:
			m.status = ""
		}
		m.sync()
		return m, nil

	case dropDoneMsg:
		if n := msg.res.Accepted(); n > 0 {
			m.status = fmt.Sprintf("%s %d item(s)", msg.op, n)
		}
		if rejected := msg.res.Rejected(); len(rejected) > 0 {
			m.status = fmt.Sprintf("%d item(s) rejected: %v", len(rejected), rejected[0].Err)
		}
		m.listing.ClearCut()
		m.sync()
		return m, nil
	}

	if m.state == StatePrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// sync copies the store state into the panes.
func (m *Model) sync() {
	active := m.store.ActiveFolderID()
	key := tree.RootKey
	if active != nil {
		key = *active
	}
	if key != m.active {
		m.expansion.Reveal(active, m.store.Snapshot())
		m.active = key
	}
	m.sidebar.SetForest(m.store.FolderTree())
	m.listing.SetNodes(m.store.Displayed())
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	if key == "ctrl+c" {
		return m.quit()
	}

	switch m.state {
	case StatePrompt:
		return m.handlePromptKey(msg)
	case StateConfirm:
		return m.handleConfirmKey(key)
	}

	switch key {
	case "q":
		return m.quit()
	case "tab":
		if m.focus == FocusFiles {
			m.focus = FocusSidebar
			m.sidebar.SelectID(m.active)
		} else {
			m.focus = FocusFiles
		}
	case "esc":
		m.store.ClearError()
		m.status = ""
	case "up", "k":
		if m.focus == FocusSidebar {
			m.sidebar.MoveUp()
		} else {
			m.listing.MoveUp()
		}
	case "down", "j":
		if m.focus == FocusSidebar {
			m.sidebar.MoveDown()
		} else {
			m.listing.MoveDown()
		}
	case "home", "g":
		m.listing.Home()
	case "end", "G":
		m.listing.End()
	case "left", "h":
		if m.focus == FocusSidebar {
			m.sidebar.Collapse()
		}
	case "right", "l":
		if m.focus == FocusSidebar {
			m.sidebar.Expand()
		}
	case " ":
		if m.focus == FocusSidebar {
			m.sidebar.Toggle()
		} else {
			m.listing.ToggleCut()
		}
	case "enter":
		return m.open()
	case "backspace":
		return m, m.navigateUp()
	case "R":
		return m, m.refresh()
	case "L":
		m.showLogs = !m.showLogs
	case "n":
		return m.openPrompt(promptMkdir, nil, "")
	case "u":
		return m.openPrompt(promptUpload, nil, "")
	case "r":
		if n := m.listing.Selected(); n != nil {
			return m.openPrompt(promptRename, n, n.Name)
		}
	case "d":
		if n := m.listing.Selected(); n != nil {
			m.state = StateConfirm
			m.target = n
		}
	case "c":
		if n := m.listing.Selected(); n != nil {
			return m, m.copyHere(n.ID)
		}
	case "x":
		m.listing.ToggleCut()
	case "p":
		if ids := m.listing.CutIDs(); len(ids) > 0 {
			return m, m.paste(ids)
		}
	}
	return m, nil
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePrompt()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		kind, target := m.prompt, m.target
		m.closePrompt()
		if value == "" {
			return m, nil
		}
		switch kind {
		case promptMkdir:
			return m, m.mkdir(value)
		case promptRename:
			return m, m.rename(target.ID, value)
		case promptUpload:
			return m, m.upload(value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "enter":
		target := m.target
		m.state = StateBrowse
		m.target = nil
		return m, m.remove(target.ID)
	case "n", "esc", "q":
		m.state = StateBrowse
		m.target = nil
	}
	return m, nil
}

func (m Model) openPrompt(kind promptKind, target *types.Node, value string) (tea.Model, tea.Cmd) {
	m.state = StatePrompt
	m.prompt = kind
	m.target = target
	m.input.SetValue(value)
	m.input.CursorEnd()
	switch kind {
	case promptMkdir:
		m.input.Placeholder = "folder name"
	case promptRename:
		m.input.Placeholder = "new name"
	case promptUpload:
		m.input.Placeholder = "local file path"
	}
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) closePrompt() {
	m.state = StateBrowse
	m.prompt = promptNone
	m.target = nil
	m.input.Blur()
	m.input.SetValue("")
}

// open navigates into the selected folder.
func (m Model) open() (tea.Model, tea.Cmd) {
	if m.focus == FocusSidebar {
		if sel := m.sidebar.Selected(); sel != nil {
			return m, m.navigate(types.ID(sel.ID()))
		}
		return m, m.navigate(nil)
	}
	n := m.listing.Selected()
	if n == nil {
		return m, nil
	}
	if n.IsFolder() {
		return m, m.navigate(types.ID(n.ID))
	}
	m.status = fmt.Sprintf("%s  %s  %s", n.Name, n.HumanSize(), n.MIMEType)
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	if m.sub != nil {
		m.store.Unsubscribe(m.sub.ID)
	}
	return m, tea.Quit
}

// Commands. Each runs a store call off the update loop.

func (m Model) navigate(id *string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: s.NavigateToFolder(ctx, id)}
	}
}

func (m Model) navigateUp() tea.Cmd {
	active := m.store.ActiveFolderID()
	if active == nil {
		return nil
	}
	n, ok := m.store.FindByID(*active)
	if !ok {
		return m.navigate(nil)
	}
	return m.navigate(n.ParentID)
}

func (m Model) refresh() tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: "refreshed", err: s.RefreshFiles(ctx)}
	}
}

func (m Model) mkdir(name string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: "created " + name, err: s.CreateFolder(ctx, name, nil)}
	}
}

func (m Model) rename(id, name string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: "renamed to " + name, err: s.Rename(ctx, id, name)}
	}
}

func (m Model) remove(id string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: "deleted", err: s.Delete(ctx, id)}
	}
}

func (m Model) copyHere(id string) tea.Cmd {
	s, ctx := m.store, m.ctx
	dest := s.ActiveFolderID()
	return func() tea.Msg {
		return opDoneMsg{op: "copied", err: s.Copy(ctx, id, dest)}
	}
}

func (m Model) paste(ids []string) tea.Cmd {
	z, ctx := m.zone, m.ctx
	dest := m.store.ActiveFolderID()
	return func() tea.Msg {
		return dropDoneMsg{op: "moved", res: z.DropNodes(ctx, ids, dest)}
	}
}

func (m Model) upload(path string) tea.Cmd {
	z, ctx := m.zone, m.ctx
	return func() tea.Msg {
		return dropDoneMsg{op: "uploaded", res: z.DropPaths(ctx, []string{path}, nil)}
	}
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	bodyHeight := max(3, m.height-6)
	if m.showLogs {
		bodyHeight = max(3, bodyHeight-logPanelRows-2)
	}
	sideWidth := max(16, m.width/4)
	filesWidth := max(20, m.width-sideWidth-6)

	side := paneStyle
	files := focusedPaneStyle
	if m.focus == FocusSidebar {
		side, files = focusedPaneStyle, paneStyle
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		side.Width(sideWidth).Height(bodyHeight).Render(m.sidebar.View(sideWidth-2, bodyHeight, m.active)),
		files.Width(filesWidth).Height(bodyHeight).Render(m.listing.View(filesWidth-2, bodyHeight)),
	)
	b.WriteString(body)
	b.WriteString("\n")
	if m.showLogs {
		panel := renderLogPanel(m.logs, m.width-4, logPanelRows)
		b.WriteString(paneStyle.Width(max(20, m.width-2)).Render(panel))
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())

	switch m.state {
	case StatePrompt:
		return m.overlay(b.String(), m.renderPrompt())
	case StateConfirm:
		return m.overlay(b.String(), m.renderConfirm())
	}
	return b.String()
}

// renderHeader renders the breadcrumb trail of the active folder.
func (m Model) renderHeader() string {
	parts := []string{types.RootLabel}
	if active := m.store.ActiveFolderID(); active != nil {
		for _, a := range m.store.Ancestors(*active) {
			parts = append(parts, a.Name)
		}
		parts = append(parts, m.store.CurrentFolderName())
	}
	crumbs := titleStyle.Render(strings.Join(parts, " / "))
	if m.store.Pending() {
		crumbs += "  " + m.spinner.View()
	}
	return crumbs
}

func (m Model) renderFooter() string {
	var b strings.Builder
	switch {
	case m.store.LastError() != "":
		b.WriteString(errorTextStyle.Render("Error: " + m.store.LastError()))
	case m.status != "":
		b.WriteString(successTextStyle.Render(m.status))
	default:
		b.WriteString(mutedTextStyle.Render(fmt.Sprintf("%d items", m.listing.Len())))
	}
	b.WriteString("\n")

	hints := []string{
		keyHint("enter", "open"),
		keyHint("bksp", "up"),
		keyHint("tab", "pane"),
		keyHint("n", "mkdir"),
		keyHint("r", "rename"),
		keyHint("d", "delete"),
		keyHint("c", "copy"),
		keyHint("x", "cut"),
		keyHint("p", "paste"),
		keyHint("u", "upload"),
		keyHint("L", "logs"),
		keyHint("q", "quit"),
	}
	b.WriteString(strings.Join(hints, "  "))
	return b.String()
}

func (m Model) renderPrompt() string {
	title := "New folder"
	switch m.prompt {
	case promptRename:
		title = "Rename " + m.target.Name
	case promptUpload:
		title = "Upload file"
	}
	var b strings.Builder
	b.WriteString(dialogTitleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(keyHint("enter", "ok") + "  " + keyHint("esc", "cancel"))
	return dialogBoxStyle.Render(b.String())
}

func (m Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(dialogTitleStyle.Render("Confirm Deletion"))
	b.WriteString("\n\n")
	what := "file"
	if m.target.IsFolder() {
		what = "folder and everything in it"
	}
	b.WriteString(fmt.Sprintf("Delete %s %q?", what, m.target.Name))
	b.WriteString("\n\n")
	b.WriteString(center(keyHint("y", "delete")+"  "+keyHint("n", "cancel"), 46))
	return dialogBoxStyle.Render(b.String())
}

// overlay centers a dialog over a background view.
func (m Model) overlay(bg, dialog string) string {
	dialogLines := strings.Split(dialog, "\n")
	bgLines := strings.Split(bg, "\n")

	startRow := max(0, (m.height-len(dialogLines))/2)
	startCol := max(0, (m.width-lipgloss.Width(dialog))/2)
	pad := strings.Repeat(" ", startCol)

	var result []string
	for i := range max(len(bgLines), startRow+len(dialogLines)) {
		switch {
		case i >= startRow && i < startRow+len(dialogLines):
			result = append(result, pad+dialogLines[i-startRow])
		case i < len(bgLines):
			result = append(result, bgLines[i])
		default:
			result = append(result, "")
		}
	}
	return strings.Join(result, "\n")
}

// Run starts the TUI application.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
