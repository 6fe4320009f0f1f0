package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// PrettyFormatter renders a styled listing for the terminal.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, l *Listing) error {
	crumbs := append(append([]string{}, l.Path...), l.Folder)
	w.WriteString(HeaderBox.Render(TitleStyle.Render(strings.Join(crumbs, " / "))))
	w.WriteString("\n")

	if len(l.Nodes) == 0 {
		w.WriteString(MutedStyle.Render("This folder is empty"))
		w.WriteString("\n")
	}

	nameWidth := 0
	for _, n := range l.Nodes {
		nameWidth = max(nameWidth, lipgloss.Width(displayName(n.Name, n.IsFolder())))
	}
	for _, n := range l.Nodes {
		label := displayName(n.Name, n.IsFolder())
		pad := strings.Repeat(" ", nameWidth-lipgloss.Width(label))
		style := FileStyle
		if n.IsFolder() {
			style = FolderStyle
		}
		age := ""
		if !n.UpdatedAt.IsZero() {
			age = humanize.Time(n.UpdatedAt)
		}
		fmt.Fprintf(w, "%s%s  %10s  %s\n", style.Render(label), pad, SizeStyle.Render(n.HumanSize()), MutedStyle.Render(age))
	}

	folders, files := l.Counts()
	summary := fmt.Sprintf("%d folders, %d files, %s", folders, files, humanize.IBytes(uint64(l.TotalSize())))
	w.WriteString("\n" + MutedStyle.Render(summary) + "\n")

	for _, warning := range l.Warnings {
		w.WriteString(WarningStyle.Render("! "+warning) + "\n")
	}
	return nil
}

func displayName(name string, folder bool) string {
	if folder {
		return name + "/"
	}
	return name
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
