package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/jamesainslie/drive/pkg/drive/logging"
)

// logPanelRows is the number of entries shown when the panel is open.
const logPanelRows = 6

var logLevelStyles = map[log.Level]lipgloss.Style{
	log.DebugLevel: lipgloss.NewStyle().Foreground(mutedColor),
	log.InfoLevel:  lipgloss.NewStyle().Foreground(accentColor),
	log.WarnLevel:  lipgloss.NewStyle().Foreground(warningColor),
	log.ErrorLevel: lipgloss.NewStyle().Foreground(dangerColor).Bold(true),
}

// renderLogPanel renders the newest entries of buf, oldest first.
func renderLogPanel(buf *logging.Buffer, width, rows int) string {
	var lines []string
	if buf == nil || buf.Len() == 0 {
		lines = append(lines, mutedTextStyle.Render("No log entries"))
	} else {
		for _, e := range buf.Last(rows) {
			style, ok := logLevelStyles[e.Level]
			if !ok {
				style = rowNormalStyle
			}
			lines = append(lines, style.Render(truncate(e.String(), width)))
		}
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
