package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// PlainFormatter writes an aligned table without styling, for scripts and pipes.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, l *Listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, "TYPE\tSIZE\tMODIFIED\tID\tNAME"); err != nil {
		return err
	}
	for _, n := range l.Nodes {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.Kind, n.HumanSize(), modified(n), n.ID, n.Name); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func modified(n *types.Node) string {
	t := n.UpdatedAt
	if t.IsZero() {
		t = n.CreatedAt
	}
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
