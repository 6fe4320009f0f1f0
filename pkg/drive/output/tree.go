package output

import (
	"bytes"
	"fmt"

	"github.com/jamesainslie/drive/pkg/drive/tree"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// TreeFormatter draws the folder forest with box-drawing connectors.
type TreeFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TreeFormatter) Format(w *bytes.Buffer, l *Listing) error {
	header := l.Folder
	if header == "" {
		header = types.RootLabel
	}
	w.WriteString(header)
	w.WriteByte('\n')
	writeBranch(w, l.Forest, "")

	fmt.Fprintf(w, "\n%d folders\n", countAll(l.Forest))
	return nil
}

func writeBranch(w *bytes.Buffer, nodes []*tree.Node, prefix string) {
	for i, n := range nodes {
		connector, indent := "├── ", "│   "
		if i == len(nodes)-1 {
			connector, indent = "└── ", "    "
		}
		w.WriteString(prefix + connector + n.Name() + "\n")
		writeBranch(w, n.Children, prefix+indent)
	}
}

func countAll(nodes []*tree.Node) int {
	total := 0
	for _, n := range nodes {
		total += 1 + countAll(n.Children)
	}
	return total
}

func init() {
	Register("tree", func() Formatter {
		return &TreeFormatter{}
	})
}

// Ensure TreeFormatter implements Formatter.
var _ Formatter = (*TreeFormatter)(nil)
