package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jamesainslie/drive/pkg/drive/output"
	"github.com/jamesainslie/drive/pkg/drive/types"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [folder-id]",
	Short: "List a folder",
	Long: `List the contents of a folder, folders first.

Without an argument the root folder is listed. The output format is taken
from --format, then output.format in the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var treeCmd = &cobra.Command{
	Use:   "tree [folder-id]",
	Short: "Show the folder tree",
	Long: `Walk the drive from a folder and print every folder below it.

Only folders are shown. Use --depth to limit how far the walk goes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().Int("depth", 0, "maximum depth to walk (0 = unlimited)")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(treeCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		var parent *string
		if len(args) == 1 {
			parent = parentArg(args[0])
		}
		if parent != nil {
			if err := a.store.FetchPath(ctx, *parent); err != nil {
				return err
			}
		}
		if err := a.store.Load(ctx, parent); err != nil {
			return err
		}
		return render(cmd, a.cfg.Output.Format, listing(a, parent))
	})
}

func runTree(cmd *cobra.Command, args []string) error {
	depth, _ := cmd.Flags().GetInt("depth")

	return withApp(false, func(ctx context.Context, a *app) error {
		var start *string
		if len(args) == 1 {
			start = parentArg(args[0])
		}
		if start != nil {
			if err := a.store.FetchPath(ctx, *start); err != nil {
				return err
			}
		}
		if err := walk(ctx, a, start, depth); err != nil {
			return err
		}

		l := listing(a, start)
		l.Forest = a.store.FolderTree()
		if start != nil {
			// Show only the subtree under start.
			for _, root := range l.Forest {
				if n := root.Find(*start); n != nil {
					l.Forest = n.Children
					break
				}
			}
		}
		return render(cmd, "tree", l)
	})
}

// walk loads parent and every folder below it, breadth first.
func walk(ctx context.Context, a *app, parent *string, maxDepth int) error {
	type level struct {
		id    *string
		depth int
	}
	queue := []level{{id: parent, depth: 1}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if err := a.store.Load(ctx, next.id); err != nil {
			return err
		}
		if maxDepth > 0 && next.depth >= maxDepth {
			continue
		}
		for _, n := range a.store.Children(next.id) {
			if n.IsFolder() {
				queue = append(queue, level{id: types.ID(n.ID), depth: next.depth + 1})
			}
		}
	}
	return ctx.Err()
}

// listing builds the formatter input for a loaded folder.
func listing(a *app, parent *string) *output.Listing {
	l := &output.Listing{
		Folder:   types.RootLabel,
		FolderID: parent,
		Nodes:    a.store.Children(parent),
	}
	if parent != nil {
		if n, ok := a.store.FindByID(*parent); ok {
			l.Folder = n.Name
		}
		l.Path = []string{types.RootLabel}
		for _, ancestor := range a.store.Ancestors(*parent) {
			l.Path = append(l.Path, ancestor.Name)
		}
	}
	return l
}

// render writes l in the named format.
func render(cmd *cobra.Command, format string, l *output.Listing) error {
	if format == "" {
		format = "plain"
	}
	formatter, err := output.Get(format)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, output.Available())
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, l); err != nil {
		return err
	}
	_, err = stdout(cmd).Write(buf.Bytes())
	return err
}
