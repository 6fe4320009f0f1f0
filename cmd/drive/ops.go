package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/drive/pkg/drive/dropzone"
	"github.com/jamesainslie/drive/pkg/drive/types"
	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdir,
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <new-name>",
	Short: "Rename a file or folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var mvCmd = &cobra.Command{
	Use:   "mv <id>... --to <folder-id>",
	Short: "Move files or folders",
	Long: `Move one or more nodes into a folder, in order.

A folder cannot be moved into itself or into one of its own subfolders;
such items are rejected without contacting the server. Items already in the
target folder are skipped. Use --to root to move to the root.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMv,
}

var cpCmd = &cobra.Command{
	Use:   "cp <id> --to <folder-id>",
	Short: "Copy a file or folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runCp,
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete files or folders",
	Long:  `Delete nodes. Deleting a folder removes everything inside it.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

func init() {
	mkdirCmd.Flags().String("parent", "", "parent folder id (default: root)")
	mvCmd.Flags().String("to", "", "destination folder id, or root")
	_ = mvCmd.MarkFlagRequired("to")
	cpCmd.Flags().String("to", "", "destination folder id (default: the node's own folder)")

	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(rmCmd)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	parentFlag, _ := cmd.Flags().GetString("parent")
	parent := parentArg(parentFlag)

	return withApp(false, func(ctx context.Context, a *app) error {
		if parent != nil {
			if err := a.store.Fetch(ctx, *parent); err != nil {
				return err
			}
		}
		// Siblings may share the name, so pick the folder that is new.
		if err := a.store.Load(ctx, parent); err != nil {
			return err
		}
		before := a.store.Snapshot()
		if err := a.store.CreateFolder(ctx, args[0], parent); err != nil {
			return err
		}
		for _, n := range a.store.Children(parent) {
			if _, existed := before[n.ID]; !existed && n.IsFolder() {
				printInfo(cmd, "%s", n.ID)
				break
			}
		}
		return nil
	})
}

func runRename(cmd *cobra.Command, args []string) error {
	id, name := args[0], args[1]
	return withApp(false, func(ctx context.Context, a *app) error {
		if err := a.store.Fetch(ctx, id); err != nil {
			return err
		}
		if err := a.store.Rename(ctx, id, name); err != nil {
			return err
		}
		printVerbose(cmd, "renamed %s", id)
		return nil
	})
}

func runMv(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	dest := parentArg(to)

	return withApp(false, func(ctx context.Context, a *app) error {
		// The descendant guard needs every ancestor of the destination.
		if dest != nil {
			if err := a.store.FetchPath(ctx, *dest); err != nil {
				return err
			}
		}
		for _, id := range args {
			if err := a.store.Fetch(ctx, id); err != nil {
				return err
			}
		}

		res := a.zone.DropNodes(ctx, args, dest)
		reportDrop(cmd, "moved", res)
		return res.Err()
	})
}

func runCp(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	id := args[0]

	return withApp(false, func(ctx context.Context, a *app) error {
		if err := a.store.Fetch(ctx, id); err != nil {
			return err
		}
		var dest *string
		if to != "" {
			dest = parentArg(to)
		} else if n, ok := a.store.FindByID(id); ok {
			dest = n.ParentID
		}
		if dest != nil {
			if err := a.store.Fetch(ctx, *dest); err != nil {
				return err
			}
		}

		before := a.store.Snapshot()
		if err := a.store.Copy(ctx, id, dest); err != nil {
			return err
		}
		for _, n := range a.store.Children(dest) {
			if _, existed := before[n.ID]; !existed {
				printInfo(cmd, "%s\t%s", n.ID, n.Name)
			}
		}
		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		var errs []error
		for _, id := range args {
			if err := a.store.Delete(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			printVerbose(cmd, "deleted %s", id)
		}
		return errors.Join(errs...)
	})
}

// reportDrop prints per-item outcomes of a drop.
func reportDrop(cmd *cobra.Command, verb string, res dropzone.Result) {
	for _, it := range res.Items {
		switch {
		case it.Err != nil:
			printError(cmd, "%s: %v", it.Source, it.Err)
		case it.Skipped:
			printVerbose(cmd, "%s already in place", it.Source)
		}
	}
	if n := res.Accepted(); n > 0 {
		printInfo(cmd, "%s %d item(s)", verb, n)
	}
}

// describe returns a one-line summary of a node.
func describe(n *types.Node) string {
	return fmt.Sprintf("%s\t%s\t%s", n.ID, n.Kind, n.Name)
}
