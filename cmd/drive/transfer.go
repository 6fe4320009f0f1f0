package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/drive/pkg/drive/dropzone"
	"github.com/jamesainslie/drive/pkg/drive/types"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>... [--to <folder-id>]",
	Short: "Upload local files",
	Long: `Upload local files into a folder as one batch.

Directories are rejected. Files are read concurrently; upload.workers bounds
how many are read at once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Download a file",
	Long:  `Download a file. Without --output the file is written to the current directory under its own name; use -o - for stdout.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir> [--to <folder-id>]",
	Short: "Upload files as they appear in a local folder",
	Long: `Watch a local directory and upload every file that appears in it.

Bursts of files are collected and uploaded together once they settle.
Hidden files and partial downloads are ignored. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	uploadCmd.Flags().String("to", "", "destination folder id (default: root)")
	getCmd.Flags().StringP("output", "o", "", "output path, or - for stdout")
	watchCmd.Flags().String("to", "", "destination folder id (default: root)")
	watchCmd.Flags().Duration("debounce", 0, "quiet period before a burst is uploaded (default 500ms)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(watchCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	dest := parentArg(to)

	return withApp(false, func(ctx context.Context, a *app) error {
		if dest != nil {
			if err := a.store.Fetch(ctx, *dest); err != nil {
				return err
			}
		}
		before := a.store.Snapshot()

		res := a.zone.DropPaths(ctx, args, dest)
		for _, it := range res.Items {
			if it.Err != nil {
				printError(cmd, "%s: %v", it.Source, it.Err)
			}
		}
		for _, n := range a.store.Children(dest) {
			if _, existed := before[n.ID]; !existed {
				printInfo(cmd, "%s\t%s", describe(n), types.FormatSize(n.Size))
			}
		}
		return res.Err()
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	id := args[0]

	return withApp(false, func(ctx context.Context, a *app) error {
		if err := a.store.Fetch(ctx, id); err != nil {
			return err
		}
		n, _ := a.store.FindByID(id)

		rc, err := a.store.Download(ctx, id)
		if err != nil {
			return err
		}
		defer rc.Close()

		if out == "-" {
			_, err := io.Copy(stdout(cmd), rc)
			return err
		}
		if out == "" {
			out = filepath.Base(n.Name)
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		written, err := io.Copy(f, rc)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		printInfo(cmd, "%s (%s)", out, humanize.IBytes(uint64(written)))
		return nil
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	dest := parentArg(to)

	return withApp(false, func(ctx context.Context, a *app) error {
		if dest != nil {
			if err := a.store.Fetch(ctx, *dest); err != nil {
				return err
			}
		}
		zone := a.zone
		if debounce > 0 {
			zone = dropzone.New(a.store, dropzone.Options{Workers: a.cfg.Upload.Workers, Debounce: debounce})
		}

		printInfo(cmd, "Watching %s (Ctrl+C to stop)", args[0])
		return zone.Watch(ctx, args[0], dest, func(res dropzone.Result) {
			reportDrop(cmd, "uploaded", res)
		})
	})
}
