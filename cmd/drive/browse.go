package main

import (
	"context"

	"github.com/jamesainslie/drive/cmd/drive/tui"
	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse [folder-id]",
	Short: "Open the interactive browser",
	Long: `Open the interactive two-pane browser: the folder tree on the left,
the open folder on the right.

Keys:
  enter      open folder          backspace  parent folder
  tab        switch pane          space      expand / mark
  n          new folder           r          rename
  d          delete               c          copy here
  x          mark for move        p          move marked here
  u          upload a local file  R          refresh
  L          show recent log      q          quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	var start *string
	if len(args) == 1 {
		start = parentArg(args[0])
	}

	return withApp(true, func(ctx context.Context, a *app) error {
		if start != nil {
			// Breadcrumbs and the sidebar need the whole chain.
			if err := a.store.FetchPath(ctx, *start); err != nil {
				return err
			}
		}
		return tui.Run(tui.Options{
			Store: a.store,
			Zone:  a.zone,
			Start: start,
			Logs:  logging.TUIBuffer(),
		})
	})
}
