package main

import (
	"context"
	"encoding/json"
	"text/tabwriter"

	"github.com/jamesainslie/drive/pkg/drive/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var shareCmd = &cobra.Command{
	Use:   "share <folder-id> <user-id>",
	Short: "Share a folder with another user",
	Long:  `Grant a user view or edit access to a folder. Needs the remote backend.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runShare,
}

var unshareCmd = &cobra.Command{
	Use:   "unshare <folder-id> <user-id>",
	Short: "Revoke a user's access to a folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnshare,
}

var sharesCmd = &cobra.Command{
	Use:   "shares <folder-id>",
	Short: "List who a folder is shared with",
	Args:  cobra.ExactArgs(1),
	RunE:  runShares,
}

func init() {
	shareCmd.Flags().String("permission", string(client.PermissionView), "access to grant: view or edit")

	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(unshareCmd)
	rootCmd.AddCommand(sharesCmd)
}

func runShare(cmd *cobra.Command, args []string) error {
	perm, _ := cmd.Flags().GetString("permission")

	return withApp(false, func(ctx context.Context, a *app) error {
		c, err := a.requireRemote()
		if err != nil {
			return err
		}
		share, err := c.ShareFolder(ctx, args[0], args[1], client.Permission(perm))
		if err != nil {
			return err
		}
		printInfo(cmd, "shared %s with %s (%s)", share.FolderID, share.UserID, share.Permission)
		return nil
	})
}

func runUnshare(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		c, err := a.requireRemote()
		if err != nil {
			return err
		}
		if err := c.UnshareFolder(ctx, args[0], args[1]); err != nil {
			return err
		}
		printVerbose(cmd, "unshared %s from %s", args[0], args[1])
		return nil
	})
}

func runShares(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		c, err := a.requireRemote()
		if err != nil {
			return err
		}
		shares, err := c.ListShares(ctx, args[0])
		if err != nil {
			return err
		}

		switch a.cfg.Output.Format {
		case "json", "jsonl":
			enc := json.NewEncoder(stdout(cmd))
			enc.SetIndent("", "  ")
			return enc.Encode(shares)
		case "yaml":
			return yaml.NewEncoder(stdout(cmd)).Encode(shares)
		}

		tw := tabwriter.NewWriter(stdout(cmd), 0, 0, 2, ' ', 0)
		_, _ = tw.Write([]byte("USER\tPERMISSION\tSINCE\n"))
		for _, s := range shares {
			since := "-"
			if !s.CreatedAt.IsZero() {
				since = s.CreatedAt.Format("2006-01-02 15:04")
			}
			_, _ = tw.Write([]byte(s.UserID + "\t" + string(s.Permission) + "\t" + since + "\n"))
		}
		return tw.Flush()
	})
}
