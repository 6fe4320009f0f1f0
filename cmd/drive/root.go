package main

import (
	"fmt"
	"io"

	"github.com/jamesainslie/drive/pkg/drive/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// v holds the configuration for the running command. It is rebuilt by
	// initConfig on every execution.
	v      *viper.Viper
	cfgErr error

	rootCmd = &cobra.Command{
		Use:   "drive",
		Short: "Browse and manage files on a drive server",
		Long: `Drive is a client for a Files API server.

Without a subcommand, drive opens an interactive browser. Every operation is
also available as a subcommand for scripting. With --backend local the whole
drive is kept in a database on this machine and no server is needed.

Examples:
  drive                           # Browse the drive
  drive ls                        # List the root folder
  drive ls <folder-id> -f json    # List a folder as JSON
  drive mkdir Reports             # Create a folder at the root
  drive upload *.pdf --to <id>    # Upload files into a folder
  drive mv <id> --to <id>         # Move a node
  drive --backend local tree      # Show the offline folder tree`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.RunE = runBrowse

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/drive/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "backend to use: remote or local")
	rootCmd.PersistentFlags().String("api-url", "", "Files API base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the Files API")
	rootCmd.PersistentFlags().String("user", "", "browse another user's drive (admin only)")
	rootCmd.PersistentFlags().StringP("format", "f", "", "output format: plain, pretty, json, jsonl, yaml, tree")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"backend": "backend",
	"api-url": "api.base_url",
	"token":   "api.token",
	"user":    "api.user_id",
	"format":  "output.format",
	"quiet":   "quiet",
	"verbose": "verbose",
}

// initConfig reads in config file and environment variables, then binds
// the persistent flags over them.
func initConfig() {
	v, cfgErr = config.NewViper(cfgFile)
	if cfgErr != nil {
		return
	}
	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
}

// loadConfig decodes the configuration for the running command.
func loadConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	if v == nil {
		initConfig()
		if cfgErr != nil {
			return nil, cfgErr
		}
	}
	return config.Decode(v)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd, "%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return v != nil && v.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return v != nil && v.GetBool("quiet")
}

// stdout returns the writer for command output.
func stdout(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(cmd.ErrOrStderr(), "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(cmd *cobra.Command, format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(stdout(cmd), format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: "+format+"\n", args...)
}
