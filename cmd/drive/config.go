package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesainslie/drive/pkg/drive/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage drive configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/drive/config.yaml (if set)
  2. ~/.config/drive/config.yaml

Environment variables can override config file settings using the DRIVE_ prefix:
  DRIVE_BACKEND=local
  DRIVE_API_BASE_URL=https://drive.example.com
  DRIVE_API_TOKEN=...`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// maskToken hides all but the last four characters of a token.
func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	w := stdout(cmd)

	if file := v.ConfigFileUsed(); file != "" {
		fmt.Fprintf(w, "Config file: %s\n\n", file)
	} else {
		fmt.Fprintln(w, "Config file: (using defaults, no file found)")
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "----------------------")
	fmt.Fprintf(w, "backend:                  %s\n", cfg.Backend)
	fmt.Fprintf(w, "api.base_url:             %s\n", cfg.API.BaseURL)
	fmt.Fprintf(w, "api.token:                %s\n", maskToken(cfg.API.Token))
	fmt.Fprintf(w, "api.timeout:              %s\n", cfg.API.Timeout)
	fmt.Fprintf(w, "api.user_id:              %s\n", cfg.API.UserID)
	fmt.Fprintf(w, "local.db_path:            %s\n", cfg.Local.DBPath)
	fmt.Fprintf(w, "upload.inline_threshold:  %s\n", cfg.Upload.InlineThreshold)
	fmt.Fprintf(w, "upload.workers:           %d\n", cfg.Upload.Workers)
	fmt.Fprintf(w, "output.format:            %s\n", cfg.Output.Format)
	fmt.Fprintf(w, "logging.level:            %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "logging.path:             %s\n", cfg.Logging.Path)

	components := make([]string, 0, len(cfg.Logging.Components))
	for name := range cfg.Logging.Components {
		components = append(components, name)
	}
	sort.Strings(components)
	for _, name := range components {
		fmt.Fprintf(w, "logging.components.%-6s %s\n", name+":", cfg.Logging.Components[name])
	}

	// Show any environment overrides
	fmt.Fprintln(w, "\nEnvironment Overrides:")
	fmt.Fprintln(w, "----------------------")
	envVars := []string{
		"DRIVE_BACKEND",
		"DRIVE_API_BASE_URL",
		"DRIVE_API_TOKEN",
		"DRIVE_API_TIMEOUT",
		"DRIVE_API_USER_ID",
		"DRIVE_LOCAL_DB_PATH",
		"DRIVE_UPLOAD_INLINE_THRESHOLD",
		"DRIVE_UPLOAD_WORKERS",
		"DRIVE_OUTPUT_FORMAT",
		"DRIVE_LOGGING_LEVEL",
		"DRIVE_LOGGING_PATH",
	}
	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			if name == "DRIVE_API_TOKEN" {
				val = maskToken(val)
			}
			fmt.Fprintf(w, "%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Fprintln(w, "(none)")
	}
	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		printInfo(cmd, "Config file already exists: %s", configPath)
		return nil
	}

	path, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo(cmd, "Created default config file: %s", path)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	fmt.Fprintln(stdout(cmd), configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		printVerbose(cmd, "File does not exist (will use defaults)")
	}
	return nil
}
