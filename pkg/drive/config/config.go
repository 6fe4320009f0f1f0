package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/drive/pkg/drive/types"
	"github.com/spf13/viper"
)

// ErrInvalidBackend is returned when backend is neither remote nor local.
var ErrInvalidBackend = errors.New("invalid backend")

// ErrMissingBaseURL is returned when the remote backend has no API address.
var ErrMissingBaseURL = errors.New("api.base_url is required for the remote backend")

// APIConfig configures the Files API client.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	UserID  string        `mapstructure:"user_id"` // Browse another user's drive (admin only)
}

// LocalConfig configures the offline backend.
type LocalConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// UploadConfig configures uploads.
type UploadConfig struct {
	InlineThreshold string `mapstructure:"inline_threshold"`
	Workers         int    `mapstructure:"workers"`
}

// Threshold returns the inline threshold in bytes.
func (u UploadConfig) Threshold() (int64, error) {
	if u.InlineThreshold == "" {
		return types.InlineThreshold, nil
	}
	return types.ParseSize(u.InlineThreshold)
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	MaxSize    string            `mapstructure:"max_size"`
	MaxBackups int               `mapstructure:"max_backups"`
	Console    string            `mapstructure:"console"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	Backend string       `mapstructure:"backend"`
	API     APIConfig    `mapstructure:"api"`
	Local   LocalConfig  `mapstructure:"local"`
	Upload  UploadConfig `mapstructure:"upload"`
	Output  struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRemote:
		if strings.TrimSpace(c.API.BaseURL) == "" {
			return ErrMissingBaseURL
		}
	case BackendLocal:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	if _, err := c.Upload.Threshold(); err != nil {
		return fmt.Errorf("upload.inline_threshold: %w", err)
	}
	return nil
}

// NewViper returns a viper instance with defaults, config search paths and
// DRIVE_ environment bindings applied, and the config file read.
// A non-empty file overrides the search paths. A missing config file is
// not an error.
//
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/drive/config.yaml
//   - $HOME/.config/drive/config.yaml
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "drive"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "drive"))
		}
	}

	v.SetEnvPrefix("DRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("api.user_id", "")
	v.SetDefault("local.db_path", "") // Empty means use DefaultDBPath
	v.SetDefault("upload.inline_threshold", DefaultInlineThreshold)
	v.SetDefault("upload.workers", DefaultUploadWorkers)
	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.components", map[string]string{
		"store":    "info",
		"client":   "info",
		"local":    "info",
		"dropzone": "info",
		"tui":      "info",
	})
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Local.DBPath == "" {
		cfg.Local.DBPath = DefaultDBPath()
	} else {
		expanded, err := ExpandPath(cfg.Local.DBPath)
		if err != nil {
			return nil, err
		}
		cfg.Local.DBPath = expanded
	}
	if cfg.Logging.Path == "" {
		cfg.Logging.Path = DefaultLogPath()
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from file (or the default locations when empty)
// and environment variables.
func Load(file string) (*Config, error) {
	v, err := NewViper(file)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "drive"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "drive"), nil
}

// WriteDefault writes a default config file if none exists and returns its path.
func WriteDefault() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	content := fmt.Sprintf(`# Drive client configuration

# Backend: "remote" talks to a Files API server, "local" keeps everything on this machine
backend: %s

api:
  base_url: %s
  # Bearer token sent with every request (or set DRIVE_API_TOKEN)
  token: ""
  timeout: %s
  # Browse another user's drive (admin only)
  user_id: ""

local:
  # Database directory (empty means use default: $XDG_DATA_HOME/drive/drive.db)
  db_path: ""

upload:
  # Files up to this size are stored inline; larger ones get a blob reference
  inline_threshold: %s
  # Files read concurrently when uploading a batch
  workers: %d

output:
  # plain, json, yaml or tree
  format: %s

logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/drive/drive.log)
  path: ""
  max_size: %s
  max_backups: %d
  # Mirror log entries at this level to stderr (empty disables)
  console: ""
  components:
    store: info
    client: info
    local: info
    dropzone: info
    tui: info
`, DefaultBackend, DefaultBaseURL, DefaultTimeout, DefaultInlineThreshold, DefaultUploadWorkers,
		DefaultOutputFormat, DefaultLogLevel, DefaultLogMaxSize, DefaultLogMaxBackups)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/drive/ for the offline database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "drive")
}

// StateDir returns $XDG_STATE_HOME/drive/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "drive")
}

// DefaultDBPath returns the default offline database path.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "drive.db")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "drive.log")
}
