package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tempDir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend != BackendRemote {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendRemote)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultTimeout {
		t.Errorf("API.Timeout = %v, want %v", cfg.API.Timeout, DefaultTimeout)
	}
	if cfg.Upload.Workers != DefaultUploadWorkers {
		t.Errorf("Upload.Workers = %d, want %d", cfg.Upload.Workers, DefaultUploadWorkers)
	}
	threshold, err := cfg.Upload.Threshold()
	if err != nil || threshold != types.InlineThreshold {
		t.Errorf("Upload.Threshold() = %d, %v; want %d", threshold, err, types.InlineThreshold)
	}
	if cfg.Local.DBPath != DefaultDBPath() {
		t.Errorf("Local.DBPath = %q, want %q", cfg.Local.DBPath, DefaultDBPath())
	}
	if cfg.Output.Format != DefaultOutputFormat {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, DefaultOutputFormat)
	}
	if cfg.Logging.Components["store"] != "info" {
		t.Errorf("Logging.Components[store] = %q, want info", cfg.Logging.Components["store"])
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := isolate(t)
	configDir := filepath.Join(tempDir, ".config", "drive")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
backend: local
api:
  base_url: https://drive.example.com/
  timeout: 5s
local:
  db_path: ~/drive-data
upload:
  inline_threshold: 1MiB
  workers: 2
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %q, want local", cfg.Backend)
	}
	if cfg.API.BaseURL != "https://drive.example.com" {
		t.Errorf("API.BaseURL = %q, trailing slash should be trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("API.Timeout = %v, want 5s", cfg.API.Timeout)
	}
	if cfg.Local.DBPath != filepath.Join(tempDir, "drive-data") {
		t.Errorf("Local.DBPath = %q, want ~ expanded", cfg.Local.DBPath)
	}
	if threshold, _ := cfg.Upload.Threshold(); threshold != types.MiB {
		t.Errorf("Upload.Threshold() = %d, want %d", threshold, types.MiB)
	}
	if cfg.Upload.Workers != 2 {
		t.Errorf("Upload.Workers = %d, want 2", cfg.Upload.Workers)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("backend: local\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %q, want local", cfg.Backend)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit missing file should be an error")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("DRIVE_API_TOKEN", "secret")
	t.Setenv("DRIVE_UPLOAD_WORKERS", "9")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Token != "secret" {
		t.Errorf("API.Token = %q, want secret", cfg.API.Token)
	}
	if cfg.Upload.Workers != 9 {
		t.Errorf("Upload.Workers = %d, want 9", cfg.Upload.Workers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "remote ok", mutate: func(*Config) {}},
		{name: "local ok", mutate: func(c *Config) { c.Backend = BackendLocal; c.API.BaseURL = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "ftp" }, wantErr: ErrInvalidBackend},
		{name: "remote without url", mutate: func(c *Config) { c.API.BaseURL = " " }, wantErr: ErrMissingBaseURL},
		{name: "bad threshold", mutate: func(c *Config) { c.Upload.InlineThreshold = "lots" }, wantErr: types.ErrInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Backend: BackendRemote, API: APIConfig{BaseURL: DefaultBaseURL}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading default config: %v", err)
	}
	if !strings.Contains(string(data), "inline_threshold: 5MiB") {
		t.Error("default config should document the inline threshold")
	}

	// The written template must load cleanly.
	if _, err := Load(""); err != nil {
		t.Errorf("Load() after WriteDefault() error = %v", err)
	}

	// A second call leaves the file alone.
	if err := os.WriteFile(path, []byte("backend: local\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "backend: local\n" {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := ExpandPath("~/x")
	if err != nil || got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q, %v", got, err)
	}
	if got, _ := ExpandPath("/abs"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
}
