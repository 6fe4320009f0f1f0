package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/drive/pkg/drive/client"
	"github.com/jamesainslie/drive/pkg/drive/config"
	"github.com/jamesainslie/drive/pkg/drive/dropzone"
	"github.com/jamesainslie/drive/pkg/drive/local"
	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// defaultLogMaxSize is used when logging.max_size is empty or invalid.
const defaultLogMaxSize = 10 * 1024 * 1024

// errRemoteOnly is returned by commands the offline backend cannot serve.
var errRemoteOnly = errors.New("this command needs the remote backend")

// app holds the components a command works with.
type app struct {
	cfg    *config.Config
	store  *store.Store
	zone   *dropzone.Zone
	remote *client.Client // nil for the local backend
	local  *local.Backend // nil for the remote backend
	log    *logging.Logger
}

// loggingConfig converts the logging section of the configuration.
func loggingConfig(cfg config.LoggingConfig, verbose, tuiMode bool) logging.Config {
	maxSize := int64(defaultLogMaxSize)
	if cfg.MaxSize != "" {
		if parsed, err := types.ParseSize(cfg.MaxSize); err == nil && parsed > 0 {
			maxSize = parsed
		}
	}
	console := cfg.Console
	if verbose {
		console = "debug"
	}
	return logging.Config{
		Level:        cfg.Level,
		Path:         cfg.Path,
		MaxSize:      maxSize,
		MaxBackups:   cfg.MaxBackups,
		Components:   cfg.Components,
		ConsoleLevel: console,
		TUIMode:      tuiMode,
	}
}

// newApp loads the configuration and wires the backend, store and drop zone.
func newApp(tuiMode bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logging.Init(loggingConfig(cfg.Logging, getVerbose(), tuiMode)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a := &app{cfg: cfg, log: logging.Get("cli")}

	var api store.API
	switch cfg.Backend {
	case config.BackendLocal:
		threshold, err := cfg.Upload.Threshold()
		if err != nil {
			return nil, err
		}
		a.local, err = local.Open(cfg.Local.DBPath, local.Options{InlineThreshold: threshold})
		if err != nil {
			_ = logging.Close()
			return nil, fmt.Errorf("failed to open offline drive: %w", err)
		}
		api = a.local
	default:
		a.remote = client.New(client.Config{
			BaseURL: cfg.API.BaseURL,
			Token:   cfg.API.Token,
			Timeout: cfg.API.Timeout,
			OnUnauthorized: func() {
				a.log.Warn("credentials rejected, token cleared")
			},
		})
		api = a.remote
	}
	a.log.Debug("backend ready", "backend", cfg.Backend)

	a.store = store.New(api, store.Options{UserID: cfg.API.UserID})
	a.zone = dropzone.New(a.store, dropzone.Options{Workers: cfg.Upload.Workers})
	return a, nil
}

// Close releases the backend and the log file.
func (a *app) Close() error {
	a.store.Close()
	var err error
	if a.local != nil {
		err = a.local.Close()
	}
	return errors.Join(err, logging.Close())
}

// requireRemote returns the HTTP client or errRemoteOnly.
func (a *app) requireRemote() (*client.Client, error) {
	if a.remote == nil {
		return nil, errRemoteOnly
	}
	return a.remote, nil
}

// withApp runs fn with a wired app and a context cancelled on interrupt.
func withApp(tuiMode bool, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(tuiMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, a)
	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// parentArg turns an optional folder id into a parent pointer; empty and
// "root" mean the root.
func parentArg(id string) *string {
	if id == "" || id == "root" {
		return nil
	}
	return types.ID(id)
}
