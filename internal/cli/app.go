package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/darshan-rambhia/evstore/internal/cache"
	"github.com/darshan-rambhia/evstore/internal/config"
	"github.com/darshan-rambhia/evstore/internal/registry"
	"github.com/darshan-rambhia/evstore/internal/store"
	"github.com/spf13/cobra"
)

// app is the wired store a command works against.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *registry.Registry
	devices  *cache.Devices
	notifs   *store.Notifications
}

// openApp loads the configuration, sets up logging and opens the store.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitUsage, "loading config", err)
	}
	configureLogging(cmd.ErrOrStderr(), cfg, opts.Verbose)

	slog.Debug("opening database", "driver", cfg.Driver, "url", cfg.DBURL)
	st, err := store.Open(ctx, store.Options{
		Driver:       cfg.Driver,
		URL:          cfg.DBURL,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, storeError("opening database", err)
	}

	reg, err := registry.New(ctx, st)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitStore, "opening device registry", err)
	}
	devices := cache.New(reg)

	return &app{
		cfg:      cfg,
		store:    st,
		registry: reg,
		devices:  devices,
		notifs: store.NewNotifications(ctx, st, devices, store.NotificationsConfig{
			FanoutWorkers: cfg.FanoutWorkers,
		}),
	}, nil
}

// close releases the statements and shuts the database down.
func (a *app) close(ctx context.Context) {
	if err := a.notifs.Close(); err != nil {
		slog.Error("closing notification store", "error", err)
	}
	if err := a.store.Shutdown(context.WithoutCancel(ctx)); err != nil {
		slog.Error("shutting down database", "error", err)
	}
}

func configureLogging(w io.Writer, cfg *config.Config, verbose bool) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
