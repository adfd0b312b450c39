package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/dialogic/internal/adapter/console"
	"github.com/MrWong99/dialogic/internal/app"
	"github.com/MrWong99/dialogic/internal/config"
	"github.com/MrWong99/dialogic/internal/observe"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured adapters over HTTP and the bot APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}
}

func newConsoleCmd(f *rootFlags) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the configured managers in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), f, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to chat as (default: a random id)")
	return cmd
}

func serve(ctx context.Context, f *rootFlags) error {
	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	logger, level := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "dialogic",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, providers, app.WithVersion(version))
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(f.configPath, func(_, next *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ManagersChanged {
			if err := application.Reload(next); err != nil {
				slog.Error("manager reload failed, keeping the running managers", "error", err)
			}
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config changes need a restart", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "error", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("dialogic starting",
		"version", version,
		"config", f.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"managers", len(cfg.Managers.Cascade),
	)

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	slog.Info("shutting down")
	if err := application.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func runConsole(ctx context.Context, f *rootFlags, userID string, in io.Reader, out io.Writer) error {
	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	// Keep the terminal for the conversation.
	logger, _ := newLogger(cfg.Log, io.Discard)
	if cfg.Log.File == "" && cfg.Log.Level == config.LogDebug {
		logger, _ = newLogger(cfg.Log, os.Stderr)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	application, err := app.New(ctx, cfg, providers, app.WithoutAdapters())
	if err != nil {
		return err
	}
	defer application.Shutdown(context.WithoutCancel(ctx))

	var opts []console.Option
	if userID != "" {
		opts = append(opts, console.WithUserID(userID))
	}
	err = console.New(in, out, application.Connector(), opts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildProviders(cfg *config.Config) (*app.Providers, error) {
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	return app.BuildProviders(cfg, reg)
}

// checkDefinitions builds every manager once without starting anything.
func checkDefinitions(ctx context.Context, cfg *config.Config, out io.Writer) error {
	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	b, err := app.NewBuilder(ctx, cfg, providers, nil)
	if err != nil {
		return err
	}
	if _, err := b.Build(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "ok: %d managers, %d definition files\n", len(cfg.Managers.Cascade), len(cfg.DefinitionFiles()))
	return nil
}
