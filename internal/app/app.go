// Package app wires storage, the message log, dialog managers and platform
// adapters into a running dialogic server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and the polling adapters, and Shutdown tears
// everything down in order.
//
// For testing, inject test doubles via functional options (WithStore,
// WithMessageLog, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/internal/adapter/alice"
	"github.com/MrWong99/dialogic/internal/adapter/discord"
	"github.com/MrWong99/dialogic/internal/adapter/mcp"
	"github.com/MrWong99/dialogic/internal/adapter/telegram"
	wsadapter "github.com/MrWong99/dialogic/internal/adapter/websocket"
	"github.com/MrWong99/dialogic/internal/config"
	"github.com/MrWong99/dialogic/internal/connector"
	"github.com/MrWong99/dialogic/internal/health"
	"github.com/MrWong99/dialogic/internal/msglog"
	msgpostgres "github.com/MrWong99/dialogic/internal/msglog/postgres"
	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/internal/storage"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	store     storage.Store
	msgLog    *msglog.Filtered
	builder   *Builder
	connector *connector.Connector
	mux       *http.ServeMux
	server    *http.Server
	runners   []adapter.Runner

	// skipAdapters leaves the adapters section unused (console mode).
	skipAdapters bool

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a user-object store instead of opening one from config.
func WithStore(s storage.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMessageLog injects a message log instead of opening one from config.
func WithMessageLog(l *msglog.Filtered) Option {
	return func(a *App) { a.msgLog = l }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithoutAdapters skips the adapters section and the HTTP server. The
// caller drives the [App.Connector] itself, as the console does.
func WithoutAdapters() Option {
	return func(a *App) { a.skipAdapters = true }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from the registry (see [BuildProviders]).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStorage(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	if err := a.initMessageLog(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	if err := a.initConnector(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	if !a.skipAdapters {
		if err := a.initAdapters(); err != nil {
			a.closeAll()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	s, err := storage.Open(ctx, a.cfg.Storage, a.metrics)
	if err != nil {
		return fmt.Errorf("app: open storage: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, func() error { return storage.Close(s) })
	slog.Info("storage opened", "backend", a.cfg.Storage.Backend)
	return nil
}

func (a *App) initMessageLog(ctx context.Context) error {
	if a.msgLog != nil {
		return nil
	}
	l, err := msglog.Open(ctx, a.cfg.MessageLog, func(ctx context.Context, cfg msglog.Config) (msglog.Logger, error) {
		return msgpostgres.NewStore(ctx, cfg.DSN)
	})
	if err != nil {
		return fmt.Errorf("app: open message log: %w", err)
	}
	if l == nil {
		return nil
	}
	a.msgLog = l
	a.closers = append(a.closers, l.Close)
	return nil
}

func (a *App) initConnector(ctx context.Context) error {
	b, err := NewBuilder(ctx, a.cfg, a.providers, a.metrics)
	if err != nil {
		return err
	}
	a.builder = b
	m, err := b.Build(a.cfg)
	if err != nil {
		return err
	}

	opts := []connector.Option{connector.WithMetrics(a.metrics)}
	if a.msgLog != nil {
		opts = append(opts, connector.WithMessageLog(a.msgLog))
	}
	if a.cfg.Managers.DefaultMessage != "" {
		opts = append(opts, connector.WithDefaultMessage(a.cfg.Managers.DefaultMessage))
	}
	a.connector = connector.New(a.store, m, opts...)
	return nil
}

func (a *App) initAdapters() error {
	ad := a.cfg.Adapters
	a.mux = http.NewServeMux()

	if ad.Alice != nil {
		a.mux.Handle(ad.Alice.Path, alice.New(a.connector, alice.WithNativeState(ad.Alice.NativeState)))
		slog.Info("adapter enabled", "adapter", "alice", "path", ad.Alice.Path)
	}
	if ad.Telegram != nil {
		bot, err := telegram.New(*ad.Telegram, a.connector)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		if ad.Telegram.Webhook != "" {
			a.mux.Handle(ad.Telegram.Webhook, bot)
		}
		a.runners = append(a.runners, bot)
		slog.Info("adapter enabled", "adapter", "telegram", "webhook", ad.Telegram.Webhook)
	}
	if ad.Discord != nil {
		bot, err := discord.New(*ad.Discord, a.connector)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.runners = append(a.runners, bot)
		a.closers = append(a.closers, bot.Close)
		slog.Info("adapter enabled", "adapter", "discord")
	}
	if ad.WebSocket != nil {
		a.mux.Handle(ad.WebSocket.Path, wsadapter.New(a.connector,
			wsadapter.WithMetrics(a.metrics),
			wsadapter.WithOriginPatterns(ad.WebSocket.OriginPatterns...),
		))
		slog.Info("adapter enabled", "adapter", "websocket", "path", ad.WebSocket.Path)
	}
	if ad.MCP != nil {
		srv := mcp.New(a.connector, a.version)
		switch ad.MCP.Transport {
		case config.MCPTransportStdio:
			a.runners = append(a.runners, srv)
		default:
			a.mux.Handle(ad.MCP.Path, srv.Handler())
		}
		slog.Info("adapter enabled", "adapter", "mcp", "transport", ad.MCP.Transport)
	}

	var checkers []health.Checker
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.Ping("storage", p))
	}
	if a.msgLog != nil {
		checkers = append(checkers, health.Degraded("message_log", a.connector.MessageLogDegraded))
	}
	health.New(checkers...).Register(a.mux)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: observe.Middleware(a.metrics)(a.mux),
	}
	return nil
}

// Connector returns the connector every adapter answers through.
func (a *App) Connector() *connector.Connector { return a.connector }

// Handler returns the HTTP handler serving webhooks, websocket chat, MCP,
// health checks and metrics. It is nil with [WithoutAdapters].
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// Reload rebuilds the manager cascade from cfg and swaps it into the
// connector. On error the running manager stays in place.
func (a *App) Reload(cfg *config.Config) error {
	m, err := a.builder.Build(cfg)
	if err != nil {
		return err
	}
	a.connector.SetManager(m)
	slog.Info("managers reloaded", "managers", len(cfg.Managers.Cascade))
	return nil
}

// Run serves HTTP and every runner until ctx is cancelled or one of them
// fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			slog.Info("http server listening", "addr", a.server.Addr)
			var err error
			if tls := a.cfg.Server.TLS; tls != nil {
				err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
			} else {
				err = a.server.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	for _, r := range a.runners {
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				return fmt.Errorf("app: %s: %w", r.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Shutdown releases every subsystem in reverse order of creation.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.server != nil {
			if e := a.server.Shutdown(ctx); e != nil && !errors.Is(e, http.ErrServerClosed) {
				err = errors.Join(err, e)
			}
		}
		err = errors.Join(err, a.closeAll())
	})
	return err
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
