// Package app wires the saidwhen subsystems into a running application.
//
// New opens the caption store, builds the channel registry, the YouTube
// collaborators, the ingestion orchestrator and the phrase locator, and
// optionally a chat front end. Run serves the health and metrics endpoints
// and the front end until the context ends; Shutdown releases everything.
//
// For testing, inject doubles via functional options (WithStore,
// WithVideoLister, WithCaptionSource, ...). When an option is not provided,
// New creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/saidwhen/internal/channel"
	"github.com/MrWong99/saidwhen/internal/config"
	"github.com/MrWong99/saidwhen/internal/health"
	"github.com/MrWong99/saidwhen/internal/ingest"
	"github.com/MrWong99/saidwhen/internal/locate"
	"github.com/MrWong99/saidwhen/internal/observe"
	"github.com/MrWong99/saidwhen/internal/store"
	"github.com/MrWong99/saidwhen/internal/store/postgres"
	"github.com/MrWong99/saidwhen/internal/store/sqlite"
	"github.com/MrWong99/saidwhen/internal/youtube"
)

// Frontend is a chat front end driven by the [Service], e.g. the Discord bot.
type Frontend interface {
	// Run blocks until ctx is cancelled or the front end fails.
	Run(ctx context.Context) error
	Close() error
}

// FrontendFactory builds the front end once the Service exists.
type FrontendFactory func(svc *Service) (Frontend, error)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store        store.Store
	lister       ingest.VideoLister
	captions     ingest.CaptionSource
	metrics      *observe.Metrics
	telemetry    *observe.Provider
	registry     *channel.Registry
	orchestrator *ingest.Orchestrator
	locator      *locate.Locator
	service      *Service

	newFrontend FrontendFactory
	frontend    Frontend

	listener net.Listener
	server   *http.Server
	logLevel *slog.LevelVar

	// closers run in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a caption store instead of opening one from config.
// The app does not close an injected store.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithVideoLister replaces the YouTube channel lister.
func WithVideoLister(l ingest.VideoLister) Option {
	return func(a *App) { a.lister = l }
}

// WithCaptionSource replaces the YouTube caption source.
func WithCaptionSource(c ingest.CaptionSource) Option {
	return func(a *App) { a.captions = c }
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry mounts the provider's /metrics endpoint and shuts the
// provider down with the app.
func WithTelemetry(p *observe.Provider) Option {
	return func(a *App) { a.telemetry = p }
}

// WithFrontend attaches a chat front end.
func WithFrontend(f FrontendFactory) Option {
	return func(a *App) { a.newFrontend = f }
}

// WithListener serves HTTP on l instead of listening on
// server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithLogLevel lets [App.Reload] change the level of the process logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.initYouTube()

	a.registry = channel.NewRegistry(a.store, channel.WithMaxChannels(cfg.Registry.MaxChannels))
	a.orchestrator = ingest.New(a.lister, a.captions, a.store, a.registry,
		ingest.WithConcurrency(cfg.Ingest.Concurrency),
		ingest.WithMetrics(a.metrics),
	)
	a.locator = locate.New(a.registry, a.store, a.metrics)
	a.service = NewService(a.orchestrator, a.locator, a.registry)

	if a.newFrontend != nil {
		f, err := a.newFrontend(a.service)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: init frontend: %w", err)
		}
		a.frontend = f
		// Disconnect the front end before the store goes away.
		a.closers = append([]func() error{f.Close}, a.closers...)
	}

	a.initHTTP()
	return a, nil
}

// initStore opens the configured backend unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	var (
		s   store.Store
		err error
	)
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		s, err = postgres.NewStore(ctx, a.cfg.Store.PostgresDSN)
	case config.DriverSQLite:
		s, err = sqlite.Open(ctx, a.cfg.Store.SQLitePath)
	case config.DriverMemory:
		s = store.NewMemStore()
	default:
		err = fmt.Errorf("unknown driver %q", a.cfg.Store.Driver)
	}
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, s.Close)
	slog.Info("caption store ready", "driver", a.cfg.Store.Driver)
	return nil
}

// initYouTube fills the collaborators that were not injected.
func (a *App) initYouTube() {
	if a.lister != nil && a.captions != nil {
		return
	}
	yc := a.cfg.YouTube
	client := youtube.NewClient(
		youtube.WithTimeout(yc.RequestTimeout),
		youtube.WithRateLimit(yc.RequestsPerSecond, yc.Burst),
		youtube.WithBaseURL(yc.BaseURL),
		youtube.WithUserAgent(yc.UserAgent),
		youtube.WithCircuitBreaker(yc.BreakerFailures, yc.BreakerCooldown),
	)
	if a.lister == nil {
		a.lister = youtube.NewLister(client)
	}
	if a.captions == nil {
		a.captions = youtube.NewCaptions(client, yc.Language)
	}
}

func (a *App) initHTTP() {
	checks := []health.Check{health.Ping("store", a.store)}
	if p, ok := a.frontend.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, health.Ping("frontend", p))
	}

	mux := http.NewServeMux()
	health.New(checks).Register(mux)
	if a.telemetry != nil {
		mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	}

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Service returns the operation surface for chat front ends.
func (a *App) Service() *Service { return a.service }

// Run serves HTTP and the front end until ctx is cancelled or one of them
// fails. It returns ctx.Err() after a cancellation.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
		}
	}
	slog.Info("http server listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	if a.frontend != nil {
		g.Go(func() error {
			if err := a.frontend.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: frontend: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Reload applies the hot-reloadable part of a config change.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ConcurrencyChanged {
		a.orchestrator.SetConcurrency(d.NewConcurrency)
		slog.Info("ingest concurrency changed", "concurrency", a.orchestrator.Concurrency())
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		if a.telemetry != nil {
			if err := a.telemetry.Shutdown(ctx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases what New opened before a later step failed.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}

// SlogLevel maps a config level to its slog counterpart. Unknown levels map
// to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
