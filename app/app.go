package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/rawhttp/config"
	"github.com/searchktools/rawhttp/core"
	"github.com/searchktools/rawhttp/core/middleware"
	"github.com/searchktools/rawhttp/core/observability"
	"github.com/searchktools/rawhttp/core/pools"
)

// MonitorInterval is how often route bottlenecks are analyzed
const MonitorInterval = 10 * time.Second

// App wires configuration, logging and the server builder together
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	monitor *observability.PerformanceMonitor
	builder *core.Builder
}

// New creates an application logging to stderr
func New(cfg *config.Config) (*App, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates an application logging to w
func NewWithWriter(cfg *config.Config, w io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg, w)
	if err != nil {
		return nil, err
	}

	if cfg.GCPercent > 0 {
		prev := pools.ApplyGCConfig(pools.GCConfig{GOGC: cfg.GCPercent})
		logger.Info("gc tuned", "gogc", cfg.GCPercent, "previous", prev)
	}

	monitor := observability.NewPerformanceMonitor()

	builder := core.NewBuilder().
		Logger(logger).
		Workers(cfg.Workers).
		MaxConnections(cfg.MaxConns).
		ReadTimeout(cfg.ReadTimeout).
		MaxBodyBytes(cfg.MaxBodyBytes).
		ReusePort(cfg.ReusePort).
		Monitor(monitor).
		Use(middleware.Recover(logger), middleware.Logging(logger))
	if cfg.RequestID {
		builder.Use(middleware.RequestID())
	}
	if cfg.RateLimit > 0 {
		builder.Use(middleware.RateLimiter(cfg.RateLimit))
	}
	for _, addr := range cfg.Addrs {
		builder.Bind(addr)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		monitor: monitor,
		builder: builder,
	}, nil
}

// NewLogger builds a text logger in development and a JSON logger in
// production, at the configured level.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Builder returns the pre-configured builder for route registration
func (a *App) Builder() *core.Builder {
	return a.builder
}

// Logger returns the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Monitor returns the per-route performance monitor
func (a *App) Monitor() *observability.PerformanceMonitor {
	return a.monitor
}

// Run builds the server and serves until ctx is done or SIGINT/SIGTERM
// arrives.
func (a *App) Run(ctx context.Context) error {
	srv, err := a.builder.Build()
	if err != nil {
		return err
	}
	return a.Serve(ctx, srv)
}

// Serve runs srv until ctx is done or a termination signal arrives, then
// closes it and logs the final statistics.
func (a *App) Serve(ctx context.Context, srv *core.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("server starting",
		"env", a.cfg.Env,
		"workers", a.cfg.Workers,
		"addrs", a.cfg.Addrs,
	)
	for _, route := range srv.Routes() {
		a.logger.Info("route registered", "route", route.Name())
	}
	a.monitor.Start(MonitorInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, core.ErrServerClosed) {
			srv.Close()
			return err
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("shutting down", "cause", context.Cause(ctx))
	}

	if err := srv.Close(); err != nil {
		a.logger.Warn("close failed", "error", err)
	}
	<-errCh

	a.logStats(srv)
	return nil
}

func (a *App) logStats(srv *core.Server) {
	stats := srv.Stats()
	a.logger.Info("final stats",
		"accepted", stats.Connections.Accepted,
		"dispatched", stats.Connections.Dispatched,
		"bad_requests", stats.Connections.BadRequests,
		"jobs_completed", stats.Workers.TasksCompleted,
		"jobs_panicked", stats.Workers.TasksPanicked,
	)
	for _, b := range a.monitor.GetBottlenecks() {
		a.logger.Warn("bottleneck", "type", b.Type, "route", b.Location, "details", b.Details)
	}
	a.logger.Debug("stats detail", "stats", srv.StatsJSON())
}
