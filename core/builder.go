package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/searchktools/rawhttp/core/http"
	"github.com/searchktools/rawhttp/core/middleware"
	"github.com/searchktools/rawhttp/core/observability"
	"github.com/searchktools/rawhttp/core/pools"
	"github.com/searchktools/rawhttp/core/router"
	"golang.org/x/net/netutil"
)

// Builder accumulates bind addresses, pool size and routes, then produces
// a bound Server. Configuration mistakes are collected and reported
// together by Build.
type Builder struct {
	addrs        []*net.TCPAddr
	workers      int
	routes       []*router.Route
	middlewares  []middleware.Middleware
	logger       *slog.Logger
	monitor      *observability.PerformanceMonitor
	maxConns     int
	readTimeout  time.Duration
	maxBodyBytes int64
	reusePort    bool

	errs []error
}

// NewBuilder creates a builder with default settings
func NewBuilder() *Builder {
	return &Builder{
		workers:      DefaultWorkers,
		logger:       slog.Default(),
		maxBodyBytes: http.DefaultMaxBodyBytes,
	}
}

// Bind resolves addr and adds it to the listener set
func (b *Builder) Bind(addr string) *Builder {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("resolve %q: %w", addr, err))
		return b
	}
	b.addrs = append(b.addrs, tcpAddr)
	return b
}

// Workers sets the worker pool size; it must be greater than 0
func (b *Builder) Workers(n int) *Builder {
	if n <= 0 {
		b.errs = append(b.errs, fmt.Errorf("%w: got %d", pools.ErrInvalidSize, n))
		return b
	}
	b.workers = n
	return b
}

// Route registers handler for method and the URI template. The template
// is compiled immediately.
func (b *Builder) Route(method http.Method, template string, handler http.Handler) *Builder {
	if handler == nil {
		b.errs = append(b.errs, fmt.Errorf("nil handler for %s %s", method, template))
		return b
	}

	addr, err := router.Compile(template)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}

	b.routes = append(b.routes, &router.Route{
		Method:  method,
		Address: addr,
		Handler: handler,
	})
	return b
}

// GET registers a GET route
func (b *Builder) GET(template string, handler http.Handler) *Builder {
	return b.Route(http.MethodGet, template, handler)
}

// POST registers a POST route
func (b *Builder) POST(template string, handler http.Handler) *Builder {
	return b.Route(http.MethodPost, template, handler)
}

// PUT registers a PUT route
func (b *Builder) PUT(template string, handler http.Handler) *Builder {
	return b.Route(http.MethodPut, template, handler)
}

// DELETE registers a DELETE route
func (b *Builder) DELETE(template string, handler http.Handler) *Builder {
	return b.Route(http.MethodDelete, template, handler)
}

// Use appends middlewares applied to every route, first one outermost
func (b *Builder) Use(mws ...middleware.Middleware) *Builder {
	b.middlewares = append(b.middlewares, mws...)
	return b
}

// Logger sets the server logger
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Monitor records per-route latency and errors into pm
func (b *Builder) Monitor(pm *observability.PerformanceMonitor) *Builder {
	b.monitor = pm
	return b
}

// MaxConnections caps simultaneously open connections per listener; 0 means no cap
func (b *Builder) MaxConnections(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, fmt.Errorf("max connections must not be negative: got %d", n))
		return b
	}
	b.maxConns = n
	return b
}

// ReadTimeout bounds the time spent decoding a request; 0 means no deadline
func (b *Builder) ReadTimeout(d time.Duration) *Builder {
	b.readTimeout = d
	return b
}

// MaxBodyBytes rejects request bodies above n bytes; 0 disables the check
func (b *Builder) MaxBodyBytes(n int64) *Builder {
	b.maxBodyBytes = n
	return b
}

// ReusePort sets SO_REUSEPORT on the listeners
func (b *Builder) ReusePort(enabled bool) *Builder {
	b.reusePort = enabled
	return b
}

// Build binds one listener per address and starts the worker pool.
func (b *Builder) Build() (*Server, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if len(b.addrs) == 0 {
		return nil, ErrNoBindings
	}

	table := router.NewTable()
	wrap := middleware.Chain(b.middlewares...)
	for _, r := range b.routes {
		table.AddRoute(&router.Route{
			Method:  r.Method,
			Address: r.Address,
			Handler: wrap(r.Handler),
		})
	}

	control, err := listenControl(b.reusePort)
	if err != nil {
		return nil, err
	}
	lc := net.ListenConfig{Control: control}

	listeners := make([]net.Listener, 0, len(b.addrs))
	closeAll := func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}

	for _, addr := range b.addrs {
		ln, err := lc.Listen(context.Background(), "tcp", addr.String())
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("bind %s: %w", addr, err)
		}
		ln = lingerListener{ln}
		if b.maxConns > 0 {
			ln = netutil.LimitListener(ln, b.maxConns)
		}
		listeners = append(listeners, ln)
	}

	pool, err := pools.NewWorkerPool(b.workers, pools.WithLogger(b.logger))
	if err != nil {
		closeAll()
		return nil, err
	}

	parser := http.NewParser()
	parser.MaxBodyBytes = b.maxBodyBytes

	return &Server{
		listeners:   listeners,
		table:       table,
		pool:        pool,
		parser:      parser,
		logger:      b.logger,
		monitor:     b.monitor,
		readTimeout: b.readTimeout,
		done:        make(chan struct{}),
	}, nil
}
