package core

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/rawhttp/core/http"
	"github.com/searchktools/rawhttp/core/observability"
	"github.com/searchktools/rawhttp/core/pools"
	"github.com/searchktools/rawhttp/core/router"
)

// Server accepts connections on every bound listener, decodes one request
// per connection, routes it and hands the handler call to the worker pool.
// Every accepted connection gets exactly one response and is then closed.
type Server struct {
	listeners   []net.Listener
	table       *router.Table
	pool        *pools.WorkerPool
	parser      *http.Parser
	logger      *slog.Logger
	monitor     *observability.PerformanceMonitor
	readTimeout time.Duration

	mu        sync.Mutex // guards starting against closing
	wg        sync.WaitGroup
	running   bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	stats struct {
		accepted         atomic.Uint64
		dispatched       atomic.Uint64
		badRequests      atomic.Uint64
		timeouts         atomic.Uint64
		notFound         atomic.Uint64
		methodNotAllowed atomic.Uint64
		handlerPanics    atomic.Uint64
		acceptErrors     atomic.Uint64
		writeErrors      atomic.Uint64
	}
}

// Routes returns the registered routes in match order
func (s *Server) Routes() []*router.Route {
	return s.table.Routes()
}

// Addrs returns the bound listener addresses, in Bind order
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// Run serves every listener concurrently and blocks until Close is
// called, then returns ErrServerClosed.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	if s.running {
		s.mu.Unlock()
		return ErrServerRunning
	}
	s.running = true

	for _, ln := range s.listeners {
		s.logger.Info("listening", "addr", ln.Addr().String())
		s.wg.Add(1)
		go s.serve(ln)
	}
	s.mu.Unlock()

	<-s.done
	return ErrServerClosed
}

// Close stops accepting, waits for the accept loops to exit, then drains
// the worker pool so every queued request is answered. Safe to call more
// than once.
func (s *Server) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		for _, ln := range s.listeners {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		s.mu.Unlock()

		s.wg.Wait()
		s.pool.Shutdown()
		if s.monitor != nil {
			s.monitor.Stop()
		}
		close(s.done)
		s.logger.Info("server stopped")
	})
	return errors.Join(errs...)
}

// serve is the accept loop for one listener
func (s *Server) serve(ln net.Listener) {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.stats.acceptErrors.Add(1)

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.logger.Warn("accept failed",
				"addr", ln.Addr().String(),
				"error", err,
				"retry_in", backoff,
			)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.stats.accepted.Add(1)

		s.handleConnection(conn)
	}
}

// handleConnection decodes and routes on the accept goroutine. Decode and
// routing failures are answered right here; matched requests go to the pool.
func (s *Server) handleConnection(conn net.Conn) {
	if s.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	req, err := s.parser.Parse(conn)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			s.stats.timeouts.Add(1)
			s.logger.Debug("request read timed out", "remote", conn.RemoteAddr().String())
			s.reply(conn, http.StatusRequestTimeout)
			return
		}
		s.stats.badRequests.Add(1)
		s.logger.Info("bad request", "remote", conn.RemoteAddr().String(), "error", err)
		s.reply(conn, http.StatusBadRequest)
		return
	}
	if s.readTimeout > 0 {
		conn.SetReadDeadline(time.Time{})
	}

	s.logger.Debug("request decoded", "request", req.String())

	route, params, err := s.table.Match(req.Method, req.Path)
	switch {
	case errors.Is(err, router.ErrNotFound):
		s.stats.notFound.Add(1)
		s.reply(conn, http.StatusNotFound)
		return
	case errors.Is(err, router.ErrMethodNotAllowed):
		s.stats.methodNotAllowed.Add(1)
		s.reply(conn, http.StatusMethodNotAllowed)
		return
	case err != nil:
		s.logger.Error("route match failed", "path", req.Path, "error", err)
		s.reply(conn, http.StatusInternalServerError)
		return
	}

	if err := s.pool.Submit(s.dispatch(conn, route, req.WithParams(params))); err != nil {
		s.logger.Warn("dispatch rejected", "route", route.Name(), "error", err)
		s.reply(conn, http.StatusServiceUnavailable)
		return
	}
	s.stats.dispatched.Add(1)
}

// dispatch builds the job that runs route's handler and writes its
// response. The job owns conn and req.
func (s *Server) dispatch(conn net.Conn, route *router.Route, req *http.Request) pools.Job {
	return func() {
		start := time.Now()
		written := false

		defer func() {
			if r := recover(); r != nil {
				s.stats.handlerPanics.Add(1)
				s.logger.Error("handler panicked", "route", route.Name(), "panic", r)
				if !written {
					s.write(conn, http.NewResponse(http.StatusInternalServerError))
				}
				s.record(route, start, http.StatusInternalServerError)
			}
			conn.Close()
		}()

		resp := route.Handler.Serve(req)
		if resp == nil {
			s.logger.Error("handler returned no response", "route", route.Name())
			resp = http.NewResponse(http.StatusInternalServerError)
		}

		written = true
		s.write(conn, resp)
		s.record(route, start, resp.Status)
	}
}

func (s *Server) record(route *router.Route, start time.Time, status int) {
	if s.monitor != nil {
		s.monitor.RecordRequest(route.Name(), time.Since(start), status >= 500)
	}
}

// reply answers with a bodyless status response and closes conn
func (s *Server) reply(conn net.Conn, status int) {
	s.write(conn, http.NewResponse(status))
	conn.Close()
}

func (s *Server) write(conn net.Conn, resp *http.Response) {
	if _, err := resp.WriteTo(conn); err != nil {
		s.stats.writeErrors.Add(1)
		s.logger.Debug("response write failed",
			"remote", conn.RemoteAddr().String(),
			"status", resp.Status,
			"error", err,
		)
	}
}
