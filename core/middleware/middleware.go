package middleware

import (
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/rawhttp/core/http"
)

// Middleware wraps a handler with extra behavior
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares so the first one listed runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				h = mws[i](h)
			}
		}
		return h
	}
}

// Recover turns a handler panic into a 500 response
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(req *http.Request) (resp *http.Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						"method", req.Method,
						"path", req.Path,
						"panic", r,
						"stack", string(debug.Stack()),
					)
					resp = http.NewResponse(http.StatusInternalServerError)
				}
			}()
			return next.Serve(req)
		})
	}
}

// Logging logs one line per handled request at info level and the full
// decoded request at debug level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(req *http.Request) *http.Response {
			logger.Debug("request", "raw", req.String())

			start := time.Now()
			resp := next.Serve(req)

			status := 0
			if resp != nil {
				status = resp.Status
			}
			logger.Info("handled",
				"method", req.Method,
				"uri", req.RequestURI(),
				"status", status,
				"duration", time.Since(start),
			)
			return resp
		})
	}
}

// RequestID adds a sequential X-Request-ID header to every response
func RequestID() Middleware {
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(req *http.Request) *http.Response {
			resp := next.Serve(req)
			if resp != nil {
				resp.AddHeader("X-Request-ID", strconv.FormatUint(counter.Add(1), 10))
			}
			return resp
		})
	}
}

// RateLimiter answers 429 once more than requestsPerSecond requests have
// been served in the current one-second window.
func RateLimiter(requestsPerSecond int) Middleware {
	var (
		tokens     = requestsPerSecond
		lastRefill = time.Now()
		mu         sync.Mutex
	)

	allow := func() bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastRefill) > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
		}
		if tokens > 0 {
			tokens--
			return true
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(req *http.Request) *http.Response {
			if !allow() {
				return http.NewResponse(429).JSON(map[string]string{
					"error": "Too Many Requests",
				})
			}
			return next.Serve(req)
		})
	}
}
