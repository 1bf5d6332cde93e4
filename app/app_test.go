package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/searchktools/rawhttp/config"
	"github.com/searchktools/rawhttp/core/http"
)

// syncBuffer is a bytes.Buffer safe for the logger and the test to share
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addrs = []string{"127.0.0.1:0"}
	cfg.Workers = 2
	return cfg
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := testConfig()
	cfg.Env = config.EnvProduction
	logger, err := NewLogger(cfg, &buf)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("hello", "k", "v")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	if entry["msg"] != "hello" || entry["k"] != "v" {
		t.Errorf("Unexpected entry: %v", entry)
	}

	buf.Reset()
	cfg.Env = config.EnvDevelopment
	cfg.LogLevel = "warn"
	logger, _ = NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "level=WARN msg=shown") {
		t.Errorf("Unexpected text output %q", out)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 0
	if _, err := NewWithWriter(cfg, io.Discard); err == nil {
		t.Error("Expected error for invalid config")
	}
}

// TestServe tests the full application lifecycle over TCP
func TestServe(t *testing.T) {
	logs := &syncBuffer{}
	a, err := NewWithWriter(testConfig(), logs)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	a.Builder().
		GET("/", http.HandlerFunc(func(req *http.Request) *http.Response {
			return http.NewResponse(http.StatusOK)
		})).
		GET("/panic", http.HandlerFunc(func(req *http.Request) *http.Response {
			panic("boom")
		}))

	srv, err := a.Builder().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, srv) }()

	get := func(path string) string {
		conn, err := net.Dial("tcp", srv.Addrs()[0].String())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		io.WriteString(conn, "GET "+path+" HTTP/1.1\r\n\r\n")
		out, _ := io.ReadAll(conn)
		return string(out)
	}

	if got := get("/"); got != "HTTP/1.1 200 OK\r\n\r\n" {
		t.Errorf("Expected 200, got %q", got)
	}
	// Recover middleware is installed by default
	if got := get("/panic"); got != "HTTP/1.1 500 Internal Server Error\r\n\r\n" {
		t.Errorf("Expected 500, got %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	out := logs.String()
	for _, want := range []string{"msg=\"route registered\"", "route=\"GET /panic\"", "msg=handled", "uri=/", "msg=\"final stats\"", "accepted=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in logs:\n%s", want, out)
		}
	}

	snap := a.Monitor().Snapshot()
	if len(snap) != 2 {
		t.Errorf("Expected 2 monitored routes, got %d", len(snap))
	}
}

// TestOptionalMiddleware tests that request IDs and rate limiting are
// installed from configuration
func TestOptionalMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.RequestID = true
	cfg.RateLimit = 1

	a, err := NewWithWriter(cfg, io.Discard)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a.Builder().GET("/", http.HandlerFunc(func(req *http.Request) *http.Response {
		return http.NewResponse(http.StatusOK)
	}))

	srv, err := a.Builder().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	go srv.Run()
	defer srv.Close()

	get := func() string {
		conn, err := net.Dial("tcp", srv.Addrs()[0].String())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		io.WriteString(conn, "GET / HTTP/1.1\r\n\r\n")
		out, _ := io.ReadAll(conn)
		return string(out)
	}

	first := get()
	if !strings.HasPrefix(first, "HTTP/1.1 200 OK\r\n") || !strings.Contains(first, "X-Request-ID: 1\r\n") {
		t.Errorf("Expected 200 with request id, got %q", first)
	}
	second := get()
	if !strings.HasPrefix(second, "HTTP/1.1 429 ") || !strings.Contains(second, "Too Many Requests") {
		t.Errorf("Expected 429 within the same second, got %q", second)
	}
}
