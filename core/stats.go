package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/searchktools/rawhttp/core/observability"
	"github.com/searchktools/rawhttp/core/pools"
)

// ServerStats is a point-in-time view of the server and its pools
type ServerStats struct {
	Connections ConnectionStats               `json:"connections"`
	Workers     pools.WorkerPoolStats         `json:"workers"`
	Buffers     pools.BufferStats             `json:"buffers"`
	GC          pools.GCStats                 `json:"gc"`
	Routes      []observability.RouteSnapshot `json:"routes,omitempty"`
}

// ConnectionStats counts connection outcomes
type ConnectionStats struct {
	Accepted         uint64 `json:"accepted"`
	Dispatched       uint64 `json:"dispatched"`
	BadRequests      uint64 `json:"bad_requests"`
	Timeouts         uint64 `json:"timeouts"`
	NotFound         uint64 `json:"not_found"`
	MethodNotAllowed uint64 `json:"method_not_allowed"`
	HandlerPanics    uint64 `json:"handler_panics"`
	AcceptErrors     uint64 `json:"accept_errors"`
	WriteErrors      uint64 `json:"write_errors"`
}

// Stats returns current server statistics
func (s *Server) Stats() ServerStats {
	stats := ServerStats{
		Connections: ConnectionStats{
			Accepted:         s.stats.accepted.Load(),
			Dispatched:       s.stats.dispatched.Load(),
			BadRequests:      s.stats.badRequests.Load(),
			Timeouts:         s.stats.timeouts.Load(),
			NotFound:         s.stats.notFound.Load(),
			MethodNotAllowed: s.stats.methodNotAllowed.Load(),
			HandlerPanics:    s.stats.handlerPanics.Load(),
			AcceptErrors:     s.stats.acceptErrors.Load(),
			WriteErrors:      s.stats.writeErrors.Load(),
		},
		Workers: s.pool.Stats(),
		Buffers: pools.GetBufferStats(),
		GC:      pools.GetGCStats(),
	}
	if s.monitor != nil {
		stats.Routes = s.monitor.Snapshot()
	}
	return stats
}

// StatsJSON returns server statistics as indented JSON
func (s *Server) StatsJSON() string {
	data, _ := json.MarshalIndent(s.Stats(), "", "  ")
	return string(data)
}

// StatsText returns server statistics as human-readable text
func (s *Server) StatsText() string {
	stats := s.Stats()
	c := stats.Connections
	w := stats.Workers

	var b strings.Builder
	fmt.Fprintf(&b, `Server Statistics
=================

Connections:
  Accepted:           %d
  Dispatched:         %d
  Bad Requests:       %d
  Timeouts:           %d
  Not Found:          %d
  Method Not Allowed: %d
  Handler Panics:     %d
  Accept Errors:      %d
  Write Errors:       %d

Workers (%d):
  Submitted: %d
  Completed: %d
  Pending:   %d
  Active:    %d
  Panicked:  %d

Buffers:
  Gets:      %d
  512B hits: %d
  4KB hits:  %d
  32KB hits: %d
  Oversized: %d
`,
		c.Accepted, c.Dispatched, c.BadRequests, c.Timeouts, c.NotFound,
		c.MethodNotAllowed, c.HandlerPanics, c.AcceptErrors, c.WriteErrors,
		w.NumWorkers, w.TasksSubmitted, w.TasksCompleted, w.TasksPending, w.TasksActive, w.TasksPanicked,
		stats.Buffers.TotalGets, stats.Buffers.SmallHits, stats.Buffers.MediumHits,
		stats.Buffers.LargeHits, stats.Buffers.Oversized,
	)

	if len(stats.Routes) > 0 {
		b.WriteString("\nRoutes:\n")
		for _, r := range stats.Routes {
			fmt.Fprintf(&b, "  %-28s count=%d errors=%d avg=%v max=%v\n",
				r.Name, r.Count, r.Errors, r.AvgDuration, r.MaxDuration)
		}
	}

	return b.String()
}
