package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Thresholds used by bottleneck detection
const (
	SlowRouteThreshold = 100 * time.Millisecond
	ErrorRateThreshold = 0.05
)

// latencyBounds are the upper bounds, in milliseconds, of the latency
// buckets; the last bucket is open-ended.
var latencyBounds = [...]uint64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}

// PerformanceMonitor aggregates per-route latency and error counts
type PerformanceMonitor struct {
	enabled atomic.Bool
	routes  sync.Map // name -> *RouteMetrics
	global  struct {
		totalRequests atomic.Uint64
		totalErrors   atomic.Uint64
		totalDuration atomic.Uint64
	}

	bottlenecks  []Bottleneck
	bottleneckMu sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// RouteMetrics stores per-route metrics
type RouteMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [len(latencyBounds) + 1]atomic.Uint64
}

// Bottleneck represents a performance issue
type Bottleneck struct {
	Type       string    `json:"type"`
	Location   string    `json:"location"`
	Severity   int       `json:"severity"`
	Impact     float64   `json:"impact"`
	DetectedAt time.Time `json:"detected_at"`
	Details    string    `json:"details"`
}

// NewPerformanceMonitor creates an enabled monitor. Bottleneck analysis
// only runs after Start.
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{stop: make(chan struct{})}
	pm.enabled.Store(true)
	return pm
}

// Start runs bottleneck analysis every interval until Stop
func (pm *PerformanceMonitor) Start(interval time.Duration) {
	go pm.analyzeBottlenecks(interval)
}

// Stop ends background analysis
func (pm *PerformanceMonitor) Stop() {
	pm.stopOnce.Do(func() { close(pm.stop) })
}

// SetEnabled turns recording on or off
func (pm *PerformanceMonitor) SetEnabled(enabled bool) {
	pm.enabled.Store(enabled)
}

// RecordRequest records one handled request for route
func (pm *PerformanceMonitor) RecordRequest(route string, duration time.Duration, isError bool) {
	if !pm.enabled.Load() {
		return
	}

	val, _ := pm.routes.LoadOrStore(route, &RouteMetrics{Name: route})
	metrics := val.(*RouteMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
		pm.global.totalErrors.Add(1)
	}

	durationNs := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(durationNs)
	updateMinMax(metrics, durationNs)
	metrics.latencyBuckets[bucketFor(durationNs)].Add(1)

	pm.global.totalRequests.Add(1)
	pm.global.totalDuration.Add(durationNs)
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

func bucketFor(durationNs uint64) int {
	ms := durationNs / uint64(time.Millisecond)
	for i, bound := range latencyBounds {
		if ms < bound {
			return i
		}
	}
	return len(latencyBounds)
}

// StartTrace starts timing
func (pm *PerformanceMonitor) StartTrace() time.Time {
	if !pm.enabled.Load() {
		return time.Time{}
	}
	return time.Now()
}

// EndTrace ends timing and records
func (pm *PerformanceMonitor) EndTrace(route string, start time.Time, isError bool) {
	if start.IsZero() {
		return
	}
	pm.RecordRequest(route, time.Since(start), isError)
}

func (pm *PerformanceMonitor) analyzeBottlenecks(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-pm.stop:
			return
		case <-ticker.C:
			if !pm.enabled.Load() {
				continue
			}
			bottlenecks := pm.detectBottlenecks()
			pm.bottleneckMu.Lock()
			pm.bottlenecks = bottlenecks
			pm.bottleneckMu.Unlock()
		}
	}
}

func (pm *PerformanceMonitor) detectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	pm.routes.Range(func(key, value any) bool {
		m := value.(*RouteMetrics)
		count := m.Count.Load()
		if count == 0 {
			return true
		}

		avgDuration := time.Duration(m.TotalDuration.Load() / count)
		if avgDuration > SlowRouteThreshold {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "latency",
				Location:   m.Name,
				Severity:   8,
				Impact:     100.0,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("High latency (%v avg)", avgDuration),
			})
		}

		errors := m.Errors.Load()
		if rate := float64(errors) / float64(count); errors > 0 && rate > ErrorRateThreshold {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "errors",
				Location:   m.Name,
				Severity:   10,
				Impact:     rate * 100,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("%.1f%% error rate", rate*100),
			})
		}

		return true
	})

	return bottlenecks
}

// GetBottlenecks returns the bottlenecks found by the last analysis
func (pm *PerformanceMonitor) GetBottlenecks() []Bottleneck {
	pm.bottleneckMu.RLock()
	defer pm.bottleneckMu.RUnlock()
	return append([]Bottleneck{}, pm.bottlenecks...)
}

// RouteSnapshot is a point-in-time copy of one route's metrics
type RouteSnapshot struct {
	Name           string        `json:"name"`
	Count          uint64        `json:"count"`
	Errors         uint64        `json:"errors"`
	AvgDuration    time.Duration `json:"avg_duration"`
	MinDuration    time.Duration `json:"min_duration"`
	MaxDuration    time.Duration `json:"max_duration"`
	LatencyBuckets []uint64      `json:"latency_buckets"`
}

// Snapshot returns metrics for every route, sorted by name
func (pm *PerformanceMonitor) Snapshot() []RouteSnapshot {
	var out []RouteSnapshot

	pm.routes.Range(func(key, value any) bool {
		m := value.(*RouteMetrics)
		s := RouteSnapshot{
			Name:           m.Name,
			Count:          m.Count.Load(),
			Errors:         m.Errors.Load(),
			MinDuration:    time.Duration(m.MinDuration.Load()),
			MaxDuration:    time.Duration(m.MaxDuration.Load()),
			LatencyBuckets: make([]uint64, len(m.latencyBuckets)),
		}
		if s.Count > 0 {
			s.AvgDuration = time.Duration(m.TotalDuration.Load() / s.Count)
		}
		for i := range m.latencyBuckets {
			s.LatencyBuckets[i] = m.latencyBuckets[i].Load()
		}
		out = append(out, s)
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Totals returns request, error and cumulative duration counters
func (pm *PerformanceMonitor) Totals() (requests, errors uint64, duration time.Duration) {
	return pm.global.totalRequests.Load(),
		pm.global.totalErrors.Load(),
		time.Duration(pm.global.totalDuration.Load())
}
