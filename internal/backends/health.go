package backends

import (
	"sort"
	"sync"
	"time"
)

// HealthStatus is a backend's current up/degraded/down classification.
// It biases routing; it never hard-blocks a backend.
type HealthStatus string

const (
	// StatusHealthy means the backend is responding normally
	StatusHealthy HealthStatus = "healthy"
	// StatusDegraded means the backend is slow or intermittently failing
	StatusDegraded HealthStatus = "degraded"
	// StatusUnavailable means the backend has failed repeatedly
	StatusUnavailable HealthStatus = "unavailable"
)

// BackendHealth is the externally visible health record for one backend
type BackendHealth struct {
	BackendID           BackendID    `json:"backendId"`
	Status              HealthStatus `json:"status"`
	LastLatencyMs       int64        `json:"lastLatencyMs"`
	AvgLatencyMs        float64      `json:"avgLatencyMs"`
	LastCheckedAt       time.Time    `json:"lastCheckedAt"`
	LastFailureAt       time.Time    `json:"lastFailureAt,omitempty"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
}

// HealthConfig holds the status transition thresholds
type HealthConfig struct {
	// DegradedAfter is the consecutive-failure count that flips healthy to degraded
	DegradedAfter int
	// UnavailableAfter is the consecutive-failure count that flips degraded to unavailable
	UnavailableAfter int
	// LatencyP95ThresholdMs degrades a backend whose p95 latency over the
	// sliding window exceeds it, even while requests succeed
	LatencyP95ThresholdMs float64
	// WindowSize is how many recent latency samples feed the p95 calculation
	WindowSize int
	// ProbeEvery retries an unavailable backend on every Nth request that
	// would otherwise skip it, so recovery is always detected
	ProbeEvery int
}

// DefaultHealthConfig returns the default transition thresholds
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		DegradedAfter:         2,
		UnavailableAfter:      5,
		LatencyP95ThresholdMs: 2000,
		WindowSize:            20,
		ProbeEvery:            10,
	}
}

type healthState struct {
	BackendHealth
	window          []float64
	skipsSinceProbe int
}

// HealthMonitor tracks per-backend success/latency history and exposes the
// up/down/degraded signal used for routing. It is the only process-wide
// mutable state in the pipeline; all access goes through its lock.
type HealthMonitor struct {
	mu     sync.RWMutex
	cfg    HealthConfig
	states map[BackendID]*healthState
}

// NewHealthMonitor creates a monitor with every backend initially healthy
func NewHealthMonitor(cfg HealthConfig, ids ...BackendID) *HealthMonitor {
	if cfg.WindowSize <= 0 {
		cfg = DefaultHealthConfig()
	}
	m := &HealthMonitor{
		cfg:    cfg,
		states: make(map[BackendID]*healthState, len(ids)),
	}
	for _, id := range ids {
		m.states[id] = &healthState{
			BackendHealth: BackendHealth{BackendID: id, Status: StatusHealthy},
		}
	}
	return m
}

func (m *HealthMonitor) state(id BackendID) *healthState {
	s, ok := m.states[id]
	if !ok {
		s = &healthState{BackendHealth: BackendHealth{BackendID: id, Status: StatusHealthy}}
		m.states[id] = s
	}
	return s
}

// Report records the outcome of one attempt against a backend.
// A success resets the failure count and restores healthy status immediately
// (availability is favored over hysteresis), unless the latency window still
// shows the backend as slow.
func (m *HealthMonitor) Report(id BackendID, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(id)
	now := time.Now()
	latencyMs := float64(latency.Milliseconds())

	s.LastCheckedAt = now
	s.LastLatencyMs = latency.Milliseconds()

	if success {
		s.ConsecutiveFailures = 0
		s.skipsSinceProbe = 0

		s.window = append(s.window, latencyMs)
		if len(s.window) > m.cfg.WindowSize {
			s.window = s.window[len(s.window)-m.cfg.WindowSize:]
		}
		s.AvgLatencyMs = mean(s.window)

		if p95(s.window) > m.cfg.LatencyP95ThresholdMs {
			s.Status = StatusDegraded
		} else {
			s.Status = StatusHealthy
		}
		return
	}

	s.ConsecutiveFailures++
	s.LastFailureAt = now

	switch {
	case s.ConsecutiveFailures >= m.cfg.UnavailableAfter:
		s.Status = StatusUnavailable
	case s.ConsecutiveFailures >= m.cfg.DegradedAfter:
		s.Status = StatusDegraded
	}
}

// Snapshot returns a copy of every backend's health record
func (m *HealthMonitor) Snapshot() map[BackendID]BackendHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[BackendID]BackendHealth, len(m.states))
	for id, s := range m.states {
		out[id] = s.BackendHealth
	}
	return out
}

// StatusOf returns the current status of a backend.
// Unknown backends are treated as healthy.
func (m *HealthMonitor) StatusOf(id BackendID) HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.states[id]; ok {
		return s.Status
	}
	return StatusHealthy
}

// ShouldProbe decides whether an unavailable backend should be attempted
// anyway on this request. Every ProbeEvery-th skip lets one attempt through,
// so a recovered backend is noticed without waiting for operator action.
func (m *HealthMonitor) ShouldProbe(id BackendID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(id)
	s.skipsSinceProbe++
	if s.skipsSinceProbe >= m.cfg.ProbeEvery {
		s.skipsSinceProbe = 0
		return true
	}
	return false
}

// LeastRecentlyFailed picks the fallback-of-last-resort from ids: the
// backend whose last failure is oldest
func (m *HealthMonitor) LeastRecentlyFailed(ids []BackendID) BackendID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(ids) == 0 {
		return ""
	}
	best := ids[0]
	bestAt := m.state(best).LastFailureAt
	for _, id := range ids[1:] {
		if at := m.state(id).LastFailureAt; at.Before(bestAt) {
			best = id
			bestAt = at
		}
	}
	return best
}

// EstimateLatencyMs returns the average observed latency for a backend, or
// fallback when there is no history yet. Used for explain cost estimates.
func (m *HealthMonitor) EstimateLatencyMs(id BackendID, fallback float64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.states[id]; ok && len(s.window) > 0 {
		return s.AvgLatencyMs
	}
	return fallback
}

// rankFor orders backends by health profile for dedup seeding:
// healthy before degraded before unavailable, then lower average latency.
func (m *HealthMonitor) rankFor(id BackendID) (int, float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[id]
	if !ok {
		return 0, 0
	}
	rank := 0
	switch s.Status {
	case StatusDegraded:
		rank = 1
	case StatusUnavailable:
		rank = 2
	}
	return rank, s.AvgLatencyMs
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func p95(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted))*0.95) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
