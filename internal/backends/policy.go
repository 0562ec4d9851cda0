package backends

import (
	"lakefind/internal/config"
	"lakefind/internal/plan"
)

// QueryPolicy defines how backends are selected, time-boxed, and fused
type QueryPolicy struct {
	// PreferenceOrder maps each intent to the backend ordering used when the
	// caller did not request specific backends. The first entry seeds
	// deduplication ties; dispatch itself is always concurrent.
	PreferenceOrder map[plan.Intent][]BackendID

	// TimeoutMs is the per-backend timeout budget
	TimeoutMs map[BackendID]int

	// OverallTimeoutMs bounds the whole fan-out/fan-in
	OverallTimeoutMs int

	// SafetyMarginMs is subtracted from the overall deadline when deriving
	// per-backend timeouts, so a single slow backend cannot by itself push
	// the request past the caller's deadline
	SafetyMarginMs int

	// MaxInFlight limits concurrent requests to each backend
	MaxInFlight map[BackendID]int

	// DefaultLimit and MaxLimit bound the result count server-side
	DefaultLimit int
	MaxLimit     int

	// Fusion selects the cross-backend score fusion strategy ("max" or "rrf")
	Fusion string

	// Health holds the status transition thresholds
	Health HealthConfig
}

// DefaultQueryPolicy returns the default policy
func DefaultQueryPolicy() *QueryPolicy {
	return &QueryPolicy{
		PreferenceOrder: map[plan.Intent][]BackendID{
			plan.IntentFileSearch:       {BackendFullText, BackendCatalog, BackendObjectStore},
			plan.IntentPackageDiscovery: {BackendCatalog, BackendFullText},
			plan.IntentAnalytical:       {BackendCatalog, BackendObjectStore, BackendFullText},
			plan.IntentUnspecified:      {BackendFullText, BackendCatalog, BackendObjectStore},
		},
		TimeoutMs: map[BackendID]int{
			BackendFullText:    3000,
			BackendCatalog:     3000,
			BackendObjectStore: 5000,
		},
		OverallTimeoutMs: 8000,
		SafetyMarginMs:   500,
		MaxInFlight: map[BackendID]int{
			BackendFullText:    8,
			BackendCatalog:     8,
			BackendObjectStore: 4,
		},
		DefaultLimit: 10,
		MaxLimit:     100,
		Fusion:       "max",
		Health:       DefaultHealthConfig(),
	}
}

// LoadQueryPolicy creates a QueryPolicy from config, falling back to
// defaults for anything unset
func LoadQueryPolicy(cfg *config.Config) *QueryPolicy {
	policy := DefaultQueryPolicy()
	if cfg == nil {
		return policy
	}

	qp := cfg.QueryPolicy

	for intent, order := range qp.PreferenceOrder {
		ids := make([]BackendID, 0, len(order))
		for _, id := range order {
			ids = append(ids, BackendID(id))
		}
		policy.PreferenceOrder[plan.Intent(intent)] = ids
	}

	if len(qp.TimeoutMs) > 0 {
		policy.TimeoutMs = make(map[BackendID]int, len(qp.TimeoutMs))
		for k, v := range qp.TimeoutMs {
			policy.TimeoutMs[BackendID(k)] = v
		}
	}
	if len(qp.MaxInFlight) > 0 {
		policy.MaxInFlight = make(map[BackendID]int, len(qp.MaxInFlight))
		for k, v := range qp.MaxInFlight {
			policy.MaxInFlight[BackendID(k)] = v
		}
	}

	if qp.OverallTimeoutMs > 0 {
		policy.OverallTimeoutMs = qp.OverallTimeoutMs
	}
	if qp.SafetyMarginMs > 0 {
		policy.SafetyMarginMs = qp.SafetyMarginMs
	}
	if qp.Fusion != "" {
		policy.Fusion = qp.Fusion
	}

	if cfg.Limits.DefaultLimit > 0 {
		policy.DefaultLimit = cfg.Limits.DefaultLimit
	}
	if cfg.Limits.MaxLimit > 0 {
		policy.MaxLimit = cfg.Limits.MaxLimit
	}

	h := qp.Health
	if h.DegradedAfter > 0 {
		policy.Health.DegradedAfter = h.DegradedAfter
	}
	if h.UnavailableAfter > 0 {
		policy.Health.UnavailableAfter = h.UnavailableAfter
	}
	if h.LatencyP95ThresholdMs > 0 {
		policy.Health.LatencyP95ThresholdMs = h.LatencyP95ThresholdMs
	}
	if h.WindowSize > 0 {
		policy.Health.WindowSize = h.WindowSize
	}
	if h.ProbeEvery > 0 {
		policy.Health.ProbeEvery = h.ProbeEvery
	}

	return policy
}

// GetTimeout returns the timeout for a backend in milliseconds
func (p *QueryPolicy) GetTimeout(id BackendID) int {
	if t, ok := p.TimeoutMs[id]; ok {
		return t
	}
	return 5000
}

// GetMaxInFlight returns the max in-flight requests for a backend
func (p *QueryPolicy) GetMaxInFlight(id BackendID) int {
	if n, ok := p.MaxInFlight[id]; ok {
		return n
	}
	return 4
}

// OrderFor returns the backend preference order for an intent
func (p *QueryPolicy) OrderFor(intent plan.Intent) []BackendID {
	if order, ok := p.PreferenceOrder[intent]; ok {
		return order
	}
	return p.PreferenceOrder[plan.IntentUnspecified]
}

// ClampLimit enforces the default and the hard ceiling on a caller limit
func (p *QueryPolicy) ClampLimit(limit int) int {
	if limit <= 0 {
		return p.DefaultLimit
	}
	if limit > p.MaxLimit {
		return p.MaxLimit
	}
	return limit
}
