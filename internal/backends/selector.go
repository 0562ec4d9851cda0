package backends

import (
	"fmt"
	"sort"

	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// Selection is the outcome of the adapter-selection step: which backends to
// dispatch (in dedup-seed order) and which were left out, with reasons.
type Selection struct {
	// Backends to dispatch, ordered by health/latency profile. Dispatch is
	// concurrent regardless; the order only decides which result list seeds
	// deduplication ties.
	Backends []BackendID

	// Skipped maps each non-selected backend to the reason
	Skipped map[BackendID]string

	// Fallback is true when every eligible backend was unavailable and the
	// least-recently-failed one was included anyway
	Fallback bool
}

// Selector decides which backends serve a given plan, based on explicit
// request, scope, intent, and current health
type Selector struct {
	policy  *QueryPolicy
	monitor *HealthMonitor
	logger  *logging.Logger
}

// NewSelector creates a selector
func NewSelector(policy *QueryPolicy, monitor *HealthMonitor, logger *logging.Logger) *Selector {
	return &Selector{
		policy:  policy,
		monitor: monitor,
		logger:  logger,
	}
}

// Select determines the dispatch set for a plan.
// probe controls whether unavailable backends may be probed this request;
// explain passes false so diagnostics never consume probe slots.
func (s *Selector) Select(registry map[BackendID]Backend, qp *plan.QueryPlan, probe bool) Selection {
	sel := Selection{Skipped: make(map[BackendID]string)}

	candidates := s.candidates(registry, qp, &sel)

	// Health screen: unavailable backends are skip-candidates, probed every
	// Kth request so recovery is detected. If that empties the set, fall
	// back to the least-recently-failed one rather than dispatching nothing.
	var healthSkipped []BackendID
	eligible := candidates[:0]
	for _, id := range candidates {
		if s.monitor.StatusOf(id) == StatusUnavailable {
			if probe && s.monitor.ShouldProbe(id) {
				s.logger.Debug("Probing unavailable backend", map[string]interface{}{
					"backend": id,
				})
				eligible = append(eligible, id)
				continue
			}
			healthSkipped = append(healthSkipped, id)
			sel.Skipped[id] = "unavailable"
			continue
		}
		eligible = append(eligible, id)
	}

	if len(eligible) == 0 && len(healthSkipped) > 0 {
		last := s.monitor.LeastRecentlyFailed(healthSkipped)
		delete(sel.Skipped, last)
		eligible = append(eligible, last)
		sel.Fallback = true
		s.logger.Warn("All eligible backends unavailable, using fallback", map[string]interface{}{
			"backend": last,
		})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri, li := s.monitor.rankFor(eligible[i])
		rj, lj := s.monitor.rankFor(eligible[j])
		if ri != rj {
			return ri < rj
		}
		if li != lj {
			return li < lj
		}
		return registry[eligible[i]].Priority() < registry[eligible[j]].Priority()
	})

	sel.Backends = eligible
	return sel
}

// candidates applies the request/scope/intent filters, before health
func (s *Selector) candidates(registry map[BackendID]Backend, qp *plan.QueryPlan, sel *Selection) []BackendID {
	// Explicitly requested backends are used exactly as given
	if len(qp.RequestedBackends) > 0 {
		var out []BackendID
		for _, name := range qp.RequestedBackends {
			id := BackendID(name)
			b, ok := registry[id]
			if !ok {
				sel.Skipped[id] = "unknown backend"
				continue
			}
			if !b.IsAvailable() {
				sel.Skipped[id] = "not configured"
				continue
			}
			out = append(out, id)
		}
		return out
	}

	var out []BackendID
	for _, id := range s.policy.OrderFor(qp.Intent) {
		b, ok := registry[id]
		if !ok {
			continue
		}
		if !b.IsAvailable() {
			sel.Skipped[id] = "not configured"
			continue
		}
		if reason := ineligibleReason(b, qp); reason != "" {
			sel.Skipped[id] = reason
			continue
		}
		out = append(out, id)
	}
	return out
}

// ineligibleReason returns why a backend cannot serve a plan, or "" when it can
func ineligibleReason(b Backend, qp *plan.QueryPlan) string {
	switch qp.Scope {
	case plan.ScopeBucket:
		if !HasCapability(b, CapScopeBucket) {
			return fmt.Sprintf("no %s support", CapScopeBucket)
		}
	case plan.ScopePackage:
		if !HasCapability(b, CapScopePackage) {
			return fmt.Sprintf("no %s support", CapScopePackage)
		}
	}

	// A backend that cannot evaluate metadata predicates would return hits
	// violating the caller's filters.
	if len(qp.Filters.Metadata) > 0 && !HasCapability(b, CapMetadataPredicates) {
		return fmt.Sprintf("no %s support", CapMetadataPredicates)
	}

	return ""
}
