package backends

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"lakefind/internal/errors"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// Orchestrator fans a query plan out across the registered backends and
// collects whatever returns before the overall deadline. Individual backend
// failures are recorded per-backend, never surfaced to the caller; only
// InvalidQueryPlan and AllBackendsFailed propagate.
type Orchestrator struct {
	policy     *QueryPolicy
	monitor    *HealthMonitor
	selector   *Selector
	limiter    *InFlightLimiter
	aggregator *Aggregator
	logger     *logging.Logger

	mu       sync.RWMutex
	registry map[BackendID]Backend
}

// NewOrchestrator creates an orchestrator with an empty registry
func NewOrchestrator(policy *QueryPolicy, logger *logging.Logger) *Orchestrator {
	monitor := NewHealthMonitor(policy.Health)
	return &Orchestrator{
		policy:     policy,
		monitor:    monitor,
		selector:   NewSelector(policy, monitor, logger),
		limiter:    NewInFlightLimiter(policy),
		aggregator: NewAggregator(policy.Fusion, logger),
		logger:     logger,
		registry:   make(map[BackendID]Backend),
	}
}

// RegisterBackend registers a backend with the orchestrator
func (o *Orchestrator) RegisterBackend(b Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.registry[b.ID()] = b
	o.logger.Info("Registered backend", map[string]interface{}{
		"backend":      b.ID(),
		"capabilities": b.Capabilities(),
		"available":    b.IsAvailable(),
	})
}

// Monitor exposes the health monitor for status reporting
func (o *Orchestrator) Monitor() *HealthMonitor {
	return o.monitor
}

// Registry returns a copy of the current backend registry
func (o *Orchestrator) Registry() map[BackendID]Backend {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[BackendID]Backend, len(o.registry))
	for id, b := range o.registry {
		out[id] = b
	}
	return out
}

// ValidatePlan rejects self-contradictory plans before any backend is
// dispatched. The parser deliberately passes conflicts through; this is
// where they stop.
func ValidatePlan(qp *plan.QueryPlan) error {
	f := qp.Filters
	if f.SizeMin > 0 && f.SizeMax > 0 && f.SizeMin > f.SizeMax {
		return errors.New(errors.InvalidQueryPlan, "sizeMin exceeds sizeMax", nil).
			WithDetails(map[string]int64{"sizeMin": f.SizeMin, "sizeMax": f.SizeMax})
	}
	if !f.CreatedAfter.IsZero() && !f.CreatedBefore.IsZero() && f.CreatedAfter.After(f.CreatedBefore) {
		return errors.New(errors.InvalidQueryPlan, "createdAfter is later than createdBefore", nil)
	}
	if qp.Limit < 0 {
		return errors.New(errors.InvalidQueryPlan, "limit must not be negative", nil)
	}
	return nil
}

// Explain runs the selection steps for a plan without executing any backend
func (o *Orchestrator) Explain(qp *plan.QueryPlan) *Explanation {
	registry := o.Registry()
	sel := o.selector.Select(registry, qp, false)

	estimated := make(map[BackendID]float64, len(sel.Backends))
	for _, id := range sel.Backends {
		estimated[id] = o.monitor.EstimateLatencyMs(id, float64(o.policy.GetTimeout(id))/4)
	}

	alternatives := make([]Alternative, 0, len(sel.Skipped))
	for id, reason := range sel.Skipped {
		alternatives = append(alternatives, Alternative{BackendID: id, Reason: reason})
	}

	return &Explanation{
		Plan:         qp,
		Selected:     sel.Backends,
		EstimatedMs:  estimated,
		Alternatives: alternatives,
		Fallback:     sel.Fallback,
	}
}

// attempt is one backend's raw outcome, delivered on the fan-in channel
type attempt struct {
	id      BackendID
	page    *Page
	err     error
	latency time.Duration
}

// Execute runs the plan: select, dispatch concurrently, join under the
// overall deadline, report health, aggregate.
func (o *Orchestrator) Execute(ctx context.Context, qp *plan.QueryPlan) (*SearchResponse, error) {
	start := time.Now()

	if err := ValidatePlan(qp); err != nil {
		return nil, err
	}

	registry := o.Registry()
	if len(registry) == 0 {
		return nil, errors.New(errors.AllBackendsFailed, "no backends registered", nil)
	}

	sel := o.selector.Select(registry, qp, true)
	if len(sel.Backends) == 0 {
		return nil, errors.New(errors.AllBackendsFailed, "no backend can serve this query", nil).
			WithDetails(sel.Skipped)
	}

	o.logger.Debug("Dispatching query", map[string]interface{}{
		"intent":   qp.Intent,
		"scope":    qp.Scope,
		"backends": sel.Backends,
		"fallback": sel.Fallback,
	})

	overall := time.Duration(o.policy.OverallTimeoutMs) * time.Millisecond
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < overall {
			overall = rem
		}
	}

	base, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan attempt, len(sel.Backends))
	for _, id := range sel.Backends {
		go o.dispatch(base, registry[id], qp, overall, ch)
	}

	outcomes := make(map[BackendID]Outcome, len(sel.Backends)+len(sel.Skipped))
	pages := make(map[BackendID]*Page, len(sel.Backends))
	finished := make(map[BackendID]bool, len(sel.Backends))

	timer := time.NewTimer(overall)
	defer timer.Stop()

	for remaining := len(sel.Backends); remaining > 0; {
		select {
		case at := <-ch:
			remaining--
			finished[at.id] = true
			o.monitor.Report(at.id, at.err == nil, at.latency)

			if at.err != nil {
				serr := classifyBackendError(at.id, at.err)
				outcomes[at.id] = Outcome{
					BackendID: at.id,
					LatencyMs: at.latency.Milliseconds(),
					Error:     serr.Message,
					ErrorCode: string(serr.Code),
				}
				o.logger.Warn("Backend query failed", map[string]interface{}{
					"backend": at.id,
					"error":   serr.Error(),
				})
				continue
			}

			pages[at.id] = at.page
			outcomes[at.id] = Outcome{
				BackendID: at.id,
				Count:     len(at.page.Results),
				LatencyMs: at.latency.Milliseconds(),
			}

		case <-timer.C:
			remaining = 0
		case <-ctx.Done():
			remaining = 0
		}
	}

	// Cancel stragglers without waiting for them to acknowledge; they are
	// recorded as timeout-class outcomes, not silently dropped.
	cancel()
	for _, id := range sel.Backends {
		if finished[id] {
			continue
		}
		o.monitor.Report(id, false, overall)
		outcomes[id] = Outcome{
			BackendID: id,
			LatencyMs: overall.Milliseconds(),
			Error:     "cancelled at overall deadline",
			ErrorCode: string(errors.BackendTimeout),
		}
	}

	for id, reason := range sel.Skipped {
		outcomes[id] = Outcome{
			BackendID: id,
			Skipped:   true,
			Error:     reason,
		}
	}
	if sel.Fallback {
		oc := outcomes[sel.Backends[0]]
		oc.Fallback = true
		outcomes[sel.Backends[0]] = oc
	}

	if len(pages) == 0 {
		return nil, errors.New(errors.AllBackendsFailed, "every attempted backend failed", nil).
			WithDetails(outcomes)
	}

	results, total := o.aggregator.Aggregate(sel.Backends, pages, qp)

	resp := &SearchResponse{
		Results:       results,
		TotalEstimate: total,
		PerBackend:    outcomes,
		DurationMs:    time.Since(start).Milliseconds(),
	}

	o.logger.Info("Query completed", map[string]interface{}{
		"durationMs": resp.DurationMs,
		"results":    len(resp.Results),
		"total":      resp.TotalEstimate,
		"attempted":  len(sel.Backends),
	})

	return resp, nil
}

// dispatch runs one backend call bounded by its per-backend timeout
func (o *Orchestrator) dispatch(base context.Context, b Backend, qp *plan.QueryPlan, overall time.Duration, ch chan<- attempt) {
	id := b.ID()

	// Each backend gets the overall deadline minus a safety margin, so one
	// slow backend cannot by itself exceed the caller's deadline.
	perTimeout := time.Duration(o.policy.GetTimeout(id)) * time.Millisecond
	if budget := overall - time.Duration(o.policy.SafetyMarginMs)*time.Millisecond; budget < perTimeout {
		perTimeout = budget
	}
	if perTimeout <= 0 {
		perTimeout = time.Millisecond
	}

	bctx, bcancel := context.WithTimeout(base, perTimeout)
	defer bcancel()

	startTime := time.Now()

	if err := o.limiter.Acquire(bctx, id); err != nil {
		ch <- attempt{id: id, err: err, latency: time.Since(startTime)}
		return
	}
	defer o.limiter.Release(id)

	page, err := b.Search(bctx, qp)
	if err == nil && page == nil {
		err = errors.New(errors.BackendMalformedResponse, "backend returned no page", nil)
	}
	ch <- attempt{id: id, page: page, err: err, latency: time.Since(startTime)}
}

// classifyBackendError maps a raw backend error to a coded SearchError.
// Context cancellation and deadline expiry are timeout-class; anything
// already coded passes through; the rest is treated as unavailability.
func classifyBackendError(id BackendID, err error) *errors.SearchError {
	var serr *errors.SearchError
	if stderrors.As(err, &serr) {
		return serr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.New(errors.BackendTimeout, string(id)+" exceeded its deadline", err)
	}
	return errors.New(errors.BackendUnavailable, string(id)+" request failed", err)
}
