package backends

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lakefind/internal/errors"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// mockBackend is a test double for the Backend interface
type mockBackend struct {
	id           BackendID
	available    bool
	capabilities []string
	priority     int

	mu    sync.Mutex
	calls int

	page  *Page
	err   error
	delay time.Duration
}

func newMockBackend(id BackendID) *mockBackend {
	return &mockBackend{
		id:        id,
		available: true,
		capabilities: []string{
			CapFreeText, CapScopeBucket, CapScopePackage, CapMetadataPredicates,
		},
		priority: 1,
		page: &Page{
			Results: []SearchResult{
				{ID: string(id) + ":1", Type: TypeObject, Title: "hit", Score: 1.0, Backend: id, Locator: "b/" + string(id)},
			},
		},
	}
}

func (m *mockBackend) ID() BackendID          { return m.id }
func (m *mockBackend) IsAvailable() bool      { return m.available }
func (m *mockBackend) Capabilities() []string { return m.capabilities }
func (m *mockBackend) Priority() int          { return m.priority }

func (m *mockBackend) Ping(ctx context.Context) error { return m.err }

func (m *mockBackend) Search(ctx context.Context, qp *plan.QueryPlan) (*Page, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testPolicy() *QueryPolicy {
	p := DefaultQueryPolicy()
	p.OverallTimeoutMs = 400
	p.SafetyMarginMs = 50
	p.TimeoutMs = map[BackendID]int{
		BackendFullText:    250,
		BackendCatalog:     250,
		BackendObjectStore: 250,
	}
	return p
}

func testOrchestrator(t *testing.T, mocks ...*mockBackend) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(testPolicy(), logging.NewDiscardLogger())
	for _, m := range mocks {
		o.RegisterBackend(m)
	}
	return o
}

func matchAllPlan(limit int) *plan.QueryPlan {
	return &plan.QueryPlan{
		RawText: "",
		Intent:  plan.IntentUnspecified,
		Scope:   plan.ScopeGlobal,
		Limit:   limit,
	}
}

func TestExecuteMergesAcrossBackends(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	cat := newMockBackend(BackendCatalog)
	o := testOrchestrator(t, ft, cat)

	resp, err := o.Execute(context.Background(), matchAllPlan(10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}
	if len(resp.PerBackend) != 2 {
		t.Errorf("perBackend entries = %d, want 2", len(resp.PerBackend))
	}
	for id, oc := range resp.PerBackend {
		if oc.Error != "" {
			t.Errorf("backend %s unexpectedly errored: %s", id, oc.Error)
		}
		if oc.Count != 1 {
			t.Errorf("backend %s count = %d", id, oc.Count)
		}
	}
}

func TestExecuteSlowBackendTimesOut(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	cat := newMockBackend(BackendCatalog)
	cat.delay = 2 * time.Second

	o := testOrchestrator(t, ft, cat)

	resp, err := o.Execute(context.Background(), matchAllPlan(10))
	if err != nil {
		t.Fatalf("partial timeout must not fail the request: %v", err)
	}

	oc, ok := resp.PerBackend[BackendCatalog]
	if !ok {
		t.Fatal("slow backend missing from perBackend diagnostics")
	}
	if oc.ErrorCode != string(errors.BackendTimeout) {
		t.Errorf("slow backend errorCode = %q, want timeout-class", oc.ErrorCode)
	}
	if oc.Count != 0 {
		t.Errorf("timed-out backend contributed %d results", oc.Count)
	}

	// On-time backend's results still present.
	if len(resp.Results) != 1 || resp.Results[0].Backend != BackendFullText {
		t.Errorf("on-time results missing: %+v", resp.Results)
	}
}

func TestExecuteAllBackendsFailed(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	ft.err = fmt.Errorf("connection refused")
	cat := newMockBackend(BackendCatalog)
	cat.err = fmt.Errorf("connection refused")

	o := testOrchestrator(t, ft, cat)

	_, err := o.Execute(context.Background(), matchAllPlan(10))
	if err == nil {
		t.Fatal("expected AllBackendsFailed, got silent success")
	}
	if errors.CodeOf(err) != errors.AllBackendsFailed {
		t.Errorf("code = %s, want ALL_BACKENDS_FAILED", errors.CodeOf(err))
	}
}

func TestExecuteInvalidPlanRejectedBeforeDispatch(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	o := testOrchestrator(t, ft)

	qp := matchAllPlan(10)
	qp.Filters.SizeMin = 1000
	qp.Filters.SizeMax = 10

	_, err := o.Execute(context.Background(), qp)
	if errors.CodeOf(err) != errors.InvalidQueryPlan {
		t.Fatalf("code = %v, want INVALID_QUERY_PLAN", err)
	}
	if ft.callCount() != 0 {
		t.Error("invalid plan must not reach any backend")
	}
}

func TestExecuteSkipsUnavailableBackend(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	cat := newMockBackend(BackendCatalog)
	o := testOrchestrator(t, ft, cat)

	// Drive catalog to unavailable through the monitor.
	for i := 0; i < 6; i++ {
		o.Monitor().Report(BackendCatalog, false, time.Millisecond)
	}

	resp, err := o.Execute(context.Background(), matchAllPlan(10))
	if err != nil {
		t.Fatalf("one healthy backend should be enough: %v", err)
	}

	oc, ok := resp.PerBackend[BackendCatalog]
	if !ok {
		t.Fatal("skipped backend missing from perBackend")
	}
	if !oc.Skipped {
		t.Error("catalog should be recorded as skipped")
	}
	if cat.callCount() != 0 {
		t.Error("unavailable backend should not be dispatched")
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %d, want the healthy backend's hit", len(resp.Results))
	}
}

func TestExecuteProbesUnavailableBackendPeriodically(t *testing.T) {
	policy := testPolicy()
	policy.Health.ProbeEvery = 2

	cat := newMockBackend(BackendCatalog)
	ft := newMockBackend(BackendFullText)
	o := NewOrchestrator(policy, logging.NewDiscardLogger())
	o.RegisterBackend(cat)
	o.RegisterBackend(ft)

	for i := 0; i < 6; i++ {
		o.Monitor().Report(BackendCatalog, false, time.Millisecond)
	}

	// First request skips catalog, second probes it.
	if _, err := o.Execute(context.Background(), matchAllPlan(10)); err != nil {
		t.Fatal(err)
	}
	if cat.callCount() != 0 {
		t.Fatal("first request should skip the unavailable backend")
	}
	if _, err := o.Execute(context.Background(), matchAllPlan(10)); err != nil {
		t.Fatal(err)
	}
	if cat.callCount() != 1 {
		t.Errorf("second request should probe, calls = %d", cat.callCount())
	}
}

func TestExecuteFallbackOfLastResort(t *testing.T) {
	cat := newMockBackend(BackendCatalog)
	o := testOrchestrator(t, cat)

	for i := 0; i < 6; i++ {
		o.Monitor().Report(BackendCatalog, false, time.Millisecond)
	}

	// Sole backend unavailable: still attempted rather than zero dispatch.
	resp, err := o.Execute(context.Background(), matchAllPlan(10))
	if err != nil {
		t.Fatalf("fallback attempt failed: %v", err)
	}
	if cat.callCount() != 1 {
		t.Errorf("fallback backend calls = %d, want 1", cat.callCount())
	}
	if !resp.PerBackend[BackendCatalog].Fallback {
		t.Error("fallback outcome not flagged")
	}
}

func TestExecuteRequestedBackendsExact(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	cat := newMockBackend(BackendCatalog)
	o := testOrchestrator(t, ft, cat)

	qp := matchAllPlan(10)
	qp.RequestedBackends = []string{"catalog"}

	resp, err := o.Execute(context.Background(), qp)
	if err != nil {
		t.Fatal(err)
	}
	if ft.callCount() != 0 {
		t.Error("non-requested backend was dispatched")
	}
	if cat.callCount() != 1 {
		t.Errorf("requested backend calls = %d", cat.callCount())
	}
	if len(resp.PerBackend) != 1 {
		t.Errorf("perBackend = %v", resp.PerBackend)
	}
}

func TestExecuteUnknownRequestedBackend(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	o := testOrchestrator(t, ft)

	qp := matchAllPlan(10)
	qp.RequestedBackends = []string{"glacier"}

	_, err := o.Execute(context.Background(), qp)
	if errors.CodeOf(err) != errors.AllBackendsFailed {
		t.Errorf("unknown requested backend should be fatal, got %v", err)
	}
}

func TestExecuteScopeFiltersBackends(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	ft.capabilities = []string{CapFreeText} // no bucket scoping
	os := newMockBackend(BackendObjectStore)

	o := testOrchestrator(t, ft, os)

	qp := matchAllPlan(10)
	qp.Scope = plan.ScopeBucket
	qp.Target = "raw-data"

	resp, err := o.Execute(context.Background(), qp)
	if err != nil {
		t.Fatal(err)
	}
	if ft.callCount() != 0 {
		t.Error("backend without bucket scoping was dispatched for bucket scope")
	}
	if oc := resp.PerBackend[BackendFullText]; !oc.Skipped {
		t.Error("scope-incapable backend should appear as skipped")
	}
}

func TestExecuteCallerDeadlineRespected(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	ft.delay = 2 * time.Second
	o := testOrchestrator(t, ft)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := o.Execute(ctx, matchAllPlan(10))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Execute held past caller deadline: %v", elapsed)
	}
	// Sole backend timed out: fatal.
	if errors.CodeOf(err) != errors.AllBackendsFailed {
		t.Errorf("err = %v", err)
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*plan.QueryPlan)
		wantErr bool
	}{
		{"clean", func(qp *plan.QueryPlan) {}, false},
		{"size conflict", func(qp *plan.QueryPlan) {
			qp.Filters.SizeMin = 100
			qp.Filters.SizeMax = 1
		}, true},
		{"date conflict", func(qp *plan.QueryPlan) {
			qp.Filters.CreatedAfter = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			qp.Filters.CreatedBefore = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		}, true},
		{"negative limit", func(qp *plan.QueryPlan) { qp.Limit = -1 }, true},
		{"open-ended range", func(qp *plan.QueryPlan) { qp.Filters.SizeMin = 100 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qp := matchAllPlan(10)
			tt.mutate(qp)
			err := ValidatePlan(qp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePlan() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExplainExecutesNothing(t *testing.T) {
	ft := newMockBackend(BackendFullText)
	cat := newMockBackend(BackendCatalog)
	o := testOrchestrator(t, ft, cat)

	qp := matchAllPlan(10)
	exp := o.Explain(qp)

	if ft.callCount() != 0 || cat.callCount() != 0 {
		t.Error("explain must not dispatch any backend")
	}
	if len(exp.Selected) != 2 {
		t.Errorf("selected = %v", exp.Selected)
	}
	for _, id := range exp.Selected {
		if exp.EstimatedMs[id] <= 0 {
			t.Errorf("estimated cost for %s = %f", id, exp.EstimatedMs[id])
		}
	}
}
