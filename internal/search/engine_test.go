package search

import (
	"context"
	"testing"

	"lakefind/internal/backends"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// stubBackend is a minimal Backend for pipeline tests
type stubBackend struct {
	id    backends.BackendID
	calls int
	page  *backends.Page
}

func (s *stubBackend) ID() backends.BackendID { return s.id }
func (s *stubBackend) IsAvailable() bool      { return true }
func (s *stubBackend) Priority() int          { return 1 }
func (s *stubBackend) Capabilities() []string {
	return []string{
		backends.CapFreeText, backends.CapScopeBucket,
		backends.CapScopePackage, backends.CapMetadataPredicates,
	}
}
func (s *stubBackend) Ping(ctx context.Context) error { return nil }

func (s *stubBackend) Search(ctx context.Context, qp *plan.QueryPlan) (*backends.Page, error) {
	s.calls++
	return s.page, nil
}

func testEngine(t *testing.T, stubs ...*stubBackend) *Engine {
	t.Helper()

	vocab := plan.DefaultVocabulary()
	suggester, err := NewSuggester(vocab)
	if err != nil {
		t.Fatal(err)
	}

	policy := backends.DefaultQueryPolicy()
	logger := logging.NewDiscardLogger()
	orch := backends.NewOrchestrator(policy, logger)
	for _, s := range stubs {
		orch.RegisterBackend(s)
	}

	return New(plan.NewParser(vocab), policy, orch, suggester, logger)
}

func onePage(id backends.BackendID, locator string) *backends.Page {
	return &backends.Page{
		Results: []backends.SearchResult{{
			ID: locator, Type: backends.TypeObject, Title: locator,
			Score: 1.0, Backend: id, Locator: locator,
		}},
	}
}

func TestSearchPipeline(t *testing.T) {
	ft := &stubBackend{id: backends.BackendFullText, page: onePage(backends.BackendFullText, "raw-data/sales.csv")}
	e := testEngine(t, ft)

	resp, err := e.Search(context.Background(), Request{Query: "sales report"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	if ft.calls != 1 {
		t.Errorf("backend calls = %d", ft.calls)
	}

	// Successful terms feed suggestions.
	got := e.Suggest("sal", 5)
	found := false
	for _, s := range got {
		if s.Text == "sales" && s.Source == "recent" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions after search = %+v, want recent term 'sales'", got)
	}
}

func TestSearchAttachesExplanation(t *testing.T) {
	ft := &stubBackend{id: backends.BackendFullText, page: onePage(backends.BackendFullText, "a/b")}
	e := testEngine(t, ft)

	resp, err := e.Search(context.Background(), Request{Query: "sales", Explain: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Explanation == nil {
		t.Fatal("explanation missing")
	}
	if len(resp.Explanation.Selected) == 0 {
		t.Error("explanation has no selected backends")
	}
}

func TestPlanClampsLimit(t *testing.T) {
	e := testEngine(t)

	if qp := e.Plan(Request{Query: "x"}); qp.Limit != 10 {
		t.Errorf("default limit = %d, want 10", qp.Limit)
	}
	if qp := e.Plan(Request{Query: "x", Limit: 1000}); qp.Limit != 100 {
		t.Errorf("clamped limit = %d, want 100", qp.Limit)
	}
	if qp := e.Plan(Request{Query: "x", Limit: 7}); qp.Limit != 7 {
		t.Errorf("explicit limit = %d, want 7", qp.Limit)
	}
}

func TestPlanCarriesRequestFields(t *testing.T) {
	e := testEngine(t)

	qp := e.Plan(Request{
		Query:    "quarterly numbers",
		Scope:    "bucket",
		Target:   "raw-data",
		Backends: []string{"catalog"},
	})

	if qp.Scope != plan.ScopeBucket || qp.Target != "raw-data" {
		t.Errorf("scope/target = %s/%s", qp.Scope, qp.Target)
	}
	if len(qp.RequestedBackends) != 1 || qp.RequestedBackends[0] != "catalog" {
		t.Errorf("requested backends = %v", qp.RequestedBackends)
	}
}

func TestExplainDoesNotExecute(t *testing.T) {
	ft := &stubBackend{id: backends.BackendFullText, page: onePage(backends.BackendFullText, "a/b")}
	e := testEngine(t, ft)

	exp := e.Explain(Request{Query: "sales"})
	if ft.calls != 0 {
		t.Error("explain dispatched a backend")
	}
	if len(exp.Selected) != 1 {
		t.Errorf("selected = %v", exp.Selected)
	}
}

func TestSearchErrorPassthrough(t *testing.T) {
	e := testEngine(t) // no backends registered

	_, err := e.Search(context.Background(), Request{Query: "anything"})
	if err == nil {
		t.Fatal("search with no backends should fail")
	}
}
