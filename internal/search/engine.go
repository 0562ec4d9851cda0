// Package search wires the query pipeline together: parse the raw text into
// a plan, fan it out through the orchestrator, and expose the suggest and
// explain operations alongside.
package search

import (
	"context"

	"github.com/google/uuid"

	"lakefind/internal/backends"
	"lakefind/internal/backends/catalog"
	"lakefind/internal/backends/fulltext"
	"lakefind/internal/backends/objectstore"
	"lakefind/internal/config"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// Request is one search/explain invocation as it arrives from the CLI
type Request struct {
	Query    string
	Scope    string
	Target   string
	Backends []string
	Limit    int
	Filters  *plan.Filters
	Explain  bool
}

// Engine is the public face of the pipeline
type Engine struct {
	parser    *plan.Parser
	policy    *backends.QueryPolicy
	orch      *backends.Orchestrator
	suggester *Suggester
	logger    *logging.Logger

	ft  *fulltext.Backend
	cat *catalog.Backend
}

// New assembles an engine from pre-built parts. Backends are registered by
// the caller; Build does the full wiring from config.
func New(parser *plan.Parser, policy *backends.QueryPolicy, orch *backends.Orchestrator, suggester *Suggester, logger *logging.Logger) *Engine {
	return &Engine{
		parser:    parser,
		policy:    policy,
		orch:      orch,
		suggester: suggester,
		logger:    logger.Named("search"),
	}
}

// Build constructs a fully wired engine from configuration: vocabulary,
// policy, and every enabled backend adapter.
func Build(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	vocab, err := plan.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}

	suggester, err := NewSuggester(vocab)
	if err != nil {
		return nil, err
	}

	policy := backends.LoadQueryPolicy(cfg)
	orch := backends.NewOrchestrator(policy, logger)

	e := New(plan.NewParser(vocab), policy, orch, suggester, logger)

	e.ft = fulltext.New(cfg.Backends.FullText.IndexPath, cfg.Backends.FullText.Enabled, logger)
	if e.ft.IsAvailable() {
		orch.RegisterBackend(e.ft)
	}

	e.cat = catalog.New(cfg.Backends.Catalog.DBPath, cfg.Backends.Catalog.Enabled, logger)
	if e.cat.IsAvailable() {
		orch.RegisterBackend(e.cat)
	}

	if store := objectstore.New(cfg.Backends.ObjectStore.RootDir, cfg.Backends.ObjectStore.Enabled, logger); store.IsAvailable() {
		orch.RegisterBackend(store)
	}

	return e, nil
}

// Close releases backend resources held by a Build-wired engine
func (e *Engine) Close() error {
	var first error
	if e.ft != nil {
		if err := e.ft.Close(); err != nil {
			first = err
		}
	}
	if e.cat != nil {
		if err := e.cat.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Orchestrator exposes the orchestrator for status reporting
func (e *Engine) Orchestrator() *backends.Orchestrator { return e.orch }

// FullText returns the full-text adapter when one was wired, for ingestion
func (e *Engine) FullText() *fulltext.Backend { return e.ft }

// Catalog returns the catalog adapter when one was wired, for ingestion
func (e *Engine) Catalog() *catalog.Backend { return e.cat }

// Plan parses a request into its query plan without executing it
func (e *Engine) Plan(req Request) *plan.QueryPlan {
	qp := e.parser.Parse(req.Query, plan.ParseScope(req.Scope), req.Target, req.Filters)
	qp.RequestedBackends = req.Backends
	qp.Limit = e.policy.ClampLimit(req.Limit)
	return qp
}

// Search runs the full pipeline for one request
func (e *Engine) Search(ctx context.Context, req Request) (*backends.SearchResponse, error) {
	qp := e.Plan(req)
	requestID := uuid.NewString()

	logger := e.logger.With(map[string]interface{}{"requestId": requestID})
	logger.Debug("Parsed query", map[string]interface{}{
		"intent": qp.Intent,
		"terms":  qp.Terms,
		"scope":  qp.Scope,
	})

	resp, err := e.orch.Execute(ctx, qp)
	if err != nil {
		logger.Warn("Search failed", map[string]interface{}{
			"query": req.Query,
			"error": err.Error(),
		})
		return nil, err
	}

	if len(resp.Results) > 0 {
		e.suggester.RecordTerms(qp.Terms)
	}
	if req.Explain {
		resp.Explanation = e.orch.Explain(qp)
	}
	return resp, nil
}

// Explain reports which backends a request would use, without executing any
func (e *Engine) Explain(req Request) *backends.Explanation {
	return e.orch.Explain(e.Plan(req))
}

// Suggest completes a query prefix
func (e *Engine) Suggest(prefix string, limit int) []Suggestion {
	return e.suggester.Suggest(prefix, limit)
}
